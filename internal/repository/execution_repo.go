package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmylchreest/codecredit-api/internal/models"
)

// ========================================
// Execution Repository
// ========================================

// SQLiteExecutionRepository implements ExecutionRepository for SQLite.
type SQLiteExecutionRepository struct {
	db DBTX
}

// NewSQLiteExecutionRepository creates a new SQLite execution repository.
func NewSQLiteExecutionRepository(db DBTX) *SQLiteExecutionRepository {
	return &SQLiteExecutionRepository{db: db}
}

const executionColumns = `id, user_id, credit_source, promotional_entry_id, language, code_encrypted, input, output, error,
	status, execution_time_ms, credits_used, plan_at_time, created_at`

func scanExecution(row scanner) (*models.Execution, error) {
	var e models.Execution
	var source, status, createdAt string
	var promoID sql.NullString
	if err := row.Scan(&e.ID, &e.UserID, &source, &promoID, &e.Language, &e.Code, &e.Input, &e.Output, &e.Error,
		&status, &e.ExecutionTimeMs, &e.CreditsUsed, &e.PlanAtTime, &createdAt); err != nil {
		return nil, err
	}
	e.CreditSource = models.CreditSourceKind(source)
	e.Status = models.ExecutionStatus(status)
	e.PromotionalEntryID = nullStringPtr(promoID)
	e.CreatedAt = parseTime(createdAt)
	return &e, nil
}

// Create stores the record with Code written to code_encrypted as given;
// callers encrypt before calling.
func (r *SQLiteExecutionRepository) Create(ctx context.Context, e *models.Execution) error {
	query := `INSERT INTO executions (` + executionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`
	result, err := r.db.ExecContext(ctx, query, e.ID, e.UserID, string(e.CreditSource), e.PromotionalEntryID,
		e.Language, e.Code, e.Input, e.Output, e.Error, string(e.Status), e.ExecutionTimeMs, e.CreditsUsed,
		e.PlanAtTime, formatTime(e.CreatedAt))
	if err != nil {
		return err
	}
	return insertedOrDuplicate(result)
}

func (r *SQLiteExecutionRepository) GetByID(ctx context.Context, id string) (*models.Execution, error) {
	e, err := scanExecution(r.db.QueryRowContext(ctx, `SELECT `+executionColumns+` FROM executions WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

func (r *SQLiteExecutionRepository) CountBySourceSince(ctx context.Context, userID string, source models.CreditSourceKind, since time.Time) (int, error) {
	query := `SELECT COALESCE(SUM(credits_used), 0) FROM executions WHERE user_id = ? AND credit_source = ? AND created_at >= ?`
	var count int
	err := r.db.QueryRowContext(ctx, query, userID, string(source), formatTime(since)).Scan(&count)
	return count, err
}

func (r *SQLiteExecutionRepository) CountSince(ctx context.Context, userID string, since time.Time) (int, error) {
	query := `SELECT COALESCE(SUM(credits_used), 0) FROM executions WHERE user_id = ? AND created_at >= ?`
	var count int
	err := r.db.QueryRowContext(ctx, query, userID, formatTime(since)).Scan(&count)
	return count, err
}

func (r *SQLiteExecutionRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Execution, error) {
	query := `SELECT ` + executionColumns + ` FROM executions WHERE user_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var execs []*models.Execution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		execs = append(execs, e)
	}
	return execs, rows.Err()
}

func (r *SQLiteExecutionRepository) UsageByLanguage(ctx context.Context, userID string) ([]models.LanguageUsage, error) {
	query := `SELECT language,
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
			COALESCE(SUM(credits_used), 0)
		FROM executions WHERE user_id = ?
		GROUP BY language ORDER BY language`
	rows, err := r.db.QueryContext(ctx, query, string(models.ExecutionSuccess), string(models.ExecutionFailed), userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var usage []models.LanguageUsage
	for rows.Next() {
		var u models.LanguageUsage
		if err := rows.Scan(&u.Language, &u.Successful, &u.Failed, &u.Credits); err != nil {
			return nil, err
		}
		usage = append(usage, u)
	}
	return usage, rows.Err()
}
