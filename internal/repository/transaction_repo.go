package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmylchreest/codecredit-api/internal/models"
)

// ========================================
// Transaction Repository
// ========================================

// SQLiteTransactionRepository implements TransactionRepository for SQLite.
// The ledger is append-only: there is no update or delete.
type SQLiteTransactionRepository struct {
	db DBTX
}

// NewSQLiteTransactionRepository creates a new SQLite transaction repository.
func NewSQLiteTransactionRepository(db DBTX) *SQLiteTransactionRepository {
	return &SQLiteTransactionRepository{db: db}
}

const transactionColumns = `id, user_id, type, amount_paisa, credits, description, status, subscription_id, external_ref, created_at`

func scanTransaction(row scanner) (*models.Transaction, error) {
	var t models.Transaction
	var txType, status, createdAt string
	var subID, extRef sql.NullString
	if err := row.Scan(&t.ID, &t.UserID, &txType, &t.AmountPaisa, &t.Credits, &t.Description, &status,
		&subID, &extRef, &createdAt); err != nil {
		return nil, err
	}
	t.Type = models.TransactionType(txType)
	t.Status = models.TransactionStatus(status)
	t.SubscriptionID = nullStringPtr(subID)
	t.ExternalRef = nullStringPtr(extRef)
	t.CreatedAt = parseTime(createdAt)
	return &t, nil
}

func (r *SQLiteTransactionRepository) Create(ctx context.Context, t *models.Transaction) error {
	query := `INSERT INTO transactions (` + transactionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`
	result, err := r.db.ExecContext(ctx, query, t.ID, t.UserID, string(t.Type), t.AmountPaisa, t.Credits,
		t.Description, string(t.Status), t.SubscriptionID, t.ExternalRef, formatTime(t.CreatedAt))
	if err != nil {
		return err
	}
	return insertedOrDuplicate(result)
}

func (r *SQLiteTransactionRepository) GetByExternalRef(ctx context.Context, txType models.TransactionType, ref string) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE type = ? AND external_ref = ?`
	t, err := scanTransaction(r.db.QueryRowContext(ctx, query, string(txType), ref))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

func (r *SQLiteTransactionRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	return r.queryMany(ctx, query, userID, limit, offset)
}

func (r *SQLiteTransactionRepository) ListByUserBetween(ctx context.Context, userID string, from, to time.Time) ([]*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE user_id = ? AND created_at >= ? AND created_at < ?
		ORDER BY created_at ASC, id ASC`
	return r.queryMany(ctx, query, userID, formatTime(from), formatTime(to))
}

func (r *SQLiteTransactionRepository) queryMany(ctx context.Context, query string, args ...any) ([]*models.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var txs []*models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}
