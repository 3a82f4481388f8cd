package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmylchreest/codecredit-api/internal/models"
)

// ========================================
// Subscription Repository
// ========================================

// SQLiteSubscriptionRepository implements SubscriptionRepository for SQLite.
type SQLiteSubscriptionRepository struct {
	db DBTX
}

// NewSQLiteSubscriptionRepository creates a new SQLite subscription repository.
func NewSQLiteSubscriptionRepository(db DBTX) *SQLiteSubscriptionRepository {
	return &SQLiteSubscriptionRepository{db: db}
}

const subscriptionColumns = `id, user_id, plan, price_paisa, credits_per_day, start_date, end_date,
	active, status, cancelled_at, created_at, updated_at`

func scanSubscription(row scanner) (*models.Subscription, error) {
	var s models.Subscription
	var active int
	var status string
	var startDate, endDate, createdAt, updatedAt string
	var cancelledAt sql.NullString
	if err := row.Scan(&s.ID, &s.UserID, &s.Plan, &s.PricePaisa, &s.CreditsPerDay, &startDate, &endDate,
		&active, &status, &cancelledAt, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	s.Active = active == 1
	s.Status = models.SubscriptionStatus(status)
	s.StartDate = parseTime(startDate)
	s.EndDate = parseTime(endDate)
	s.CancelledAt = parseNullTime(cancelledAt)
	s.CreatedAt = parseTime(createdAt)
	s.UpdatedAt = parseTime(updatedAt)
	return &s, nil
}

func (r *SQLiteSubscriptionRepository) queryOne(ctx context.Context, query string, args ...any) (*models.Subscription, error) {
	s, err := scanSubscription(r.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return s, err
}

func (r *SQLiteSubscriptionRepository) queryMany(ctx context.Context, query string, args ...any) ([]*models.Subscription, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var subs []*models.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

func (r *SQLiteSubscriptionRepository) Create(ctx context.Context, s *models.Subscription) error {
	query := `INSERT INTO subscriptions (` + subscriptionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, s.ID, s.UserID, s.Plan, s.PricePaisa, s.CreditsPerDay,
		formatTime(s.StartDate), formatTime(s.EndDate), boolToInt(s.Active), string(s.Status),
		formatTimePtr(s.CancelledAt), formatTime(s.CreatedAt), formatTime(s.UpdatedAt))
	return err
}

func (r *SQLiteSubscriptionRepository) GetByID(ctx context.Context, id string) (*models.Subscription, error) {
	return r.queryOne(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = ?`, id)
}

func (r *SQLiteSubscriptionRepository) GetActive(ctx context.Context, userID string) (*models.Subscription, error) {
	return r.queryOne(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = ? AND active = 1`, userID)
}

func (r *SQLiteSubscriptionRepository) GetScheduled(ctx context.Context, userID string) (*models.Subscription, error) {
	return r.queryOne(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = ? AND status = ?`,
		userID, string(models.SubscriptionScheduled))
}

func (r *SQLiteSubscriptionRepository) GetEarliestFree(ctx context.Context, userID, freePlan string) (*models.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions
		WHERE user_id = ? AND plan = ? ORDER BY created_at ASC, id ASC LIMIT 1`
	return r.queryOne(ctx, query, userID, freePlan)
}

func (r *SQLiteSubscriptionRepository) ListByUser(ctx context.Context, userID string) ([]*models.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id = ? ORDER BY created_at DESC, id DESC`
	return r.queryMany(ctx, query, userID)
}

func (r *SQLiteSubscriptionRepository) Update(ctx context.Context, s *models.Subscription) error {
	query := `UPDATE subscriptions SET plan = ?, price_paisa = ?, credits_per_day = ?, start_date = ?, end_date = ?,
		active = ?, status = ?, cancelled_at = ?, updated_at = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, s.Plan, s.PricePaisa, s.CreditsPerDay,
		formatTime(s.StartDate), formatTime(s.EndDate), boolToInt(s.Active), string(s.Status),
		formatTimePtr(s.CancelledAt), formatTime(s.UpdatedAt), s.ID)
	if err != nil {
		return err
	}
	return expectOneRow(result)
}

func (r *SQLiteSubscriptionRepository) Deactivate(ctx context.Context, id string, status models.SubscriptionStatus, endDate *time.Time) error {
	query := `UPDATE subscriptions SET active = 0, status = ?, end_date = COALESCE(?, end_date), updated_at = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, string(status), formatTimePtr(endDate), formatTime(time.Now()), id)
	if err != nil {
		return err
	}
	return expectOneRow(result)
}

func (r *SQLiteSubscriptionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectOneRow(result)
}

func (r *SQLiteSubscriptionRepository) DeleteOtherFree(ctx context.Context, userID, freePlan, keepID string) (int64, error) {
	query := `DELETE FROM subscriptions WHERE user_id = ? AND plan = ? AND id != ? AND active = 0 AND status != ?`
	result, err := r.db.ExecContext(ctx, query, userID, freePlan, keepID, string(models.SubscriptionScheduled))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *SQLiteSubscriptionRepository) DueForActivation(ctx context.Context, now time.Time) ([]*models.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions
		WHERE status = ? AND start_date <= ? ORDER BY start_date ASC`
	return r.queryMany(ctx, query, string(models.SubscriptionScheduled), formatTime(now))
}

func (r *SQLiteSubscriptionRepository) DueForRenewal(ctx context.Context, now time.Time) ([]*models.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions
		WHERE active = 1 AND end_date <= ? ORDER BY end_date ASC`
	return r.queryMany(ctx, query, formatTime(now))
}
