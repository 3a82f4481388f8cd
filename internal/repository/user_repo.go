package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmylchreest/codecredit-api/internal/models"
)

// ========================================
// User Repository
// ========================================

// SQLiteUserRepository implements UserRepository for SQLite.
type SQLiteUserRepository struct {
	db DBTX
}

// NewSQLiteUserRepository creates a new SQLite user repository.
func NewSQLiteUserRepository(db DBTX) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db}
}

const userColumns = `id, email, name, role, wallet_balance_paisa, credits_free, credits_purchased, credits_granted,
	auto_renew, active_subscription_id, registered_at, created_at, updated_at`

func scanUser(row scanner) (*models.User, error) {
	var u models.User
	var autoRenew int
	var activeSub sql.NullString
	var registeredAt, createdAt, updatedAt string
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.WalletBalancePaisa,
		&u.Credits.Free, &u.Credits.Purchased, &u.Credits.Granted,
		&autoRenew, &activeSub, &registeredAt, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	u.AutoRenew = autoRenew == 1
	u.ActiveSubscriptionID = nullStringPtr(activeSub)
	u.RegisteredAt = parseTime(registeredAt)
	u.CreatedAt = parseTime(createdAt)
	u.UpdatedAt = parseTime(updatedAt)
	return &u, nil
}

func (r *SQLiteUserRepository) Create(ctx context.Context, u *models.User) error {
	query := `INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`
	result, err := r.db.ExecContext(ctx, query, u.ID, u.Email, u.Name, u.Role, u.WalletBalancePaisa,
		u.Credits.Free, u.Credits.Purchased, u.Credits.Granted,
		boolToInt(u.AutoRenew), u.ActiveSubscriptionID,
		formatTime(u.RegisteredAt), formatTime(u.CreatedAt), formatTime(u.UpdatedAt))
	if err != nil {
		return err
	}
	return insertedOrDuplicate(result)
}

func (r *SQLiteUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	u, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

func (r *SQLiteUserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC, id LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *SQLiteUserRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

func (r *SQLiteUserRepository) UpdateProfile(ctx context.Context, id, email, name string) error {
	return r.update(ctx, `UPDATE users SET email = ?, name = ?, updated_at = ? WHERE id = ?`, email, name, formatTime(time.Now()), id)
}

func (r *SQLiteUserRepository) SetRole(ctx context.Context, id, role string) error {
	return r.update(ctx, `UPDATE users SET role = ?, updated_at = ? WHERE id = ?`, role, formatTime(time.Now()), id)
}

func (r *SQLiteUserRepository) SetAutoRenew(ctx context.Context, id string, autoRenew bool) error {
	return r.update(ctx, `UPDATE users SET auto_renew = ?, updated_at = ? WHERE id = ?`, boolToInt(autoRenew), formatTime(time.Now()), id)
}

func (r *SQLiteUserRepository) SetActiveSubscription(ctx context.Context, id string, subscriptionID *string) error {
	return r.update(ctx, `UPDATE users SET active_subscription_id = ?, updated_at = ? WHERE id = ?`, subscriptionID, formatTime(time.Now()), id)
}

func (r *SQLiteUserRepository) AdjustWallet(ctx context.Context, id string, delta int64) error {
	query := `UPDATE users SET wallet_balance_paisa = wallet_balance_paisa + ?, updated_at = ?
		WHERE id = ? AND wallet_balance_paisa + ? >= 0`
	return r.update(ctx, query, delta, formatTime(time.Now()), id, delta)
}

func (r *SQLiteUserRepository) AddCredits(ctx context.Context, id string, pool CreditPool, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("credit amount must be positive, got %d", amount)
	}
	column, err := poolColumn(pool)
	if err != nil {
		return err
	}
	query := `UPDATE users SET ` + column + ` = ` + column + ` + ?, updated_at = ? WHERE id = ?`
	return r.update(ctx, query, amount, formatTime(time.Now()), id)
}

func (r *SQLiteUserRepository) DecrementCredit(ctx context.Context, id string, pool CreditPool) error {
	column, err := poolColumn(pool)
	if err != nil {
		return err
	}
	query := `UPDATE users SET ` + column + ` = ` + column + ` - 1, updated_at = ? WHERE id = ? AND ` + column + ` > 0`
	return r.update(ctx, query, formatTime(time.Now()), id)
}

func (r *SQLiteUserRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	return err
}

func (r *SQLiteUserRepository) update(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return expectOneRow(result)
}

func poolColumn(pool CreditPool) (string, error) {
	switch pool {
	case PoolPurchased:
		return "credits_purchased", nil
	case PoolGranted:
		return "credits_granted", nil
	}
	return "", fmt.Errorf("unknown credit pool %q", pool)
}
