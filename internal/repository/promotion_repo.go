package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmylchreest/codecredit-api/internal/models"
)

// ========================================
// Promotion Repository
// ========================================

// SQLitePromotionRepository implements PromotionRepository for SQLite.
type SQLitePromotionRepository struct {
	db DBTX
}

// NewSQLitePromotionRepository creates a new SQLite promotion repository.
func NewSQLitePromotionRepository(db DBTX) *SQLitePromotionRepository {
	return &SQLitePromotionRepository{db: db}
}

const promotionColumns = `id, offer_name, credits, start_date, end_date, created_by, created_at, updated_at`

func scanPromotion(row scanner, extra ...any) (*models.Promotion, error) {
	var p models.Promotion
	var startDate, endDate, createdAt, updatedAt string
	dest := []any{&p.ID, &p.OfferName, &p.Credits, &startDate, &endDate, &p.CreatedBy, &createdAt, &updatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	p.StartDate = parseTime(startDate)
	p.EndDate = parseTime(endDate)
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

func (r *SQLitePromotionRepository) Create(ctx context.Context, p *models.Promotion) error {
	query := `INSERT INTO promotions (` + promotionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(offer_name) DO NOTHING`
	result, err := r.db.ExecContext(ctx, query, p.ID, p.OfferName, p.Credits, formatTime(p.StartDate), formatTime(p.EndDate),
		p.CreatedBy, formatTime(p.CreatedAt), formatTime(p.UpdatedAt))
	if err != nil {
		return err
	}
	return insertedOrDuplicate(result)
}

func (r *SQLitePromotionRepository) GetByID(ctx context.Context, id string) (*models.Promotion, error) {
	p, err := scanPromotion(r.db.QueryRowContext(ctx, `SELECT `+promotionColumns+` FROM promotions WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

func (r *SQLitePromotionRepository) GetByOfferName(ctx context.Context, offerName string) (*models.Promotion, error) {
	p, err := scanPromotion(r.db.QueryRowContext(ctx, `SELECT `+promotionColumns+` FROM promotions WHERE offer_name = ?`, offerName))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

func (r *SQLitePromotionRepository) Update(ctx context.Context, p *models.Promotion) error {
	query := `UPDATE promotions SET offer_name = ?, credits = ?, start_date = ?, end_date = ?, updated_at = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, p.OfferName, p.Credits, formatTime(p.StartDate), formatTime(p.EndDate),
		formatTime(p.UpdatedAt), p.ID)
	if err != nil {
		return err
	}
	return expectOneRow(result)
}

func (r *SQLitePromotionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM promotions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectOneRow(result)
}

func (r *SQLitePromotionRepository) List(ctx context.Context) ([]*models.Promotion, error) {
	query := `SELECT p.id, p.offer_name, p.credits, p.start_date, p.end_date, p.created_by, p.created_at, p.updated_at,
			(SELECT COUNT(*) FROM promotional_credits c WHERE c.offer_name = p.offer_name)
		FROM promotions p ORDER BY p.created_at DESC, p.id DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var promos []*models.Promotion
	for rows.Next() {
		var count int
		p, err := scanPromotion(rows, &count)
		if err != nil {
			return nil, err
		}
		p.UserCount = count
		promos = append(promos, p)
	}
	return promos, rows.Err()
}

func (r *SQLitePromotionRepository) ListActive(ctx context.Context, now time.Time) ([]*models.Promotion, error) {
	query := `SELECT ` + promotionColumns + ` FROM promotions WHERE start_date <= ? AND end_date >= ? ORDER BY start_date`
	ts := formatTime(now)
	rows, err := r.db.QueryContext(ctx, query, ts, ts)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var promos []*models.Promotion
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, err
		}
		promos = append(promos, p)
	}
	return promos, rows.Err()
}

// ========================================
// Promotional Credit Repository
// ========================================

// SQLitePromotionalCreditRepository implements PromotionalCreditRepository for SQLite.
type SQLitePromotionalCreditRepository struct {
	db DBTX
}

// NewSQLitePromotionalCreditRepository creates a new SQLite promotional credit repository.
func NewSQLitePromotionalCreditRepository(db DBTX) *SQLitePromotionalCreditRepository {
	return &SQLitePromotionalCreditRepository{db: db}
}

const promotionalCreditColumns = `id, user_id, offer_name, amount, start_date, end_date, created_at`

func scanPromotionalCredit(row scanner) (*models.PromotionalCredit, error) {
	var p models.PromotionalCredit
	var startDate, endDate, createdAt string
	if err := row.Scan(&p.ID, &p.UserID, &p.OfferName, &p.Amount, &startDate, &endDate, &createdAt); err != nil {
		return nil, err
	}
	p.StartDate = parseTime(startDate)
	p.EndDate = parseTime(endDate)
	p.CreatedAt = parseTime(createdAt)
	return &p, nil
}

// Create claims the promotion for the user and inserts the entry. Callers run
// it inside a transaction so the claim and the entry land together.
func (r *SQLitePromotionalCreditRepository) Create(ctx context.Context, promotionID string, p *models.PromotionalCredit) (bool, error) {
	claim, err := r.db.ExecContext(ctx, `INSERT INTO promotion_claims (promotion_id, user_id, created_at) VALUES (?, ?, ?)
		ON CONFLICT(promotion_id, user_id) DO NOTHING`, promotionID, p.UserID, formatTime(p.CreatedAt))
	if err != nil {
		return false, err
	}
	if n, err := claim.RowsAffected(); err != nil || n == 0 {
		return false, err
	}

	query := `INSERT INTO promotional_credits (` + promotionalCreditColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, offer_name) DO NOTHING`
	result, err := r.db.ExecContext(ctx, query, p.ID, p.UserID, p.OfferName, p.Amount,
		formatTime(p.StartDate), formatTime(p.EndDate), formatTime(p.CreatedAt))
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n == 1, err
}

func (r *SQLitePromotionalCreditRepository) GetByID(ctx context.Context, id string) (*models.PromotionalCredit, error) {
	query := `SELECT ` + promotionalCreditColumns + ` FROM promotional_credits WHERE id = ?`
	p, err := scanPromotionalCredit(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

// ListByUser returns entries in grant order, which is also consumption order.
func (r *SQLitePromotionalCreditRepository) ListByUser(ctx context.Context, userID string) ([]*models.PromotionalCredit, error) {
	query := `SELECT ` + promotionalCreditColumns + ` FROM promotional_credits WHERE user_id = ? ORDER BY created_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []*models.PromotionalCredit
	for rows.Next() {
		p, err := scanPromotionalCredit(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, p)
	}
	return entries, rows.Err()
}

func (r *SQLitePromotionalCreditRepository) UserIDsUnclaimed(ctx context.Context, promotionID string) ([]string, error) {
	query := `SELECT u.id FROM users u
		WHERE NOT EXISTS (SELECT 1 FROM promotion_claims pc WHERE pc.user_id = u.id AND pc.promotion_id = ?)
		ORDER BY u.created_at, u.id`
	rows, err := r.db.QueryContext(ctx, query, promotionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *SQLitePromotionalCreditRepository) Decrement(ctx context.Context, id string, now time.Time) error {
	query := `UPDATE promotional_credits SET amount = amount - 1
		WHERE id = ? AND amount > 0 AND start_date <= ? AND end_date >= ?`
	ts := formatTime(now)
	result, err := r.db.ExecContext(ctx, query, id, ts, ts)
	if err != nil {
		return err
	}
	return expectOneRow(result)
}

func (r *SQLitePromotionalCreditRepository) DeleteIfEmpty(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM promotional_credits WHERE id = ? AND amount = 0`, id)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n == 1, err
}

func (r *SQLitePromotionalCreditRepository) UpdateByOfferName(ctx context.Context, offerName string, u PromotionalUpdate) (int64, error) {
	query := `UPDATE promotional_credits SET offer_name = ?, amount = COALESCE(?, amount), start_date = ?, end_date = ?
		WHERE offer_name = ?`
	result, err := r.db.ExecContext(ctx, query, u.OfferName, u.Amount, formatTime(u.StartDate), formatTime(u.EndDate), offerName)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *SQLitePromotionalCreditRepository) DeleteByOfferName(ctx context.Context, offerName string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM promotional_credits WHERE offer_name = ?`, offerName)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *SQLitePromotionalCreditRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM promotional_credits WHERE end_date < ?`, formatTime(now))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
