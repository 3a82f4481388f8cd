package repository

import (
	"context"

	"github.com/jmylchreest/codecredit-api/internal/models"
)

// SQLiteAdminGrantRepository implements AdminGrantRepository for SQLite.
type SQLiteAdminGrantRepository struct {
	db DBTX
}

// NewSQLiteAdminGrantRepository creates a new SQLite admin grant repository.
func NewSQLiteAdminGrantRepository(db DBTX) *SQLiteAdminGrantRepository {
	return &SQLiteAdminGrantRepository{db: db}
}

func (r *SQLiteAdminGrantRepository) Create(ctx context.Context, g *models.AdminGrant) error {
	query := `INSERT INTO admin_grants (id, admin_id, user_id, credits, reason, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, g.ID, g.AdminID, g.UserID, g.Credits, g.Reason, formatTime(g.CreatedAt))
	return err
}

func (r *SQLiteAdminGrantRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.AdminGrant, error) {
	query := `SELECT id, admin_id, user_id, credits, reason, created_at FROM admin_grants
		WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var grants []*models.AdminGrant
	for rows.Next() {
		var g models.AdminGrant
		var createdAt string
		if err := rows.Scan(&g.ID, &g.AdminID, &g.UserID, &g.Credits, &g.Reason, &createdAt); err != nil {
			return nil, err
		}
		g.CreatedAt = parseTime(createdAt)
		grants = append(grants, &g)
	}
	return grants, rows.Err()
}
