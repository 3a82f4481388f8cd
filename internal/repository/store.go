package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Store pairs the non-transactional repositories with a way to run a unit
// of work inside one database transaction.
type Store struct {
	*Repositories
	db *sql.DB
}

// NewStore creates a store on db.
func NewStore(db *sql.DB) *Store {
	return &Store{Repositories: NewRepositories(db), db: db}
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// WithinTx runs fn with repositories bound to a new transaction. The
// transaction commits if fn returns nil and rolls back otherwise.
//
// Every query inside fn must go through the supplied repositories: the
// local SQLite pool has a single connection which the transaction holds.
func (s *Store) WithinTx(ctx context.Context, fn func(r *Repositories) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(NewRepositories(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func nullStringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// expectOneRow converts a guarded UPDATE/DELETE result into ErrConditionFailed
// when no row matched.
func expectOneRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConditionFailed
	}
	return nil
}

// insertedOrDuplicate maps an INSERT ... ON CONFLICT DO NOTHING that
// inserted nothing to ErrDuplicate.
func insertedOrDuplicate(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrDuplicate
	}
	return nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}
