// Package migrations holds the versioned schema changes for the ledger
// database. Each file registers one Migration from init; versions are
// YYYYMMDD-HHmmss timestamps and sort lexically.
package migrations

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// Migration is one schema change.
type Migration struct {
	Timestamp   string // YYYYMMDD-HHmmss, unique
	Description string
	Up          []string
}

// State pairs a registered migration with when it was applied.
// AppliedAt is zero for pending migrations.
type State struct {
	Migration
	AppliedAt time.Time
}

// Pending reports whether the migration has not been applied.
func (s State) Pending() bool {
	return s.AppliedAt.IsZero()
}

const createTrackingTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version TEXT PRIMARY KEY,
	description TEXT NOT NULL,
	applied_at TEXT NOT NULL
)`

var registry = map[string]Migration{}

// Register adds m to the set run by Run. A duplicate timestamp panics.
func Register(m Migration) {
	if _, dup := registry[m.Timestamp]; dup {
		panic(fmt.Sprintf("migrations: duplicate version %s", m.Timestamp))
	}
	registry[m.Timestamp] = m
}

func ordered() []Migration {
	out := make([]Migration, 0, len(registry))
	for _, m := range registry {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}

// Run applies every pending migration in version order. Each migration
// runs in its own transaction together with its tracking row.
func Run(db *sql.DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	states, err := Status(db)
	if err != nil {
		return err
	}

	applied := 0
	for _, st := range states {
		if !st.Pending() {
			continue
		}
		logger.Info("running migration", "version", st.Timestamp, "description", st.Description)
		if err := apply(db, st.Migration); err != nil {
			return fmt.Errorf("migration %s (%s) failed: %w", st.Timestamp, st.Description, err)
		}
		applied++
	}

	if applied > 0 {
		logger.Info("database schema ready", "applied", applied, "version", states[len(states)-1].Timestamp)
	}
	return nil
}

// Status lists every registered migration in version order with its
// applied time, creating the tracking table when it is missing.
func Status(db *sql.DB) ([]State, error) {
	if _, err := db.Exec(createTrackingTable); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.Query(`SELECT version, applied_at FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("failed to read applied migrations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	appliedAt := make(map[string]time.Time)
	for rows.Next() {
		var version, at string
		if err := rows.Scan(&version, &at); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return nil, fmt.Errorf("migration %s has bad applied_at %q: %w", version, at, err)
		}
		appliedAt[version] = t
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var states []State
	for _, m := range ordered() {
		states = append(states, State{Migration: m, AppliedAt: appliedAt[m.Timestamp]})
	}
	return states, nil
}

// GetPendingMigrations returns the migrations Run would apply.
func GetPendingMigrations(db *sql.DB) ([]Migration, error) {
	states, err := Status(db)
	if err != nil {
		return nil, err
	}
	var pending []Migration
	for _, st := range states {
		if st.Pending() {
			pending = append(pending, st.Migration)
		}
	}
	return pending, nil
}

func apply(db *sql.DB, m Migration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range m.Up {
		if _, err := tx.Exec(stmt); err != nil && !alreadyApplied(err) {
			return fmt.Errorf("failed to execute statement: %w\n%s", err, stmt)
		}
	}

	if _, err := tx.Exec(
		`INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)`,
		m.Timestamp, m.Description, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	return tx.Commit()
}

// alreadyApplied matches errors from re-adding a column that exists.
// Tables and indexes use IF NOT EXISTS instead.
func alreadyApplied(err error) bool {
	return strings.Contains(err.Error(), "duplicate column")
}
