// Package database opens the libsql ledger database and applies its
// schema migrations.
package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/tursodatabase/go-libsql"

	"github.com/jmylchreest/codecredit-api/internal/database/migrations"
)

// New opens the database named by dsn.
//
//   - "file:codecredit.db" or ":memory:" opens a local SQLite file.
//   - "http://..." or "libsql://..." talks to a libsql server.
//   - A local dsn with TURSO_URL and TURSO_AUTH_TOKEN set becomes an
//     embedded replica synced with Turso.
func New(dsn string) (*sql.DB, error) {
	db, err := open(dsn, os.Getenv("TURSO_URL"), os.Getenv("TURSO_AUTH_TOKEN"))
	if err != nil {
		return nil, err
	}

	// Every ledger write is a read-modify-write transaction. One local
	// connection queues them in process rather than failing with SQLITE_BUSY.
	if isLocal(dsn) {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func open(dsn, replicaURL, replicaToken string) (*sql.DB, error) {
	if replicaURL == "" || replicaToken == "" || !isLocal(dsn) {
		db, err := sql.Open("libsql", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		return db, nil
	}

	connector, err := libsql.NewEmbeddedReplicaConnector(localPath(dsn), replicaURL,
		libsql.WithAuthToken(replicaToken),
		libsql.WithReadYourWrites(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create replica connector: %w", err)
	}
	return sql.OpenDB(connector), nil
}

func isLocal(dsn string) bool {
	return !strings.HasPrefix(dsn, "http://") &&
		!strings.HasPrefix(dsn, "https://") &&
		!strings.HasPrefix(dsn, "libsql://")
}

// localPath strips the file: scheme and query parameters.
func localPath(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	path, _, _ = strings.Cut(path, "?")
	return path
}

// MigrateWithLogger applies pending migrations, logging each one.
func MigrateWithLogger(db *sql.DB, logger *slog.Logger) error {
	return migrations.Run(db, logger)
}

// GetPendingMigrations returns migrations that haven't been applied yet.
func GetPendingMigrations(db *sql.DB) ([]migrations.Migration, error) {
	return migrations.GetPendingMigrations(db)
}
