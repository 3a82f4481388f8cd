package handlers

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/jmylchreest/codecredit-api/internal/auth"
	"github.com/jmylchreest/codecredit-api/internal/config"
	"github.com/jmylchreest/codecredit-api/internal/database/migrations"
	"github.com/jmylchreest/codecredit-api/internal/executor"
	"github.com/jmylchreest/codecredit-api/internal/plans"
	"github.com/jmylchreest/codecredit-api/internal/repository"
	"github.com/jmylchreest/codecredit-api/internal/service"
)

var testNow = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type okRunner struct{}

func (okRunner) Run(_ context.Context, _ executor.Request) (*executor.Response, error) {
	return &executor.Response{Output: "ok\n"}, nil
}

// newTestServices builds the real services on an in-memory database.
func newTestServices(t *testing.T) *service.Services {
	t.Helper()

	db, err := sql.Open("libsql", ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}
	if err := migrations.Run(db, nil); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	cfg := &config.Config{
		EncryptionKey:   make([]byte, 32),
		ExecutorTimeout: 2 * time.Second,
		Billing:         config.DefaultBillingConfig(),
	}
	svcs, err := service.NewServices(cfg, service.Deps{
		Store:   repository.NewStore(db),
		Catalog: plans.Default(),
		Runner:  okRunner{},
		Clock:   func() time.Time { return testNow },
		Logger:  discardLogger(),
	})
	if err != nil {
		t.Fatalf("NewServices() error = %v", err)
	}
	return svcs
}

func userCtx(ctx context.Context, userID string) context.Context {
	return auth.WithClaims(ctx, &auth.Claims{UserID: userID, Email: userID + "@example.com", Name: "Test " + userID})
}
