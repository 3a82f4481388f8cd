package repository

import (
	"database/sql"
	"testing"
	"time"

	"github.com/jmylchreest/codecredit-api/internal/database/migrations"
	"github.com/jmylchreest/codecredit-api/internal/models"
	_ "github.com/tursodatabase/go-libsql"
)

// setupTestDB creates an in-memory SQLite database for testing.
// Each pooled connection to :memory: is a separate database, so the pool
// is pinned to one connection.
func setupTestDB(t *testing.T) *sql.DB {
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

	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

// setupTestStore creates a store using a test database.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(setupTestDB(t))
}

var testNow = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

// insertTestUser is a helper to insert a user with the given pools.
func insertTestUser(t *testing.T, s *Store, id string, purchased, granted int) *models.User {
	t.Helper()
	u := &models.User{
		ID:           id,
		Email:        id + "@example.com",
		Role:         models.RoleUser,
		Credits:      models.Credits{Free: models.DefaultFreeCredits, Purchased: purchased, Granted: granted},
		RegisteredAt: testNow,
		CreatedAt:    testNow,
		UpdatedAt:    testNow,
	}
	if err := s.User.Create(t.Context(), u); err != nil {
		t.Fatalf("failed to insert test user: %v", err)
	}
	return u
}

// insertTestSubscription is a helper to insert a subscription row.
func insertTestSubscription(t *testing.T, s *Store, id, userID, plan string, active bool, status models.SubscriptionStatus, start, end time.Time) *models.Subscription {
	t.Helper()
	sub := &models.Subscription{
		ID:            id,
		UserID:        userID,
		Plan:          plan,
		CreditsPerDay: 15,
		StartDate:     start,
		EndDate:       end,
		Active:        active,
		Status:        status,
		CreatedAt:     testNow,
		UpdatedAt:     testNow,
	}
	if err := s.Subscription.Create(t.Context(), sub); err != nil {
		t.Fatalf("failed to insert test subscription: %v", err)
	}
	return sub
}
