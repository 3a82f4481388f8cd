package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/oklog/ulid/v2"
	_ "github.com/tursodatabase/go-libsql"

	"github.com/jmylchreest/codecredit-api/internal/config"
	"github.com/jmylchreest/codecredit-api/internal/database/migrations"
	"github.com/jmylchreest/codecredit-api/internal/executor"
	"github.com/jmylchreest/codecredit-api/internal/models"
	"github.com/jmylchreest/codecredit-api/internal/plans"
	"github.com/jmylchreest/codecredit-api/internal/repository"
)

var testNow = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

// ========================================
// Clock
// ========================================

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: testNow}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// ========================================
// Runner
// ========================================

type mockRunner struct {
	mu       sync.Mutex
	requests []executor.Request
	response *executor.Response
	err      error
	onRun    func(ctx context.Context) // runs before the reply
}

func (m *mockRunner) Run(ctx context.Context, req executor.Request) (*executor.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.onRun != nil {
		m.onRun(ctx)
	}
	if m.err != nil {
		return nil, m.err
	}
	if m.response != nil {
		resp := *m.response
		return &resp, nil
	}
	return &executor.Response{Output: "ok\n"}, nil
}

func (m *mockRunner) set(resp *executor.Response, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = resp
	m.err = err
}

func (m *mockRunner) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// ========================================
// Object storage
// ========================================

type mockPutter struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func (m *mockPutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.objects[*in.Key] = body
	return &s3.PutObjectOutput{}, nil
}

func (m *mockPutter) get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[key]
	return b, ok
}

// ========================================
// Fixture
// ========================================

type fixture struct {
	store   *repository.Store
	svcs    *Services
	clock   *testClock
	runner  *mockRunner
	objects *mockPutter
	cfg     *config.Config
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestStore(t *testing.T) *repository.Store {
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
	return repository.NewStore(db)
}

// newFixture builds every service on an in-memory store with a pinned clock.
// Options may adjust the config before services are built.
func newFixture(t *testing.T, opts ...func(*config.Config)) *fixture {
	t.Helper()

	cfg := &config.Config{
		EncryptionKey:   make([]byte, 32),
		ExecutorTimeout: 2 * time.Second,
		StorageBucket:   "statements-test",
		Billing:         config.DefaultBillingConfig(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	f := &fixture{
		store:   setupTestStore(t),
		clock:   newTestClock(),
		runner:  &mockRunner{},
		objects: &mockPutter{objects: make(map[string][]byte)},
		cfg:     cfg,
	}

	svcs, err := NewServices(cfg, Deps{
		Store:   f.store,
		Catalog: plans.Default(),
		Runner:  f.runner,
		Objects: f.objects,
		Clock:   f.clock.Now,
		Logger:  discardLogger(),
	})
	if err != nil {
		t.Fatalf("NewServices() error = %v", err)
	}
	f.svcs = svcs
	return f
}

// register creates a user at the current clock time.
func (f *fixture) register(t *testing.T, userID string) *models.User {
	t.Helper()
	u, err := f.svcs.Subscription.Register(t.Context(), userID, userID+"@example.com", "Test "+userID)
	if err != nil {
		t.Fatalf("Register(%s) error = %v", userID, err)
	}
	return u
}

// fund deposits amount into the user's wallet.
func (f *fixture) fund(t *testing.T, userID string, amount int64) {
	t.Helper()
	if _, err := f.svcs.Wallet.Deposit(t.Context(), userID, amount, "cs_"+ulid.Make().String()); err != nil {
		t.Fatalf("Deposit(%s, %d) error = %v", userID, amount, err)
	}
}

func (f *fixture) user(t *testing.T, userID string) *models.User {
	t.Helper()
	u, err := f.store.User.GetByID(t.Context(), userID)
	if err != nil || u == nil {
		t.Fatalf("GetByID(%s) = %v, %v", userID, u, err)
	}
	return u
}

func (f *fixture) active(t *testing.T, userID string) *models.Subscription {
	t.Helper()
	sub, err := f.store.Subscription.GetActive(t.Context(), userID)
	if err != nil {
		t.Fatalf("GetActive(%s) error = %v", userID, err)
	}
	return sub
}

// assertOneActive checks that exactly one subscription row is active and
// that the user's cached ID points at it.
func (f *fixture) assertOneActive(t *testing.T, userID string) *models.Subscription {
	t.Helper()
	subs, err := f.store.Subscription.ListByUser(t.Context(), userID)
	if err != nil {
		t.Fatalf("ListByUser(%s) error = %v", userID, err)
	}
	var active []*models.Subscription
	for _, s := range subs {
		if s.Active {
			active = append(active, s)
		}
		if s.Active && s.Status == models.SubscriptionScheduled {
			t.Errorf("subscription %s is scheduled and active", s.ID)
		}
	}
	if len(active) != 1 {
		t.Fatalf("active subscriptions = %d, want 1", len(active))
	}
	u := f.user(t, userID)
	if u.ActiveSubscriptionID == nil || *u.ActiveSubscriptionID != active[0].ID {
		t.Errorf("cached active subscription = %v, want %s", u.ActiveSubscriptionID, active[0].ID)
	}
	return active[0]
}

func (f *fixture) transactions(t *testing.T, userID string, txType models.TransactionType) []*models.Transaction {
	t.Helper()
	txs, err := f.store.Transaction.ListByUser(t.Context(), userID, 1000, 0)
	if err != nil {
		t.Fatalf("ListByUser transactions error = %v", err)
	}
	var out []*models.Transaction
	for _, tx := range txs {
		if tx.Type == txType {
			out = append(out, tx)
		}
	}
	return out
}

// spend selects and commits one execution, failing the test on error.
func (f *fixture) spend(t *testing.T, userID string) models.CreditSource {
	t.Helper()
	src, err := f.trySpend(t, userID)
	if err != nil {
		t.Fatalf("spend(%s) error = %v", userID, err)
	}
	return src
}

func (f *fixture) trySpend(t *testing.T, userID string) (models.CreditSource, error) {
	t.Helper()
	res, err := f.svcs.Ledger.SelectSource(t.Context(), userID)
	if err != nil {
		return models.CreditSource{}, err
	}
	exec := &models.Execution{Language: "python", Code: "x", Status: models.ExecutionSuccess}
	if err := f.svcs.Ledger.Commit(t.Context(), res, exec); err != nil {
		return models.CreditSource{}, err
	}
	return res.Source, nil
}

func isExhausted(err error) bool {
	var ex *ExhaustedError
	return errors.As(err, &ex)
}
