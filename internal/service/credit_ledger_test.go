package service

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jmylchreest/codecredit-api/internal/models"
	"github.com/jmylchreest/codecredit-api/internal/plans"
	"github.com/jmylchreest/codecredit-api/internal/repository"
)

func (f *fixture) addPool(t *testing.T, userID string, pool repository.CreditPool, n int) {
	t.Helper()
	if err := f.store.User.AddCredits(t.Context(), userID, pool, n); err != nil {
		t.Fatalf("AddCredits(%s, %s, %d) error = %v", userID, pool, n, err)
	}
}

func (f *fixture) subscribe(t *testing.T, userID, planID string) *models.Subscription {
	t.Helper()
	plan, err := f.svcs.Catalog.Lookup(planID)
	if err != nil {
		t.Fatalf("Lookup(%s) error = %v", planID, err)
	}
	f.fund(t, userID, max(plan.PricePaisa, f.cfg.Billing.MinDepositPaisa))
	sub, err := f.svcs.Subscription.Subscribe(t.Context(), userID, planID)
	if err != nil {
		t.Fatalf("Subscribe(%s, %s) error = %v", userID, planID, err)
	}
	return sub
}

func (f *fixture) executionCount(t *testing.T, userID string) int {
	t.Helper()
	n, err := f.store.Execution.CountSince(t.Context(), userID, time.Time{})
	if err != nil {
		t.Fatalf("CountSince error = %v", err)
	}
	return n
}

// ========================================
// Selection order
// ========================================

func TestCreditLedger_SubscriptionBeforeOtherPools(t *testing.T) {
	f := newFixture(t)
	f.register(t, "u1")
	f.subscribe(t, "u1", plans.Monthly)
	f.addPool(t, "u1", repository.PoolPurchased, 5)
	f.addPool(t, "u1", repository.PoolGranted, 5)
	if _, err := f.svcs.Promotion.Create(t.Context(), PromotionInput{
		OfferName: "launch", Credits: 5, StartDate: testNow.Add(-time.Hour), EndDate: testNow.Add(24 * time.Hour),
	}, "admin"); err != nil {
		t.Fatalf("Create promotion error = %v", err)
	}

	for i := 0; i < 3; i++ {
		if src := f.spend(t, "u1"); src.Kind != models.SourceSubscription || src.Unlimited {
			t.Fatalf("spend %d source = %v, want metered subscription", i, src)
		}
	}
	u := f.user(t, "u1")
	if u.Credits.Purchased != 5 || u.Credits.Granted != 5 {
		t.Errorf("pools = %d/%d, want 5/5", u.Credits.Purchased, u.Credits.Granted)
	}
}

func TestCreditLedger_FallsThroughPoolsInOrder(t *testing.T) {
	f := newFixture(t)
	f.register(t, "u1")
	f.addPool(t, "u1", repository.PoolPurchased, 1)
	f.addPool(t, "u1", repository.PoolGranted, 1)
	if _, err := f.svcs.Promotion.Create(t.Context(), PromotionInput{
		OfferName: "welcome", Credits: 1, StartDate: testNow.Add(-time.Hour), EndDate: testNow.Add(time.Hour),
	}, "admin"); err != nil {
		t.Fatalf("Create promotion error = %v", err)
	}

	want := []models.CreditSourceKind{models.SourcePurchased, models.SourceGranted, models.SourcePromotional, models.SourceFree}
	for i, kind := range want {
		if src := f.spend(t, "u1"); src.Kind != kind {
			t.Errorf("spend %d source = %s, want %s", i, src.Kind, kind)
		}
	}

	u := f.user(t, "u1")
	if u.Credits.Purchased != 0 || u.Credits.Granted != 0 {
		t.Errorf("pools = %d/%d, want 0/0", u.Credits.Purchased, u.Credits.Granted)
	}
	entries, err := f.store.PromotionalCredit.ListByUser(t.Context(), "u1")
	if err != nil {
		t.Fatalf("ListByUser error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("promotional entries = %d, want 0 (spent entry pruned)", len(entries))
	}
}

func TestCreditLedger_ExpiredPromotionIgnored(t *testing.T) {
	f := newFixture(t)
	f.register(t, "u1")
	if _, err := f.svcs.Promotion.Create(t.Context(), PromotionInput{
		OfferName: "flash", Credits: 10, StartDate: testNow.Add(-2 * time.Hour), EndDate: testNow.Add(time.Hour),
	}, "admin"); err != nil {
		t.Fatalf("Create promotion error = %v", err)
	}

	f.clock.Advance(2 * time.Hour)
	if src := f.spend(t, "u1"); src.Kind != models.SourceFree {
		t.Errorf("source = %s, want free", src.Kind)
	}
}

// ========================================
// Exhaustion and daily reset
// ========================================

func TestCreditLedger_FreeExhaustionAndReset(t *testing.T) {
	f := newFixture(t)
	f.register(t, "u1")

	for i := 0; i < 15; i++ {
		if src := f.spend(t, "u1"); src.Kind != models.SourceFree {
			t.Fatalf("spend %d source = %s, want free", i, src.Kind)
		}
	}

	_, err := f.svcs.Ledger.SelectSource(t.Context(), "u1")
	var ex *ExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("SelectSource() error = %v, want ExhaustedError", err)
	}
	if !errors.Is(err, ErrExhausted) {
		t.Error("errors.Is(err, ErrExhausted) = false")
	}
	if ex.Remediation != RemediationPurchaseCredits {
		t.Errorf("Remediation = %q, want %q", ex.Remediation, RemediationPurchaseCredits)
	}
	if len(ex.UpgradePlans) != 4 {
		t.Errorf("UpgradePlans = %v, want 4 paid plans", ex.UpgradePlans)
	}

	// Still the same day.
	f.clock.Set(time.Date(2026, 10, 14, 23, 59, 59, 0, time.UTC))
	if _, err := f.trySpend(t, "u1"); !isExhausted(err) {
		t.Errorf("spend at 23:59:59 error = %v, want exhausted", err)
	}

	f.clock.Set(time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC))
	if src := f.spend(t, "u1"); src.Kind != models.SourceFree {
		t.Errorf("spend next day source = %s, want free", src.Kind)
	}
}

func TestCreditLedger_PaidPlanDoesNotFallBackToFree(t *testing.T) {
	f := newFixture(t)
	f.register(t, "u1")
	sub := f.subscribe(t, "u1", plans.Monthly)

	sub.CreditsPerDay = 2
	if err := f.store.Subscription.Update(t.Context(), sub); err != nil {
		t.Fatalf("Update error = %v", err)
	}

	f.spend(t, "u1")
	f.spend(t, "u1")
	if _, err := f.trySpend(t, "u1"); !isExhausted(err) {
		t.Errorf("third spend error = %v, want exhausted", err)
	}

	f.addPool(t, "u1", repository.PoolGranted, 1)
	if src := f.spend(t, "u1"); src.Kind != models.SourceGranted {
		t.Errorf("source after grant = %s, want granted", src.Kind)
	}
}

func TestCreditLedger_UnknownUser(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svcs.Ledger.SelectSource(t.Context(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("SelectSource() error = %v, want ErrNotFound", err)
	}
}

// ========================================
// Unlimited
// ========================================

func TestCreditLedger_UnlimitedNeverCountsOrDecrements(t *testing.T) {
	f := newFixture(t)
	f.register(t, "u1")
	f.subscribe(t, "u1", plans.Yearly)
	f.addPool(t, "u1", repository.PoolPurchased, 3)
	f.addPool(t, "u1", repository.PoolGranted, 2)

	n := 10000
	if testing.Short() {
		n = 500
	}
	for i := 0; i < n; i++ {
		src, err := f.trySpend(t, "u1")
		if err != nil {
			t.Fatalf("spend %d error = %v", i, err)
		}
		if src.Kind != models.SourceSubscription || !src.Unlimited {
			t.Fatalf("spend %d source = %v, want unlimited subscription", i, src)
		}
	}

	u := f.user(t, "u1")
	if u.Credits.Purchased != 3 || u.Credits.Granted != 2 {
		t.Errorf("pools = %d/%d, want 3/2", u.Credits.Purchased, u.Credits.Granted)
	}
	if got := f.executionCount(t, "u1"); got != n {
		t.Errorf("execution records = %d, want %d", got, n)
	}
}

// ========================================
// Commit
// ========================================

func TestCreditLedger_CommitIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.register(t, "u1")
	f.addPool(t, "u1", repository.PoolPurchased, 3)

	res, err := f.svcs.Ledger.SelectSource(t.Context(), "u1")
	if err != nil {
		t.Fatalf("SelectSource() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		exec := &models.Execution{Language: "c", Code: "x", Status: models.ExecutionFailed}
		if err := f.svcs.Ledger.Commit(t.Context(), res, exec); err != nil {
			t.Fatalf("Commit %d error = %v", i, err)
		}
	}

	if got := f.user(t, "u1").Credits.Purchased; got != 2 {
		t.Errorf("purchased = %d, want 2", got)
	}
	if got := f.executionCount(t, "u1"); got != 1 {
		t.Errorf("execution records = %d, want 1", got)
	}
}

func TestCreditLedger_SequentialCommitsDecrementExactly(t *testing.T) {
	f := newFixture(t)
	f.register(t, "u1")
	f.addPool(t, "u1", repository.PoolGranted, 10)

	for i := 0; i < 7; i++ {
		if src := f.spend(t, "u1"); src.Kind != models.SourceGranted {
			t.Fatalf("spend %d source = %s, want granted", i, src.Kind)
		}
	}
	if got := f.user(t, "u1").Credits.Granted; got != 3 {
		t.Errorf("granted = %d, want 3", got)
	}
}

func TestCreditLedger_CommitRecordsReservationFields(t *testing.T) {
	f := newFixture(t)
	f.register(t, "u1")

	res, err := f.svcs.Ledger.SelectSource(t.Context(), "u1")
	if err != nil {
		t.Fatalf("SelectSource() error = %v", err)
	}
	f.clock.Advance(time.Minute)
	exec := &models.Execution{Language: "java", Code: "x", Status: models.ExecutionSuccess, ExecutionTimeMs: 42}
	if err := f.svcs.Ledger.Commit(t.Context(), res, exec); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	got, err := f.store.Execution.GetByID(t.Context(), res.ExecutionID)
	if err != nil || got == nil {
		t.Fatalf("GetByID() = %v, %v", got, err)
	}
	if got.CreditSource != models.SourceFree {
		t.Errorf("CreditSource = %s, want free", got.CreditSource)
	}
	if got.PlanAtTime != plans.Free {
		t.Errorf("PlanAtTime = %s, want %s", got.PlanAtTime, plans.Free)
	}
	if !got.CreatedAt.Equal(testNow) {
		t.Errorf("CreatedAt = %v, want selection time %v", got.CreatedAt, testNow)
	}
	if got.CreditsUsed != 1 {
		t.Errorf("CreditsUsed = %d, want 1", got.CreditsUsed)
	}
}

func TestCreditLedger_CommitFailsWhenPoolDrained(t *testing.T) {
	f := newFixture(t)
	f.register(t, "u1")
	f.addPool(t, "u1", repository.PoolPurchased, 1)

	res, err := f.svcs.Ledger.SelectSource(t.Context(), "u1")
	if err != nil {
		t.Fatalf("SelectSource() error = %v", err)
	}
	// Drain the pool behind the ledger's back.
	if err := f.store.User.DecrementCredit(t.Context(), "u1", repository.PoolPurchased); err != nil {
		t.Fatalf("DecrementCredit error = %v", err)
	}

	err = f.svcs.Ledger.Commit(t.Context(), res, &models.Execution{Language: "c", Code: "x", Status: models.ExecutionSuccess})
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("Commit() error = %v, want ErrInsufficientCredits", err)
	}
	if got := f.executionCount(t, "u1"); got != 0 {
		t.Errorf("execution records = %d, want 0 (rolled back)", got)
	}
	if got := f.user(t, "u1").Credits.Purchased; got != 0 {
		t.Errorf("purchased = %d, want 0", got)
	}
}

// ========================================
// Reservations
// ========================================

func TestCreditLedger_PendingReservationHoldsLastUnit(t *testing.T) {
	f := newFixture(t)
	f.register(t, "u1")
	f.addPool(t, "u1", repository.PoolPurchased, 1)

	first, err := f.svcs.Ledger.SelectSource(t.Context(), "u1")
	if err != nil {
		t.Fatalf("first SelectSource() error = %v", err)
	}
	second, err := f.svcs.Ledger.SelectSource(t.Context(), "u1")
	if err != nil {
		t.Fatalf("second SelectSource() error = %v", err)
	}
	if first.Source.Kind != models.SourcePurchased {
		t.Errorf("first source = %s, want purchased", first.Source.Kind)
	}
	if second.Source.Kind != models.SourceFree {
		t.Errorf("second source = %s, want free", second.Source.Kind)
	}

	for _, res := range []*Reservation{first, second} {
		if err := f.svcs.Ledger.Commit(t.Context(), res, &models.Execution{Language: "c", Code: "x", Status: models.ExecutionSuccess}); err != nil {
			t.Fatalf("Commit() error = %v", err)
		}
	}
	if got := f.user(t, "u1").Credits.Purchased; got != 0 {
		t.Errorf("purchased = %d, want 0", got)
	}
}

func TestCreditLedger_ReleaseReturnsUnit(t *testing.T) {
	f := newFixture(t)
	f.register(t, "u1")
	f.addPool(t, "u1", repository.PoolGranted, 1)

	res, err := f.svcs.Ledger.SelectSource(t.Context(), "u1")
	if err != nil {
		t.Fatalf("SelectSource() error = %v", err)
	}
	f.svcs.Ledger.Release(res)
	f.svcs.Ledger.Release(res)

	again, err := f.svcs.Ledger.SelectSource(t.Context(), "u1")
	if err != nil {
		t.Fatalf("SelectSource() error = %v", err)
	}
	if again.Source.Kind != models.SourceGranted {
		t.Errorf("source after release = %s, want granted", again.Source.Kind)
	}
	f.svcs.Ledger.Release(again)
}

func TestCreditLedger_ConcurrentSpendsNeverOvershoot(t *testing.T) {
	f := newFixture(t)
	f.register(t, "u1")
	f.addPool(t, "u1", repository.PoolPurchased, 5)

	const workers = 20
	var mu sync.Mutex
	counts := make(map[models.CreditSourceKind]int)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.svcs.Ledger.SelectSource(t.Context(), "u1")
			if err != nil {
				t.Errorf("SelectSource() error = %v", err)
				return
			}
			if err := f.svcs.Ledger.Commit(t.Context(), res, &models.Execution{Language: "c", Code: "x", Status: models.ExecutionSuccess}); err != nil {
				t.Errorf("Commit() error = %v", err)
				return
			}
			mu.Lock()
			counts[res.Source.Kind]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	if counts[models.SourcePurchased] != 5 {
		t.Errorf("purchased spends = %d, want 5", counts[models.SourcePurchased])
	}
	if counts[models.SourceFree] != 15 {
		t.Errorf("free spends = %d, want 15", counts[models.SourceFree])
	}
	if got := f.user(t, "u1").Credits.Purchased; got != 0 {
		t.Errorf("purchased = %d, want 0", got)
	}
	if _, err := f.trySpend(t, "u1"); !isExhausted(err) {
		t.Errorf("spend after pools drained error = %v, want exhausted", err)
	}
	if n := f.svcs.Ledger.locks.size(); n != 0 {
		t.Errorf("lock table size = %d, want 0", n)
	}
}
