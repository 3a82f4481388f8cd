package service

import (
	"testing"
	"time"

	"github.com/jmylchreest/codecredit-api/internal/models"
	"github.com/jmylchreest/codecredit-api/internal/plans"
)

func TestActivateScheduled(t *testing.T) {
	f := newFixture(t)
	f.register(t, "u1")
	monthly := f.subscribe(t, "u1", plans.Monthly)
	f.fund(t, "u1", 359900)
	sched, err := f.svcs.Subscription.Upgrade(t.Context(), "u1", plans.Yearly)
	if err != nil {
		t.Fatalf("Upgrade() error = %v", err)
	}

	// Not yet due.
	f.clock.Advance(29 * day)
	result, err := f.svcs.Subscription.ActivateScheduled(t.Context())
	if err != nil {
		t.Fatalf("ActivateScheduled() error = %v", err)
	}
	if result.Processed != 0 {
		t.Errorf("Processed = %d, want 0 before start", result.Processed)
	}

	f.clock.Set(sched.StartDate.Add(time.Minute))
	result, err = f.svcs.Subscription.ActivateScheduled(t.Context())
	if err != nil {
		t.Fatalf("ActivateScheduled() error = %v", err)
	}
	if result.Processed != 1 || result.Succeeded != 1 {
		t.Errorf("result = %+v, want 1 succeeded", result)
	}

	active := f.assertOneActive(t, "u1")
	if active.ID != sched.ID || active.Status != models.SubscriptionActive {
		t.Errorf("active = %s/%s, want %s/active", active.ID, active.Status, sched.ID)
	}
	old, _ := f.store.Subscription.GetByID(t.Context(), monthly.ID)
	if old.Status != models.SubscriptionExpired || old.Active {
		t.Errorf("monthly = %s active=%v, want expired inactive", old.Status, old.Active)
	}
	// Payment, then the zero-amount activation.
	acts := f.transactions(t, "u1", models.TxSubscriptionActivation)
	if len(acts) != 2 {
		t.Errorf("activation transactions = %d, want 2 (register + sweep)", len(acts))
	}

	if src := f.spend(t, "u1"); !src.Unlimited {
		t.Errorf("source after activation = %v, want unlimited", src)
	}

	// A second run finds nothing.
	result, _ = f.svcs.Subscription.ActivateScheduled(t.Context())
	if result.Processed != 0 {
		t.Errorf("second run Processed = %d, want 0", result.Processed)
	}
}

func TestRenewExpired_AutoRenewCharges(t *testing.T) {
	f := newFixture(t)
	f.register(t, "u1")
	sub := f.subscribe(t, "u1", plans.Monthly)
	if err := f.svcs.Subscription.SetAutoRenew(t.Context(), "u1", true); err != nil {
		t.Fatalf("SetAutoRenew() error = %v", err)
	}
	f.fund(t, "u1", 50000)

	f.clock.Set(sub.EndDate.Add(time.Hour))
	result, err := f.svcs.Subscription.RenewExpired(t.Context())
	if err != nil {
		t.Fatalf("RenewExpired() error = %v", err)
	}
	if result.Succeeded != 1 {
		t.Errorf("result = %+v, want 1 succeeded", result)
	}

	got := f.assertOneActive(t, "u1")
	now := f.clock.Now()
	if got.ID != sub.ID || got.Status != models.SubscriptionRenewed {
		t.Errorf("active = %s/%s, want %s/renewed", got.ID, got.Status, sub.ID)
	}
	if !got.StartDate.Equal(now) || !got.EndDate.Equal(now.AddDate(0, 0, 30)) {
		t.Errorf("period = %v..%v, want %v..+30d", got.StartDate, got.EndDate, now)
	}
	if bal := f.user(t, "u1").WalletBalancePaisa; bal != 100 {
		t.Errorf("wallet = %d, want 100", bal)
	}
	renewals := f.transactions(t, "u1", models.TxSubscriptionRenewal)
	if len(renewals) != 1 || renewals[0].AmountPaisa != -49900 {
		t.Errorf("renewals = %+v, want one of -49900", renewals)
	}
}

func TestRenewExpired_ExpiresWithoutFunds(t *testing.T) {
	tests := []struct {
		name      string
		autoRenew bool
		balance   int64
	}{
		{"opted out", false, 100000},
		{"insufficient balance", true, 10000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.register(t, "u1")
			sub := f.subscribe(t, "u1", plans.Monthly)
			if err := f.svcs.Subscription.SetAutoRenew(t.Context(), "u1", tt.autoRenew); err != nil {
				t.Fatalf("SetAutoRenew() error = %v", err)
			}
			f.fund(t, "u1", tt.balance)

			f.clock.Set(sub.EndDate)
			result, err := f.svcs.Subscription.RenewExpired(t.Context())
			if err != nil {
				t.Fatalf("RenewExpired() error = %v", err)
			}
			if result.Succeeded != 1 {
				t.Errorf("result = %+v, want 1 succeeded", result)
			}

			old, _ := f.store.Subscription.GetByID(t.Context(), sub.ID)
			if old.Status != models.SubscriptionExpired || old.Active {
				t.Errorf("paid = %s active=%v, want expired inactive", old.Status, old.Active)
			}
			if got := f.assertOneActive(t, "u1"); got.Plan != plans.Free {
				t.Errorf("active plan = %s, want free", got.Plan)
			}
			if bal := f.user(t, "u1").WalletBalancePaisa; bal != tt.balance {
				t.Errorf("wallet = %d, want %d", bal, tt.balance)
			}
			if got := len(f.transactions(t, "u1", models.TxSubscriptionExpiry)); got != 1 {
				t.Errorf("expiry transactions = %d, want 1", got)
			}
		})
	}
}

func TestRenewExpired_FreeRollsOver(t *testing.T) {
	f := newFixture(t)
	f.register(t, "u1")

	f.clock.Advance(366 * day)
	result, err := f.svcs.Subscription.RenewExpired(t.Context())
	if err != nil {
		t.Fatalf("RenewExpired() error = %v", err)
	}
	if result.Succeeded != 1 {
		t.Errorf("result = %+v, want 1 succeeded", result)
	}
	got := f.assertOneActive(t, "u1")
	now := f.clock.Now()
	if got.Plan != plans.Free || got.Status != models.SubscriptionRenewed {
		t.Errorf("active = %s/%s, want free/renewed", got.Plan, got.Status)
	}
	if !got.EndDate.Equal(now.AddDate(0, 0, 365)) {
		t.Errorf("EndDate = %v, want now+365d", got.EndDate)
	}
	renewals := f.transactions(t, "u1", models.TxSubscriptionRenewal)
	if len(renewals) != 1 || renewals[0].AmountPaisa != 0 {
		t.Errorf("renewals = %+v, want one zero-amount", renewals)
	}
}

func TestRenewExpired_LeavesDueScheduleToActivation(t *testing.T) {
	f := newFixture(t)
	f.register(t, "u1")
	sub := f.subscribe(t, "u1", plans.Monthly)
	f.fund(t, "u1", 129900)
	sched, err := f.svcs.Subscription.Upgrade(t.Context(), "u1", plans.ThreeMonth)
	if err != nil {
		t.Fatalf("Upgrade() error = %v", err)
	}

	f.clock.Set(sub.EndDate.Add(time.Hour))
	result, err := f.svcs.Subscription.RenewExpired(t.Context())
	if err != nil {
		t.Fatalf("RenewExpired() error = %v", err)
	}
	if result.Skipped != 1 {
		t.Errorf("result = %+v, want 1 skipped", result)
	}
	if got := f.assertOneActive(t, "u1"); got.ID != sub.ID {
		t.Errorf("active = %s, want untouched %s", got.ID, sub.ID)
	}

	if _, err := f.svcs.Subscription.ActivateScheduled(t.Context()); err != nil {
		t.Fatalf("ActivateScheduled() error = %v", err)
	}
	if got := f.assertOneActive(t, "u1"); got.ID != sched.ID {
		t.Errorf("active = %s, want scheduled %s", got.ID, sched.ID)
	}
}

func TestRenewExpired_FailureDoesNotAbortBatch(t *testing.T) {
	f := newFixture(t)
	f.register(t, "u1")
	f.register(t, "u2")

	// An unknown plan on u1's row makes its renewal fail.
	bad := f.active(t, "u1")
	bad.Plan = "retired"
	if err := f.store.Subscription.Update(t.Context(), bad); err != nil {
		t.Fatalf("Update error = %v", err)
	}

	f.clock.Advance(366 * day)
	result, err := f.svcs.Subscription.RenewExpired(t.Context())
	if err != nil {
		t.Fatalf("RenewExpired() error = %v", err)
	}
	if result.Processed != 2 || result.Failed != 1 || result.Succeeded != 1 {
		t.Errorf("result = %+v, want 1 failed and 1 succeeded", result)
	}
	if got := f.active(t, "u2"); got.Status != models.SubscriptionRenewed {
		t.Errorf("u2 status = %s, want renewed", got.Status)
	}
}
