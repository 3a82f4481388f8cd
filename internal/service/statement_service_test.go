package service

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jmylchreest/codecredit-api/internal/plans"
)

func TestStatementKey(t *testing.T) {
	if got := StatementKey("user_1", 2026, time.March); got != "statements/user_1/2026-03.json" {
		t.Errorf("StatementKey() = %q", got)
	}
}

func TestExportStatement(t *testing.T) {
	f := newFixture(t)
	f.register(t, "u1")
	f.subscribe(t, "u1", plans.Monthly)

	// Next month's activity stays out of October.
	f.clock.Set(time.Date(2026, 11, 2, 9, 0, 0, 0, time.UTC))
	f.fund(t, "u1", 20000)

	key, err := f.svcs.Statement.Export(t.Context(), "u1", 2026, time.October)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if key != "statements/u1/2026-10.json" {
		t.Errorf("key = %q", key)
	}

	body, ok := f.objects.get(key)
	if !ok {
		t.Fatalf("object %s not written", key)
	}
	var st Statement
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatalf("unmarshal statement: %v", err)
	}
	// activation, deposit, payment
	if len(st.Transactions) != 3 {
		t.Errorf("transactions = %d, want 3", len(st.Transactions))
	}
	if st.NetPaisa != 0 {
		t.Errorf("NetPaisa = %d, want 0 (deposit then payment of 49900)", st.NetPaisa)
	}
	if st.Period != "2026-10" {
		t.Errorf("Period = %q", st.Period)
	}
}

func TestExportStatement_Errors(t *testing.T) {
	f := newFixture(t)
	f.register(t, "u1")

	if _, err := f.svcs.Statement.Export(t.Context(), "u1", 2026, 13); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Export(month 13) error = %v, want ErrInvalidInput", err)
	}
	if _, err := f.svcs.Statement.Export(t.Context(), "ghost", 2026, time.October); !errors.Is(err, ErrNotFound) {
		t.Errorf("Export(unknown) error = %v, want ErrNotFound", err)
	}

	f.objects.err = errors.New("bucket gone")
	if _, err := f.svcs.Statement.Export(t.Context(), "u1", 2026, time.October); err == nil {
		t.Error("Export() with failing storage error = nil")
	}

	disabled := NewStatementService(f.store, &f.cfg.Billing, nil, "", f.clock.Now, discardLogger())
	if _, err := disabled.Export(t.Context(), "u1", 2026, time.October); !errors.Is(err, ErrStorageDisabled) {
		t.Errorf("Export() without storage error = %v, want ErrStorageDisabled", err)
	}
}
