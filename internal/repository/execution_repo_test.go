package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/jmylchreest/codecredit-api/internal/models"
)

func newTestExecution(id, userID string, source models.CreditSourceKind, lang string, status models.ExecutionStatus, at time.Time) *models.Execution {
	return &models.Execution{
		ID:           id,
		UserID:       userID,
		CreditSource: source,
		Language:     lang,
		Code:         "ciphertext",
		Status:       status,
		CreditsUsed:  1,
		PlanAtTime:   "free",
		CreatedAt:    at,
	}
}

// ========================================
// Execution Repository Tests
// ========================================

func TestExecutionRepository_CreateDuplicate(t *testing.T) {
	s := setupTestStore(t)
	ctx := t.Context()
	insertTestUser(t, s, "user_1", 0, 0)

	e := newTestExecution("exec_1", "user_1", models.SourceFree, "python", models.ExecutionSuccess, testNow)
	if err := s.Execution.Create(ctx, e); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := s.Execution.Create(ctx, e); !errors.Is(err, ErrDuplicate) {
		t.Errorf("Create(dup) error = %v, want ErrDuplicate", err)
	}

	got, err := s.Execution.GetByID(ctx, "exec_1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.CreditSource != models.SourceFree || got.Language != "python" {
		t.Errorf("GetByID() = %+v", got)
	}
}

func TestExecutionRepository_CountBySourceSince(t *testing.T) {
	s := setupTestStore(t)
	ctx := t.Context()
	insertTestUser(t, s, "user_1", 0, 0)

	dayStart := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)
	records := []*models.Execution{
		newTestExecution("e1", "user_1", models.SourceFree, "python", models.ExecutionSuccess, dayStart.Add(-time.Second)),
		newTestExecution("e2", "user_1", models.SourceFree, "python", models.ExecutionSuccess, dayStart),
		newTestExecution("e3", "user_1", models.SourceFree, "c", models.ExecutionFailed, dayStart.Add(time.Hour)),
		newTestExecution("e4", "user_1", models.SourcePurchased, "c", models.ExecutionSuccess, dayStart.Add(time.Hour)),
	}
	for _, e := range records {
		if err := s.Execution.Create(ctx, e); err != nil {
			t.Fatalf("Create(%s) error = %v", e.ID, err)
		}
	}

	free, err := s.Execution.CountBySourceSince(ctx, "user_1", models.SourceFree, dayStart)
	if err != nil {
		t.Fatalf("CountBySourceSince() error = %v", err)
	}
	if free != 2 {
		t.Errorf("free today = %d, want 2", free)
	}
	total, err := s.Execution.CountSince(ctx, "user_1", dayStart)
	if err != nil {
		t.Fatalf("CountSince() error = %v", err)
	}
	if total != 3 {
		t.Errorf("total today = %d, want 3", total)
	}
}

func TestExecutionRepository_UsageByLanguage(t *testing.T) {
	s := setupTestStore(t)
	ctx := t.Context()
	insertTestUser(t, s, "user_1", 0, 0)

	for i, e := range []*models.Execution{
		newTestExecution("e1", "user_1", models.SourceFree, "python", models.ExecutionSuccess, testNow),
		newTestExecution("e2", "user_1", models.SourceFree, "python", models.ExecutionFailed, testNow),
		newTestExecution("e3", "user_1", models.SourceFree, "java", models.ExecutionSuccess, testNow),
	} {
		e.CreatedAt = testNow.Add(time.Duration(i) * time.Second)
		if err := s.Execution.Create(ctx, e); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	usage, err := s.Execution.UsageByLanguage(ctx, "user_1")
	if err != nil {
		t.Fatalf("UsageByLanguage() error = %v", err)
	}
	if len(usage) != 2 {
		t.Fatalf("len(usage) = %d, want 2", len(usage))
	}
	// ordered by language
	if usage[0].Language != "java" || usage[0].Successful != 1 {
		t.Errorf("usage[0] = %+v", usage[0])
	}
	if usage[1].Language != "python" || usage[1].Successful != 1 || usage[1].Failed != 1 || usage[1].Credits != 2 {
		t.Errorf("usage[1] = %+v", usage[1])
	}

	list, err := s.Execution.ListByUser(ctx, "user_1", 10, 0)
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if len(list) != 3 || list[0].ID != "e3" {
		t.Errorf("ListByUser() newest first failed: %d records, first %s", len(list), list[0].ID)
	}
}

// ========================================
// Transaction Repository Tests
// ========================================

func TestTransactionRepository_ExternalRefIdempotency(t *testing.T) {
	s := setupTestStore(t)
	ctx := t.Context()
	insertTestUser(t, s, "user_1", 0, 0)

	ref := "cs_test_123"
	tx := &models.Transaction{
		ID: "tx_1", UserID: "user_1", Type: models.TxDeposit, AmountPaisa: 10000,
		Status: models.TxStatusCompleted, ExternalRef: &ref, CreatedAt: testNow,
	}
	if err := s.Transaction.Create(ctx, tx); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	dup := *tx
	dup.ID = "tx_2"
	if err := s.Transaction.Create(ctx, &dup); !errors.Is(err, ErrDuplicate) {
		t.Errorf("Create(dup ref) error = %v, want ErrDuplicate", err)
	}

	// Same ref under a different type is allowed (deposit vs refund).
	refund := *tx
	refund.ID = "tx_3"
	refund.Type = models.TxDepositRefund
	if err := s.Transaction.Create(ctx, &refund); err != nil {
		t.Errorf("Create(refund) error = %v", err)
	}

	got, err := s.Transaction.GetByExternalRef(ctx, models.TxDeposit, ref)
	if err != nil {
		t.Fatalf("GetByExternalRef() error = %v", err)
	}
	if got == nil || got.ID != "tx_1" {
		t.Errorf("GetByExternalRef() = %v, want tx_1", got)
	}
}

func TestTransactionRepository_ListByUserBetween(t *testing.T) {
	s := setupTestStore(t)
	ctx := t.Context()
	insertTestUser(t, s, "user_1", 0, 0)

	oct := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	for i, at := range []time.Time{oct.Add(-time.Second), oct, oct.AddDate(0, 0, 15), oct.AddDate(0, 1, 0)} {
		tx := &models.Transaction{
			ID: "tx_" + string(rune('a'+i)), UserID: "user_1", Type: models.TxCreditPurchase,
			AmountPaisa: -500, Credits: 10, Status: models.TxStatusCompleted, CreatedAt: at,
		}
		if err := s.Transaction.Create(ctx, tx); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	txs, err := s.Transaction.ListByUserBetween(ctx, "user_1", oct, oct.AddDate(0, 1, 0))
	if err != nil {
		t.Fatalf("ListByUserBetween() error = %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("len = %d, want 2", len(txs))
	}
	if txs[0].ID != "tx_b" || txs[1].ID != "tx_c" {
		t.Errorf("order = %s, %s; want tx_b, tx_c", txs[0].ID, txs[1].ID)
	}
}
