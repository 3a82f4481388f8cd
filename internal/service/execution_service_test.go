package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jmylchreest/codecredit-api/internal/executor"
	"github.com/jmylchreest/codecredit-api/internal/models"
	"github.com/jmylchreest/codecredit-api/internal/repository"
)

func TestExecute_Success(t *testing.T) {
	f := newFixture(t)
	f.register(t, "u1")
	f.runner.set(&executor.Response{Output: "hello\n"}, nil)

	res, err := f.svcs.Execution.Execute(t.Context(), "u1", ExecuteInput{Language: "Python", Code: "print('hello')", Input: "x"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Output != "hello\n" || res.Status != models.ExecutionSuccess || res.CreditSource != "free" {
		t.Errorf("result = %+v", res)
	}

	req := f.runner.requests[0]
	if req.Language != "python" || req.RequestID != res.ExecutionID || req.Input != "x" {
		t.Errorf("runner request = %+v", req)
	}

	// Stored sealed; listed in the clear.
	var raw string
	if err := f.store.DB().QueryRowContext(t.Context(), `SELECT code_encrypted FROM executions WHERE id = ?`, res.ExecutionID).Scan(&raw); err != nil {
		t.Fatalf("query code: %v", err)
	}
	if raw == "print('hello')" || !strings.HasPrefix(raw, "v1:") {
		t.Errorf("stored code = %q, want sealed", raw)
	}
	execs, err := f.svcs.Execution.List(t.Context(), "u1", 10, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(execs) != 1 || execs[0].Code != "print('hello')" {
		t.Errorf("List() = %+v, want decrypted code", execs)
	}
}

func TestExecute_FailedAttemptsConsumeCredit(t *testing.T) {
	tests := []struct {
		name    string
		resp    *executor.Response
		err     error
		wantErr string
	}{
		{"runtime error", &executor.Response{Error: "NameError: x"}, nil, "NameError: x"},
		{"timeout", nil, executor.ErrTimeout, "execution timed out"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.register(t, "u1")
			f.addPool(t, "u1", repository.PoolPurchased, 1)
			f.runner.set(tt.resp, tt.err)

			res, err := f.svcs.Execution.Execute(t.Context(), "u1", ExecuteInput{Language: "python", Code: "x"})
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if res.Status != models.ExecutionFailed || !strings.Contains(res.Error, tt.wantErr) {
				t.Errorf("result = %s/%q, want failed containing %q", res.Status, res.Error, tt.wantErr)
			}
			if got := f.user(t, "u1").Credits.Purchased; got != 0 {
				t.Errorf("purchased = %d, want 0 (attempt paid)", got)
			}
		})
	}
}

func TestExecute_CallerCancelDuringRunStillCharges(t *testing.T) {
	f := newFixture(t)
	f.register(t, "u1")
	f.addPool(t, "u1", repository.PoolPurchased, 1)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	var runCtxErr error
	f.runner.onRun = func(runCtx context.Context) {
		cancel()
		runCtxErr = runCtx.Err()
	}

	res, err := f.svcs.Execution.Execute(ctx, "u1", ExecuteInput{Language: "python", Code: "print(1)"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if runCtxErr != nil {
		t.Errorf("run context err = %v, want nil after caller cancel", runCtxErr)
	}
	if res.CreditSource != "purchased" {
		t.Errorf("CreditSource = %q, want purchased", res.CreditSource)
	}
	if got := f.user(t, "u1").Credits.Purchased; got != 0 {
		t.Errorf("purchased = %d, want 0 (attempt paid)", got)
	}
	execs, err := f.svcs.Execution.List(t.Context(), "u1", 10, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(execs) != 1 {
		t.Errorf("execution rows = %d, want 1", len(execs))
	}
}

func TestExecute_RunnerCancelledIsChargedFailure(t *testing.T) {
	f := newFixture(t)
	f.register(t, "u1")
	f.addPool(t, "u1", repository.PoolPurchased, 1)
	f.runner.set(nil, context.Canceled)

	res, err := f.svcs.Execution.Execute(t.Context(), "u1", ExecuteInput{Language: "python", Code: "x"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Status != models.ExecutionFailed {
		t.Errorf("Status = %s, want failed", res.Status)
	}
	if got := f.user(t, "u1").Credits.Purchased; got != 0 {
		t.Errorf("purchased = %d, want 0 (attempt paid)", got)
	}
}

func TestExecute_UnavailableReleasesReservation(t *testing.T) {
	f := newFixture(t)
	f.register(t, "u1")
	f.addPool(t, "u1", repository.PoolPurchased, 1)
	f.runner.set(nil, fmt.Errorf("%w: connection refused", executor.ErrUnavailable))

	_, err := f.svcs.Execution.Execute(t.Context(), "u1", ExecuteInput{Language: "c", Code: "int main(){}"})
	if !errors.Is(err, ErrExecutorUnavailable) {
		t.Fatalf("Execute() error = %v, want ErrExecutorUnavailable", err)
	}
	if got := f.user(t, "u1").Credits.Purchased; got != 1 {
		t.Errorf("purchased = %d, want 1 (nothing charged)", got)
	}
	if got := f.executionCount(t, "u1"); got != 0 {
		t.Errorf("execution records = %d, want 0", got)
	}

	f.runner.set(nil, nil)
	res, err := f.svcs.Execution.Execute(t.Context(), "u1", ExecuteInput{Language: "c", Code: "int main(){}"})
	if err != nil {
		t.Fatalf("Execute() after recovery error = %v", err)
	}
	if res.CreditSource != "purchased" {
		t.Errorf("source = %s, want purchased", res.CreditSource)
	}
}

func TestExecute_Validation(t *testing.T) {
	f := newFixture(t)
	f.register(t, "u1")

	tests := []struct {
		name string
		in   ExecuteInput
	}{
		{"unsupported language", ExecuteInput{Language: "cobol", Code: "x"}},
		{"empty code", ExecuteInput{Language: "java", Code: "   "}},
		{"code too large", ExecuteInput{Language: "java", Code: strings.Repeat("a", MaxCodeBytes+1)}},
		{"input too large", ExecuteInput{Language: "java", Code: "x", Input: strings.Repeat("a", MaxInputBytes+1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svcs.Execution.Execute(t.Context(), "u1", tt.in); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Execute() error = %v, want ErrInvalidInput", err)
			}
		})
	}
	if n := f.runner.calls(); n != 0 {
		t.Errorf("runner calls = %d, want 0", n)
	}
}

func TestExecute_Exhausted(t *testing.T) {
	f := newFixture(t)
	f.register(t, "u1")
	for i := 0; i < 15; i++ {
		if _, err := f.svcs.Execution.Execute(t.Context(), "u1", ExecuteInput{Language: "cpp", Code: "x"}); err != nil {
			t.Fatalf("Execute %d error = %v", i, err)
		}
	}

	if _, err := f.svcs.Execution.Execute(t.Context(), "u1", ExecuteInput{Language: "cpp", Code: "x"}); !errors.Is(err, ErrExhausted) {
		t.Errorf("16th Execute() error = %v, want ErrExhausted", err)
	}
	if n := f.runner.calls(); n != 15 {
		t.Errorf("runner calls = %d, want 15", n)
	}

	usage, err := f.svcs.Execution.UsageByLanguage(t.Context(), "u1")
	if err != nil {
		t.Fatalf("UsageByLanguage() error = %v", err)
	}
	if len(usage) != 1 || usage[0].Language != "cpp" || usage[0].Successful != 15 || usage[0].Credits != 15 {
		t.Errorf("usage = %+v", usage)
	}
}
