package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmylchreest/codecredit-api/internal/crypto"
	"github.com/jmylchreest/codecredit-api/internal/executor"
	"github.com/jmylchreest/codecredit-api/internal/logging"
	"github.com/jmylchreest/codecredit-api/internal/models"
	"github.com/jmylchreest/codecredit-api/internal/repository"
)

// Size limits for submitted code and stdin.
const (
	MaxCodeBytes  = 64 << 10
	MaxInputBytes = 64 << 10
)

// ExecuteInput is one code execution request.
type ExecuteInput struct {
	Language string
	Code     string
	Input    string
}

// ExecutionResult is the outcome returned to the caller.
type ExecutionResult struct {
	ExecutionID     string                 `json:"execution_id"`
	Output          string                 `json:"output"`
	Error           string                 `json:"error,omitempty"`
	Status          models.ExecutionStatus `json:"status"`
	CreditSource    string                 `json:"credit_source"`
	ExecutionTimeMs int64                  `json:"execution_time_ms"`
}

// ExecutionService runs user code paid for by the credit ledger.
//
// A credit is spent for every attempt that reached the backend, including
// runtime errors and timeouts. When the backend could not be reached the
// reservation is released and nothing is charged.
type ExecutionService struct {
	store     *repository.Store
	ledger    *CreditLedger
	runner    executor.Runner
	encryptor *crypto.Encryptor
	metrics   *Metrics
	timeout   time.Duration
	logger    *slog.Logger
}

// NewExecutionService creates a new execution service.
func NewExecutionService(store *repository.Store, ledger *CreditLedger, runner executor.Runner, encryptor *crypto.Encryptor, metrics *Metrics, timeout time.Duration, logger *slog.Logger) *ExecutionService {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ExecutionService{
		store:     store,
		ledger:    ledger,
		runner:    runner,
		encryptor: encryptor,
		metrics:   metrics,
		timeout:   timeout,
		logger:    logger.With("component", "execution"),
	}
}

func (in *ExecuteInput) validate() error {
	in.Language = strings.ToLower(strings.TrimSpace(in.Language))
	if !executor.IsSupported(in.Language) {
		return fmt.Errorf("%w: %q (supported: %s)", ErrInvalidInput, in.Language, strings.Join(executor.Languages(), ", "))
	}
	if strings.TrimSpace(in.Code) == "" {
		return invalidInput("code is required")
	}
	if len(in.Code) > MaxCodeBytes {
		return invalidInput("code exceeds %d bytes", MaxCodeBytes)
	}
	if len(in.Input) > MaxInputBytes {
		return invalidInput("input exceeds %d bytes", MaxInputBytes)
	}
	return nil
}

// Execute selects a credit source, runs the code and commits the spend.
func (s *ExecutionService) Execute(ctx context.Context, userID string, in ExecuteInput) (*ExecutionResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	res, err := s.ledger.SelectSource(ctx, userID)
	if err != nil {
		return nil, err
	}
	ctx = logging.WithExecutionID(ctx, res.ExecutionID)
	log := logging.FromContext(ctx, s.logger)

	// Once dispatched the attempt is paid for, so a caller hanging up does
	// not abort the run. Only the execution timeout bounds it.
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	started := time.Now()
	resp, runErr := s.runner.Run(runCtx, executor.Request{
		RequestID: res.ExecutionID,
		Language:  in.Language,
		Code:      in.Code,
		Input:     in.Input,
	})
	elapsed := time.Since(started).Milliseconds()
	cancel()

	exec := &models.Execution{
		Language:        in.Language,
		Input:           in.Input,
		Status:          models.ExecutionSuccess,
		ExecutionTimeMs: elapsed,
	}
	switch {
	case runErr == nil:
		exec.Output = resp.Output
		exec.Error = resp.Error
		if resp.Failed() {
			exec.Status = models.ExecutionFailed
		}
	case errors.Is(runErr, executor.ErrTimeout):
		exec.Status = models.ExecutionFailed
		exec.Error = fmt.Sprintf("execution timed out after %s", s.timeout)
	case errors.Is(runErr, context.Canceled):
		exec.Status = models.ExecutionFailed
		exec.Error = "execution cancelled"
	default:
		s.ledger.Release(res)
		log.Warn("execution backend unavailable", "language", in.Language, "error", runErr)
		s.metrics.execution(ctx, in.Language, "unavailable")
		return nil, fmt.Errorf("%w: %v", ErrExecutorUnavailable, runErr)
	}

	sealed, err := s.encryptor.Encrypt(in.Code, res.ExecutionID)
	if err != nil {
		s.ledger.Release(res)
		return nil, fmt.Errorf("failed to encrypt code: %w", err)
	}
	exec.Code = sealed

	// The attempt already ran, so the spend is recorded even if the caller went away.
	if err := s.ledger.Commit(context.WithoutCancel(ctx), res, exec); err != nil {
		return nil, err
	}

	s.metrics.execution(ctx, in.Language, string(exec.Status))
	log.Info("execution completed",
		"user_id", userID,
		"language", in.Language,
		"source", res.Source.String(),
		"status", exec.Status,
		"duration_ms", elapsed,
	)

	return &ExecutionResult{
		ExecutionID:     res.ExecutionID,
		Output:          exec.Output,
		Error:           exec.Error,
		Status:          exec.Status,
		CreditSource:    res.Source.String(),
		ExecutionTimeMs: elapsed,
	}, nil
}

// List returns the user's executions, newest first, with code decrypted.
func (s *ExecutionService) List(ctx context.Context, userID string, limit, offset int) ([]*models.Execution, error) {
	execs, err := s.store.Execution.ListByUser(ctx, userID, clampLimit(limit), max(offset, 0))
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	for _, e := range execs {
		code, err := s.encryptor.Decrypt(e.Code, e.ID)
		if err != nil {
			logging.FromContext(ctx, s.logger).Warn("failed to decrypt execution code", "execution_id", e.ID, "error", err)
			code = ""
		}
		e.Code = code
	}
	return execs, nil
}

// UsageByLanguage returns per-language success and failure counts.
func (s *ExecutionService) UsageByLanguage(ctx context.Context, userID string) ([]models.LanguageUsage, error) {
	usage, err := s.store.Execution.UsageByLanguage(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get usage: %w", err)
	}
	return usage, nil
}
