// Package service contains the business logic layer: the credit ledger,
// the subscription state machine, promotions, and the wallet.
//
// Every mutation of one user's state holds that user's lock and runs in a
// single database transaction. Locks are taken before the connection.
package service

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jmylchreest/codecredit-api/internal/config"
	"github.com/jmylchreest/codecredit-api/internal/crypto"
	"github.com/jmylchreest/codecredit-api/internal/executor"
	"github.com/jmylchreest/codecredit-api/internal/plans"
	"github.com/jmylchreest/codecredit-api/internal/repository"
)

// Services holds all service instances.
type Services struct {
	Catalog      *plans.Catalog
	Ledger       *CreditLedger
	Subscription *SubscriptionService
	Promotion    *PromotionService
	Wallet       *WalletService
	Execution    *ExecutionService
	Status       *StatusService
	Admin        *AdminService
	Statement    *StatementService
}

// Deps holds the collaborators services need beyond configuration.
type Deps struct {
	Store   *repository.Store
	Catalog *plans.Catalog
	Runner  executor.Runner
	Objects ObjectPutter // nil disables statement export
	Metrics *Metrics     // nil records nothing
	Clock   Clock        // nil uses time.Now
	Logger  *slog.Logger
}

// NewServices creates all service instances.
func NewServices(cfg *config.Config, deps Deps) (*Services, error) {
	encryptor, err := crypto.NewEncryptor(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create encryptor: %w", err)
	}

	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = NoopMetrics()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	billing := &cfg.Billing
	locks := newUserLocks()

	ledger := NewCreditLedger(deps.Store, deps.Catalog, billing, locks, metrics, now, logger)
	statusSvc := NewStatusService(deps.Store, deps.Catalog, billing, now)

	return &Services{
		Catalog:      deps.Catalog,
		Ledger:       ledger,
		Subscription: NewSubscriptionService(deps.Store, deps.Catalog, billing, locks, metrics, now, logger),
		Promotion:    NewPromotionService(deps.Store, locks, metrics, now, logger),
		Wallet:       NewWalletService(deps.Store, billing, locks, now, logger),
		Execution:    NewExecutionService(deps.Store, ledger, deps.Runner, encryptor, metrics, cfg.ExecutorTimeout, logger),
		Status:       statusSvc,
		Admin:        NewAdminService(deps.Store, statusSvc, locks, now, logger),
		Statement:    NewStatementService(deps.Store, billing, deps.Objects, cfg.StorageBucket, now, logger),
	}, nil
}
