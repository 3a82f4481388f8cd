package routes

import (
	"context"
	"log/slog"

	"github.com/jmylchreest/codecredit-api/internal/http/handlers"
	"github.com/jmylchreest/codecredit-api/internal/service"
)

// PlanHandlers serves the plan catalog.
type PlanHandlers interface {
	ListPlans(ctx context.Context, input *struct{}) (*handlers.ListPlansOutput, error)
}

// SubscriptionHandlers defines the account and plan lifecycle operations.
type SubscriptionHandlers interface {
	Register(ctx context.Context, input *struct{}) (*handlers.RegisterOutput, error)
	Subscribe(ctx context.Context, input *handlers.PlanChangeInput) (*handlers.SubscriptionOutput, error)
	Upgrade(ctx context.Context, input *handlers.PlanChangeInput) (*handlers.SubscriptionOutput, error)
	Downgrade(ctx context.Context, input *handlers.PlanChangeInput) (*handlers.SubscriptionOutput, error)
	Cancel(ctx context.Context, input *struct{}) (*handlers.SubscriptionOutput, error)
	CancelScheduled(ctx context.Context, input *struct{}) (*handlers.SubscriptionOutput, error)
	GetActive(ctx context.Context, input *struct{}) (*handlers.SubscriptionOutput, error)
	List(ctx context.Context, input *struct{}) (*handlers.ListSubscriptionsOutput, error)
	SetAutoRenew(ctx context.Context, input *handlers.AutoRenewInput) (*handlers.AutoRenewOutput, error)
}

// StatusHandlers reports the caller's credit position.
type StatusHandlers interface {
	Get(ctx context.Context, input *struct{}) (*handlers.StatusOutput, error)
}

// ExecutionHandlers defines code execution and history.
type ExecutionHandlers interface {
	Execute(ctx context.Context, input *handlers.ExecuteInput) (*handlers.ExecuteOutput, error)
	List(ctx context.Context, input *handlers.PageInput) (*handlers.ListExecutionsOutput, error)
	Usage(ctx context.Context, input *struct{}) (*handlers.UsageOutput, error)
}

// WalletHandlers defines credit purchases and the ledger.
type WalletHandlers interface {
	PurchaseCredits(ctx context.Context, input *handlers.PurchaseCreditsInput) (*handlers.TransactionOutput, error)
	Transactions(ctx context.Context, input *handlers.PageInput) (*handlers.ListTransactionsOutput, error)
}

// StatementHandlers defines monthly statements.
type StatementHandlers interface {
	Get(ctx context.Context, input *handlers.StatementPeriodInput) (*handlers.StatementOutput, error)
	Export(ctx context.Context, input *handlers.StatementPeriodInput) (*handlers.ExportStatementOutput, error)
}

// AdminHandlers defines the admin operations.
// These endpoints are hidden from public OpenAPI documentation.
type AdminHandlers interface {
	ListUsers(ctx context.Context, input *handlers.PageInput) (*handlers.ListUsersOutput, error)
	GetUser(ctx context.Context, input *handlers.UserIDInput) (*handlers.UserDetailOutput, error)
	ListUserTransactions(ctx context.Context, input *handlers.UserTransactionsInput) (*handlers.ListTransactionsOutput, error)
	GrantCredits(ctx context.Context, input *handlers.GrantCreditsInput) (*handlers.GrantCreditsOutput, error)
	ListPromotions(ctx context.Context, input *struct{}) (*handlers.ListPromotionsOutput, error)
	CreatePromotion(ctx context.Context, input *handlers.CreatePromotionInput) (*handlers.PromotionOutput, error)
	UpdatePromotion(ctx context.Context, input *handlers.UpdatePromotionInput) (*handlers.PromotionOutput, error)
	DeletePromotion(ctx context.Context, input *handlers.PromotionIDInput) (*struct{}, error)
	GrantPromotion(ctx context.Context, input *handlers.GrantPromotionInput) (*handlers.GrantPromotionOutput, error)
	RunSweep(ctx context.Context, input *handlers.SweepInput) (*handlers.SweepOutput, error)
}

// Handlers aggregates all handler interfaces for route registration.
// The OpenAPI generator passes handlers built without services; they are
// registered but never invoked.
type Handlers struct {
	// Public endpoints
	HealthCheck   func(ctx context.Context, input *struct{}) (*handlers.HealthCheckOutput, error)
	ListLanguages func(ctx context.Context, input *struct{}) (*handlers.LanguagesOutput, error)

	// Kubernetes probes (hidden from docs)
	Livez  func(ctx context.Context, input *struct{}) (*handlers.ProbeOutput, error)
	Readyz func(ctx context.Context, input *struct{}) (*handlers.ProbeOutput, error)

	Plans        PlanHandlers
	Subscription SubscriptionHandlers
	Status       StatusHandlers
	Execution    ExecutionHandlers
	Wallet       WalletHandlers
	Statement    StatementHandlers
	Admin        AdminHandlers
}


// NewHandlers builds the handler set over svcs. db backs the readiness probe
// and may be nil.
func NewHandlers(svcs *service.Services, db handlers.DBPinger, logger *slog.Logger) *Handlers {
	return &Handlers{
		HealthCheck:   handlers.HealthCheck,
		ListLanguages: handlers.ListLanguages,
		Livez:         handlers.Livez,
		Readyz:        handlers.NewReadyzHandler(db).Readyz,
		Plans:         handlers.NewPlanHandler(svcs.Catalog),
		Subscription:  handlers.NewSubscriptionHandler(svcs.Subscription, logger),
		Status:        handlers.NewStatusHandler(svcs.Status, logger),
		Execution:     handlers.NewExecutionHandler(svcs.Execution, logger),
		Wallet:        handlers.NewWalletHandler(svcs.Wallet, logger),
		Statement:     handlers.NewStatementHandler(svcs.Statement, logger),
		Admin:         handlers.NewAdminHandler(svcs.Admin, svcs.Promotion, svcs.Subscription, logger),
	}
}
