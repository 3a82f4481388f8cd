package routes

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/codecredit-api/internal/http/mw"
)

// Register registers all API routes with the given Huma API instance.
func Register(api huma.API, h *Handlers) {
	// =========================================================================
	// Public Routes (no auth required)
	// =========================================================================

	mw.PublicGet(api, "/api/v1/health", h.HealthCheck,
		mw.WithTags("Health"),
		mw.WithSummary("Health check"),
		mw.WithOperationID("healthCheck"))

	mw.PublicGet(api, "/api/v1/plans", h.Plans.ListPlans,
		mw.WithTags("Plans"),
		mw.WithSummary("List plans"),
		mw.WithDescription("Returns every plan ordered by tier, with daily credits, price and duration."),
		mw.WithOperationID("listPlans"))

	mw.PublicGet(api, "/api/v1/languages", h.ListLanguages,
		mw.WithTags("Executions"),
		mw.WithSummary("List supported languages"),
		mw.WithOperationID("listLanguages"))

	// Kubernetes probes (hidden from docs - internal use only)
	mw.HiddenGet(api, "/healthz", h.Livez)
	mw.HiddenGet(api, "/readyz", h.Readyz)

	// =========================================================================
	// Protected Routes (require bearer auth)
	// =========================================================================

	// --- Account ---
	mw.ProtectedPost(api, "/api/v1/account/register", h.Subscription.Register,
		mw.WithTags("Account"),
		mw.WithSummary("Register account"),
		mw.WithDescription("Creates the caller's account on the free plan. Calling it again returns the existing account."),
		mw.WithOperationID("registerAccount"))
	mw.ProtectedGet(api, "/api/v1/account/status", h.Status.Get,
		mw.WithTags("Account"),
		mw.WithSummary("Get credit status"),
		mw.WithDescription("Returns remaining credits per pool, today's usage, the active and scheduled periods and the wallet balance."),
		mw.WithOperationID("getCreditStatus"))
	mw.ProtectedPut(api, "/api/v1/account/auto-renew", h.Subscription.SetAutoRenew,
		mw.WithTags("Account"),
		mw.WithSummary("Set auto-renew"),
		mw.WithOperationID("setAutoRenew"))

	// --- Subscriptions ---
	mw.ProtectedGet(api, "/api/v1/subscriptions", h.Subscription.List,
		mw.WithTags("Subscriptions"),
		mw.WithSummary("List subscriptions"),
		mw.WithOperationID("listSubscriptions"))
	mw.ProtectedGet(api, "/api/v1/subscriptions/active", h.Subscription.GetActive,
		mw.WithTags("Subscriptions"),
		mw.WithSummary("Get active subscription"),
		mw.WithOperationID("getActiveSubscription"))
	mw.ProtectedPost(api, "/api/v1/subscriptions", h.Subscription.Subscribe,
		mw.WithTags("Subscriptions"),
		mw.WithSummary("Subscribe to a paid plan"),
		mw.WithDescription("Charges the plan price to the wallet and activates it immediately."),
		mw.WithOperationID("subscribe"))
	mw.ProtectedPost(api, "/api/v1/subscriptions/upgrade", h.Subscription.Upgrade,
		mw.WithTags("Subscriptions"),
		mw.WithSummary("Upgrade plan"),
		mw.WithDescription("From the free plan the upgrade starts now. From a running paid plan it is scheduled for the end of the current period."),
		mw.WithOperationID("upgradeSubscription"))
	mw.ProtectedPost(api, "/api/v1/subscriptions/downgrade", h.Subscription.Downgrade,
		mw.WithTags("Subscriptions"),
		mw.WithSummary("Downgrade plan"),
		mw.WithOperationID("downgradeSubscription"))
	mw.ProtectedPost(api, "/api/v1/subscriptions/cancel", h.Subscription.Cancel,
		mw.WithTags("Subscriptions"),
		mw.WithSummary("Cancel subscription"),
		mw.WithDescription("Ends the paid plan and restores the free plan. Not allowed within the cancellation window after activation."),
		mw.WithOperationID("cancelSubscription"))
	mw.ProtectedDelete(api, "/api/v1/subscriptions/scheduled", h.Subscription.CancelScheduled,
		mw.WithTags("Subscriptions"),
		mw.WithSummary("Cancel scheduled plan change"),
		mw.WithDescription("Removes the pending plan change and refunds its price to the wallet."),
		mw.WithOperationID("cancelScheduledSubscription"))

	// --- Executions ---
	mw.ProtectedPost(api, "/api/v1/executions", h.Execution.Execute,
		mw.WithTags("Executions"),
		mw.WithSummary("Execute code"),
		mw.WithDescription("Spends one credit from the highest-priority pool with balance and runs the code."),
		mw.WithOperationID("executeCode"),
		mw.WithUserRateLimit())
	mw.ProtectedGet(api, "/api/v1/executions", h.Execution.List,
		mw.WithTags("Executions"),
		mw.WithSummary("List executions"),
		mw.WithOperationID("listExecutions"))
	mw.ProtectedGet(api, "/api/v1/executions/usage", h.Execution.Usage,
		mw.WithTags("Executions"),
		mw.WithSummary("Get usage by language"),
		mw.WithOperationID("getExecutionUsage"))

	// --- Wallet ---
	mw.ProtectedPost(api, "/api/v1/wallet/credits", h.Wallet.PurchaseCredits,
		mw.WithTags("Wallet"),
		mw.WithSummary("Purchase credits"),
		mw.WithOperationID("purchaseCredits"))
	mw.ProtectedGet(api, "/api/v1/wallet/transactions", h.Wallet.Transactions,
		mw.WithTags("Wallet"),
		mw.WithSummary("List transactions"),
		mw.WithOperationID("listTransactions"))

	// --- Statements ---
	mw.ProtectedGet(api, "/api/v1/statements/{year}/{month}", h.Statement.Get,
		mw.WithTags("Statements"),
		mw.WithSummary("Get monthly statement"),
		mw.WithOperationID("getStatement"))
	mw.ProtectedPost(api, "/api/v1/statements/{year}/{month}/export", h.Statement.Export,
		mw.WithTags("Statements"),
		mw.WithSummary("Export monthly statement"),
		mw.WithDescription("Writes the statement to object storage and returns its key."),
		mw.WithOperationID("exportStatement"))

	// =========================================================================
	// Admin Routes (hidden from public docs)
	// =========================================================================

	adminOpts := func(summary, id string) []mw.OperationOption {
		return []mw.OperationOption{
			mw.WithAdmin(),
			mw.WithHidden(),
			mw.WithTags("Admin"),
			mw.WithSummary(summary),
			mw.WithOperationID(id),
		}
	}

	mw.ProtectedGet(api, "/api/v1/admin/users", h.Admin.ListUsers, adminOpts("List users", "adminListUsers")...)
	mw.ProtectedGet(api, "/api/v1/admin/users/{user_id}", h.Admin.GetUser, adminOpts("Get user", "adminGetUser")...)
	mw.ProtectedGet(api, "/api/v1/admin/users/{user_id}/transactions", h.Admin.ListUserTransactions,
		adminOpts("List user transactions", "adminListUserTransactions")...)
	mw.ProtectedPost(api, "/api/v1/admin/users/{user_id}/credits", h.Admin.GrantCredits,
		adminOpts("Grant credits", "adminGrantCredits")...)

	mw.ProtectedGet(api, "/api/v1/admin/promotions", h.Admin.ListPromotions, adminOpts("List promotions", "adminListPromotions")...)
	mw.ProtectedPost(api, "/api/v1/admin/promotions", h.Admin.CreatePromotion,
		append(adminOpts("Create promotion", "adminCreatePromotion"), mw.WithStatus(http.StatusCreated))...)
	mw.ProtectedPut(api, "/api/v1/admin/promotions/{id}", h.Admin.UpdatePromotion, adminOpts("Update promotion", "adminUpdatePromotion")...)
	mw.ProtectedDelete(api, "/api/v1/admin/promotions/{id}", h.Admin.DeletePromotion,
		append(adminOpts("Delete promotion", "adminDeletePromotion"), mw.WithStatus(http.StatusNoContent))...)
	mw.ProtectedPost(api, "/api/v1/admin/promotions/{id}/users/{user_id}", h.Admin.GrantPromotion,
		adminOpts("Grant promotion to user", "adminGrantPromotion")...)

	mw.ProtectedPost(api, "/api/v1/admin/sweeps/{name}", h.Admin.RunSweep, adminOpts("Run sweep", "adminRunSweep")...)
}
