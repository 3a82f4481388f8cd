package handlers

import (
	"context"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/codecredit-api/internal/models"
	"github.com/jmylchreest/codecredit-api/internal/service"
)

// SubscriptionHandler handles account registration and plan changes.
type SubscriptionHandler struct {
	svc    *service.SubscriptionService
	logger *slog.Logger
}

// NewSubscriptionHandler creates a new subscription handler.
func NewSubscriptionHandler(svc *service.SubscriptionService, logger *slog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{svc: svc, logger: logger}
}

// RegisterOutput is the registered user.
type RegisterOutput struct {
	Body *models.User
}

// Register creates the caller's account with the free plan. Repeated calls
// return the existing account.
func (h *SubscriptionHandler) Register(ctx context.Context, _ *struct{}) (*RegisterOutput, error) {
	claims, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	user, err := h.svc.Register(ctx, claims.UserID, claims.Email, claims.Name)
	if err != nil {
		return nil, toHTTPError(ctx, h.logger, "register", err)
	}
	return &RegisterOutput{Body: user}, nil
}

// PlanChangeInput names the target plan.
type PlanChangeInput struct {
	Body struct {
		Plan string `json:"plan" minLength:"1" doc:"Target plan ID" example:"monthly"`
	}
}

// SubscriptionOutput is a single subscription row.
type SubscriptionOutput struct {
	Body *models.Subscription
}

// ListSubscriptionsOutput is the caller's subscription history.
type ListSubscriptionsOutput struct {
	Body struct {
		Subscriptions []*models.Subscription `json:"subscriptions" doc:"Newest first"`
	}
}

type planChange func(ctx context.Context, userID, planID string) (*models.Subscription, error)

func (h *SubscriptionHandler) change(ctx context.Context, action string, fn planChange, planID string) (*SubscriptionOutput, error) {
	claims, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	sub, err := fn(ctx, claims.UserID, planID)
	if err != nil {
		return nil, toHTTPError(ctx, h.logger, action, err)
	}
	return &SubscriptionOutput{Body: sub}, nil
}

// Subscribe buys a paid plan from the wallet.
func (h *SubscriptionHandler) Subscribe(ctx context.Context, input *PlanChangeInput) (*SubscriptionOutput, error) {
	return h.change(ctx, "subscribe", h.svc.Subscribe, input.Body.Plan)
}

// Upgrade moves to a higher tier. On a running paid plan the upgrade is
// scheduled for the end of the current period.
func (h *SubscriptionHandler) Upgrade(ctx context.Context, input *PlanChangeInput) (*SubscriptionOutput, error) {
	return h.change(ctx, "upgrade", h.svc.Upgrade, input.Body.Plan)
}

// Downgrade moves to a lower paid tier according to the downgrade policy.
func (h *SubscriptionHandler) Downgrade(ctx context.Context, input *PlanChangeInput) (*SubscriptionOutput, error) {
	return h.change(ctx, "downgrade", h.svc.Downgrade, input.Body.Plan)
}

// Cancel ends the caller's paid plan and restores the free plan.
func (h *SubscriptionHandler) Cancel(ctx context.Context, _ *struct{}) (*SubscriptionOutput, error) {
	claims, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	sub, err := h.svc.Cancel(ctx, claims.UserID)
	if err != nil {
		return nil, toHTTPError(ctx, h.logger, "cancel subscription", err)
	}
	return &SubscriptionOutput{Body: sub}, nil
}

// CancelScheduled removes the pending plan change and refunds it.
func (h *SubscriptionHandler) CancelScheduled(ctx context.Context, _ *struct{}) (*SubscriptionOutput, error) {
	claims, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	sub, err := h.svc.CancelScheduled(ctx, claims.UserID)
	if err != nil {
		return nil, toHTTPError(ctx, h.logger, "cancel scheduled subscription", err)
	}
	return &SubscriptionOutput{Body: sub}, nil
}

// GetActive returns the caller's active subscription.
func (h *SubscriptionHandler) GetActive(ctx context.Context, _ *struct{}) (*SubscriptionOutput, error) {
	claims, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	sub, err := h.svc.GetActive(ctx, claims.UserID)
	if err != nil {
		return nil, toHTTPError(ctx, h.logger, "get subscription", err)
	}
	if sub == nil {
		return nil, huma.Error404NotFound("no active subscription")
	}
	return &SubscriptionOutput{Body: sub}, nil
}

// List returns the caller's subscription history.
func (h *SubscriptionHandler) List(ctx context.Context, _ *struct{}) (*ListSubscriptionsOutput, error) {
	claims, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	subs, err := h.svc.List(ctx, claims.UserID)
	if err != nil {
		return nil, toHTTPError(ctx, h.logger, "list subscriptions", err)
	}
	out := &ListSubscriptionsOutput{}
	out.Body.Subscriptions = subs
	return out, nil
}

// AutoRenewInput toggles renewal from the wallet.
type AutoRenewInput struct {
	Body struct {
		Enabled bool `json:"enabled" doc:"Renew paid plans from the wallet when they expire"`
	}
}

// AutoRenewOutput echoes the stored setting.
type AutoRenewOutput struct {
	Body struct {
		AutoRenew bool `json:"auto_renew"`
	}
}

// SetAutoRenew updates the caller's auto-renew flag.
func (h *SubscriptionHandler) SetAutoRenew(ctx context.Context, input *AutoRenewInput) (*AutoRenewOutput, error) {
	claims, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.svc.SetAutoRenew(ctx, claims.UserID, input.Body.Enabled); err != nil {
		return nil, toHTTPError(ctx, h.logger, "update auto-renew", err)
	}
	out := &AutoRenewOutput{}
	out.Body.AutoRenew = input.Body.Enabled
	return out, nil
}
