package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/codecredit-api/internal/auth"
	"github.com/jmylchreest/codecredit-api/internal/models"
	"github.com/jmylchreest/codecredit-api/internal/service"
)

// AdminHandler handles admin endpoints. Admin access is enforced by the
// auth middleware before any of these run.
type AdminHandler struct {
	adminSvc *service.AdminService
	promoSvc *service.PromotionService
	subSvc   *service.SubscriptionService
	logger   *slog.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(adminSvc *service.AdminService, promoSvc *service.PromotionService, subSvc *service.SubscriptionService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		adminSvc: adminSvc,
		promoSvc: promoSvc,
		subSvc:   subSvc,
		logger:   logger,
	}
}

// ========================================
// Users
// ========================================

// ListUsersOutput is a page of users.
type ListUsersOutput struct {
	Body struct {
		Users  []*models.User `json:"users"`
		Total  int            `json:"total"`
		Limit  int            `json:"limit"`
		Offset int            `json:"offset"`
	}
}

// ListUsers returns all users, newest first.
func (h *AdminHandler) ListUsers(ctx context.Context, input *PageInput) (*ListUsersOutput, error) {
	users, total, err := h.adminSvc.ListUsers(ctx, input.Limit, input.Offset)
	if err != nil {
		return nil, toHTTPError(ctx, h.logger, "list users", err)
	}
	out := &ListUsersOutput{}
	out.Body.Users = users
	out.Body.Total = total
	out.Body.Limit = input.Limit
	out.Body.Offset = input.Offset
	return out, nil
}

// UserIDInput selects a user.
type UserIDInput struct {
	UserID string `path:"user_id" doc:"User ID"`
}

// UserDetailOutput is the admin view of one user.
type UserDetailOutput struct {
	Body *service.UserDetail
}

// GetUser returns a user's account, subscription, credit status and grants.
func (h *AdminHandler) GetUser(ctx context.Context, input *UserIDInput) (*UserDetailOutput, error) {
	detail, err := h.adminSvc.GetUserDetail(ctx, input.UserID)
	if err != nil {
		return nil, toHTTPError(ctx, h.logger, "get user", err)
	}
	return &UserDetailOutput{Body: detail}, nil
}

// UserTransactionsInput pages one user's ledger.
type UserTransactionsInput struct {
	UserID string `path:"user_id" doc:"User ID"`
	PageInput
}

// ListUserTransactions returns one user's ledger, newest first.
func (h *AdminHandler) ListUserTransactions(ctx context.Context, input *UserTransactionsInput) (*ListTransactionsOutput, error) {
	txs, err := h.adminSvc.ListUserTransactions(ctx, input.UserID, input.Limit, input.Offset)
	if err != nil {
		return nil, toHTTPError(ctx, h.logger, "list user transactions", err)
	}
	return transactionsPage(txs, &input.PageInput), nil
}

// GrantCreditsInput is an admin credit grant.
type GrantCreditsInput struct {
	UserID string `path:"user_id" doc:"User ID"`
	Body   struct {
		Credits int    `json:"credits" minimum:"1" doc:"Credits to add to the granted pool"`
		Reason  string `json:"reason,omitempty" maxLength:"500" doc:"Audit note"`
	}
}

// GrantCreditsOutput is the grant audit record.
type GrantCreditsOutput struct {
	Body *models.AdminGrant
}

// GrantCredits adds credits to a user's granted pool.
func (h *AdminHandler) GrantCredits(ctx context.Context, input *GrantCreditsInput) (*GrantCreditsOutput, error) {
	claims := auth.ClaimsFromContext(ctx)
	if claims == nil {
		return nil, huma.Error401Unauthorized("unauthorized")
	}
	grant, err := h.adminSvc.GrantCredits(ctx, claims.UserID, input.UserID, input.Body.Credits, input.Body.Reason)
	if err != nil {
		return nil, toHTTPError(ctx, h.logger, "grant credits", err)
	}
	return &GrantCreditsOutput{Body: grant}, nil
}

// ========================================
// Promotions
// ========================================

// PromotionBody holds the editable promotion fields.
type PromotionBody struct {
	OfferName string    `json:"offer_name" minLength:"1" maxLength:"200" doc:"Display name of the offer"`
	Credits   int       `json:"credits" minimum:"1" doc:"Credits each user receives"`
	StartDate time.Time `json:"start_date" doc:"Offer start (RFC 3339)"`
	EndDate   time.Time `json:"end_date" doc:"Offer end (RFC 3339)"`
}

func (b PromotionBody) toInput() service.PromotionInput {
	return service.PromotionInput{
		OfferName: b.OfferName,
		Credits:   b.Credits,
		StartDate: b.StartDate,
		EndDate:   b.EndDate,
	}
}

// CreatePromotionInput creates a promotion.
type CreatePromotionInput struct {
	Body PromotionBody
}

// UpdatePromotionInput replaces a promotion's fields.
type UpdatePromotionInput struct {
	ID   string `path:"id" doc:"Promotion ID"`
	Body PromotionBody
}

// PromotionIDInput selects a promotion.
type PromotionIDInput struct {
	ID string `path:"id" doc:"Promotion ID"`
}

// PromotionOutput is one promotion.
type PromotionOutput struct {
	Body *models.Promotion
}

// ListPromotionsOutput lists every promotion.
type ListPromotionsOutput struct {
	Body struct {
		Promotions []*models.Promotion `json:"promotions"`
	}
}

// CreatePromotion creates a promotion. Users who sign up while it runs
// receive it automatically.
func (h *AdminHandler) CreatePromotion(ctx context.Context, input *CreatePromotionInput) (*PromotionOutput, error) {
	claims := auth.ClaimsFromContext(ctx)
	if claims == nil {
		return nil, huma.Error401Unauthorized("unauthorized")
	}
	promo, err := h.promoSvc.Create(ctx, input.Body.toInput(), claims.UserID)
	if err != nil {
		return nil, toHTTPError(ctx, h.logger, "create promotion", err)
	}
	return &PromotionOutput{Body: promo}, nil
}

// UpdatePromotion edits a promotion and its unspent user entries.
func (h *AdminHandler) UpdatePromotion(ctx context.Context, input *UpdatePromotionInput) (*PromotionOutput, error) {
	promo, err := h.promoSvc.Update(ctx, input.ID, input.Body.toInput())
	if err != nil {
		return nil, toHTTPError(ctx, h.logger, "update promotion", err)
	}
	return &PromotionOutput{Body: promo}, nil
}

// DeletePromotion removes a promotion and its user entries.
func (h *AdminHandler) DeletePromotion(ctx context.Context, input *PromotionIDInput) (*struct{}, error) {
	if err := h.promoSvc.Delete(ctx, input.ID); err != nil {
		return nil, toHTTPError(ctx, h.logger, "delete promotion", err)
	}
	return nil, nil
}

// ListPromotions returns all promotions with their user counts.
func (h *AdminHandler) ListPromotions(ctx context.Context, _ *struct{}) (*ListPromotionsOutput, error) {
	promos, err := h.promoSvc.List(ctx)
	if err != nil {
		return nil, toHTTPError(ctx, h.logger, "list promotions", err)
	}
	out := &ListPromotionsOutput{}
	out.Body.Promotions = promos
	return out, nil
}

// GrantPromotionInput gives one user a promotion.
type GrantPromotionInput struct {
	ID     string `path:"id" doc:"Promotion ID"`
	UserID string `path:"user_id" doc:"User ID"`
}

// GrantPromotionOutput reports whether a new entry was created.
type GrantPromotionOutput struct {
	Body struct {
		Granted bool `json:"granted" doc:"False when the user already held this promotion"`
	}
}

// GrantPromotion gives one user the promotion if they never had it.
func (h *AdminHandler) GrantPromotion(ctx context.Context, input *GrantPromotionInput) (*GrantPromotionOutput, error) {
	granted, err := h.promoSvc.Grant(ctx, input.ID, input.UserID)
	if err != nil {
		return nil, toHTTPError(ctx, h.logger, "grant promotion", err)
	}
	out := &GrantPromotionOutput{}
	out.Body.Granted = granted
	return out, nil
}

// ========================================
// Sweeps
// ========================================

// SweepInput names the sweep to run.
type SweepInput struct {
	Name string `path:"name" enum:"activation,renewal,promotion_apply,promotion_cleanup" doc:"Sweep to run"`
}

// SweepOutput is the result of a manual sweep run.
type SweepOutput struct {
	Body struct {
		Sweep   string              `json:"sweep"`
		Result  service.SweepResult `json:"result"`
		Removed int64               `json:"removed,omitempty"`
	}
}

// RunSweep runs one background sweep immediately.
func (h *AdminHandler) RunSweep(ctx context.Context, input *SweepInput) (*SweepOutput, error) {
	out := &SweepOutput{}
	out.Body.Sweep = input.Name

	var err error
	switch input.Name {
	case "activation":
		out.Body.Result, err = h.subSvc.ActivateScheduled(ctx)
	case "renewal":
		out.Body.Result, err = h.subSvc.RenewExpired(ctx)
	case "promotion_apply":
		out.Body.Result, err = h.promoSvc.ApplyActive(ctx)
	case "promotion_cleanup":
		out.Body.Removed, err = h.promoSvc.CleanupExpired(ctx)
	default:
		return nil, huma.Error422UnprocessableEntity("unknown sweep: " + input.Name)
	}
	if err != nil {
		return nil, toHTTPError(ctx, h.logger, "run "+input.Name+" sweep", err)
	}
	return out, nil
}
