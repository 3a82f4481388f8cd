package handlers

import (
	"context"
	"log/slog"

	"github.com/jmylchreest/codecredit-api/internal/plans"
	"github.com/jmylchreest/codecredit-api/internal/service"
)

// StatusHandler reports the caller's credit position.
type StatusHandler struct {
	svc    *service.StatusService
	logger *slog.Logger
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler(svc *service.StatusService, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{svc: svc, logger: logger}
}

// StatusResponse is the credit status with the daily cap rendered for display.
type StatusResponse struct {
	service.CreditStatus
	DailyLimit any `json:"daily_limit" doc:"Credits per day, or \"Unlimited\""`
}

// StatusOutput wraps the credit status.
type StatusOutput struct {
	Body StatusResponse
}

// Get returns pool balances, today's usage and the active period.
func (h *StatusHandler) Get(ctx context.Context, _ *struct{}) (*StatusOutput, error) {
	claims, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	st, err := h.svc.Get(ctx, claims.UserID)
	if err != nil {
		return nil, toHTTPError(ctx, h.logger, "get credit status", err)
	}
	var limit any = st.CreditsPerDay
	if st.CreditsPerDay == plans.Unlimited {
		limit = unlimitedLabel
	}
	return &StatusOutput{Body: StatusResponse{CreditStatus: *st, DailyLimit: limit}}, nil
}
