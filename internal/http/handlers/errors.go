package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/codecredit-api/internal/logging"
	"github.com/jmylchreest/codecredit-api/internal/plans"
	"github.com/jmylchreest/codecredit-api/internal/service"
)

// Error codes returned in APIError.Code.
const (
	CodeNotFound            = "not_found"
	CodeInvalidInput        = "invalid_input"
	CodeInsufficientBalance = "insufficient_balance"
	CodeInsufficientCredits = "insufficient_credits"
	CodeExhausted           = "credits_exhausted"
	CodeInvalidDirection    = "invalid_direction"
	CodeSamePlan            = "same_plan"
	CodeInvalidTransition   = "invalid_transition"
	CodeScheduleConflict    = "schedule_conflict"
	CodeCancellationWindow  = "cancellation_window"
	CodeDuplicate           = "duplicate"
	CodeUnavailable         = "unavailable"
	CodeInternal            = "internal_error"
)

// APIError is the problem body for business-rule failures. Only the fields
// relevant to Code are set.
type APIError struct {
	Status int    `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail,omitempty"`
	Code   string `json:"code"`

	Alternatives   []string `json:"alternatives,omitempty"`
	RemainingHours int      `json:"remaining_hours,omitempty"`
	Remediation    string   `json:"remediation,omitempty"`
	UpgradePlans   []string `json:"upgrade_plans,omitempty"`
	RequiredPaisa  int64    `json:"required_paisa,omitempty"`
	AvailablePaisa int64    `json:"available_paisa,omitempty"`
	ShortfallPaisa int64    `json:"shortfall_paisa,omitempty"`
	ScheduledID    string   `json:"scheduled_subscription_id,omitempty"`
}

func (e *APIError) Error() string {
	return e.Detail
}

// GetStatus implements huma.StatusError.
func (e *APIError) GetStatus() int {
	return e.Status
}

func newAPIError(status int, code string, err error) *APIError {
	return &APIError{
		Status: status,
		Title:  http.StatusText(status),
		Detail: err.Error(),
		Code:   code,
	}
}

// toHTTPError maps a service error onto its HTTP response. Anything not
// recognised is logged in full and surfaced as an opaque 500.
func toHTTPError(ctx context.Context, logger *slog.Logger, action string, err error) error {
	var (
		exhausted *service.ExhaustedError
		balance   *service.InsufficientBalanceError
		direction *service.InvalidDirectionError
		conflict  *service.ScheduleConflictError
		window    *service.CancellationWindowError
	)

	switch {
	case errors.As(err, &exhausted):
		e := newAPIError(http.StatusForbidden, CodeExhausted, err)
		e.Remediation = exhausted.Remediation
		e.UpgradePlans = exhausted.UpgradePlans
		return e
	case errors.As(err, &balance):
		e := newAPIError(http.StatusPaymentRequired, CodeInsufficientBalance, err)
		e.RequiredPaisa = balance.Required
		e.AvailablePaisa = balance.Available
		e.ShortfallPaisa = balance.Shortfall()
		return e
	case errors.Is(err, service.ErrInsufficientCredits):
		return newAPIError(http.StatusPaymentRequired, CodeInsufficientCredits, err)
	case errors.As(err, &direction):
		e := newAPIError(http.StatusBadRequest, CodeInvalidDirection, err)
		e.Alternatives = direction.Alternatives
		return e
	case errors.As(err, &conflict):
		e := newAPIError(http.StatusConflict, CodeScheduleConflict, err)
		e.ScheduledID = conflict.ScheduledID
		return e
	case errors.As(err, &window):
		e := newAPIError(http.StatusBadRequest, CodeCancellationWindow, err)
		e.RemainingHours = window.RemainingHours
		return e
	case errors.Is(err, service.ErrSamePlan):
		return newAPIError(http.StatusBadRequest, CodeSamePlan, err)
	case errors.Is(err, service.ErrInvalidTransition), errors.Is(err, service.ErrCannotCancelFree):
		return newAPIError(http.StatusBadRequest, CodeInvalidTransition, err)
	case errors.Is(err, service.ErrDuplicatePromotion):
		return newAPIError(http.StatusConflict, CodeDuplicate, err)
	case errors.Is(err, service.ErrNotFound), errors.Is(err, plans.ErrPlanNotFound):
		return newAPIError(http.StatusNotFound, CodeNotFound, err)
	case errors.Is(err, service.ErrInvalidInput):
		return newAPIError(http.StatusUnprocessableEntity, CodeInvalidInput, err)
	case errors.Is(err, service.ErrStorageDisabled), errors.Is(err, service.ErrExecutorUnavailable):
		return newAPIError(http.StatusServiceUnavailable, CodeUnavailable, err)
	}

	logging.FromContext(ctx, logger).Error("request failed", "action", action, "error", err)
	return &APIError{
		Status: http.StatusInternalServerError,
		Title:  http.StatusText(http.StatusInternalServerError),
		Detail: "failed to " + action,
		Code:   CodeInternal,
	}
}

var _ huma.StatusError = (*APIError)(nil)
