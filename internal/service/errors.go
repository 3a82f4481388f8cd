package service

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound indicates a missing user, subscription, promotion or execution.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates a malformed request value.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInsufficientBalance indicates the wallet cannot cover a charge.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInsufficientCredits indicates a finite pool was empty at commit.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrExhausted indicates no credit source can fund an execution.
	ErrExhausted = errors.New("no credits available")

	// ErrInvalidDirection indicates a plan change in the wrong tier direction.
	ErrInvalidDirection = errors.New("invalid plan change direction")

	// ErrSamePlan indicates a change to the plan the user already holds.
	ErrSamePlan = errors.New("already on this plan")

	// ErrInvalidTransition indicates a subscription change not allowed from the current state.
	ErrInvalidTransition = errors.New("invalid subscription transition")

	// ErrScheduleConflict indicates a scheduled subscription already exists.
	ErrScheduleConflict = errors.New("a scheduled subscription already exists")

	// ErrCannotCancelFree indicates an attempt to cancel the free plan.
	ErrCannotCancelFree = errors.New("the free plan cannot be cancelled")

	// ErrCancellationWindow indicates a cancel inside the post-start window.
	ErrCancellationWindow = errors.New("subscription cannot be cancelled yet")

	// ErrDuplicatePromotion indicates the offer name is taken.
	ErrDuplicatePromotion = errors.New("a promotion with this offer name already exists")

	// ErrStorageDisabled indicates object storage is not configured.
	ErrStorageDisabled = errors.New("storage is not enabled")

	// ErrExecutorUnavailable indicates the execution backend could not run the code.
	ErrExecutorUnavailable = errors.New("execution backend unavailable")
)

func notFound(kind, id string) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
}

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// InsufficientBalanceError reports how much a charge needed.
type InsufficientBalanceError struct {
	Required  int64
	Available int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: need %d paisa, have %d", e.Required, e.Available)
}

func (e *InsufficientBalanceError) Is(target error) bool { return target == ErrInsufficientBalance }

// Shortfall is the amount the user must add to cover the charge.
func (e *InsufficientBalanceError) Shortfall() int64 {
	return e.Required - e.Available
}

// InsufficientCreditsError names the pool that ran dry.
type InsufficientCreditsError struct {
	Source string
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits in %s pool", e.Source)
}

func (e *InsufficientCreditsError) Is(target error) bool { return target == ErrInsufficientCredits }

// InvalidDirectionError lists the plans the user may move to instead.
type InvalidDirectionError struct {
	Current      string
	Requested    string
	Alternatives []string
}

func (e *InvalidDirectionError) Error() string {
	msg := fmt.Sprintf("cannot change from %s to %s", e.Current, e.Requested)
	if len(e.Alternatives) > 0 {
		msg += " (allowed: " + strings.Join(e.Alternatives, ", ") + ")"
	}
	return msg
}

func (e *InvalidDirectionError) Is(target error) bool { return target == ErrInvalidDirection }

// ScheduleConflictError carries the pending subscription to cancel first.
type ScheduleConflictError struct {
	ScheduledID   string
	ScheduledPlan string
}

func (e *ScheduleConflictError) Error() string {
	return fmt.Sprintf("subscription %s (%s) is already scheduled; cancel it first", e.ScheduledID, e.ScheduledPlan)
}

func (e *ScheduleConflictError) Is(target error) bool { return target == ErrScheduleConflict }

// CancellationWindowError reports whole hours until cancel is allowed.
type CancellationWindowError struct {
	RemainingHours int
}

func (e *CancellationWindowError) Error() string {
	return fmt.Sprintf("subscription can be cancelled in %d hours", e.RemainingHours)
}

func (e *CancellationWindowError) Is(target error) bool { return target == ErrCancellationWindow }

// Remediation values for ExhaustedError.
const (
	RemediationPurchaseCredits = "purchase_credits"
	RemediationUpgradePlan     = "upgrade_plan"
)

// ExhaustedError carries the cheapest way to get more credits.
type ExhaustedError struct {
	Remediation  string
	UpgradePlans []string
}

func (e *ExhaustedError) Error() string {
	return "no credits available: " + e.Remediation
}

func (e *ExhaustedError) Is(target error) bool { return target == ErrExhausted }
