package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmylchreest/codecredit-api/internal/logging"
	"github.com/jmylchreest/codecredit-api/internal/models"
	"github.com/jmylchreest/codecredit-api/internal/repository"
)

// Sweep outcomes.
const (
	outcomeActivated = "activated"
	outcomeRenewed   = "renewed"
	outcomeExpired   = "expired"
	outcomeGranted   = "granted"
	outcomeSkipped   = "skipped"
	outcomeFailed    = "failed"
)

// SweepResult summarises one sweep run.
type SweepResult struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

func (r *SweepResult) record(outcome string) {
	r.Processed++
	switch outcome {
	case outcomeSkipped:
		r.Skipped++
	case outcomeFailed:
		r.Failed++
	default:
		r.Succeeded++
	}
}

// errSkip abandons one sweep item without counting it as a failure.
var errSkip = errors.New("sweep item skipped")

// sweepItem runs fn for one subscription under the owner's lock in its own
// transaction. A failure is logged and does not stop the sweep.
func (s *SubscriptionService) sweepItem(ctx context.Context, sweep string, sub *models.Subscription, fn func(r *repository.Repositories, now time.Time) (string, error)) string {
	unlock := s.locks.Lock(sub.UserID)
	defer unlock()

	log := logging.FromContext(ctx, s.logger)
	now := s.now()
	var outcome string
	err := s.store.WithinTx(ctx, func(r *repository.Repositories) error {
		var err error
		outcome, err = fn(r, now)
		return err
	})

	switch {
	case errors.Is(err, errSkip):
		outcome = outcomeSkipped
	case err != nil:
		log.Error("sweep item failed", "sweep", sweep, "subscription_id", sub.ID, "user_id", sub.UserID, "error", err)
		outcome = outcomeFailed
	default:
		log.Info("sweep item processed", "sweep", sweep, "subscription_id", sub.ID, "user_id", sub.UserID, "outcome", outcome)
		s.metrics.transition(ctx, outcome)
	}
	s.metrics.sweepItem(ctx, sweep, outcome)
	return outcome
}

// ActivateScheduled moves every scheduled subscription whose start has
// arrived into the active slot, expiring whatever held it.
func (s *SubscriptionService) ActivateScheduled(ctx context.Context) (SweepResult, error) {
	ctx = logging.WithSweep(ctx, "activation")
	var result SweepResult

	due, err := s.store.Subscription.DueForActivation(ctx, s.now())
	if err != nil {
		return result, fmt.Errorf("failed to list due subscriptions: %w", err)
	}

	for _, sub := range due {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		result.record(s.sweepItem(ctx, "activation", sub, func(r *repository.Repositories, now time.Time) (string, error) {
			return s.activateOne(ctx, r, sub.ID, now)
		}))
	}
	logging.FromContext(ctx, s.logger).Info("activation sweep complete", "processed", result.Processed,
		"succeeded", result.Succeeded, "skipped", result.Skipped, "failed", result.Failed)
	return result, nil
}

func (s *SubscriptionService) activateOne(ctx context.Context, r *repository.Repositories, id string, now time.Time) (string, error) {
	// Re-read under the lock: the user may have cancelled the schedule.
	sub, err := r.Subscription.GetByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("failed to get subscription: %w", err)
	}
	if sub == nil || sub.Status != models.SubscriptionScheduled || sub.StartDate.After(now) {
		return "", errSkip
	}

	current, err := r.Subscription.GetActive(ctx, sub.UserID)
	if err != nil {
		return "", fmt.Errorf("failed to get active subscription: %w", err)
	}
	if current != nil {
		status := models.SubscriptionExpired
		if current.Plan == s.catalog.FreePlan().ID {
			status = models.SubscriptionUpgraded
		}
		if err := r.Subscription.Deactivate(ctx, current.ID, status, nil); err != nil {
			return "", fmt.Errorf("failed to deactivate subscription: %w", err)
		}
	}

	sub.Active = true
	sub.Status = models.SubscriptionActive
	sub.UpdatedAt = now
	if err := r.Subscription.Update(ctx, sub); err != nil {
		return "", fmt.Errorf("failed to activate subscription: %w", err)
	}
	if err := r.User.SetActiveSubscription(ctx, sub.UserID, &sub.ID); err != nil {
		return "", fmt.Errorf("failed to cache active subscription: %w", err)
	}
	if _, err := appendEntry(ctx, r, entry{
		userID:         sub.UserID,
		txType:         models.TxSubscriptionActivation,
		description:    "Activated scheduled " + sub.Plan,
		subscriptionID: sub.ID,
	}, now); err != nil {
		return "", err
	}
	return outcomeActivated, nil
}

// RenewExpired handles every active subscription past its end date.
// Free plans roll over. Paid plans renew when the user opted in and the
// wallet covers the price; otherwise they expire and the free plan returns.
// Users with a due scheduled subscription are left to the activation sweep.
func (s *SubscriptionService) RenewExpired(ctx context.Context) (SweepResult, error) {
	ctx = logging.WithSweep(ctx, "renewal")
	var result SweepResult

	due, err := s.store.Subscription.DueForRenewal(ctx, s.now())
	if err != nil {
		return result, fmt.Errorf("failed to list expired subscriptions: %w", err)
	}

	for _, sub := range due {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		result.record(s.sweepItem(ctx, "renewal", sub, func(r *repository.Repositories, now time.Time) (string, error) {
			return s.renewOne(ctx, r, sub.ID, now)
		}))
	}
	logging.FromContext(ctx, s.logger).Info("renewal sweep complete", "processed", result.Processed,
		"succeeded", result.Succeeded, "skipped", result.Skipped, "failed", result.Failed)
	return result, nil
}

func (s *SubscriptionService) renewOne(ctx context.Context, r *repository.Repositories, id string, now time.Time) (string, error) {
	sub, err := r.Subscription.GetByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("failed to get subscription: %w", err)
	}
	if sub == nil || !sub.Active || sub.EndDate.After(now) {
		return "", errSkip
	}

	scheduled, err := r.Subscription.GetScheduled(ctx, sub.UserID)
	if err != nil {
		return "", fmt.Errorf("failed to get scheduled subscription: %w", err)
	}
	if scheduled != nil && !scheduled.StartDate.After(now) {
		return "", errSkip
	}

	user, err := getUser(ctx, r, sub.UserID)
	if err != nil {
		return "", err
	}
	plan, err := s.catalog.Lookup(sub.Plan)
	if err != nil {
		return "", err
	}

	if plan.IsFree() {
		s.roll(sub, plan.DurationDays, now)
		if err := r.Subscription.Update(ctx, sub); err != nil {
			return "", fmt.Errorf("failed to renew subscription: %w", err)
		}
		if _, err := appendEntry(ctx, r, entry{
			userID:         sub.UserID,
			txType:         models.TxSubscriptionRenewal,
			description:    plan.DisplayName + " renewed",
			subscriptionID: sub.ID,
		}, now); err != nil {
			return "", err
		}
		return outcomeRenewed, nil
	}

	if user.AutoRenew {
		err := charge(ctx, r, user, plan.PricePaisa)
		var insufficient *InsufficientBalanceError
		switch {
		case err == nil:
			s.roll(sub, plan.DurationDays, now)
			sub.PricePaisa = plan.PricePaisa
			sub.CreditsPerDay = plan.CreditsPerDay
			if err := r.Subscription.Update(ctx, sub); err != nil {
				return "", fmt.Errorf("failed to renew subscription: %w", err)
			}
			if _, err := appendEntry(ctx, r, entry{
				userID:         sub.UserID,
				txType:         models.TxSubscriptionRenewal,
				amountPaisa:    -plan.PricePaisa,
				description:    plan.DisplayName + " renewed",
				subscriptionID: sub.ID,
			}, now); err != nil {
				return "", err
			}
			return outcomeRenewed, nil
		case errors.As(err, &insufficient):
			logging.FromContext(ctx, s.logger).Info("auto-renew skipped, insufficient balance",
				"user_id", sub.UserID, "required", insufficient.Required, "available", insufficient.Available)
		default:
			return "", err
		}
	}

	if err := r.Subscription.Deactivate(ctx, sub.ID, models.SubscriptionExpired, nil); err != nil {
		return "", fmt.Errorf("failed to expire subscription: %w", err)
	}
	if _, err := s.restoreFree(ctx, r, user, now); err != nil {
		return "", err
	}
	if _, err := appendEntry(ctx, r, entry{
		userID:         sub.UserID,
		txType:         models.TxSubscriptionExpiry,
		description:    plan.DisplayName + " expired",
		subscriptionID: sub.ID,
	}, now); err != nil {
		return "", err
	}
	return outcomeExpired, nil
}

// roll starts a fresh period for sub at now.
func (s *SubscriptionService) roll(sub *models.Subscription, durationDays int, now time.Time) {
	sub.StartDate = now
	sub.EndDate = now.AddDate(0, 0, durationDays)
	sub.Status = models.SubscriptionRenewed
	sub.UpdatedAt = now
}
