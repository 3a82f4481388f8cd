package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/codecredit-api/internal/config"
	"github.com/jmylchreest/codecredit-api/internal/logging"
	"github.com/jmylchreest/codecredit-api/internal/models"
	"github.com/jmylchreest/codecredit-api/internal/plans"
	"github.com/jmylchreest/codecredit-api/internal/repository"
)

// SubscriptionService runs the subscription state machine. Every
// transition holds the user's lock and runs in one database transaction
// that also rewrites the user's cached active subscription ID.
type SubscriptionService struct {
	store   *repository.Store
	catalog *plans.Catalog
	billing *config.BillingConfig
	locks   *userLocks
	metrics *Metrics
	now     Clock
	logger  *slog.Logger
}

// NewSubscriptionService creates a new subscription service.
func NewSubscriptionService(store *repository.Store, catalog *plans.Catalog, billing *config.BillingConfig, locks *userLocks, metrics *Metrics, now Clock, logger *slog.Logger) *SubscriptionService {
	return &SubscriptionService{
		store:   store,
		catalog: catalog,
		billing: billing,
		locks:   locks,
		metrics: metrics,
		now:     now,
		logger:  logger.With("component", "subscription"),
	}
}

// transition runs fn under the user's lock inside a transaction.
func (s *SubscriptionService) transition(ctx context.Context, userID, kind string, fn func(r *repository.Repositories, now time.Time) error) error {
	unlock := s.locks.Lock(userID)
	defer unlock()

	now := s.now()
	if err := s.store.WithinTx(ctx, func(r *repository.Repositories) error { return fn(r, now) }); err != nil {
		return err
	}
	s.metrics.transition(ctx, kind)
	logging.FromContext(ctx, s.logger).Info("subscription transition", "user_id", userID, "kind", kind)
	return nil
}

func newSubscription(userID string, plan plans.Plan, start, now time.Time) *models.Subscription {
	return &models.Subscription{
		ID:            ulid.Make().String(),
		UserID:        userID,
		Plan:          plan.ID,
		PricePaisa:    plan.PricePaisa,
		CreditsPerDay: plan.CreditsPerDay,
		StartDate:     start,
		EndDate:       start.AddDate(0, 0, plan.DurationDays),
		Status:        models.SubscriptionActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Register creates the user with an active free subscription. Registering
// an existing user returns it unchanged.
func (s *SubscriptionService) Register(ctx context.Context, userID, email, name string) (*models.User, error) {
	free := s.catalog.FreePlan()
	var user *models.User
	created := false

	err := s.transition(ctx, userID, "register", func(r *repository.Repositories, now time.Time) error {
		existing, err := r.User.GetByID(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to get user: %w", err)
		}
		if existing != nil {
			user = existing
			return nil
		}

		user = &models.User{
			ID:           userID,
			Email:        email,
			Name:         name,
			Role:         models.RoleUser,
			Credits:      models.Credits{Free: free.CreditsPerDay},
			RegisteredAt: now,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := r.User.Create(ctx, user); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}

		sub := newSubscription(userID, free, now, now)
		sub.Active = true
		sub.EndDate = user.FreePlanEnd(free.DurationDays)
		if err := r.Subscription.Create(ctx, sub); err != nil {
			return fmt.Errorf("failed to create free subscription: %w", err)
		}
		if err := r.User.SetActiveSubscription(ctx, userID, &sub.ID); err != nil {
			return fmt.Errorf("failed to cache active subscription: %w", err)
		}
		user.ActiveSubscriptionID = &sub.ID

		_, err = appendEntry(ctx, r, entry{
			userID:         userID,
			txType:         models.TxSubscriptionActivation,
			description:    free.DisplayName + " activated",
			subscriptionID: sub.ID,
		}, now)
		created = err == nil
		return err
	})
	if err != nil {
		return nil, err
	}
	if created {
		s.logger.Info("user registered", "user_id", userID)
	}
	return user, nil
}

// Subscribe moves a free user onto a paid plan, charging the wallet.
func (s *SubscriptionService) Subscribe(ctx context.Context, userID, planID string) (*models.Subscription, error) {
	plan, err := s.catalog.Lookup(planID)
	if err != nil {
		return nil, err
	}
	if plan.IsFree() {
		return nil, fmt.Errorf("%w: already entitled to the free plan", ErrInvalidTransition)
	}

	var sub *models.Subscription
	err = s.transition(ctx, userID, "subscribe", func(r *repository.Repositories, now time.Time) error {
		user, err := getUser(ctx, r, userID)
		if err != nil {
			return err
		}
		current, err := r.Subscription.GetActive(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to get active subscription: %w", err)
		}
		if s.isRunningPaid(current, now) {
			return fmt.Errorf("%w: already subscribed to %s", ErrInvalidTransition, current.Plan)
		}
		sub, err = s.activatePaid(ctx, r, user, current, plan, now, models.TxSubscriptionPayment)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// activatePaid charges for plan, retires current and makes a new active row.
// A pending scheduled row blocks it: the activation sweep would otherwise
// expire the plan bought here.
func (s *SubscriptionService) activatePaid(ctx context.Context, r *repository.Repositories, user *models.User, current *models.Subscription, plan plans.Plan, now time.Time, txType models.TransactionType) (*models.Subscription, error) {
	if err := s.checkNoSchedule(ctx, r, user.ID); err != nil {
		return nil, err
	}
	if err := charge(ctx, r, user, plan.PricePaisa); err != nil {
		return nil, err
	}

	if current != nil {
		status := models.SubscriptionUpgraded
		if current.Plan != s.catalog.FreePlan().ID {
			// A paid plan past its end that the renewal sweep has not reached yet.
			status = models.SubscriptionExpired
		}
		if err := r.Subscription.Deactivate(ctx, current.ID, status, nil); err != nil {
			return nil, fmt.Errorf("failed to deactivate subscription: %w", err)
		}
	}

	sub := newSubscription(user.ID, plan, now, now)
	sub.Active = true
	if err := r.Subscription.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}
	if err := r.User.SetActiveSubscription(ctx, user.ID, &sub.ID); err != nil {
		return nil, fmt.Errorf("failed to cache active subscription: %w", err)
	}

	if _, err := appendEntry(ctx, r, entry{
		userID:         user.ID,
		txType:         txType,
		amountPaisa:    -plan.PricePaisa,
		description:    "Subscribed to " + plan.DisplayName,
		subscriptionID: sub.ID,
	}, now); err != nil {
		return nil, err
	}
	return sub, nil
}

// Upgrade moves the user to a higher tier. From free it behaves like
// Subscribe. From a running paid plan the new plan is paid for now and
// scheduled to start when the current period ends.
func (s *SubscriptionService) Upgrade(ctx context.Context, userID, planID string) (*models.Subscription, error) {
	target, err := s.catalog.Lookup(planID)
	if err != nil {
		return nil, err
	}

	var sub *models.Subscription
	err = s.transition(ctx, userID, "upgrade", func(r *repository.Repositories, now time.Time) error {
		user, err := getUser(ctx, r, userID)
		if err != nil {
			return err
		}
		current, err := r.Subscription.GetActive(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to get active subscription: %w", err)
		}

		currentPlan := s.catalog.FreePlan()
		if current != nil {
			if currentPlan, err = s.catalog.Lookup(current.Plan); err != nil {
				return err
			}
		}
		if currentPlan.ID == target.ID {
			return ErrSamePlan
		}
		if target.Tier <= currentPlan.Tier {
			return &InvalidDirectionError{
				Current:      currentPlan.ID,
				Requested:    target.ID,
				Alternatives: s.catalog.UpgradesFrom(currentPlan.ID),
			}
		}

		if currentPlan.IsFree() {
			sub, err = s.activatePaid(ctx, r, user, current, target, now, models.TxSubscriptionPayment)
			return err
		}
		if !current.IsRunning(now) {
			sub, err = s.activatePaid(ctx, r, user, current, target, now, models.TxSubscriptionUpgrade)
			return err
		}

		sub, err = s.schedule(ctx, r, user, current, target, now, models.TxSubscriptionUpgrade)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// schedule pays for target now and queues it to start at current's end.
func (s *SubscriptionService) schedule(ctx context.Context, r *repository.Repositories, user *models.User, current *models.Subscription, target plans.Plan, now time.Time, txType models.TransactionType) (*models.Subscription, error) {
	if err := s.checkNoSchedule(ctx, r, user.ID); err != nil {
		return nil, err
	}
	if err := charge(ctx, r, user, target.PricePaisa); err != nil {
		return nil, err
	}

	sub := newSubscription(user.ID, target, current.EndDate, now)
	sub.Status = models.SubscriptionScheduled
	if err := r.Subscription.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to create scheduled subscription: %w", err)
	}

	if _, err := appendEntry(ctx, r, entry{
		userID:         user.ID,
		txType:         txType,
		amountPaisa:    -target.PricePaisa,
		description:    fmt.Sprintf("%s scheduled from %s", target.DisplayName, sub.StartDate.Format(time.DateOnly)),
		subscriptionID: sub.ID,
	}, now); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *SubscriptionService) checkNoSchedule(ctx context.Context, r *repository.Repositories, userID string) error {
	scheduled, err := r.Subscription.GetScheduled(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get scheduled subscription: %w", err)
	}
	if scheduled != nil {
		return &ScheduleConflictError{ScheduledID: scheduled.ID, ScheduledPlan: scheduled.Plan}
	}
	return nil
}

// Downgrade moves a running paid plan to a lower paid tier. Under the
// immediate policy the lower plan starts now at no charge; under
// end_of_term it is paid for now and scheduled at the current end.
func (s *SubscriptionService) Downgrade(ctx context.Context, userID, planID string) (*models.Subscription, error) {
	target, err := s.catalog.Lookup(planID)
	if err != nil {
		return nil, err
	}
	if target.IsFree() {
		return nil, fmt.Errorf("%w: cancel the subscription to return to the free plan", ErrInvalidTransition)
	}

	var sub *models.Subscription
	err = s.transition(ctx, userID, "downgrade", func(r *repository.Repositories, now time.Time) error {
		user, err := getUser(ctx, r, userID)
		if err != nil {
			return err
		}
		current, err := r.Subscription.GetActive(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to get active subscription: %w", err)
		}
		if !s.isRunningPaid(current, now) {
			return fmt.Errorf("%w: no running paid subscription", ErrInvalidTransition)
		}
		if current.Plan == target.ID {
			return ErrSamePlan
		}
		currentTier, err := s.catalog.TierOf(current.Plan)
		if err != nil {
			return err
		}
		if target.Tier >= currentTier {
			return &InvalidDirectionError{
				Current:      current.Plan,
				Requested:    target.ID,
				Alternatives: s.catalog.DowngradesFrom(current.Plan),
			}
		}

		if s.billing.DowngradePolicy == config.DowngradeEndOfTerm {
			sub, err = s.schedule(ctx, r, user, current, target, now, models.TxSubscriptionDowngrade)
			return err
		}

		// A pending schedule would override the downgrade when it activates.
		if err := s.checkNoSchedule(ctx, r, userID); err != nil {
			return err
		}
		if err := r.Subscription.Deactivate(ctx, current.ID, models.SubscriptionDowngraded, &now); err != nil {
			return fmt.Errorf("failed to deactivate subscription: %w", err)
		}
		sub = newSubscription(userID, target, now, now)
		sub.Active = true
		sub.PricePaisa = 0
		if err := r.Subscription.Create(ctx, sub); err != nil {
			return fmt.Errorf("failed to create subscription: %w", err)
		}
		if err := r.User.SetActiveSubscription(ctx, userID, &sub.ID); err != nil {
			return fmt.Errorf("failed to cache active subscription: %w", err)
		}
		_, err = appendEntry(ctx, r, entry{
			userID:         userID,
			txType:         models.TxSubscriptionDowngrade,
			description:    fmt.Sprintf("Downgraded from %s to %s", current.Plan, target.DisplayName),
			subscriptionID: sub.ID,
		}, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Cancel ends the running paid plan now and restores the free plan.
// A pending scheduled subscription is refunded.
func (s *SubscriptionService) Cancel(ctx context.Context, userID string) (*models.Subscription, error) {
	var freeSub *models.Subscription
	err := s.transition(ctx, userID, "cancel", func(r *repository.Repositories, now time.Time) error {
		user, err := getUser(ctx, r, userID)
		if err != nil {
			return err
		}
		current, err := r.Subscription.GetActive(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to get active subscription: %w", err)
		}
		if current == nil {
			return notFound("active subscription for user", userID)
		}
		if current.Plan == s.catalog.FreePlan().ID {
			return ErrCannotCancelFree
		}
		if elapsed := now.Sub(current.StartDate); elapsed < s.billing.CancellationWindow {
			return &CancellationWindowError{
				RemainingHours: int(math.Ceil((s.billing.CancellationWindow - elapsed).Hours())),
			}
		}

		current.Active = false
		current.Status = models.SubscriptionCancelled
		current.EndDate = now
		current.CancelledAt = &now
		current.UpdatedAt = now
		if err := r.Subscription.Update(ctx, current); err != nil {
			return fmt.Errorf("failed to cancel subscription: %w", err)
		}

		if freeSub, err = s.restoreFree(ctx, r, user, now); err != nil {
			return err
		}
		if _, err := appendEntry(ctx, r, entry{
			userID:         userID,
			txType:         models.TxSubscriptionCancellation,
			description:    "Cancelled " + current.Plan,
			subscriptionID: current.ID,
		}, now); err != nil {
			return err
		}

		_, err = s.refundScheduled(ctx, r, user, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return freeSub, nil
}

// restoreFree reactivates the user's earliest free row, or creates one,
// ending a free-plan duration after registration. A window that already
// closed restarts from now.
func (s *SubscriptionService) restoreFree(ctx context.Context, r *repository.Repositories, user *models.User, now time.Time) (*models.Subscription, error) {
	free := s.catalog.FreePlan()

	sub, err := r.Subscription.GetEarliestFree(ctx, user.ID, free.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get free subscription: %w", err)
	}
	isNew := sub == nil
	if isNew {
		sub = newSubscription(user.ID, free, now, now)
	}

	sub.Active = true
	sub.Status = models.SubscriptionActive
	sub.CancelledAt = nil
	sub.UpdatedAt = now
	sub.EndDate = user.FreePlanEnd(free.DurationDays)
	if !sub.EndDate.After(now) {
		sub.StartDate = now
		sub.EndDate = now.AddDate(0, 0, free.DurationDays)
		sub.Status = models.SubscriptionRenewed
	}

	if isNew {
		err = r.Subscription.Create(ctx, sub)
	} else {
		err = r.Subscription.Update(ctx, sub)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to restore free subscription: %w", err)
	}
	if _, err := r.Subscription.DeleteOtherFree(ctx, user.ID, free.ID, sub.ID); err != nil {
		return nil, fmt.Errorf("failed to prune free subscriptions: %w", err)
	}
	if err := r.User.SetActiveSubscription(ctx, user.ID, &sub.ID); err != nil {
		return nil, fmt.Errorf("failed to cache active subscription: %w", err)
	}
	return sub, nil
}

// refundScheduled refunds and deletes the user's scheduled row, if any.
func (s *SubscriptionService) refundScheduled(ctx context.Context, r *repository.Repositories, user *models.User, now time.Time) (*models.Subscription, error) {
	scheduled, err := r.Subscription.GetScheduled(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get scheduled subscription: %w", err)
	}
	if scheduled == nil {
		return nil, nil
	}

	if err := refund(ctx, r, user, scheduled.PricePaisa); err != nil {
		return nil, err
	}
	if err := r.Subscription.Delete(ctx, scheduled.ID); err != nil {
		return nil, fmt.Errorf("failed to delete scheduled subscription: %w", err)
	}
	if _, err := appendEntry(ctx, r, entry{
		userID:         user.ID,
		txType:         models.TxSubscriptionRefund,
		amountPaisa:    scheduled.PricePaisa,
		description:    "Refund for scheduled " + scheduled.Plan,
		subscriptionID: scheduled.ID,
	}, now); err != nil {
		return nil, err
	}
	return scheduled, nil
}

// CancelScheduled refunds and removes the user's scheduled subscription.
func (s *SubscriptionService) CancelScheduled(ctx context.Context, userID string) (*models.Subscription, error) {
	var scheduled *models.Subscription
	err := s.transition(ctx, userID, "cancel_scheduled", func(r *repository.Repositories, now time.Time) error {
		user, err := getUser(ctx, r, userID)
		if err != nil {
			return err
		}
		if scheduled, err = s.refundScheduled(ctx, r, user, now); err != nil {
			return err
		}
		if scheduled == nil {
			return notFound("scheduled subscription for user", userID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return scheduled, nil
}

// SetAutoRenew records the user's renewal opt-in.
func (s *SubscriptionService) SetAutoRenew(ctx context.Context, userID string, enabled bool) error {
	unlock := s.locks.Lock(userID)
	defer unlock()

	err := s.store.User.SetAutoRenew(ctx, userID, enabled)
	if errors.Is(err, repository.ErrConditionFailed) {
		return notFound("user", userID)
	}
	if err != nil {
		return fmt.Errorf("failed to set auto-renew: %w", err)
	}
	return nil
}

// GetActive returns the user's active subscription, or nil.
func (s *SubscriptionService) GetActive(ctx context.Context, userID string) (*models.Subscription, error) {
	return s.store.Subscription.GetActive(ctx, userID)
}

// List returns the user's subscription history, newest first.
func (s *SubscriptionService) List(ctx context.Context, userID string) ([]*models.Subscription, error) {
	return s.store.Subscription.ListByUser(ctx, userID)
}

func (s *SubscriptionService) isRunningPaid(sub *models.Subscription, now time.Time) bool {
	return sub != nil && sub.Plan != s.catalog.FreePlan().ID && sub.IsRunning(now)
}
