package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/codecredit-api/internal/config"
	"github.com/jmylchreest/codecredit-api/internal/logging"
	"github.com/jmylchreest/codecredit-api/internal/models"
	"github.com/jmylchreest/codecredit-api/internal/plans"
	"github.com/jmylchreest/codecredit-api/internal/repository"
)

// Clock returns the current time. Services take one so tests can pin time.
type Clock func() time.Time

// errAlreadyCommitted aborts a commit transaction whose execution ID was already recorded.
var errAlreadyCommitted = errors.New("execution already committed")

// Reservation is the credit source decided for one in-flight execution.
// It is threaded from SelectSource to Commit and never re-derived.
type Reservation struct {
	ExecutionID string
	UserID      string
	Source      models.CreditSource
	PlanID      string
	SelectedAt  time.Time

	released bool
}

type pendingKey struct {
	userID  string
	kind    models.CreditSourceKind
	entryID string
}

// CreditLedger decides which pool funds an execution and commits the spend.
//
// Remaining metered credit is allotment minus the count of today's
// execution records for (user, source). Finite pools are decremented with
// guarded SQL. Reservations held between select and commit are counted as
// spent so concurrent requests from one user cannot share the last unit.
type CreditLedger struct {
	store   *repository.Store
	catalog *plans.Catalog
	billing *config.BillingConfig
	locks   *userLocks
	metrics *Metrics
	now     Clock
	logger  *slog.Logger

	mu      sync.Mutex
	pending map[pendingKey]int
}

// NewCreditLedger creates a new credit ledger.
func NewCreditLedger(store *repository.Store, catalog *plans.Catalog, billing *config.BillingConfig, locks *userLocks, metrics *Metrics, now Clock, logger *slog.Logger) *CreditLedger {
	return &CreditLedger{
		store:   store,
		catalog: catalog,
		billing: billing,
		locks:   locks,
		metrics: metrics,
		now:     now,
		logger:  logger.With("component", "credit_ledger"),
		pending: make(map[pendingKey]int),
	}
}

// SelectSource decides the funding for the user's next execution and
// reserves it. Returns an *ExhaustedError when nothing can pay.
// Every reservation must be passed to Commit or Release.
func (l *CreditLedger) SelectSource(ctx context.Context, userID string) (*Reservation, error) {
	unlock := l.locks.Lock(userID)
	defer unlock()

	now := l.now()
	user, err := l.store.User.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, notFound("user", userID)
	}
	sub, err := l.store.Subscription.GetActive(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	source, err := l.decide(ctx, user, sub, now)
	if err != nil {
		if errors.Is(err, ErrExhausted) {
			l.metrics.exhausted(ctx)
			logging.FromContext(ctx, l.logger).Info("credits exhausted", "user_id", userID)
		}
		return nil, err
	}

	planID := l.catalog.FreePlan().ID
	if sub != nil {
		planID = sub.Plan
	}
	res := &Reservation{
		ExecutionID: ulid.Make().String(),
		UserID:      userID,
		Source:      source,
		PlanID:      planID,
		SelectedAt:  now,
	}
	l.reserve(res)
	l.metrics.sourceSelected(ctx, string(source.Kind))
	return res, nil
}

// decide runs the priority order: unlimited plan, plan daily allotment,
// purchased, granted, promotional, then free when no paid plan is running.
func (l *CreditLedger) decide(ctx context.Context, user *models.User, sub *models.Subscription, now time.Time) (models.CreditSource, error) {
	free := l.catalog.FreePlan()
	paid := sub != nil && sub.Plan != free.ID && sub.IsRunning(now)
	dayStart := l.billing.DayStart(now)

	if paid {
		if sub.CreditsPerDay == plans.Unlimited {
			return models.SubscriptionSource(true), nil
		}
		used, err := l.store.Execution.CountBySourceSince(ctx, user.ID, models.SourceSubscription, dayStart)
		if err != nil {
			return models.CreditSource{}, fmt.Errorf("failed to count subscription usage: %w", err)
		}
		if used+l.pendingFor(user.ID, models.SourceSubscription, "") < sub.CreditsPerDay {
			return models.SubscriptionSource(false), nil
		}
	}

	if user.Credits.Purchased-l.pendingFor(user.ID, models.SourcePurchased, "") > 0 {
		return models.PurchasedSource(), nil
	}
	if user.Credits.Granted-l.pendingFor(user.ID, models.SourceGranted, "") > 0 {
		return models.GrantedSource(), nil
	}

	entries, err := l.store.PromotionalCredit.ListByUser(ctx, user.ID)
	if err != nil {
		return models.CreditSource{}, fmt.Errorf("failed to list promotional credits: %w", err)
	}
	for _, e := range entries {
		if e.Usable(now) && e.Amount-l.pendingFor(user.ID, models.SourcePromotional, e.ID) > 0 {
			return models.PromotionalSource(e.ID), nil
		}
	}

	if !paid {
		used, err := l.store.Execution.CountBySourceSince(ctx, user.ID, models.SourceFree, dayStart)
		if err != nil {
			return models.CreditSource{}, fmt.Errorf("failed to count free usage: %w", err)
		}
		if used+l.pendingFor(user.ID, models.SourceFree, "") < free.CreditsPerDay {
			return models.FreeSource(), nil
		}
	}

	current := free.ID
	if sub != nil {
		current = sub.Plan
	}
	return models.CreditSource{}, &ExhaustedError{
		Remediation:  RemediationPurchaseCredits,
		UpgradePlans: l.catalog.UpgradesFrom(current),
	}
}

// Commit records the execution against the reserved source and consumes
// the credit. The record insert and the pool decrement share one
// transaction. Committing a reservation twice is a no-op.
//
// exec carries the outcome; identity, source and timestamp fields are
// filled from the reservation.
func (l *CreditLedger) Commit(ctx context.Context, res *Reservation, exec *models.Execution) error {
	unlock := l.locks.Lock(res.UserID)
	defer func() {
		l.Release(res)
		unlock()
	}()

	exec.ID = res.ExecutionID
	exec.UserID = res.UserID
	exec.CreditSource = res.Source.Kind
	exec.PromotionalEntryID = nil
	if res.Source.Kind == models.SourcePromotional {
		id := res.Source.PromotionalEntryID
		exec.PromotionalEntryID = &id
	}
	exec.CreditsUsed = 1
	exec.PlanAtTime = res.PlanID
	if exec.CreatedAt.IsZero() {
		exec.CreatedAt = res.SelectedAt
	}

	err := l.store.WithinTx(ctx, func(r *repository.Repositories) error {
		if err := r.Execution.Create(ctx, exec); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return errAlreadyCommitted
			}
			return fmt.Errorf("failed to record execution: %w", err)
		}
		return l.debit(ctx, r, res)
	})

	log := logging.FromContext(ctx, l.logger)
	switch {
	case errors.Is(err, errAlreadyCommitted):
		log.Debug("execution already committed", "execution_id", res.ExecutionID)
		return nil
	case err != nil:
		log.Error("failed to commit execution",
			"execution_id", res.ExecutionID,
			"user_id", res.UserID,
			"source", res.Source.String(),
			"status", exec.Status,
			"error", err,
		)
		return err
	}
	return nil
}

func (l *CreditLedger) debit(ctx context.Context, r *repository.Repositories, res *Reservation) error {
	switch res.Source.Kind {
	case models.SourceFree, models.SourceSubscription:
		// Metered by counting the execution record just written.
		return nil
	case models.SourcePurchased:
		return poolDebit(r.User.DecrementCredit(ctx, res.UserID, repository.PoolPurchased), res.Source)
	case models.SourceGranted:
		return poolDebit(r.User.DecrementCredit(ctx, res.UserID, repository.PoolGranted), res.Source)
	case models.SourcePromotional:
		id := res.Source.PromotionalEntryID
		if err := poolDebit(r.PromotionalCredit.Decrement(ctx, id, res.SelectedAt), res.Source); err != nil {
			return err
		}
		if _, err := r.PromotionalCredit.DeleteIfEmpty(ctx, id); err != nil {
			return fmt.Errorf("failed to prune promotional entry: %w", err)
		}
		return nil
	}
	return fmt.Errorf("unknown credit source %q", res.Source.Kind)
}

func poolDebit(err error, source models.CreditSource) error {
	if errors.Is(err, repository.ErrConditionFailed) {
		return &InsufficientCreditsError{Source: string(source.Kind)}
	}
	if err != nil {
		return fmt.Errorf("failed to decrement %s credits: %w", source.Kind, err)
	}
	return nil
}

// Release drops a reservation that will not be committed. Safe to call
// more than once.
func (l *CreditLedger) Release(res *Reservation) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if res.released {
		return
	}
	res.released = true
	key := res.key()
	l.pending[key]--
	if l.pending[key] <= 0 {
		delete(l.pending, key)
	}
}

func (l *CreditLedger) reserve(res *Reservation) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending[res.key()]++
}

func (l *CreditLedger) pendingFor(userID string, kind models.CreditSourceKind, entryID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pending[pendingKey{userID: userID, kind: kind, entryID: entryID}]
}

func (r *Reservation) key() pendingKey {
	return pendingKey{userID: r.UserID, kind: r.Source.Kind, entryID: r.Source.PromotionalEntryID}
}
