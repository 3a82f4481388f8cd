package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jmylchreest/codecredit-api/internal/config"
	"github.com/jmylchreest/codecredit-api/internal/models"
	"github.com/jmylchreest/codecredit-api/internal/plans"
	"github.com/jmylchreest/codecredit-api/internal/repository"
)

// PoolBalances is the remaining credit per pool. Subscription and Free are
// what is left of today's allotment; Subscription is plans.Unlimited on an
// uncapped plan.
type PoolBalances struct {
	Subscription int `json:"subscription"`
	Free         int `json:"free"`
	Purchased    int `json:"purchased"`
	Granted      int `json:"granted"`
	Promotional  int `json:"promotional"`
}

// Period is a subscription's date range.
type Period struct {
	SubscriptionID string    `json:"subscription_id"`
	Plan           string    `json:"plan"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
}

// CreditStatus is a read-only summary of the user's plan and credits.
type CreditStatus struct {
	Plan               string       `json:"plan"`
	CreditsPerDay      int          `json:"credits_per_day"` // plans.Unlimited when uncapped
	TodayUsed          int          `json:"today_used"`
	Remaining          PoolBalances `json:"remaining"`
	Active             *Period      `json:"active,omitempty"`
	Scheduled          *Period      `json:"scheduled,omitempty"`
	WalletBalancePaisa int64        `json:"wallet_balance_paisa"`
	AutoRenew          bool         `json:"auto_renew"`
}

// StatusService composes the credit status surface. It has no side effects.
type StatusService struct {
	store   *repository.Store
	catalog *plans.Catalog
	billing *config.BillingConfig
	now     Clock
}

// NewStatusService creates a new status service.
func NewStatusService(store *repository.Store, catalog *plans.Catalog, billing *config.BillingConfig, now Clock) *StatusService {
	return &StatusService{store: store, catalog: catalog, billing: billing, now: now}
}

func periodOf(sub *models.Subscription) *Period {
	if sub == nil {
		return nil
	}
	return &Period{SubscriptionID: sub.ID, Plan: sub.Plan, StartDate: sub.StartDate, EndDate: sub.EndDate}
}

// Get returns the user's credit status at the current time.
func (s *StatusService) Get(ctx context.Context, userID string) (*CreditStatus, error) {
	now := s.now()
	user, err := s.store.User.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, notFound("user", userID)
	}
	active, err := s.store.Subscription.GetActive(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get active subscription: %w", err)
	}
	scheduled, err := s.store.Subscription.GetScheduled(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get scheduled subscription: %w", err)
	}

	dayStart := s.billing.DayStart(now)
	todayUsed, err := s.store.Execution.CountSince(ctx, userID, dayStart)
	if err != nil {
		return nil, fmt.Errorf("failed to count usage: %w", err)
	}

	free := s.catalog.FreePlan()
	st := &CreditStatus{
		Plan:               free.ID,
		CreditsPerDay:      free.CreditsPerDay,
		TodayUsed:          todayUsed,
		Active:             periodOf(active),
		Scheduled:          periodOf(scheduled),
		WalletBalancePaisa: user.WalletBalancePaisa,
		AutoRenew:          user.AutoRenew,
		Remaining: PoolBalances{
			Purchased: user.Credits.Purchased,
			Granted:   user.Credits.Granted,
		},
	}

	paid := active != nil && active.Plan != free.ID && active.IsRunning(now)
	if paid {
		st.Plan = active.Plan
		st.CreditsPerDay = active.CreditsPerDay
		if active.CreditsPerDay == plans.Unlimited {
			st.Remaining.Subscription = plans.Unlimited
		} else {
			used, err := s.store.Execution.CountBySourceSince(ctx, userID, models.SourceSubscription, dayStart)
			if err != nil {
				return nil, fmt.Errorf("failed to count subscription usage: %w", err)
			}
			st.Remaining.Subscription = max(active.CreditsPerDay-used, 0)
		}
	} else {
		used, err := s.store.Execution.CountBySourceSince(ctx, userID, models.SourceFree, dayStart)
		if err != nil {
			return nil, fmt.Errorf("failed to count free usage: %w", err)
		}
		st.Remaining.Free = max(free.CreditsPerDay-used, 0)
	}

	entries, err := s.store.PromotionalCredit.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list promotional credits: %w", err)
	}
	for _, e := range entries {
		if e.Usable(now) {
			st.Remaining.Promotional += e.Amount
		}
	}
	return st, nil
}
