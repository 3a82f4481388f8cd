package models

import "time"

// SubscriptionStatus is the lifecycle state of a subscription row.
type SubscriptionStatus string

const (
	SubscriptionActive     SubscriptionStatus = "active"
	SubscriptionCancelled  SubscriptionStatus = "cancelled"
	SubscriptionExpired    SubscriptionStatus = "expired"
	SubscriptionUpgraded   SubscriptionStatus = "upgraded"
	SubscriptionDowngraded SubscriptionStatus = "downgraded"
	SubscriptionRenewed    SubscriptionStatus = "renewed"
	SubscriptionScheduled  SubscriptionStatus = "scheduled"
)

// Subscription is one plan period for a user.
// A scheduled subscription is never active.
type Subscription struct {
	ID            string             `json:"id"`
	UserID        string             `json:"user_id"`
	Plan          string             `json:"plan"`
	PricePaisa    int64              `json:"price_paisa"`
	CreditsPerDay int                `json:"credits_per_day"` // -1 = unlimited
	StartDate     time.Time          `json:"start_date"`
	EndDate       time.Time          `json:"end_date"`
	Active        bool               `json:"active"`
	Status        SubscriptionStatus `json:"status"`
	CancelledAt   *time.Time         `json:"cancelled_at,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// IsRunning reports whether the subscription is active and not past its end.
func (s *Subscription) IsRunning(now time.Time) bool {
	return s.Active && now.Before(s.EndDate)
}
