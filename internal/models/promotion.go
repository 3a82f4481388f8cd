package models

import "time"

// Promotion is an admin-defined, time-boxed bonus credit offer.
type Promotion struct {
	ID        string    `json:"id"`
	OfferName string    `json:"offer_name"`
	Credits   int       `json:"credits"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// UserCount is the number of users currently holding an entry. Spent and
	// pruned entries no longer count. Only set by listings.
	UserCount int `json:"user_count,omitempty"`
}

// IsActive reports whether now falls inside the promotion window.
func (p *Promotion) IsActive(now time.Time) bool {
	return !now.Before(p.StartDate) && !now.After(p.EndDate)
}

// PromotionalCredit is one user's entry for a promotion.
type PromotionalCredit struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	OfferName string    `json:"offer_name"`
	Amount    int       `json:"amount"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	CreatedAt time.Time `json:"created_at"`
}

// Usable reports whether the entry can fund an execution at now.
// Expired entries are treated as absent even before the cleanup sweep runs.
func (p *PromotionalCredit) Usable(now time.Time) bool {
	return p.Amount > 0 && !now.Before(p.StartDate) && !now.After(p.EndDate)
}
