// Package models defines the domain models for the application.
package models

import "time"

// User roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// DefaultFreeCredits is the daily free allotment baseline stored on new users.
const DefaultFreeCredits = 15

// Credits holds the per-user credit pools.
//
// Free is a baseline only; free usage is counted from execution records.
// Purchased and Granted are decremented in place and never go below zero.
type Credits struct {
	Free        int                 `json:"free"`
	Purchased   int                 `json:"purchased"`
	Granted     int                 `json:"granted"`
	Promotional []PromotionalCredit `json:"promotional"`
}

// User is an account with a wallet and credit pools.
type User struct {
	ID                 string    `json:"id"`
	Email              string    `json:"email"`
	Name               string    `json:"name"`
	Role               string    `json:"role"`
	WalletBalancePaisa int64     `json:"wallet_balance_paisa"`
	Credits            Credits   `json:"credits"`
	AutoRenew          bool      `json:"auto_renew"`
	RegisteredAt       time.Time `json:"registered_at"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`

	// ActiveSubscriptionID caches the ID of the user's active subscription.
	// The subscriptions table is the source of truth; every transition
	// rewrites this field in the same database transaction.
	ActiveSubscriptionID *string `json:"active_subscription_id,omitempty"`
}

// IsAdmin reports whether the user has the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// FreePlanEnd returns the end of the free window, durationDays after registration.
func (u *User) FreePlanEnd(durationDays int) time.Time {
	return u.RegisteredAt.AddDate(0, 0, durationDays)
}

// AdminGrant is the audit record of an admin credit grant.
type AdminGrant struct {
	ID        string    `json:"id"`
	AdminID   string    `json:"admin_id"`
	UserID    string    `json:"user_id"`
	Credits   int       `json:"credits"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
