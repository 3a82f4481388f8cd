// Package repository defines repository interfaces for data access.
// All timestamps are stored as UTC RFC3339 TEXT so that string comparison
// in SQL matches time order.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmylchreest/codecredit-api/internal/models"
)

var (
	// ErrDuplicate is returned when an insert hits a uniqueness constraint
	// that callers use for idempotency.
	ErrDuplicate = errors.New("duplicate record")

	// ErrConditionFailed is returned when a guarded update matched no row,
	// e.g. decrementing a pool that is already zero.
	ErrConditionFailed = errors.New("update condition not met")
)

// DBTX is the query surface shared by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// CreditPool names a decrementing credit pool on the users table.
type CreditPool string

const (
	PoolPurchased CreditPool = "purchased"
	PoolGranted   CreditPool = "granted"
)

// UserRepository defines methods for user data access.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context, limit, offset int) ([]*models.User, error)
	Count(ctx context.Context) (int, error)
	UpdateProfile(ctx context.Context, id, email, name string) error
	SetRole(ctx context.Context, id, role string) error
	SetAutoRenew(ctx context.Context, id string, autoRenew bool) error
	// SetActiveSubscription rewrites the cached active subscription ID.
	SetActiveSubscription(ctx context.Context, id string, subscriptionID *string) error
	// AdjustWallet adds delta to the wallet. Returns ErrConditionFailed if the
	// balance would go negative.
	AdjustWallet(ctx context.Context, id string, delta int64) error
	// AddCredits increments a pool by amount (> 0).
	AddCredits(ctx context.Context, id string, pool CreditPool, amount int) error
	// DecrementCredit removes one credit from a pool if it is positive.
	// Returns ErrConditionFailed if the pool is already zero.
	DecrementCredit(ctx context.Context, id string, pool CreditPool) error
	Delete(ctx context.Context, id string) error
}

// SubscriptionRepository defines methods for subscription data access.
type SubscriptionRepository interface {
	Create(ctx context.Context, sub *models.Subscription) error
	GetByID(ctx context.Context, id string) (*models.Subscription, error)
	GetActive(ctx context.Context, userID string) (*models.Subscription, error)
	GetScheduled(ctx context.Context, userID string) (*models.Subscription, error)
	// GetEarliestFree returns the oldest free-plan row for the user.
	GetEarliestFree(ctx context.Context, userID, freePlan string) (*models.Subscription, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Subscription, error)
	Update(ctx context.Context, sub *models.Subscription) error
	// Deactivate sets active=0 and the given status. A non-nil endDate replaces end_date.
	Deactivate(ctx context.Context, id string, status models.SubscriptionStatus, endDate *time.Time) error
	Delete(ctx context.Context, id string) error
	// DeleteOtherFree removes inactive free-plan rows for the user except keepID.
	DeleteOtherFree(ctx context.Context, userID, freePlan, keepID string) (int64, error)
	// DueForActivation returns scheduled rows whose start_date <= now.
	DueForActivation(ctx context.Context, now time.Time) ([]*models.Subscription, error)
	// DueForRenewal returns active rows whose end_date <= now.
	DueForRenewal(ctx context.Context, now time.Time) ([]*models.Subscription, error)
}

// ExecutionRepository defines methods for execution record data access.
type ExecutionRepository interface {
	// Create inserts the record. Returns ErrDuplicate if the ID already exists.
	Create(ctx context.Context, exec *models.Execution) error
	GetByID(ctx context.Context, id string) (*models.Execution, error)
	// CountBySourceSince counts the user's records for source created at or after since.
	CountBySourceSince(ctx context.Context, userID string, source models.CreditSourceKind, since time.Time) (int, error)
	CountSince(ctx context.Context, userID string, since time.Time) (int, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Execution, error)
	UsageByLanguage(ctx context.Context, userID string) ([]models.LanguageUsage, error)
}

// TransactionRepository defines methods for the append-only transaction ledger.
type TransactionRepository interface {
	// Create inserts the entry. Returns ErrDuplicate if (type, external_ref) exists.
	Create(ctx context.Context, tx *models.Transaction) error
	GetByExternalRef(ctx context.Context, txType models.TransactionType, ref string) (*models.Transaction, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Transaction, error)
	// ListByUserBetween returns entries with from <= created_at < to, oldest first.
	ListByUserBetween(ctx context.Context, userID string, from, to time.Time) ([]*models.Transaction, error)
}

// PromotionRepository defines methods for promotion data access.
type PromotionRepository interface {
	Create(ctx context.Context, promo *models.Promotion) error
	GetByID(ctx context.Context, id string) (*models.Promotion, error)
	GetByOfferName(ctx context.Context, offerName string) (*models.Promotion, error)
	Update(ctx context.Context, promo *models.Promotion) error
	Delete(ctx context.Context, id string) error
	// List returns all promotions with UserCount populated, newest first.
	List(ctx context.Context) ([]*models.Promotion, error)
	ListActive(ctx context.Context, now time.Time) ([]*models.Promotion, error)
}

// PromotionalCreditRepository defines methods for per-user promotional entries.
type PromotionalCreditRepository interface {
	// Create records the user's claim on promotionID and inserts the entry.
	// Returns false when the user had already claimed it, even if the entry
	// was since consumed and pruned.
	Create(ctx context.Context, promotionID string, entry *models.PromotionalCredit) (bool, error)
	GetByID(ctx context.Context, id string) (*models.PromotionalCredit, error)
	ListByUser(ctx context.Context, userID string) ([]*models.PromotionalCredit, error)
	// UserIDsUnclaimed lists users who never claimed promotionID.
	UserIDsUnclaimed(ctx context.Context, promotionID string) ([]string, error)
	// Decrement removes one credit from a usable entry.
	// Returns ErrConditionFailed if the entry is empty or outside its window.
	Decrement(ctx context.Context, id string, now time.Time) error
	// DeleteIfEmpty removes the entry when its amount reached zero.
	DeleteIfEmpty(ctx context.Context, id string) (bool, error)
	UpdateByOfferName(ctx context.Context, offerName string, update PromotionalUpdate) (int64, error)
	DeleteByOfferName(ctx context.Context, offerName string) (int64, error)
	// DeleteExpired removes entries whose end_date < now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// PromotionalUpdate carries the fields propagated from a promotion to its entries.
// A nil Amount keeps each entry's remaining amount.
type PromotionalUpdate struct {
	OfferName string
	Amount    *int
	StartDate time.Time
	EndDate   time.Time
}

// AdminGrantRepository defines methods for the admin grant audit log.
type AdminGrantRepository interface {
	Create(ctx context.Context, grant *models.AdminGrant) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.AdminGrant, error)
}

// Repositories holds all repository instances bound to one DBTX.
type Repositories struct {
	User              UserRepository
	Subscription      SubscriptionRepository
	Execution         ExecutionRepository
	Transaction       TransactionRepository
	Promotion         PromotionRepository
	PromotionalCredit PromotionalCreditRepository
	AdminGrant        AdminGrantRepository
}

// NewRepositories creates all repository instances.
func NewRepositories(db DBTX) *Repositories {
	return &Repositories{
		User:              NewSQLiteUserRepository(db),
		Subscription:      NewSQLiteSubscriptionRepository(db),
		Execution:         NewSQLiteExecutionRepository(db),
		Transaction:       NewSQLiteTransactionRepository(db),
		Promotion:         NewSQLitePromotionRepository(db),
		PromotionalCredit: NewSQLitePromotionalCreditRepository(db),
		AdminGrant:        NewSQLiteAdminGrantRepository(db),
	}
}
