package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/codecredit-api/internal/logging"
	"github.com/jmylchreest/codecredit-api/internal/models"
	"github.com/jmylchreest/codecredit-api/internal/repository"
)

// AdminService handles operator actions on user accounts.
type AdminService struct {
	store  *repository.Store
	status *StatusService
	locks  *userLocks
	now    Clock
	logger *slog.Logger
}

// NewAdminService creates a new admin service.
func NewAdminService(store *repository.Store, status *StatusService, locks *userLocks, now Clock, logger *slog.Logger) *AdminService {
	return &AdminService{
		store:  store,
		status: status,
		locks:  locks,
		now:    now,
		logger: logger.With("component", "admin"),
	}
}

// GrantCredits adds amount to the user's granted pool, with an audit row
// and an admin_grant transaction.
func (s *AdminService) GrantCredits(ctx context.Context, adminID, userID string, amount int, reason string) (*models.AdminGrant, error) {
	if amount <= 0 {
		return nil, invalidInput("amount must be a positive integer, got %d", amount)
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	now := s.now()
	grant := &models.AdminGrant{
		ID:        ulid.Make().String(),
		AdminID:   adminID,
		UserID:    userID,
		Credits:   amount,
		Reason:    reason,
		CreatedAt: now,
	}
	err := s.store.WithinTx(ctx, func(r *repository.Repositories) error {
		if _, err := getUser(ctx, r, userID); err != nil {
			return err
		}
		if err := r.User.AddCredits(ctx, userID, repository.PoolGranted, amount); err != nil {
			return fmt.Errorf("failed to add credits: %w", err)
		}
		if err := r.AdminGrant.Create(ctx, grant); err != nil {
			return fmt.Errorf("failed to record grant: %w", err)
		}
		description := fmt.Sprintf("%d credits granted by admin", amount)
		if reason != "" {
			description += ": " + reason
		}
		_, err := appendEntry(ctx, r, entry{
			userID:      userID,
			txType:      models.TxAdminGrant,
			credits:     amount,
			description: description,
		}, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx, s.logger).Info("credits granted", "admin_id", adminID, "user_id", userID, "credits", amount)
	return grant, nil
}

// ListUsers returns a page of users and the total user count.
func (s *AdminService) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, int, error) {
	users, err := s.store.User.List(ctx, clampLimit(limit), max(offset, 0))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	total, err := s.store.User.Count(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}
	return users, total, nil
}

// UserDetail is the admin view of one account.
type UserDetail struct {
	User         *models.User         `json:"user"`
	Subscription *models.Subscription `json:"subscription,omitempty"`
	Status       *CreditStatus        `json:"status"`
	Grants       []*models.AdminGrant `json:"recent_grants"`
}

// GetUserDetail returns the user with their subscription, status and recent grants.
func (s *AdminService) GetUserDetail(ctx context.Context, userID string) (*UserDetail, error) {
	user, err := s.store.User.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, notFound("user", userID)
	}
	sub, err := s.store.Subscription.GetActive(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	status, err := s.status.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	grants, err := s.store.AdminGrant.ListByUser(ctx, userID, 10)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	return &UserDetail{User: user, Subscription: sub, Status: status, Grants: grants}, nil
}

// ListUserTransactions returns a page of the user's ledger, newest first.
func (s *AdminService) ListUserTransactions(ctx context.Context, userID string, limit, offset int) ([]*models.Transaction, error) {
	txs, err := s.store.Transaction.ListByUser(ctx, userID, clampLimit(limit), max(offset, 0))
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, nil
}
