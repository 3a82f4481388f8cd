package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/codecredit-api/internal/models"
	"github.com/jmylchreest/codecredit-api/internal/repository"
)

// entry describes one transaction ledger row to append.
type entry struct {
	userID         string
	txType         models.TransactionType
	amountPaisa    int64
	credits        int
	description    string
	subscriptionID string
	externalRef    string
}

// appendEntry writes a completed ledger row through r. Callers run it in
// the same transaction as the balance or plan change it records.
func appendEntry(ctx context.Context, r *repository.Repositories, e entry, now time.Time) (*models.Transaction, error) {
	tx := &models.Transaction{
		ID:          ulid.Make().String(),
		UserID:      e.userID,
		Type:        e.txType,
		AmountPaisa: e.amountPaisa,
		Credits:     e.credits,
		Description: e.description,
		Status:      models.TxStatusCompleted,
		CreatedAt:   now,
	}
	if e.subscriptionID != "" {
		id := e.subscriptionID
		tx.SubscriptionID = &id
	}
	if e.externalRef != "" {
		ref := e.externalRef
		tx.ExternalRef = &ref
	}
	if err := r.Transaction.Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to record %s transaction: %w", e.txType, err)
	}
	return tx, nil
}

// charge debits the wallet or returns an *InsufficientBalanceError.
func charge(ctx context.Context, r *repository.Repositories, user *models.User, amount int64) error {
	if amount <= 0 {
		return nil
	}
	if user.WalletBalancePaisa < amount {
		return &InsufficientBalanceError{Required: amount, Available: user.WalletBalancePaisa}
	}
	if err := r.User.AdjustWallet(ctx, user.ID, -amount); err != nil {
		if errors.Is(err, repository.ErrConditionFailed) {
			return &InsufficientBalanceError{Required: amount, Available: user.WalletBalancePaisa}
		}
		return fmt.Errorf("failed to debit wallet: %w", err)
	}
	user.WalletBalancePaisa -= amount
	return nil
}

// refund credits the wallet.
func refund(ctx context.Context, r *repository.Repositories, user *models.User, amount int64) error {
	if amount <= 0 {
		return nil
	}
	if err := r.User.AdjustWallet(ctx, user.ID, amount); err != nil {
		return fmt.Errorf("failed to credit wallet: %w", err)
	}
	user.WalletBalancePaisa += amount
	return nil
}

// getUser loads a user through r or returns ErrNotFound.
func getUser(ctx context.Context, r *repository.Repositories, userID string) (*models.User, error) {
	user, err := r.User.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, notFound("user", userID)
	}
	return user, nil
}
