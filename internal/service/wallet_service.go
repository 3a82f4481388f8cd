package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmylchreest/codecredit-api/internal/config"
	"github.com/jmylchreest/codecredit-api/internal/logging"
	"github.com/jmylchreest/codecredit-api/internal/models"
	"github.com/jmylchreest/codecredit-api/internal/repository"
)

// WalletService moves money between the payment provider, the wallet and
// the purchased credit pool.
type WalletService struct {
	store   *repository.Store
	billing *config.BillingConfig
	locks   *userLocks
	now     Clock
	logger  *slog.Logger
}

// NewWalletService creates a new wallet service.
func NewWalletService(store *repository.Store, billing *config.BillingConfig, locks *userLocks, now Clock, logger *slog.Logger) *WalletService {
	return &WalletService{
		store:   store,
		billing: billing,
		locks:   locks,
		now:     now,
		logger:  logger.With("component", "wallet"),
	}
}

// Deposit credits the wallet for a completed payment. externalRef is the
// provider's payment ID; a repeated ref returns the original transaction
// without crediting again.
func (s *WalletService) Deposit(ctx context.Context, userID string, amountPaisa int64, externalRef string) (*models.Transaction, error) {
	if externalRef == "" {
		return nil, invalidInput("payment reference is required")
	}
	if amountPaisa < s.billing.MinDepositPaisa || amountPaisa <= 0 {
		return nil, invalidInput("deposit must be at least %d paisa, got %d", s.billing.MinDepositPaisa, amountPaisa)
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	var tx *models.Transaction
	duplicate := false
	err := s.store.WithinTx(ctx, func(r *repository.Repositories) error {
		if _, err := getUser(ctx, r, userID); err != nil {
			return err
		}
		var err error
		tx, err = appendEntry(ctx, r, entry{
			userID:      userID,
			txType:      models.TxDeposit,
			amountPaisa: amountPaisa,
			description: "Wallet deposit",
			externalRef: externalRef,
		}, s.now())
		if errors.Is(err, repository.ErrDuplicate) {
			duplicate = true
			return nil
		}
		if err != nil {
			return err
		}
		if err := r.User.AdjustWallet(ctx, userID, amountPaisa); err != nil {
			return fmt.Errorf("failed to credit wallet: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log := logging.FromContext(ctx, s.logger)
	if duplicate {
		log.Info("duplicate deposit ignored", "user_id", userID, "external_ref", externalRef)
		return s.store.Transaction.GetByExternalRef(ctx, models.TxDeposit, externalRef)
	}
	log.Info("deposit recorded", "user_id", userID, "amount_paisa", amountPaisa)
	return tx, nil
}

// ReverseDeposit debits a refunded payment from the wallet. The debit is
// clamped to the original deposit and to the current balance. A zero
// amount reverses the whole deposit.
func (s *WalletService) ReverseDeposit(ctx context.Context, externalRef string, amountPaisa int64) (*models.Transaction, error) {
	if externalRef == "" {
		return nil, invalidInput("payment reference is required")
	}
	deposit, err := s.store.Transaction.GetByExternalRef(ctx, models.TxDeposit, externalRef)
	if err != nil {
		return nil, fmt.Errorf("failed to get deposit: %w", err)
	}
	if deposit == nil {
		return nil, notFound("deposit", externalRef)
	}

	unlock := s.locks.Lock(deposit.UserID)
	defer unlock()

	var tx *models.Transaction
	duplicate := false
	err = s.store.WithinTx(ctx, func(r *repository.Repositories) error {
		user, err := getUser(ctx, r, deposit.UserID)
		if err != nil {
			return err
		}

		amount := deposit.AmountPaisa
		if amountPaisa > 0 && amountPaisa < amount {
			amount = amountPaisa
		}
		amount = min(amount, user.WalletBalancePaisa)

		tx, err = appendEntry(ctx, r, entry{
			userID:      user.ID,
			txType:      models.TxDepositRefund,
			amountPaisa: -amount,
			description: "Deposit refunded",
			externalRef: externalRef,
		}, s.now())
		if errors.Is(err, repository.ErrDuplicate) {
			duplicate = true
			return nil
		}
		if err != nil {
			return err
		}
		if amount > 0 {
			if err := r.User.AdjustWallet(ctx, user.ID, -amount); err != nil {
				return fmt.Errorf("failed to debit wallet: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if duplicate {
		return s.store.Transaction.GetByExternalRef(ctx, models.TxDepositRefund, externalRef)
	}

	logging.FromContext(ctx, s.logger).Info("deposit reversed",
		"user_id", deposit.UserID, "amount_paisa", -tx.AmountPaisa, "external_ref", externalRef)
	return tx, nil
}

// PurchaseCredits buys credits from the wallet at the configured unit price.
func (s *WalletService) PurchaseCredits(ctx context.Context, userID string, credits int) (*models.Transaction, error) {
	if credits <= 0 {
		return nil, invalidInput("credits must be a positive integer, got %d", credits)
	}
	cost := int64(credits) * s.billing.CreditPricePaisa

	unlock := s.locks.Lock(userID)
	defer unlock()

	var tx *models.Transaction
	err := s.store.WithinTx(ctx, func(r *repository.Repositories) error {
		user, err := getUser(ctx, r, userID)
		if err != nil {
			return err
		}
		if err := charge(ctx, r, user, cost); err != nil {
			return err
		}
		if err := r.User.AddCredits(ctx, userID, repository.PoolPurchased, credits); err != nil {
			return fmt.Errorf("failed to add credits: %w", err)
		}
		tx, err = appendEntry(ctx, r, entry{
			userID:      userID,
			txType:      models.TxCreditPurchase,
			amountPaisa: -cost,
			credits:     credits,
			description: fmt.Sprintf("Purchased %d credits", credits),
		}, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx, s.logger).Info("credits purchased", "user_id", userID, "credits", credits, "cost_paisa", cost)
	return tx, nil
}

// Transactions returns the user's ledger, newest first.
func (s *WalletService) Transactions(ctx context.Context, userID string, limit, offset int) ([]*models.Transaction, error) {
	return s.store.Transaction.ListByUser(ctx, userID, clampLimit(limit), max(offset, 0))
}

// clampLimit bounds a page size to 1..100, defaulting to 20.
func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return 20
	case limit > 100:
		return 100
	default:
		return limit
	}
}

