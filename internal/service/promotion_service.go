package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/codecredit-api/internal/logging"
	"github.com/jmylchreest/codecredit-api/internal/models"
	"github.com/jmylchreest/codecredit-api/internal/repository"
)

// PromotionInput holds the admin-editable fields of a promotion.
type PromotionInput struct {
	OfferName string
	Credits   int
	StartDate time.Time
	EndDate   time.Time
}

func (in *PromotionInput) validate() error {
	in.OfferName = strings.TrimSpace(in.OfferName)
	if in.OfferName == "" {
		return invalidInput("offer name is required")
	}
	if in.Credits <= 0 {
		return invalidInput("credits must be a positive integer, got %d", in.Credits)
	}
	if !in.EndDate.After(in.StartDate) {
		return invalidInput("end date must be after start date")
	}
	return nil
}

// PromotionService manages bonus credit offers and their per-user entries.
type PromotionService struct {
	store   *repository.Store
	locks   *userLocks
	metrics *Metrics
	now     Clock
	logger  *slog.Logger
}

// NewPromotionService creates a new promotion service.
func NewPromotionService(store *repository.Store, locks *userLocks, metrics *Metrics, now Clock, logger *slog.Logger) *PromotionService {
	return &PromotionService{
		store:   store,
		locks:   locks,
		metrics: metrics,
		now:     now,
		logger:  logger.With("component", "promotion"),
	}
}

func entryFor(promo *models.Promotion, userID string, now time.Time) *models.PromotionalCredit {
	return &models.PromotionalCredit{
		ID:        ulid.Make().String(),
		UserID:    userID,
		OfferName: promo.OfferName,
		Amount:    promo.Credits,
		StartDate: promo.StartDate,
		EndDate:   promo.EndDate,
		CreatedAt: now,
	}
}

// Create persists the promotion and gives every existing user an entry.
// Users registered later receive theirs from ApplyActive.
func (s *PromotionService) Create(ctx context.Context, in PromotionInput, createdBy string) (*models.Promotion, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := s.now()
	promo := &models.Promotion{
		ID:        ulid.Make().String(),
		OfferName: in.OfferName,
		Credits:   in.Credits,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}

	granted := 0
	err := s.store.WithinTx(ctx, func(r *repository.Repositories) error {
		if err := r.Promotion.Create(ctx, promo); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return fmt.Errorf("%w: %s", ErrDuplicatePromotion, in.OfferName)
			}
			return fmt.Errorf("failed to create promotion: %w", err)
		}

		userIDs, err := r.PromotionalCredit.UserIDsUnclaimed(ctx, promo.ID)
		if err != nil {
			return fmt.Errorf("failed to list users: %w", err)
		}
		for _, userID := range userIDs {
			ok, err := r.PromotionalCredit.Create(ctx, promo.ID, entryFor(promo, userID, now))
			if err != nil {
				return fmt.Errorf("failed to grant promotion to %s: %w", userID, err)
			}
			if ok {
				granted++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	promo.UserCount = granted
	logging.FromContext(ctx, s.logger).Info("promotion created",
		"promotion_id", promo.ID, "offer_name", promo.OfferName, "users", granted)
	return promo, nil
}

// Update changes the promotion and propagates it to every holder's entry.
// Remaining amounts are only reset when the credit value changes.
func (s *PromotionService) Update(ctx context.Context, id string, in PromotionInput) (*models.Promotion, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var promo *models.Promotion
	var propagated int64
	err := s.store.WithinTx(ctx, func(r *repository.Repositories) error {
		var err error
		promo, err = r.Promotion.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get promotion: %w", err)
		}
		if promo == nil {
			return notFound("promotion", id)
		}

		if in.OfferName != promo.OfferName {
			other, err := r.Promotion.GetByOfferName(ctx, in.OfferName)
			if err != nil {
				return fmt.Errorf("failed to check offer name: %w", err)
			}
			if other != nil {
				return fmt.Errorf("%w: %s", ErrDuplicatePromotion, in.OfferName)
			}
		}

		update := repository.PromotionalUpdate{
			OfferName: in.OfferName,
			StartDate: in.StartDate,
			EndDate:   in.EndDate,
		}
		if in.Credits != promo.Credits {
			amount := in.Credits
			update.Amount = &amount
		}

		oldName := promo.OfferName
		promo.OfferName = in.OfferName
		promo.Credits = in.Credits
		promo.StartDate = in.StartDate
		promo.EndDate = in.EndDate
		promo.UpdatedAt = s.now()
		if err := r.Promotion.Update(ctx, promo); err != nil {
			return fmt.Errorf("failed to update promotion: %w", err)
		}

		propagated, err = r.PromotionalCredit.UpdateByOfferName(ctx, oldName, update)
		if err != nil {
			return fmt.Errorf("failed to propagate promotion: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx, s.logger).Info("promotion updated", "promotion_id", id, "entries", propagated)
	return promo, nil
}

// Delete removes the promotion and every user entry for it.
func (s *PromotionService) Delete(ctx context.Context, id string) error {
	var removed int64
	err := s.store.WithinTx(ctx, func(r *repository.Repositories) error {
		promo, err := r.Promotion.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get promotion: %w", err)
		}
		if promo == nil {
			return notFound("promotion", id)
		}
		if removed, err = r.PromotionalCredit.DeleteByOfferName(ctx, promo.OfferName); err != nil {
			return fmt.Errorf("failed to delete promotional entries: %w", err)
		}
		if err := r.Promotion.Delete(ctx, id); err != nil {
			return fmt.Errorf("failed to delete promotion: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logging.FromContext(ctx, s.logger).Info("promotion deleted", "promotion_id", id, "entries", removed)
	return nil
}

// List returns every promotion with its holder count.
func (s *PromotionService) List(ctx context.Context) ([]*models.Promotion, error) {
	promos, err := s.store.Promotion.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list promotions: %w", err)
	}
	return promos, nil
}

// Grant gives one user the promotion's entry if they never claimed it.
// Returns false when the user already had it.
func (s *PromotionService) Grant(ctx context.Context, promotionID, userID string) (bool, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	var ok bool
	err := s.store.WithinTx(ctx, func(r *repository.Repositories) error {
		promo, err := r.Promotion.GetByID(ctx, promotionID)
		if err != nil {
			return fmt.Errorf("failed to get promotion: %w", err)
		}
		if promo == nil {
			return notFound("promotion", promotionID)
		}
		if _, err := getUser(ctx, r, userID); err != nil {
			return err
		}
		ok, err = r.PromotionalCredit.Create(ctx, promo.ID, entryFor(promo, userID, s.now()))
		if err != nil {
			return fmt.Errorf("failed to grant promotion: %w", err)
		}
		return nil
	})
	return ok, err
}

// ApplyActive gives every user missing an entry for a running promotion
// its entry. Each user is handled under their own lock and transaction.
func (s *PromotionService) ApplyActive(ctx context.Context) (SweepResult, error) {
	ctx = logging.WithSweep(ctx, "promotion_apply")
	log := logging.FromContext(ctx, s.logger)
	var result SweepResult

	promos, err := s.store.Promotion.ListActive(ctx, s.now())
	if err != nil {
		return result, fmt.Errorf("failed to list active promotions: %w", err)
	}

	for _, promo := range promos {
		userIDs, err := s.store.PromotionalCredit.UserIDsUnclaimed(ctx, promo.ID)
		if err != nil {
			return result, fmt.Errorf("failed to list users for %s: %w", promo.OfferName, err)
		}
		for _, userID := range userIDs {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			outcome := s.applyOne(ctx, promo, userID)
			s.metrics.sweepItem(ctx, "promotion_apply", outcome)
			result.record(outcome)
		}
	}

	log.Info("promotion apply sweep complete", "promotions", len(promos),
		"granted", result.Succeeded, "failed", result.Failed)
	return result, nil
}

func (s *PromotionService) applyOne(ctx context.Context, promo *models.Promotion, userID string) string {
	unlock := s.locks.Lock(userID)
	defer unlock()

	var ok bool
	err := s.store.WithinTx(ctx, func(r *repository.Repositories) error {
		var err error
		ok, err = r.PromotionalCredit.Create(ctx, promo.ID, entryFor(promo, userID, s.now()))
		return err
	})
	switch {
	case err != nil:
		logging.FromContext(ctx, s.logger).Error("failed to apply promotion",
			"promotion_id", promo.ID, "user_id", userID, "error", err)
		return outcomeFailed
	case !ok:
		return outcomeSkipped
	default:
		return outcomeGranted
	}
}

// CleanupExpired removes every entry whose window has closed.
func (s *PromotionService) CleanupExpired(ctx context.Context) (int64, error) {
	ctx = logging.WithSweep(ctx, "promotion_cleanup")
	n, err := s.store.PromotionalCredit.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired promotional credits: %w", err)
	}
	logging.FromContext(ctx, s.logger).Info("promotion cleanup sweep complete", "removed", n)
	return n, nil
}
