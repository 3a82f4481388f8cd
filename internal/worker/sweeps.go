package worker

import (
	"context"
	"time"

	"github.com/jmylchreest/codecredit-api/internal/config"
	"github.com/jmylchreest/codecredit-api/internal/service"
)

// Job names.
const (
	JobActivation       = "activation"
	JobRenewal          = "renewal"
	JobPromotionApply   = "promotion_apply"
	JobPromotionCleanup = "promotion_cleanup"
)

// SweepJobs returns the subscription and promotion sweeps. Promotion sweeps
// are aligned to midnight and 01:00 in the billing timezone.
func SweepJobs(svcs *service.Services, cfg *config.Config) []Job {
	return []Job{
		{
			Name:     JobActivation,
			Interval: cfg.ActivationSweepInterval,
			Run: func(ctx context.Context) error {
				_, err := svcs.Subscription.ActivateScheduled(ctx)
				return err
			},
		},
		{
			Name:     JobRenewal,
			Interval: cfg.RenewalSweepInterval,
			Run: func(ctx context.Context) error {
				_, err := svcs.Subscription.RenewExpired(ctx)
				return err
			},
		},
		{
			Name:     JobPromotionApply,
			Interval: cfg.PromotionSweepInterval,
			Aligned:  true,
			Run: func(ctx context.Context) error {
				_, err := svcs.Promotion.ApplyActive(ctx)
				return err
			},
		},
		{
			Name:     JobPromotionCleanup,
			Interval: cfg.PromotionSweepInterval,
			Aligned:  true,
			Offset:   time.Hour,
			Run: func(ctx context.Context) error {
				_, err := svcs.Promotion.CleanupExpired(ctx)
				return err
			},
		},
	}
}
