package config

import (
	"fmt"
	"time"
)

// Downgrade policies.
const (
	// DowngradeImmediate swaps to the lower plan now at no charge.
	DowngradeImmediate = "immediate"
	// DowngradeEndOfTerm schedules the lower plan for when the current period ends.
	DowngradeEndOfTerm = "end_of_term"
)

// BillingConfig holds wallet and subscription policy settings.
type BillingConfig struct {
	// CreditPricePaisa is the wallet cost of one purchased credit.
	CreditPricePaisa int64

	// MinDepositPaisa is the smallest accepted wallet deposit.
	MinDepositPaisa int64

	// CancellationWindow is how long after a paid period starts it cannot be cancelled.
	CancellationWindow time.Duration

	// DowngradePolicy is DowngradeImmediate or DowngradeEndOfTerm.
	DowngradePolicy string

	// Location defines the calendar day used for daily credit buckets.
	Location *time.Location
}

// DefaultBillingConfig returns the default billing configuration.
func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		CreditPricePaisa:   50,
		MinDepositPaisa:    10000, // ₹100
		CancellationWindow: 24 * time.Hour,
		DowngradePolicy:    DowngradeImmediate,
		Location:           time.UTC,
	}
}

func loadBillingConfig() (BillingConfig, error) {
	def := DefaultBillingConfig()
	cfg := BillingConfig{
		CreditPricePaisa:   getEnvInt64("CREDIT_PRICE_PAISA", def.CreditPricePaisa),
		MinDepositPaisa:    getEnvInt64("MIN_DEPOSIT_PAISA", def.MinDepositPaisa),
		CancellationWindow: getEnvDuration("CANCELLATION_WINDOW", def.CancellationWindow),
		DowngradePolicy:    getEnv("DOWNGRADE_POLICY", def.DowngradePolicy),
		Location:           def.Location,
	}

	if tz := getEnv("BILLING_TIMEZONE", ""); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return cfg, fmt.Errorf("invalid BILLING_TIMEZONE %q: %w", tz, err)
		}
		cfg.Location = loc
	}
	return cfg, nil
}

// Validate checks the billing settings.
func (c BillingConfig) Validate() error {
	switch c.DowngradePolicy {
	case DowngradeImmediate, DowngradeEndOfTerm:
	default:
		return fmt.Errorf("invalid DOWNGRADE_POLICY %q (want %s or %s)", c.DowngradePolicy, DowngradeImmediate, DowngradeEndOfTerm)
	}
	if c.CreditPricePaisa <= 0 {
		return fmt.Errorf("CREDIT_PRICE_PAISA must be positive")
	}
	if c.MinDepositPaisa < 0 {
		return fmt.Errorf("MIN_DEPOSIT_PAISA must not be negative")
	}
	if c.CancellationWindow < 0 {
		return fmt.Errorf("CANCELLATION_WINDOW must not be negative")
	}
	return nil
}

// DayStart returns the start of the billing day containing t.
func (c BillingConfig) DayStart(t time.Time) time.Time {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}
