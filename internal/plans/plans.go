// Package plans defines the subscription plan catalog.
//
// A Catalog is built once at startup and never mutated afterwards; services
// receive it by pointer instead of reading package state.
package plans

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// Plan identifiers.
const (
	Free       = "free"
	Monthly    = "monthly"
	ThreeMonth = "three_month"
	SixMonth   = "six_month"
	Yearly     = "yearly"
)

// Unlimited is the CreditsPerDay sentinel for plans without a daily cap.
const Unlimited = -1

// ErrPlanNotFound is returned when a plan ID is not in the catalog.
var ErrPlanNotFound = errors.New("plan not found")

// Plan is one subscription tier.
type Plan struct {
	ID            string
	DisplayName   string
	CreditsPerDay int // Unlimited for no cap
	PricePaisa    int64
	DurationDays  int
	Tier          int // 0 is the free tier; higher is better
}

// IsUnlimited reports whether executions on this plan are never counted.
func (p Plan) IsUnlimited() bool {
	return p.CreditsPerDay == Unlimited
}

// IsFree reports whether this is the free tier.
func (p Plan) IsFree() bool {
	return p.Tier == 0
}

// Duration returns the length of one plan period.
func (p Plan) Duration() time.Duration {
	return time.Duration(p.DurationDays) * 24 * time.Hour
}

// PricePerDayPaisa returns the price per day rounded to two decimals.
func (p Plan) PricePerDayPaisa() float64 {
	if p.DurationDays == 0 {
		return 0
	}
	return math.Round(float64(p.PricePaisa)/float64(p.DurationDays)*100) / 100
}

// TotalCredits returns the credits available over a full period, or Unlimited.
func (p Plan) TotalCredits() int {
	if p.IsUnlimited() {
		return Unlimited
	}
	return p.CreditsPerDay * p.DurationDays
}

// DefaultPlans returns the built-in plan table.
func DefaultPlans() []Plan {
	return []Plan{
		{ID: Free, DisplayName: "Free Plan", CreditsPerDay: 15, PricePaisa: 0, DurationDays: 365, Tier: 0},
		{ID: Monthly, DisplayName: "Monthly Plan", CreditsPerDay: 1500, PricePaisa: 49900, DurationDays: 30, Tier: 1},
		{ID: ThreeMonth, DisplayName: "Three Month Plan", CreditsPerDay: 2000, PricePaisa: 129900, DurationDays: 90, Tier: 2},
		{ID: SixMonth, DisplayName: "Six Month Plan", CreditsPerDay: 3000, PricePaisa: 199900, DurationDays: 180, Tier: 3},
		{ID: Yearly, DisplayName: "Yearly Plan", CreditsPerDay: Unlimited, PricePaisa: 359900, DurationDays: 365, Tier: 4},
	}
}

// Catalog is an immutable set of plans indexed by ID.
type Catalog struct {
	byID    map[string]Plan
	ordered []Plan // ascending tier
}

// NewCatalog validates plans and builds a catalog.
// Exactly one plan must have tier 0 and it must be free of charge.
func NewCatalog(plans []Plan) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]Plan, len(plans))}
	tiers := make(map[int]string, len(plans))

	for _, p := range plans {
		if p.ID == "" {
			return nil, errors.New("plan id must not be empty")
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate plan id %q", p.ID)
		}
		if other, dup := tiers[p.Tier]; dup {
			return nil, fmt.Errorf("plans %q and %q share tier %d", other, p.ID, p.Tier)
		}
		if p.Tier < 0 {
			return nil, fmt.Errorf("plan %q: tier must not be negative", p.ID)
		}
		if p.DurationDays <= 0 {
			return nil, fmt.Errorf("plan %q: duration must be positive", p.ID)
		}
		if p.CreditsPerDay < 0 && p.CreditsPerDay != Unlimited {
			return nil, fmt.Errorf("plan %q: invalid credits per day %d", p.ID, p.CreditsPerDay)
		}
		if p.PricePaisa < 0 {
			return nil, fmt.Errorf("plan %q: price must not be negative", p.ID)
		}
		if p.Tier == 0 && p.PricePaisa != 0 {
			return nil, fmt.Errorf("plan %q: tier 0 must be free", p.ID)
		}
		c.byID[p.ID] = p
		tiers[p.Tier] = p.ID
		c.ordered = append(c.ordered, p)
	}

	if _, ok := tiers[0]; !ok {
		return nil, errors.New("catalog must contain a tier 0 plan")
	}

	sort.Slice(c.ordered, func(i, j int) bool { return c.ordered[i].Tier < c.ordered[j].Tier })
	return c, nil
}

// Default returns the catalog built from DefaultPlans.
func Default() *Catalog {
	c, err := NewCatalog(DefaultPlans())
	if err != nil {
		panic("plans: invalid default catalog: " + err.Error())
	}
	return c
}

// Lookup returns the plan with the given ID.
func (c *Catalog) Lookup(id string) (Plan, error) {
	p, ok := c.byID[id]
	if !ok {
		return Plan{}, fmt.Errorf("%w: %s", ErrPlanNotFound, id)
	}
	return p, nil
}

// TierOf returns the tier rank of the plan with the given ID.
func (c *Catalog) TierOf(id string) (int, error) {
	p, err := c.Lookup(id)
	if err != nil {
		return 0, err
	}
	return p.Tier, nil
}

// FreePlan returns the tier 0 plan.
func (c *Catalog) FreePlan() Plan {
	return c.ordered[0]
}

// All returns every plan in ascending tier order.
func (c *Catalog) All() []Plan {
	out := make([]Plan, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// UpgradesFrom lists the IDs of plans ranked above id.
func (c *Catalog) UpgradesFrom(id string) []string {
	tier, err := c.TierOf(id)
	if err != nil {
		return nil
	}
	var ids []string
	for _, p := range c.ordered {
		if p.Tier > tier {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

// DowngradesFrom lists the IDs of paid plans ranked below id.
func (c *Catalog) DowngradesFrom(id string) []string {
	tier, err := c.TierOf(id)
	if err != nil {
		return nil
	}
	var ids []string
	for _, p := range c.ordered {
		if p.Tier < tier && !p.IsFree() {
			ids = append(ids, p.ID)
		}
	}
	return ids
}
