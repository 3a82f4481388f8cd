package plans

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// Source supplies raw catalog override JSON. config.S3Loader satisfies it.
type Source interface {
	Load(ctx context.Context) ([]byte, error)
}

// CatalogJSON is the override file layout.
//
//	{"plans": {"monthly": {"credits_per_day": 1800, "price_paisa": 54900}}}
type CatalogJSON struct {
	Plans map[string]PlanJSON `json:"plans"`
}

// PlanJSON is one plan override. Missing fields keep the built-in value.
type PlanJSON struct {
	DisplayName   string `json:"display_name,omitempty"`
	CreditsPerDay *int   `json:"credits_per_day,omitempty"`
	PricePaisa    *int64 `json:"price_paisa,omitempty"`
	DurationDays  *int   `json:"duration_days,omitempty"`
	Tier          *int   `json:"tier,omitempty"`
}

// LoadCatalog builds the catalog from the defaults plus any overrides from src.
// A nil src, or one that returns no data, yields the default catalog.
func LoadCatalog(ctx context.Context, src Source, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if src == nil {
		return Default(), nil
	}

	data, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load plan catalog: %w", err)
	}
	if data == nil {
		return Default(), nil
	}

	var settings CatalogJSON
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to parse plan catalog: %w", err)
	}

	merged := applyOverrides(DefaultPlans(), settings.Plans)
	catalog, err := NewCatalog(merged)
	if err != nil {
		return nil, fmt.Errorf("invalid plan catalog: %w", err)
	}

	logger.Info("plan catalog loaded", "plan_count", len(merged), "overrides", len(settings.Plans))
	return catalog, nil
}

func applyOverrides(base []Plan, overrides map[string]PlanJSON) []Plan {
	out := make([]Plan, 0, len(base)+len(overrides))
	seen := make(map[string]bool, len(base))

	for _, p := range base {
		if o, ok := overrides[p.ID]; ok {
			p = o.apply(p)
		}
		seen[p.ID] = true
		out = append(out, p)
	}
	for id, o := range overrides {
		if seen[id] {
			continue
		}
		// New plans must name every field; NewCatalog rejects the zero values.
		out = append(out, o.apply(Plan{ID: id, DisplayName: id, Tier: -1}))
	}
	return out
}

func (o PlanJSON) apply(p Plan) Plan {
	if o.DisplayName != "" {
		p.DisplayName = o.DisplayName
	}
	if o.CreditsPerDay != nil {
		p.CreditsPerDay = *o.CreditsPerDay
	}
	if o.PricePaisa != nil {
		p.PricePaisa = *o.PricePaisa
	}
	if o.DurationDays != nil {
		p.DurationDays = *o.DurationDays
	}
	if o.Tier != nil {
		p.Tier = *o.Tier
	}
	return p
}
