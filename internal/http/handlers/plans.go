package handlers

import (
	"context"

	"github.com/jmylchreest/codecredit-api/internal/plans"
)

// unlimitedLabel is shown in place of a count for uncapped plans.
const unlimitedLabel = "Unlimited"

// PlanResponse is the public projection of one catalog plan.
type PlanResponse struct {
	ID               string  `json:"id" doc:"Plan identifier"`
	DisplayName      string  `json:"display_name" doc:"Human-readable plan name"`
	CreditsPerDay    any     `json:"credits_per_day" doc:"Daily executions, or \"Unlimited\""`
	PricePaisa       int64   `json:"price_paisa" doc:"Price per period in paisa"`
	DurationDays     int     `json:"duration_days" doc:"Length of one period in days"`
	Tier             int     `json:"tier" doc:"Rank; 0 is the free plan"`
	PricePerDayPaisa float64 `json:"price_per_day_paisa" doc:"Price divided by duration, two decimals"`
	TotalCredits     any     `json:"total_credits" doc:"Credits per period, or \"Unlimited\""`
}

// ListPlansOutput is the response for the plan listing endpoint.
type ListPlansOutput struct {
	Body struct {
		Plans []PlanResponse `json:"plans" doc:"Plans ordered by tier"`
	}
}

// PlanHandler serves the plan catalog.
type PlanHandler struct {
	catalog *plans.Catalog
}

// NewPlanHandler creates a new plan handler.
func NewPlanHandler(catalog *plans.Catalog) *PlanHandler {
	return &PlanHandler{catalog: catalog}
}

func countOrUnlimited(n int) any {
	if n == plans.Unlimited {
		return unlimitedLabel
	}
	return n
}

// ToPlanResponse projects a plan for display.
func ToPlanResponse(p plans.Plan) PlanResponse {
	return PlanResponse{
		ID:               p.ID,
		DisplayName:      p.DisplayName,
		CreditsPerDay:    countOrUnlimited(p.CreditsPerDay),
		PricePaisa:       p.PricePaisa,
		DurationDays:     p.DurationDays,
		Tier:             p.Tier,
		PricePerDayPaisa: p.PricePerDayPaisa(),
		TotalCredits:     countOrUnlimited(p.TotalCredits()),
	}
}

// ListPlans returns every plan in the catalog. This is a public endpoint.
func (h *PlanHandler) ListPlans(ctx context.Context, _ *struct{}) (*ListPlansOutput, error) {
	all := h.catalog.All()
	out := &ListPlansOutput{}
	out.Body.Plans = make([]PlanResponse, 0, len(all))
	for _, p := range all {
		out.Body.Plans = append(out.Body.Plans, ToPlanResponse(p))
	}
	return out, nil
}
