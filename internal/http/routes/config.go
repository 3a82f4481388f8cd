// Package routes provides shared route registration for the codecredit API.
// This allows both the main server and the OpenAPI generator to use
// the same route definitions, so the generated OpenAPI document matches the server.
package routes

import (
	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/codecredit-api/internal/http/mw"
	"github.com/jmylchreest/codecredit-api/internal/version"
)

// NewHumaConfig creates the shared Huma configuration for the API.
// This includes API metadata, security schemes, and tag definitions.
func NewHumaConfig(baseURL string) huma.Config {
	cfg := huma.DefaultConfig("CodeCredit API", version.Get().Short())
	cfg.Info.Description = "Credit-metered code execution with prepaid plans, a wallet and promotional credits."

	// Disable $schema field in responses
	cfg.CreateHooks = nil

	if baseURL != "" {
		cfg.Servers = []*huma.Server{
			{URL: baseURL, Description: "API Server"},
		}
	}

	cfg.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		mw.SecurityScheme: {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
			Description:  "Session token. Include it in the Authorization header as `Bearer <token>`.",
		},
	}

	cfg.Tags = []*huma.Tag{
		{Name: "Plans", Description: "Plan catalog", Extensions: map[string]any{"x-displayName": "Plans"}},
		{Name: "Account", Description: "Registration and credit status", Extensions: map[string]any{"x-displayName": "Account"}},
		{Name: "Subscriptions", Description: "Subscribe, upgrade, downgrade and cancel", Extensions: map[string]any{"x-displayName": "Subscriptions"}},
		{Name: "Executions", Description: "Credit-metered code execution", Extensions: map[string]any{"x-displayName": "Executions"}},
		{Name: "Wallet", Description: "Credit purchases and the transaction ledger", Extensions: map[string]any{"x-displayName": "Wallet"}},
		{Name: "Statements", Description: "Monthly account statements", Extensions: map[string]any{"x-displayName": "Statements"}},
		{Name: "Admin", Description: "User management, grants and promotions", Extensions: map[string]any{"x-displayName": "Admin"}},
		{Name: "Health", Description: "System health and status", Extensions: map[string]any{"x-displayName": "Health"}},
	}

	return cfg
}
