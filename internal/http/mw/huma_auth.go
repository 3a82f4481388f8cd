package mw

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/codecredit-api/internal/auth"
	"github.com/jmylchreest/codecredit-api/internal/logging"
)

// HumaAuthConfig holds dependencies for the Huma auth middleware.
type HumaAuthConfig struct {
	Verifier auth.Verifier
	IsAdmin  AdminChecker
	Logger   *slog.Logger
}

// SecurityScheme is the name of the security scheme used in OpenAPI.
const SecurityScheme = "bearerAuth"

// OperationMetadataKey is the key for storing additional operation requirements.
type OperationMetadataKey string

// MetaKeyRequireAdmin marks operations restricted to administrators.
const MetaKeyRequireAdmin OperationMetadataKey = "requireAdmin"

// HumaAuth returns a Huma middleware that authenticates operations declaring
// the bearer security scheme and enforces the admin requirement.
func HumaAuth(api huma.API, cfg HumaAuthConfig) func(ctx huma.Context, next func(huma.Context)) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(ctx huma.Context, next func(huma.Context)) {
		op := ctx.Operation()
		if op == nil || !operationRequiresAuth(op) {
			next(ctx)
			return
		}

		header := ctx.Header("Authorization")
		if header == "" {
			_ = huma.WriteErr(api, ctx, http.StatusUnauthorized, "missing authorization header")
			return
		}
		if cfg.Verifier == nil {
			_ = huma.WriteErr(api, ctx, http.StatusUnauthorized, "authentication is not configured")
			return
		}

		claims, err := cfg.Verifier.VerifyToken(bearerToken(header))
		if err != nil {
			logger.Debug("auth validation failed", "operation", op.OperationID, "error", err)
			_ = huma.WriteErr(api, ctx, http.StatusUnauthorized, "invalid token")
			return
		}

		if requiresAdmin(op) && (cfg.IsAdmin == nil || !cfg.IsAdmin(claims)) {
			logger.Warn("admin access denied", "user_id", claims.UserID, "operation", op.OperationID)
			_ = huma.WriteErr(api, ctx, http.StatusForbidden, "admin access required")
			return
		}

		stdCtx := auth.WithClaims(ctx.Context(), claims)
		stdCtx = logging.WithUserID(stdCtx, claims.UserID)
		next(huma.WithContext(ctx, stdCtx))
	}
}

// operationRequiresAuth checks if the operation has bearerAuth in its security requirements.
func operationRequiresAuth(op *huma.Operation) bool {
	for _, secReq := range op.Security {
		if _, ok := secReq[SecurityScheme]; ok {
			return true
		}
	}
	return false
}

func requiresAdmin(op *huma.Operation) bool {
	b, _ := op.Metadata[string(MetaKeyRequireAdmin)].(bool)
	return b
}
