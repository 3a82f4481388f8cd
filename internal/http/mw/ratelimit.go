package mw

import (
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/httprate"

	"github.com/jmylchreest/codecredit-api/internal/auth"
)

// MetaKeyUserRateLimit marks operations limited per authenticated user.
const MetaKeyUserRateLimit OperationMetadataKey = "userRateLimit"

// RateLimitByIP returns a middleware that rate limits by IP address.
// Used as the global fallback in front of every route.
func RateLimitByIP(requestsPerMinute int) func(http.Handler) http.Handler {
	return httprate.LimitByIP(requestsPerMinute, time.Minute)
}

// HumaUserRateLimit returns a Huma middleware that limits operations marked
// with WithUserRateLimit to requestsPerMinute per user. It must run after
// HumaAuth so the caller's claims are available. A limit of 0 disables it.
func HumaUserRateLimit(requestsPerMinute int) func(ctx huma.Context, next func(huma.Context)) {
	if requestsPerMinute <= 0 {
		return func(ctx huma.Context, next func(huma.Context)) { next(ctx) }
	}
	limiter := httprate.NewRateLimiter(requestsPerMinute, time.Minute)

	return func(ctx huma.Context, next func(huma.Context)) {
		op := ctx.Operation()
		if op == nil {
			next(ctx)
			return
		}
		if limited, _ := op.Metadata[string(MetaKeyUserRateLimit)].(bool); !limited {
			next(ctx)
			return
		}
		claims := auth.ClaimsFromContext(ctx.Context())
		if claims == nil {
			next(ctx)
			return
		}

		r, w := humachi.Unwrap(ctx)
		if limiter.RespondOnLimit(w, r, "user:"+claims.UserID) {
			return
		}
		next(ctx)
	}
}
