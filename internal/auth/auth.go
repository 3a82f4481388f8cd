// Package auth verifies bearer tokens issued either by Clerk or by the service itself.
package auth

import (
	"context"
	"errors"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrTokenExpired  = errors.New("token expired")
	ErrMissingClaims = errors.New("missing required claims")
	ErrJWKSFetch     = errors.New("failed to fetch JWKS")
)

// RoleAdmin is the role value that grants access to the admin surface.
const RoleAdmin = "admin"

// Claims is the verified identity carried by a request.
type Claims struct {
	UserID string
	Email  string
	Name   string
	Role   string
}

// IsAdmin reports whether the token itself carries the admin role.
func (c *Claims) IsAdmin() bool {
	return c != nil && c.Role == RoleAdmin
}

// Verifier validates a raw bearer token.
type Verifier interface {
	VerifyToken(tokenString string) (*Claims, error)
}

type contextKey struct{}

// WithClaims returns a copy of ctx carrying claims.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, contextKey{}, claims)
}

// ClaimsFromContext retrieves claims from context, or nil.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, ok := ctx.Value(contextKey{}).(*Claims)
	if !ok {
		return nil
	}
	return claims
}
