// Package mw contains HTTP middleware for the codecredit API.
package mw

import (
	"strings"

	"github.com/jmylchreest/codecredit-api/internal/auth"
)

// AdminChecker decides whether verified claims may use admin operations.
type AdminChecker func(claims *auth.Claims) bool

// AdminByRoleOrList grants admin access to tokens with the admin role and to
// any user ID accepted by listed.
func AdminByRoleOrList(listed func(userID string) bool) AdminChecker {
	return func(claims *auth.Claims) bool {
		if claims == nil {
			return false
		}
		return claims.IsAdmin() || (listed != nil && listed(claims.UserID))
	}
}

// bearerToken extracts the token from an Authorization header value.
// A bare token without the scheme is accepted.
func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}
