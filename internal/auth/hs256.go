package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// localClaims is the JWT body issued and accepted by HS256Verifier.
type localClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
}

// HS256Verifier verifies tokens signed with a shared secret.
type HS256Verifier struct {
	secret []byte
	issuer string
}

// NewHS256Verifier creates a verifier for tokens signed with secret.
// An empty issuer disables the issuer check.
func NewHS256Verifier(secret, issuer string) *HS256Verifier {
	return &HS256Verifier{secret: []byte(secret), issuer: issuer}
}

// VerifyToken verifies an HS256 JWT and returns the claims.
func (v *HS256Verifier) VerifyToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &localClaims{}, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	lc, ok := token.Claims.(*localClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if lc.Subject == "" {
		return nil, ErrMissingClaims
	}

	return &Claims{
		UserID: lc.Subject,
		Email:  lc.Email,
		Name:   lc.Name,
		Role:   lc.Role,
	}, nil
}

// IssueToken signs a token for claims that expires after ttl.
// Used by development tooling and tests.
func (v *HS256Verifier) IssueToken(claims Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	lc := localClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.UserID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: claims.Email,
		Name:  claims.Name,
		Role:  claims.Role,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, lc).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
