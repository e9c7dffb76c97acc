package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoExpiry is returned when a token carries no exp claim.
var ErrNoExpiry = errors.New("token has no expiry claim")

// Claims represents the claims the backend puts into primary tokens.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"id,omitempty"`
}

// Inspector reads claims from bearer tokens without verifying signatures.
// The client never holds the signing key, so claims are only a hint: an
// expired exp lets the client skip a doomed revalidation, nothing more.
type Inspector struct {
	parser *jwt.Parser
}

// NewInspector creates a new token inspector.
func NewInspector() *Inspector {
	return &Inspector{parser: jwt.NewParser()}
}

// Inspect decodes the claims of a JWT. Opaque tokens return an error.
func (i *Inspector) Inspect(tokenString string) (Claims, error) {
	claims := Claims{}
	if _, _, err := i.parser.ParseUnverified(tokenString, &claims); err != nil {
		return Claims{}, fmt.Errorf("failed to parse token claims: %w", err)
	}
	return claims, nil
}

// ExpiresAt returns the exp claim of a JWT.
func (i *Inspector) ExpiresAt(tokenString string) (time.Time, error) {
	claims, err := i.Inspect(tokenString)
	if err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, ErrNoExpiry
	}
	return claims.ExpiresAt.Time, nil
}

// Expired reports whether the token is a JWT whose exp has passed at now.
// Tokens that cannot be inspected are never reported as expired.
func (i *Inspector) Expired(tokenString string, now time.Time) bool {
	exp, err := i.ExpiresAt(tokenString)
	if err != nil {
		return false
	}
	return !now.Before(exp)
}
