package auth

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims is the decoded identity carried by a bearer token. Subject is
// the identity provider's user ID; nothing here is ever persisted.
type TokenClaims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the token subject, trimmed.
func (c *TokenClaims) UserID() string {
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.Subject)
}
