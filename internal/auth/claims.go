package auth

import (
	"slices"
	"strings"
	"time"

	domainerrors "github.com/shelfsy/shelfsy-server/internal/errors"
)

// Scopes granted to admin tokens. ScopeRead covers library stats and
// search, ScopeBackup creating and downloading archives, ScopeRestore
// replacing library state.
const (
	ScopeRead    = "read"
	ScopeBackup  = "backup"
	ScopeRestore = "restore"
)

// AllScopes is granted when a token is issued without explicit scopes.
var AllScopes = []string{ScopeRead, ScopeBackup, ScopeRestore}

// ParseScopes splits a comma-separated scope list, dropping blanks and
// duplicates. Unknown names are a validation error.
func ParseScopes(s string) ([]string, error) {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" || slices.Contains(out, part) {
			continue
		}
		if !slices.Contains(AllScopes, part) {
			return nil, domainerrors.Validationf("unknown scope %q", part)
		}
		out = append(out, part)
	}
	return out, nil
}

// AdminClaims are the claims carried in an admin token. v4.local tokens
// are encrypted, so clients cannot read them.
type AdminClaims struct {
	Scopes []string `json:"scopes"`

	Issuer     string    `json:"iss"`
	Subject    string    `json:"sub"`
	Audience   string    `json:"aud"`
	Expiration time.Time `json:"exp"`
	NotBefore  time.Time `json:"nbf"`
	IssuedAt   time.Time `json:"iat"`
	TokenID    string    `json:"jti"`
}

// HasScope reports whether the token grants scope.
func (c *AdminClaims) HasScope(scope string) bool {
	return slices.Contains(c.Scopes, scope)
}

// Remaining is how long the token stays valid after now.
func (c *AdminClaims) Remaining(now time.Time) time.Duration {
	return max(c.Expiration.Sub(now), 0)
}
