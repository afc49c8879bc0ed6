package api

import (
	"context"
	"errors"

	"github.com/shelfsy/shelfsy-server/internal/auth"
	domainerrors "github.com/shelfsy/shelfsy-server/internal/errors"
)

// ctxKey is the type for context keys to avoid collisions.
type ctxKey string

const (
	claimsKey  ctxKey = "claims"
	authErrKey ctxKey = "auth_error"
)

// GetClaims returns the verified token claims from context, or nil.
func GetClaims(ctx context.Context) *auth.AdminClaims {
	claims, _ := ctx.Value(claimsKey).(*auth.AdminClaims)
	return claims
}

// authorize checks that ctx carries a token with scope.
func authorize(ctx context.Context, scope string) (*auth.AdminClaims, error) {
	claims := GetClaims(ctx)
	if claims == nil {
		if err, ok := ctx.Value(authErrKey).(error); ok {
			var domainErr *domainerrors.Error
			if errors.As(err, &domainErr) {
				return nil, domainErr
			}
			return nil, domainerrors.Unauthorized("invalid token")
		}
		return nil, domainerrors.Unauthorized("authentication required")
	}
	if !claims.HasScope(scope) {
		return nil, domainerrors.Forbiddenf("token lacks the %q scope", scope)
	}
	return claims, nil
}

// RequireScope validates that the request is authenticated with scope.
// Returns the claims if successful.
func (s *Server) RequireScope(ctx context.Context, scope string) (*auth.AdminClaims, error) {
	return authorize(ctx, scope)
}
