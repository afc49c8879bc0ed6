package auth

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"aidanwoods.dev/go-paseto"

	domainerrors "github.com/shelfsy/shelfsy-server/internal/errors"
	"github.com/shelfsy/shelfsy-server/internal/id"
)

const (
	tokenIssuer   = "shelfsy-server"
	tokenAudience = "shelfsy-admin"
)

// TokenService handles PASETO token generation and verification.
type TokenService struct {
	symmetricKey paseto.V4SymmetricKey
	duration     time.Duration
	now          func() time.Time
}

// NewTokenService creates a token service from a 32-byte key.
func NewTokenService(key []byte, duration time.Duration) (*TokenService, error) {
	if len(key) != keyLength {
		return nil, fmt.Errorf("PASETO v4 key must be exactly %d bytes, got %d", keyLength, len(key))
	}
	if duration <= 0 {
		return nil, fmt.Errorf("token duration must be positive, got %s", duration)
	}

	symmetricKey, err := paseto.V4SymmetricKeyFromBytes(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create PASETO symmetric key: %w", err)
	}

	return &TokenService{
		symmetricKey: symmetricKey,
		duration:     duration,
		now:          time.Now,
	}, nil
}

// Issue creates a PASETO v4.local admin token for subject. With no scopes
// the token grants AllScopes.
func (s *TokenService) Issue(subject string, scopes ...string) (string, *AdminClaims, error) {
	for _, sc := range scopes {
		if !slices.Contains(AllScopes, sc) {
			return "", nil, domainerrors.Validationf("unknown scope %q", sc)
		}
	}
	if len(scopes) == 0 {
		scopes = AllScopes
	}

	tokenID, err := id.Generate(id.PrefixToken)
	if err != nil {
		return "", nil, fmt.Errorf("generate token ID: %w", err)
	}

	now := s.now()
	claims := &AdminClaims{
		Scopes:     slices.Clone(scopes),
		Issuer:     tokenIssuer,
		Subject:    subject,
		Audience:   tokenAudience,
		Expiration: now.Add(s.duration),
		NotBefore:  now,
		IssuedAt:   now,
		TokenID:    tokenID,
	}

	token := paseto.NewToken()
	token.SetIssuer(claims.Issuer)
	token.SetSubject(claims.Subject)
	token.SetAudience(claims.Audience)
	token.SetIssuedAt(claims.IssuedAt)
	token.SetNotBefore(claims.NotBefore)
	token.SetExpiration(claims.Expiration)
	token.SetJti(claims.TokenID)
	if err := token.Set("scopes", claims.Scopes); err != nil {
		return "", nil, fmt.Errorf("set scopes: %w", err)
	}

	return token.V4Encrypt(s.symmetricKey, nil), claims, nil
}

// Verify decrypts and checks a token. Expired tokens fail with
// errors.ErrTokenExpired, anything else unverifiable with
// errors.ErrUnauthorized.
func (s *TokenService) Verify(tokenString string) (*AdminClaims, error) {
	now := s.now()

	parser := paseto.NewParserWithoutExpiryCheck()
	parser.AddRule(paseto.ForAudience(tokenAudience))
	parser.AddRule(paseto.IssuedBy(tokenIssuer))

	token, err := parser.ParseV4Local(s.symmetricKey, tokenString, nil)
	if err != nil {
		return nil, domainerrors.Unauthorized("invalid token").WithCause(err)
	}

	var claims AdminClaims
	if err := json.Unmarshal(token.ClaimsJSON(), &claims); err != nil {
		return nil, domainerrors.Unauthorized("invalid token claims").WithCause(err)
	}
	if !now.Before(claims.Expiration) {
		return nil, domainerrors.TokenExpired("token expired")
	}
	if now.Before(claims.NotBefore) {
		return nil, domainerrors.Unauthorized("token not yet valid")
	}
	return &claims, nil
}

// Duration returns the configured token lifetime.
func (s *TokenService) Duration() time.Duration {
	return s.duration
}
