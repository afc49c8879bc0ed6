package providers

import (
	"github.com/samber/do/v2"

	"github.com/shelfsy/shelfsy-server/internal/auth"
	"github.com/shelfsy/shelfsy-server/internal/config"
	"github.com/shelfsy/shelfsy-server/internal/logger"
)

// AuthKey wraps the token key bytes.
type AuthKey []byte

// ProvideAuthKey returns the configured token key, or loads or generates
// one in the data dir.
func ProvideAuthKey(i do.Injector) (AuthKey, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	key := cfg.Auth.TokenKey
	source := "config"
	if len(key) == 0 {
		var err error
		if key, err = auth.LoadOrGenerateKey(cfg.Storage.DataDir); err != nil {
			return nil, err
		}
		cfg.Auth.TokenKey = key
		source = "data dir"
	}

	log.Info("Token key loaded",
		"source", source,
		"token_duration", cfg.Auth.TokenDuration,
	)

	return AuthKey(key), nil
}

// ProvideTokenService provides the PASETO admin token service.
func ProvideTokenService(i do.Injector) (*auth.TokenService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	authKey := do.MustInvoke[AuthKey](i)

	return auth.NewTokenService([]byte(authKey), cfg.Auth.TokenDuration)
}
