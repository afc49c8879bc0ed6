// Package providers contains dependency injection providers for the Shelfsy server.
package providers

import (
	"os"

	"github.com/samber/do/v2"

	"github.com/shelfsy/shelfsy-server/internal/config"
	"github.com/shelfsy/shelfsy-server/internal/logger"
)

// ProvideConfig provides the application configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	return config.Load(os.Args[1:])
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	level, err := logger.ParseLevel(cfg.Logger.Level)
	if err != nil {
		return nil, err
	}
	log := logger.New(logger.Config{
		Level:       level,
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Info("Starting Shelfsy Server",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"data_dir", cfg.Storage.DataDir,
		"database", cfg.Storage.DatabasePath,
	)

	return log, nil
}
