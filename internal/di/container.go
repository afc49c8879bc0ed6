// Package di provides dependency injection configuration for the Shelfsy server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/shelfsy/shelfsy-server/internal/auth"
	"github.com/shelfsy/shelfsy-server/internal/backup"
	backupimport "github.com/shelfsy/shelfsy-server/internal/backup/import"
	"github.com/shelfsy/shelfsy-server/internal/config"
	"github.com/shelfsy/shelfsy-server/internal/di/providers"
	"github.com/shelfsy/shelfsy-server/internal/logger"
	"github.com/shelfsy/shelfsy-server/internal/search"
	"github.com/shelfsy/shelfsy-server/internal/validation"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideAuthKey)
	do.Provide(injector, providers.ProvideValidator)

	// Storage layer
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideCustomInfo)

	// Search layer
	do.Provide(injector, providers.ProvideSearchIndex)
	do.Provide(injector, providers.ProvideReindexer)
	do.Provide(injector, providers.ProvideStartupReindex)

	// Auth layer
	do.Provide(injector, providers.ProvideTokenService)

	// Backup and restore
	do.Provide(injector, providers.ProvideRestorer)
	do.Provide(injector, providers.ProvideBackupService)
	do.Provide(injector, providers.ProvideRestoreService)
	do.Provide(injector, providers.ProvideRemoteFetcher)

	// Workers
	do.Provide(injector, providers.ProvideInbox)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle management.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	// Invoke core services to trigger initialization
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[providers.AuthKey](injector)
	_ = do.MustInvoke[*validation.Validator](injector)
	_ = do.MustInvoke[*providers.SSEManagerHandle](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*providers.CustomInfoHandle](injector)
	_ = do.MustInvoke[*providers.SearchIndexHandle](injector)
	_ = do.MustInvoke[*search.Reindexer](injector)
	_ = do.MustInvoke[*auth.TokenService](injector)

	// Backup and restore
	_ = do.MustInvoke[*backupimport.Restorer](injector)
	_ = do.MustInvoke[*backup.BackupService](injector)
	_ = do.MustInvoke[*backup.RestoreService](injector)
	_ = do.MustInvoke[*providers.RemoteFetcherHandle](injector)

	// Workers
	_ = do.MustInvoke[*providers.InboxHandle](injector)

	// Server
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	_ = do.MustInvoke[*providers.StartupReindexHandle](injector)

	return nil
}
