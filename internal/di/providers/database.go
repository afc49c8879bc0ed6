package providers

import (
	"context"
	"time"

	"github.com/samber/do/v2"

	"github.com/shelfsy/shelfsy-server/internal/config"
	"github.com/shelfsy/shelfsy-server/internal/custominfo"
	"github.com/shelfsy/shelfsy-server/internal/logger"
	"github.com/shelfsy/shelfsy-server/internal/sse"
	"github.com/shelfsy/shelfsy-server/internal/store/sqlite"
)

// SSEManagerHandle wraps the SSE manager with its context for lifecycle management.
type SSEManagerHandle struct {
	*sse.Manager
	cancel  context.CancelFunc
	timeout time.Duration
}

// Shutdown implements do.Shutdownable.
func (h *SSEManagerHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideSSEManager provides the server-sent events manager.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	manager := sse.NewManager(log.Component("sse"))

	// Start in background
	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	log.Info("SSE manager started")

	return &SSEManagerHandle{
		Manager: manager,
		cancel:  cancel,
		timeout: cfg.Server.ShutdownTimeout,
	}, nil
}

// StoreHandle wraps the library store with shutdown capability.
type StoreHandle struct {
	*sqlite.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the SQLite library store.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	db, err := sqlite.Open(cfg.Storage.DatabasePath, log.Component("store"))
	if err != nil {
		return nil, err
	}

	stats, err := db.GetLibraryStats(context.Background())
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Info("Database initialized",
		"path", cfg.Storage.DatabasePath,
		"manga", stats.Manga,
		"chapters", stats.Chapters,
	)

	return &StoreHandle{Store: db}, nil
}

// CustomInfoHandle wraps the custom info store with shutdown capability.
type CustomInfoHandle struct {
	*custominfo.Store
}

// Shutdown implements do.Shutdownable.
func (h *CustomInfoHandle) Shutdown() error {
	return h.Close()
}

// ProvideCustomInfo provides the badger-backed custom manga info store.
func ProvideCustomInfo(i do.Injector) (*CustomInfoHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	info, err := custominfo.Open(cfg.Storage.CustomInfoDir, log.Component("custominfo"))
	if err != nil {
		return nil, err
	}

	log.Info("Custom info store opened", "path", cfg.Storage.CustomInfoDir)
	return &CustomInfoHandle{Store: info}, nil
}
