package providers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/samber/do/v2"

	"github.com/shelfsy/shelfsy-server/internal/api"
	"github.com/shelfsy/shelfsy-server/internal/auth"
	"github.com/shelfsy/shelfsy-server/internal/backup"
	"github.com/shelfsy/shelfsy-server/internal/config"
	"github.com/shelfsy/shelfsy-server/internal/logger"
	"github.com/shelfsy/shelfsy-server/internal/search"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
	api     *api.Server
	timeout time.Duration
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	err := h.Server.Shutdown(ctx)
	h.api.Close()
	return err
}

// ProvideHTTPServer provides the HTTP server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	remoteHandle := do.MustInvoke[*RemoteFetcherHandle](i)

	services := &api.Services{
		Backup:    do.MustInvoke[*backup.BackupService](i),
		Restore:   do.MustInvoke[*backup.RestoreService](i),
		Library:   storeHandle.Store,
		Search:    indexHandle.SearchIndex,
		Reindexer: do.MustInvoke[*search.Reindexer](i),
		Tokens:    do.MustInvoke[*auth.TokenService](i),
	}
	if remoteHandle.Fetcher != nil {
		services.Remote = remoteHandle.Fetcher
	}

	handler := api.NewServer(services, sseHandle.Manager, api.Options{
		Version:     cfg.App.Version,
		CORSOrigins: cfg.Server.CORSOrigins,
	}, log.Component("api"))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("Server running", "addr", srv.Addr)

	return &HTTPServerHandle{Server: srv, api: handler, timeout: cfg.Server.ShutdownTimeout}, nil
}
