// Command api runs the Shelfsy server: the admin API, the event stream and
// the sync inbox watcher.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/shelfsy/shelfsy-server/internal/config"
	"github.com/shelfsy/shelfsy-server/internal/di"
	"github.com/shelfsy/shelfsy-server/internal/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	injector := di.NewContainer()
	if err := di.Bootstrap(injector); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap server: %v\n", err)
		return 1
	}

	log := do.MustInvoke[*logger.Logger](injector)
	cfg := do.MustInvoke[*config.Config](injector)
	log.Info("Shelfsy server ready",
		"version", cfg.App.Version,
		"env", cfg.App.Environment,
		"data_dir", cfg.Storage.DataDir)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	log.Info("Shutting down", "timeout", cfg.Server.ShutdownTimeout)

	// Handles shut down in reverse dependency order: the HTTP server and
	// inbox stop before the stores they use are closed.
	if err := injector.Shutdown(); err != nil {
		log.Error("Shutdown error", "error", err)
		return 1
	}
	log.Info("Shutdown complete")
	return 0
}
