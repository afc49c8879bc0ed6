package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/shelfsy/shelfsy-server/internal/backup"
	"github.com/shelfsy/shelfsy-server/internal/config"
	"github.com/shelfsy/shelfsy-server/internal/logger"
	"github.com/shelfsy/shelfsy-server/internal/watcher"
)

// InboxHandle wraps the sync inbox watcher with shutdown capability.
type InboxHandle struct {
	*watcher.Inbox
	cancel context.CancelFunc
	done   chan struct{}
}

// Shutdown implements do.Shutdownable.
func (h *InboxHandle) Shutdown() error {
	if h.cancel == nil {
		return nil
	}
	h.cancel()
	<-h.done
	return nil
}

// ProvideInbox provides the sync inbox, which restores backups dropped
// into the inbox directory.
func ProvideInbox(i do.Injector) (*InboxHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	restoreSvc := do.MustInvoke[*backup.RestoreService](i)

	if !cfg.Restore.WatchInbox {
		log.Info("Sync inbox disabled by configuration")
		return &InboxHandle{}, nil
	}

	inbox := watcher.NewInbox(restoreSvc, watcher.InboxOptions{
		Dir:   cfg.Restore.InboxDir,
		Watch: watcher.Options{IgnoreHidden: true},
	}, log.Logger)

	// Start in background
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		if err := inbox.Start(ctx); err != nil {
			log.Error("Sync inbox error", "error", err)
		}
	}()

	log.Info("Sync inbox started", "dir", cfg.Restore.InboxDir)

	return &InboxHandle{
		Inbox:  inbox,
		cancel: cancel,
		done:   done,
	}, nil
}
