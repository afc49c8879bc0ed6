package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shelfsy/shelfsy-server/internal/backup"
	backupimport "github.com/shelfsy/shelfsy-server/internal/backup/import"
)

// Subdirectories of the inbox that finished backups are moved into. Both
// are hidden so the watcher ignores them.
const (
	ProcessedDir = ".processed"
	FailedDir    = ".failed"
)

// RestoreStarter starts a background restore.
type RestoreStarter interface {
	Start(ctx context.Context, path string, opts backup.RestoreOptions) (*backup.Job, error)
}

// InboxOptions configures an Inbox.
type InboxOptions struct {
	Dir string

	// RetryInterval is how long to wait before retrying while another
	// restore holds the service. Defaults to 5s.
	RetryInterval time.Duration

	Watch Options
}

// Inbox restores backups dropped into a directory, in sync mode and one at
// a time. Restored files move to ProcessedDir, rejected ones to FailedDir.
// Cancelled runs leave the file where it is.
type Inbox struct {
	restore RestoreStarter
	opts    InboxOptions
	logger  *slog.Logger
	clock   func() time.Time

	queue  chan string
	mu     sync.Mutex
	queued map[string]bool
}

// NewInbox creates an Inbox.
func NewInbox(restore RestoreStarter, opts InboxOptions, logger *slog.Logger) *Inbox {
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 5 * time.Second
	}
	opts.Watch.setDefaults()
	if opts.Watch.Accept == nil {
		opts.Watch.Accept = backup.IsBackupFile
	}
	return &Inbox{
		restore: restore,
		opts:    opts,
		logger:  logger.With("component", "inbox", "dir", opts.Dir),
		clock:   time.Now,
		queue:   make(chan string, 64),
		queued:  make(map[string]bool),
	}
}

// Start watches the inbox until ctx is cancelled. Backups already present
// are queued first.
func (in *Inbox) Start(ctx context.Context) error {
	for _, dir := range []string{in.opts.Dir, in.processedDir(), in.failedDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create inbox dir: %w", err)
		}
	}

	w, err := New(in.logger, in.opts.Watch)
	if err != nil {
		return err
	}
	defer w.Stop() //nolint:errcheck // Shutdown path

	if err := w.Watch(in.opts.Dir); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = w.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		in.work(ctx)
	}()
	defer wg.Wait()

	if err := in.enqueueExisting(); err != nil {
		in.logger.Warn("failed to scan inbox", "error", err)
	}
	in.logger.Info("watching sync inbox")

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events():
			if !ok {
				return nil
			}
			if ev.Op != OpSettled {
				continue
			}
			if ev.Rewrites > 0 {
				in.logger.Info("backup rewritten in place", "file", ev.Name(), "rewrites", ev.Rewrites)
			}
			in.enqueue(ev.Path)
		case err, ok := <-w.Errors():
			if !ok {
				return nil
			}
			in.logger.Warn("inbox watcher error", "error", err)
		}
	}
}

func (in *Inbox) enqueueExisting() error {
	entries, err := os.ReadDir(in.opts.Dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		path := filepath.Join(in.opts.Dir, e.Name())
		info, err := e.Info()
		if err != nil || in.opts.Watch.skip(path) || !in.opts.Watch.wants(path, info.Size()) {
			continue
		}
		in.enqueue(path)
	}
	return nil
}

// enqueue queues path unless it is already queued.
func (in *Inbox) enqueue(path string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.queued[path] {
		return
	}

	select {
	case in.queue <- path:
		in.queued[path] = true
		in.logger.Info("backup queued", "file", filepath.Base(path))
	default:
		in.logger.Warn("inbox queue full, skipping", "file", filepath.Base(path))
	}
}

func (in *Inbox) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case path := <-in.queue:
			in.process(ctx, path)
			in.mu.Lock()
			delete(in.queued, path)
			in.mu.Unlock()
		}
	}
}

// process restores path and files it away according to the outcome.
func (in *Inbox) process(ctx context.Context, path string) {
	logger := in.logger.With("file", filepath.Base(path))

	var job *backup.Job
	for {
		var err error
		job, err = in.restore.Start(ctx, path, backup.RestoreOptions{Sync: true})
		if err == nil {
			break
		}
		if !errors.Is(err, backup.ErrRestoreInProgress) {
			logger.Error("failed to start restore", "error", err)
			in.move(path, in.failedDir())
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(in.opts.RetryInterval):
		}
	}

	select {
	case <-ctx.Done():
		return
	case <-job.Done():
	}

	st := job.Status()
	switch st.State {
	case backupimport.StateDone:
		logger.Info("inbox backup restored", "job_id", job.ID, "restored", st.Restored, "errors", st.ErrorCount)
		in.move(path, in.processedDir())
	case backupimport.StateCancelled:
		logger.Info("inbox restore cancelled", "job_id", job.ID)
	default:
		logger.Error("inbox restore failed", "job_id", job.ID, "error", st.Error)
		in.move(path, in.failedDir())
	}
}

// move renames path into dir with a timestamp prefix.
func (in *Inbox) move(path, dir string) {
	dest := filepath.Join(dir, in.clock().Format("20060102-150405-")+filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		in.logger.Warn("failed to move inbox file", "file", filepath.Base(path), "error", err)
	}
}

func (in *Inbox) processedDir() string {
	return filepath.Join(in.opts.Dir, ProcessedDir)
}

func (in *Inbox) failedDir() string {
	return filepath.Join(in.opts.Dir, FailedDir)
}
