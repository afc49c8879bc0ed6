// Package watcher reports settled files in watched directories and feeds
// backups dropped into the sync inbox to the restore service.
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

	"github.com/fsnotify/fsnotify"
)

// Watcher monitors directories and emits an event once a file stops
// changing. Writes are debounced by Options.SettleDelay.
type Watcher struct {
	logger  *slog.Logger
	opts    Options
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*pendingEvent
	seen    map[string]int
	stopped bool

	stopOnce sync.Once

	events chan Event
	errors chan error
	done   chan struct{}
	wg     sync.WaitGroup
}

// pendingEvent tracks a file that may still be changing
type pendingEvent struct {
	size    int64
	modTime time.Time
	timer   *time.Timer
}

// New creates a watcher. Nothing is watched until Watch is called.
func New(logger *slog.Logger, opts Options) (*Watcher, error) {
	opts.setDefaults()

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		logger:  logger,
		opts:    opts,
		watcher: fw,
		pending: make(map[string]*pendingEvent),
		seen:    make(map[string]int),
		events:  make(chan Event, 100),
		errors:  make(chan error, 10),
		done:    make(chan struct{}),
	}, nil
}

// Watch adds a directory to be monitored. Subdirectories are not watched.
func (w *Watcher) Watch(dir string) error {
	dir = filepath.Clean(dir)

	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("failed to stat path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to add watch: %w", err)
	}
	w.logger.Debug("added watch", "path", dir)
	return nil
}

// Start processes events until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.wg.Add(1)
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.done:
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			select {
			case w.errors <- err:
			default:
				w.logger.Warn("watcher error dropped", "error", err)
			}
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	path := event.Name
	if w.opts.skip(path) {
		return
	}

	switch {
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.mu.Lock()
		defer w.mu.Unlock()
		if p, ok := w.pending[path]; ok {
			p.timer.Stop()
			delete(w.pending, path)
		}
		if _, ok := w.seen[path]; ok {
			delete(w.seen, path)
			w.emit(Event{Op: OpRemoved, Path: path})
		}

	case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
		w.startSettling(path)
	}
}

// startSettling (re)arms the settle timer for path.
func (w *Watcher) startSettling(path string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}

	if p, ok := w.pending[path]; ok {
		p.timer.Stop()
	}
	w.pending[path] = &pendingEvent{
		size:    info.Size(),
		modTime: info.ModTime(),
		timer:   time.AfterFunc(w.opts.SettleDelay, func() { w.checkSettled(path) }),
	}
}

// checkSettled emits path if it has not changed since the timer was armed.
func (w *Watcher) checkSettled(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, ok := w.pending[path]
	if !ok || w.stopped {
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		delete(w.pending, path)
		return
	}

	if info.Size() != p.size || !info.ModTime().Equal(p.modTime) {
		p.size = info.Size()
		p.modTime = info.ModTime()
		p.timer = time.AfterFunc(w.opts.SettleDelay, func() { w.checkSettled(path) })
		return
	}

	delete(w.pending, path)
	if !w.opts.wants(path, info.Size()) {
		return
	}
	rewrites, seen := w.seen[path]
	if seen {
		rewrites++
	}
	w.seen[path] = rewrites
	w.emit(Event{
		Op:       OpSettled,
		Path:     path,
		Size:     info.Size(),
		ModTime:  info.ModTime(),
		Rewrites: rewrites,
	})
}

// emit sends event unless the watcher is stopping. Callers hold w.mu.
func (w *Watcher) emit(event Event) {
	if w.stopped {
		return
	}
	select {
	case w.events <- event:
	case <-w.done:
	}
}

// Events returns the channel of settled file events.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns the channel of watcher errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Stop releases the watcher. Events and Errors are closed afterwards.
func (w *Watcher) Stop() error {
	// Closing done first releases an emit blocked on a full channel.
	w.stopOnce.Do(func() { close(w.done) })

	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	for _, p := range w.pending {
		p.timer.Stop()
	}
	clear(w.pending)
	w.mu.Unlock()

	err := w.watcher.Close()
	w.wg.Wait()

	close(w.events)
	close(w.errors)
	if err != nil && !errors.Is(err, fsnotify.ErrClosed) {
		return err
	}
	return nil
}
