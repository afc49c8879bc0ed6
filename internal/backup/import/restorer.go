package backupimport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/shelfsy/shelfsy-server/internal/backup/format"
	"github.com/shelfsy/shelfsy-server/internal/domain"
	"github.com/shelfsy/shelfsy-server/internal/store"
)

// CustomInfoStore holds user overrides outside the library store.
type CustomInfoStore interface {
	Get(ctx context.Context, mangaID int64) (*domain.CustomMangaInfo, error)
	Save(ctx context.Context, info *domain.CustomMangaInfo) error
}

// Config tunes the restorer.
type Config struct {
	// LogDir receives error logs.
	LogDir string

	// FollowingDays and LeadingDays size the fetch window around today.
	FollowingDays int
	LeadingDays   int

	// SourceRemap rewrites retired source ids before lookup.
	SourceRemap map[int64]int64
}

// Restorer merges decoded backups into a library.
type Restorer struct {
	store      store.Library
	customInfo CustomInfoStore
	index      store.SearchIndexer
	notifier   Notifier
	cfg        Config
	logger     *slog.Logger
	clock      func() time.Time
}

// New creates a Restorer. A nil index or notifier falls back to a no-op
// index and a log notifier.
func New(lib store.Library, customInfo CustomInfoStore, index store.SearchIndexer, notifier Notifier, cfg Config, logger *slog.Logger) *Restorer {
	if logger == nil {
		logger = slog.Default()
	}
	if index == nil {
		index = store.NewNoopSearchIndexer()
	}
	if notifier == nil {
		notifier = LogNotifier{Logger: logger}
	}
	return &Restorer{
		store:      lib,
		customInfo: customInfo,
		index:      index,
		notifier:   notifier,
		cfg:        cfg,
		logger:     logger,
		clock:      time.Now,
	}
}

// Restore merges b into the library. Per-manga failures are recorded in the
// result and do not fail the run. Cancellation of ctx is observed between
// manga; a cancelled run returns its partial result with a nil error and
// emits no completion notification.
func (r *Restorer) Restore(ctx context.Context, b *format.Backup, opts Options) (*Result, error) {
	if b == nil {
		return nil, errors.New("restore: nil backup")
	}
	b.Normalize()

	now := r.clock()
	fetchRange := domain.NewFetchRange(now, r.cfg.FollowingDays, r.cfg.LeadingDays)
	notifier := r.notifier
	if opts.Notifier != nil {
		notifier = Notifiers{r.notifier, opts.Notifier}
	}
	run := newRun(opts, notifier, r.clock, len(b.Manga), fetchRange, b.SourceNames())

	r.logger.Info("restore started",
		"manga", len(b.Manga),
		"categories", len(b.Categories),
		"saved_searches", len(b.SavedSearches),
		"sync", opts.Sync,
	)

	run.setState(StateRestoringLookups)
	if err := r.restoreCategories(ctx, run, b.Categories); err != nil {
		return r.fail(run, fmt.Errorf("restore categories: %w", err))
	}
	if err := r.restoreSavedSearches(ctx, run, b.SavedSearches, b.Feeds); err != nil {
		return r.fail(run, fmt.Errorf("restore saved searches: %w", err))
	}

	run.setState(StateRestoringManga)
	for _, m := range orderManga(b.Manga) {
		if ctx.Err() != nil {
			run.setState(StateCancelled)
			res := run.result()
			res.Elapsed = r.clock().Sub(run.start)
			r.logger.Info("restore cancelled",
				"progress", run.progress,
				"total", run.total,
				"errors", len(run.errors),
			)
			return res, nil
		}
		r.restoreManga(ctx, run, m)
		run.tick(m.Title)
	}

	return r.finish(run), nil
}

func (r *Restorer) fail(run *Run, err error) (*Result, error) {
	run.setState(StateFailed)
	res := run.result()
	res.Elapsed = r.clock().Sub(run.start)
	r.logger.Error("restore failed", "error", err)
	return res, err
}

// finish writes the error log and emits the completion notification.
func (r *Restorer) finish(run *Run) *Result {
	run.setState(StateFinalizing)

	end := r.clock()
	res := run.result()
	res.Elapsed = end.Sub(run.start)

	if len(run.errors) > 0 {
		dir, file, err := writeErrorLog(r.cfg.LogDir, end, run.errors)
		if err != nil {
			r.logger.Warn("failed to write restore error log", "dir", r.cfg.LogDir, "error", err)
		}
		res.LogDir, res.LogFile = dir, file
	}

	completion := CompletionEvent{
		Elapsed:    res.Elapsed,
		ErrorCount: len(run.errors),
		LogDir:     res.LogDir,
		LogFile:    res.LogFile,
	}
	if run.opts.Sync {
		completion.ContentTitle = CompleteTitleSync
	}
	run.notifier.Complete(completion)

	run.setState(StateDone)
	res.State = StateDone

	r.logger.Info("restore finished",
		"restored", run.restored,
		"errors", len(run.errors),
		"elapsed", res.Elapsed,
	)
	return res
}

// orderManga returns the manga with merged-source entries moved last,
// keeping the backup order otherwise.
func orderManga(manga []format.Manga) []*format.Manga {
	out := make([]*format.Manga, len(manga))
	for i := range manga {
		out[i] = &manga[i]
	}
	slices.SortStableFunc(out, func(a, b *format.Manga) int {
		return kindRank(a.Kind) - kindRank(b.Kind)
	})
	return out
}

func kindRank(k domain.SourceKind) int {
	switch k {
	case domain.SourceKindMerged:
		return 1
	default:
		return 0
	}
}

func (r *Restorer) remap(source int64) int64 {
	if to, ok := r.cfg.SourceRemap[source]; ok {
		return to
	}
	return source
}
