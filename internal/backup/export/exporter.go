package export

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/shelfsy/shelfsy-server/internal/backup/format"
	"github.com/shelfsy/shelfsy-server/internal/domain"
	"github.com/shelfsy/shelfsy-server/internal/store"
)

// Options configures backup creation.
type Options struct {
	OutputPath string
}

// Result contains the outcome of a backup operation.
type Result struct {
	Path     string
	Size     int64
	Counts   format.Counts
	Duration time.Duration
	Checksum string
}

// CustomInfoSource reads user overrides to embed in the backup.
type CustomInfoSource interface {
	Get(ctx context.Context, mangaID int64) (*domain.CustomMangaInfo, error)
}

// Exporter creates backup archives.
type Exporter struct {
	store      store.Library
	customInfo CustomInfoSource
	version    string
	logger     *slog.Logger
	clock      func() time.Time
}

// New creates an Exporter. customInfo may be nil.
func New(lib store.Library, customInfo CustomInfoSource, version string, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		store:      lib,
		customInfo: customInfo,
		version:    version,
		logger:     logger,
		clock:      time.Now,
	}
}

// Export writes the whole library to opts.OutputPath.
func (e *Exporter) Export(ctx context.Context, opts Options) (*Result, error) {
	start := e.clock()

	// Write to temp file, rename on success
	tmpPath := opts.OutputPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("create backup file: %w", err)
	}
	defer os.Remove(tmpPath)
	defer f.Close()

	sum, _ := blake2b.New256(nil)
	aw := format.NewArchiveWriter(io.MultiWriter(f, sum), e.version, start)

	lookups, err := e.collectLookups(ctx)
	if err != nil {
		return nil, fmt.Errorf("export lookups: %w", err)
	}
	if err := aw.WriteLookups(&lookups.Backup); err != nil {
		return nil, err
	}

	mangas, err := e.store.ListMangas(ctx)
	if err != nil {
		return nil, fmt.Errorf("list manga: %w", err)
	}
	for _, m := range mangas {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		bm, err := e.exportManga(ctx, m, lookups.categoryOrders)
		if err != nil {
			return nil, fmt.Errorf("export manga %d: %w", m.ID, err)
		}
		if err := aw.WriteManga(bm); err != nil {
			return nil, fmt.Errorf("write manga %d: %w", m.ID, err)
		}
	}

	manifest, err := aw.Close()
	if err != nil {
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmpPath, opts.OutputPath); err != nil {
		return nil, fmt.Errorf("rename backup: %w", err)
	}

	info, err := os.Stat(opts.OutputPath)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Path:     opts.OutputPath,
		Size:     info.Size(),
		Counts:   manifest.Counts,
		Duration: e.clock().Sub(start),
		Checksum: hex.EncodeToString(sum.Sum(nil)),
	}
	e.logger.Info("backup created",
		"path", res.Path,
		"size", res.Size,
		"manga", res.Counts.Manga,
		"chapters", res.Counts.Chapters,
	)
	return res, nil
}
