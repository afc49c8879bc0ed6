package backup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shelfsy/shelfsy-server/internal/backup/export"
)

const (
	idPrefix   = "backup-"
	idLayout   = "2006-01-02-150405"
	uploadsDir = "uploads"
)

// BackupService writes library archives into one directory and keeps the
// newest few of them.
type BackupService struct {
	dir      string
	keep     int
	exporter *export.Exporter
	logger   *slog.Logger
	clock    func() time.Time
}

// NewBackupService creates a BackupService writing to dir. Every archive is
// kept until SetRetention is called.
func NewBackupService(exporter *export.Exporter, dir string, logger *slog.Logger) *BackupService {
	return &BackupService{dir: dir, exporter: exporter, logger: logger, clock: time.Now}
}

// SetRetention keeps at most n archives after each Create. n <= 0 keeps all.
func (s *BackupService) SetRetention(n int) {
	s.keep = n
}

// Create exports the library into a new archive and prunes old ones.
func (s *BackupService) Create(ctx context.Context, opts BackupOptions) (*BackupResult, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}

	out := opts.OutputPath
	if out == "" {
		out = s.GetPath(s.nextID())
	}
	s.logger.Info("creating backup", "output", out)

	res, err := s.exporter.Export(ctx, export.Options{OutputPath: out})
	if err != nil {
		return nil, err
	}
	s.logger.Info("backup complete",
		"path", res.Path,
		"size", res.Size,
		"duration", res.Duration,
		"checksum", res.Checksum)

	result := &BackupResult{
		ID:       strings.TrimSuffix(filepath.Base(res.Path), ArchiveSuffix),
		Path:     res.Path,
		Size:     res.Size,
		Counts:   res.Counts,
		Duration: res.Duration,
		Checksum: res.Checksum,
	}
	if opts.OutputPath == "" {
		result.Pruned = s.prune(ctx, result.ID)
	}
	return result, nil
}

// nextID picks a timestamped id, adding a counter when several backups are
// taken within the same second.
func (s *BackupService) nextID() string {
	base := idPrefix + s.clock().Format(idLayout)
	id := base
	for n := 2; ; n++ {
		if _, err := os.Stat(s.GetPath(id)); errors.Is(err, fs.ErrNotExist) {
			return id
		}
		id = base + "-" + strconv.Itoa(n)
	}
}

// prune removes the oldest archives beyond the retention limit, never
// touching current. It returns the removed ids.
func (s *BackupService) prune(ctx context.Context, current string) []string {
	if s.keep <= 0 {
		return nil
	}
	all, err := s.List(ctx)
	if err != nil {
		s.logger.Warn("failed to list backups for pruning", "error", err)
		return nil
	}
	if len(all) <= s.keep {
		return nil
	}

	var removed []string
	for _, b := range all[s.keep:] {
		if b.ID == current {
			continue
		}
		if err := os.Remove(b.Path); err != nil {
			s.logger.Warn("failed to prune backup", "id", b.ID, "error", err)
			continue
		}
		removed = append(removed, b.ID)
	}
	if len(removed) > 0 {
		s.logger.Info("pruned old backups", "removed", len(removed), "keep", s.keep)
	}
	return removed
}

// List returns the archives in the backup directory, newest first.
// Uploads and other files are skipped.
func (s *BackupService) List(_ context.Context) ([]BackupInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []BackupInfo
	for _, e := range entries {
		id, ok := strings.CutSuffix(e.Name(), ArchiveSuffix)
		if !ok || !e.Type().IsRegular() {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, BackupInfo{
			ID:        id,
			Path:      filepath.Join(s.dir, e.Name()),
			Size:      fi.Size(),
			CreatedAt: fi.ModTime(),
		})
	}

	// Ids embed the creation time, so they break mtime ties.
	slices.SortFunc(out, func(a, b BackupInfo) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	return out, nil
}

// Get returns the archive with the given id.
func (s *BackupService) Get(_ context.Context, id string) (*BackupInfo, error) {
	if !validID(id) {
		return nil, ErrBackupNotFound
	}
	path := s.GetPath(id)
	fi, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrBackupNotFound
	}
	if err != nil {
		return nil, err
	}
	return &BackupInfo{ID: id, Path: path, Size: fi.Size(), CreatedAt: fi.ModTime()}, nil
}

// Delete removes the archive with the given id.
func (s *BackupService) Delete(ctx context.Context, id string) error {
	b, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return os.Remove(b.Path)
}

// GetPath returns the archive path for id.
func (s *BackupService) GetPath(id string) string {
	return filepath.Join(s.dir, id+ArchiveSuffix)
}

// GetUploadsDir returns, creating it if needed, the directory that uploaded
// and remotely fetched backups are staged in.
func (s *BackupService) GetUploadsDir() (string, error) {
	dir := filepath.Join(s.dir, uploadsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create uploads dir: %w", err)
	}
	return dir, nil
}

// validID rejects ids that would escape the backup directory.
func validID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}
