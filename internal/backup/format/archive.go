package format

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/shelfsy/shelfsy-server/internal/backup/stream"
)

// ReadArchive decodes a zip+JSONL backup. The manifest is checked first;
// every member with a recorded checksum is verified before it is decoded.
func ReadArchive(r io.ReaderAt, size int64) (*Backup, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptedBackup, err)
	}

	manifest, err := stream.ReadValue[Manifest](zr, FileManifest)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}
	if err := manifest.CheckVersion(); err != nil {
		return nil, err
	}

	for _, name := range DataFiles {
		want, ok := manifest.Checksums[name]
		if !ok {
			continue
		}
		got, err := stream.Checksum(zr, name)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorruptedBackup, err)
		}
		if got != want {
			return nil, fmt.Errorf("%w: checksum mismatch for %s", ErrCorruptedBackup, name)
		}
	}

	b := &Backup{Manifest: &manifest}
	if err := readOptional(zr, FileCategories, &b.Categories); err != nil {
		return nil, err
	}
	if err := readOptional(zr, FileSavedSearches, &b.SavedSearches); err != nil {
		return nil, err
	}
	if err := readOptional(zr, FileFeeds, &b.Feeds); err != nil {
		return nil, err
	}
	if err := readOptional(zr, FileSources, &b.Sources); err != nil {
		return nil, err
	}
	if err := readOptional(zr, FileBrokenSources, &b.BrokenSources); err != nil {
		return nil, err
	}

	rc, err := stream.OpenFile(zr, FileManga)
	switch {
	case errors.Is(err, stream.ErrFileNotFound):
	case err != nil:
		return nil, fmt.Errorf("%w: %w", ErrCorruptedBackup, err)
	default:
		for m, err := range stream.NewReader[Manga](rc).All() {
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrCorruptedBackup, FileManga, err)
			}
			b.Manga = append(b.Manga, m)
		}
	}

	if manifest.Counts.Manga != len(b.Manga) {
		return nil, fmt.Errorf("%w: manifest lists %d manga, archive has %d",
			ErrCorruptedBackup, manifest.Counts.Manga, len(b.Manga))
	}

	return b, nil
}

func readOptional[T any](zr *zip.Reader, name string, dst *[]T) error {
	v, err := stream.ReadValue[[]T](zr, name)
	if errors.Is(err, stream.ErrFileNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptedBackup, err)
	}
	*dst = v
	return nil
}

// ArchiveWriter writes a zip+JSONL backup. Lookup tables are written first,
// manga are streamed one line at a time and Close writes the manifest.
type ArchiveWriter struct {
	zw       *zip.Writer
	manga    *stream.Writer
	manifest Manifest
}

// NewArchiveWriter starts an archive on w.
func NewArchiveWriter(w io.Writer, serverVersion string, now time.Time) *ArchiveWriter {
	return &ArchiveWriter{
		zw: zip.NewWriter(w),
		manifest: Manifest{
			Version:       FormatVersion,
			CreatedAt:     now.UTC(),
			ServerVersion: serverVersion,
			Checksums:     make(map[string]string, len(DataFiles)),
		},
	}
}

// WriteLookups writes the lookup tables of b. It must be called once,
// before any manga.
func (a *ArchiveWriter) WriteLookups(b *Backup) error {
	members := []struct {
		name  string
		value any
	}{
		{FileCategories, nonNil(b.Categories)},
		{FileSavedSearches, nonNil(b.SavedSearches)},
		{FileFeeds, nonNil(b.Feeds)},
		{FileSources, nonNil(b.Sources)},
		{FileBrokenSources, nonNil(b.BrokenSources)},
	}
	for _, m := range members {
		sum, err := stream.WriteValue(a.zw, m.name, m.value)
		if err != nil {
			return fmt.Errorf("write %s: %w", m.name, err)
		}
		a.manifest.Checksums[m.name] = sum
	}

	a.manifest.Counts.Categories = len(b.Categories)
	a.manifest.Counts.SavedSearches = len(b.SavedSearches)
	a.manifest.Counts.Feeds = len(b.Feeds)
	a.manifest.Counts.Sources = len(b.Sources) + len(b.BrokenSources)
	return nil
}

// WriteManga appends one manga line.
func (a *ArchiveWriter) WriteManga(m *Manga) error {
	if a.manga == nil {
		w, err := stream.NewWriter(a.zw, FileManga)
		if err != nil {
			return fmt.Errorf("write %s: %w", FileManga, err)
		}
		a.manga = w
	}
	if err := a.manga.Write(m); err != nil {
		return err
	}
	a.manifest.Counts.Manga++
	a.manifest.Counts.Chapters += len(m.Chapters)
	return nil
}

// Close writes the manifest and finalizes the zip. It does not close the
// underlying writer.
func (a *ArchiveWriter) Close() (*Manifest, error) {
	if a.manga == nil {
		w, err := stream.NewWriter(a.zw, FileManga)
		if err != nil {
			return nil, fmt.Errorf("write %s: %w", FileManga, err)
		}
		a.manga = w
	}
	a.manifest.Checksums[FileManga] = a.manga.Sum()

	if _, err := stream.WriteValue(a.zw, FileManifest, a.manifest); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	if err := a.zw.Close(); err != nil {
		return nil, fmt.Errorf("close zip: %w", err)
	}
	return &a.manifest, nil
}

// WriteArchive writes a complete in-memory backup to w.
func WriteArchive(w io.Writer, b *Backup, serverVersion string, now time.Time) (*Manifest, error) {
	aw := NewArchiveWriter(w, serverVersion, now)
	if err := aw.WriteLookups(b); err != nil {
		return nil, err
	}
	for i := range b.Manga {
		if err := aw.WriteManga(&b.Manga[i]); err != nil {
			return nil, err
		}
	}
	return aw.Close()
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
