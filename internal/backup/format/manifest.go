package format

import (
	"fmt"
	"strings"
	"time"
)

// FormatVersion is the archive format version. Increment major on breaking changes.
const FormatVersion = "1.0"

// Archive member names.
const (
	FileManifest      = "manifest.json"
	FileCategories    = "categories.json"
	FileSavedSearches = "saved_searches.json"
	FileFeeds         = "feeds.json"
	FileSources       = "sources.json"
	FileBrokenSources = "broken_sources.json"
	FileManga         = "manga.jsonl"
)

// DataFiles lists the members that carry checksums, in write order.
var DataFiles = []string{
	FileCategories,
	FileSavedSearches,
	FileFeeds,
	FileSources,
	FileBrokenSources,
	FileManga,
}

// Manifest describes archive contents. It is written last so counts and
// checksums are final.
type Manifest struct {
	Version       string    `json:"version"`
	CreatedAt     time.Time `json:"created_at"`
	ServerVersion string    `json:"server_version"`

	Counts Counts `json:"counts"`

	// Checksums maps member name to hex blake2b-256 of its bytes.
	Checksums map[string]string `json:"checksums"`
}

// Counts tracks entity counts for validation and progress reporting.
type Counts struct {
	Manga         int `json:"manga"`
	Chapters      int `json:"chapters"`
	Categories    int `json:"categories"`
	SavedSearches int `json:"saved_searches"`
	Feeds         int `json:"feeds"`
	Sources       int `json:"sources"`
}

// CheckVersion reports ErrVersionMismatch when the manifest's major version
// differs from FormatVersion.
func (m *Manifest) CheckVersion() error {
	if m.Version == "" {
		return fmt.Errorf("%w: version missing", ErrInvalidManifest)
	}
	got, _, _ := strings.Cut(m.Version, ".")
	want, _, _ := strings.Cut(FormatVersion, ".")
	if got != want {
		return fmt.Errorf("%w: archive %s, server %s", ErrVersionMismatch, m.Version, FormatVersion)
	}
	return nil
}

// CountsOf tallies a decoded backup.
func CountsOf(b *Backup) Counts {
	c := Counts{
		Manga:         len(b.Manga),
		Categories:    len(b.Categories),
		SavedSearches: len(b.SavedSearches),
		Feeds:         len(b.Feeds),
		Sources:       len(b.Sources) + len(b.BrokenSources),
	}
	for i := range b.Manga {
		c.Chapters += len(b.Manga[i].Chapters)
	}
	return c
}
