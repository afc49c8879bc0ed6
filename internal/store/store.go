package store

import (
	"context"
	"time"

	"github.com/shelfsy/shelfsy-server/internal/domain"
)

// IndexedManga is a library entry as presented to the search index:
// the manga with user overrides applied plus its metadata tags and titles.
type IndexedManga struct {
	Manga  *domain.Manga
	Tags   []string
	Titles []string
}

// SearchIndexer is the interface for updating the search index.
// The restore pipeline uses it to keep search in sync without depending on
// the search implementation.
type SearchIndexer interface {
	IndexManga(ctx context.Context, m *IndexedManga) error
	DeleteManga(ctx context.Context, mangaID int64) error
}

// NoopSearchIndexer is a no-op implementation for testing.
type NoopSearchIndexer struct{}

// IndexManga is a no-op.
func (NoopSearchIndexer) IndexManga(context.Context, *IndexedManga) error { return nil }

// DeleteManga is a no-op.
func (NoopSearchIndexer) DeleteManga(context.Context, int64) error { return nil }

// NewNoopSearchIndexer creates a new no-op search indexer for testing.
func NewNoopSearchIndexer() SearchIndexer {
	return NoopSearchIndexer{}
}

// LibraryStats summarizes the library's contents.
type LibraryStats struct {
	Manga        int       `json:"manga"`
	Favorites    int       `json:"favorites"`
	Chapters     int       `json:"chapters"`
	ReadChapters int       `json:"read_chapters"`
	Categories   int       `json:"categories"`
	Tracks       int       `json:"tracks"`
	Checkpoint   time.Time `json:"checkpoint,omitzero"`
}
