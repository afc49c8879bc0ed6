// Package store defines the persistence interface for the Shelfsy server.
package store

import (
	"context"
	"time"

	"github.com/shelfsy/shelfsy-server/internal/domain"
)

// Library is the set of persistence operations over the manga library.
// Lookups return ErrNotFound when nothing matches.
type Library interface {
	// Manga
	GetManga(ctx context.Context, id int64) (*domain.Manga, error)
	GetMangaBySourceURL(ctx context.Context, source int64, url string) (*domain.Manga, error)
	ListMangas(ctx context.Context) ([]*domain.Manga, error)
	InsertManga(ctx context.Context, m *domain.Manga) error
	UpdateManga(ctx context.Context, m *domain.Manga) error
	UpdateFetchInterval(ctx context.Context, mangaID int64, next time.Time, interval int) error

	// Chapters
	GetChaptersByMangaID(ctx context.Context, mangaID int64) ([]domain.Chapter, error)
	InsertChapters(ctx context.Context, chapters []domain.Chapter) error

	// Categories
	ListCategories(ctx context.Context) ([]*domain.Category, error)
	InsertCategory(ctx context.Context, c *domain.Category) error
	GetMangaCategoryIDs(ctx context.Context, mangaID int64) ([]int64, error)
	SetMangaCategories(ctx context.Context, mangaID int64, categoryIDs []int64) error

	// Saved searches and feed
	ListSavedSearches(ctx context.Context) ([]*domain.SavedSearch, error)
	InsertSavedSearch(ctx context.Context, s *domain.SavedSearch) error
	ListFeedSavedSearches(ctx context.Context) ([]*domain.FeedSavedSearch, error)
	InsertFeedSavedSearch(ctx context.Context, f *domain.FeedSavedSearch) error

	// History
	GetHistoryByChapterID(ctx context.Context, chapterID int64) (*domain.History, error)
	ListHistoryByMangaID(ctx context.Context, mangaID int64) ([]*domain.History, error)
	UpsertHistory(ctx context.Context, h *domain.History) error

	// Tracks
	GetTracksByMangaID(ctx context.Context, mangaID int64) ([]*domain.Track, error)
	InsertTrack(ctx context.Context, t *domain.Track) error
	UpdateTrack(ctx context.Context, t *domain.Track) error

	// Merged references
	GetMergedReference(ctx context.Context, mergeURL, mangaURL string) (*domain.MergedMangaReference, error)
	GetMergedReferencesByMergeID(ctx context.Context, mergeID int64) ([]*domain.MergedMangaReference, error)
	InsertMergedReference(ctx context.Context, r *domain.MergedMangaReference) error

	// Flat metadata
	GetFlatMetadata(ctx context.Context, mangaID int64) (*domain.FlatMetadata, error)
	InsertFlatMetadata(ctx context.Context, f *domain.FlatMetadata) error

	// WithTx runs fn against a Library bound to one transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	// Calling WithTx on a transaction-bound Library reuses that transaction.
	WithTx(ctx context.Context, fn func(tx Library) error) error
}

// Store is a Library that owns its underlying resources.
type Store interface {
	Library
	Close() error
}
