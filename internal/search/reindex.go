package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shelfsy/shelfsy-server/internal/domain"
	"github.com/shelfsy/shelfsy-server/internal/store"
)

// CustomInfoGetter looks up user overrides for a manga.
type CustomInfoGetter interface {
	Get(ctx context.Context, mangaID int64) (*domain.CustomMangaInfo, error)
}

// Reindexer rebuilds the index from the library store.
type Reindexer struct {
	index      *SearchIndex
	library    store.Library
	customInfo CustomInfoGetter
	logger     *slog.Logger
}

// NewReindexer creates a Reindexer. customInfo may be nil.
func NewReindexer(index *SearchIndex, library store.Library, customInfo CustomInfoGetter, logger *slog.Logger) *Reindexer {
	return &Reindexer{
		index:      index,
		library:    library,
		customInfo: customInfo,
		logger:     logger,
	}
}

// ReindexAll drops the index and indexes every manga in the library. It
// returns the number of documents written.
func (r *Reindexer) ReindexAll(ctx context.Context) (int, error) {
	mangas, err := r.library.ListMangas(ctx)
	if err != nil {
		return 0, fmt.Errorf("list manga: %w", err)
	}

	docs := make([]*MangaDocument, 0, len(mangas))
	for _, m := range mangas {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		im, err := r.indexedManga(ctx, m)
		if err != nil {
			return 0, err
		}
		docs = append(docs, NewMangaDocument(im))
	}

	if err := r.index.Rebuild(); err != nil {
		return 0, err
	}
	if err := r.index.IndexDocuments(docs); err != nil {
		return 0, err
	}

	r.logger.Info("search index rebuilt", "documents", len(docs))
	return len(docs), nil
}

// ReindexIfEmpty rebuilds the index when it has no documents but the
// library has manga. It reports whether a rebuild ran.
func (r *Reindexer) ReindexIfEmpty(ctx context.Context) (bool, error) {
	count, err := r.index.DocumentCount()
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	mangas, err := r.library.ListMangas(ctx)
	if err != nil || len(mangas) == 0 {
		return false, err
	}

	r.logger.Info("search index is empty but manga exist, reindexing", "manga_count", len(mangas))
	_, err = r.ReindexAll(ctx)
	return err == nil, err
}

// indexedManga applies custom info and gathers metadata tags and titles.
func (r *Reindexer) indexedManga(ctx context.Context, m *domain.Manga) (*store.IndexedManga, error) {
	shown := *m
	if r.customInfo != nil {
		info, err := r.customInfo.Get(ctx, m.ID)
		switch {
		case err == nil && info != nil:
			info.Apply(&shown)
		case err != nil && !errors.Is(err, store.ErrNotFound):
			return nil, fmt.Errorf("custom info for manga %d: %w", m.ID, err)
		}
	}

	im := &store.IndexedManga{Manga: &shown}
	meta, err := r.library.GetFlatMetadata(ctx, m.ID)
	switch {
	case err == nil:
		im.Tags = meta.TagStrings()
		for _, t := range meta.Titles {
			im.Titles = append(im.Titles, t.Title)
		}
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("flat metadata for manga %d: %w", m.ID, err)
	}
	return im, nil
}
