// Package export writes the live library to a backup archive.
package export

import (
	"context"
	"errors"
	"fmt"

	"github.com/shelfsy/shelfsy-server/internal/backup/format"
	"github.com/shelfsy/shelfsy-server/internal/domain"
	"github.com/shelfsy/shelfsy-server/internal/store"
)

// lookups holds the exported lookup tables and the category id to order
// mapping manga membership is written with.
type lookups struct {
	format.Backup
	categoryOrders map[int64]int64
}

func (e *Exporter) collectLookups(ctx context.Context) (*lookups, error) {
	out := &lookups{categoryOrders: make(map[int64]int64)}

	categories, err := e.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("categories: %w", err)
	}
	for _, c := range categories {
		out.Categories = append(out.Categories, format.CategoryFromDomain(c))
		out.categoryOrders[c.ID] = c.Order
	}

	searches, err := e.store.ListSavedSearches(ctx)
	if err != nil {
		return nil, fmt.Errorf("saved searches: %w", err)
	}
	byID := make(map[int64]*domain.SavedSearch, len(searches))
	for _, s := range searches {
		out.SavedSearches = append(out.SavedSearches, format.SavedSearchFromDomain(s))
		byID[s.ID] = s
	}

	feeds, err := e.store.ListFeedSavedSearches(ctx)
	if err != nil {
		return nil, fmt.Errorf("feeds: %w", err)
	}
	for _, f := range feeds {
		feed := format.Feed{Source: f.Source, Global: f.Global}
		if f.SavedSearchID != nil {
			s, ok := byID[*f.SavedSearchID]
			if !ok {
				continue
			}
			ss := format.SavedSearchFromDomain(s)
			feed.SavedSearch = &ss
		}
		out.Feeds = append(out.Feeds, feed)
	}
	return out, nil
}

// exportManga gathers m and everything attached to it.
func (e *Exporter) exportManga(ctx context.Context, m *domain.Manga, categoryOrders map[int64]int64) (*format.Manga, error) {
	bm := format.MangaFromDomain(m)

	chapters, err := e.store.GetChaptersByMangaID(ctx, m.ID)
	if err != nil {
		return nil, fmt.Errorf("chapters: %w", err)
	}
	chapterURLs := make(map[int64]string, len(chapters))
	for i := range chapters {
		bm.Chapters = append(bm.Chapters, format.ChapterFromDomain(&chapters[i]))
		chapterURLs[chapters[i].ID] = chapters[i].URL
	}

	categoryIDs, err := e.store.GetMangaCategoryIDs(ctx, m.ID)
	if err != nil {
		return nil, fmt.Errorf("categories: %w", err)
	}
	for _, id := range categoryIDs {
		if order, ok := categoryOrders[id]; ok {
			bm.Categories = append(bm.Categories, order)
		}
	}

	history, err := e.store.ListHistoryByMangaID(ctx, m.ID)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	for _, h := range history {
		if url, ok := chapterURLs[h.ChapterID]; ok {
			bm.History = append(bm.History, format.HistoryFromDomain(url, h))
		}
	}

	tracks, err := e.store.GetTracksByMangaID(ctx, m.ID)
	if err != nil {
		return nil, fmt.Errorf("tracking: %w", err)
	}
	for _, t := range tracks {
		bm.Tracking = append(bm.Tracking, format.TrackFromDomain(t))
	}

	if m.Kind() == domain.SourceKindMerged {
		refs, err := e.store.GetMergedReferencesByMergeID(ctx, m.ID)
		if err != nil {
			return nil, fmt.Errorf("merged references: %w", err)
		}
		for _, r := range refs {
			bm.MergedReferences = append(bm.MergedReferences, format.MergedReferenceFromDomain(r))
		}
	}

	meta, err := e.store.GetFlatMetadata(ctx, m.ID)
	switch {
	case err == nil:
		bm.FlatMetadata = format.FlatMetadataFromDomain(meta)
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("flat metadata: %w", err)
	}

	if e.customInfo != nil {
		info, err := e.customInfo.Get(ctx, m.ID)
		switch {
		case err == nil:
			bm.CustomInfo = format.CustomInfoFromDomain(info)
		case !errors.Is(err, store.ErrNotFound):
			return nil, fmt.Errorf("custom info: %w", err)
		}
	}
	return &bm, nil
}
