package backupimport

import (
	"context"
	"errors"
	"fmt"

	"github.com/shelfsy/shelfsy-server/internal/backup/format"
	"github.com/shelfsy/shelfsy-server/internal/domain"
	"github.com/shelfsy/shelfsy-server/internal/store"
)

// resolveManga finds the live manga matching bm by (source, url), inserting
// it when absent and merging the backup fields onto it otherwise.
func (r *Restorer) resolveManga(ctx context.Context, tx store.Library, bm *format.Manga) (*domain.Manga, error) {
	m := bm.ToDomain()
	m.Source = r.remap(m.Source)

	live, err := tx.GetMangaBySourceURL(ctx, m.Source, m.URL)
	if errors.Is(err, store.ErrNotFound) {
		if err := tx.InsertManga(ctx, m); err != nil {
			return nil, fmt.Errorf("insert manga: %w", err)
		}
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("look up manga: %w", err)
	}

	m.AdoptLive(live)
	if err := tx.UpdateManga(ctx, m); err != nil {
		return nil, fmt.Errorf("update manga: %w", err)
	}
	return m, nil
}

// restoreManga resolves and merges one manga in a single transaction. The
// work runs detached from cancellation so a started manga always completes.
func (r *Restorer) restoreManga(ctx context.Context, run *Run, bm *format.Manga) {
	ctx = context.WithoutCancel(ctx)
	source := r.remap(bm.Source)

	var (
		manga     *domain.Manga
		secondary []error
	)
	err := r.store.WithTx(ctx, func(tx store.Library) error {
		m, err := r.resolveManga(ctx, tx, bm)
		if err != nil {
			return err
		}
		secondary, err = r.mergeEntities(ctx, tx, run, m, bm)
		if err != nil {
			return err
		}
		manga = m
		return nil
	})
	if err != nil {
		r.logger.Warn("manga restore failed",
			"title", bm.Title,
			"source", source,
			"url", bm.URL,
			"error", err,
		)
		run.recordError(bm.Title, source, err)
		return
	}

	run.restored++
	for _, e := range secondary {
		run.recordError(bm.Title, source, e)
	}

	info, err := r.restoreCustomInfo(ctx, manga.ID, bm.CustomInfo)
	if err != nil {
		run.recordError(bm.Title, source, err)
	}
	r.indexManga(ctx, manga, info)
}

// restoreCustomInfo saves the backup's overrides under the resolved id and
// returns the overrides now in effect for the manga.
func (r *Restorer) restoreCustomInfo(ctx context.Context, mangaID int64, ci *format.CustomInfo) (*domain.CustomMangaInfo, error) {
	if r.customInfo == nil {
		return nil, nil
	}
	if ci != nil {
		info := ci.ToDomain(mangaID)
		if !info.IsEmpty() {
			if err := r.customInfo.Save(ctx, &info); err != nil {
				return nil, fmt.Errorf("save custom info: %w", err)
			}
			return &info, nil
		}
	}

	info, err := r.customInfo.Get(ctx, mangaID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			r.logger.Warn("failed to read custom info", "manga_id", mangaID, "error", err)
		}
		return nil, nil
	}
	return info, nil
}

// indexManga refreshes the search document of a restored manga. Index
// failures are logged; the library row is already committed.
func (r *Restorer) indexManga(ctx context.Context, m *domain.Manga, info *domain.CustomMangaInfo) {
	shown := *m
	if info != nil {
		info.Apply(&shown)
	}

	doc := &store.IndexedManga{Manga: &shown}
	meta, err := r.store.GetFlatMetadata(ctx, m.ID)
	switch {
	case err == nil:
		doc.Tags = meta.TagStrings()
		for _, t := range meta.Titles {
			doc.Titles = append(doc.Titles, t.Title)
		}
	case !errors.Is(err, store.ErrNotFound):
		r.logger.Warn("failed to read flat metadata", "manga_id", m.ID, "error", err)
	}

	if err := r.index.IndexManga(ctx, doc); err != nil {
		r.logger.Warn("failed to index manga", "manga_id", m.ID, "error", err)
	}
}
