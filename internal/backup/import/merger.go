package backupimport

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/shelfsy/shelfsy-server/internal/backup/format"
	"github.com/shelfsy/shelfsy-server/internal/domain"
	"github.com/shelfsy/shelfsy-server/internal/store"
)

// mergeEntities attaches the backup payload of bm to the resolved manga m.
// The returned errors are secondary: they are reported but do not roll the
// manga back.
func (r *Restorer) mergeEntities(ctx context.Context, tx store.Library, run *Run, m *domain.Manga, bm *format.Manga) ([]error, error) {
	chapters, err := mergeChapters(ctx, tx, m.ID, bm.Chapters)
	if err != nil {
		return nil, fmt.Errorf("chapters: %w", err)
	}
	if err := mergeCategories(ctx, tx, run, m.ID, bm.Categories); err != nil {
		return nil, fmt.Errorf("categories: %w", err)
	}

	history := make([]format.History, 0, len(bm.BrokenHistory)+len(bm.History))
	history = append(history, bm.BrokenHistory...)
	history = append(history, bm.History...)
	if err := mergeHistory(ctx, tx, chapters, history); err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}

	if err := mergeTracks(ctx, tx, m.ID, bm.Tracking); err != nil {
		return nil, fmt.Errorf("tracking: %w", err)
	}
	secondary, err := r.mergeReferences(ctx, tx, run, m.ID, bm.MergedReferences)
	if err != nil {
		return nil, fmt.Errorf("merged references: %w", err)
	}
	if err := mergeFlatMetadata(ctx, tx, m.ID, bm.FlatMetadata); err != nil {
		return nil, fmt.Errorf("flat metadata: %w", err)
	}
	if err := updateFetchInterval(ctx, tx, run, m, chapters); err != nil {
		return nil, fmt.Errorf("fetch interval: %w", err)
	}
	return secondary, nil
}

// mergeChapters inserts chapters whose url is new for the manga and returns
// the full chapter list. Existing chapters are left as they are.
func mergeChapters(ctx context.Context, tx store.Library, mangaID int64, backup []format.Chapter) ([]domain.Chapter, error) {
	existing, err := tx.GetChaptersByMangaID(ctx, mangaID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(existing)+len(backup))
	for _, c := range existing {
		seen[c.URL] = true
	}

	var fresh []domain.Chapter
	for i := range backup {
		if seen[backup[i].URL] {
			continue
		}
		seen[backup[i].URL] = true
		fresh = append(fresh, backup[i].ToDomain(mangaID))
	}
	if err := tx.InsertChapters(ctx, fresh); err != nil {
		return nil, err
	}
	return append(existing, fresh...), nil
}

// mergeCategories maps backup category orders to live ids and replaces the
// manga's membership. Orders with no backup category are ignored; an empty
// result leaves membership untouched.
func mergeCategories(ctx context.Context, tx store.Library, run *Run, mangaID int64, orders []int64) error {
	var ids []int64
	for _, order := range orders {
		id, ok := run.categoryIDs[order]
		if !ok || slices.Contains(ids, id) {
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil
	}
	return tx.SetMangaCategories(ctx, mangaID, ids)
}

// mergeHistory writes read history keyed by chapter url. Entries for
// chapters the manga does not have are skipped. Existing rows keep the
// later read time and the longer duration.
func mergeHistory(ctx context.Context, tx store.Library, chapters []domain.Chapter, history []format.History) error {
	if len(history) == 0 {
		return nil
	}
	byURL := make(map[string]int64, len(chapters))
	for _, c := range chapters {
		byURL[c.URL] = c.ID
	}

	for i := range history {
		chapterID, ok := byURL[history[i].URL]
		if !ok {
			continue
		}
		lastRead, timeRead := history[i].ReadTime()

		h, err := tx.GetHistoryByChapterID(ctx, chapterID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			h = &domain.History{ChapterID: chapterID, LastRead: lastRead, TimeRead: timeRead}
		case err != nil:
			return err
		default:
			h.MergeMax(lastRead, timeRead)
		}
		if err := tx.UpsertHistory(ctx, h); err != nil {
			return err
		}
	}
	return nil
}

// mergeTracks upserts tracker state by sync id. Existing rows take the
// backup's remote and library ids and the furthest chapter read.
func mergeTracks(ctx context.Context, tx store.Library, mangaID int64, tracks []format.Track) error {
	if len(tracks) == 0 {
		return nil
	}
	existing, err := tx.GetTracksByMangaID(ctx, mangaID)
	if err != nil {
		return err
	}
	bySync := make(map[int64]*domain.Track, len(existing))
	for _, t := range existing {
		bySync[t.SyncID] = t
	}

	for i := range tracks {
		bt := &tracks[i]
		if live, ok := bySync[bt.SyncID]; ok {
			live.RemoteID = bt.MediaID
			live.LibraryID = bt.LibraryID
			live.LastChapterRead = max(live.LastChapterRead, bt.LastChapterRead)
			if err := tx.UpdateTrack(ctx, live); err != nil {
				return err
			}
			continue
		}
		t := bt.ToDomain(mangaID)
		if err := tx.InsertTrack(ctx, &t); err != nil {
			return err
		}
		bySync[t.SyncID] = &t
	}
	return nil
}

// mergeReferences inserts merged-source links not yet in the library. A link
// whose target manga is missing is skipped and reported as a secondary error.
func (r *Restorer) mergeReferences(ctx context.Context, tx store.Library, run *Run, mergeID int64, refs []format.MergedReference) ([]error, error) {
	var secondary []error
	for i := range refs {
		ref := &refs[i]

		_, err := tx.GetMergedReference(ctx, ref.MergeURL, ref.MangaURL)
		if err == nil {
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}

		target, err := tx.GetMangaBySourceURL(ctx, r.remap(ref.MangaSourceID), ref.MangaURL)
		if errors.Is(err, store.ErrNotFound) {
			secondary = append(secondary, fmt.Errorf("merged reference %s [%s] skipped: manga not in library",
				ref.MangaURL, run.sourceLabel(ref.MangaSourceID)))
			continue
		}
		if err != nil {
			return nil, err
		}

		dr := ref.ToDomain(mergeID, &target.ID)
		if err := tx.InsertMergedReference(ctx, &dr); err != nil {
			return nil, err
		}
	}
	return secondary, nil
}

// mergeFlatMetadata inserts search metadata when the manga has none yet.
func mergeFlatMetadata(ctx context.Context, tx store.Library, mangaID int64, fm *format.FlatMetadata) error {
	if fm == nil {
		return nil
	}
	_, err := tx.GetFlatMetadata(ctx, mangaID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	meta := fm.ToDomain(mangaID)
	return tx.InsertFlatMetadata(ctx, &meta)
}

// updateFetchInterval recomputes the update schedule with the run's clock
// and window.
func updateFetchInterval(ctx context.Context, tx store.Library, run *Run, m *domain.Manga, chapters []domain.Chapter) error {
	next, interval, changed := domain.UpdateFetchInterval(m, chapters, run.now, run.fetchRange)
	if !changed {
		return nil
	}
	if err := tx.UpdateFetchInterval(ctx, m.ID, next, interval); err != nil {
		return err
	}
	m.NextUpdate = next
	m.FetchInterval = interval
	return nil
}
