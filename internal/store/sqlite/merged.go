package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shelfsy/shelfsy-server/internal/domain"
	"github.com/shelfsy/shelfsy-server/internal/store"
)

const mergedColumns = `id, is_info_manga, get_chapter_updates, chapter_sort_mode, chapter_priority,
	download_chapters, merge_id, merge_url, manga_id, manga_url, manga_source_id`

func scanMergedReference(scanner interface{ Scan(dest ...any) error }) (*domain.MergedMangaReference, error) {
	var (
		r                             domain.MergedMangaReference
		isInfo, getUpdates, downloads int
		mangaID                       sql.NullInt64
	)
	err := scanner.Scan(
		&r.ID,
		&isInfo,
		&getUpdates,
		&r.ChapterSortMode,
		&r.ChapterPriority,
		&downloads,
		&r.MergeID,
		&r.MergeURL,
		&mangaID,
		&r.MangaURL,
		&r.MangaSourceID,
	)
	if err != nil {
		return nil, err
	}
	r.IsInfoManga = isInfo != 0
	r.GetChapterUpdates = getUpdates != 0
	r.DownloadChapters = downloads != 0
	if mangaID.Valid {
		r.MangaID = &mangaID.Int64
	}
	return &r, nil
}

// GetMergedReference returns the reference joining mergeURL and mangaURL.
// Returns store.ErrNotFound if there is none.
func (s *Store) GetMergedReference(ctx context.Context, mergeURL, mangaURL string) (*domain.MergedMangaReference, error) {
	r, err := scanMergedReference(s.q.QueryRowContext(ctx,
		`SELECT `+mergedColumns+` FROM merged_references WHERE merge_url = ? AND manga_url = ?`,
		mergeURL, mangaURL))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return r, err
}

// GetMergedReferencesByMergeID returns the references of a merged manga by priority.
func (s *Store) GetMergedReferencesByMergeID(ctx context.Context, mergeID int64) ([]*domain.MergedMangaReference, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+mergedColumns+` FROM merged_references WHERE merge_id = ? ORDER BY chapter_priority, id`,
		mergeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.MergedMangaReference
	for rows.Next() {
		r, err := scanMergedReference(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// InsertMergedReference inserts r and sets its ID.
// Returns store.ErrAlreadyExists if (merge_url, manga_url) is taken.
func (s *Store) InsertMergedReference(ctx context.Context, r *domain.MergedMangaReference) error {
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO merged_references (
			is_info_manga, get_chapter_updates, chapter_sort_mode, chapter_priority,
			download_chapters, merge_id, merge_url, manga_id, manga_url, manga_source_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		boolToInt(r.IsInfoManga),
		boolToInt(r.GetChapterUpdates),
		r.ChapterSortMode,
		r.ChapterPriority,
		boolToInt(r.DownloadChapters),
		r.MergeID,
		r.MergeURL,
		nullableInt64(r.MangaID),
		r.MangaURL,
		r.MangaSourceID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrAlreadyExists
		}
		return err
	}
	r.ID, err = res.LastInsertId()
	return err
}
