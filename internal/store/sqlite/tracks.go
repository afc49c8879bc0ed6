package sqlite

import (
	"context"
	"database/sql"

	"github.com/shelfsy/shelfsy-server/internal/domain"
	"github.com/shelfsy/shelfsy-server/internal/store"
)

const trackColumns = `id, manga_id, sync_id, remote_id, library_id, title, last_chapter_read,
	total_chapters, status, score, tracking_url, start_date, finish_date`

func scanTrack(scanner interface{ Scan(dest ...any) error }) (*domain.Track, error) {
	var (
		t             domain.Track
		start, finish sql.NullString
	)
	err := scanner.Scan(
		&t.ID,
		&t.MangaID,
		&t.SyncID,
		&t.RemoteID,
		&t.LibraryID,
		&t.Title,
		&t.LastChapterRead,
		&t.TotalChapters,
		&t.Status,
		&t.Score,
		&t.TrackingURL,
		&start,
		&finish,
	)
	if err != nil {
		return nil, err
	}
	if t.StartDate, err = parseNullTime(start); err != nil {
		return nil, err
	}
	if t.FinishDate, err = parseNullTime(finish); err != nil {
		return nil, err
	}
	return &t, nil
}

// GetTracksByMangaID returns the tracks of a manga ordered by sync id.
func (s *Store) GetTracksByMangaID(ctx context.Context, mangaID int64) ([]*domain.Track, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+trackColumns+` FROM tracks WHERE manga_id = ? ORDER BY sync_id`, mangaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Track
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// InsertTrack inserts t and sets its ID.
// Returns store.ErrAlreadyExists if the manga is already tracked on t.SyncID.
func (s *Store) InsertTrack(ctx context.Context, t *domain.Track) error {
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO tracks (
			manga_id, sync_id, remote_id, library_id, title, last_chapter_read,
			total_chapters, status, score, tracking_url, start_date, finish_date
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.MangaID, t.SyncID, t.RemoteID, t.LibraryID, t.Title, t.LastChapterRead,
		t.TotalChapters, t.Status, t.Score, t.TrackingURL,
		nullTime(t.StartDate), nullTime(t.FinishDate),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrAlreadyExists
		}
		return err
	}
	t.ID, err = res.LastInsertId()
	return err
}

// UpdateTrack overwrites the row with id t.ID.
func (s *Store) UpdateTrack(ctx context.Context, t *domain.Track) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE tracks SET
			remote_id = ?, library_id = ?, title = ?, last_chapter_read = ?,
			total_chapters = ?, status = ?, score = ?, tracking_url = ?,
			start_date = ?, finish_date = ?
		WHERE id = ?`,
		t.RemoteID, t.LibraryID, t.Title, t.LastChapterRead,
		t.TotalChapters, t.Status, t.Score, t.TrackingURL,
		nullTime(t.StartDate), nullTime(t.FinishDate), t.ID,
	)
	if err != nil {
		return err
	}
	return requireAffected(res)
}
