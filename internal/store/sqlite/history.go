package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shelfsy/shelfsy-server/internal/domain"
	"github.com/shelfsy/shelfsy-server/internal/store"
)

func scanHistory(scanner interface{ Scan(dest ...any) error }) (*domain.History, error) {
	var (
		h        domain.History
		lastRead sql.NullString
		timeRead int64
	)
	if err := scanner.Scan(&h.ID, &h.ChapterID, &lastRead, &timeRead); err != nil {
		return nil, err
	}
	var err error
	if h.LastRead, err = parseNullTime(lastRead); err != nil {
		return nil, err
	}
	h.TimeRead = time.Duration(timeRead) * time.Millisecond
	return &h, nil
}

// GetHistoryByChapterID returns the history row of a chapter.
// Returns store.ErrNotFound if the chapter was never read.
func (s *Store) GetHistoryByChapterID(ctx context.Context, chapterID int64) (*domain.History, error) {
	h, err := scanHistory(s.q.QueryRowContext(ctx,
		`SELECT id, chapter_id, last_read, time_read FROM history WHERE chapter_id = ?`, chapterID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return h, err
}

// ListHistoryByMangaID returns the history rows of all chapters of a manga.
func (s *Store) ListHistoryByMangaID(ctx context.Context, mangaID int64) ([]*domain.History, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT h.id, h.chapter_id, h.last_read, h.time_read
		FROM history h
		JOIN chapters c ON c.id = h.chapter_id
		WHERE c.manga_id = ?
		ORDER BY h.id`, mangaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.History
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// UpsertHistory writes the history row of h.ChapterID, replacing any existing
// values, and sets h.ID.
func (s *Store) UpsertHistory(ctx context.Context, h *domain.History) error {
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO history (chapter_id, last_read, time_read) VALUES (?, ?, ?)
		ON CONFLICT (chapter_id) DO UPDATE SET
			last_read = excluded.last_read,
			time_read = excluded.time_read
		RETURNING id`,
		h.ChapterID, nullTime(h.LastRead), h.TimeRead.Milliseconds(),
	).Scan(&h.ID)
	return err
}
