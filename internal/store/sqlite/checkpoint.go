package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shelfsy/shelfsy-server/internal/store"
)

// GetLibraryCheckpoint returns the most recent library activity: a manga
// added or updated, or a chapter read. It returns the zero time for an
// empty library.
func (s *Store) GetLibraryCheckpoint(ctx context.Context) (time.Time, error) {
	var maxUpdated sql.NullString

	err := s.q.QueryRowContext(ctx, `
		SELECT MAX(ts) FROM (
			SELECT date_added AS ts FROM mangas
			UNION ALL
			SELECT last_update FROM mangas
			UNION ALL
			SELECT last_read FROM history
		) WHERE ts IS NOT NULL AND ts != ''`).Scan(&maxUpdated)
	if err != nil {
		return time.Time{}, fmt.Errorf("query library checkpoint: %w", err)
	}

	t, err := parseNullTime(maxUpdated)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse library checkpoint: %w", err)
	}
	return t, nil
}

// GetLibraryStats counts the library's contents.
func (s *Store) GetLibraryStats(ctx context.Context) (*store.LibraryStats, error) {
	var st store.LibraryStats
	err := s.q.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM mangas),
			(SELECT COUNT(*) FROM mangas WHERE favorite = 1),
			(SELECT COUNT(*) FROM chapters),
			(SELECT COUNT(*) FROM chapters WHERE read = 1),
			(SELECT COUNT(*) FROM categories),
			(SELECT COUNT(*) FROM tracks)`).Scan(
		&st.Manga,
		&st.Favorites,
		&st.Chapters,
		&st.ReadChapters,
		&st.Categories,
		&st.Tracks,
	)
	if err != nil {
		return nil, fmt.Errorf("query library stats: %w", err)
	}

	if st.Checkpoint, err = s.GetLibraryCheckpoint(ctx); err != nil {
		return nil, err
	}
	return &st, nil
}
