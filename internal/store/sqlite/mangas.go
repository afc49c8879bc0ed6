package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shelfsy/shelfsy-server/internal/domain"
	"github.com/shelfsy/shelfsy-server/internal/store"
)

// mangaColumns is the ordered list of columns selected in manga queries.
// Must match the scan order in scanManga.
const mangaColumns = `id, source, url, title, artist, author, description, genre, status,
	thumbnail_url, favorite, initialized, last_update, next_update, fetch_interval,
	viewer_flags, chapter_flags, cover_last_modified, date_added, update_strategy,
	filtered_scanlators`

func scanManga(scanner interface{ Scan(dest ...any) error }) (*domain.Manga, error) {
	var m domain.Manga

	var (
		artist, author, description, thumbnail sql.NullString
		genre, scanlators                      sql.NullString
		lastUpdate, nextUpdate                 sql.NullString
		coverModified, dateAdded               sql.NullString
		favorite, initialized                  int
	)

	err := scanner.Scan(
		&m.ID,
		&m.Source,
		&m.URL,
		&m.Title,
		&artist,
		&author,
		&description,
		&genre,
		&m.Status,
		&thumbnail,
		&favorite,
		&initialized,
		&lastUpdate,
		&nextUpdate,
		&m.FetchInterval,
		&m.ViewerFlags,
		&m.ChapterFlags,
		&coverModified,
		&dateAdded,
		&m.UpdateStrategy,
		&scanlators,
	)
	if err != nil {
		return nil, err
	}

	m.Artist = artist.String
	m.Author = author.String
	m.Description = description.String
	m.ThumbnailURL = thumbnail.String
	m.Favorite = favorite != 0
	m.Initialized = initialized != 0

	if m.Genre, err = decodeStrings(genre); err != nil {
		return nil, fmt.Errorf("decode genre: %w", err)
	}
	if m.FilteredScanlators, err = decodeStrings(scanlators); err != nil {
		return nil, fmt.Errorf("decode filtered scanlators: %w", err)
	}

	for _, f := range []struct {
		dst *time.Time
		src sql.NullString
	}{
		{&m.LastUpdate, lastUpdate},
		{&m.NextUpdate, nextUpdate},
		{&m.CoverLastModified, coverModified},
		{&m.DateAdded, dateAdded},
	} {
		if *f.dst, err = parseNullTime(f.src); err != nil {
			return nil, err
		}
	}

	return &m, nil
}

func mangaArgs(m *domain.Manga) ([]any, error) {
	genre, err := encodeStrings(m.Genre)
	if err != nil {
		return nil, fmt.Errorf("encode genre: %w", err)
	}
	scanlators, err := encodeStrings(m.FilteredScanlators)
	if err != nil {
		return nil, fmt.Errorf("encode filtered scanlators: %w", err)
	}
	return []any{
		m.Source,
		m.URL,
		m.Title,
		nullString(m.Artist),
		nullString(m.Author),
		nullString(m.Description),
		genre,
		m.Status,
		nullString(m.ThumbnailURL),
		boolToInt(m.Favorite),
		boolToInt(m.Initialized),
		nullTime(m.LastUpdate),
		nullTime(m.NextUpdate),
		m.FetchInterval,
		m.ViewerFlags,
		m.ChapterFlags,
		nullTime(m.CoverLastModified),
		nullTime(m.DateAdded),
		int(m.UpdateStrategy),
		scanlators,
	}, nil
}

// GetManga retrieves a manga by id.
// Returns store.ErrNotFound if it does not exist.
func (s *Store) GetManga(ctx context.Context, id int64) (*domain.Manga, error) {
	m, err := scanManga(s.q.QueryRowContext(ctx,
		`SELECT `+mangaColumns+` FROM mangas WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return m, err
}

// GetMangaBySourceURL retrieves a manga by its identity key.
// Returns store.ErrNotFound if it does not exist.
func (s *Store) GetMangaBySourceURL(ctx context.Context, source int64, url string) (*domain.Manga, error) {
	m, err := scanManga(s.q.QueryRowContext(ctx,
		`SELECT `+mangaColumns+` FROM mangas WHERE source = ? AND url = ?`, source, url))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return m, err
}

// ListMangas returns every manga ordered by id.
func (s *Store) ListMangas(ctx context.Context) ([]*domain.Manga, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+mangaColumns+` FROM mangas ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Manga
	for rows.Next() {
		m, err := scanManga(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// InsertManga inserts m and sets its ID.
// Returns store.ErrAlreadyExists if (source, url) is taken.
func (s *Store) InsertManga(ctx context.Context, m *domain.Manga) error {
	args, err := mangaArgs(m)
	if err != nil {
		return err
	}
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO mangas (
			source, url, title, artist, author, description, genre, status,
			thumbnail_url, favorite, initialized, last_update, next_update, fetch_interval,
			viewer_flags, chapter_flags, cover_last_modified, date_added, update_strategy,
			filtered_scanlators
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		args...,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrAlreadyExists
		}
		return err
	}
	m.ID, err = res.LastInsertId()
	return err
}

// UpdateManga overwrites every column of the row with id m.ID.
// Returns store.ErrNotFound if the row does not exist.
func (s *Store) UpdateManga(ctx context.Context, m *domain.Manga) error {
	args, err := mangaArgs(m)
	if err != nil {
		return err
	}
	res, err := s.q.ExecContext(ctx, `
		UPDATE mangas SET
			source = ?, url = ?, title = ?, artist = ?, author = ?, description = ?,
			genre = ?, status = ?, thumbnail_url = ?, favorite = ?, initialized = ?,
			last_update = ?, next_update = ?, fetch_interval = ?, viewer_flags = ?,
			chapter_flags = ?, cover_last_modified = ?, date_added = ?,
			update_strategy = ?, filtered_scanlators = ?
		WHERE id = ?`,
		append(args, m.ID)...,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrAlreadyExists
		}
		return err
	}
	return requireAffected(res)
}

// UpdateFetchInterval persists a manga's recomputed update schedule.
func (s *Store) UpdateFetchInterval(ctx context.Context, mangaID int64, next time.Time, interval int) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE mangas SET next_update = ?, fetch_interval = ? WHERE id = ?`,
		nullTime(next), interval, mangaID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
