package sqlite

import (
	"context"
	"database/sql"

	"github.com/shelfsy/shelfsy-server/internal/domain"
	"github.com/shelfsy/shelfsy-server/internal/store"
)

const chapterColumns = `id, manga_id, url, name, scanlator, read, bookmark, last_page_read,
	chapter_number, source_order, date_fetch, date_upload`

func scanChapter(scanner interface{ Scan(dest ...any) error }) (domain.Chapter, error) {
	var c domain.Chapter
	var (
		scanlator             sql.NullString
		read, bookmark        int
		dateFetch, dateUpload sql.NullString
	)

	err := scanner.Scan(
		&c.ID,
		&c.MangaID,
		&c.URL,
		&c.Name,
		&scanlator,
		&read,
		&bookmark,
		&c.LastPageRead,
		&c.ChapterNumber,
		&c.SourceOrder,
		&dateFetch,
		&dateUpload,
	)
	if err != nil {
		return c, err
	}

	c.Scanlator = scanlator.String
	c.Read = read != 0
	c.Bookmark = bookmark != 0
	if c.DateFetch, err = parseNullTime(dateFetch); err != nil {
		return c, err
	}
	if c.DateUpload, err = parseNullTime(dateUpload); err != nil {
		return c, err
	}
	return c, nil
}

// GetChaptersByMangaID returns the chapters of a manga in source order.
func (s *Store) GetChaptersByMangaID(ctx context.Context, mangaID int64) ([]domain.Chapter, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+chapterColumns+` FROM chapters WHERE manga_id = ? ORDER BY source_order, id`, mangaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Chapter
	for rows.Next() {
		c, err := scanChapter(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// InsertChapters inserts all chapters atomically and sets their IDs.
// Returns store.ErrAlreadyExists if any (manga_id, url) is taken.
func (s *Store) InsertChapters(ctx context.Context, chapters []domain.Chapter) error {
	if len(chapters) == 0 {
		return nil
	}
	return s.inTx(ctx, func(q querier) error {
		for i := range chapters {
			c := &chapters[i]
			res, err := q.ExecContext(ctx, `
				INSERT INTO chapters (
					manga_id, url, name, scanlator, read, bookmark, last_page_read,
					chapter_number, source_order, date_fetch, date_upload
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				c.MangaID,
				c.URL,
				c.Name,
				nullString(c.Scanlator),
				boolToInt(c.Read),
				boolToInt(c.Bookmark),
				c.LastPageRead,
				c.ChapterNumber,
				c.SourceOrder,
				nullTime(c.DateFetch),
				nullTime(c.DateUpload),
			)
			if err != nil {
				if isUniqueViolation(err) {
					return store.ErrAlreadyExists
				}
				return err
			}
			if c.ID, err = res.LastInsertId(); err != nil {
				return err
			}
		}
		return nil
	})
}
