package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shelfsy/shelfsy-server/internal/domain"
	"github.com/shelfsy/shelfsy-server/internal/store"
)

// GetFlatMetadata returns a manga's metadata with its tags and titles.
// Returns store.ErrNotFound if the manga has no metadata.
func (s *Store) GetFlatMetadata(ctx context.Context, mangaID int64) (*domain.FlatMetadata, error) {
	var (
		f                      domain.FlatMetadata
		uploader, indexedExtra sql.NullString
	)
	err := s.q.QueryRowContext(ctx, `
		SELECT manga_id, uploader, extra, indexed_extra, extra_version
		FROM search_metadata WHERE manga_id = ?`, mangaID,
	).Scan(&f.Metadata.MangaID, &uploader, &f.Metadata.Extra, &indexedExtra, &f.Metadata.ExtraVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	f.Metadata.Uploader = uploader.String
	f.Metadata.IndexedExtra = indexedExtra.String

	tagRows, err := s.q.QueryContext(ctx,
		`SELECT namespace, name, type FROM search_tags WHERE manga_id = ? ORDER BY id`, mangaID)
	if err != nil {
		return nil, err
	}
	defer tagRows.Close()
	for tagRows.Next() {
		var (
			tag       domain.SearchTag
			namespace sql.NullString
		)
		if err := tagRows.Scan(&namespace, &tag.Name, &tag.Type); err != nil {
			return nil, err
		}
		tag.Namespace = namespace.String
		f.Tags = append(f.Tags, tag)
	}
	if err := tagRows.Err(); err != nil {
		return nil, err
	}

	titleRows, err := s.q.QueryContext(ctx,
		`SELECT title, type FROM search_titles WHERE manga_id = ? ORDER BY id`, mangaID)
	if err != nil {
		return nil, err
	}
	defer titleRows.Close()
	for titleRows.Next() {
		var title domain.SearchTitle
		if err := titleRows.Scan(&title.Title, &title.Type); err != nil {
			return nil, err
		}
		f.Titles = append(f.Titles, title)
	}
	return &f, titleRows.Err()
}

// InsertFlatMetadata writes metadata, tags and titles for f.Metadata.MangaID.
// Returns store.ErrAlreadyExists if the manga already has metadata.
func (s *Store) InsertFlatMetadata(ctx context.Context, f *domain.FlatMetadata) error {
	mangaID := f.Metadata.MangaID
	return s.inTx(ctx, func(q querier) error {
		_, err := q.ExecContext(ctx, `
			INSERT INTO search_metadata (manga_id, uploader, extra, indexed_extra, extra_version)
			VALUES (?, ?, ?, ?, ?)`,
			mangaID,
			nullString(f.Metadata.Uploader),
			f.Metadata.Extra,
			nullString(f.Metadata.IndexedExtra),
			f.Metadata.ExtraVersion,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return store.ErrAlreadyExists
			}
			return fmt.Errorf("insert metadata: %w", err)
		}

		for _, tag := range f.Tags {
			if _, err := q.ExecContext(ctx,
				`INSERT INTO search_tags (manga_id, namespace, name, type) VALUES (?, ?, ?, ?)`,
				mangaID, nullString(tag.Namespace), tag.Name, tag.Type); err != nil {
				return fmt.Errorf("insert tag: %w", err)
			}
		}
		for _, title := range f.Titles {
			if _, err := q.ExecContext(ctx,
				`INSERT INTO search_titles (manga_id, title, type) VALUES (?, ?, ?)`,
				mangaID, title.Title, title.Type); err != nil {
				return fmt.Errorf("insert title: %w", err)
			}
		}
		return nil
	})
}
