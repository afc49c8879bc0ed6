package sqlite

import (
	"context"
	"database/sql"

	"github.com/shelfsy/shelfsy-server/internal/domain"
)

// ListSavedSearches returns all saved searches ordered by id.
func (s *Store) ListSavedSearches(ctx context.Context) ([]*domain.SavedSearch, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, source, name, query, filters_json FROM saved_searches ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.SavedSearch
	for rows.Next() {
		var (
			ss             domain.SavedSearch
			query, filters sql.NullString
		)
		if err := rows.Scan(&ss.ID, &ss.Source, &ss.Name, &query, &filters); err != nil {
			return nil, err
		}
		ss.Query = query.String
		ss.FiltersJSON = filters.String
		out = append(out, &ss)
	}
	return out, rows.Err()
}

// InsertSavedSearch inserts ss and sets its ID.
func (s *Store) InsertSavedSearch(ctx context.Context, ss *domain.SavedSearch) error {
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO saved_searches (source, name, query, filters_json) VALUES (?, ?, ?, ?)`,
		ss.Source, ss.Name, nullString(ss.Query), nullString(ss.FiltersJSON))
	if err != nil {
		return err
	}
	ss.ID, err = res.LastInsertId()
	return err
}

// ListFeedSavedSearches returns all feed entries ordered by id.
func (s *Store) ListFeedSavedSearches(ctx context.Context) ([]*domain.FeedSavedSearch, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, source, saved_search_id, global FROM feed_saved_searches ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.FeedSavedSearch
	for rows.Next() {
		var (
			f       domain.FeedSavedSearch
			savedID sql.NullInt64
			global  int
		)
		if err := rows.Scan(&f.ID, &f.Source, &savedID, &global); err != nil {
			return nil, err
		}
		if savedID.Valid {
			f.SavedSearchID = &savedID.Int64
		}
		f.Global = global != 0
		out = append(out, &f)
	}
	return out, rows.Err()
}

// InsertFeedSavedSearch inserts f and sets its ID.
func (s *Store) InsertFeedSavedSearch(ctx context.Context, f *domain.FeedSavedSearch) error {
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO feed_saved_searches (source, saved_search_id, global) VALUES (?, ?, ?)`,
		f.Source, nullableInt64(f.SavedSearchID), boolToInt(f.Global))
	if err != nil {
		return err
	}
	f.ID, err = res.LastInsertId()
	return err
}
