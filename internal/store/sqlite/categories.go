package sqlite

import (
	"context"
	"fmt"

	"github.com/shelfsy/shelfsy-server/internal/domain"
	"github.com/shelfsy/shelfsy-server/internal/normalize"
	"github.com/shelfsy/shelfsy-server/internal/store"
)

// ListCategories returns all categories in display order.
func (s *Store) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, name, sort_order, flags FROM categories ORDER BY sort_order, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Order, &c.Flags); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// InsertCategory inserts c and sets its ID.
// Returns store.ErrAlreadyExists if a category with the same normalized name exists.
func (s *Store) InsertCategory(ctx context.Context, c *domain.Category) error {
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO categories (name, name_key, sort_order, flags) VALUES (?, ?, ?, ?)`,
		c.Name, normalize.Name(c.Name), c.Order, c.Flags)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrAlreadyExists
		}
		return err
	}
	c.ID, err = res.LastInsertId()
	return err
}

// GetMangaCategoryIDs returns the ids of the categories a manga belongs to.
func (s *Store) GetMangaCategoryIDs(ctx context.Context, mangaID int64) ([]int64, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT category_id FROM manga_categories WHERE manga_id = ? ORDER BY category_id`, mangaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetMangaCategories replaces a manga's category membership.
func (s *Store) SetMangaCategories(ctx context.Context, mangaID int64, categoryIDs []int64) error {
	return s.inTx(ctx, func(q querier) error {
		if _, err := q.ExecContext(ctx, `DELETE FROM manga_categories WHERE manga_id = ?`, mangaID); err != nil {
			return fmt.Errorf("clear categories: %w", err)
		}
		for _, id := range categoryIDs {
			if _, err := q.ExecContext(ctx,
				`INSERT OR IGNORE INTO manga_categories (manga_id, category_id) VALUES (?, ?)`,
				mangaID, id); err != nil {
				return fmt.Errorf("add category %d: %w", id, err)
			}
		}
		return nil
	})
}
