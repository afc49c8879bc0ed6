package backupimport

import (
	"context"

	"github.com/shelfsy/shelfsy-server/internal/backup/format"
	"github.com/shelfsy/shelfsy-server/internal/domain"
	"github.com/shelfsy/shelfsy-server/internal/normalize"
	"github.com/shelfsy/shelfsy-server/internal/store"
)

// restoreCategories inserts backup categories missing from the library and
// records the order to id mapping used for manga membership. New categories
// are appended after the live ones. An empty list is a no-op and does not
// advance progress.
func (r *Restorer) restoreCategories(ctx context.Context, run *Run, categories []format.Category) error {
	if len(categories) == 0 {
		return nil
	}

	ctx = context.WithoutCancel(ctx)
	ids := make(map[int64]int64, len(categories))
	err := r.store.WithTx(ctx, func(tx store.Library) error {
		live, err := tx.ListCategories(ctx)
		if err != nil {
			return err
		}

		byName := make(map[string]int64, len(live))
		var nextOrder int64
		for _, c := range live {
			byName[normalize.Name(c.Name)] = c.ID
			nextOrder = max(nextOrder, c.Order+1)
		}

		for _, c := range categories {
			key := normalize.Name(c.Name)
			id, ok := byName[key]
			if !ok {
				dc := c.ToDomain()
				dc.Order = nextOrder
				if err := tx.InsertCategory(ctx, &dc); err != nil {
					return err
				}
				nextOrder++
				id = dc.ID
				byName[key] = id
			}
			ids[c.Order] = id
		}
		return nil
	})
	if err != nil {
		return err
	}

	run.categoryIDs = ids
	run.tick(TitleCategories)
	return nil
}

// restoreSavedSearches inserts saved searches and feed entries that have no
// identical live counterpart. Saved searches and feeds share one progress
// slot, taken only when either list is non-empty.
func (r *Restorer) restoreSavedSearches(ctx context.Context, run *Run, searches []format.SavedSearch, feeds []format.Feed) error {
	if len(searches) == 0 && len(feeds) == 0 {
		return nil
	}

	ctx = context.WithoutCancel(ctx)
	err := r.store.WithTx(ctx, func(tx store.Library) error {
		live, err := tx.ListSavedSearches(ctx)
		if err != nil {
			return err
		}

		// ensure returns the id of the live saved search matching s,
		// inserting it when absent.
		ensure := func(s format.SavedSearch) (int64, error) {
			ds := s.ToDomain()
			for _, l := range live {
				if l.SameAs(&ds) {
					return l.ID, nil
				}
			}
			if err := tx.InsertSavedSearch(ctx, &ds); err != nil {
				return 0, err
			}
			live = append(live, &ds)
			return ds.ID, nil
		}

		for _, s := range searches {
			if _, err := ensure(s); err != nil {
				return err
			}
		}

		if len(feeds) == 0 {
			return nil
		}
		liveFeeds, err := tx.ListFeedSavedSearches(ctx)
		if err != nil {
			return err
		}
		for _, f := range feeds {
			feed := &domain.FeedSavedSearch{Source: f.Source, Global: f.Global}
			if f.SavedSearch != nil {
				id, err := ensure(*f.SavedSearch)
				if err != nil {
					return err
				}
				feed.SavedSearchID = &id
			}
			if containsFeed(liveFeeds, feed) {
				continue
			}
			if err := tx.InsertFeedSavedSearch(ctx, feed); err != nil {
				return err
			}
			liveFeeds = append(liveFeeds, feed)
		}
		return nil
	})
	if err != nil {
		return err
	}

	run.tick(TitleSavedSearches)
	return nil
}

func containsFeed(feeds []*domain.FeedSavedSearch, f *domain.FeedSavedSearch) bool {
	for _, l := range feeds {
		if l.SameAs(f) {
			return true
		}
	}
	return false
}
