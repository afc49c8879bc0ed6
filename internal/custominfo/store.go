// Package custominfo persists user overrides of manga details in Badger,
// outside the relational library store.
package custominfo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/shelfsy/shelfsy-server/internal/domain"
	domainerrors "github.com/shelfsy/shelfsy-server/internal/errors"
	"github.com/shelfsy/shelfsy-server/internal/store"
)

const keyPrefix = "custominfo:"

// Store wraps a Badger database holding one CustomMangaInfo per manga id.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

// Open opens (or creates) the Badger database at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Disable Badger's internal logging
	opts.SyncWrites = true       // Overrides are small and rare; keep them durable
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func key(mangaID int64) []byte {
	// Zero padded so iteration order follows manga id.
	return fmt.Appendf(nil, "%s%020d", keyPrefix, mangaID)
}

// Get returns the overrides of a manga.
// Returns store.ErrNotFound if none were saved.
func (s *Store) Get(_ context.Context, mangaID int64) (*domain.CustomMangaInfo, error) {
	var info domain.CustomMangaInfo
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(mangaID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &info)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get custom info %d: %w", mangaID, err)
	}
	return &info, nil
}

// Save stores info under info.MangaID, replacing earlier overrides.
// Saving an empty override removes the entry.
func (s *Store) Save(ctx context.Context, info *domain.CustomMangaInfo) error {
	if info.MangaID == 0 {
		return domainerrors.Validation("custom info without manga id")
	}
	if info.IsEmpty() {
		return s.Delete(ctx, info.MangaID)
	}

	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal custom info: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(info.MangaID), data)
	})
}

// Delete removes the overrides of a manga. Deleting a missing entry is not an error.
func (s *Store) Delete(_ context.Context, mangaID int64) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(mangaID))
	})
}

// All returns every saved override ordered by manga id.
func (s *Store) All(ctx context.Context) ([]domain.CustomMangaInfo, error) {
	var out []domain.CustomMangaInfo
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			var info domain.CustomMangaInfo
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &info)
			}); err != nil {
				s.logger.Warn("skipping unreadable custom info",
					"key", string(item.Key()),
					"error", err,
				)
				continue
			}
			out = append(out, info)
		}
		return nil
	})
	return out, err
}
