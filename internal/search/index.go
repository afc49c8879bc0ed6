package search

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/shelfsy/shelfsy-server/internal/store"
)

// SearchIndex wraps a Bleve index of library manga.
//
// Thread safety: All public methods are safe for concurrent use.
// The mutex protects against index corruption during rebuild operations.
type SearchIndex struct {
	index  bleve.Index
	path   string
	logger *slog.Logger
	mu     sync.RWMutex
}

var _ store.SearchIndexer = (*SearchIndex)(nil)

// Options configures the search index.
type Options struct {
	DataPath string       // Directory for index storage
	Logger   *slog.Logger // Logger for operations (uses stderr if nil)
}

// mappingVersion is incremented whenever the index mapping changes.
// A mismatch on startup triggers a rebuild.
const mappingVersion = "1"

// NewSearchIndex creates or opens the library index under opts.DataPath.
// An index that is unreadable or was built with another mapping version is
// removed and recreated empty; callers reindex from the store.
func NewSearchIndex(opts Options) (*SearchIndex, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	indexPath := filepath.Join(opts.DataPath, "library.bleve")
	versionPath := filepath.Join(opts.DataPath, "library.version")

	index, err := openExisting(indexPath, versionPath, logger)
	if err != nil {
		return nil, err
	}

	if index == nil {
		if err := os.RemoveAll(indexPath); err != nil {
			return nil, fmt.Errorf("remove old index: %w", err)
		}
		index, err = bleve.New(indexPath, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
		if writeErr := os.WriteFile(versionPath, []byte(mappingVersion), 0o644); writeErr != nil {
			logger.Warn("failed to write search version file", "error", writeErr)
		}
		logger.Info("created new search index", "path", indexPath, "mapping_version", mappingVersion)
	} else {
		logger.Info("opened existing search index", "path", indexPath)
	}

	return &SearchIndex{
		index:  index,
		path:   indexPath,
		logger: logger,
	}, nil
}

// openExisting returns the index at indexPath when it exists, matches the
// current mapping version and opens cleanly. A nil index means "recreate".
func openExisting(indexPath, versionPath string, logger *slog.Logger) (bleve.Index, error) {
	if _, err := os.Stat(indexPath); err != nil {
		return nil, nil
	}

	version, err := os.ReadFile(versionPath)
	switch {
	case err != nil:
		logger.Info("search index has no version file, will rebuild", "new_version", mappingVersion)
		return nil, nil
	case string(version) != mappingVersion:
		logger.Info("search index mapping version changed, will rebuild",
			"old_version", string(version),
			"new_version", mappingVersion,
		)
		return nil, nil
	}

	index, err := bleve.Open(indexPath)
	if err != nil {
		logger.Warn("failed to open existing index, will recreate", "path", indexPath, "error", err)
		return nil, nil
	}
	return index, nil
}

// Close closes the index and releases resources.
func (s *SearchIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

// IndexManga adds or replaces the document of a manga.
func (s *SearchIndex) IndexManga(_ context.Context, im *store.IndexedManga) error {
	return s.IndexDocument(NewMangaDocument(im))
}

// DeleteManga removes a manga from the index.
func (s *SearchIndex) DeleteManga(_ context.Context, mangaID int64) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Delete(DocumentID(mangaID))
}

// IndexDocument indexes a single document.
func (s *SearchIndex) IndexDocument(doc *MangaDocument) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Index(doc.ID, doc.ToMap())
}

// IndexDocuments indexes documents in batches of 500.
func (s *SearchIndex) IndexDocuments(docs []*MangaDocument) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	const batchSize = 500

	for i := 0; i < len(docs); i += batchSize {
		end := min(i+batchSize, len(docs))

		batch := s.index.NewBatch()
		for _, doc := range docs[i:end] {
			if err := batch.Index(doc.ID, doc.ToMap()); err != nil {
				return fmt.Errorf("batch index %s: %w", doc.ID, err)
			}
		}
		if err := s.index.Batch(batch); err != nil {
			return fmt.Errorf("commit batch %d-%d: %w", i, end, err)
		}
	}

	return nil
}

// DocumentCount returns the total number of indexed documents.
func (s *SearchIndex) DocumentCount() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}

// Rebuild drops the index and creates an empty one with the current mapping.
// It blocks every other operation until done.
func (s *SearchIndex) Rebuild() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.index.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}
	if err := os.RemoveAll(s.path); err != nil {
		return fmt.Errorf("remove index: %w", err)
	}

	index, err := bleve.New(s.path, buildIndexMapping())
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}

	s.index = index
	s.logger.Info("rebuilt search index", "path", s.path)

	return nil
}
