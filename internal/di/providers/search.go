package providers

import (
	"context"
	"errors"

	"github.com/samber/do/v2"

	"github.com/shelfsy/shelfsy-server/internal/config"
	"github.com/shelfsy/shelfsy-server/internal/logger"
	"github.com/shelfsy/shelfsy-server/internal/search"
)

// SearchIndexHandle wraps the search index with shutdown capability.
type SearchIndexHandle struct {
	*search.SearchIndex
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the Bleve search index.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	index, err := search.NewSearchIndex(search.Options{
		DataPath: cfg.Storage.SearchIndexDir,
		Logger:   log.Component("search"),
	})
	if err != nil {
		return nil, err
	}

	docCount, _ := index.DocumentCount()
	log.Info("Search index initialized", "documents", docCount)

	return &SearchIndexHandle{SearchIndex: index}, nil
}

// ProvideReindexer provides the search reindexer.
func ProvideReindexer(i do.Injector) (*search.Reindexer, error) {
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	infoHandle := do.MustInvoke[*CustomInfoHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return search.NewReindexer(indexHandle.SearchIndex, storeHandle.Store, infoHandle.Store, log.Component("reindex")), nil
}

// StartupReindexHandle runs the initial index rebuild. Shutdown stops it
// before the index and store close underneath it.
type StartupReindexHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Shutdown implements do.Shutdownable.
func (h *StartupReindexHandle) Shutdown() error {
	h.cancel()
	<-h.done
	return nil
}

// ProvideStartupReindex rebuilds an empty index in the background when the
// library already holds manga, e.g. after the index dir was deleted.
func ProvideStartupReindex(i do.Injector) (*StartupReindexHandle, error) {
	reindexer := do.MustInvoke[*search.Reindexer](i)
	log := do.MustInvoke[*logger.Logger](i)

	ctx, cancel := context.WithCancel(context.Background())
	h := &StartupReindexHandle{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		rebuilt, err := reindexer.ReindexIfEmpty(ctx)
		switch {
		case errors.Is(err, context.Canceled):
			log.Info("Startup reindex interrupted")
		case err != nil:
			log.Error("Startup reindex failed", "error", err)
		case rebuilt:
			log.Info("Search index rebuilt from library")
		}
	}()
	return h, nil
}
