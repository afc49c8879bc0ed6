package search

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfsy/shelfsy-server/internal/custominfo"
	"github.com/shelfsy/shelfsy-server/internal/domain"
	"github.com/shelfsy/shelfsy-server/internal/store/sqlite"
)

func TestReindexer_ReindexIfEmpty(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := t.TempDir()

	lib, err := sqlite.Open(filepath.Join(dir, "library.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = lib.Close() })
	info, err := custominfo.Open(filepath.Join(dir, "custominfo"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = info.Close() })

	index := setupTestIndex(t)
	r := NewReindexer(index, lib, info, logger)

	// Nothing to do for an empty library.
	ran, err := r.ReindexIfEmpty(ctx)
	require.NoError(t, err)
	assert.False(t, ran)

	m := &domain.Manga{Source: 1, URL: "/b", Title: "Berserk"}
	require.NoError(t, lib.InsertManga(ctx, m))
	require.NoError(t, lib.InsertFlatMetadata(ctx, &domain.FlatMetadata{
		Metadata: domain.SearchMetadata{MangaID: m.ID},
		Titles:   []domain.SearchTitle{{Title: "Beruseruku"}},
	}))
	custom := "Berserk Deluxe"
	require.NoError(t, info.Save(ctx, &domain.CustomMangaInfo{MangaID: m.ID, Title: &custom}))

	ran, err = r.ReindexIfEmpty(ctx)
	require.NoError(t, err)
	assert.True(t, ran)

	params := DefaultSearchParams()
	params.Query = "beruseruku"
	res, err := index.Search(ctx, params)
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, m.ID, res.Hits[0].MangaID)
	assert.Equal(t, "Berserk Deluxe", res.Hits[0].Title)

	// A populated index is left alone.
	ran, err = r.ReindexIfEmpty(ctx)
	require.NoError(t, err)
	assert.False(t, ran)
}
