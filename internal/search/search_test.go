package search

import (
	"context"
	"testing"
	"time"

	"github.com/shelfsy/shelfsy-server/internal/domain"
	"github.com/shelfsy/shelfsy-server/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestIndex(t *testing.T) *SearchIndex {
	t.Helper()

	index, err := NewSearchIndex(Options{DataPath: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	return index
}

func indexed(m *domain.Manga, titles ...string) *store.IndexedManga {
	return &store.IndexedManga{Manga: m, Titles: titles}
}

func TestNewSearchIndex(t *testing.T) {
	index := setupTestIndex(t)

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestNewSearchIndex_ReopensExisting(t *testing.T) {
	dir := t.TempDir()

	index, err := NewSearchIndex(Options{DataPath: dir})
	require.NoError(t, err)
	require.NoError(t, index.IndexManga(context.Background(), indexed(&domain.Manga{ID: 1, Title: "Kept"})))
	require.NoError(t, index.Close())

	index, err = NewSearchIndex(Options{DataPath: dir})
	require.NoError(t, err)
	defer index.Close()

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestSearchIndex_IndexAndDeleteManga(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()

	require.NoError(t, index.IndexManga(ctx, indexed(&domain.Manga{ID: 7, Source: 1, Title: "Solo Leveling"})))
	// Reindexing replaces the document.
	require.NoError(t, index.IndexManga(ctx, indexed(&domain.Manga{ID: 7, Source: 1, Title: "Solo Leveling"})))

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)

	require.NoError(t, index.DeleteManga(ctx, 7))

	count, err = index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestSearchIndex_SearchByTitleAndAltTitle(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()

	require.NoError(t, index.IndexManga(ctx, indexed(&domain.Manga{ID: 1, Source: 10, Title: "Berserk", Author: "Kentaro Miura"})))
	require.NoError(t, index.IndexManga(ctx, indexed(&domain.Manga{ID: 2, Source: 10, Title: "Shingeki no Kyojin"}, "Attack on Titan")))

	params := DefaultSearchParams()
	params.Query = "berserk"
	res, err := index.Search(ctx, params)
	require.NoError(t, err)
	require.NotEmpty(t, res.Hits)
	assert.Equal(t, int64(1), res.Hits[0].MangaID)
	assert.Equal(t, "Berserk", res.Hits[0].Title)
	assert.Equal(t, int64(10), res.Hits[0].Source)

	params.Query = "titan"
	res, err = index.Search(ctx, params)
	require.NoError(t, err)
	require.NotEmpty(t, res.Hits)
	assert.Equal(t, int64(2), res.Hits[0].MangaID)
}

func TestSearchIndex_FilterByGenreAndSource(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()

	docs := []*MangaDocument{
		NewMangaDocument(indexed(&domain.Manga{ID: 1, Source: 1, Title: "A", Genre: []string{"Action", "Drama"}})),
		NewMangaDocument(indexed(&domain.Manga{ID: 2, Source: 2, Title: "B", Genre: []string{"Romance"}})),
		NewMangaDocument(indexed(&domain.Manga{ID: 3, Source: 2, Title: "C", Genre: []string{"action"}})),
	}
	require.NoError(t, index.IndexDocuments(docs))

	params := DefaultSearchParams()
	params.Genres = []string{"ACTION"}
	res, err := index.Search(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), res.Total)

	params.Source = 2
	res, err = index.Search(ctx, params)
	require.NoError(t, err)
	require.Equal(t, uint64(1), res.Total)
	assert.Equal(t, int64(3), res.Hits[0].MangaID)
}

func TestSearchIndex_Facets(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()

	for i, genre := range []string{"Action", "Action", "Comedy"} {
		m := &domain.Manga{ID: int64(i + 1), Title: "T", Genre: []string{genre}}
		require.NoError(t, index.IndexManga(ctx, indexed(m)))
	}

	res, err := index.Search(ctx, DefaultSearchParams())
	require.NoError(t, err)
	require.NotEmpty(t, res.Facets.Genres)
	assert.Equal(t, FacetCount{Value: "action", Count: 2}, res.Facets.Genres[0])
}

func TestSearchIndex_Rebuild(t *testing.T) {
	index := setupTestIndex(t)
	require.NoError(t, index.IndexManga(context.Background(), indexed(&domain.Manga{ID: 1, Title: "X"})))

	require.NoError(t, index.Rebuild())

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestNewMangaDocument(t *testing.T) {
	added := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	im := &store.IndexedManga{
		Manga: &domain.Manga{
			ID:          5,
			Source:      3,
			Title:       "Title",
			Description: "<p>Some <b>bold</b> text</p>",
			Genre:       []string{"Sci-Fi, Action", "action"},
			DateAdded:   added,
			Favorite:    true,
		},
		Tags:   []string{"artist:someone"},
		Titles: []string{"Alt"},
	}

	doc := NewMangaDocument(im)

	assert.Equal(t, "5", doc.ID)
	assert.Equal(t, []string{"sci-fi", "action"}, doc.Genres)
	assert.Equal(t, "Some **bold** text", doc.Description)
	assert.Equal(t, added.UnixMilli(), doc.DateAdded)
	assert.Equal(t, []string{"Alt"}, doc.AltTitles)

	m := doc.ToMap()
	assert.Equal(t, "3", m["source"])
	assert.Equal(t, true, m["favorite"])
	assert.NotContains(t, (&MangaDocument{ID: "1"}).ToMap(), "genres")
}

func TestDescriptionText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"plain text unchanged", "Just a description.", "Just a description."},
		{"angle brackets without tags", "a < b > c", "a < b > c"},
		{"paragraphs", "<p>First</p><p>Second</p>", "First\n\nSecond"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, descriptionText(tt.input))
		})
	}
}
