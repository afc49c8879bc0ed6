package backupimport

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfsy/shelfsy-server/internal/backup/format"
	"github.com/shelfsy/shelfsy-server/internal/domain"
	"github.com/shelfsy/shelfsy-server/internal/store"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.NoError(t, sc.Err())
	return lines
}

func TestRestore_ThreeMangaExample(t *testing.T) {
	f := newFixture(t, func(lib store.Library) store.Library {
		return &faultyLibrary{Library: lib, failLookup: map[string]error{"/b": errNetwork}}
	})
	ctx := context.Background()

	a := manga(1, "/a", "A", "/a/1", "/a/2")
	b := manga(1, "/b", "B", "/b/1")
	c := mergedManga("/merged/c", "C", a)
	backup := &format.Backup{
		Categories:    []format.Category{{Name: "Reading", Order: 0}},
		SavedSearches: []format.SavedSearch{{Source: 1, Name: "Latest isekai", Query: "isekai"}},
		Sources:       []format.Source{{SourceID: 1, Name: "Source One"}},
		// C first in the backup; it must still run after A.
		Manga: []format.Manga{c, a, b},
	}

	res, err := f.restorer.Restore(ctx, backup, Options{})
	require.NoError(t, err)

	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, 5, res.Total)
	assert.Equal(t, 5, res.Progress)
	assert.Equal(t, 2, res.Restored)
	require.Len(t, res.Errors, 1)

	require.Len(t, f.notifier.progress, 5)
	for i, p := range f.notifier.progress {
		assert.Equal(t, i+1, p.Progress)
		assert.Equal(t, 5, p.Total)
		assert.Equal(t, ContentTitleRestore, p.ContentTitle)
	}
	assert.Equal(t, []string{TitleCategories, TitleSavedSearches, "A", "B", "C"}, f.notifier.titles())

	require.Len(t, f.notifier.completions, 1)
	done := f.notifier.completions[0]
	assert.Equal(t, 1, done.ErrorCount)
	assert.Empty(t, done.ContentTitle)
	assert.Equal(t, f.logDir, done.LogDir)
	assert.Equal(t, "shelfsy_restore_20240615-123045.txt", done.LogFile)

	lines := readLines(t, filepath.Join(done.LogDir, done.LogFile))
	require.Len(t, lines, 1)
	assert.Regexp(t,
		regexp.MustCompile(`^\[2024-06-15 12:30:45\.123\] B \[Source One\]: .*network$`),
		lines[0])

	liveA, err := f.store.GetMangaBySourceURL(ctx, 1, "/a")
	require.NoError(t, err)
	liveC, err := f.store.GetMangaBySourceURL(ctx, domain.MergedSourceID, "/merged/c")
	require.NoError(t, err)

	refs, err := f.store.GetMergedReferencesByMergeID(ctx, liveC.ID)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	require.NotNil(t, refs[0].MangaID)
	assert.Equal(t, liveA.ID, *refs[0].MangaID)

	_, err = f.store.GetMangaBySourceURL(ctx, 1, "/b")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRestore_MergedMangaProcessedLast(t *testing.T) {
	f := newFixture(t, nil)

	a := manga(1, "/a", "A")
	b := manga(2, "/b", "B")
	m1 := mergedManga("/m1", "M1", a)
	m2 := mergedManga("/m2", "M2", b)
	backup := &format.Backup{Manga: []format.Manga{m1, a, m2, b}}

	_, err := f.restorer.Restore(context.Background(), backup, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "M1", "M2"}, f.notifier.titles())
}

func TestOrderManga(t *testing.T) {
	in := []format.Manga{
		{Title: "m1", Kind: domain.SourceKindMerged},
		{Title: "r1"},
		{Title: "m2", Kind: domain.SourceKindMerged},
		{Title: "r2"},
		{Title: "r3"},
	}

	var got []string
	seenMerged := false
	for _, m := range orderManga(in) {
		got = append(got, m.Title)
		if m.Kind == domain.SourceKindMerged {
			seenMerged = true
		} else {
			assert.False(t, seenMerged, "regular manga %s after a merged one", m.Title)
		}
	}
	assert.Equal(t, []string{"r1", "r2", "r3", "m1", "m2"}, got)
}

func TestRestore_EmptyLookupsKeepOverhead(t *testing.T) {
	f := newFixture(t, nil)
	backup := &format.Backup{Manga: []format.Manga{manga(1, "/a", "A"), manga(1, "/b", "B")}}

	res, err := f.restorer.Restore(context.Background(), backup, Options{})
	require.NoError(t, err)

	assert.Equal(t, 4, res.Total)
	assert.Equal(t, 2, res.Progress)
	assert.Equal(t, []string{"A", "B"}, f.notifier.titles())
	for _, p := range f.notifier.progress {
		assert.Equal(t, 4, p.Total)
	}
	require.Len(t, f.notifier.completions, 1)
	assert.Empty(t, f.notifier.completions[0].LogFile)
}

func TestRestore_FeedsShareSavedSearchSlot(t *testing.T) {
	f := newFixture(t, nil)
	backup := &format.Backup{
		Feeds: []format.Feed{{Source: 3, Global: true}},
	}

	res, err := f.restorer.Restore(context.Background(), backup, Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Total)
	assert.Equal(t, []string{TitleSavedSearches}, f.notifier.titles())
}

func TestRestore_ExistingChapterStateUntouched(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	live := &domain.Manga{Source: 1, URL: "/a", Title: "A", Favorite: true}
	require.NoError(t, f.store.InsertManga(ctx, live))
	require.NoError(t, f.store.InsertChapters(ctx, []domain.Chapter{
		{MangaID: live.ID, URL: "/a/1", Name: "One", Read: true, Bookmark: true, LastPageRead: 10},
	}))

	bm := manga(1, "/a", "A")
	bm.Chapters = []format.Chapter{
		{URL: "/a/1", Name: "One (renamed)", Read: false, LastPageRead: 0},
		{URL: "/a/2", Name: "Two", Read: true},
	}
	backup := &format.Backup{Manga: []format.Manga{bm}}

	for range 2 {
		_, err := f.restorer.Restore(ctx, backup, Options{})
		require.NoError(t, err)

		chapters, err := f.store.GetChaptersByMangaID(ctx, live.ID)
		require.NoError(t, err)
		require.Len(t, chapters, 2)

		byURL := map[string]domain.Chapter{}
		for _, c := range chapters {
			byURL[c.URL] = c
		}
		assert.Equal(t, "One", byURL["/a/1"].Name)
		assert.True(t, byURL["/a/1"].Read)
		assert.True(t, byURL["/a/1"].Bookmark)
		assert.Equal(t, int64(10), byURL["/a/1"].LastPageRead)
		assert.True(t, byURL["/a/2"].Read)
	}
}

func TestRestore_LookupsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	search := format.SavedSearch{Source: 5, Name: "Romance", Query: "love", Filters: `[{"genre":"romance"}]`}
	backup := &format.Backup{
		Categories:    []format.Category{{Name: "Reading", Order: 0}, {Name: "Plan to read", Order: 1}},
		SavedSearches: []format.SavedSearch{search},
		Feeds: []format.Feed{
			{Source: 5},
			{Source: 5, SavedSearch: &search},
			{Source: 6, Global: true, SavedSearch: &format.SavedSearch{Source: 6, Name: "Only in feed"}},
		},
	}

	for range 2 {
		_, err := f.restorer.Restore(ctx, backup, Options{})
		require.NoError(t, err)
	}

	categories, err := f.store.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, categories, 2)

	searches, err := f.store.ListSavedSearches(ctx)
	require.NoError(t, err)
	assert.Len(t, searches, 2)

	feeds, err := f.store.ListFeedSavedSearches(ctx)
	require.NoError(t, err)
	assert.Len(t, feeds, 3)
}

func TestRestore_CategoryMatchesLiveByNormalizedName(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	liveCat := &domain.Category{Name: "Reading", Order: 4}
	require.NoError(t, f.store.InsertCategory(ctx, liveCat))

	bm := manga(1, "/a", "A")
	bm.Categories = []int64{7, 8, 99}
	backup := &format.Backup{
		Categories: []format.Category{{Name: "  READING ", Order: 7}, {Name: "New", Order: 8}},
		Manga:      []format.Manga{bm},
	}

	_, err := f.restorer.Restore(ctx, backup, Options{})
	require.NoError(t, err)

	categories, err := f.store.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 2)

	var newCat *domain.Category
	for _, c := range categories {
		if c.Name == "New" {
			newCat = c
		}
	}
	require.NotNil(t, newCat)
	assert.Equal(t, int64(5), newCat.Order, "new categories go after live ones")

	m, err := f.store.GetMangaBySourceURL(ctx, 1, "/a")
	require.NoError(t, err)
	ids, err := f.store.GetMangaCategoryIDs(ctx, m.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{liveCat.ID, newCat.ID}, ids)
}

func TestRestore_ErrorIsolation(t *testing.T) {
	f := newFixture(t, func(lib store.Library) store.Library {
		return &faultyLibrary{Library: lib, failLookup: map[string]error{
			"/2": errNetwork,
			"/4": errNetwork,
		}}
	})
	backup := &format.Backup{Manga: []format.Manga{
		manga(1, "/1", "One"),
		manga(1, "/2", "Two"),
		manga(1, "/3", "Three"),
		manga(1, "/4", "Four"),
		manga(1, "/5", "Five"),
	}}

	res, err := f.restorer.Restore(context.Background(), backup, Options{})
	require.NoError(t, err)

	assert.Len(t, res.Errors, 2)
	assert.Equal(t, 3, res.Restored)
	assert.Equal(t, 5, res.Progress)
	assert.Equal(t, 2, f.notifier.completions[0].ErrorCount)

	all, err := f.store.ListMangas(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRestore_FailedMangaRollsBack(t *testing.T) {
	f := newFixture(t, func(lib store.Library) store.Library {
		return &faultyLibrary{Library: lib, failTracks: errNetwork}
	})
	ctx := context.Background()

	bm := manga(1, "/a", "A", "/a/1")
	bm.Tracking = []format.Track{{SyncID: 1, MediaID: 10}}
	backup := &format.Backup{Manga: []format.Manga{bm, manga(1, "/b", "B", "/b/1")}}

	res, err := f.restorer.Restore(ctx, backup, Options{})
	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0].Message, "A [1]: tracking: network")

	_, err = f.store.GetMangaBySourceURL(ctx, 1, "/a")
	assert.ErrorIs(t, err, store.ErrNotFound, "partial manga must roll back")

	b, err := f.store.GetMangaBySourceURL(ctx, 1, "/b")
	require.NoError(t, err)
	chapters, err := f.store.GetChaptersByMangaID(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, chapters, 1)
}

func TestRestore_CancelMidLoop(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.notifier.onProgress = func(e ProgressEvent) {
		if e.Progress == 2 {
			cancel()
		}
	}

	backup := &format.Backup{Manga: []format.Manga{
		manga(1, "/1", "One", "/1/a", "/1/b"),
		manga(1, "/2", "Two", "/2/a", "/2/b", "/2/c"),
		manga(1, "/3", "Three", "/3/a"),
		manga(1, "/4", "Four"),
		manga(1, "/5", "Five"),
	}}

	var states []State
	res, err := f.restorer.Restore(ctx, backup, Options{OnState: func(s State) { states = append(states, s) }})
	require.NoError(t, err)

	assert.True(t, res.Cancelled())
	assert.Equal(t, 2, res.Progress)
	assert.Equal(t, 2, res.Restored)
	assert.Empty(t, f.notifier.completions)
	assert.Empty(t, res.LogFile)
	assert.Equal(t, []State{StateRestoringLookups, StateRestoringManga, StateCancelled}, states)

	all, err := f.store.ListMangas(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)

	counts := map[string]int{}
	for _, m := range all {
		chapters, err := f.store.GetChaptersByMangaID(context.Background(), m.ID)
		require.NoError(t, err)
		counts[m.URL] = len(chapters)
	}
	assert.Equal(t, map[string]int{"/1": 2, "/2": 3}, counts)

	_, statErr := os.Stat(f.logDir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRestore_CancelledKeepsRecordedErrors(t *testing.T) {
	f := newFixture(t, func(lib store.Library) store.Library {
		return &faultyLibrary{Library: lib, failLookup: map[string]error{"/1": errNetwork}}
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.notifier.onProgress = func(ProgressEvent) { cancel() }

	backup := &format.Backup{Manga: []format.Manga{manga(1, "/1", "One"), manga(1, "/2", "Two")}}

	res, err := f.restorer.Restore(ctx, backup, Options{})
	require.NoError(t, err)
	assert.True(t, res.Cancelled())
	assert.Len(t, res.Errors, 1)
	assert.Empty(t, f.notifier.completions)
}

func TestRestore_SyncModeStrings(t *testing.T) {
	f := newFixture(t, nil)
	backup := &format.Backup{Manga: []format.Manga{manga(1, "/a", "A")}}

	_, err := f.restorer.Restore(context.Background(), backup, Options{Sync: true})
	require.NoError(t, err)

	require.Len(t, f.notifier.progress, 1)
	assert.Equal(t, ContentTitleSync, f.notifier.progress[0].ContentTitle)
	require.Len(t, f.notifier.completions, 1)
	assert.Equal(t, CompleteTitleSync, f.notifier.completions[0].ContentTitle)
}

func TestRestore_LogWriteFailureIsSwallowed(t *testing.T) {
	f := newFixture(t, func(lib store.Library) store.Library {
		return &faultyLibrary{Library: lib, failLookup: map[string]error{"/a": errNetwork}}
	})
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))
	f.restorer.cfg.LogDir = filepath.Join(blocker, "logs")

	res, err := f.restorer.Restore(context.Background(), &format.Backup{Manga: []format.Manga{manga(1, "/a", "A")}}, Options{})
	require.NoError(t, err)

	assert.Len(t, res.Errors, 1)
	assert.Empty(t, res.LogDir)
	assert.Empty(t, res.LogFile)
	require.Len(t, f.notifier.completions, 1)
	assert.Equal(t, 1, f.notifier.completions[0].ErrorCount)
	assert.Empty(t, f.notifier.completions[0].LogFile)
}

func TestRestore_MergesExistingManga(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	live := &domain.Manga{
		Source: 1, URL: "/a", Title: "Live title", Description: "live",
		Favorite: false, Initialized: true, FetchInterval: -3,
	}
	require.NoError(t, f.store.InsertManga(ctx, live))
	require.NoError(t, f.store.InsertChapters(ctx, []domain.Chapter{{MangaID: live.ID, URL: "/a/1", Name: "One"}}))
	chapters, err := f.store.GetChaptersByMangaID(ctx, live.ID)
	require.NoError(t, err)
	liveRead := testNow.Add(-time24h(2))
	require.NoError(t, f.store.UpsertHistory(ctx, &domain.History{
		ChapterID: chapters[0].ID, LastRead: liveRead, TimeRead: 5 * minute,
	}))
	require.NoError(t, f.store.InsertTrack(ctx, &domain.Track{MangaID: live.ID, SyncID: 2, RemoteID: 1, LastChapterRead: 9}))

	bm := manga(1, "/a", "Backup title", "/a/1")
	bm.ViewerFlags = 6
	bm.History = []format.History{{URL: "/a/1", LastRead: format.ToMillis(liveRead.Add(-time24h(1))), ReadDuration: 10 * 60_000}}
	bm.BrokenHistory = []format.History{{URL: "/a/404", LastRead: 1}}
	bm.Tracking = []format.Track{
		{SyncID: 2, MediaID: 77, LibraryID: 5, LastChapterRead: 4},
		{SyncID: 3, MediaID: 88, LastChapterRead: 1},
	}
	bm.FlatMetadata = &format.FlatMetadata{Extra: "{}", Tags: []format.SearchTag{{Namespace: "genre", Name: "action"}}}

	res, err := f.restorer.Restore(ctx, &format.Backup{Manga: []format.Manga{bm}}, Options{})
	require.NoError(t, err)
	require.Empty(t, res.Errors)

	got, err := f.store.GetManga(ctx, live.ID)
	require.NoError(t, err)
	assert.Equal(t, "Live title", got.Title)
	assert.Equal(t, "live", got.Description)
	assert.True(t, got.Favorite)
	assert.True(t, got.Initialized)
	assert.Equal(t, int64(6), got.ViewerFlags)
	assert.Equal(t, -3, got.FetchInterval, "pinned interval is kept")

	h, err := f.store.GetHistoryByChapterID(ctx, chapters[0].ID)
	require.NoError(t, err)
	assert.True(t, h.LastRead.Equal(liveRead))
	assert.Equal(t, 10*minute, h.TimeRead)

	tracks, err := f.store.GetTracksByMangaID(ctx, live.ID)
	require.NoError(t, err)
	require.Len(t, tracks, 2)
	bySync := map[int64]*domain.Track{}
	for _, tr := range tracks {
		bySync[tr.SyncID] = tr
	}
	assert.Equal(t, int64(77), bySync[2].RemoteID)
	assert.Equal(t, int64(5), bySync[2].LibraryID)
	assert.Equal(t, 9.0, bySync[2].LastChapterRead)
	assert.Equal(t, int64(88), bySync[3].RemoteID)

	meta, err := f.store.GetFlatMetadata(ctx, live.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"genre:action"}, meta.TagStrings())
	assert.Equal(t, []string{"genre:action"}, f.index.docs[live.ID].Tags)
}

func TestRestore_NewMangaInitializedFromDescription(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	withDesc := manga(1, "/a", "A")
	withDesc.Description = "fetched"
	backup := &format.Backup{Manga: []format.Manga{withDesc, manga(1, "/b", "B")}}

	_, err := f.restorer.Restore(ctx, backup, Options{})
	require.NoError(t, err)

	a, err := f.store.GetMangaBySourceURL(ctx, 1, "/a")
	require.NoError(t, err)
	assert.True(t, a.Initialized)
	assert.Equal(t, domain.DefaultFetchInterval, a.FetchInterval)

	b, err := f.store.GetMangaBySourceURL(ctx, 1, "/b")
	require.NoError(t, err)
	assert.False(t, b.Initialized)
}

func TestRestore_MergedReferenceMissingTarget(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	present := manga(1, "/a", "A")
	missing := manga(1, "/gone", "Gone")
	c := mergedManga("/merged", "C", present, missing)
	backup := &format.Backup{
		Sources: []format.Source{{SourceID: 1, Name: "One"}},
		Manga:   []format.Manga{present, c},
	}

	res, err := f.restorer.Restore(ctx, backup, Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Restored)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "C [6969]: merged reference /gone [One] skipped: manga not in library", res.Errors[0].Message)

	merged, err := f.store.GetMangaBySourceURL(ctx, domain.MergedSourceID, "/merged")
	require.NoError(t, err)
	refs, err := f.store.GetMergedReferencesByMergeID(ctx, merged.ID)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "/a", refs[0].MangaURL)
}

func TestRestore_CustomInfoRekeyed(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	title := "My title"
	bm := manga(1, "/a", "Source title")
	bm.CustomInfo = &format.CustomInfo{Title: &title}

	_, err := f.restorer.Restore(ctx, &format.Backup{Manga: []format.Manga{bm}}, Options{})
	require.NoError(t, err)

	m, err := f.store.GetMangaBySourceURL(ctx, 1, "/a")
	require.NoError(t, err)

	info, err := f.customInfo.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.ID, info.MangaID)
	assert.Equal(t, "My title", *info.Title)

	assert.Equal(t, "Source title", m.Title, "overrides are not written to the library row")
	assert.Equal(t, "My title", f.index.docs[m.ID].Manga.Title)
}

func TestRestore_SourceRemap(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.restorer.cfg.SourceRemap = map[int64]int64{100: 200}

	live := &domain.Manga{Source: 200, URL: "/a", Title: "A"}
	require.NoError(t, f.store.InsertManga(ctx, live))

	_, err := f.restorer.Restore(ctx, &format.Backup{Manga: []format.Manga{manga(100, "/a", "A")}}, Options{})
	require.NoError(t, err)

	all, err := f.store.ListMangas(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, live.ID, all[0].ID)
	assert.True(t, all[0].Favorite)
}

func TestRestore_SourceRemapLabelsErrors(t *testing.T) {
	f := newFixture(t, func(lib store.Library) store.Library {
		return &faultyLibrary{Library: lib, failLookup: map[string]error{"/b": errNetwork}}
	})
	f.restorer.cfg.SourceRemap = map[int64]int64{100: 200}
	backup := &format.Backup{
		BrokenSources: []format.Source{{SourceID: 100, Name: "Old"}},
		Sources:       []format.Source{{SourceID: 200, Name: "New"}},
		Manga:         []format.Manga{manga(100, "/b", "B")},
	}

	res, err := f.restorer.Restore(context.Background(), backup, Options{})
	require.NoError(t, err)

	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0].Message, "B [New]: ")
}

func TestRestore_NilBackup(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.restorer.Restore(context.Background(), nil, Options{})
	assert.Error(t, err)
}

func TestRestore_RunNotifierReceivesEvents(t *testing.T) {
	f := newFixture(t, nil)
	extra := &recorder{}

	_, err := f.restorer.Restore(context.Background(),
		&format.Backup{Manga: []format.Manga{manga(1, "/a", "A")}},
		Options{Notifier: extra})
	require.NoError(t, err)

	assert.Equal(t, f.notifier.progress, extra.progress)
	assert.Len(t, extra.completions, 1)
}
