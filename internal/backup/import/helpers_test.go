package backupimport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shelfsy/shelfsy-server/internal/backup/format"
	"github.com/shelfsy/shelfsy-server/internal/domain"
	"github.com/shelfsy/shelfsy-server/internal/store"
	"github.com/shelfsy/shelfsy-server/internal/store/sqlite"
)

var testNow = time.Date(2024, time.June, 15, 12, 30, 45, 123_000_000, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "library.db"), discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// recorder captures notifications. onProgress, when set, runs after each
// progress event is recorded.
type recorder struct {
	progress    []ProgressEvent
	completions []CompletionEvent
	onProgress  func(ProgressEvent)
}

func (r *recorder) Progress(e ProgressEvent) {
	r.progress = append(r.progress, e)
	if r.onProgress != nil {
		r.onProgress(e)
	}
}

func (r *recorder) Complete(e CompletionEvent) {
	r.completions = append(r.completions, e)
}

func (r *recorder) titles() []string {
	out := make([]string, len(r.progress))
	for i, p := range r.progress {
		out[i] = p.Title
	}
	return out
}

// memCustomInfo is an in-memory CustomInfoStore.
type memCustomInfo struct {
	mu    sync.Mutex
	infos map[int64]domain.CustomMangaInfo
}

func newMemCustomInfo() *memCustomInfo {
	return &memCustomInfo{infos: make(map[int64]domain.CustomMangaInfo)}
}

func (m *memCustomInfo) Get(_ context.Context, id int64) (*domain.CustomMangaInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.infos[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &info, nil
}

func (m *memCustomInfo) Save(_ context.Context, info *domain.CustomMangaInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos[info.MangaID] = *info
	return nil
}

// indexRecorder captures indexed documents by manga id.
type indexRecorder struct {
	docs map[int64]*store.IndexedManga
}

func (x *indexRecorder) IndexManga(_ context.Context, m *store.IndexedManga) error {
	if x.docs == nil {
		x.docs = make(map[int64]*store.IndexedManga)
	}
	x.docs[m.Manga.ID] = m
	return nil
}

func (x *indexRecorder) DeleteManga(_ context.Context, id int64) error {
	delete(x.docs, id)
	return nil
}

// faultyLibrary injects failures into a Library, including inside
// transactions it opens.
type faultyLibrary struct {
	store.Library
	failLookup map[string]error // by manga url
	failTracks error
}

func (f *faultyLibrary) wrap(tx store.Library) *faultyLibrary {
	return &faultyLibrary{Library: tx, failLookup: f.failLookup, failTracks: f.failTracks}
}

func (f *faultyLibrary) GetMangaBySourceURL(ctx context.Context, source int64, url string) (*domain.Manga, error) {
	if err, ok := f.failLookup[url]; ok {
		return nil, err
	}
	return f.Library.GetMangaBySourceURL(ctx, source, url)
}

func (f *faultyLibrary) InsertTrack(ctx context.Context, t *domain.Track) error {
	if f.failTracks != nil {
		return f.failTracks
	}
	return f.Library.InsertTrack(ctx, t)
}

func (f *faultyLibrary) WithTx(ctx context.Context, fn func(tx store.Library) error) error {
	return f.Library.WithTx(ctx, func(tx store.Library) error {
		return fn(f.wrap(tx))
	})
}

var errNetwork = errors.New("network")

type fixture struct {
	store      *sqlite.Store
	lib        store.Library
	notifier   *recorder
	customInfo *memCustomInfo
	index      *indexRecorder
	logDir     string
	restorer   *Restorer
}

func newFixture(t *testing.T, wrap func(store.Library) store.Library) *fixture {
	t.Helper()
	s := newTestStore(t)
	var lib store.Library = s
	if wrap != nil {
		lib = wrap(s)
	}
	f := &fixture{
		store:      s,
		lib:        lib,
		notifier:   &recorder{},
		customInfo: newMemCustomInfo(),
		index:      &indexRecorder{},
		logDir:     filepath.Join(t.TempDir(), "logs"),
	}
	f.restorer = New(lib, f.customInfo, f.index, f.notifier, Config{
		LogDir:        f.logDir,
		FollowingDays: 1,
		LeadingDays:   1,
	}, discardLogger())
	f.restorer.clock = func() time.Time { return testNow }
	return f
}

func manga(source int64, url, title string, chapters ...string) format.Manga {
	m := format.Manga{Source: source, URL: url, Title: title, Favorite: true}
	for i, c := range chapters {
		m.Chapters = append(m.Chapters, format.Chapter{URL: c, Name: c, SourceOrder: int64(i)})
	}
	return m
}

func mergedManga(url, title string, parts ...format.Manga) format.Manga {
	m := format.Manga{Source: domain.MergedSourceID, URL: url, Title: title, Favorite: true}
	for _, p := range parts {
		m.MergedReferences = append(m.MergedReferences, format.MergedReference{
			GetChapterUpdates: true,
			MergeURL:          url,
			MangaURL:          p.URL,
			MangaSourceID:     p.Source,
		})
	}
	return m
}

const minute = time.Minute

func time24h(days int) time.Duration {
	return time.Duration(days) * 24 * time.Hour
}
