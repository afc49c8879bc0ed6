package sqlite

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shelfsy/shelfsy-server/internal/domain"
	"github.com/shelfsy/shelfsy-server/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s, err := Open(dbPath, logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func insertTestManga(t *testing.T, s *Store, source int64, url string) *domain.Manga {
	t.Helper()
	m := &domain.Manga{Source: source, URL: url, Title: "Manga " + url}
	if err := s.InsertManga(context.Background(), m); err != nil {
		t.Fatalf("insert manga: %v", err)
	}
	return m
}

func TestOpen(t *testing.T) {
	s := newTestStore(t)

	var journalMode string
	if err := s.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("expected wal, got %s", journalMode)
	}

	var fk int
	if err := s.db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("query foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("expected foreign_keys=1, got %d", fk)
	}

	tables := []string{
		"mangas", "chapters", "categories", "manga_categories",
		"saved_searches", "feed_saved_searches", "history", "tracks",
		"merged_references", "search_metadata", "search_tags", "search_titles",
	}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestOpen_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reopen.db")
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	s, err := Open(dbPath, logger)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	m := &domain.Manga{Source: 1, URL: "/a", Title: "A"}
	if err := s.InsertManga(context.Background(), m); err != nil {
		t.Fatalf("insert: %v", err)
	}
	s.Close()

	s, err = Open(dbPath, logger)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	if _, err := s.GetManga(context.Background(), m.ID); err != nil {
		t.Errorf("manga lost after reopen: %v", err)
	}
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx store.Library) error {
		m := &domain.Manga{Source: 1, URL: "/rolled-back", Title: "Gone"}
		if err := tx.InsertManga(ctx, m); err != nil {
			return err
		}
		if err := tx.InsertChapters(ctx, []domain.Chapter{{MangaID: m.ID, URL: "/c1"}}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	if _, err := s.GetMangaBySourceURL(ctx, 1, "/rolled-back"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected manga to be rolled back, got %v", err)
	}
}

func TestWithTx_Commits(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var id int64
	err := s.WithTx(ctx, func(tx store.Library) error {
		m := &domain.Manga{Source: 1, URL: "/kept", Title: "Kept"}
		if err := tx.InsertManga(ctx, m); err != nil {
			return err
		}
		id = m.ID
		// Nested calls join the outer transaction.
		return tx.WithTx(ctx, func(inner store.Library) error {
			return inner.SetMangaCategories(ctx, m.ID, nil)
		})
	})
	if err != nil {
		t.Fatalf("with tx: %v", err)
	}

	got, err := s.GetManga(ctx, id)
	if err != nil {
		t.Fatalf("get manga: %v", err)
	}
	if got.Title != "Kept" {
		t.Errorf("title = %q, want Kept", got.Title)
	}
}

func TestFormatParseTime(t *testing.T) {
	now := time.Date(2024, 3, 10, 15, 4, 5, 123000000, time.UTC)
	got, err := parseTime(formatTime(now))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !got.Equal(now) {
		t.Errorf("got %v, want %v", got, now)
	}

	zero, err := parseNullTime(nullTime(time.Time{}))
	if err != nil {
		t.Fatalf("parse null: %v", err)
	}
	if !zero.IsZero() {
		t.Errorf("expected zero time, got %v", zero)
	}
}
