package api

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/require"

	"github.com/shelfsy/shelfsy-server/internal/auth"
	"github.com/shelfsy/shelfsy-server/internal/backup"
	"github.com/shelfsy/shelfsy-server/internal/backup/export"
	"github.com/shelfsy/shelfsy-server/internal/backup/format"
	backupimport "github.com/shelfsy/shelfsy-server/internal/backup/import"
	"github.com/shelfsy/shelfsy-server/internal/custominfo"
	"github.com/shelfsy/shelfsy-server/internal/http/response"
	"github.com/shelfsy/shelfsy-server/internal/search"
	"github.com/shelfsy/shelfsy-server/internal/sse"
	"github.com/shelfsy/shelfsy-server/internal/store/sqlite"
)

// testServer wraps the API server with the pieces tests poke at directly.
type testServer struct {
	*Server
	api        humatest.TestAPI
	tokens     *auth.TokenService
	store      *sqlite.Store
	sseManager *sse.Manager
	backupDir  string
}

// setupTestServer creates a server backed by real stores in a temp dir.
func setupTestServer(t *testing.T, opts ...func(*Services, *Options)) *testServer {
	t.Helper()
	tmpDir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st, err := sqlite.Open(filepath.Join(tmpDir, "library.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	info, err := custominfo.Open(filepath.Join(tmpDir, "custominfo"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = info.Close() })

	index, err := search.NewSearchIndex(search.Options{DataPath: filepath.Join(tmpDir, "search"), Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	key := make([]byte, 32)
	_, err = rand.Read(key)
	require.NoError(t, err)
	tokens, err := auth.NewTokenService(key, time.Hour)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	manager := sse.NewManager(logger)
	go manager.Start(ctx)
	t.Cleanup(func() {
		cancel()
		_ = manager.Shutdown(context.Background())
	})

	backupDir := filepath.Join(tmpDir, "backups")
	restorer := backupimport.New(st, info, index, nil, backupimport.Config{LogDir: filepath.Join(tmpDir, "logs")}, logger)
	restoreSvc := backup.NewRestoreService(restorer, nil, logger)
	restoreSvc.SetObserver(sse.NewRestoreNotifier(manager))

	services := &Services{
		Backup:    backup.NewBackupService(export.New(st, info, "test", logger), backupDir, logger),
		Restore:   restoreSvc,
		Library:   st,
		Search:    index,
		Reindexer: search.NewReindexer(index, st, info, logger),
		Tokens:    tokens,
	}
	options := Options{Version: "test", AdminRate: 1000, AdminBurst: 1000}
	for _, o := range opts {
		o(services, &options)
	}

	s := NewServer(services, manager, options, logger)
	t.Cleanup(s.Close)

	return &testServer{
		Server:     s,
		api:        humatest.Wrap(t, s.API()),
		tokens:     tokens,
		store:      st,
		sseManager: manager,
		backupDir:  backupDir,
	}
}

// bearer issues a token with scopes and returns it as a request header.
func (ts *testServer) bearer(t *testing.T, scopes ...string) string {
	t.Helper()
	token, _, err := ts.tokens.Issue("test-admin", scopes...)
	require.NoError(t, err)
	return "Authorization: Bearer " + token
}

// decodeData unmarshals the envelope's data field into v.
func decodeData(t *testing.T, body []byte, v any) response.Envelope {
	t.Helper()
	var raw struct {
		response.Envelope
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &raw), "body: %s", body)
	if v != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, v))
	}
	return raw.Envelope
}

func sampleBackup() *format.Backup {
	return &format.Backup{
		Categories: []format.Category{{Name: "Reading", Order: 0}},
		Manga: []format.Manga{
			{
				Source: 1, URL: "/a", Title: "Alpha Quest", Favorite: true,
				Genre:      []string{"Action"},
				Categories: []int64{0},
				Chapters: []format.Chapter{
					{URL: "/a/1", Name: "One", Read: true},
					{URL: "/a/2", Name: "Two"},
				},
			},
			{Source: 2, URL: "/b", Title: "Beta Story", Favorite: true},
		},
	}
}

func archiveBytes(t *testing.T, b *format.Backup) []byte {
	t.Helper()
	var buf bytes.Buffer
	_, err := format.WriteArchive(&buf, b, "test", time.Now())
	require.NoError(t, err)
	return buf.Bytes()
}

// uploadBackup posts data through the multipart endpoint and returns the
// stored upload name.
func (ts *testServer) uploadBackup(t *testing.T, name string, data []byte) string {
	t.Helper()
	body, contentType := multipartBody(t, name, data)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/backups/upload", body)
	req.Header.Set("Content-Type", contentType)
	token, _, err := ts.tokens.Issue("test-admin", auth.ScopeRestore)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	w := httptest.NewRecorder()
	ts.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var up UploadResponse
	decodeData(t, w.Body.Bytes(), &up)
	require.NotEmpty(t, up.Upload)
	return up.Upload
}

// waitForJob polls the job endpoint until the run reaches a terminal state.
func (ts *testServer) waitForJob(t *testing.T, id string) backup.JobStatus {
	t.Helper()
	header := ts.bearer(t, auth.ScopeRead)

	var st backup.JobStatus
	require.Eventually(t, func() bool {
		resp := ts.api.Get("/api/v1/admin/restore/"+id, header)
		if resp.Code != http.StatusOK {
			return false
		}
		decodeData(t, resp.Body.Bytes(), &st)
		switch st.State {
		case backupimport.StateDone, backupimport.StateCancelled, backupimport.StateFailed:
			return true
		}
		return false
	}, 5*time.Second, 20*time.Millisecond)
	return st
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o600))
}
