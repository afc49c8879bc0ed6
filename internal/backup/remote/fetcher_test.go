package remote

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeS3 serves path-style GETs for a single bucket.
func fakeS3(t *testing.T, bucket string, objects map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, ok := strings.CutPrefix(r.URL.Path, "/"+bucket+"/")
		body, found := objects[key]
		if r.Method != http.MethodGet || !ok || !found {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>`+
				`<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestFetcher(t *testing.T, objects map[string]string) *Fetcher {
	t.Helper()
	srv := fakeS3(t, "backups", objects)
	f, err := New(context.Background(), Config{
		Endpoint:  srv.URL,
		Region:    "us-east-1",
		Bucket:    "backups",
		AccessKey: "test",
		SecretKey: "secret",
	}, testLogger())
	require.NoError(t, err)
	return f
}

func TestFetch(t *testing.T) {
	f := newTestFetcher(t, map[string]string{"nightly/library.shelfsy.zip": "archive-bytes"})
	dir := filepath.Join(t.TempDir(), "downloads")

	path, err := f.Fetch(context.Background(), "nightly/library.shelfsy.zip", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "library.shelfsy.zip"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "archive-bytes", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no partial files left behind")
}

func TestFetch_NotFound(t *testing.T) {
	f := newTestFetcher(t, nil)
	_, err := f.Fetch(context.Background(), "missing.tachibk", t.TempDir())
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestFetch_InvalidKey(t *testing.T) {
	f := newTestFetcher(t, nil)
	for _, key := range []string{"", "/", "a/.."} {
		_, err := f.Fetch(context.Background(), key, t.TempDir())
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}
}

func TestNew_RequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{Region: "us-east-1"}, testLogger())
	assert.ErrorIs(t, err, ErrNotConfigured)
}
