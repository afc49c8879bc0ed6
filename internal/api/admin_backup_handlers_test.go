package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfsy/shelfsy-server/internal/auth"
	"github.com/shelfsy/shelfsy-server/internal/backup"
	domainerrors "github.com/shelfsy/shelfsy-server/internal/errors"
	"github.com/shelfsy/shelfsy-server/internal/sse"
)

func (ts *testServer) createBackup(t *testing.T) BackupResponse {
	t.Helper()
	resp := ts.api.Post("/api/v1/admin/backups", ts.bearer(t, auth.ScopeBackup))
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var created BackupResponse
	env := decodeData(t, resp.Body.Bytes(), &created)
	require.True(t, env.Success)
	return created
}

func TestCreateBackup(t *testing.T) {
	ts := setupTestServer(t)

	created := ts.createBackup(t)

	assert.NotEmpty(t, created.ID)
	assert.Positive(t, created.Size)
	assert.NotEmpty(t, created.Checksum)
	require.NotNil(t, created.Counts)
	assert.Zero(t, created.Counts.Manga)
}

func TestCreateBackup_EmitsEvent(t *testing.T) {
	ts := setupTestServer(t)
	client, err := ts.sseManager.Connect("")
	require.NoError(t, err)
	defer ts.sseManager.Disconnect(client.ID)

	created := ts.createBackup(t)

	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-client.EventChan:
			if ev.Type != sse.EventBackupCreated {
				continue
			}
			data, ok := ev.Data.(sse.BackupEventData)
			require.True(t, ok)
			assert.Equal(t, created.ID, data.ID)
			return
		case <-timeout:
			t.Fatal("backup.created event not received")
		}
	}
}

func TestListAndGetBackups(t *testing.T) {
	ts := setupTestServer(t)
	created := ts.createBackup(t)
	header := ts.bearer(t, auth.ScopeRead)

	resp := ts.api.Get("/api/v1/admin/backups", header)
	require.Equal(t, http.StatusOK, resp.Code)
	var list []BackupResponse
	decodeData(t, resp.Body.Bytes(), &list)
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)

	resp = ts.api.Get("/api/v1/admin/backups/"+created.ID, header)
	require.Equal(t, http.StatusOK, resp.Code)
	var got BackupResponse
	decodeData(t, resp.Body.Bytes(), &got)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, created.Size, got.Size)
}

func TestGetBackup_NotFound(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/api/v1/admin/backups/missing", ts.bearer(t, auth.ScopeRead))

	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, string(domainerrors.CodeNotFound), decodeData(t, resp.Body.Bytes(), nil).Code)
}

func TestDownloadBackup(t *testing.T) {
	ts := setupTestServer(t)
	created := ts.createBackup(t)

	resp := ts.api.Get("/api/v1/admin/backups/"+created.ID+"/download", ts.bearer(t, auth.ScopeBackup))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "application/zip", resp.Header().Get("Content-Type"))
	assert.Contains(t, resp.Header().Get("Content-Disposition"), created.ID+backup.ArchiveSuffix)
	assert.Equal(t, created.Size, int64(resp.Body.Len()))

	// The download is a restorable archive.
	path := ts.backupDir + "/uploads/copy" + backup.ArchiveSuffix
	writeFile(t, path, resp.Body.Bytes())
	b, err := backup.DecodeFile(path)
	require.NoError(t, err)
	assert.NotNil(t, b.Manifest)
}

func TestDeleteBackup(t *testing.T) {
	ts := setupTestServer(t)
	created := ts.createBackup(t)

	resp := ts.api.Delete("/api/v1/admin/backups/"+created.ID, ts.bearer(t, auth.ScopeBackup))
	require.Equal(t, http.StatusOK, resp.Code)

	resp = ts.api.Get("/api/v1/admin/backups/"+created.ID, ts.bearer(t, auth.ScopeRead))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestValidateBackup(t *testing.T) {
	ts := setupTestServer(t)
	upload := ts.uploadBackup(t, "library"+backup.ArchiveSuffix, archiveBytes(t, sampleBackup()))

	resp := ts.api.Post("/api/v1/admin/backups/validate", ts.bearer(t, auth.ScopeRestore),
		map[string]any{"upload": upload})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var result backup.ValidationResult
	decodeData(t, resp.Body.Bytes(), &result)
	assert.True(t, result.Valid)
	assert.Equal(t, backup.FormatArchive, result.Format)
	assert.Equal(t, 2, result.Counts.Manga)
	assert.Equal(t, 2, result.Counts.Chapters)
}

func TestValidateBackup_CorruptUpload(t *testing.T) {
	ts := setupTestServer(t)
	upload := ts.uploadBackup(t, "broken.tachibk", []byte("not a backup"))

	resp := ts.api.Post("/api/v1/admin/backups/validate", ts.bearer(t, auth.ScopeRestore),
		map[string]any{"upload": upload})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var result backup.ValidationResult
	decodeData(t, resp.Body.Bytes(), &result)
	assert.False(t, result.Valid)
	assert.NotEmpty(t, result.Errors)
}

func TestValidateBackup_RejectsTraversal(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Post("/api/v1/admin/backups/validate", ts.bearer(t, auth.ScopeRestore),
		map[string]any{"upload": "../secret.tachibk"})

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}
