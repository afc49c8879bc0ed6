package backup_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfsy/shelfsy-server/internal/backup"
	"github.com/shelfsy/shelfsy-server/internal/backup/export"
	"github.com/shelfsy/shelfsy-server/internal/backup/format"
	backupimport "github.com/shelfsy/shelfsy-server/internal/backup/import"
	"github.com/shelfsy/shelfsy-server/internal/backup/tachibk"
	"github.com/shelfsy/shelfsy-server/internal/domain"
	"github.com/shelfsy/shelfsy-server/internal/store/sqlite"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	store     *sqlite.Store
	backupSvc *backup.BackupService
	restore   *backup.RestoreService
	backupDir string
	logDir    string
}

// testSetup creates a store with backup and restore services on top.
func testSetup(t *testing.T) *testEnv {
	t.Helper()
	tmpDir := t.TempDir()

	s, err := sqlite.Open(filepath.Join(tmpDir, "library.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	env := &testEnv{
		store:     s,
		backupDir: filepath.Join(tmpDir, "backups"),
		logDir:    filepath.Join(tmpDir, "logs"),
	}
	env.backupSvc = backup.NewBackupService(export.New(s, nil, "test", testLogger()), env.backupDir, testLogger())

	restorer := backupimport.New(s, nil, nil, nil, backupimport.Config{LogDir: env.logDir}, testLogger())
	env.restore = backup.NewRestoreService(restorer, nil, testLogger())
	return env
}

func sampleBackup() *format.Backup {
	return &format.Backup{
		Categories: []format.Category{{Name: "Reading", Order: 0}},
		Manga: []format.Manga{
			{
				Source: 1, URL: "/a", Title: "A", Favorite: true,
				Categories: []int64{0},
				Chapters: []format.Chapter{
					{URL: "/a/1", Name: "One", Read: true},
					{URL: "/a/2", Name: "Two"},
				},
			},
			{Source: 2, URL: "/b", Title: "B", Favorite: true},
		},
	}
}

func writeArchive(t *testing.T, dir string, b *format.Backup) string {
	t.Helper()
	var buf bytes.Buffer
	_, err := format.WriteArchive(&buf, b, "test", time.Now())
	require.NoError(t, err)
	path := filepath.Join(dir, "sample.shelfsy.zip")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func writeTachibk(t *testing.T, dir string, b *format.Backup) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, tachibk.Encode(&buf, b))
	path := filepath.Join(dir, "sample.tachibk")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func TestBackupService_CreateListGetDelete(t *testing.T) {
	env := testSetup(t)
	ctx := context.Background()

	require.NoError(t, env.store.InsertManga(ctx, &domain.Manga{Source: 1, URL: "/a", Title: "A"}))

	result, err := env.backupSvc.Create(ctx, backup.BackupOptions{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.ID, "backup-"))
	assert.Equal(t, env.backupSvc.GetPath(result.ID), result.Path)
	assert.Equal(t, 1, result.Counts.Manga)
	assert.NotEmpty(t, result.Checksum)

	// Non-archive files are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(env.backupDir, "notes.txt"), []byte("x"), 0o600))

	list, err := env.backupSvc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, result.ID, list[0].ID)

	info, err := env.backupSvc.Get(ctx, result.ID)
	require.NoError(t, err)
	assert.Equal(t, result.Size, info.Size)

	require.NoError(t, env.backupSvc.Delete(ctx, result.ID))
	_, err = env.backupSvc.Get(ctx, result.ID)
	assert.ErrorIs(t, err, backup.ErrBackupNotFound)
	assert.ErrorIs(t, env.backupSvc.Delete(ctx, result.ID), backup.ErrBackupNotFound)
}

func TestBackupService_Retention(t *testing.T) {
	env := testSetup(t)
	ctx := context.Background()
	env.backupSvc.SetRetention(2)

	var ids []string
	for range 3 {
		res, err := env.backupSvc.Create(ctx, backup.BackupOptions{})
		require.NoError(t, err)
		ids = append(ids, res.ID)
		if len(ids) == 3 {
			assert.Equal(t, []string{ids[0]}, res.Pruned)
		} else {
			assert.Empty(t, res.Pruned)
		}
	}
	assert.Len(t, slices.Compact(slices.Sorted(slices.Values(ids))), 3, "ids are unique within one second")

	list, err := env.backupSvc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, ids[2], list[0].ID)
	assert.Equal(t, ids[1], list[1].ID)
}

func TestBackupService_ListMissingDir(t *testing.T) {
	env := testSetup(t)
	list, err := env.backupSvc.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestBackupService_GetRejectsTraversal(t *testing.T) {
	env := testSetup(t)
	for _, id := range []string{"", "..", "../secrets", `a\b`} {
		_, err := env.backupSvc.Get(context.Background(), id)
		assert.ErrorIs(t, err, backup.ErrBackupNotFound, id)
	}
}

func TestBackupService_GetUploadsDir(t *testing.T) {
	env := testSetup(t)
	dir, err := env.backupSvc.GetUploadsDir()
	require.NoError(t, err)
	assert.DirExists(t, dir)
	assert.Equal(t, filepath.Join(env.backupDir, "uploads"), dir)
}

func TestDecodeFile_DetectsFormat(t *testing.T) {
	dir := t.TempDir()

	archive := writeArchive(t, dir, sampleBackup())
	b, err := backup.DecodeFile(archive)
	require.NoError(t, err)
	require.NotNil(t, b.Manifest)
	assert.Len(t, b.Manga, 2)

	proto := writeTachibk(t, dir, sampleBackup())
	b, err = backup.DecodeFile(proto)
	require.NoError(t, err)
	assert.Nil(t, b.Manifest)
	assert.Len(t, b.Manga, 2)
	assert.Len(t, b.Manga[0].Chapters, 2)
}

func TestDecode_UnknownFormat(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("P"), []byte("not a backup")} {
		_, err := backup.Decode(bytes.NewReader(data), int64(len(data)))
		assert.ErrorIs(t, err, backup.ErrUnknownFormat)
	}
}

func TestDetectFormat(t *testing.T) {
	f, err := backup.DetectFormat(bytes.NewReader([]byte("PK\x03\x04rest")))
	require.NoError(t, err)
	assert.Equal(t, backup.FormatArchive, f)

	f, err = backup.DetectFormat(bytes.NewReader([]byte{0x1f, 0x8b, 0x08}))
	require.NoError(t, err)
	assert.Equal(t, backup.FormatProtobuf, f)
}

func TestRestoreService_Run(t *testing.T) {
	env := testSetup(t)
	ctx := context.Background()
	path := writeArchive(t, t.TempDir(), sampleBackup())

	res, err := env.restore.Run(ctx, path, backup.RestoreOptions{})
	require.NoError(t, err)
	assert.Equal(t, backupimport.StateDone, res.State)
	assert.Equal(t, 2, res.Restored)
	assert.Equal(t, 4, res.Total)

	m, err := env.store.GetMangaBySourceURL(ctx, 1, "/a")
	require.NoError(t, err)
	ids, err := env.store.GetMangaCategoryIDs(ctx, m.ID)
	require.NoError(t, err)
	assert.Len(t, ids, 1)

	assert.Nil(t, env.restore.Active())
}

type recordingObserver struct {
	mu      sync.Mutex
	updates []backup.JobStatus
}

func (o *recordingObserver) JobUpdated(st backup.JobStatus) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.updates = append(o.updates, st)
}

func TestRestoreService_Observer(t *testing.T) {
	env := testSetup(t)
	obs := &recordingObserver{}
	env.restore.SetObserver(obs)
	path := writeArchive(t, t.TempDir(), sampleBackup())

	_, err := env.restore.Run(context.Background(), path, backup.RestoreOptions{Sync: true})
	require.NoError(t, err)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	require.NotEmpty(t, obs.updates)
	assert.Equal(t, backupimport.StateDecoding, obs.updates[0].State)

	last := obs.updates[len(obs.updates)-1]
	assert.Equal(t, backupimport.StateDone, last.State)
	assert.Equal(t, 2, last.Restored)
	assert.False(t, last.FinishedAt.IsZero())

	var sawProgress bool
	for _, st := range obs.updates {
		if st.ContentTitle == backupimport.ContentTitleSync && st.Progress > 0 {
			sawProgress = true
		}
	}
	assert.True(t, sawProgress)
}

func TestRestoreService_RunRejectsBeforeWriting(t *testing.T) {
	env := testSetup(t)
	ctx := context.Background()
	dir := t.TempDir()

	garbage := filepath.Join(dir, "garbage.bin")
	require.NoError(t, os.WriteFile(garbage, []byte("definitely not"), 0o600))
	_, err := env.restore.Run(ctx, garbage, backup.RestoreOptions{})
	assert.ErrorIs(t, err, backup.ErrUnknownFormat)

	bad := sampleBackup()
	bad.Manga[1].URL = ""
	_, err = env.restore.Run(ctx, writeArchive(t, dir, bad), backup.RestoreOptions{})
	require.Error(t, err)

	all, err := env.store.ListMangas(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	cats, err := env.store.ListCategories(ctx)
	require.NoError(t, err)
	assert.Empty(t, cats)
}

func TestRestoreService_StartAndJob(t *testing.T) {
	env := testSetup(t)
	path := writeArchive(t, t.TempDir(), sampleBackup())

	job, err := env.restore.Start(context.Background(), path, backup.RestoreOptions{Sync: true})
	require.NoError(t, err)
	require.NotEmpty(t, job.ID)

	select {
	case <-job.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("restore did not finish")
	}

	got, err := env.restore.Job(job.ID)
	require.NoError(t, err)
	st := got.Status()
	assert.Equal(t, backupimport.StateDone, st.State)
	assert.True(t, st.Sync)
	assert.Equal(t, 4, st.Total)
	assert.Equal(t, 2, st.Restored)
	assert.False(t, st.FinishedAt.IsZero())

	_, err = env.restore.Job("missing")
	assert.ErrorIs(t, err, backup.ErrJobNotFound)
	assert.ErrorIs(t, env.restore.Cancel("missing"), backup.ErrJobNotFound)
}

// blockingRestorer waits until released or cancelled. started is buffered
// so each run can signal once.
type blockingRestorer struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingRestorer) Restore(ctx context.Context, _ *format.Backup, opts backupimport.Options) (*backupimport.Result, error) {
	opts.OnState(backupimport.StateRestoringManga)
	b.started <- struct{}{}
	select {
	case <-ctx.Done():
		return &backupimport.Result{State: backupimport.StateCancelled}, nil
	case <-b.release:
		return &backupimport.Result{State: backupimport.StateDone}, nil
	}
}

func TestRestoreService_SingleActiveRun(t *testing.T) {
	restorer := &blockingRestorer{started: make(chan struct{}, 1), release: make(chan struct{})}
	svc := backup.NewRestoreService(restorer, nil, testLogger())
	path := writeArchive(t, t.TempDir(), sampleBackup())

	job, err := svc.Start(context.Background(), path, backup.RestoreOptions{})
	require.NoError(t, err)
	<-restorer.started
	assert.Equal(t, backupimport.StateRestoringManga, job.Status().State)
	assert.Same(t, job, svc.Active())

	_, err = svc.Start(context.Background(), path, backup.RestoreOptions{})
	assert.ErrorIs(t, err, backup.ErrRestoreInProgress)
	_, err = svc.Run(context.Background(), path, backup.RestoreOptions{})
	assert.ErrorIs(t, err, backup.ErrRestoreInProgress)

	close(restorer.release)
	<-job.Done()
	assert.Nil(t, svc.Active())

	// The slot is free as soon as Done is closed.
	next, err := svc.Start(context.Background(), path, backup.RestoreOptions{})
	require.NoError(t, err)
	<-restorer.started
	<-next.Done()
}

// instantRestorer finishes every run at once.
type instantRestorer struct{}

func (instantRestorer) Restore(context.Context, *format.Backup, backupimport.Options) (*backupimport.Result, error) {
	return &backupimport.Result{State: backupimport.StateDone}, nil
}

func TestRestoreService_EvictsOldFinishedJobs(t *testing.T) {
	svc := backup.NewRestoreService(instantRestorer{}, nil, testLogger())
	path := writeArchive(t, t.TempDir(), sampleBackup())

	var ids []string
	for range 25 {
		job, err := svc.Start(context.Background(), path, backup.RestoreOptions{})
		require.NoError(t, err)
		<-job.Done()
		ids = append(ids, job.ID)
	}

	for _, id := range ids[:5] {
		_, err := svc.Job(id)
		assert.ErrorIs(t, err, backup.ErrJobNotFound)
	}
	for _, id := range ids[5:] {
		_, err := svc.Job(id)
		assert.NoError(t, err)
	}
}

func TestRestoreService_Cancel(t *testing.T) {
	restorer := &blockingRestorer{started: make(chan struct{}, 1), release: make(chan struct{})}
	svc := backup.NewRestoreService(restorer, nil, testLogger())
	path := writeArchive(t, t.TempDir(), sampleBackup())

	// The caller's context ending does not stop a started job.
	ctx, cancel := context.WithCancel(context.Background())
	job, err := svc.Start(ctx, path, backup.RestoreOptions{})
	require.NoError(t, err)
	cancel()
	<-restorer.started

	require.NoError(t, svc.Cancel(job.ID))
	<-job.Done()

	res, err := job.Result()
	require.NoError(t, err)
	assert.True(t, res.Cancelled())
	assert.Equal(t, backupimport.StateCancelled, job.Status().State)
}

func TestRestoreService_Validate(t *testing.T) {
	env := testSetup(t)
	ctx := context.Background()
	dir := t.TempDir()

	res, err := env.restore.Validate(ctx, writeArchive(t, dir, sampleBackup()))
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, backup.FormatArchive, res.Format)
	require.NotNil(t, res.Manifest)
	assert.Equal(t, 2, res.Counts.Manga)
	assert.Equal(t, 2, res.Counts.Chapters)

	res, err = env.restore.Validate(ctx, writeTachibk(t, dir, sampleBackup()))
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, backup.FormatProtobuf, res.Format)

	bad := sampleBackup()
	bad.Manga[0].Chapters[1].URL = ""
	res, err = env.restore.Validate(ctx, writeTachibk(t, dir, bad))
	require.NoError(t, err)
	assert.False(t, res.Valid)
	require.Len(t, res.Errors, 1)

	garbage := filepath.Join(dir, "garbage")
	require.NoError(t, os.WriteFile(garbage, []byte("nope"), 0o600))
	res, err = env.restore.Validate(ctx, garbage)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.NotEmpty(t, res.Errors)

	// Nothing was restored.
	all, err := env.store.ListMangas(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}
