package providers

import (
	"context"
	"errors"

	"github.com/samber/do/v2"

	"github.com/shelfsy/shelfsy-server/internal/backup"
	"github.com/shelfsy/shelfsy-server/internal/backup/export"
	backupimport "github.com/shelfsy/shelfsy-server/internal/backup/import"
	"github.com/shelfsy/shelfsy-server/internal/backup/remote"
	"github.com/shelfsy/shelfsy-server/internal/config"
	"github.com/shelfsy/shelfsy-server/internal/logger"
	"github.com/shelfsy/shelfsy-server/internal/sse"
	"github.com/shelfsy/shelfsy-server/internal/validation"
)

// ProvideValidator provides the shared struct validator.
func ProvideValidator(i do.Injector) (*validation.Validator, error) {
	return validation.New(), nil
}

// ProvideRestorer provides the restore pipeline that merges backups into
// the library.
func ProvideRestorer(i do.Injector) (*backupimport.Restorer, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	infoHandle := do.MustInvoke[*CustomInfoHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)

	restoreLog := log.Component("restore")
	return backupimport.New(
		storeHandle.Store,
		infoHandle.Store,
		indexHandle.SearchIndex,
		backupimport.LogNotifier{Logger: restoreLog},
		backupimport.Config{
			LogDir:        cfg.Storage.RestoreLogDir,
			FollowingDays: cfg.Restore.FollowingDays,
			LeadingDays:   cfg.Restore.LeadingDays,
			SourceRemap:   cfg.Restore.SourceRemap,
		},
		restoreLog,
	), nil
}

// ProvideBackupService provides backup creation and listing.
func ProvideBackupService(i do.Injector) (*backup.BackupService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	infoHandle := do.MustInvoke[*CustomInfoHandle](i)

	exporter := export.New(storeHandle.Store, infoHandle.Store, cfg.App.Version, log.Component("export"))
	svc := backup.NewBackupService(exporter, cfg.Storage.BackupDir, log.Component("backup"))
	svc.SetRetention(cfg.Storage.BackupKeep)
	return svc, nil
}

// ProvideRestoreService provides the restore job service. Job updates are
// broadcast on the SSE manager.
func ProvideRestoreService(i do.Injector) (*backup.RestoreService, error) {
	log := do.MustInvoke[*logger.Logger](i)
	restorer := do.MustInvoke[*backupimport.Restorer](i)
	validator := do.MustInvoke[*validation.Validator](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)

	svc := backup.NewRestoreService(restorer, validator, log.Component("restore"))
	svc.SetObserver(sse.NewRestoreNotifier(sseHandle.Manager))
	return svc, nil
}

// RemoteFetcherHandle holds the S3 fetcher. Fetcher is nil when no bucket
// is configured.
type RemoteFetcherHandle struct {
	Fetcher *remote.Fetcher
}

// ProvideRemoteFetcher provides the S3 backup fetcher.
func ProvideRemoteFetcher(i do.Injector) (*RemoteFetcherHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	fetcher, err := remote.New(context.Background(), remote.Config{
		Endpoint:  cfg.S3.Endpoint,
		Region:    cfg.S3.Region,
		Bucket:    cfg.S3.Bucket,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
	}, log.Component("remote"))
	if errors.Is(err, remote.ErrNotConfigured) {
		log.Info("Remote backup storage disabled")
		return &RemoteFetcherHandle{}, nil
	}
	if err != nil {
		return nil, err
	}

	log.Info("Remote backup storage enabled", "bucket", cfg.S3.Bucket, "endpoint", cfg.S3.Endpoint)
	return &RemoteFetcherHandle{Fetcher: fetcher}, nil
}
