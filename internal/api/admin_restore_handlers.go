package api

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/shelfsy/shelfsy-server/internal/auth"
	"github.com/shelfsy/shelfsy-server/internal/backup"
	"github.com/shelfsy/shelfsy-server/internal/backup/remote"
	domainerrors "github.com/shelfsy/shelfsy-server/internal/errors"
)

func (s *Server) registerAdminRestoreRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "restore",
		Method:        http.MethodPost,
		Path:          "/api/v1/admin/restore",
		Summary:       "Restore from backup",
		Description:   "Starts restoring a stored or uploaded backup into the library. Progress is streamed on the events endpoint.",
		Tags:          []string{"Admin", "Restore"},
		Security:      []map[string][]string{{"bearer": {}}},
		DefaultStatus: http.StatusAccepted,
	}, s.handleRestore)

	huma.Register(s.api, huma.Operation{
		OperationID:   "restoreRemote",
		Method:        http.MethodPost,
		Path:          "/api/v1/admin/restore/remote",
		Summary:       "Restore from remote storage",
		Description:   "Downloads a backup object from the configured bucket and starts restoring it",
		Tags:          []string{"Admin", "Restore"},
		Security:      []map[string][]string{{"bearer": {}}},
		DefaultStatus: http.StatusAccepted,
	}, s.handleRestoreRemote)

	huma.Register(s.api, huma.Operation{
		OperationID: "getActiveRestore",
		Method:      http.MethodGet,
		Path:        "/api/v1/admin/restore/active",
		Summary:     "Get running restore",
		Tags:        []string{"Admin", "Restore"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetActiveRestore)

	huma.Register(s.api, huma.Operation{
		OperationID: "getRestore",
		Method:      http.MethodGet,
		Path:        "/api/v1/admin/restore/{id}",
		Summary:     "Get restore status",
		Tags:        []string{"Admin", "Restore"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetRestore)

	huma.Register(s.api, huma.Operation{
		OperationID:   "cancelRestore",
		Method:        http.MethodDelete,
		Path:          "/api/v1/admin/restore/{id}",
		Summary:       "Cancel restore",
		Description:   "Asks the restore to stop. The manga being restored is finished first.",
		Tags:          []string{"Admin", "Restore"},
		Security:      []map[string][]string{{"bearer": {}}},
		DefaultStatus: http.StatusAccepted,
	}, s.handleCancelRestore)
}

// SourceRequest names the backup file to read. Exactly one field is set.
type SourceRequest struct {
	BackupID string `json:"backup_id,omitempty" doc:"ID of a stored backup"`
	Upload   string `json:"upload,omitempty" doc:"Name returned by the upload endpoint"`
}

// RestoreRequest is the request body for restoring from backup.
type RestoreRequest struct {
	SourceRequest
	Sync bool `json:"sync,omitempty" doc:"Report the run as a library sync"`
}

// RestoreInput is the Huma input for restoring from backup.
type RestoreInput struct {
	Body RestoreRequest
}

// RemoteRestoreRequest is the request body for restoring a remote object.
type RemoteRestoreRequest struct {
	Key  string `json:"key" minLength:"1" doc:"Object key in the configured bucket"`
	Sync bool   `json:"sync,omitempty" doc:"Report the run as a library sync"`
}

// RemoteRestoreInput is the Huma input for restoring a remote object.
type RemoteRestoreInput struct {
	Body RemoteRestoreRequest
}

// RestoreJobInput identifies a restore job.
type RestoreJobInput struct {
	ID string `path:"id" doc:"Restore job ID"`
}

// RestoreJobOutput returns a job snapshot.
type RestoreJobOutput struct {
	Body backup.JobStatus
}

func (s *Server) handleRestore(ctx context.Context, input *RestoreInput) (*RestoreJobOutput, error) {
	if _, err := s.RequireScope(ctx, auth.ScopeRestore); err != nil {
		return nil, toAPIError(err)
	}

	path, err := s.resolveSource(ctx, input.Body.SourceRequest)
	if err != nil {
		return nil, toAPIError(err)
	}
	return s.startRestore(ctx, path, input.Body.Sync)
}

func (s *Server) handleRestoreRemote(ctx context.Context, input *RemoteRestoreInput) (*RestoreJobOutput, error) {
	if _, err := s.RequireScope(ctx, auth.ScopeRestore); err != nil {
		return nil, toAPIError(err)
	}
	if s.services.Remote == nil {
		return nil, toAPIError(remote.ErrNotConfigured)
	}
	if !backup.IsBackupFile(input.Body.Key) {
		return nil, toAPIError(domainerrors.Validationf("%q is not a backup file", input.Body.Key))
	}

	dir, err := s.services.Backup.GetUploadsDir()
	if err != nil {
		return nil, toAPIError(err)
	}
	path, err := s.services.Remote.Fetch(ctx, input.Body.Key, dir)
	if err != nil {
		return nil, toAPIError(err)
	}
	return s.startRestore(ctx, path, input.Body.Sync)
}

func (s *Server) handleGetActiveRestore(ctx context.Context, _ *struct{}) (*RestoreJobOutput, error) {
	if _, err := s.RequireScope(ctx, auth.ScopeRead); err != nil {
		return nil, toAPIError(err)
	}

	job := s.services.Restore.Active()
	if job == nil {
		return nil, toAPIError(domainerrors.NotFound("no restore is running"))
	}
	return &RestoreJobOutput{Body: job.Status()}, nil
}

func (s *Server) handleGetRestore(ctx context.Context, input *RestoreJobInput) (*RestoreJobOutput, error) {
	if _, err := s.RequireScope(ctx, auth.ScopeRead); err != nil {
		return nil, toAPIError(err)
	}

	job, err := s.services.Restore.Job(input.ID)
	if err != nil {
		return nil, toAPIError(err)
	}
	return &RestoreJobOutput{Body: job.Status()}, nil
}

func (s *Server) handleCancelRestore(ctx context.Context, input *RestoreJobInput) (*RestoreJobOutput, error) {
	if _, err := s.RequireScope(ctx, auth.ScopeRestore); err != nil {
		return nil, toAPIError(err)
	}

	if err := s.services.Restore.Cancel(input.ID); err != nil {
		return nil, toAPIError(err)
	}
	job, err := s.services.Restore.Job(input.ID)
	if err != nil {
		return nil, toAPIError(err)
	}
	return &RestoreJobOutput{Body: job.Status()}, nil
}

func (s *Server) startRestore(ctx context.Context, path string, sync bool) (*RestoreJobOutput, error) {
	job, err := s.services.Restore.Start(ctx, path, backup.RestoreOptions{Sync: sync})
	if err != nil {
		return nil, toAPIError(err)
	}
	s.logger.Info("restore started", "job_id", job.ID, "path", path, "sync", sync)
	return &RestoreJobOutput{Body: job.Status()}, nil
}

// resolveSource maps a request to a file inside the backup or uploads
// directory.
func (s *Server) resolveSource(ctx context.Context, req SourceRequest) (string, error) {
	switch {
	case req.BackupID != "" && req.Upload != "":
		return "", domainerrors.Validation("set either backup_id or upload, not both")
	case req.BackupID != "":
		info, err := s.services.Backup.Get(ctx, req.BackupID)
		if err != nil {
			return "", err
		}
		return info.Path, nil
	case req.Upload != "":
		if !safeName(req.Upload) || !backup.IsBackupFile(req.Upload) {
			return "", domainerrors.Validationf("invalid upload name %q", req.Upload)
		}
		dir, err := s.services.Backup.GetUploadsDir()
		if err != nil {
			return "", err
		}
		path := filepath.Join(dir, req.Upload)
		if _, err := os.Stat(path); err != nil {
			return "", domainerrors.NotFoundf("upload %q not found", req.Upload)
		}
		return path, nil
	default:
		return "", domainerrors.Validation("backup_id or upload is required")
	}
}

// safeName rejects names that would escape their directory.
func safeName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}
