package api

import (
	"context"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/shelfsy/shelfsy-server/internal/auth"
	"github.com/shelfsy/shelfsy-server/internal/backup"
	"github.com/shelfsy/shelfsy-server/internal/sse"
)

func (s *Server) registerAdminBackupRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "createBackup",
		Method:        http.MethodPost,
		Path:          "/api/v1/admin/backups",
		Summary:       "Create backup",
		Description:   "Exports the library into a new backup archive",
		Tags:          []string{"Admin", "Backup"},
		Security:      []map[string][]string{{"bearer": {}}},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateBackup)

	huma.Register(s.api, huma.Operation{
		OperationID: "listBackups",
		Method:      http.MethodGet,
		Path:        "/api/v1/admin/backups",
		Summary:     "List backups",
		Description: "Lists backup archives, newest first",
		Tags:        []string{"Admin", "Backup"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListBackups)

	huma.Register(s.api, huma.Operation{
		OperationID: "getBackup",
		Method:      http.MethodGet,
		Path:        "/api/v1/admin/backups/{id}",
		Summary:     "Get backup details",
		Tags:        []string{"Admin", "Backup"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetBackup)

	huma.Register(s.api, huma.Operation{
		OperationID: "downloadBackup",
		Method:      http.MethodGet,
		Path:        "/api/v1/admin/backups/{id}/download",
		Summary:     "Download backup",
		Tags:        []string{"Admin", "Backup"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDownloadBackup)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteBackup",
		Method:      http.MethodDelete,
		Path:        "/api/v1/admin/backups/{id}",
		Summary:     "Delete backup",
		Tags:        []string{"Admin", "Backup"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteBackup)

	huma.Register(s.api, huma.Operation{
		OperationID: "validateBackup",
		Method:      http.MethodPost,
		Path:        "/api/v1/admin/backups/validate",
		Summary:     "Validate backup",
		Description: "Decodes and checks a backup without restoring it",
		Tags:        []string{"Admin", "Backup"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleValidateBackup)
}

// BackupResponse represents a backup in API responses.
type BackupResponse struct {
	ID        string         `json:"id" doc:"Backup identifier"`
	Path      string         `json:"path" doc:"Backup file path"`
	Size      int64          `json:"size" doc:"Backup file size in bytes"`
	CreatedAt time.Time      `json:"created_at" doc:"When the backup was created"`
	Checksum  string         `json:"checksum,omitempty" doc:"SHA-256 checksum"`
	Counts    *backup.Counts `json:"counts,omitempty" doc:"Records in the backup"`
}

// CreateBackupOutput is the Huma output for creating a backup.
type CreateBackupOutput struct {
	Body BackupResponse
}

// ListBackupsOutput is the Huma output for listing backups.
type ListBackupsOutput struct {
	Body []BackupResponse
}

// BackupIDInput identifies a backup by path.
type BackupIDInput struct {
	ID string `path:"id" doc:"Backup identifier"`
}

// GetBackupOutput is the Huma output for getting a backup.
type GetBackupOutput struct {
	Body BackupResponse
}

// MessageOutput carries a plain confirmation message.
type MessageOutput struct {
	Body struct {
		Message string `json:"message" doc:"Success message"`
	}
}

// ValidateBackupInput is the Huma input for validating a backup.
type ValidateBackupInput struct {
	Body SourceRequest
}

// ValidateBackupOutput is the Huma output for validating a backup.
type ValidateBackupOutput struct {
	Body *backup.ValidationResult
}

func (s *Server) handleCreateBackup(ctx context.Context, _ *struct{}) (*CreateBackupOutput, error) {
	if _, err := s.RequireScope(ctx, auth.ScopeBackup); err != nil {
		return nil, toAPIError(err)
	}

	result, err := s.services.Backup.Create(ctx, backup.BackupOptions{})
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to create backup", err)
	}
	s.emit(sse.NewBackupCreatedEvent(result))

	counts := result.Counts
	return &CreateBackupOutput{
		Body: BackupResponse{
			ID:        result.ID,
			Path:      result.Path,
			Size:      result.Size,
			CreatedAt: time.Now(),
			Checksum:  result.Checksum,
			Counts:    &counts,
		},
	}, nil
}

func (s *Server) handleListBackups(ctx context.Context, _ *struct{}) (*ListBackupsOutput, error) {
	if _, err := s.RequireScope(ctx, auth.ScopeRead); err != nil {
		return nil, toAPIError(err)
	}

	backups, err := s.services.Backup.List(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list backups", err)
	}

	resp := make([]BackupResponse, len(backups))
	for i, b := range backups {
		resp[i] = backupResponse(b)
	}
	return &ListBackupsOutput{Body: resp}, nil
}

func (s *Server) handleGetBackup(ctx context.Context, input *BackupIDInput) (*GetBackupOutput, error) {
	if _, err := s.RequireScope(ctx, auth.ScopeRead); err != nil {
		return nil, toAPIError(err)
	}

	b, err := s.services.Backup.Get(ctx, input.ID)
	if err != nil {
		return nil, toAPIError(err)
	}
	return &GetBackupOutput{Body: backupResponse(*b)}, nil
}

func (s *Server) handleDownloadBackup(ctx context.Context, input *BackupIDInput) (*huma.StreamResponse, error) {
	if _, err := s.RequireScope(ctx, auth.ScopeBackup); err != nil {
		return nil, toAPIError(err)
	}

	b, err := s.services.Backup.Get(ctx, input.ID)
	if err != nil {
		return nil, toAPIError(err)
	}

	f, err := os.Open(b.Path)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to open backup file", err)
	}

	return &huma.StreamResponse{
		Body: func(hctx huma.Context) {
			defer f.Close()
			hctx.SetHeader("Content-Type", "application/zip")
			hctx.SetHeader("Content-Disposition", `attachment; filename="`+input.ID+backup.ArchiveSuffix+`"`)
			if _, err := io.Copy(hctx.BodyWriter(), f); err != nil {
				s.logger.Warn("backup download interrupted", "id", input.ID, "error", err)
			}
		},
	}, nil
}

func (s *Server) handleDeleteBackup(ctx context.Context, input *BackupIDInput) (*MessageOutput, error) {
	if _, err := s.RequireScope(ctx, auth.ScopeBackup); err != nil {
		return nil, toAPIError(err)
	}

	if err := s.services.Backup.Delete(ctx, input.ID); err != nil {
		return nil, toAPIError(err)
	}
	s.emit(sse.NewBackupDeletedEvent(input.ID))

	out := &MessageOutput{}
	out.Body.Message = "Backup deleted"
	return out, nil
}

func (s *Server) handleValidateBackup(ctx context.Context, input *ValidateBackupInput) (*ValidateBackupOutput, error) {
	if _, err := s.RequireScope(ctx, auth.ScopeRestore); err != nil {
		return nil, toAPIError(err)
	}

	path, err := s.resolveSource(ctx, input.Body)
	if err != nil {
		return nil, toAPIError(err)
	}

	result, err := s.services.Restore.Validate(ctx, path)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to validate backup", err)
	}
	return &ValidateBackupOutput{Body: result}, nil
}

func backupResponse(b backup.BackupInfo) BackupResponse {
	return BackupResponse{
		ID:        b.ID,
		Path:      b.Path,
		Size:      b.Size,
		CreatedAt: b.CreatedAt,
	}
}

func (s *Server) emit(event sse.Event) {
	if s.sseManager != nil {
		s.sseManager.Emit(event)
	}
}
