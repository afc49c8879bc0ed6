package api

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shelfsy/shelfsy-server/internal/backup"
	"github.com/shelfsy/shelfsy-server/internal/http/response"
)

const (
	// maxUploadSize caps uploaded backups.
	maxUploadSize = 1 << 30

	uploadTimeout = 10 * time.Minute
	uploadField   = "backup"
)

// UploadResponse names a stored upload for the restore and validate endpoints.
type UploadResponse struct {
	Upload string `json:"upload"`
	Size   int64  `json:"size"`
}

// withExtendedTimeout wraps a handler to extend read/write timeouts for large uploads.
// This MUST be called before any body reading occurs.
func withExtendedTimeout(next http.HandlerFunc, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rc := http.NewResponseController(w)
		deadline := time.Now().Add(timeout)
		_ = rc.SetReadDeadline(deadline)
		_ = rc.SetWriteDeadline(deadline)
		next(w, r)
	}
}

// handleUploadBackup stores a multipart backup file in the uploads directory.
// This is a chi handler since huma does not stream multipart bodies.
func (s *Server) handleUploadBackup(w http.ResponseWriter, r *http.Request) {
	uploadsDir, err := s.services.Backup.GetUploadsDir()
	if err != nil {
		s.logger.Error("failed to get uploads directory", "error", err)
		response.InternalError(w, "internal server error", s.logger)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		response.BadRequest(w, "missing form file "+uploadField, s.logger)
		return
	}
	defer file.Close()

	orig := filepath.Base(header.Filename)
	if !backup.IsBackupFile(orig) {
		response.BadRequest(w, fmt.Sprintf("%q is not a backup file", orig), s.logger)
		return
	}

	name := fmt.Sprintf("upload-%d-%s", time.Now().UnixNano(), strings.ReplaceAll(orig, " ", "_"))
	dest := filepath.Join(uploadsDir, name)

	out, err := os.Create(dest)
	if err != nil {
		s.logger.Error("failed to create upload file", "error", err, "path", dest)
		response.InternalError(w, "failed to store upload", s.logger)
		return
	}

	n, err := io.Copy(out, file)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dest)
		s.logger.Error("failed to write upload", "error", err)
		response.InternalError(w, "failed to store upload", s.logger)
		return
	}

	s.logger.Info("backup uploaded", "path", dest, "original_filename", orig, "size", n)
	response.JSON(w, http.StatusCreated, UploadResponse{Upload: name, Size: n}, s.logger)
}
