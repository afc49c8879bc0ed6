package backup

import (
	"time"

	backupimport "github.com/shelfsy/shelfsy-server/internal/backup/import"
)

// Format identifies a backup container.
type Format string

const (
	// FormatArchive is the zip archive with a manifest and JSONL manga.
	FormatArchive Format = "archive"

	// FormatProtobuf is the legacy gzip compressed protobuf backup.
	FormatProtobuf Format = "protobuf"
)

// Valid returns true if the format is recognized.
func (f Format) Valid() bool {
	switch f {
	case FormatArchive, FormatProtobuf:
		return true
	default:
		return false
	}
}

// BackupOptions configures backup creation.
type BackupOptions struct {
	OutputPath string // Where to write the backup file
}

// RestoreOptions configures restoration.
type RestoreOptions struct {
	// Sync marks a restore triggered by library sync. It only changes the
	// notification titles.
	Sync bool
}

// BackupResult contains the outcome of a backup operation.
type BackupResult struct {
	ID       string        `json:"id"`
	Path     string        `json:"path"`
	Size     int64         `json:"size"`
	Counts   Counts        `json:"counts"`
	Duration time.Duration `json:"duration"`
	Checksum string        `json:"checksum"`
	// Pruned lists archives removed by the retention limit.
	Pruned []string `json:"pruned,omitempty"`
}

// BackupInfo describes an existing backup.
type BackupInfo struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// ValidationResult describes backup validity.
type ValidationResult struct {
	Valid    bool      `json:"valid"`
	Format   Format    `json:"format,omitempty"`
	Manifest *Manifest `json:"manifest,omitempty"`
	Counts   Counts    `json:"counts"`
	Errors   []string  `json:"errors,omitempty"`
}

// JobStatus is a point-in-time view of a restore job.
type JobStatus struct {
	ID           string             `json:"id"`
	Path         string             `json:"path"`
	Sync         bool               `json:"sync"`
	State        backupimport.State `json:"state"`
	StartedAt    time.Time          `json:"started_at"`
	FinishedAt   time.Time          `json:"finished_at,omitzero"`
	Title        string             `json:"title,omitempty"`
	ContentTitle string             `json:"content_title,omitempty"`
	Progress     int                `json:"progress"`
	Total        int                `json:"total"`
	Restored     int                `json:"restored"`
	ErrorCount   int                `json:"error_count"`
	LogDir       string             `json:"log_dir,omitempty"`
	LogFile      string             `json:"log_file,omitempty"`
	Error        string             `json:"error,omitempty"`
}
