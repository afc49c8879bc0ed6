// Package backup creates, lists, validates and restores library backups.
package backup

import (
	"errors"

	"github.com/shelfsy/shelfsy-server/internal/backup/format"
)

// Decode errors. They are shared with the format package so errors.Is works
// whichever layer produced them.
var (
	ErrInvalidManifest = format.ErrInvalidManifest
	ErrVersionMismatch = format.ErrVersionMismatch
	ErrCorruptedBackup = format.ErrCorruptedBackup
	ErrUnknownFormat   = format.ErrUnknownFormat
)

var (
	// ErrBackupNotFound indicates the requested backup does not exist.
	ErrBackupNotFound = errors.New("backup not found")

	// ErrRestoreInProgress indicates another restore is already running.
	ErrRestoreInProgress = errors.New("restore already in progress")

	// ErrJobNotFound indicates the restore job id is unknown.
	ErrJobNotFound = errors.New("restore job not found")
)
