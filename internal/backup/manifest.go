package backup

import (
	"slices"
	"strings"

	"github.com/shelfsy/shelfsy-server/internal/backup/format"
)

// FormatVersion is the archive format version written by this server.
const FormatVersion = format.FormatVersion

// Manifest describes archive contents and metadata.
type Manifest = format.Manifest

// Counts tracks entity counts for validation and progress reporting.
type Counts = format.Counts

// ArchiveSuffix is the file suffix of archives created by BackupService.
const ArchiveSuffix = ".shelfsy.zip"

// restorableSuffixes lists the file names accepted for restore.
var restorableSuffixes = []string{ArchiveSuffix, ".tachibk", ".proto.gz"}

// IsBackupFile reports whether name looks like a restorable backup.
func IsBackupFile(name string) bool {
	name = strings.ToLower(name)
	return slices.ContainsFunc(restorableSuffixes, func(s string) bool {
		return strings.HasSuffix(name, s)
	})
}
