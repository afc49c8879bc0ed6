package format

import "errors"

var (
	// ErrInvalidManifest indicates the manifest is missing or malformed.
	ErrInvalidManifest = errors.New("invalid or missing manifest")

	// ErrVersionMismatch indicates the backup version is not supported.
	ErrVersionMismatch = errors.New("backup version not supported")

	// ErrCorruptedBackup indicates the backup failed integrity checks.
	ErrCorruptedBackup = errors.New("backup integrity check failed")

	// ErrUnknownFormat indicates the input is neither an archive nor a
	// protobuf backup.
	ErrUnknownFormat = errors.New("unknown backup format")
)
