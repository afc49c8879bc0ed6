package backup

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/shelfsy/shelfsy-server/internal/backup/format"
	"github.com/shelfsy/shelfsy-server/internal/backup/tachibk"
)

var (
	zipMagic  = []byte("PK\x03\x04")
	gzipMagic = []byte{0x1f, 0x8b}
)

// DetectFormat identifies the container from its leading bytes.
func DetectFormat(r io.ReaderAt) (Format, error) {
	head := make([]byte, len(zipMagic))
	n, err := r.ReadAt(head, 0)
	if err != nil && err != io.EOF {
		return "", err
	}
	head = head[:n]

	switch {
	case bytes.HasPrefix(head, zipMagic):
		return FormatArchive, nil
	case bytes.HasPrefix(head, gzipMagic):
		return FormatProtobuf, nil
	default:
		return "", ErrUnknownFormat
	}
}

// Decode reads a backup of either format. Nothing is written anywhere.
func Decode(r io.ReaderAt, size int64) (*format.Backup, error) {
	f, err := DetectFormat(r)
	if err != nil {
		return nil, err
	}
	switch f {
	case FormatArchive:
		return format.ReadArchive(r, size)
	default:
		return tachibk.Decode(io.NewSectionReader(r, 0, size))
	}
}

// DecodeFile decodes the backup at path.
func DecodeFile(path string) (*format.Backup, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open backup: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat backup: %w", err)
	}
	return Decode(f, info.Size())
}
