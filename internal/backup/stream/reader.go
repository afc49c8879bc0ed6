package stream

import (
	"archive/zip"
	"bufio"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"

	"golang.org/x/crypto/blake2b"
)

// ErrFileNotFound indicates a file was not found in the backup archive.
var ErrFileNotFound = errors.New("file not found in backup")

// maxLineSize bounds a single JSONL record. A manga line carries all of its
// chapters and history.
const maxLineSize = 64 << 20

// OpenFile finds and opens a file from a zip archive.
func OpenFile(zr *zip.Reader, path string) (io.ReadCloser, error) {
	for _, f := range zr.File {
		if f.Name == path {
			return f.Open()
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
}

// ReadValue decodes a single JSON document stored at path.
func ReadValue[T any](zr *zip.Reader, path string) (T, error) {
	var v T
	rc, err := OpenFile(zr, path)
	if err != nil {
		return v, err
	}
	defer rc.Close()

	if err := json.NewDecoder(rc).Decode(&v); err != nil {
		return v, fmt.Errorf("decode %s: %w", path, err)
	}
	return v, nil
}

// Checksum returns the hex blake2b-256 of the member at path.
func Checksum(zr *zip.Reader, path string) (string, error) {
	rc, err := OpenFile(zr, path)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	h, _ := blake2b.New256(nil)
	if _, err := io.Copy(h, rc); err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Reader streams entities from a JSONL file in a zip archive.
type Reader[T any] struct {
	rc      io.ReadCloser
	scanner *bufio.Scanner
	line    int
}

// NewReader creates a streaming reader for type T.
func NewReader[T any](rc io.ReadCloser) *Reader[T] {
	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLineSize)
	return &Reader[T]{
		rc:      rc,
		scanner: scanner,
	}
}

// All returns an iterator over all entities in the file. A line that fails
// to parse yields an error carrying its line number and iteration continues.
func (r *Reader[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		defer r.rc.Close()

		for r.scanner.Scan() {
			r.line++
			line := r.scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			var entity T
			if err := json.Unmarshal(line, &entity); err != nil {
				var zero T
				if !yield(zero, fmt.Errorf("line %d: %w", r.line, err)) {
					return
				}
				continue
			}
			if !yield(entity, nil) {
				return
			}
		}

		if err := r.scanner.Err(); err != nil {
			var zero T
			yield(zero, err)
		}
	}
}
