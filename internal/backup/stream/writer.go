// Package stream provides JSON and JSONL streaming to and from zip archives,
// with a blake2b checksum of every member written.
package stream

import (
	"archive/zip"
	"encoding/hex"
	"encoding/json"
	"hash"
	"io"

	"golang.org/x/crypto/blake2b"
)

// Writer streams entities as JSONL to a zip archive.
type Writer struct {
	enc   *json.Encoder
	sum   hash.Hash
	count int
}

// NewWriter creates a writer for a path within the zip.
func NewWriter(zw *zip.Writer, path string) (*Writer, error) {
	w, err := zw.Create(path)
	if err != nil {
		return nil, err
	}

	// blake2b.New256 only fails for oversized keys.
	sum, _ := blake2b.New256(nil)
	enc := json.NewEncoder(io.MultiWriter(w, sum))
	enc.SetEscapeHTML(false)

	return &Writer{enc: enc, sum: sum}, nil
}

// Write encodes a single entity as a JSON line.
func (w *Writer) Write(entity any) error {
	if err := w.enc.Encode(entity); err != nil {
		return err
	}
	w.count++
	return nil
}

// Count returns entities written so far.
func (w *Writer) Count() int {
	return w.count
}

// Sum returns the hex blake2b-256 of the bytes written so far.
func (w *Writer) Sum() string {
	return hex.EncodeToString(w.sum.Sum(nil))
}

// WriteValue writes v as the single JSON document at path and returns its
// checksum.
func WriteValue(zw *zip.Writer, path string, v any) (string, error) {
	w, err := NewWriter(zw, path)
	if err != nil {
		return "", err
	}
	if err := w.Write(v); err != nil {
		return "", err
	}
	return w.Sum(), nil
}
