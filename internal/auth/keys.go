// Package auth issues and verifies PASETO admin tokens.
package auth

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	// keyLength is the size of a PASETO v4 local key.
	keyLength   = 32
	keyFileName = "token.key"
)

// KeyPath is where LoadOrGenerateKey keeps the key for dataDir.
func KeyPath(dataDir string) string {
	return filepath.Join(dataDir, keyFileName)
}

// LoadOrGenerateKey returns the hex encoded key stored in the data dir. On
// first start a random key is generated and written there. Tokens issued
// with it survive restarts, and deleting the file revokes them all.
func LoadOrGenerateKey(dataDir string) ([]byte, error) {
	path := KeyPath(dataDir)
	key, err := readKey(path)
	if !errors.Is(err, fs.ErrNotExist) {
		return key, err
	}

	key = make([]byte, keyLength)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate token key: %w", err)
	}
	if err := writeKey(path, key); err != nil {
		return nil, err
	}
	return key, nil
}

func readKey(path string) ([]byte, error) {
	raw, err := os.ReadFile(path) //#nosec G304 -- derived from the configured data dir
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("read token key: %w", err)
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) != hex.EncodedLen(keyLength) {
		return nil, fmt.Errorf("invalid token key length in %s: expected %d hex chars, got %d",
			path, hex.EncodedLen(keyLength), len(raw))
	}
	key := make([]byte, keyLength)
	if _, err := hex.Decode(key, raw); err != nil {
		return nil, fmt.Errorf("invalid token key in %s: %w", path, err)
	}
	return key, nil
}

// writeKey stores key via a temp file so a crash never leaves a truncated
// key behind.
func writeKey(path string, key []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, keyFileName+".*")
	if err != nil {
		return fmt.Errorf("save token key: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // Gone after a successful rename

	if _, err := tmp.WriteString(hex.EncodeToString(key) + "\n"); err != nil {
		tmp.Close()
		return fmt.Errorf("save token key: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("save token key: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save token key: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}
