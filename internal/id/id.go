// Package id generates prefixed, URL-safe identifiers such as
// "sse-4f9kq2x7c1mz8w0pdh3b".
package id

import (
	"fmt"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes in use.
const (
	PrefixSSEClient = "sse"
	PrefixToken     = "tok"
	PrefixRequest   = "req"
)

// Lowercase alphanumerics keep ids safe in file names, URLs and log grep.
const (
	alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	size     = 20
)

// Generate returns prefix-<random>.
// It fails only when the system has no entropy available.
func Generate(prefix string) (string, error) {
	id, err := gonanoid.Generate(alphabet, size)
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics on failure.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}

// HasPrefix reports whether id was generated with prefix.
func HasPrefix(id, prefix string) bool {
	rest, ok := strings.CutPrefix(id, prefix+"-")
	return ok && len(rest) == size
}
