// Package normalize provides utilities for normalizing and sanitizing data.
package normalize

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Name returns the comparison key for a user-visible name such as a category.
// Two names are the same category when their keys are equal.
func Name(raw string) string {
	s := norm.NFC.String(sanitizeString(raw))
	s = strings.Join(strings.Fields(s), " ")
	// Casers are stateful, so each call gets its own.
	return cases.Fold().String(s)
}

// SameName reports whether two names normalize to the same key.
func SameName(a, b string) bool {
	return Name(a) == Name(b)
}

// Text cleans a free-form string coming from a backup: null bytes are
// dropped and the result is NFC composed. Surrounding whitespace is kept.
func Text(raw string) string {
	return norm.NFC.String(sanitizeString(raw))
}

// Genres splits, trims and de-duplicates a genre list. Entries may themselves
// be comma separated, as older backups store genres as one string.
func Genres(raw []string) []string {
	if len(raw) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, entry := range raw {
		for part := range strings.SplitSeq(entry, ",") {
			g := strings.TrimSpace(Text(part))
			if g == "" {
				continue
			}
			key := Name(g)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, g)
		}
	}
	return out
}

// sanitizeString removes null bytes from strings, which can cause
// issues in databases and JSON parsing.
func sanitizeString(s string) string {
	return strings.Map(func(r rune) rune {
		if r == 0 {
			return -1
		}
		return r
	}, s)
}
