package format

import (
	"github.com/shelfsy/shelfsy-server/internal/validation"
)

// Validate checks record-level constraints of a decoded backup: required
// urls and names and positive tracker sync ids. Category orders that match
// no backup category are not an error; the restore skips them.
func Validate(v *validation.Validator, b *Backup) error {
	return v.Validate(b)
}
