package watcher

import (
	"path/filepath"
	"time"
)

// Op is what happened to a watched file.
type Op uint8

const (
	// OpSettled means the file exists and has stopped changing.
	OpSettled Op = iota + 1
	// OpRemoved means a previously settled file was deleted or renamed away.
	OpRemoved
)

func (op Op) String() string {
	switch op {
	case OpSettled:
		return "settled"
	case OpRemoved:
		return "removed"
	}
	return "unknown"
}

// Event reports a file that settled or went away. Size and ModTime are
// zero for removals.
type Event struct {
	Op      Op
	Path    string
	Size    int64
	ModTime time.Time

	// Rewrites counts how often the same path settled before this event.
	// A backup app overwriting its export in place shows up as Rewrites > 0.
	Rewrites int
}

// Name is the base name of the file.
func (e Event) Name() string {
	return filepath.Base(e.Path)
}
