// Package backupimport merges a decoded library backup into the live store.
//
// A restore runs sequentially: lookup tables (categories, saved searches,
// feeds) first, then one manga at a time with merged-source entries last.
// Each manga commits in its own transaction, so a failing entry is recorded
// and skipped without touching the others.
package backupimport

import (
	"time"
)

// Presentation strings. Sync mode changes these and nothing else.
const (
	ContentTitleRestore = "Restoring backup"
	ContentTitleSync    = "Syncing library"
	CompleteTitleSync   = "Library sync complete"

	TitleCategories    = "Categories"
	TitleSavedSearches = "Saved searches"
)

// lookupSlots is the fixed progress overhead: one slot for categories and
// one for saved searches and feeds.
const lookupSlots = 2

// State is the phase of a restore run.
type State string

const (
	StateIdle             State = "idle"
	StateDecoding         State = "decoding"
	StateRestoringLookups State = "restoring_lookups"
	StateRestoringManga   State = "restoring_manga"
	StateFinalizing       State = "finalizing"
	StateDone             State = "done"
	StateCancelled        State = "cancelled"
	StateFailed           State = "failed"
)

// Terminal reports whether no further transitions follow.
func (s State) Terminal() bool {
	return s == StateDone || s == StateCancelled || s == StateFailed
}

// Options configures one restore run.
type Options struct {
	// Sync selects the "syncing library" wording.
	Sync bool

	// OnState is called on every state transition. Optional.
	OnState func(State)

	// Notifier also receives this run's notifications, after the
	// restorer's own notifier. Optional.
	Notifier Notifier
}

// ErrorLogEntry is one recorded failure.
type ErrorLogEntry struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// Result reports the outcome of a run.
type Result struct {
	State    State           `json:"state"`
	Progress int             `json:"progress"`
	Total    int             `json:"total"`
	Restored int             `json:"restored"`
	Errors   []ErrorLogEntry `json:"errors,omitempty"`
	Elapsed  time.Duration   `json:"elapsed"`

	// LogDir and LogFile name the error log; both are empty when no log
	// was written.
	LogDir  string `json:"log_dir,omitempty"`
	LogFile string `json:"log_file,omitempty"`
}

// Cancelled reports whether the run stopped early.
func (r *Result) Cancelled() bool {
	return r.State == StateCancelled
}
