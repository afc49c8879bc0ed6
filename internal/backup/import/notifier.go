package backupimport

import (
	"log/slog"
	"time"
)

// ProgressEvent is emitted after each unit of work.
type ProgressEvent struct {
	Title        string `json:"title"`
	ContentTitle string `json:"content_title"`
	Progress     int    `json:"progress"`
	Total        int    `json:"total"`
}

// CompletionEvent is emitted once when a run finishes without being
// cancelled.
type CompletionEvent struct {
	Elapsed    time.Duration `json:"elapsed"`
	ErrorCount int           `json:"error_count"`
	LogDir     string        `json:"log_dir"`
	LogFile    string        `json:"log_file"`

	// ContentTitle is set in sync mode only.
	ContentTitle string `json:"content_title,omitempty"`
}

// Notifier receives restore notifications. Implementations must not block
// for long; the restore loop calls them inline.
type Notifier interface {
	Progress(ProgressEvent)
	Complete(CompletionEvent)
}

// Notifiers fans notifications out to several notifiers in order.
type Notifiers []Notifier

// Progress implements Notifier.
func (ns Notifiers) Progress(e ProgressEvent) {
	for _, n := range ns {
		n.Progress(e)
	}
}

// Complete implements Notifier.
func (ns Notifiers) Complete(e CompletionEvent) {
	for _, n := range ns {
		n.Complete(e)
	}
}

// LogNotifier writes notifications to a logger.
type LogNotifier struct {
	Logger *slog.Logger
}

// Progress implements Notifier.
func (l LogNotifier) Progress(e ProgressEvent) {
	l.Logger.Debug("restore progress",
		"title", e.Title,
		"content_title", e.ContentTitle,
		"progress", e.Progress,
		"total", e.Total,
	)
}

// Complete implements Notifier.
func (l LogNotifier) Complete(e CompletionEvent) {
	l.Logger.Info("restore complete",
		"elapsed", e.Elapsed,
		"errors", e.ErrorCount,
		"log_file", e.LogFile,
	)
}
