package backupimport

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shelfsy/shelfsy-server/internal/domain"
)

// Run is the mutable state of one restore invocation. It is owned by the
// goroutine executing the restore and is never shared.
type Run struct {
	opts     Options
	notifier Notifier
	clock    func() time.Time

	start      time.Time
	now        time.Time
	fetchRange domain.FetchRange

	contentTitle string
	state        State
	total        int
	progress     int
	restored     int
	errors       []ErrorLogEntry

	sourceNames map[int64]string

	// categoryIDs maps a backup category order to the live category id.
	categoryIDs map[int64]int64
}

func newRun(opts Options, notifier Notifier, clock func() time.Time, mangaCount int, fetchRange domain.FetchRange, sourceNames map[int64]string) *Run {
	now := clock()
	contentTitle := ContentTitleRestore
	if opts.Sync {
		contentTitle = ContentTitleSync
	}
	return &Run{
		opts:         opts,
		notifier:     notifier,
		clock:        clock,
		start:        now,
		now:          now,
		fetchRange:   fetchRange,
		contentTitle: contentTitle,
		state:        StateIdle,
		total:        mangaCount + lookupSlots,
		sourceNames:  sourceNames,
		categoryIDs:  make(map[int64]int64),
	}
}

func (r *Run) setState(s State) {
	r.state = s
	if r.opts.OnState != nil {
		r.opts.OnState(s)
	}
}

// tick advances progress by one and emits a progress notification.
func (r *Run) tick(title string) {
	r.progress++
	r.notifier.Progress(ProgressEvent{
		Title:        title,
		ContentTitle: r.contentTitle,
		Progress:     r.progress,
		Total:        r.total,
	})
}

// sourceLabel returns the source's display name, falling back to its id.
func (r *Run) sourceLabel(source int64) string {
	if name, ok := r.sourceNames[source]; ok && name != "" {
		return name
	}
	return strconv.FormatInt(source, 10)
}

// recordError attributes err to a manga.
func (r *Run) recordError(title string, source int64, err error) {
	r.errors = append(r.errors, ErrorLogEntry{
		Time:    r.clock(),
		Message: fmt.Sprintf("%s [%s]: %v", title, r.sourceLabel(source), err),
	})
}

func (r *Run) result() *Result {
	return &Result{
		State:    r.state,
		Progress: r.progress,
		Total:    r.total,
		Restored: r.restored,
		Errors:   r.errors,
	}
}
