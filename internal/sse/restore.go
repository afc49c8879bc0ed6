package sse

import (
	"sync"

	"github.com/shelfsy/shelfsy-server/internal/backup"
	backupimport "github.com/shelfsy/shelfsy-server/internal/backup/import"
)

// Emitter queues events for broadcast.
type Emitter interface {
	Emit(event Event)
}

// RestoreNotifier turns restore job updates into SSE events. It implements
// backup.JobObserver.
type RestoreNotifier struct {
	emitter Emitter

	mu      sync.Mutex
	started map[string]bool
}

// NewRestoreNotifier creates a RestoreNotifier emitting to e.
func NewRestoreNotifier(e Emitter) *RestoreNotifier {
	return &RestoreNotifier{
		emitter: e,
		started: make(map[string]bool),
	}
}

// JobUpdated implements backup.JobObserver.
func (n *RestoreNotifier) JobUpdated(st backup.JobStatus) {
	if !st.State.Terminal() {
		if n.markStarted(st.ID) {
			n.emitter.Emit(NewRestoreEvent(EventRestoreStarted, st))
		}
		if st.Total > 0 {
			n.emitter.Emit(NewRestoreEvent(EventRestoreProgress, st))
		}
		return
	}

	n.mu.Lock()
	delete(n.started, st.ID)
	n.mu.Unlock()

	//nolint:exhaustive // Only terminal states reach here.
	switch st.State {
	case backupimport.StateDone:
		n.emitter.Emit(NewRestoreCompletedEvent(st))
	case backupimport.StateCancelled:
		n.emitter.Emit(NewRestoreEvent(EventRestoreCancelled, st))
	case backupimport.StateFailed:
		n.emitter.Emit(NewRestoreEvent(EventRestoreFailed, st))
	}
}

// markStarted reports whether id was seen for the first time.
func (n *RestoreNotifier) markStarted(id string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.started[id] {
		return false
	}
	n.started[id] = true
	return true
}
