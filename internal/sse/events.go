// Package sse implements Server-Sent Events for restore progress and backup
// notifications.
package sse

import (
	"time"

	"github.com/shelfsy/shelfsy-server/internal/backup"
	backupimport "github.com/shelfsy/shelfsy-server/internal/backup/import"
)

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventRestoreStarted is sent when a restore job leaves the queue.
	EventRestoreStarted EventType = "restore.started"
	// EventRestoreProgress is sent after each restored unit.
	EventRestoreProgress EventType = "restore.progress"
	// EventRestoreCompleted is sent once when a run finishes normally.
	EventRestoreCompleted EventType = "restore.completed"
	// EventRestoreCancelled is sent when a run stops early.
	EventRestoreCancelled EventType = "restore.cancelled"
	// EventRestoreFailed is sent when a run is rejected or aborts.
	EventRestoreFailed EventType = "restore.failed"

	// EventBackupCreated is sent after a backup archive is written.
	EventBackupCreated EventType = "backup.created"
	// EventBackupDeleted is sent after a backup archive is removed.
	EventBackupDeleted EventType = "backup.deleted"

	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
)

// Event represents an SSE event to be sent to clients.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`

	// JobID scopes restore events. Clients subscribed to a job only
	// receive events carrying its id. Not serialized.
	JobID string `json:"-"`
}

// RestoreEventData is the payload of restore.* events.
type RestoreEventData struct {
	Job backup.JobStatus `json:"job"`
}

// RestoreCompletedEventData is the payload of restore.completed.
type RestoreCompletedEventData struct {
	Job          backup.JobStatus `json:"job"`
	ElapsedMS    int64            `json:"elapsed_ms"`
	ErrorCount   int              `json:"error_count"`
	LogDir       string           `json:"log_dir,omitempty"`
	LogFile      string           `json:"log_file,omitempty"`
	ContentTitle string           `json:"content_title,omitempty"`
}

// BackupEventData is the payload of backup.* events.
type BackupEventData struct {
	ID   string `json:"id"`
	Path string `json:"path,omitempty"`
	Size int64  `json:"size,omitempty"`
}

// HeartbeatEventData is the payload of heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

// NewRestoreEvent creates a restore event of the given type for st.
func NewRestoreEvent(t EventType, st backup.JobStatus) Event {
	return Event{
		Type:      t,
		JobID:     st.ID,
		Data:      RestoreEventData{Job: st},
		Timestamp: time.Now(),
	}
}

// NewRestoreCompletedEvent creates a restore.completed event from a
// finished job.
func NewRestoreCompletedEvent(st backup.JobStatus) Event {
	data := RestoreCompletedEventData{
		Job:        st,
		ElapsedMS:  st.FinishedAt.Sub(st.StartedAt).Milliseconds(),
		ErrorCount: st.ErrorCount,
		LogDir:     st.LogDir,
		LogFile:    st.LogFile,
	}
	if st.Sync {
		data.ContentTitle = backupimport.CompleteTitleSync
	}
	return Event{
		Type:      EventRestoreCompleted,
		JobID:     st.ID,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// NewBackupCreatedEvent creates a backup.created event.
func NewBackupCreatedEvent(res *backup.BackupResult) Event {
	return Event{
		Type:      EventBackupCreated,
		Data:      BackupEventData{ID: res.ID, Path: res.Path, Size: res.Size},
		Timestamp: time.Now(),
	}
}

// NewBackupDeletedEvent creates a backup.deleted event.
func NewBackupDeletedEvent(id string) Event {
	return Event{
		Type:      EventBackupDeleted,
		Data:      BackupEventData{ID: id},
		Timestamp: time.Now(),
	}
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	now := time.Now()
	return Event{
		Type:      EventHeartbeat,
		Data:      HeartbeatEventData{ServerTime: now},
		Timestamp: now,
	}
}
