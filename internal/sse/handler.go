package sse

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const (
	defaultHeartbeat = 30 * time.Second
	writeTimeout     = 60 * time.Second
	// reconnectDelay is advertised to EventSource clients as the retry hint.
	reconnectDelay = 3 * time.Second
)

// ConnectedEventData is the payload of the first frame on every stream.
type ConnectedEventData struct {
	ClientID string `json:"client_id"`
	// JobID echoes the ?job= filter, if any.
	JobID string `json:"job_id,omitempty"`
	// RestoringJob is the restore running when the client connected, so a
	// late subscriber knows which job to follow.
	RestoringJob string `json:"restoring_job,omitempty"`
}

// Handler streams events at GET /api/v1/admin/events. An optional
// ?job=<id> query limits restore events to one job.
type Handler struct {
	manager   *Manager
	logger    *slog.Logger
	heartbeat time.Duration
}

// NewHandler creates a Handler backed by manager.
func NewHandler(manager *Manager, logger *slog.Logger) *Handler {
	return &Handler{manager: manager, logger: logger, heartbeat: defaultHeartbeat}
}

// stream writes numbered frames to one client.
type stream struct {
	w   http.ResponseWriter
	rc  *http.ResponseController
	seq uint64
}

func (s *stream) send(name string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", name, err)
	}
	s.seq++
	if _, err := fmt.Fprintf(s.w, "id: %d\nevent: %s\ndata: %s\n\n", s.seq, name, body); err != nil {
		return err
	}
	if err := s.rc.Flush(); err != nil {
		return err
	}
	// Deadlines are optional; writers that lack them keep the server default.
	_ = s.rc.SetWriteDeadline(time.Now().Add(writeTimeout))
	return nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()
	if ctx.Err() != nil {
		return
	}

	hdr := w.Header()
	hdr.Set("Content-Type", "text/event-stream")
	hdr.Set("Cache-Control", "no-cache")
	hdr.Set("Connection", "keep-alive")
	hdr.Set("X-Accel-Buffering", "no")

	s := &stream{w: w, rc: http.NewResponseController(w)}
	if _, err := fmt.Fprintf(w, "retry: %d\n\n", reconnectDelay.Milliseconds()); err != nil {
		return
	}
	if err := s.rc.Flush(); err != nil {
		h.logger.Error("response does not support streaming", "error", err)
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	jobID := r.URL.Query().Get("job")
	client, err := h.manager.Connect(jobID)
	if err != nil {
		h.logger.Error("failed to register SSE client", "error", err)
		return
	}
	defer h.manager.Disconnect(client.ID)

	log := h.logger.With("client_id", client.ID)
	hello := ConnectedEventData{
		ClientID:     client.ID,
		JobID:        jobID,
		RestoringJob: h.manager.RestoringJob(),
	}
	if err := s.send("connected", hello); err != nil {
		log.Warn("failed to send connected frame", "error", err)
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		var (
			name    string
			payload any
		)
		select {
		case <-ctx.Done():
			log.Debug("client went away")
			return
		case <-client.Done:
			log.Debug("stream closed by manager")
			return
		case ev, ok := <-client.EventChan:
			if !ok {
				return
			}
			name, payload = string(ev.Type), ev
		case <-ticker.C:
			hb := NewHeartbeatEvent()
			name, payload = string(hb.Type), hb
		}
		if err := s.send(name, payload); err != nil {
			log.Debug("client disconnected during send", "event", name)
			return
		}
	}
}
