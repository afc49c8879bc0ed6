package sse

import (
	"context"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shelfsy/shelfsy-server/internal/id"
)

const (
	eventQueueSize  = 1000
	clientQueueSize = 100
)

// Client is one connected event stream.
type Client struct {
	ID          string
	ConnectedAt time.Time
	// JobID restricts restore events to one job. Empty receives everything.
	JobID string

	EventChan chan Event
	Done      chan struct{}

	dropped atomic.Int64
}

// Dropped is the number of events skipped because the client fell behind.
func (c *Client) Dropped() int64 {
	return c.dropped.Load()
}

func (c *Client) wants(e Event) bool {
	return c.JobID == "" || e.JobID == "" || c.JobID == e.JobID
}

// offer queues e without blocking.
func (c *Client) offer(e Event) bool {
	select {
	case c.EventChan <- e:
		return true
	default:
		c.dropped.Add(1)
		return false
	}
}

// Manager fans events out to connected clients. It also remembers the last
// event of the running restore, which new subscribers get on connect.
type Manager struct {
	logger *slog.Logger
	events chan Event
	wg     sync.WaitGroup

	mu      sync.RWMutex
	clients map[string]*Client
	closed  bool
	// restore is the latest event of the active restore, nil when idle.
	restore *Event
}

// NewManager creates a Manager. Call Start to begin broadcasting.
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		logger:  logger,
		events:  make(chan Event, eventQueueSize),
		clients: make(map[string]*Client),
	}
}

// Start broadcasts queued events until ctx is cancelled.
func (m *Manager) Start(ctx context.Context) {
	m.wg.Add(1)
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			m.closeAllClients()
			return
		case e, ok := <-m.events:
			if !ok {
				return
			}
			m.broadcast(e)
		}
	}
}

// Shutdown stops accepting events, delivers what is queued until ctx ends,
// then closes every client.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	close(m.events)
	m.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for e := range m.events {
			m.broadcast(e)
		}
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		m.logger.Warn("SSE drain timed out, pending events dropped")
	}

	m.wg.Wait()
	m.closeAllClients()
	return nil
}

// Emit queues e for broadcast. Events are dropped once the queue is full
// or the manager has shut down.
func (m *Manager) Emit(e Event) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return
	}
	select {
	case m.events <- e:
	default:
		m.logger.Error("SSE queue full, dropping event", "event_type", e.Type)
	}
}

func (m *Manager) broadcast(e Event) {
	m.mu.Lock()
	m.trackRestore(e)
	m.mu.Unlock()

	m.mu.RLock()
	defer m.mu.RUnlock()

	var delivered, skipped, dropped int
	for _, c := range m.clients {
		switch {
		case !c.wants(e):
			skipped++
		case c.offer(e):
			delivered++
		default:
			dropped++
			m.logger.Warn("client too slow, event dropped", "client_id", c.ID, "event_type", e.Type)
		}
	}
	m.logger.Debug("event broadcast",
		"event_type", e.Type,
		slog.Group("clients",
			slog.Int("delivered", delivered),
			slog.Int("skipped", skipped),
			slog.Int("dropped", dropped)))
}

// trackRestore keeps the snapshot of the running restore. Callers hold mu.
func (m *Manager) trackRestore(e Event) {
	//nolint:exhaustive // Other events leave the snapshot alone.
	switch e.Type {
	case EventRestoreStarted, EventRestoreProgress:
		m.restore = &e
	case EventRestoreCompleted, EventRestoreCancelled, EventRestoreFailed:
		if m.restore != nil && m.restore.JobID == e.JobID {
			m.restore = nil
		}
	}
}

// Connect registers a client. A non-empty jobID limits restore events to
// that job. If a matching restore is running, its latest event is queued
// straight away.
func (m *Manager) Connect(jobID string) (*Client, error) {
	clientID, err := id.Generate(id.PrefixSSEClient)
	if err != nil {
		return nil, err
	}
	c := &Client{
		ID:          clientID,
		JobID:       jobID,
		ConnectedAt: time.Now(),
		EventChan:   make(chan Event, clientQueueSize),
		Done:        make(chan struct{}),
	}

	m.mu.Lock()
	if m.restore != nil && c.wants(*m.restore) {
		c.offer(*m.restore)
	}
	m.clients[c.ID] = c
	total := len(m.clients)
	m.mu.Unlock()

	m.logger.Info("SSE client connected", "client_id", c.ID, "job_id", jobID, "total_clients", total)
	return c, nil
}

// Disconnect removes a client and closes its channels. Unknown ids are
// ignored.
func (m *Manager) Disconnect(clientID string) {
	m.mu.Lock()
	c, ok := m.clients[clientID]
	if ok {
		delete(m.clients, clientID)
	}
	total := len(m.clients)
	m.mu.Unlock()
	if !ok {
		return
	}

	close(c.Done)
	close(c.EventChan)
	m.logger.Info("SSE client disconnected",
		"client_id", clientID,
		"duration", time.Since(c.ConnectedAt),
		"dropped", c.Dropped(),
		"total_clients", total)
}

// Clients iterates over connected clients under a read lock.
func (m *Manager) Clients() iter.Seq[*Client] {
	return func(yield func(*Client) bool) {
		m.mu.RLock()
		defer m.mu.RUnlock()
		for _, c := range m.clients {
			if !yield(c) {
				return
			}
		}
	}
}

// ClientCount returns the number of connected clients.
func (m *Manager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// RestoringJob returns the id of the running restore as seen on the event
// stream, or "".
func (m *Manager) RestoringJob() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.restore == nil {
		return ""
	}
	return m.restore.JobID
}

func (m *Manager) closeAllClients() {
	m.mu.Lock()
	clients := m.clients
	m.clients = make(map[string]*Client)
	m.mu.Unlock()

	for _, c := range clients {
		close(c.Done)
		close(c.EventChan)
	}
	if len(clients) > 0 {
		m.logger.Info("SSE clients disconnected", "count", len(clients))
	}
}
