package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerHealthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns server health status with component checks",
		Tags:        []string{"Health"},
	}, s.handleHealthCheck)
}

// Component statuses.
const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

// ComponentHealth describes the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status" doc:"Component status: healthy, degraded, or unhealthy"`
	Latency string `json:"latency,omitempty" doc:"Response time for this component"`
	Message string `json:"message,omitempty" doc:"Additional status information"`
}

// HealthResponse contains health check data in API responses.
type HealthResponse struct {
	Status     string                     `json:"status" doc:"Overall status: healthy, degraded, or unhealthy"`
	Components map[string]ComponentHealth `json:"components" doc:"Individual component statuses"`
	RestoreJob string                     `json:"restore_job,omitempty" doc:"ID of the running restore, if any"`
}

// HealthOutput wraps the health response for Huma.
type HealthOutput struct {
	Body HealthResponse
}

func (s *Server) handleHealthCheck(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	components := map[string]ComponentHealth{
		"database": s.checkDatabase(ctx),
		"search":   s.checkSearchIndex(),
		"sse":      s.checkSSEManager(),
	}

	overall := statusHealthy
	for _, c := range components {
		switch {
		case c.Status == statusUnhealthy:
			overall = statusUnhealthy
		case c.Status == statusDegraded && overall == statusHealthy:
			overall = statusDegraded
		}
	}

	resp := HealthResponse{Status: overall, Components: components}
	if s.services.Restore != nil {
		if job := s.services.Restore.Active(); job != nil {
			resp.RestoreJob = job.ID
		}
	}
	return &HealthOutput{Body: resp}, nil
}

// checkDatabase verifies the library database answers a query.
func (s *Server) checkDatabase(ctx context.Context) ComponentHealth {
	if s.services.Library == nil {
		return ComponentHealth{Status: statusDegraded, Message: "database not configured"}
	}

	start := time.Now()
	_, err := s.services.Library.GetLibraryCheckpoint(ctx)
	latency := time.Since(start)

	if err != nil {
		return ComponentHealth{
			Status:  statusUnhealthy,
			Latency: latency.String(),
			Message: "database read failed",
		}
	}
	return ComponentHealth{Status: statusHealthy, Latency: latency.String()}
}

// checkSearchIndex verifies the Bleve index is accessible.
func (s *Server) checkSearchIndex() ComponentHealth {
	if s.services.Search == nil {
		return ComponentHealth{Status: statusDegraded, Message: "search index not configured"}
	}

	start := time.Now()
	docCount, err := s.services.Search.DocumentCount()
	latency := time.Since(start)

	if err != nil {
		return ComponentHealth{
			Status:  statusUnhealthy,
			Latency: latency.String(),
			Message: "search index unreachable",
		}
	}
	return ComponentHealth{
		Status:  statusHealthy,
		Latency: latency.String(),
		Message: strconv.FormatUint(docCount, 10) + " documents",
	}
}

// checkSSEManager reports connected event stream clients.
func (s *Server) checkSSEManager() ComponentHealth {
	if s.sseManager == nil {
		return ComponentHealth{Status: statusDegraded, Message: "SSE manager not configured"}
	}
	return ComponentHealth{
		Status:  statusHealthy,
		Message: formatClients(s.sseManager.ClientCount()),
	}
}

func formatClients(count int) string {
	if count == 1 {
		return "1 connected client"
	}
	return strconv.Itoa(count) + " connected clients"
}
