// Package api provides the HTTP API server and handlers for shelfsy.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/shelfsy/shelfsy-server/internal/auth"
	"github.com/shelfsy/shelfsy-server/internal/backup"
	"github.com/shelfsy/shelfsy-server/internal/ratelimit"
	"github.com/shelfsy/shelfsy-server/internal/search"
	"github.com/shelfsy/shelfsy-server/internal/sse"
	"github.com/shelfsy/shelfsy-server/internal/store"
	"github.com/shelfsy/shelfsy-server/internal/validation"
)

// LibraryReader is the read-only slice of the library the API exposes.
type LibraryReader interface {
	GetLibraryStats(ctx context.Context) (*store.LibraryStats, error)
	GetLibraryCheckpoint(ctx context.Context) (time.Time, error)
}

// RemoteFetcher downloads a backup object into a local directory.
type RemoteFetcher interface {
	Fetch(ctx context.Context, key, dir string) (string, error)
}

// Services groups everything the handlers call.
type Services struct {
	Backup    *backup.BackupService
	Restore   *backup.RestoreService
	Library   LibraryReader
	Search    *search.SearchIndex
	Reindexer *search.Reindexer
	Tokens    *auth.TokenService
	Remote    RemoteFetcher // nil when no bucket is configured
}

// Options tunes the HTTP layer.
type Options struct {
	Version     string
	CORSOrigins []string

	// AdminRate and AdminBurst limit admin requests per client IP.
	AdminRate  float64
	AdminBurst int
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	services    *Services
	router      *chi.Mux
	api         huma.API
	logger      *slog.Logger
	sseManager  *sse.Manager
	sseHandler  *sse.Handler
	adminLimits *ratelimit.KeyedRateLimiter
	validator   *validation.Validator
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(services *Services, sseManager *sse.Manager, opts Options, logger *slog.Logger) *Server {
	if opts.AdminRate <= 0 {
		opts.AdminRate = ratelimit.PerInterval(120, time.Minute)
	}
	if opts.AdminBurst <= 0 {
		opts.AdminBurst = 30
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	s := &Server{
		services:    services,
		router:      chi.NewRouter(),
		logger:      logger,
		sseManager:  sseManager,
		sseHandler:  sse.NewHandler(sseManager, logger),
		adminLimits: ratelimit.New(opts.AdminRate, opts.AdminBurst, 10*time.Minute),
		validator:   validation.New(),
	}

	s.setupMiddleware(opts.CORSOrigins)

	humaConfig := huma.DefaultConfig("Shelfsy API", opts.Version)
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)
	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.registerRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API returns the huma API, mainly for tests and OpenAPI export.
func (s *Server) API() huma.API {
	return s.api
}

// Close stops background work owned by the server.
func (s *Server) Close() {
	s.adminLimits.Stop()
}

func (s *Server) setupMiddleware(origins []string) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)

	if len(origins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	s.router.Use(authMiddleware(s.services.Tokens))
	s.router.Use(s.adminRateLimit)
}

func (s *Server) registerRoutes() {
	s.registerHealthRoutes()
	s.registerLibraryRoutes()
	s.registerAdminBackupRoutes()
	s.registerAdminRestoreRoutes()

	// Raw chi routes for endpoints huma does not model well.
	s.router.With(requireScopeHTTP(auth.ScopeRead, s.logger)).
		Get("/api/v1/admin/events", s.sseHandler.ServeHTTP)
	s.router.With(requireScopeHTTP(auth.ScopeRestore, s.logger)).
		Post("/api/v1/admin/backups/upload", withExtendedTimeout(s.handleUploadBackup, uploadTimeout))
}
