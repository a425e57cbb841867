// Package api provides the HTTP API server and handlers for pbtracker.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/pbtracker/pbtracker-server/internal/sse"
	"github.com/pbtracker/pbtracker-server/internal/store"
)

// Options tunes the router.
type Options struct {
	// Version is reported in the OpenAPI document.
	Version string
	// AllowedOrigins enables CORS for browser clients. Empty disables it.
	AllowedOrigins []string
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	store      store.Store
	services   *Services
	sseHandler *sse.Handler
	sseManager *sse.Manager
	router     *chi.Mux
	api        huma.API
	logger     *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(
	store store.Store,
	services *Services,
	sseHandler *sse.Handler,
	sseManager *sse.Manager,
	opts Options,
	logger *slog.Logger,
) *Server {
	s := &Server{
		store:      store,
		services:   services,
		sseHandler: sseHandler,
		sseManager: sseManager,
		router:     chi.NewRouter(),
		logger:     logger,
	}

	// chi refuses middleware after the first route, and humachi.New
	// registers the docs routes right away.
	s.setupMiddleware(opts.AllowedOrigins)

	if opts.Version == "" {
		opts.Version = "dev"
	}
	s.api = humachi.New(s.router, newHumaConfig(opts.Version))
	RegisterErrorHandler()

	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API exposes the huma API, mostly for tests and OpenAPI export.
func (s *Server) API() huma.API {
	return s.api
}

func newHumaConfig(version string) huma.Config {
	cfg := huma.DefaultConfig("pbtracker API", version)
	cfg.Info.Description = "Speedrun submissions, personal bests and the game catalog."
	cfg.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}
	cfg.Transformers = append(cfg.Transformers, EnvelopeTransformer)
	return cfg
}

// setupMiddleware configures the middleware stack.
func (s *Server) setupMiddleware(allowedOrigins []string) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))

	if len(allowedOrigins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   allowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Location"},
			AllowCredentials: false,
			MaxAge:           int((12 * time.Hour).Seconds()),
		}))
	}

	s.router.Use(authMiddleware(s.services.Auth))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.registerHealthRoutes()
	s.registerRunRoutes()
	s.registerCatalogRoutes()
	s.registerRunnerRoutes()

	// The event stream is plain net/http; huma operations are request/response.
	if s.sseHandler != nil {
		s.router.Get("/api/v1/events", s.sseHandler.ServeHTTP)
	}
}
