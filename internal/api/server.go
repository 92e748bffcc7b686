// Package api provides the HTTP API server and handlers for the Biblio server.
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

	"github.com/biblioapp/biblio/internal/catalog"
	"github.com/biblioapp/biblio/internal/session"
	"github.com/biblioapp/biblio/internal/state"
)

// Library is the record source the API reads from directly.
type Library interface {
	catalog.Source
	Library(ctx context.Context, id string) (catalog.Library, error)
	Book(ctx context.Context, libraryID string, bookID int64) (*catalog.Record, error)
	CoverPath(ctx context.Context, libraryID string, bookID int64) (string, error)
	FormatPath(ctx context.Context, libraryID string, bookID int64, format string) (string, error)
}

// Deps groups what the handlers need.
type Deps struct {
	Library  Library
	Sessions *session.Manager
	Store    state.Store
	// Metrics serves /metrics when set.
	Metrics http.Handler
}

// Options tunes the HTTP surface.
type Options struct {
	AllowedOrigins []string
	// SessionRate and SessionBurst limit session creation per client IP.
	SessionRate  int
	SessionBurst int
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	library        Library
	sessions       *session.Manager
	store          state.Store
	router         *chi.Mux
	api            huma.API
	logger         *slog.Logger
	sessionLimiter *RateLimiter
}

// NewServer creates the HTTP server with every route registered.
func NewServer(deps Deps, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.SessionRate <= 0 {
		opts.SessionRate = 30
	}
	if opts.SessionBurst <= 0 {
		opts.SessionBurst = 10
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "HEAD", "PUT", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", SessionHeader},
		ExposedHeaders:   []string{SessionHeader},
		AllowCredentials: false,
	}))
	router.Use(clientIP)

	humaConfig := huma.DefaultConfig("Biblio API", "1.0.0")
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)

	api := humachi.New(router, humaConfig)
	RegisterErrorHandler()

	s := &Server{
		library:        deps.Library,
		sessions:       deps.Sessions,
		store:          deps.Store,
		router:         router,
		api:            api,
		logger:         logger,
		sessionLimiter: NewRateLimiter(opts.SessionRate, time.Minute, opts.SessionBurst),
	}

	s.registerHealthRoutes()
	s.registerLibraryRoutes()
	s.registerFileRoutes()
	s.registerBrowseRoutes()

	if deps.Metrics != nil {
		router.Handle("/metrics", deps.Metrics)
	}

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

// Close releases background resources.
func (s *Server) Close() {
	s.sessionLimiter.Stop()
}
