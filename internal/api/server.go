// Package api serves the local companion HTTP API.
//
// The companion server is a presentation surface over the client layer: it
// reconciles reading state through the local cache, debounces catalog
// searches per UI session, scores recommendations, and serves the local
// library index. Every authoritative operation goes to the backend.
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

	"github.com/recoread/recoread-client/internal/catalog"
	"github.com/recoread/recoread-client/internal/client"
	"github.com/recoread/recoread-client/internal/domain"
	"github.com/recoread/recoread-client/internal/readingcache"
	"github.com/recoread/recoread-client/internal/reconcile"
	"github.com/recoread/recoread-client/internal/search"
	"github.com/recoread/recoread-client/internal/sse"
	"github.com/recoread/recoread-client/internal/validation"
)

// Backend is the part of the HTTP client the server uses.
// *client.Client implements it.
type Backend interface {
	reconcile.Backend
	catalog.Searcher
	ResolveBook(ctx context.Context, ref domain.BookRef) (*domain.Book, error)
	ListBooks(ctx context.Context, params client.ListBooksParams) (*domain.Page[domain.Book], error)
	Recommendations(ctx context.Context, bookID string, limit int) (*domain.RecommendationSet, error)
	SignedIn() bool
}

// Deps are the server's collaborators. Index and Events may be nil; the
// routes that need them then answer 503.
type Deps struct {
	Backend Backend
	Cache   readingcache.Cache
	Index   *search.Index
	Events  *sse.Manager

	// Catalog configures each session's search controller.
	Catalog catalog.Options
	// SessionIdle is how long an unused search session is kept (default 30m).
	SessionIdle time.Duration

	AllowedOrigins []string
	Version        string
	Logger         *slog.Logger
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	backend  Backend
	cache    readingcache.Cache
	index    *search.Index
	events   *sse.Manager
	sessions *sessions
	validate *validation.Validator
	router   *chi.Mux
	api      huma.API
	logger   *slog.Logger
}

// NewServer creates the server with all routes configured.
func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	catalogOpts := deps.Catalog
	if catalogOpts.Logger == nil {
		catalogOpts.Logger = logger
	}

	s := &Server{
		backend:  deps.Backend,
		cache:    deps.Cache,
		index:    deps.Index,
		events:   deps.Events,
		sessions: newSessions(deps.Backend, catalogOpts, deps.SessionIdle),
		validate: validation.New(),
		router:   chi.NewRouter(),
		logger:   logger,
	}

	s.setupMiddleware(deps.AllowedOrigins)

	RegisterErrorHandler()
	s.api = humachi.New(s.router, huma.DefaultConfig("RecoRead Companion API", version))

	s.setupRoutes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close cancels every pending catalog search.
func (s *Server) Close() {
	s.sessions.closeAll()
}

func (s *Server) setupMiddleware(origins []string) {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", sessionHeader, middleware.RequestIDHeader},
		ExposedHeaders: []string{sessionHeader},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.registerHealthRoutes()
	s.registerBookRoutes()
	s.registerCatalogRoutes()
	s.registerLibraryRoutes()

	if s.events != nil {
		s.router.Get("/api/events", sse.NewHandler(s.events, s.logger).ServeHTTP)
	}
}

// requestLogger logs one line per request at debug level.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()))
		})
	}
}
