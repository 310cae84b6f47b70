package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/FadeevMax/test-web-sop/internal/config"
	"github.com/FadeevMax/test-web-sop/internal/contentstore"
	"github.com/FadeevMax/test-web-sop/internal/pipeline"
	"github.com/FadeevMax/test-web-sop/internal/tagger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// DocumentLister lists published documents. *contentstore.Client implements it.
type DocumentLister interface {
	ListDir(ctx context.Context, path string) ([]contentstore.Entry, error)
}

// Server is the HTTP API server for sopchunk.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	docs         DocumentLister
	tagger       *tagger.Tagger
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. docs may be nil when no
// content store is configured.
func NewServer(orch *pipeline.Orchestrator, docs DocumentLister, tg *tagger.Tagger, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		docs:         docs,
		tagger:       tg,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/chunk", s.handleChunk)

		r.Post("/api/ingest", s.handleIngest)
		r.Post("/api/sync", s.handleSync)
		r.Get("/api/ingest/{jobID}/status", s.handleIngestStatus)
		r.Get("/api/ingest/{jobID}/chunks", s.handleIngestChunks)

		r.Get("/api/documents", s.handleListDocuments)
		r.Get("/api/stats/publish", s.handlePublishStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
