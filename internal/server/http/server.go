// Package httpserver provides the HTTP REST API server for the paper aggregation service.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/synaptica/paper-aggregation-service/internal/csvimport"
	"github.com/synaptica/paper-aggregation-service/internal/database"
	"github.com/synaptica/paper-aggregation-service/internal/domain"
	"github.com/synaptica/paper-aggregation-service/internal/observability"
	"github.com/synaptica/paper-aggregation-service/internal/repository"
)

// Importer runs a CSV import batch against a project.
type Importer interface {
	Run(ctx context.Context, projectID uuid.UUID, userID string, rows []csvimport.Row, progress csvimport.ProgressFunc) *csvimport.Outcome
}

// FullTextService resolves open-access availability and fetches full text.
type FullTextService interface {
	CheckAvailability(ctx context.Context, pmid, pmcID string) ([]domain.FullTextSource, error)
	GetFullText(ctx context.Context, pmid, pmcID string) (*domain.FullTextContent, error)
}

// AbstractFetcher retrieves abstracts for papers imported without one.
type AbstractFetcher interface {
	FetchAbstract(ctx context.Context, pmid string) (string, error)
}

// Server is the HTTP REST API server.
type Server struct {
	router      chi.Router
	httpServer  *http.Server
	importer    Importer
	fulltext    FullTextService
	abstracts   AbstractFetcher
	paperRepo   repository.PaperRepository
	db          *database.DB
	logger      zerolog.Logger
	metrics     *observability.Metrics
	maxBody     int64
	maxErrors   int
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// MaxBodyBytes caps the accepted CSV upload size.
	MaxBodyBytes int64
	// MaxErrorsReturned caps the number of row errors in a response.
	MaxErrorsReturned int
}

// NewServer creates a new HTTP server with all dependencies.
func NewServer(
	cfg Config,
	importer Importer,
	fulltext FullTextService,
	abstracts AbstractFetcher,
	paperRepo repository.PaperRepository,
	db *database.DB,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 10 << 20
	}
	if cfg.MaxErrorsReturned <= 0 {
		cfg.MaxErrorsReturned = 5
	}

	s := &Server{
		importer:  importer,
		fulltext:  fulltext,
		abstracts: abstracts,
		paperRepo: paperRepo,
		db:        db,
		logger:    logger.With().Str("component", "http-server").Logger(),
		metrics:   metrics,
		maxBody:   cfg.MaxBodyBytes,
		maxErrors: cfg.MaxErrorsReturned,
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// Router returns the chi router, exposed for tests.
func (s *Server) Router() chi.Router {
	return s.router
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)

	// Health endpoints (no auth)
	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)

	// API routes scoped to a project
	r.Route("/api/v1/projects/{projectID}", func(r chi.Router) {
		r.Use(userContextMiddleware)
		r.Use(projectContextMiddleware)

		r.Post("/imports", s.importCSV)
		r.Post("/imports/stream", s.importCSVStream)
		r.Get("/papers", s.listPapers)
		r.Post("/papers/{pmid}/check-availability", s.checkAvailability)
		r.Post("/papers/{pmid}/fetch-fulltext", s.fetchFullText)
		r.Post("/fetch-abstracts", s.fetchAbstracts)
	})

	return r
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	health := s.db.Health(r.Context())
	if health.Status == "healthy" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": health.Status})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{
		"status":   "unhealthy",
		"database": health.Status,
		"error":    health.Error,
	})
}

// readinessHandler returns readiness status including database connectivity.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	health := s.db.Health(r.Context())
	if health.Status != "healthy" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "not_ready",
			"database": health.Status,
			"error":    health.Error,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ready",
		"database": "healthy",
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort log; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
