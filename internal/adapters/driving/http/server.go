package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
)

// HealthChecker reports the health of each backing component by name
// and the backends and capabilities the process runs with
type HealthChecker interface {
	HealthCheck(ctx context.Context) map[string]error
	Config() *domain.RuntimeConfig
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string
	logger     *slog.Logger

	// Services
	retrieval driving.RetrievalService
	answer    driving.AnswerService
	ingestion driving.IngestionService
	corpus    driving.CorpusService

	// Infrastructure
	health HealthChecker
}

// Config holds server configuration
type Config struct {
	Host           string
	Port           int
	Version        string
	AllowedOrigins []string
	Logger         *slog.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8000,
		Version:        "dev",
		AllowedOrigins: []string{"*"},
	}
}

// Dependencies are the driving services the server exposes
type Dependencies struct {
	Retrieval driving.RetrievalService
	Answer    driving.AnswerService
	Ingestion driving.IngestionService
	Corpus    driving.CorpusService // optional: folder ingestion
	Health    HealthChecker         // optional: readiness checks
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Dependencies) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		router:    http.NewServeMux(),
		version:   cfg.Version,
		logger:    logger,
		retrieval: deps.Retrieval,
		answer:    deps.Answer,
		ingestion: deps.Ingestion,
		corpus:    deps.Corpus,
		health:    deps.Health,
	}
	s.setupRoutes()

	handler := NewCORSMiddleware(cfg.AllowedOrigins).Handler(s.router)
	handler = NewRecoveryMiddleware(logger).Handler(handler)
	handler = NewLoggingMiddleware(logger).Handler(handler)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // answers wait on the LLM
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health endpoints
	s.router.HandleFunc("GET /{$}", s.handleWelcome)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)

	// Query endpoint kept at the root for existing clients
	s.router.HandleFunc("GET /query", s.handleQuery)

	// Retrieval
	s.router.HandleFunc("POST /api/v1/retrieve", s.handleRetrieve)

	// Ingestion
	s.router.HandleFunc("POST /api/v1/documents", s.handleIngestDocument)
	s.router.HandleFunc("POST /api/v1/ingest", s.handleIngestFolder)
	s.router.HandleFunc("GET /api/v1/documents/{id}/chunks/count", s.handleChunkCount)
	s.router.HandleFunc("GET /api/v1/stats", s.handleStats)

	// API documentation
	s.router.HandleFunc("GET /swagger/doc.json", s.handleSwaggerDoc)
}

// Handler returns the root handler including middleware
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr returns the listen address
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", s.httpServer.Addr, "version", s.version)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
