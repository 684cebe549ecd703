package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/swaggo/swag"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driving/http/docs"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// maxBodyBytes bounds JSON request bodies, document text included
const maxBodyBytes = 32 << 20

// WelcomeMessage is returned by GET /
const WelcomeMessage = "Welcome to the sercha-rag retrieval API"

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid request body"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// ReadyResponse reports per-component readiness
type ReadyResponse struct {
	Status       string            `json:"status" example:"ready"`
	Components   map[string]string `json:"components,omitempty"`
	IndexBackend string            `json:"index_backend,omitempty" example:"sqlite"`
	LockBackend  string            `json:"lock_backend,omitempty" example:"none"`
	CanRetrieve  bool              `json:"can_retrieve"`
	CanAnswer    bool              `json:"can_answer"`
}

// ChunkCountResponse reports the stored chunks of a document
type ChunkCountResponse struct {
	DocumentID string `json:"document_id"`
	Chunks     int    `json:"chunks"`
}

// IngestFolderRequest names a folder of tagged source files
type IngestFolderRequest struct {
	FolderPath string `json:"folder_path" example:"./data"`
}

// Health endpoints

func (s *Server) handleWelcome(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": WelcomeMessage})
}

// handleHealth godoc
// @Summary      Health check
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Checks the vector index, the embedding provider and optional components
// @Tags         Health
// @Produce      json
// @Success      200  {object}  ReadyResponse
// @Failure      503  {object}  ReadyResponse
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, ReadyResponse{Status: "ready"})
		return
	}

	cfg := s.health.Config()
	resp := ReadyResponse{
		Status:       "ready",
		Components:   map[string]string{},
		IndexBackend: cfg.IndexBackend,
		LockBackend:  cfg.LockBackend,
		CanRetrieve:  cfg.CanRetrieve(),
		CanAnswer:    cfg.CanAnswer(),
	}
	status := http.StatusOK
	if !resp.CanRetrieve {
		resp.Status = "not ready"
		status = http.StatusServiceUnavailable
	}
	for name, err := range s.health.HealthCheck(r.Context()) {
		if err != nil {
			resp.Components[name] = err.Error()
			resp.Status = "not ready"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Components[name] = "ok"
	}
	writeJSON(w, status, resp)
}

// handleVersion godoc
// @Summary      Get API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: s.version})
}

// Retrieval endpoints

// handleQuery godoc
// @Summary      Answer a question from the indexed documents
// @Tags         Retrieval
// @Produce      json
// @Param        q           query     string  true   "Question"
// @Param        class_name  query     string  false  "Filter by class (e.g. 'Class 8')"
// @Param        subject     query     string  false  "Filter by subject (e.g. 'Geo')"
// @Param        chapter     query     string  false  "Filter by chapter (e.g. 'Chapter 1')"
// @Param        top_k       query     int     false  "Number of passages"
// @Success      200         {object}  domain.Answer
// @Failure      400         {object}  ErrorResponse
// @Failure      502         {object}  ErrorResponse
// @Router       /query [get]
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	req := domain.RetrievalRequest{Query: q.Get("q"), Filters: map[string]string{}}
	for key, param := range map[string]string{"class": "class_name", "subject": "subject", "chapter": "chapter"} {
		if v := q.Get(param); v != "" {
			req.Filters[key] = v
		}
	}
	if raw := q.Get("top_k"); raw != "" {
		topK, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "top_k must be an integer")
			return
		}
		req.TopK = topK
	}

	s.logger.Info("received query",
		"request_id", GetRequestID(r.Context()),
		"query", req.Query,
		"class", req.Filters["class"],
		"subject", req.Filters["subject"],
		"chapter", req.Filters["chapter"])

	answer, err := s.answer.Answer(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

// handleRetrieve godoc
// @Summary      Retrieve ranked passages
// @Tags         Retrieval
// @Accept       json
// @Produce      json
// @Param        request  body      domain.RetrievalRequest  true  "Retrieval request"
// @Success      200      {object}  domain.RetrievalResult
// @Failure      400      {object}  ErrorResponse
// @Failure      502      {object}  ErrorResponse
// @Router       /api/v1/retrieve [post]
func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req domain.RetrievalRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := s.retrieval.Retrieve(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Ingestion endpoints

// handleIngestDocument godoc
// @Summary      Ingest one document
// @Tags         Ingestion
// @Accept       json
// @Produce      json
// @Param        request  body      domain.Document  true  "Document"
// @Success      200      {object}  ChunkCountResponse
// @Failure      400      {object}  ErrorResponse
// @Failure      503      {object}  ErrorResponse
// @Router       /api/v1/documents [post]
func (s *Server) handleIngestDocument(w http.ResponseWriter, r *http.Request) {
	var doc domain.Document
	if !decodeJSON(w, r, &doc) {
		return
	}

	chunks, err := s.ingestion.Ingest(r.Context(), doc)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ChunkCountResponse{DocumentID: doc.ID, Chunks: chunks})
}

// handleIngestFolder godoc
// @Summary      Ingest a folder of tagged PDFs
// @Tags         Ingestion
// @Accept       json
// @Produce      json
// @Param        request  body      IngestFolderRequest  true  "Folder"
// @Success      200      {object}  domain.BatchResult
// @Failure      400      {object}  ErrorResponse
// @Router       /api/v1/ingest [post]
func (s *Server) handleIngestFolder(w http.ResponseWriter, r *http.Request) {
	if s.corpus == nil {
		writeError(w, http.StatusNotImplemented, "folder ingestion is not configured")
		return
	}

	var req IngestFolderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.FolderPath) == "" {
		writeError(w, http.StatusBadRequest, "folder_path is required")
		return
	}

	result, err := s.corpus.IngestFolder(r.Context(), req.FolderPath)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleChunkCount godoc
// @Summary      Count stored chunks of a document
// @Tags         Ingestion
// @Produce      json
// @Param        id   path      string  true  "Document ID"
// @Success      200  {object}  ChunkCountResponse
// @Router       /api/v1/documents/{id}/chunks/count [get]
func (s *Server) handleChunkCount(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	count, err := s.ingestion.ChunkCount(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ChunkCountResponse{DocumentID: id, Chunks: count})
}

// handleStats godoc
// @Summary      Describe the vector index
// @Tags         Ingestion
// @Produce      json
// @Success      200  {object}  domain.IndexStats
// @Router       /api/v1/stats [get]
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.ingestion.Stats(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleSwaggerDoc(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc(docs.SwaggerInfo.InstanceName())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "api documentation unavailable")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(doc))
}

// Helper functions

// statusFor maps a service error onto an HTTP status and client-facing message
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrInputTooLong):
		return http.StatusUnprocessableEntity, "text exceeds the embedding model's input limit"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "upstream timeout"
	case errors.Is(err, domain.ErrLockNotAcquired):
		return http.StatusServiceUnavailable, "document is being ingested elsewhere, retry later"
	case errors.Is(err, domain.ErrServiceUnavailable):
		return http.StatusServiceUnavailable, "service unavailable"
	case errors.Is(err, domain.ErrConfiguration):
		return http.StatusInternalServerError, "server misconfigured"
	case errors.Is(err, domain.ErrProvider):
		return http.StatusBadGateway, "provider error"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"request_id", GetRequestID(r.Context()),
			"path", r.URL.Path,
			"status", status,
			"error", err)
	}
	writeError(w, status, message)
}

// decodeJSON decodes the request body into v, writing a 400 on failure
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
