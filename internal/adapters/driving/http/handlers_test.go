package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// Mock services for testing

type mockRetrievalService struct {
	retrieveFn func(ctx context.Context, req domain.RetrievalRequest) (*domain.RetrievalResult, error)
}

func (m *mockRetrievalService) Retrieve(ctx context.Context, req domain.RetrievalRequest) (*domain.RetrievalResult, error) {
	if m.retrieveFn != nil {
		return m.retrieveFn(ctx, req)
	}
	return nil, errors.New("not implemented")
}

type mockAnswerService struct {
	answerFn func(ctx context.Context, req domain.RetrievalRequest) (*domain.Answer, error)
}

func (m *mockAnswerService) Answer(ctx context.Context, req domain.RetrievalRequest) (*domain.Answer, error) {
	if m.answerFn != nil {
		return m.answerFn(ctx, req)
	}
	return nil, errors.New("not implemented")
}

type mockIngestionService struct {
	ingestFn     func(ctx context.Context, doc domain.Document) (int, error)
	chunkCountFn func(ctx context.Context, documentID string) (int, error)
	statsFn      func(ctx context.Context) (*domain.IndexStats, error)
}

func (m *mockIngestionService) Ingest(ctx context.Context, doc domain.Document) (int, error) {
	if m.ingestFn != nil {
		return m.ingestFn(ctx, doc)
	}
	return 0, errors.New("not implemented")
}

func (m *mockIngestionService) IngestBatch(ctx context.Context, docs []domain.Document) *domain.BatchResult {
	result := &domain.BatchResult{}
	for _, doc := range docs {
		n, err := m.Ingest(ctx, doc)
		r := domain.IngestResult{DocumentID: doc.ID, Chunks: n}
		if err != nil {
			r.Error = err.Error()
		}
		result.Add(r)
	}
	return result
}

func (m *mockIngestionService) ChunkCount(ctx context.Context, documentID string) (int, error) {
	if m.chunkCountFn != nil {
		return m.chunkCountFn(ctx, documentID)
	}
	return 0, errors.New("not implemented")
}

func (m *mockIngestionService) Stats(ctx context.Context) (*domain.IndexStats, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx)
	}
	return nil, errors.New("not implemented")
}

type mockCorpusService struct {
	ingestFolderFn func(ctx context.Context, folder string) (*domain.BatchResult, error)
}

func (m *mockCorpusService) IngestFolder(ctx context.Context, folder string) (*domain.BatchResult, error) {
	if m.ingestFolderFn != nil {
		return m.ingestFolderFn(ctx, folder)
	}
	return nil, errors.New("not implemented")
}

type mockHealth struct {
	status map[string]error
	config *domain.RuntimeConfig
}

func (m *mockHealth) HealthCheck(ctx context.Context) map[string]error {
	return m.status
}

func (m *mockHealth) Config() *domain.RuntimeConfig {
	return m.config
}

// Test helpers

type testServer struct {
	retrieval *mockRetrievalService
	answer    *mockAnswerService
	ingestion *mockIngestionService
	corpus    *mockCorpusService
	health    *mockHealth
	server    *Server
}

func newTestServer() *testServer {
	ts := &testServer{
		retrieval: &mockRetrievalService{},
		answer:    &mockAnswerService{},
		ingestion: &mockIngestionService{},
		corpus:    &mockCorpusService{},
		health: &mockHealth{
			status: map[string]error{"vector_index": nil, "embedding": nil},
			config: domain.NewRuntimeConfig("sqlite", "redis"),
		},
	}
	ts.health.config.SetEmbeddingAvailable(true)
	cfg := DefaultConfig()
	cfg.Version = "1.2.3"
	ts.server = NewServer(cfg, Dependencies{
		Retrieval: ts.retrieval,
		Answer:    ts.answer,
		Ingestion: ts.ingestion,
		Corpus:    ts.corpus,
		Health:    ts.health,
	})
	return ts
}

func (ts *testServer) do(method, target string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
	return v
}

// Health endpoints

func TestHandleWelcome(t *testing.T) {
	ts := newTestServer()

	rr := ts.do(http.MethodGet, "/", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	body := decodeBody[map[string]string](t, rr)
	if body["message"] != WelcomeMessage {
		t.Errorf("unexpected message %q", body["message"])
	}

	rr = ts.do(http.MethodGet, "/unknown", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown path, got %d", rr.Code)
	}
}

func TestHandleHealthAndVersion(t *testing.T) {
	ts := newTestServer()

	rr := ts.do(http.MethodGet, "/health", nil)
	if rr.Code != http.StatusOK || decodeBody[StatusResponse](t, rr).Status != "ok" {
		t.Errorf("unexpected health response %d %s", rr.Code, rr.Body.String())
	}

	rr = ts.do(http.MethodGet, "/version", nil)
	if decodeBody[VersionResponse](t, rr).Version != "1.2.3" {
		t.Errorf("unexpected version response %s", rr.Body.String())
	}
}

func TestHandleReady(t *testing.T) {
	ts := newTestServer()

	rr := ts.do(http.MethodGet, "/ready", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	resp := decodeBody[ReadyResponse](t, rr)
	if resp.Status != "ready" || resp.Components["embedding"] != "ok" {
		t.Errorf("unexpected readiness %+v", resp)
	}
	if resp.IndexBackend != "sqlite" || resp.LockBackend != "redis" {
		t.Errorf("expected backends reported, got %+v", resp)
	}
	if !resp.CanRetrieve || resp.CanAnswer {
		t.Errorf("expected retrieval without answers, got %+v", resp)
	}

	ts.health.config.SetLLMAvailable(true)
	resp = decodeBody[ReadyResponse](t, ts.do(http.MethodGet, "/ready", nil))
	if !resp.CanAnswer {
		t.Errorf("expected answers available, got %+v", resp)
	}

	ts.health.status["embedding"] = domain.ErrServiceUnavailable
	rr = ts.do(http.MethodGet, "/ready", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
	resp = decodeBody[ReadyResponse](t, rr)
	if resp.Status != "not ready" || resp.Components["embedding"] != "service unavailable" {
		t.Errorf("unexpected readiness %+v", resp)
	}
}

// Retrieval endpoints

func TestHandleQuery(t *testing.T) {
	ts := newTestServer()

	var got domain.RetrievalRequest
	ts.answer.answerFn = func(ctx context.Context, req domain.RetrievalRequest) (*domain.Answer, error) {
		got = req
		return &domain.Answer{
			Query:    req.Query,
			Response: "Plants make food from sunlight.",
			Metadata: []domain.Tags{{"class": "Class 8", "subject": "Science"}},
		}, nil
	}

	rr := ts.do(http.MethodGet, "/query?q=photosynthesis&class_name=Class+8&subject=Science&top_k=3", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	if got.Query != "photosynthesis" || got.TopK != 3 {
		t.Errorf("unexpected request %+v", got)
	}
	if got.Filters["class"] != "Class 8" || got.Filters["subject"] != "Science" || got.Filters["chapter"] != "" {
		t.Errorf("unexpected filters %v", got.Filters)
	}

	resp := decodeBody[map[string]any](t, rr)
	if resp["response"] != "Plants make food from sunlight." {
		t.Errorf("unexpected response %v", resp["response"])
	}
	if md, ok := resp["metadata"].([]any); !ok || len(md) != 1 {
		t.Errorf("unexpected metadata %v", resp["metadata"])
	}
}

func TestHandleReady_CannotRetrieve(t *testing.T) {
	ts := newTestServer()
	ts.health.config.SetEmbeddingAvailable(false)

	rr := ts.do(http.MethodGet, "/ready", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
	resp := decodeBody[ReadyResponse](t, rr)
	if resp.Status != "not ready" || resp.CanRetrieve {
		t.Errorf("unexpected readiness %+v", resp)
	}
}

func TestHandleQuery_OmitsBlankFilters(t *testing.T) {
	ts := newTestServer()

	var got domain.RetrievalRequest
	ts.answer.answerFn = func(ctx context.Context, req domain.RetrievalRequest) (*domain.Answer, error) {
		got = req
		return &domain.Answer{Query: req.Query, Metadata: []domain.Tags{}}, nil
	}

	rr := ts.do(http.MethodGet, "/query?q=rivers&subject=Geo", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(got.Filters) != 1 || got.Filters["subject"] != "Geo" {
		t.Errorf("expected only the subject filter, got %v", got.Filters)
	}
}

func TestHandleQuery_Errors(t *testing.T) {
	ts := newTestServer()

	rr := ts.do(http.MethodGet, "/query?q=x&top_k=many", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad top_k, got %d", rr.Code)
	}

	ts.answer.answerFn = func(ctx context.Context, req domain.RetrievalRequest) (*domain.Answer, error) {
		return nil, fmt.Errorf("%w: query is empty", domain.ErrInvalidInput)
	}
	rr = ts.do(http.MethodGet, "/query", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty query, got %d", rr.Code)
	}
	if !strings.Contains(decodeBody[ErrorResponse](t, rr).Error, "query is empty") {
		t.Errorf("expected input error message, got %s", rr.Body.String())
	}
}

func TestHandleRetrieve(t *testing.T) {
	ts := newTestServer()

	ts.retrieval.retrieveFn = func(ctx context.Context, req domain.RetrievalRequest) (*domain.RetrievalResult, error) {
		if req.Filters["chapter"] != "Chapter 1" || req.TopK != 2 {
			t.Errorf("unexpected request %+v", req)
		}
		return &domain.RetrievalResult{
			Query: req.Query,
			Passages: []domain.Passage{
				{ChunkID: "doc-0", DocumentID: "doc", Text: "A", Score: 0.9},
				{ChunkID: "doc-1", DocumentID: "doc", Text: "B", Score: 0.5},
			},
		}, nil
	}

	rr := ts.do(http.MethodPost, "/api/v1/retrieve", domain.RetrievalRequest{
		Query:   "rivers",
		Filters: map[string]string{"chapter": "Chapter 1"},
		TopK:    2,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	result := decodeBody[domain.RetrievalResult](t, rr)
	if len(result.Passages) != 2 || result.Passages[0].ChunkID != "doc-0" {
		t.Errorf("unexpected passages %+v", result.Passages)
	}
}

func TestHandleRetrieve_InvalidBody(t *testing.T) {
	ts := newTestServer()

	rr := ts.do(http.MethodPost, "/api/v1/retrieve", "{not json")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
}

func TestServiceErrorMapping(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", fmt.Errorf("%w: unknown filter key", domain.ErrInvalidInput), http.StatusBadRequest},
		{"input too long", domain.ProviderError("embed", domain.ErrInputTooLong), http.StatusUnprocessableEntity},
		{"provider", domain.ProviderError("query index", errors.New("disk I/O error")), http.StatusBadGateway},
		{"unavailable", fmt.Errorf("embed: %w", domain.ErrServiceUnavailable), http.StatusServiceUnavailable},
		{"lock", fmt.Errorf("doc-1: %w", domain.ErrLockNotAcquired), http.StatusServiceUnavailable},
		{"timeout", domain.ProviderError("embed query", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"configuration", fmt.Errorf("open: %w", domain.ErrDimensionMismatch), http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer()
			ts.retrieval.retrieveFn = func(ctx context.Context, req domain.RetrievalRequest) (*domain.RetrievalResult, error) {
				return nil, tc.err
			}
			rr := ts.do(http.MethodPost, "/api/v1/retrieve", domain.RetrievalRequest{Query: "q"})
			if rr.Code != tc.want {
				t.Errorf("expected %d, got %d", tc.want, rr.Code)
			}
		})
	}
}

// Ingestion endpoints

func TestHandleIngestDocument(t *testing.T) {
	ts := newTestServer()

	ts.ingestion.ingestFn = func(ctx context.Context, doc domain.Document) (int, error) {
		if doc.ID != "class8_geo_c1.pdf" || doc.Tags["subject"] != "Geo" {
			t.Errorf("unexpected document %+v", doc)
		}
		return 4, nil
	}

	rr := ts.do(http.MethodPost, "/api/v1/documents", map[string]any{
		"document_id": "class8_geo_c1.pdf",
		"text":        "Rivers flow to the sea.",
		"tags":        map[string]string{"subject": "Geo"},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	resp := decodeBody[ChunkCountResponse](t, rr)
	if resp.DocumentID != "class8_geo_c1.pdf" || resp.Chunks != 4 {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestHandleIngestDocument_Locked(t *testing.T) {
	ts := newTestServer()
	ts.ingestion.ingestFn = func(ctx context.Context, doc domain.Document) (int, error) {
		return 0, domain.ErrLockNotAcquired
	}

	rr := ts.do(http.MethodPost, "/api/v1/documents", domain.Document{ID: "d", Text: "t"})
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rr.Code)
	}
}

func TestHandleIngestFolder(t *testing.T) {
	ts := newTestServer()

	ts.corpus.ingestFolderFn = func(ctx context.Context, folder string) (*domain.BatchResult, error) {
		if folder != "./data" {
			t.Errorf("unexpected folder %q", folder)
		}
		result := &domain.BatchResult{Skipped: []string{"notes.pdf"}}
		result.Add(domain.IngestResult{DocumentID: "class8_geo_c1.pdf", Chunks: 3})
		return result, nil
	}

	rr := ts.do(http.MethodPost, "/api/v1/ingest", IngestFolderRequest{FolderPath: "./data"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	result := decodeBody[domain.BatchResult](t, rr)
	if result.Succeeded != 1 || len(result.Skipped) != 1 {
		t.Errorf("unexpected result %+v", result)
	}

	rr = ts.do(http.MethodPost, "/api/v1/ingest", IngestFolderRequest{})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing folder, got %d", rr.Code)
	}

	ts.corpus.ingestFolderFn = func(ctx context.Context, folder string) (*domain.BatchResult, error) {
		return nil, fmt.Errorf("%w: %s is not a directory", domain.ErrInvalidInput, folder)
	}
	rr = ts.do(http.MethodPost, "/api/v1/ingest", IngestFolderRequest{FolderPath: "/missing"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid folder, got %d", rr.Code)
	}
}

func TestHandleIngestFolder_NotConfigured(t *testing.T) {
	srv := NewServer(DefaultConfig(), Dependencies{
		Retrieval: &mockRetrievalService{},
		Answer:    &mockAnswerService{},
		Ingestion: &mockIngestionService{},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest", strings.NewReader(`{"folder_path":"x"}`))
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotImplemented {
		t.Errorf("expected 501, got %d", rr.Code)
	}
}

func TestHandleChunkCount(t *testing.T) {
	ts := newTestServer()
	ts.ingestion.chunkCountFn = func(ctx context.Context, documentID string) (int, error) {
		if documentID != "class8_geo_c1.pdf" {
			t.Errorf("unexpected document id %q", documentID)
		}
		return 7, nil
	}

	rr := ts.do(http.MethodGet, "/api/v1/documents/class8_geo_c1.pdf/chunks/count", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if resp := decodeBody[ChunkCountResponse](t, rr); resp.Chunks != 7 {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestHandleStats(t *testing.T) {
	ts := newTestServer()
	ts.ingestion.statsFn = func(ctx context.Context) (*domain.IndexStats, error) {
		return &domain.IndexStats{Collection: "documents", Chunks: 12, Dimensions: 384, Model: "all-minilm"}, nil
	}

	rr := ts.do(http.MethodGet, "/api/v1/stats", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	stats := decodeBody[domain.IndexStats](t, rr)
	if stats.Chunks != 12 || stats.Dimensions != 384 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestHandleSwaggerDoc(t *testing.T) {
	ts := newTestServer()

	rr := ts.do(http.MethodGet, "/swagger/doc.json", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	doc := decodeBody[map[string]any](t, rr)
	paths, ok := doc["paths"].(map[string]any)
	if !ok {
		t.Fatalf("expected paths in document")
	}
	for _, p := range []string{"/query", "/api/v1/retrieve", "/api/v1/documents", "/api/v1/ingest"} {
		if _, ok := paths[p]; !ok {
			t.Errorf("expected path %s in document", p)
		}
	}
}
