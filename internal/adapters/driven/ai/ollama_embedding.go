package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure OllamaEmbedding implements EmbeddingService
var _ driven.EmbeddingService = (*OllamaEmbedding)(nil)

const (
	defaultOllamaBaseURL = "http://localhost:11434"
	// all-minilm is the Ollama build of all-MiniLM-L6-v2
	defaultOllamaEmbeddingModel = "all-minilm"
)

var ollamaModelDimensions = map[string]int{
	"all-minilm":             384,
	"all-minilm:l6-v2":       384,
	"nomic-embed-text":       768,
	"mxbai-embed-large":      1024,
	"snowflake-arctic-embed": 1024,
}

// OllamaEmbedding implements EmbeddingService using a local Ollama server
type OllamaEmbedding struct {
	model      string
	baseURL    string
	dimensions int
	client     *http.Client
}

// NewOllamaEmbedding creates a new Ollama embedding service.
// Unknown models need their dimensionality passed explicitly.
func NewOllamaEmbedding(baseURL, model string, dimensions int) (*OllamaEmbedding, error) {
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	if model == "" {
		model = defaultOllamaEmbeddingModel
	}
	if dimensions <= 0 {
		known, ok := ollamaModelDimensions[model]
		if !ok {
			return nil, fmt.Errorf("%w: dimensions of embedding model %q are unknown", domain.ErrConfiguration, model)
		}
		dimensions = known
	}
	return &OllamaEmbedding{
		model:      model,
		baseURL:    strings.TrimRight(baseURL, "/"),
		dimensions: dimensions,
		client:     &http.Client{Timeout: defaultTimeout},
	}, nil
}

type ollamaEmbedRequest struct {
	Model    string   `json:"model"`
	Input    []string `json:"input"`
	Truncate bool     `json:"truncate"`
}

type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed generates embeddings for multiple texts in input order.
// Truncation is disabled so over-long inputs fail instead of being cut silently.
func (e *OllamaEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	var resp ollamaEmbedResponse
	err := postJSON(ctx, e.client, e.baseURL+"/api/embed", "", ollamaEmbedRequest{
		Model: e.model,
		Input: texts,
	}, &resp)
	if err != nil {
		return nil, err
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", domain.ErrProvider, len(resp.Embeddings), len(texts))
	}
	for i, emb := range resp.Embeddings {
		if len(emb) != e.dimensions {
			return nil, fmt.Errorf("%w: text %d: got %d dimensions, want %d", domain.ErrDimensionMismatch, i, len(emb), e.dimensions)
		}
	}
	return resp.Embeddings, nil
}

// EmbedQuery generates an embedding for a retrieval query
func (e *OllamaEmbedding) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	embeddings, err := e.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// Dimensions returns the embedding dimension size
func (e *OllamaEmbedding) Dimensions() int {
	return e.dimensions
}

// Model returns the model name being used
func (e *OllamaEmbedding) Model() string {
	return e.model
}

// HealthCheck verifies the Ollama server answers
func (e *OllamaEmbedding) HealthCheck(ctx context.Context) error {
	_, err := e.EmbedQuery(ctx, "health check")
	return err
}

// Close releases resources held by the embedding service
func (e *OllamaEmbedding) Close() error {
	e.client.CloseIdleConnections()
	return nil
}
