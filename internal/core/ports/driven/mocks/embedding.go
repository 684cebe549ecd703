package mocks

import (
	"context"
	"hash/fnv"
	"sync"
	"unicode/utf8"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// MockEmbeddingService is a mock implementation of EmbeddingService for testing.
// Embeddings are derived from a hash of the text, so equal texts embed equally.
type MockEmbeddingService struct {
	mu         sync.Mutex
	dimensions int
	model      string
	maxInput   int
	failNext   error
	healthErr  error
	batches    [][]string
	queries    []string
}

// NewMockEmbeddingService creates a new MockEmbeddingService
func NewMockEmbeddingService() *MockEmbeddingService {
	return &MockEmbeddingService{
		dimensions: 384,
		model:      "mock-embedding-model",
	}
}

func (m *MockEmbeddingService) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.batches = append(m.batches, append([]string(nil), texts...))

	result := make([][]float32, len(texts))
	for i, text := range texts {
		if m.maxInput > 0 && utf8.RuneCountInString(text) > m.maxInput {
			return nil, domain.ErrInputTooLong
		}
		result[i] = m.generateEmbedding(text)
	}
	return result, nil
}

func (m *MockEmbeddingService) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.queries = append(m.queries, query)
	return m.generateEmbedding(query), nil
}

func (m *MockEmbeddingService) Dimensions() int {
	return m.dimensions
}

func (m *MockEmbeddingService) Model() string {
	return m.model
}

func (m *MockEmbeddingService) HealthCheck(ctx context.Context) error {
	return m.healthErr
}

func (m *MockEmbeddingService) Close() error {
	return nil
}

func (m *MockEmbeddingService) takeFailure() error {
	err := m.failNext
	m.failNext = nil
	return err
}

// generateEmbedding generates a deterministic embedding based on text hash
func (m *MockEmbeddingService) generateEmbedding(text string) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	embedding := make([]float32, m.dimensions)
	for i := range embedding {
		// Generate deterministic pseudo-random values
		seed = seed*1103515245 + 12345
		embedding[i] = float32(seed%1000) / 1000.0
	}
	return embedding
}

// Helper methods for testing

// SetFailNext makes the next Embed or EmbedQuery call return err
func (m *MockEmbeddingService) SetFailNext(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = err
}

func (m *MockEmbeddingService) SetDimensions(dim int) {
	m.dimensions = dim
}

func (m *MockEmbeddingService) SetModel(model string) {
	m.model = model
}

// SetMaxInput makes texts longer than n runes fail with ErrInputTooLong
func (m *MockEmbeddingService) SetMaxInput(n int) {
	m.maxInput = n
}

func (m *MockEmbeddingService) SetHealthError(err error) {
	m.healthErr = err
}

// Vector returns the embedding the mock produces for text
func (m *MockEmbeddingService) Vector(text string) []float32 {
	return m.generateEmbedding(text)
}

// Batches returns the texts passed to each Embed call
func (m *MockEmbeddingService) Batches() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]string(nil), m.batches...)
}

// Queries returns the texts passed to EmbedQuery
func (m *MockEmbeddingService) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queries...)
}
