package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/vector"
)

// MockVectorIndex is an in-memory VectorIndex using exact cosine ranking
type MockVectorIndex struct {
	mu         sync.RWMutex
	dimensions int
	model      string
	records    map[string]*mockRecord
	seq        int64

	// Custom behavior hooks (optional)
	UpsertFn func(chunks []*domain.IndexedChunk) error
	QueryFn  func(embedding []float32, topK int, filter domain.FilterPredicate) ([]domain.Passage, error)
	HealthFn func() error
}

type mockRecord struct {
	chunk domain.IndexedChunk
	seq   int64
}

// NewMockVectorIndex creates a new MockVectorIndex
func NewMockVectorIndex() *MockVectorIndex {
	return &MockVectorIndex{
		records: make(map[string]*mockRecord),
	}
}

func (m *MockVectorIndex) Open(ctx context.Context, dimensions int, model string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dimensions != 0 && (m.dimensions != dimensions || m.model != model) {
		return fmt.Errorf("%w: collection has %d dimensions (%s)", domain.ErrConfiguration, m.dimensions, m.model)
	}
	m.dimensions = dimensions
	m.model = model
	return nil
}

func (m *MockVectorIndex) Upsert(ctx context.Context, chunks []*domain.IndexedChunk) error {
	if m.UpsertFn != nil {
		if err := m.UpsertFn(chunks); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range chunks {
		if m.dimensions != 0 && len(c.Embedding) != m.dimensions {
			return domain.ErrDimensionMismatch
		}
	}
	for _, c := range chunks {
		stored := *c
		stored.Tags = c.Tags.Clone()
		stored.Embedding = append([]float32(nil), c.Embedding...)
		if existing, ok := m.records[c.ID]; ok {
			existing.chunk = stored
			continue
		}
		m.seq++
		m.records[c.ID] = &mockRecord{chunk: stored, seq: m.seq}
	}
	return nil
}

func (m *MockVectorIndex) Query(ctx context.Context, embedding []float32, topK int, filter domain.FilterPredicate) ([]domain.Passage, error) {
	if m.QueryFn != nil {
		return m.QueryFn(embedding, topK, filter)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	top := vector.NewTopK[*mockRecord](topK)
	for _, r := range m.records {
		if !filter.Matches(r.chunk.Tags) {
			continue
		}
		top.Push(vector.Scored[*mockRecord]{
			Item:  r,
			Score: vector.CosineSimilarity(embedding, r.chunk.Embedding),
			Seq:   r.seq,
		})
	}

	passages := make([]domain.Passage, 0, topK)
	for _, s := range top.Results() {
		c := s.Item.chunk
		passages = append(passages, domain.Passage{
			ChunkID:    c.ID,
			DocumentID: c.DocumentID,
			Text:       c.Text,
			Tags:       c.Tags.Clone(),
			Score:      s.Score,
		})
	}
	return passages, nil
}

func (m *MockVectorIndex) DeleteStale(ctx context.Context, documentID string, keep int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, r := range m.records {
		if r.chunk.DocumentID == documentID && r.chunk.Position >= keep {
			delete(m.records, id)
			removed++
		}
	}
	return removed, nil
}

func (m *MockVectorIndex) CountByDocument(ctx context.Context, documentID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, r := range m.records {
		if r.chunk.DocumentID == documentID {
			n++
		}
	}
	return n, nil
}

func (m *MockVectorIndex) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

func (m *MockVectorIndex) Stats(ctx context.Context) (*domain.IndexStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return &domain.IndexStats{
		Collection: "mock",
		Chunks:     len(m.records),
		Dimensions: m.dimensions,
		Model:      m.model,
	}, nil
}

func (m *MockVectorIndex) HealthCheck(ctx context.Context) error {
	if m.HealthFn != nil {
		return m.HealthFn()
	}
	return nil
}

func (m *MockVectorIndex) Close() error {
	return nil
}

// Helper methods for testing

// Get returns a stored chunk by ID
func (m *MockVectorIndex) Get(id string) (*domain.IndexedChunk, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[id]
	if !ok {
		return nil, false
	}
	c := r.chunk
	return &c, true
}

func (m *MockVectorIndex) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[string]*mockRecord)
	m.seq = 0
}
