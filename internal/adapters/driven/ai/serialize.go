package ai

import (
	"context"
	"sync"

	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure serialized implements EmbeddingService
var _ driven.EmbeddingService = (*serialized)(nil)

// serialized runs embedding calls of a non-reentrant provider one at a time
type serialized struct {
	mu    sync.Mutex
	inner driven.EmbeddingService
}

// Serialize wraps svc so at most one Embed or EmbedQuery call runs at once.
// Metadata calls pass through.
func Serialize(svc driven.EmbeddingService) driven.EmbeddingService {
	if svc == nil {
		return nil
	}
	if s, ok := svc.(*serialized); ok {
		return s
	}
	return &serialized{inner: svc}
}

func (s *serialized) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Embed(ctx, texts)
}

func (s *serialized) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.EmbedQuery(ctx, query)
}

func (s *serialized) Dimensions() int {
	return s.inner.Dimensions()
}

func (s *serialized) Model() string {
	return s.inner.Model()
}

func (s *serialized) HealthCheck(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.HealthCheck(ctx)
}

func (s *serialized) Close() error {
	return s.inner.Close()
}
