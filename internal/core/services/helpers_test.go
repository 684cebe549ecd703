package services

import (
	"context"
	"testing"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/sercha-rag/internal/postprocessors"
	"github.com/custodia-labs/sercha-rag/internal/runtime"
)

// testEnv bundles the mocks behind one set of runtime services
type testEnv struct {
	services  *runtime.Services
	embedding *mocks.MockEmbeddingService
	index     *mocks.MockVectorIndex
}

// newTestEnv creates runtime services backed by mocks with the index opened
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	embedding := mocks.NewMockEmbeddingService()
	index := mocks.NewMockVectorIndex()

	services := runtime.NewServices(domain.NewRuntimeConfig("memory", "none"))
	services.SetEmbeddingService(embedding)
	services.SetVectorIndex(index)
	if err := services.OpenIndex(context.Background()); err != nil {
		t.Fatalf("open index: %v", err)
	}
	return &testEnv{services: services, embedding: embedding, index: index}
}

// tinyPipeline splits "A B C" into one chunk per letter
func tinyPipeline(t *testing.T) *postprocessors.Pipeline {
	t.Helper()
	p, err := postprocessors.NewDefaultPipeline(postprocessors.ChunkConfig{MaxChunkSize: 2})
	if err != nil {
		t.Fatalf("build pipeline: %v", err)
	}
	return p
}

func (e *testEnv) ingestion(t *testing.T, cfg IngestionConfig) *ingestionService {
	t.Helper()
	if cfg.Pipeline == nil {
		p, err := postprocessors.NewDefaultPipeline(postprocessors.DefaultChunkConfig())
		if err != nil {
			t.Fatalf("build pipeline: %v", err)
		}
		cfg.Pipeline = p
	}
	return NewIngestionService(e.services, cfg).(*ingestionService)
}

func (e *testEnv) retrieval(t *testing.T) *retrievalService {
	t.Helper()
	svc, err := NewRetrievalService(e.services, RetrievalConfig{})
	if err != nil {
		t.Fatalf("new retrieval service: %v", err)
	}
	return svc.(*retrievalService)
}
