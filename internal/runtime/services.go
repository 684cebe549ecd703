package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Services owns the long-lived collaborators shared by ingestion and retrieval.
// It is built once at startup; both pipelines read the same embedding
// service from it so they always embed into one vector space.
// Thread-safe for concurrent access.
type Services struct {
	mu sync.RWMutex

	// Config tracks capability flags
	config *domain.RuntimeConfig

	embeddingService driven.EmbeddingService
	llmService       driven.LLMService
	vectorIndex      driven.VectorIndex
	lock             driven.DistributedLock
	closers          []func() error
}

// NewServices creates a new Services registry
func NewServices(config *domain.RuntimeConfig) *Services {
	return &Services{
		config: config,
	}
}

// Config returns the runtime configuration
func (s *Services) Config() *domain.RuntimeConfig {
	return s.config
}

// EmbeddingService returns the embedding service (may be nil)
func (s *Services) EmbeddingService() driven.EmbeddingService {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.embeddingService
}

// LLMService returns the answer-generation service (may be nil)
func (s *Services) LLMService() driven.LLMService {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.llmService
}

// VectorIndex returns the vector index (may be nil)
func (s *Services) VectorIndex() driven.VectorIndex {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vectorIndex
}

// Lock returns the distributed lock (may be nil)
func (s *Services) Lock() driven.DistributedLock {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lock
}

// SetEmbeddingService updates the embedding service.
// Closes the old service if present. Updates config flags.
func (s *Services) SetEmbeddingService(svc driven.EmbeddingService) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.embeddingService != nil && s.embeddingService != svc {
		_ = s.embeddingService.Close()
	}

	s.embeddingService = svc
	s.config.SetEmbeddingAvailable(svc != nil)
}

// SetLLMService updates the LLM service.
// Closes the old service if present. Updates config flags.
func (s *Services) SetLLMService(svc driven.LLMService) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.llmService != nil && s.llmService != svc {
		_ = s.llmService.Close()
	}

	s.llmService = svc
	s.config.SetLLMAvailable(svc != nil)
}

// SetVectorIndex sets the vector index
func (s *Services) SetVectorIndex(idx driven.VectorIndex) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectorIndex = idx
}

// SetLock sets the distributed lock
func (s *Services) SetLock(lock driven.DistributedLock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lock = lock
}

// OnClose registers a cleanup hook run by Close, such as closing a database pool.
// Hooks run in reverse registration order.
func (s *Services) OnClose(fn func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closers = append(s.closers, fn)
}

// OpenIndex opens the vector index collection for the current embedding model.
// A collection created for another model or dimensionality is a configuration error.
func (s *Services) OpenIndex(ctx context.Context) error {
	idx := s.VectorIndex()
	emb := s.EmbeddingService()
	if idx == nil || emb == nil {
		return fmt.Errorf("%w: vector index and embedding service are required", domain.ErrConfiguration)
	}
	return idx.Open(ctx, emb.Dimensions(), emb.Model())
}

// HealthCheck reports the health of every configured component by name.
// A nil entry means healthy.
func (s *Services) HealthCheck(ctx context.Context) map[string]error {
	s.mu.RLock()
	emb, llm, idx, lock := s.embeddingService, s.llmService, s.vectorIndex, s.lock
	s.mu.RUnlock()

	status := make(map[string]error)
	if idx != nil {
		status["vector_index"] = idx.HealthCheck(ctx)
	} else {
		status["vector_index"] = domain.ErrServiceUnavailable
	}
	if emb != nil {
		status["embedding"] = emb.HealthCheck(ctx)
	} else {
		status["embedding"] = domain.ErrServiceUnavailable
	}
	if llm != nil {
		status["llm"] = llm.Ping(ctx)
	}
	if lock != nil {
		status["lock"] = lock.Ping(ctx)
	}
	return status
}

// Close shuts down all services
func (s *Services) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.embeddingService != nil {
		errs = append(errs, s.embeddingService.Close())
		s.embeddingService = nil
	}
	if s.llmService != nil {
		errs = append(errs, s.llmService.Close())
		s.llmService = nil
	}
	if s.vectorIndex != nil {
		errs = append(errs, s.vectorIndex.Close())
		s.vectorIndex = nil
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	s.closers = nil
	s.lock = nil

	s.config.SetEmbeddingAvailable(false)
	s.config.SetLLMAvailable(false)

	return errors.Join(errs...)
}

// ValidateAndSetEmbedding validates connectivity before setting embedding service
func (s *Services) ValidateAndSetEmbedding(ctx context.Context, svc driven.EmbeddingService) error {
	if svc == nil {
		s.SetEmbeddingService(nil)
		return nil
	}

	if err := svc.HealthCheck(ctx); err != nil {
		_ = svc.Close()
		return err
	}

	s.SetEmbeddingService(svc)
	return nil
}

// ValidateAndSetLLM validates connectivity before setting LLM service
func (s *Services) ValidateAndSetLLM(ctx context.Context, svc driven.LLMService) error {
	if svc == nil {
		s.SetLLMService(nil)
		return nil
	}

	if err := svc.Ping(ctx); err != nil {
		_ = svc.Close()
		return err
	}

	s.SetLLMService(svc)
	return nil
}
