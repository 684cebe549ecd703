package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/runtime"
)

// Ensure retrievalService implements RetrievalService
var _ driving.RetrievalService = (*retrievalService)(nil)

// RetrievalConfig holds configuration for the retrieval service.
type RetrievalConfig struct {
	Filters      *domain.FilterBuilder // Permissible filter keys (default: domain.DefaultTagKeys)
	Logger       *slog.Logger
	DefaultTopK  int           // Used when a request has no top_k (default: 5)
	MaxTopK      int           // Upper bound for top_k (default: 100)
	EmbedTimeout time.Duration // Query embedding (default: 30s)
	IndexTimeout time.Duration // Index query (default: 30s)
}

// retrievalService implements the RetrievalService interface
type retrievalService struct {
	services     *runtime.Services
	filters      *domain.FilterBuilder
	logger       *slog.Logger
	defaultTopK  int
	maxTopK      int
	embedTimeout time.Duration
	indexTimeout time.Duration
}

// NewRetrievalService creates a new RetrievalService
func NewRetrievalService(services *runtime.Services, cfg RetrievalConfig) (driving.RetrievalService, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	filters := cfg.Filters
	if filters == nil {
		var err error
		if filters, err = domain.NewFilterBuilder(domain.DefaultTagKeys); err != nil {
			return nil, err
		}
	}
	defaultTopK := cfg.DefaultTopK
	if defaultTopK <= 0 {
		defaultTopK = domain.DefaultTopK
	}
	maxTopK := cfg.MaxTopK
	if maxTopK <= 0 {
		maxTopK = domain.MaxTopK
	}
	if defaultTopK > maxTopK {
		return nil, fmt.Errorf("%w: default top_k %d exceeds max %d", domain.ErrConfiguration, defaultTopK, maxTopK)
	}
	embedTimeout := cfg.EmbedTimeout
	if embedTimeout == 0 {
		embedTimeout = 30 * time.Second
	}
	indexTimeout := cfg.IndexTimeout
	if indexTimeout == 0 {
		indexTimeout = 30 * time.Second
	}

	return &retrievalService{
		services:     services,
		filters:      filters,
		logger:       logger,
		defaultTopK:  defaultTopK,
		maxTopK:      maxTopK,
		embedTimeout: embedTimeout,
		indexTimeout: indexTimeout,
	}, nil
}

// Retrieve embeds the query and delegates ranking and filtering to the index.
// No match is an empty result, not an error. Failures are not retried.
func (s *retrievalService) Retrieve(ctx context.Context, req domain.RetrievalRequest) (*domain.RetrievalResult, error) {
	start := time.Now()

	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("%w: query is required", domain.ErrInvalidInput)
	}

	topK, err := s.topK(req.TopK)
	if err != nil {
		return nil, err
	}

	filter, err := s.filters.Build(req.Filters)
	if err != nil {
		return nil, err
	}

	embedder := s.services.EmbeddingService()
	index := s.services.VectorIndex()
	if embedder == nil || index == nil {
		return nil, domain.ErrServiceUnavailable
	}

	embedCtx, cancel := context.WithTimeout(ctx, s.embedTimeout)
	embedding, err := embedder.EmbedQuery(embedCtx, req.Query)
	cancel()
	if err != nil {
		return nil, domain.ProviderError("embed query", err)
	}

	indexCtx, cancel := context.WithTimeout(ctx, s.indexTimeout)
	passages, err := index.Query(indexCtx, embedding, topK, filter)
	cancel()
	if err != nil {
		return nil, domain.ProviderError("query index", err)
	}
	if passages == nil {
		passages = []domain.Passage{}
	}

	s.logger.Info("query processed",
		"filter", filter.String(),
		"top_k", topK,
		"results", len(passages),
		"duration", time.Since(start),
	)

	return &domain.RetrievalResult{
		Query:    req.Query,
		Passages: passages,
		Took:     time.Since(start),
	}, nil
}

// topK applies the default and the upper bound
func (s *retrievalService) topK(requested int) (int, error) {
	switch {
	case requested < 0:
		return 0, fmt.Errorf("%w: top_k must be positive, got %d", domain.ErrInvalidInput, requested)
	case requested == 0:
		return s.defaultTopK, nil
	case requested > s.maxTopK:
		return s.maxTopK, nil
	default:
		return requested, nil
	}
}
