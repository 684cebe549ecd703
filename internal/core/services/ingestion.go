package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/runtime"
)

// Ensure ingestionService implements IngestionService
var _ driving.IngestionService = (*ingestionService)(nil)

// IngestionConfig holds configuration for the ingestion service.
type IngestionConfig struct {
	Pipeline     driven.PostProcessorPipeline // Required: chunking pipeline
	Logger       *slog.Logger
	BatchSize    int           // Texts per embedding request (default: 32)
	EmbedTimeout time.Duration // Per embedding request (default: 60s)
	IndexTimeout time.Duration // Per index write (default: 30s)
	LockTTL      time.Duration // TTL of the distributed document lock (default: 5m)
	LockWait     time.Duration // How long to wait for a document held elsewhere (default: 30s)
}

// ingestionService implements the IngestionService interface
type ingestionService struct {
	services     *runtime.Services
	pipeline     driven.PostProcessorPipeline
	locker       *documentLocker
	logger       *slog.Logger
	batchSize    int
	embedTimeout time.Duration
	indexTimeout time.Duration
}

// NewIngestionService creates a new IngestionService.
// The embedding service, vector index and optional distributed lock are read
// from services so ingestion and retrieval share the same instances.
func NewIngestionService(services *runtime.Services, cfg IngestionConfig) driving.IngestionService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 32
	}
	embedTimeout := cfg.EmbedTimeout
	if embedTimeout == 0 {
		embedTimeout = 60 * time.Second
	}
	indexTimeout := cfg.IndexTimeout
	if indexTimeout == 0 {
		indexTimeout = 30 * time.Second
	}
	lockTTL := cfg.LockTTL
	if lockTTL == 0 {
		lockTTL = 5 * time.Minute
	}
	lockWait := cfg.LockWait
	if lockWait == 0 {
		lockWait = 30 * time.Second
	}

	return &ingestionService{
		services: services,
		pipeline: cfg.Pipeline,
		locker: &documentLocker{
			local:  newKeyedMutex(),
			remote: services.Lock,
			ttl:    lockTTL,
			renew:  lockTTL / 3,
			wait:   lockWait,
			poll:   250 * time.Millisecond,
			logger: logger,
		},
		logger:       logger,
		batchSize:    batchSize,
		embedTimeout: embedTimeout,
		indexTimeout: indexTimeout,
	}
}

// Ingest chunks, embeds and stores one document.
// All chunks are embedded before anything is written, then stored in one
// upsert, so a failed embedding leaves the previous version intact.
// Chunks left over from a longer previous version are deleted afterwards.
func (s *ingestionService) Ingest(ctx context.Context, doc domain.Document) (int, error) {
	if err := doc.Validate(); err != nil {
		return 0, fmt.Errorf("ingest %q: %w", doc.ID, err)
	}

	embedder := s.services.EmbeddingService()
	index := s.services.VectorIndex()
	if embedder == nil || index == nil {
		return 0, fmt.Errorf("ingest %q: %w", doc.ID, domain.ErrServiceUnavailable)
	}

	processed := s.pipeline.Process(doc.Text)
	if len(processed) == 0 {
		return 0, fmt.Errorf("ingest %q: %w: no content after normalization", doc.ID, domain.ErrInvalidInput)
	}

	ctx, unlock, err := s.locker.lock(ctx, doc.ID)
	if err != nil {
		return 0, fmt.Errorf("ingest %q: %w", doc.ID, err)
	}
	defer unlock()

	start := time.Now()

	indexed := make([]*domain.IndexedChunk, len(processed))
	for i, c := range processed {
		indexed[i] = &domain.IndexedChunk{
			Chunk: domain.Chunk{
				ID:         domain.ChunkID(doc.ID, c.Position),
				DocumentID: doc.ID,
				Position:   c.Position,
				Text:       c.Content,
				Tags:       doc.Tags.Clone(),
				StartChar:  c.StartOffset,
				EndChar:    c.EndOffset,
			},
		}
	}

	for lo := 0; lo < len(indexed); lo += s.batchSize {
		hi := min(lo+s.batchSize, len(indexed))
		if err := s.embedBatch(ctx, embedder, indexed[lo:hi]); err != nil {
			return 0, fmt.Errorf("ingest %q: %w", doc.ID, leaseErr(ctx, err))
		}
	}

	// Another instance may own the document once the lease is lost
	if err := leaseErr(ctx, nil); err != nil {
		return 0, fmt.Errorf("ingest %q: %w", doc.ID, err)
	}

	if err := s.withIndexTimeout(ctx, func(ctx context.Context) error {
		return index.Upsert(ctx, indexed)
	}); err != nil {
		if lost := leaseErr(ctx, nil); lost != nil {
			return 0, fmt.Errorf("ingest %q: %w", doc.ID, lost)
		}
		return 0, fmt.Errorf("ingest %q: %w", doc.ID, domain.ProviderError("upsert", err))
	}

	var stale int
	if err := s.withIndexTimeout(ctx, func(ctx context.Context) error {
		var err error
		stale, err = index.DeleteStale(ctx, doc.ID, len(indexed))
		return err
	}); err != nil {
		// The new version is stored; leftover chunks are reported, not fatal
		s.logger.Warn("failed to delete stale chunks", "document_id", doc.ID, "error", err)
	}

	s.logger.Info("document ingested",
		"document_id", doc.ID,
		"chunks", len(indexed),
		"stale_deleted", stale,
		"duration", time.Since(start),
	)
	return len(indexed), nil
}

// leaseErr returns the lease-loss cause once ctx was cancelled for it, else err.
func leaseErr(ctx context.Context, err error) error {
	if cause := context.Cause(ctx); errors.Is(cause, domain.ErrLockNotAcquired) {
		return cause
	}
	return err
}

func (s *ingestionService) embedBatch(ctx context.Context, embedder driven.EmbeddingService, batch []*domain.IndexedChunk) error {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Text
	}

	embedCtx, cancel := context.WithTimeout(ctx, s.embedTimeout)
	defer cancel()

	vectors, err := embedder.Embed(embedCtx, texts)
	if err != nil {
		return domain.ProviderError("embed", err)
	}
	if len(vectors) != len(batch) {
		return domain.ProviderError("embed", fmt.Errorf("got %d embeddings for %d texts", len(vectors), len(batch)))
	}
	for i, v := range vectors {
		batch[i].Embedding = v
	}
	return nil
}

func (s *ingestionService) withIndexTimeout(ctx context.Context, fn func(context.Context) error) error {
	indexCtx, cancel := context.WithTimeout(ctx, s.indexTimeout)
	defer cancel()
	return fn(indexCtx)
}

// IngestBatch ingests each document independently.
// A failing document is logged and reported; it never aborts the batch.
func (s *ingestionService) IngestBatch(ctx context.Context, docs []domain.Document) *domain.BatchResult {
	result := &domain.BatchResult{Results: make([]domain.IngestResult, 0, len(docs))}

	for _, doc := range docs {
		n, err := s.Ingest(ctx, doc)
		r := domain.IngestResult{DocumentID: doc.ID, Chunks: n}
		if err != nil {
			r.Error = err.Error()
			s.logger.Warn("document skipped", "document_id", doc.ID, "error", err)
		}
		result.Add(r)
	}

	s.logger.Info("batch ingested",
		"documents", len(docs),
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"chunks", result.TotalChunks(),
	)
	return result
}

// ChunkCount returns the number of chunks stored for a document
func (s *ingestionService) ChunkCount(ctx context.Context, documentID string) (int, error) {
	index := s.services.VectorIndex()
	if index == nil {
		return 0, domain.ErrServiceUnavailable
	}
	var n int
	err := s.withIndexTimeout(ctx, func(ctx context.Context) error {
		var err error
		n, err = index.CountByDocument(ctx, documentID)
		return err
	})
	if err != nil {
		return 0, domain.ProviderError("count", err)
	}
	return n, nil
}

// Stats describes the underlying index
func (s *ingestionService) Stats(ctx context.Context) (*domain.IndexStats, error) {
	index := s.services.VectorIndex()
	if index == nil {
		return nil, domain.ErrServiceUnavailable
	}
	var stats *domain.IndexStats
	err := s.withIndexTimeout(ctx, func(ctx context.Context) error {
		var err error
		stats, err = index.Stats(ctx)
		return err
	})
	if err != nil {
		return nil, domain.ProviderError("stats", err)
	}
	return stats, nil
}
