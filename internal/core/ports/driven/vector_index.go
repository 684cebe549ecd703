package driven

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// VectorIndex persists embedded chunks with their tags and answers
// filtered nearest-neighbour queries.
type VectorIndex interface {
	// Open creates the collection or validates an existing one.
	// Returns domain.ErrConfiguration if the collection was created with
	// different dimensions or a different embedding model.
	Open(ctx context.Context, dimensions int, model string) error

	// Upsert inserts or overwrites chunks by ID. Records are durable on return.
	// Returns domain.ErrDimensionMismatch, storing nothing, if any embedding
	// has the wrong length.
	Upsert(ctx context.Context, chunks []*domain.IndexedChunk) error

	// Query returns up to topK passages whose tags satisfy filter, ordered by
	// descending cosine similarity (ties by insertion order).
	// No match yields an empty slice and no error.
	Query(ctx context.Context, embedding []float32, topK int, filter domain.FilterPredicate) ([]domain.Passage, error)

	// DeleteStale removes chunks of a document with position >= keep
	DeleteStale(ctx context.Context, documentID string, keep int) (int, error)

	// CountByDocument returns the number of stored chunks for a document
	CountByDocument(ctx context.Context, documentID string) (int, error)

	// Count returns the total number of stored chunks
	Count(ctx context.Context) (int, error)

	// Stats describes the collection
	Stats(ctx context.Context) (*domain.IndexStats, error)

	// HealthCheck verifies the index is reachable
	HealthCheck(ctx context.Context) error

	// Close releases resources held by the index
	Close() error
}
