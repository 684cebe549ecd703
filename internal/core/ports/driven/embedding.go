package driven

import (
	"context"
)

// EmbeddingService generates text embeddings.
// The same instance must serve ingestion and retrieval so both sides share one vector space.
type EmbeddingService interface {
	// Embed generates embeddings for multiple texts, one per input in order.
	// Returns domain.ErrInputTooLong when a text exceeds the model's input limit.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a retrieval query
	EmbedQuery(ctx context.Context, query string) ([]float32, error)

	// Dimensions returns the embedding dimension size
	Dimensions() int

	// Model returns the model name being used
	Model() string

	// HealthCheck verifies the embedding service is available
	HealthCheck(ctx context.Context) error

	// Close releases resources held by the embedding service
	Close() error
}
