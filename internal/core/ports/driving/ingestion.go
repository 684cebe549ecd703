package driving

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// IngestionService turns documents into indexed chunks
type IngestionService interface {
	// Ingest chunks, embeds and stores one document, replacing any earlier
	// version. Returns the number of chunks stored.
	Ingest(ctx context.Context, doc domain.Document) (int, error)

	// IngestBatch ingests each document independently and reports per-document outcomes
	IngestBatch(ctx context.Context, docs []domain.Document) *domain.BatchResult

	// ChunkCount returns the number of chunks stored for a document
	ChunkCount(ctx context.Context, documentID string) (int, error)

	// Stats describes the underlying index
	Stats(ctx context.Context) (*domain.IndexStats, error)
}

// CorpusService ingests a folder of tagged source files
type CorpusService interface {
	// IngestFolder extracts, tags and ingests every supported file in folder.
	// Files not following the naming convention are reported in BatchResult.Skipped.
	IngestFolder(ctx context.Context, folder string) (*domain.BatchResult, error)
}
