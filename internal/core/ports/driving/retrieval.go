package driving

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// RetrievalService answers filtered semantic queries with ranked passages
type RetrievalService interface {
	// Retrieve embeds the query and returns the most similar passages
	// satisfying the request filters
	Retrieve(ctx context.Context, req domain.RetrievalRequest) (*domain.RetrievalResult, error)
}

// AnswerService generates a grounded answer from retrieved passages
type AnswerService interface {
	// Answer retrieves passages for the request and asks the LLM to answer from them
	Answer(ctx context.Context, req domain.RetrievalRequest) (*domain.Answer, error)
}
