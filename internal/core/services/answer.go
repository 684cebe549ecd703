package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/runtime"
)

// Ensure answerService implements AnswerService
var _ driving.AnswerService = (*answerService)(nil)

// Responses returned without consulting the LLM
const (
	NoDocumentsResponse = "No relevant documents found."
	NoLLMResponse       = "Answer generation is not configured."
)

// answerPrompt grounds the model on the retrieved passages.
const answerPrompt = `DOCUMENT: %s
USER_QUESTION: %s
INSTRUCTIONS:
Answer the user's QUESTION using the DOCUMENT text above.
Keep your answer grounded in the facts of the DOCUMENT.
If the DOCUMENT doesn't contain the facts to answer the USER_QUESTION, return:
'Provided context doesn't really contain the answer to the question.'`

// answerService implements the AnswerService interface
type answerService struct {
	retrieval driving.RetrievalService
	services  *runtime.Services
	logger    *slog.Logger
	timeout   time.Duration
}

// NewAnswerService creates a new AnswerService on top of retrieval.
// The LLM is read from services and may be absent; answers then carry
// the retrieved metadata with NoLLMResponse.
func NewAnswerService(retrieval driving.RetrievalService, services *runtime.Services, logger *slog.Logger, timeout time.Duration) driving.AnswerService {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &answerService{
		retrieval: retrieval,
		services:  services,
		logger:    logger,
		timeout:   timeout,
	}
}

// Answer retrieves passages and asks the LLM to answer from them
func (s *answerService) Answer(ctx context.Context, req domain.RetrievalRequest) (*domain.Answer, error) {
	result, err := s.retrieval.Retrieve(ctx, req)
	if err != nil {
		return nil, err
	}

	answer := &domain.Answer{
		Query:    req.Query,
		Metadata: make([]domain.Tags, 0, len(result.Passages)),
		Passages: result.Passages,
	}
	if len(result.Passages) == 0 {
		answer.Response = NoDocumentsResponse
		return answer, nil
	}
	for _, p := range result.Passages {
		answer.Metadata = append(answer.Metadata, p.Tags)
	}

	llm := s.services.LLMService()
	if llm == nil || !s.services.Config().CanAnswer() {
		answer.Response = NoLLMResponse
		return answer, nil
	}

	texts := make([]string, 0, len(result.Passages))
	for _, p := range result.Passages {
		if p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	prompt := fmt.Sprintf(answerPrompt, strings.Join(texts, "\n"), req.Query)

	llmCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	reply, err := llm.Complete(llmCtx, []driven.ChatMessage{{Role: "user", Content: prompt}})
	if err != nil {
		return nil, domain.ProviderError("generate answer", err)
	}
	s.logger.Info("answer generated", "model", llm.Model(), "passages", len(texts), "duration", time.Since(start))

	answer.Response = reply
	return answer, nil
}
