package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// MockLLMService is a mock implementation of LLMService for testing
type MockLLMService struct {
	mu       sync.Mutex
	Reply    string
	Err      error
	requests [][]driven.ChatMessage
}

// NewMockLLMService creates a MockLLMService returning reply
func NewMockLLMService(reply string) *MockLLMService {
	return &MockLLMService{Reply: reply}
}

func (m *MockLLMService) Complete(ctx context.Context, messages []driven.ChatMessage) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, messages)
	if m.Err != nil {
		return "", m.Err
	}
	return m.Reply, nil
}

func (m *MockLLMService) Model() string {
	return "mock-llm"
}

func (m *MockLLMService) Ping(ctx context.Context) error {
	return m.Err
}

func (m *MockLLMService) Close() error {
	return nil
}

// Requests returns the message lists passed to Complete
func (m *MockLLMService) Requests() [][]driven.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]driven.ChatMessage(nil), m.requests...)
}
