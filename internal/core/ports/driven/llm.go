package driven

import (
	"context"
)

// ChatMessage is one turn of a chat completion request
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LLMService generates text from a chat prompt
type LLMService interface {
	// Complete returns the model's reply to the given messages
	Complete(ctx context.Context, messages []ChatMessage) (string, error)

	// Model returns the model name being used
	Model() string

	// Ping verifies the LLM service is available
	Ping(ctx context.Context) error

	// Close releases resources held by the LLM service
	Close() error
}
