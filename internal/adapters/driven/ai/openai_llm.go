package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure ChatLLM implements LLMService
var _ driven.LLMService = (*ChatLLM)(nil)

const (
	defaultGroqBaseURL    = "https://api.groq.com/openai/v1"
	defaultGroqModel      = "llama-3.1-8b-instant"
	defaultOpenAIChat     = "gpt-4o-mini"
	defaultOllamaChatPath = "/v1"
	defaultOllamaChat     = "llama3.2"
)

// ChatLLM implements LLMService against an OpenAI-compatible
// /chat/completions endpoint (OpenAI, Groq, Ollama).
type ChatLLM struct {
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	client      *http.Client
}

// NewChatLLM creates a chat client. apiKey may be empty for servers that
// do not authenticate.
func NewChatLLM(apiKey, model, baseURL string) (*ChatLLM, error) {
	if model == "" {
		return nil, fmt.Errorf("%w: LLM model is required", domain.ErrConfiguration)
	}
	if baseURL == "" {
		return nil, fmt.Errorf("%w: LLM base URL is required", domain.ErrConfiguration)
	}
	return &ChatLLM{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: defaultTimeout},
	}, nil
}

// NewGroqLLM creates a Groq chat client
func NewGroqLLM(apiKey, model, baseURL string) (*ChatLLM, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: Groq API key is required", domain.ErrConfiguration)
	}
	return NewChatLLM(apiKey, cmpOr(model, defaultGroqModel), cmpOr(baseURL, defaultGroqBaseURL))
}

// NewOpenAILLM creates an OpenAI chat client
func NewOpenAILLM(apiKey, model, baseURL string) (*ChatLLM, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key is required", domain.ErrConfiguration)
	}
	return NewChatLLM(apiKey, cmpOr(model, defaultOpenAIChat), cmpOr(baseURL, defaultOpenAIBaseURL))
}

// NewOllamaLLM creates a chat client for Ollama's OpenAI-compatible API
func NewOllamaLLM(baseURL, model string) (*ChatLLM, error) {
	baseURL = strings.TrimRight(cmpOr(baseURL, defaultOllamaBaseURL), "/")
	if !strings.HasSuffix(baseURL, defaultOllamaChatPath) {
		baseURL += defaultOllamaChatPath
	}
	return NewChatLLM("", cmpOr(model, defaultOllamaChat), baseURL)
}

type chatRequest struct {
	Model       string               `json:"model"`
	Messages    []driven.ChatMessage `json:"messages"`
	Temperature float64              `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message      driven.ChatMessage `json:"message"`
		FinishReason string             `json:"finish_reason"`
	} `json:"choices"`
}

// Complete returns the first choice of a chat completion
func (c *ChatLLM) Complete(ctx context.Context, messages []driven.ChatMessage) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("%w: no messages", domain.ErrInvalidInput)
	}

	var resp chatResponse
	err := postJSON(ctx, c.client, c.baseURL+"/chat/completions", c.apiKey, chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
	}, &resp)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: completion returned no choices", domain.ErrProvider)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Model returns the model name being used
func (c *ChatLLM) Model() string {
	return c.model
}

// Ping sends a minimal completion
func (c *ChatLLM) Ping(ctx context.Context) error {
	_, err := c.Complete(ctx, []driven.ChatMessage{{Role: "user", Content: "ping"}})
	return err
}

// Close releases idle connections
func (c *ChatLLM) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// cmpOr returns the first non-empty string
func cmpOr(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
