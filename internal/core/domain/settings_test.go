package domain

import (
	"errors"
	"testing"
)

func TestAIProvider_IsValid(t *testing.T) {
	tests := []struct {
		provider AIProvider
		valid    bool
	}{
		{AIProviderOpenAI, true},
		{AIProviderOllama, true},
		{AIProviderGroq, true},
		{AIProviderMock, true},
		{AIProvider("anthropic"), false},
		{AIProvider(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.provider), func(t *testing.T) {
			if got := tt.provider.IsValid(); got != tt.valid {
				t.Errorf("IsValid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestAIProvider_RequiresAPIKey(t *testing.T) {
	if !AIProviderOpenAI.RequiresAPIKey() {
		t.Error("openai requires an API key")
	}
	if !AIProviderGroq.RequiresAPIKey() {
		t.Error("groq requires an API key")
	}
	if AIProviderOllama.RequiresAPIKey() {
		t.Error("ollama is self-hosted")
	}
	if AIProviderMock.RequiresAPIKey() {
		t.Error("mock runs in-process")
	}
}

func TestEmbeddingSettings_IsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		settings EmbeddingSettings
		want     bool
	}{
		{"empty", EmbeddingSettings{}, false},
		{"openai without key", EmbeddingSettings{Provider: AIProviderOpenAI}, false},
		{"openai with key", EmbeddingSettings{Provider: AIProviderOpenAI, APIKey: "sk"}, true},
		{"ollama without key", EmbeddingSettings{Provider: AIProviderOllama}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.settings.IsConfigured(); got != tt.want {
				t.Errorf("IsConfigured() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLLMSettings_IsConfigured(t *testing.T) {
	if (&LLMSettings{Provider: AIProviderGroq}).IsConfigured() {
		t.Error("groq without key should not be configured")
	}
	if !(&LLMSettings{Provider: AIProviderGroq, APIKey: "gsk"}).IsConfigured() {
		t.Error("groq with key should be configured")
	}
}

func TestAISettings_Validate(t *testing.T) {
	s := AISettings{
		Embedding: EmbeddingSettings{Provider: AIProviderOllama},
		LLM:       LLMSettings{Provider: AIProviderGroq},
	}
	if err := s.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	s.LLM.Provider = "bogus"
	if err := s.Validate(); !errors.Is(err, ErrInvalidProvider) {
		t.Errorf("expected ErrInvalidProvider, got %v", err)
	}
}
