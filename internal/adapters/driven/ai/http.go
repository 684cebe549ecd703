package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// defaultTimeout bounds a single provider request
const defaultTimeout = 60 * time.Second

// maxErrorBody caps how much of an error response is kept
const maxErrorBody = 4 << 10

// inputTooLongMarkers are substrings providers use when an input exceeds the model limit
var inputTooLongMarkers = []string{
	"maximum context length",
	"context length",
	"too many tokens",
	"input is too long",
	"exceeds the context",
}

// apiError is the error envelope shared by OpenAI-compatible APIs
type apiError struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error,omitempty"`
}

// postJSON sends body as JSON and decodes a 200 response into out.
// Non-200 responses are classified into domain errors.
func postJSON(ctx context.Context, client *http.Client, url, apiKey string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return classifyStatus(resp.StatusCode, errorMessage(raw))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// errorMessage extracts the provider's message from an error body
func errorMessage(raw []byte) string {
	var envelope apiError
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error != nil {
		return envelope.Error.Message
	}
	var ollama struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &ollama); err == nil && ollama.Error != "" {
		return ollama.Error
	}
	return strings.TrimSpace(string(raw))
}

// classifyStatus maps an HTTP failure onto the domain error taxonomy
func classifyStatus(status int, message string) error {
	lower := strings.ToLower(message)
	switch {
	case status == http.StatusBadRequest || status == http.StatusRequestEntityTooLarge:
		for _, marker := range inputTooLongMarkers {
			if strings.Contains(lower, marker) {
				return fmt.Errorf("%w: %s", domain.ErrInputTooLong, message)
			}
		}
		return fmt.Errorf("%w: status %d: %s", domain.ErrProvider, status, message)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: provider rejected credentials (status %d): %s", domain.ErrConfiguration, status, message)
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: model or endpoint not found: %s", domain.ErrConfiguration, message)
	case status == http.StatusTooManyRequests || status >= 500:
		return fmt.Errorf("%w: status %d: %s", domain.ErrServiceUnavailable, status, message)
	default:
		return fmt.Errorf("%w: status %d: %s", domain.ErrProvider, status, message)
	}
}
