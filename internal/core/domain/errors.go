package domain

import (
	"errors"
	"fmt"
)

// Domain errors - used across all layers
var (
	// ErrInvalidInput indicates the input is invalid (empty text, malformed filters)
	ErrInvalidInput = errors.New("invalid input")

	// ErrConfiguration indicates a fatal, startup-time misconfiguration
	ErrConfiguration = errors.New("configuration error")

	// ErrDimensionMismatch indicates an embedding does not match the collection dimensionality.
	// It is a configuration error: the provider and the index disagree.
	ErrDimensionMismatch = fmt.Errorf("%w: embedding dimension mismatch", ErrConfiguration)

	// ErrProvider indicates the embedding provider or vector index failed or rejected input
	ErrProvider = errors.New("provider error")

	// ErrInputTooLong indicates the text exceeds the embedding model's input limit
	ErrInputTooLong = fmt.Errorf("%w: input exceeds model limit", ErrProvider)

	// ErrServiceUnavailable indicates an external service could not be reached
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrLockNotAcquired indicates a per-document ingestion lock is held elsewhere
	ErrLockNotAcquired = errors.New("lock not acquired")

	// ErrInvalidProvider indicates an unknown AI provider was specified
	ErrInvalidProvider = errors.New("invalid provider")
)

// ProviderError wraps a failure of an external collaborator (embedding or index)
// so callers can match it with errors.Is(err, ErrProvider).
func ProviderError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrProvider) || errors.Is(err, ErrConfiguration) || errors.Is(err, ErrInvalidInput) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrProvider, err)
}
