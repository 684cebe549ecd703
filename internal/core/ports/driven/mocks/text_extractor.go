package mocks

import (
	"context"
	"path/filepath"
	"sync"
)

// MockTextExtractor returns canned text per file base name
type MockTextExtractor struct {
	mu    sync.Mutex
	Texts map[string]string
	Errs  map[string]error
	calls []string
}

// NewMockTextExtractor creates a new MockTextExtractor
func NewMockTextExtractor() *MockTextExtractor {
	return &MockTextExtractor{
		Texts: make(map[string]string),
		Errs:  make(map[string]error),
	}
}

func (m *MockTextExtractor) Extract(ctx context.Context, path string) (string, error) {
	name := filepath.Base(path)
	m.mu.Lock()
	m.calls = append(m.calls, name)
	m.mu.Unlock()
	if err := m.Errs[name]; err != nil {
		return "", err
	}
	return m.Texts[name], nil
}

func (m *MockTextExtractor) SupportedTypes() []string {
	return []string{"application/pdf"}
}

func (m *MockTextExtractor) Priority() int {
	return 100
}

// Calls returns the base names passed to Extract
func (m *MockTextExtractor) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}
