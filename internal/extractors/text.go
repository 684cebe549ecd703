package extractors

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// PlaintextExtractor reads UTF-8 text and Markdown files as-is.
type PlaintextExtractor struct{}

// Verify interface compliance
var _ driven.TextExtractor = (*PlaintextExtractor)(nil)

func (e *PlaintextExtractor) Extract(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("read %s: not valid UTF-8", path)
	}
	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	return strings.ReplaceAll(content, "\r", "\n"), nil
}

func (e *PlaintextExtractor) SupportedTypes() []string {
	return []string{"text/plain", "text/markdown", "text/x-markdown"}
}

func (e *PlaintextExtractor) Priority() int {
	return 10 // Generic
}
