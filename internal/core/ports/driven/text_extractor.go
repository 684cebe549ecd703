package driven

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// TextExtractor turns a source file into plain text.
type TextExtractor interface {
	// Extract reads the file at path and returns its text
	Extract(ctx context.Context, path string) (string, error)

	// SupportedTypes returns MIME types this extractor handles.
	// Can include wildcards like "text/*".
	SupportedTypes() []string

	// Priority returns the extractor priority (higher = more specific).
	Priority() int
}

// TextExtractorRegistry selects an extractor per MIME type.
// When multiple extractors match, the highest priority one is used.
type TextExtractorRegistry interface {
	// Get retrieves the best-matching extractor, or nil
	Get(mimeType string) TextExtractor

	// ForPath retrieves the extractor for a file by its extension, or nil
	ForPath(path string) TextExtractor

	// Register registers an extractor.
	Register(extractor TextExtractor)

	// List returns all registered MIME types.
	List() []string
}

// DocumentTagger derives tags from a file name
type DocumentTagger interface {
	// Tag returns the tags for filename and whether the name follows the
	// corpus naming convention.
	Tag(filename string) (domain.Tags, bool)
}
