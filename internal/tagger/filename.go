// Package tagger derives document tags from corpus file names.
package tagger

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// DefaultPattern matches names like class10_science_c3.pdf.
// Groups: class number, subject, chapter number.
const DefaultPattern = `^class(\d+)_([a-zA-Z]+)_c(\d+)\.[A-Za-z0-9]+$`

// FilenameTagger tags documents by the class/subject/chapter naming convention.
type FilenameTagger struct {
	pattern *regexp.Regexp
}

// Verify interface compliance
var _ driven.DocumentTagger = (*FilenameTagger)(nil)

// New creates a tagger using DefaultPattern.
func New() *FilenameTagger {
	return &FilenameTagger{pattern: regexp.MustCompile(DefaultPattern)}
}

// NewWithPattern creates a tagger from a custom pattern with three groups.
func NewWithPattern(pattern string) (*FilenameTagger, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: filename pattern: %v", domain.ErrConfiguration, err)
	}
	if re.NumSubexp() != 3 {
		return nil, fmt.Errorf("%w: filename pattern needs 3 groups, has %d", domain.ErrConfiguration, re.NumSubexp())
	}
	return &FilenameTagger{pattern: re}, nil
}

// Tag returns class, subject, chapter and filename tags.
func (t *FilenameTagger) Tag(filename string) (domain.Tags, bool) {
	base := filepath.Base(filename)
	m := t.pattern.FindStringSubmatch(base)
	if m == nil {
		return nil, false
	}
	return domain.Tags{
		"class":    "Class " + m[1],
		"subject":  capitalize(m[2]),
		"chapter":  "Chapter " + m[3],
		"filename": base,
	}, true
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
