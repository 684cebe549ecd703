package domain

import (
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"
	"time"
)

// Retrieval limits
const (
	DefaultTopK = 5
	MaxTopK     = 100
)

// DefaultTagKeys are the tag keys accepted in filters unless configured otherwise
var DefaultTagKeys = []string{"class", "subject", "chapter", "filename"}

// tagKeyPattern restricts tag keys to identifiers safe to embed in store queries
var tagKeyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// RetrievalRequest configures a retrieval call
type RetrievalRequest struct {
	Query   string            `json:"query"`
	Filters map[string]string `json:"filters,omitempty"`
	TopK    int               `json:"top_k"`
}

// Passage is one ranked retrieval hit
type Passage struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Text       string  `json:"text"`
	Tags       Tags    `json:"tags"`
	Score      float64 `json:"score"`
}

// RetrievalResult is the ordered outcome of a retrieval call.
// Passages are sorted by descending score; an empty slice means "no relevant passages".
type RetrievalResult struct {
	Query    string        `json:"query"`
	Passages []Passage     `json:"passages"`
	Took     time.Duration `json:"took" swaggertype:"integer" example:"1500000"`
}

// Texts returns passage texts in rank order
func (r *RetrievalResult) Texts() []string {
	out := make([]string, len(r.Passages))
	for i, p := range r.Passages {
		out[i] = p.Text
	}
	return out
}

// FilterTerm is one equality constraint over a tag key
type FilterTerm struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// FilterPredicate is a conjunction of equality constraints over tags.
// The zero value matches everything.
type FilterPredicate struct {
	terms []FilterTerm
}

// Terms returns the constraints sorted by key
func (f FilterPredicate) Terms() []FilterTerm {
	return slices.Clone(f.terms)
}

// IsEmpty reports whether the predicate imposes no constraint
func (f FilterPredicate) IsEmpty() bool {
	return len(f.terms) == 0
}

// Matches reports whether tags satisfy every term
func (f FilterPredicate) Matches(tags Tags) bool {
	for _, t := range f.terms {
		v, ok := tags[t.Key]
		if !ok || v != t.Value {
			return false
		}
	}
	return true
}

// AsMap returns the predicate as a key/value map
func (f FilterPredicate) AsMap() map[string]string {
	m := make(map[string]string, len(f.terms))
	for _, t := range f.terms {
		m[t.Key] = t.Value
	}
	return m
}

func (f FilterPredicate) String() string {
	if f.IsEmpty() {
		return "*"
	}
	parts := make([]string, len(f.terms))
	for i, t := range f.terms {
		parts[i] = fmt.Sprintf("%s=%q", t.Key, t.Value)
	}
	return strings.Join(parts, " AND ")
}

// FilterBuilder builds predicates validated against a declared set of tag keys
type FilterBuilder struct {
	allowed map[string]struct{}
}

// NewFilterBuilder creates a builder accepting the given keys.
// An invalid key is a configuration error.
func NewFilterBuilder(allowedKeys []string) (*FilterBuilder, error) {
	if len(allowedKeys) == 0 {
		allowedKeys = DefaultTagKeys
	}
	allowed := make(map[string]struct{}, len(allowedKeys))
	for _, k := range allowedKeys {
		if !tagKeyPattern.MatchString(k) {
			return nil, fmt.Errorf("%w: invalid tag key %q", ErrConfiguration, k)
		}
		allowed[k] = struct{}{}
	}
	return &FilterBuilder{allowed: allowed}, nil
}

// AllowedKeys returns the permissible keys, sorted
func (b *FilterBuilder) AllowedKeys() []string {
	keys := make([]string, 0, len(b.allowed))
	for k := range b.allowed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Build converts optional caller filters into a predicate.
// Blank values impose no constraint whatever the key; unknown keys with a
// value are rejected.
func (b *FilterBuilder) Build(filters map[string]string) (FilterPredicate, error) {
	var terms []FilterTerm
	for k, v := range filters {
		if strings.TrimSpace(v) == "" {
			continue
		}
		if _, ok := b.allowed[k]; !ok {
			return FilterPredicate{}, fmt.Errorf("%w: unknown filter key %q", ErrInvalidInput, k)
		}
		terms = append(terms, FilterTerm{Key: k, Value: v})
	}
	sort.Slice(terms, func(i, j int) bool { return terms[i].Key < terms[j].Key })
	return FilterPredicate{terms: terms}, nil
}

// MustFilter builds an unvalidated predicate; intended for tests and internal callers
func MustFilter(filters map[string]string) FilterPredicate {
	terms := make([]FilterTerm, 0, len(filters))
	for k, v := range filters {
		terms = append(terms, FilterTerm{Key: k, Value: v})
	}
	sort.Slice(terms, func(i, j int) bool { return terms[i].Key < terms[j].Key })
	return FilterPredicate{terms: terms}
}

// Answer is a generated response grounded on retrieved passages
type Answer struct {
	Query    string    `json:"query"`
	Response string    `json:"response"`
	Metadata []Tags    `json:"metadata"`
	Passages []Passage `json:"-"`
}
