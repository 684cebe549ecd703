package ai

import (
	"context"
	"hash/fnv"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure HashEmbedding implements EmbeddingService
var _ driven.EmbeddingService = (*HashEmbedding)(nil)

// DefaultHashDimensions is the vector size of the hash embedding
const DefaultHashDimensions = 384

// HashEmbedding is an offline EmbeddingService: lowercased word tokens are
// hashed into a fixed number of buckets and the counts L2-normalized. Texts
// sharing words score higher, which is enough for local runs and demos.
type HashEmbedding struct {
	dimensions int
}

// NewHashEmbedding creates a hash embedding with the given dimensions
// (DefaultHashDimensions if not positive).
func NewHashEmbedding(dimensions int) *HashEmbedding {
	if dimensions <= 0 {
		dimensions = DefaultHashDimensions
	}
	return &HashEmbedding{dimensions: dimensions}
}

// Embed generates embeddings for multiple texts
func (h *HashEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.embed(text)
	}
	return out, nil
}

// EmbedQuery generates an embedding for a retrieval query
func (h *HashEmbedding) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return h.embed(query), nil
}

func (h *HashEmbedding) embed(text string) []float32 {
	vec := make([]float32, h.dimensions)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		f := fnv.New32a()
		f.Write([]byte(w))
		vec[f.Sum32()%uint32(h.dimensions)]++
	}

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

// Dimensions returns the embedding dimension size
func (h *HashEmbedding) Dimensions() int {
	return h.dimensions
}

// Model returns the model name, which encodes the dimensions
func (h *HashEmbedding) Model() string {
	return "hash-" + strconv.Itoa(h.dimensions)
}

// HealthCheck always succeeds
func (h *HashEmbedding) HealthCheck(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (h *HashEmbedding) Close() error {
	return nil
}
