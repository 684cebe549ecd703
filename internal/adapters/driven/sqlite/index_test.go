package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// setupTestIndex creates an opened 3-dimensional index in a temp directory.
func setupTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := New(Config{Path: filepath.Join(t.TempDir(), "db", "index.db")})
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, idx.Close()) })
	require.NoError(t, idx.Open(context.Background(), 3, "test-model"))
	return idx
}

func chunk(doc string, pos int, text string, emb []float32, tags domain.Tags) *domain.IndexedChunk {
	return &domain.IndexedChunk{
		Chunk: domain.Chunk{
			ID:         domain.ChunkID(doc, pos),
			DocumentID: doc,
			Position:   pos,
			Text:       text,
			Tags:       tags,
		},
		Embedding: emb,
	}
}

func geo(class string) domain.Tags {
	return domain.Tags{"class": class, "subject": "Geography", "chapter": "Chapter 1"}
}

func TestNew_RequiresPath(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestIndex_RoundTrip(t *testing.T) {
	idx := setupTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, []*domain.IndexedChunk{
		chunk("geo", 0, "A", []float32{1, 0, 0}, geo("Class 8")),
	}))

	passages, err := idx.Query(ctx, []float32{1, 0, 0}, 5, domain.FilterPredicate{})
	require.NoError(t, err)
	require.Len(t, passages, 1)

	p := passages[0]
	assert.Equal(t, "geo-0", p.ChunkID)
	assert.Equal(t, "geo", p.DocumentID)
	assert.Equal(t, "A", p.Text)
	assert.Equal(t, geo("Class 8"), p.Tags)
	assert.InDelta(t, 1.0, p.Score, 1e-6)
}

func TestIndex_QueryFiltersAndRanks(t *testing.T) {
	idx := setupTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, []*domain.IndexedChunk{
		chunk("geo", 0, "A", []float32{1, 0, 0}, geo("Class 8")),
		chunk("geo", 1, "B", []float32{0.8, 0.6, 0}, geo("Class 8")),
		chunk("geo", 2, "C", []float32{0, 1, 0}, geo("Class 8")),
		chunk("sci", 0, "D", []float32{1, 0, 0}, domain.Tags{"class": "Class 9", "subject": "Science"}),
	}))

	passages, err := idx.Query(ctx, []float32{1, 0, 0}, 5, domain.MustFilter(map[string]string{"class": "Class 8"}))
	require.NoError(t, err)
	require.Len(t, passages, 3)
	assert.Equal(t, []string{"A", "B", "C"}, []string{passages[0].Text, passages[1].Text, passages[2].Text})
	assert.GreaterOrEqual(t, passages[0].Score, passages[1].Score)
	assert.GreaterOrEqual(t, passages[1].Score, passages[2].Score)

	passages, err = idx.Query(ctx, []float32{1, 0, 0}, 5, domain.MustFilter(map[string]string{"class": "Class 10"}))
	require.NoError(t, err)
	assert.NotNil(t, passages)
	assert.Empty(t, passages)

	passages, err = idx.Query(ctx, []float32{1, 0, 0}, 5, domain.MustFilter(map[string]string{
		"class":   "Class 8",
		"subject": "Science",
	}))
	require.NoError(t, err)
	assert.Empty(t, passages, "filter terms are conjunctive")
}

func TestIndex_QueryTopKAndTies(t *testing.T) {
	idx := setupTestIndex(t)
	ctx := context.Background()

	var chunks []*domain.IndexedChunk
	for i := range 10 {
		chunks = append(chunks, chunk("doc", i, fmt.Sprintf("t%d", i), []float32{1, 1, 0}, nil))
	}
	require.NoError(t, idx.Upsert(ctx, chunks))

	passages, err := idx.Query(ctx, []float32{1, 1, 0}, 4, domain.FilterPredicate{})
	require.NoError(t, err)
	require.Len(t, passages, 4)
	// Equal scores come back in insertion order
	for i, p := range passages {
		assert.Equal(t, fmt.Sprintf("t%d", i), p.Text)
	}
}

func TestIndex_UpsertIsIdempotent(t *testing.T) {
	idx := setupTestIndex(t)
	ctx := context.Background()
	batch := []*domain.IndexedChunk{
		chunk("geo", 0, "A", []float32{1, 0, 0}, geo("Class 8")),
		chunk("geo", 1, "B", []float32{0, 1, 0}, geo("Class 8")),
	}

	require.NoError(t, idx.Upsert(ctx, batch))
	require.NoError(t, idx.Upsert(ctx, batch))

	n, err := idx.CountByDocument(ctx, "geo")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Overwrite replaces content
	require.NoError(t, idx.Upsert(ctx, []*domain.IndexedChunk{
		chunk("geo", 0, "A2", []float32{0, 0, 1}, geo("Class 9")),
	}))
	passages, err := idx.Query(ctx, []float32{0, 0, 1}, 1, domain.FilterPredicate{})
	require.NoError(t, err)
	require.Len(t, passages, 1)
	assert.Equal(t, "A2", passages[0].Text)
	assert.Equal(t, "Class 9", passages[0].Tags["class"])
}

func TestIndex_DeleteStale(t *testing.T) {
	idx := setupTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, []*domain.IndexedChunk{
		chunk("geo", 0, "A", []float32{1, 0, 0}, nil),
		chunk("geo", 1, "B", []float32{1, 0, 0}, nil),
		chunk("geo", 2, "C", []float32{1, 0, 0}, nil),
		chunk("other", 5, "Z", []float32{1, 0, 0}, nil),
	}))

	removed, err := idx.DeleteStale(ctx, "geo", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	n, err := idx.CountByDocument(ctx, "geo")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	total, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestIndex_DimensionChecks(t *testing.T) {
	idx := setupTestIndex(t)
	ctx := context.Background()

	err := idx.Upsert(ctx, []*domain.IndexedChunk{chunk("geo", 0, "A", []float32{1, 0}, nil)})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = idx.Query(ctx, []float32{1, 0, 0, 0}, 5, domain.FilterPredicate{})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestIndex_NotOpened(t *testing.T) {
	idx, err := New(Config{Path: filepath.Join(t.TempDir(), "index.db")})
	require.NoError(t, err)
	defer idx.Close()

	err = idx.Upsert(context.Background(), []*domain.IndexedChunk{chunk("geo", 0, "A", []float32{1}, nil)})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestIndex_ReopenChecksCollection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	ctx := context.Background()

	idx, err := New(Config{Path: path})
	require.NoError(t, err)
	require.NoError(t, idx.Open(ctx, 3, "model-a"))
	require.NoError(t, idx.Upsert(ctx, []*domain.IndexedChunk{chunk("geo", 0, "A", []float32{1, 0, 0}, geo("Class 8"))}))
	require.NoError(t, idx.Close())

	idx, err = New(Config{Path: path})
	require.NoError(t, err)
	defer idx.Close()

	assert.ErrorIs(t, idx.Open(ctx, 4, "model-a"), domain.ErrDimensionMismatch)
	assert.ErrorIs(t, idx.Open(ctx, 3, "model-b"), domain.ErrConfiguration)
	require.NoError(t, idx.Open(ctx, 3, "model-a"))

	// Data survives reopening
	passages, err := idx.Query(ctx, []float32{1, 0, 0}, 5, domain.FilterPredicate{})
	require.NoError(t, err)
	require.Len(t, passages, 1)
	assert.Equal(t, "A", passages[0].Text)

	stats, err := idx.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, &domain.IndexStats{Collection: DefaultCollection, Chunks: 1, Dimensions: 3, Model: "model-a"}, stats)
}

func TestIndex_CollectionsAreIsolated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	ctx := context.Background()

	a, err := New(Config{Path: path, Collection: "a"})
	require.NoError(t, err)
	defer a.Close()
	b, err := New(Config{Path: path, Collection: "b"})
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, a.Open(ctx, 3, "m"))
	require.NoError(t, b.Open(ctx, 2, "other"))
	require.NoError(t, a.Upsert(ctx, []*domain.IndexedChunk{chunk("geo", 0, "A", []float32{1, 0, 0}, nil)}))

	n, err := b.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIndex_ConcurrentWrites(t *testing.T) {
	idx := setupTestIndex(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for d := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			doc := fmt.Sprintf("doc-%d", d)
			err := idx.Upsert(ctx, []*domain.IndexedChunk{
				chunk(doc, 0, "x", []float32{1, 0, 0}, nil),
				chunk(doc, 1, "y", []float32{0, 1, 0}, nil),
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 16, n)
}

func TestIndex_HealthCheck(t *testing.T) {
	idx := setupTestIndex(t)
	assert.NoError(t, idx.HealthCheck(context.Background()))
}

func TestBuildSelect(t *testing.T) {
	query, args := buildSelect("documents", domain.MustFilter(map[string]string{"subject": "Geography", "class": "Class 8"}))

	assert.Contains(t, query, "json_extract(tags, ?) = ? AND json_extract(tags, ?) = ?")
	assert.Equal(t, []any{"documents", `$."class"`, "Class 8", `$."subject"`, "Geography"}, args)
}
