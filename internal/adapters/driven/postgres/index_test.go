package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

func TestBuildSelect_NoFilter(t *testing.T) {
	query, args, err := buildSelect("documents", domain.FilterPredicate{})
	require.NoError(t, err)

	assert.NotContains(t, query, "@>")
	assert.Equal(t, []any{"documents"}, args)
}

func TestBuildSelect_Containment(t *testing.T) {
	filter := domain.MustFilter(map[string]string{"class": "Class 8", "subject": "Geography"})

	query, args, err := buildSelect("documents", filter)
	require.NoError(t, err)

	assert.Contains(t, query, "tags @> $2::jsonb")
	require.Len(t, args, 2)
	assert.JSONEq(t, `{"class":"Class 8","subject":"Geography"}`, args[1].(string))
}

func TestNewVectorIndex_DefaultCollection(t *testing.T) {
	assert.Equal(t, "documents", NewVectorIndex(nil, "").collection)
	assert.Equal(t, "notes", NewVectorIndex(nil, "notes").collection)
}

func TestVectorIndex_RequiresOpen(t *testing.T) {
	idx := NewVectorIndex(nil, "")

	err := idx.Upsert(t.Context(), []*domain.IndexedChunk{{Embedding: []float32{1}}})
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = idx.Query(t.Context(), []float32{1}, 5, domain.FilterPredicate{})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}
