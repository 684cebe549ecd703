package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/vector"
)

// Verify interface compliance
var _ driven.VectorIndex = (*VectorIndex)(nil)

// VectorIndex implements driven.VectorIndex on PostgreSQL.
// Tag filters are evaluated by JSONB containment; similarity is computed in
// process over the filtered rows.
type VectorIndex struct {
	db         *DB
	collection string

	mu         sync.RWMutex
	dimensions int
	model      string
}

// NewVectorIndex creates a VectorIndex over collection ("documents" if empty).
// The schema must already exist; see DB.InitSchema.
func NewVectorIndex(db *DB, collection string) *VectorIndex {
	if collection == "" {
		collection = "documents"
	}
	return &VectorIndex{db: db, collection: collection}
}

// Open binds the collection to an embedding model.
func (v *VectorIndex) Open(ctx context.Context, dimensions int, model string) error {
	if dimensions <= 0 {
		return fmt.Errorf("%w: embedding dimensions must be positive, got %d", domain.ErrConfiguration, dimensions)
	}

	var storedDims int
	var storedModel string
	err := v.db.QueryRowContext(ctx, `
		WITH ins AS (
			INSERT INTO rag_collections (name, dimensions, model) VALUES ($1, $2, $3)
			ON CONFLICT (name) DO NOTHING
			RETURNING dimensions, model
		)
		SELECT dimensions, model FROM ins
		UNION ALL
		SELECT dimensions, model FROM rag_collections WHERE name = $1
		LIMIT 1
	`, v.collection, dimensions, model).Scan(&storedDims, &storedModel)
	if err != nil {
		return fmt.Errorf("open collection %s: %w", v.collection, err)
	}

	if storedDims != dimensions {
		return fmt.Errorf("%w: collection %s holds %d-dimensional vectors, embedding model produces %d",
			domain.ErrDimensionMismatch, v.collection, storedDims, dimensions)
	}
	if storedModel != model {
		return fmt.Errorf("%w: collection %s was built with model %q, configured model is %q",
			domain.ErrConfiguration, v.collection, storedModel, model)
	}

	v.mu.Lock()
	v.dimensions, v.model = dimensions, model
	v.mu.Unlock()
	return nil
}

func (v *VectorIndex) openedDimensions() (int, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.dimensions == 0 {
		return 0, fmt.Errorf("%w: collection %s is not open", domain.ErrConfiguration, v.collection)
	}
	return v.dimensions, nil
}

// Upsert stores chunks in one transaction, overwriting records with the same ID.
func (v *VectorIndex) Upsert(ctx context.Context, chunks []*domain.IndexedChunk) error {
	dims, err := v.openedDimensions()
	if err != nil {
		return err
	}
	for _, c := range chunks {
		if len(c.Embedding) != dims {
			return fmt.Errorf("%w: chunk %s has %d dimensions, collection has %d",
				domain.ErrDimensionMismatch, c.ID, len(c.Embedding), dims)
		}
	}
	if len(chunks) == 0 {
		return nil
	}

	return v.db.Transaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO rag_chunks (collection, id, document_id, position, content, tags, start_char, end_char, embedding)
			VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8, $9)
			ON CONFLICT (collection, id) DO UPDATE SET
				document_id = EXCLUDED.document_id,
				position    = EXCLUDED.position,
				content     = EXCLUDED.content,
				tags        = EXCLUDED.tags,
				start_char  = EXCLUDED.start_char,
				end_char    = EXCLUDED.end_char,
				embedding   = EXCLUDED.embedding,
				updated_at  = NOW()
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, c := range chunks {
			tags, err := json.Marshal(c.Tags.Clone())
			if err != nil {
				return fmt.Errorf("marshal tags of %s: %w", c.ID, err)
			}
			if _, err := stmt.ExecContext(ctx,
				v.collection, c.ID, c.DocumentID, c.Position, c.Text, string(tags),
				c.StartChar, c.EndChar, vector.Encode(c.Embedding),
			); err != nil {
				return fmt.Errorf("upsert chunk %s: %w", c.ID, err)
			}
		}
		return nil
	})
}

// Query returns up to topK passages matching filter by descending cosine similarity.
func (v *VectorIndex) Query(ctx context.Context, embedding []float32, topK int, filter domain.FilterPredicate) ([]domain.Passage, error) {
	dims, err := v.openedDimensions()
	if err != nil {
		return nil, err
	}
	if len(embedding) != dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, collection has %d",
			domain.ErrDimensionMismatch, len(embedding), dims)
	}
	if topK <= 0 {
		return []domain.Passage{}, nil
	}

	query, args, err := buildSelect(v.collection, filter)
	if err != nil {
		return nil, err
	}
	rows, err := v.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	top := vector.NewTopK[domain.Passage](topK)
	for rows.Next() {
		var (
			seq     int64
			p       domain.Passage
			tagsRaw []byte
			blob    []byte
		)
		if err := rows.Scan(&seq, &p.ChunkID, &p.DocumentID, &p.Text, &tagsRaw, &blob); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		stored, err := vector.Decode(blob)
		if err != nil {
			return nil, fmt.Errorf("decode embedding of %s: %w", p.ChunkID, err)
		}
		p.Tags = domain.Tags{}
		if err := json.Unmarshal(tagsRaw, &p.Tags); err != nil {
			return nil, fmt.Errorf("decode tags of %s: %w", p.ChunkID, err)
		}
		p.Score = vector.CosineSimilarity(embedding, stored)
		top.Push(vector.Scored[domain.Passage]{Item: p, Score: p.Score, Seq: seq})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}

	results := top.Results()
	passages := make([]domain.Passage, len(results))
	for i, r := range results {
		passages[i] = r.Item
	}
	return passages, nil
}

// buildSelect renders the candidate query. A non-empty filter becomes one
// JSONB containment test, which the GIN index on tags serves.
func buildSelect(collection string, filter domain.FilterPredicate) (string, []any, error) {
	var b strings.Builder
	b.WriteString("SELECT seq, id, document_id, content, tags, embedding FROM rag_chunks WHERE collection = $1")
	args := []any{collection}

	if !filter.IsEmpty() {
		doc, err := json.Marshal(filter.AsMap())
		if err != nil {
			return "", nil, fmt.Errorf("marshal filter: %w", err)
		}
		args = append(args, string(doc))
		b.WriteString(" AND tags @> $" + strconv.Itoa(len(args)) + "::jsonb")
	}
	return b.String(), args, nil
}

// DeleteStale removes chunks of documentID at positions >= keep.
func (v *VectorIndex) DeleteStale(ctx context.Context, documentID string, keep int) (int, error) {
	res, err := v.db.ExecContext(ctx,
		"DELETE FROM rag_chunks WHERE collection = $1 AND document_id = $2 AND position >= $3",
		v.collection, documentID, keep)
	if err != nil {
		return 0, fmt.Errorf("delete stale chunks of %s: %w", documentID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// CountByDocument returns the number of chunks stored for documentID.
func (v *VectorIndex) CountByDocument(ctx context.Context, documentID string) (int, error) {
	var n int
	err := v.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM rag_chunks WHERE collection = $1 AND document_id = $2",
		v.collection, documentID,
	).Scan(&n)
	return n, err
}

// Count returns the number of chunks in the collection.
func (v *VectorIndex) Count(ctx context.Context) (int, error) {
	var n int
	err := v.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM rag_chunks WHERE collection = $1", v.collection,
	).Scan(&n)
	return n, err
}

// Stats describes the collection.
func (v *VectorIndex) Stats(ctx context.Context) (*domain.IndexStats, error) {
	n, err := v.Count(ctx)
	if err != nil {
		return nil, err
	}
	stats := &domain.IndexStats{Collection: v.collection, Chunks: n}
	err = v.db.QueryRowContext(ctx,
		"SELECT dimensions, model FROM rag_collections WHERE name = $1", v.collection,
	).Scan(&stats.Dimensions, &stats.Model)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return stats, nil
}

// HealthCheck verifies the database is reachable.
func (v *VectorIndex) HealthCheck(ctx context.Context) error {
	return v.db.PingContext(ctx)
}

// Close is a no-op; the pool is owned by the caller and closed with the DB.
func (v *VectorIndex) Close() error {
	return nil
}
