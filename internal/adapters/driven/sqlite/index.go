// Package sqlite provides the default persistent VectorIndex, stored in a
// single SQLite file.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that
// requires no CGO. Embeddings are stored as little-endian float32 blobs and
// ranked in process by exact cosine similarity; tag filters are pushed down to
// SQL through json_extract so only matching rows are scored.
//
// # Thread Safety
//
// The index is safe for concurrent use. SQLite runs in WAL mode with a busy
// timeout, and writes are serialized through one writer at a time.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/sqlite/migrations"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/vector"
)

// Verify interface compliance
var _ driven.VectorIndex = (*Index)(nil)

// DefaultCollection is the collection used when none is configured
const DefaultCollection = "documents"

// Config configures the SQLite index.
type Config struct {
	// Path is the database file. Parent directories are created.
	Path string

	// Collection names the chunk set inside the file (default: "documents")
	Collection string

	// BusyTimeoutMS is how long a connection waits on a locked database (default: 5000)
	BusyTimeoutMS int
}

// Index is a VectorIndex backed by SQLite.
type Index struct {
	db         *sql.DB
	path       string
	collection string

	writeMu sync.Mutex

	mu         sync.RWMutex
	dimensions int
	model      string
}

// New opens (or creates) the database at cfg.Path and runs migrations.
// The collection itself is bound to an embedding model by Open.
func New(cfg Config) (*Index, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("%w: sqlite index path is required", domain.ErrConfiguration)
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if cfg.BusyTimeoutMS <= 0 {
		cfg.BusyTimeoutMS = 5000
	}

	if dir := filepath.Dir(cfg.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating index directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)",
		cfg.Path, cfg.BusyTimeoutMS)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	idx := &Index{
		db:         db,
		path:       cfg.Path,
		collection: cfg.Collection,
	}

	if err := idx.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return idx, nil
}

// Path returns the database file path.
func (i *Index) Path() string {
	return i.path
}

// migrate runs all pending up migrations in version order.
func (i *Index) migrate(fsys fs.FS) error {
	_, err := i.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := i.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= current {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		tx, err := i.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(string(content)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %s: %w", name, err)
		}
	}

	return nil
}

// Open binds the collection to an embedding model. A new collection records
// dimensions and model; an existing one must match them.
func (i *Index) Open(ctx context.Context, dimensions int, model string) error {
	if dimensions <= 0 {
		return fmt.Errorf("%w: embedding dimensions must be positive, got %d", domain.ErrConfiguration, dimensions)
	}

	i.writeMu.Lock()
	defer i.writeMu.Unlock()

	_, err := i.db.ExecContext(ctx,
		`INSERT INTO collections (name, dimensions, model) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO NOTHING`,
		i.collection, dimensions, model)
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", i.collection, err)
	}

	var storedDims int
	var storedModel string
	err = i.db.QueryRowContext(ctx,
		"SELECT dimensions, model FROM collections WHERE name = ?", i.collection,
	).Scan(&storedDims, &storedModel)
	if err != nil {
		return fmt.Errorf("reading collection %s: %w", i.collection, err)
	}

	if storedDims != dimensions {
		return fmt.Errorf("%w: collection %s holds %d-dimensional vectors, embedding model produces %d",
			domain.ErrDimensionMismatch, i.collection, storedDims, dimensions)
	}
	if storedModel != model {
		return fmt.Errorf("%w: collection %s was built with model %q, configured model is %q",
			domain.ErrConfiguration, i.collection, storedModel, model)
	}

	i.mu.Lock()
	i.dimensions = dimensions
	i.model = model
	i.mu.Unlock()
	return nil
}

func (i *Index) openedDimensions() (int, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.dimensions == 0 {
		return 0, fmt.Errorf("%w: collection %s is not open", domain.ErrConfiguration, i.collection)
	}
	return i.dimensions, nil
}

// Upsert stores chunks in one transaction, overwriting records with the same ID.
// An overwritten record keeps its insertion sequence.
func (i *Index) Upsert(ctx context.Context, chunks []*domain.IndexedChunk) error {
	dims, err := i.openedDimensions()
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

	i.writeMu.Lock()
	defer i.writeMu.Unlock()

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (collection, id, document_id, position, content, tags, start_char, end_char, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			document_id = excluded.document_id,
			position    = excluded.position,
			content     = excluded.content,
			tags        = excluded.tags,
			start_char  = excluded.start_char,
			end_char    = excluded.end_char,
			embedding   = excluded.embedding,
			updated_at  = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		tags, err := encodeTags(c.Tags)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			i.collection, c.ID, c.DocumentID, c.Position, c.Text, tags,
			c.StartChar, c.EndChar, vector.Encode(c.Embedding),
		); err != nil {
			return fmt.Errorf("upsert chunk %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

// Query returns up to topK passages matching filter, by descending cosine
// similarity. Equal scores keep insertion order.
func (i *Index) Query(ctx context.Context, embedding []float32, topK int, filter domain.FilterPredicate) ([]domain.Passage, error) {
	dims, err := i.openedDimensions()
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

	query, args := buildSelect(i.collection, filter)
	rows, err := i.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	top := vector.NewTopK[domain.Passage](topK)
	for rows.Next() {
		var (
			seq     int64
			p       domain.Passage
			tagsRaw string
			blob    []byte
		)
		if err := rows.Scan(&seq, &p.ChunkID, &p.DocumentID, &p.Text, &tagsRaw, &blob); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		stored, err := vector.Decode(blob)
		if err != nil {
			return nil, fmt.Errorf("decode embedding of %s: %w", p.ChunkID, err)
		}
		if p.Tags, err = decodeTags(tagsRaw); err != nil {
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
	for j, r := range results {
		passages[j] = r.Item
	}
	return passages, nil
}

// buildSelect renders the candidate query with one json_extract equality per
// filter term. JSON paths are bound as parameters.
func buildSelect(collection string, filter domain.FilterPredicate) (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT seq, id, document_id, content, tags, embedding FROM chunks WHERE collection = ?")
	args := []any{collection}
	for _, term := range filter.Terms() {
		b.WriteString(" AND json_extract(tags, ?) = ?")
		args = append(args, jsonPath(term.Key), term.Value)
	}
	return b.String(), args
}

// jsonPath quotes key as a single JSON object member
func jsonPath(key string) string {
	return `$."` + strings.ReplaceAll(key, `"`, `\"`) + `"`
}

// DeleteStale removes chunks of documentID at positions >= keep.
func (i *Index) DeleteStale(ctx context.Context, documentID string, keep int) (int, error) {
	i.writeMu.Lock()
	defer i.writeMu.Unlock()

	res, err := i.db.ExecContext(ctx,
		"DELETE FROM chunks WHERE collection = ? AND document_id = ? AND position >= ?",
		i.collection, documentID, keep)
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
func (i *Index) CountByDocument(ctx context.Context, documentID string) (int, error) {
	var n int
	err := i.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM chunks WHERE collection = ? AND document_id = ?",
		i.collection, documentID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count chunks of %s: %w", documentID, err)
	}
	return n, nil
}

// Count returns the number of chunks in the collection.
func (i *Index) Count(ctx context.Context) (int, error) {
	var n int
	err := i.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM chunks WHERE collection = ?", i.collection,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

// Stats describes the collection.
func (i *Index) Stats(ctx context.Context) (*domain.IndexStats, error) {
	n, err := i.Count(ctx)
	if err != nil {
		return nil, err
	}
	stats := &domain.IndexStats{Collection: i.collection, Chunks: n}

	err = i.db.QueryRowContext(ctx,
		"SELECT dimensions, model FROM collections WHERE name = ?", i.collection,
	).Scan(&stats.Dimensions, &stats.Model)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("read collection %s: %w", i.collection, err)
	}
	return stats, nil
}

// HealthCheck verifies the database is readable.
func (i *Index) HealthCheck(ctx context.Context) error {
	return i.db.PingContext(ctx)
}

// Close closes the database.
func (i *Index) Close() error {
	return i.db.Close()
}

func encodeTags(tags domain.Tags) (string, error) {
	if tags == nil {
		return "{}", nil
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("marshalling tags: %w", err)
	}
	return string(data), nil
}

func decodeTags(raw string) (domain.Tags, error) {
	tags := domain.Tags{}
	if raw == "" {
		return tags, nil
	}
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil, err
	}
	return tags, nil
}
