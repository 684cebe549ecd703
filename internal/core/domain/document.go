package domain

import (
	"fmt"
	"maps"
	"strconv"
	"strings"
)

// Tags carries structured attributes attached to every chunk of a document
// (e.g. class, subject, chapter). Keys are arbitrary strings.
type Tags map[string]string

// Clone returns an independent copy of the tags
func (t Tags) Clone() Tags {
	if t == nil {
		return Tags{}
	}
	return maps.Clone(t)
}

// Document is the unit handed to the ingestion pipeline: extracted text plus tags
type Document struct {
	ID   string `json:"document_id"`
	Text string `json:"text"`
	Tags Tags   `json:"tags"`
}

// Validate checks the document can be ingested
func (d *Document) Validate() error {
	if d == nil || strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("%w: document id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(d.Text) == "" {
		return fmt.Errorf("%w: document text is empty", ErrInvalidInput)
	}
	return nil
}

// Chunk represents one embeddable segment of a document
type Chunk struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Position   int    `json:"position"` // Ordinal within the document
	Text       string `json:"text"`
	Tags       Tags   `json:"tags"`
	StartChar  int    `json:"start_char"`
	EndChar    int    `json:"end_char"`
}

// IndexedChunk is the persisted unit: a chunk together with its embedding
type IndexedChunk struct {
	Chunk
	Embedding []float32 `json:"-"`
}

// ChunkID derives the stable identifier of the chunk at position within a document.
// Re-ingesting the same document yields the same IDs, so records are overwritten.
func ChunkID(documentID string, position int) string {
	return documentID + "-" + strconv.Itoa(position)
}

// IngestResult reports the outcome of ingesting one document
type IngestResult struct {
	DocumentID string `json:"document_id"`
	Chunks     int    `json:"chunks"`
	Error      string `json:"error,omitempty"`
}

// Succeeded reports whether the document was stored
func (r IngestResult) Succeeded() bool {
	return r.Error == ""
}

// BatchResult reports per-document outcomes of a batch ingestion
type BatchResult struct {
	Results   []IngestResult `json:"results"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Skipped   []string       `json:"skipped,omitempty"` // Inputs rejected before ingestion (e.g. bad filenames)
}

// Add records one document outcome
func (b *BatchResult) Add(r IngestResult) {
	b.Results = append(b.Results, r)
	if r.Succeeded() {
		b.Succeeded++
	} else {
		b.Failed++
	}
}

// TotalChunks returns the number of chunks stored across the batch
func (b *BatchResult) TotalChunks() int {
	total := 0
	for _, r := range b.Results {
		total += r.Chunks
	}
	return total
}

// IndexStats describes a vector index collection
type IndexStats struct {
	Collection string `json:"collection"`
	Chunks     int    `json:"chunks"`
	Dimensions int    `json:"dimensions"`
	Model      string `json:"model"`
}
