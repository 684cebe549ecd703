package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
)

// Ensure corpusService implements CorpusService
var _ driving.CorpusService = (*corpusService)(nil)

// CorpusConfig holds configuration for folder ingestion.
type CorpusConfig struct {
	Extractors  driven.TextExtractorRegistry // Required
	Tagger      driven.DocumentTagger        // Required
	Logger      *slog.Logger
	Concurrency int // Parallel text extractions (default: 4)
}

// corpusService implements the CorpusService interface
type corpusService struct {
	ingestion   driving.IngestionService
	extractors  driven.TextExtractorRegistry
	tagger      driven.DocumentTagger
	logger      *slog.Logger
	concurrency int
}

// NewCorpusService creates a new CorpusService
func NewCorpusService(ingestion driving.IngestionService, cfg CorpusConfig) driving.CorpusService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	return &corpusService{
		ingestion:   ingestion,
		extractors:  cfg.Extractors,
		tagger:      cfg.Tagger,
		logger:      logger,
		concurrency: concurrency,
	}
}

// corpusFile is a tagged file awaiting extraction
type corpusFile struct {
	path      string
	name      string
	tags      domain.Tags
	extractor driven.TextExtractor
}

// IngestFolder extracts, tags and ingests every supported file in folder.
// The file name is the document ID. Extraction runs in parallel; ingestion
// then proceeds in file name order.
func (s *corpusService) IngestFolder(ctx context.Context, folder string) (*domain.BatchResult, error) {
	info, err := os.Stat(folder)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: folder %q does not exist", domain.ErrInvalidInput, folder)
		}
		return nil, fmt.Errorf("stat folder %q: %w", folder, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %q is not a directory", domain.ErrInvalidInput, folder)
	}

	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("read folder %q: %w", folder, err)
	}

	result := &domain.BatchResult{}
	var files []corpusFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		path := filepath.Join(folder, name)

		extractor := s.extractors.ForPath(path)
		if extractor == nil {
			continue
		}
		tags, ok := s.tagger.Tag(name)
		if !ok {
			s.logger.Warn("filename does not match expected format", "filename", name)
			result.Skipped = append(result.Skipped, name)
			continue
		}
		files = append(files, corpusFile{path: path, name: name, tags: tags, extractor: extractor})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].name < files[j].name })

	texts := make([]string, len(files))
	extractErrs := make([]error, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, f := range files {
		g.Go(func() error {
			s.logger.Info("extracting text", "path", f.path)
			text, err := f.extractor.Extract(gctx, f.path)
			if err != nil {
				// One unreadable file does not stop the others
				extractErrs[i] = err
				return nil
			}
			texts[i] = text
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	docs := make([]domain.Document, 0, len(files))
	for i, f := range files {
		if extractErrs[i] != nil {
			s.logger.Warn("text extraction failed", "filename", f.name, "error", extractErrs[i])
			result.Add(domain.IngestResult{
				DocumentID: f.name,
				Error:      fmt.Sprintf("extract %q: %v", f.name, extractErrs[i]),
			})
			continue
		}
		docs = append(docs, domain.Document{ID: f.name, Text: texts[i], Tags: f.tags})
	}

	batch := s.ingestion.IngestBatch(ctx, docs)
	for _, r := range batch.Results {
		result.Add(r)
	}

	s.logger.Info("folder ingested",
		"folder", folder,
		"files", len(files),
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"skipped", len(result.Skipped),
	)
	return result, nil
}
