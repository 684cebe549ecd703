// Package app wires configuration into adapters and core services.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/ai"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/postgres"
	redisadapter "github.com/custodia-labs/sercha-rag/internal/adapters/driven/redis"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/sqlite"
	"github.com/custodia-labs/sercha-rag/internal/config"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/core/services"
	"github.com/custodia-labs/sercha-rag/internal/extractors"
	"github.com/custodia-labs/sercha-rag/internal/postprocessors"
	"github.com/custodia-labs/sercha-rag/internal/runtime"
	"github.com/custodia-labs/sercha-rag/internal/tagger"
)

// App holds the wired services of one process
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Services *runtime.Services

	Ingestion driving.IngestionService
	Corpus    driving.CorpusService
	Retrieval driving.RetrievalService
	Answer    driving.AnswerService
}

// Options replace default collaborators, mainly in tests
type Options struct {
	AIFactory  driven.AIServiceFactory
	Extractors driven.TextExtractorRegistry
}

// New connects the configured backends, opens the index collection for the
// embedding model and builds the core services. Close releases everything.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (_ *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.AIFactory == nil {
		opts.AIFactory = ai.NewFactory()
	}
	if opts.Extractors == nil {
		opts.Extractors = extractors.DefaultRegistry()
	}

	rs := runtime.NewServices(domain.NewRuntimeConfig(cfg.Index.Backend, cfg.Lock.Backend))
	defer func() {
		if err != nil {
			_ = rs.Close()
		}
	}()

	// ===== Vector index =====
	var db *postgres.DB
	switch cfg.Index.Backend {
	case config.IndexSQLite:
		idx, err := sqlite.New(sqlite.Config{Path: cfg.Index.Path, Collection: cfg.Index.Collection})
		if err != nil {
			return nil, fmt.Errorf("open sqlite index: %w", err)
		}
		rs.SetVectorIndex(idx)
		logger.Info("using sqlite vector index", "path", idx.Path(), "collection", cfg.Index.Collection)

	case config.IndexPostgres:
		if db, err = connectPostgres(ctx, rs, cfg.Index.DatabaseURL); err != nil {
			return nil, err
		}
		rs.SetVectorIndex(postgres.NewVectorIndex(db, cfg.Index.Collection))
		logger.Info("using postgres vector index", "collection", cfg.Index.Collection)

	default:
		return nil, fmt.Errorf("%w: unknown index backend %q", domain.ErrConfiguration, cfg.Index.Backend)
	}

	// ===== Distributed lock (optional) =====
	switch cfg.Lock.Backend {
	case config.LockNone:
		logger.Info("using in-process document locks only")

	case config.LockRedis:
		client, err := redisadapter.Connect(ctx, cfg.Lock.RedisURL)
		if err != nil {
			return nil, err
		}
		rs.OnClose(client.Close)
		rs.SetLock(redisadapter.NewLock(client))
		logger.Info("using redis distributed lock")

	case config.LockPostgres:
		if db == nil {
			if db, err = connectPostgres(ctx, rs, cfg.Index.DatabaseURL); err != nil {
				return nil, err
			}
		}
		rs.SetLock(postgres.NewAdvisoryLock(db))
		logger.Info("using postgres advisory lock")

	default:
		return nil, fmt.Errorf("%w: unknown lock backend %q", domain.ErrConfiguration, cfg.Lock.Backend)
	}

	// ===== AI services =====
	embedding, err := opts.AIFactory.CreateEmbeddingService(&cfg.AI.Embedding)
	if err != nil {
		return nil, fmt.Errorf("create embedding service: %w", err)
	}
	if embedding == nil {
		return nil, fmt.Errorf("%w: embedding provider %q is not configured", domain.ErrConfiguration, cfg.AI.Embedding.Provider)
	}
	if err := rs.ValidateAndSetEmbedding(ctx, embedding); err != nil {
		return nil, fmt.Errorf("%w: embedding provider %q: %w", domain.ErrServiceUnavailable, cfg.AI.Embedding.Provider, err)
	}

	llm, err := opts.AIFactory.CreateLLMService(&cfg.AI.LLM)
	if err != nil {
		return nil, fmt.Errorf("create llm service: %w", err)
	}
	if llm == nil {
		logger.Info("answer generation disabled; /query returns retrieval metadata only")
	} else if err := rs.ValidateAndSetLLM(ctx, llm); err != nil {
		logger.Warn("llm unreachable, answer generation disabled",
			"provider", cfg.AI.LLM.Provider, "model", llm.Model(), "error", err)
	} else {
		logger.Info("answer generation enabled", "provider", cfg.AI.LLM.Provider, "model", llm.Model())
	}

	if err := rs.OpenIndex(ctx); err != nil {
		return nil, fmt.Errorf("open index collection: %w", err)
	}

	// ===== Core services =====
	pipeline, err := postprocessors.NewDefaultPipeline(cfg.Chunking)
	if err != nil {
		return nil, err
	}
	filters, err := domain.NewFilterBuilder(cfg.Retrieval.TagKeys)
	if err != nil {
		return nil, err
	}

	ingestion := services.NewIngestionService(rs, services.IngestionConfig{
		Pipeline:     pipeline,
		Logger:       logger,
		BatchSize:    cfg.Ingestion.BatchSize,
		EmbedTimeout: cfg.Ingestion.EmbedTimeout,
		IndexTimeout: cfg.Ingestion.IndexTimeout,
		LockTTL:      cfg.Lock.TTL,
		LockWait:     cfg.Lock.Wait,
	})
	retrieval, err := services.NewRetrievalService(rs, services.RetrievalConfig{
		Filters:     filters,
		Logger:      logger,
		DefaultTopK: cfg.Retrieval.DefaultTopK,
		MaxTopK:     cfg.Retrieval.MaxTopK,
	})
	if err != nil {
		return nil, err
	}

	if err := extractors.CheckAvailable(); err != nil {
		logger.Warn("pdf extraction unavailable, folder ingestion will fail for PDFs", "error", err)
	}

	a := &App{
		Config:    cfg,
		Logger:    logger,
		Services:  rs,
		Ingestion: ingestion,
		Corpus: services.NewCorpusService(ingestion, services.CorpusConfig{
			Extractors:  opts.Extractors,
			Tagger:      tagger.New(),
			Logger:      logger,
			Concurrency: cfg.Ingestion.Concurrency,
		}),
		Retrieval: retrieval,
		Answer:    services.NewAnswerService(retrieval, rs, logger, cfg.Retrieval.AnswerTimeout),
	}

	stats, err := ingestion.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("read index stats: %w", err)
	}
	logger.Info("vector index ready",
		"index_backend", rs.Config().IndexBackend,
		"lock_backend", rs.Config().LockBackend,
		"can_answer", rs.Config().CanAnswer(),
		"collection", stats.Collection,
		"chunks", stats.Chunks,
		"dimensions", stats.Dimensions,
		"model", stats.Model)

	return a, nil
}

// connectPostgres opens the pool, applies the schema and registers the pool for Close
func connectPostgres(ctx context.Context, rs *runtime.Services, url string) (*postgres.DB, error) {
	db, err := postgres.Connect(ctx, postgres.DefaultConfig(url))
	if err != nil {
		return nil, fmt.Errorf("%w: connect to postgres: %w", domain.ErrServiceUnavailable, err)
	}
	rs.OnClose(db.Close)
	if err := db.InitSchema(ctx); err != nil {
		return nil, fmt.Errorf("initialize postgres schema: %w", err)
	}
	return db, nil
}

// Close releases all services and connections
func (a *App) Close() error {
	if a == nil || a.Services == nil {
		return errors.New("app not initialized")
	}
	return a.Services.Close()
}
