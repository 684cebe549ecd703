// Package config loads sercha-rag settings from a YAML file, an optional
// .env file and environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/postprocessors"
)

// Index backends
const (
	IndexSQLite   = "sqlite"
	IndexPostgres = "postgres"
)

// Lock backends
const (
	LockNone     = "none"
	LockRedis    = "redis"
	LockPostgres = "postgres"
)

// ServerConfig configures the HTTP server
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LogConfig configures the slog handler
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// IndexConfig selects and configures the vector index backend
type IndexConfig struct {
	Backend    string `yaml:"backend"`
	Path       string `yaml:"path"`
	Collection string `yaml:"collection"`
	// DatabaseURL is the Postgres DSN, also used by the postgres lock
	DatabaseURL string `yaml:"database_url"`
}

// LockConfig selects the cross-process document lock
type LockConfig struct {
	Backend  string        `yaml:"backend"`
	RedisURL string        `yaml:"redis_url"`
	TTL      time.Duration `yaml:"ttl"`
	Wait     time.Duration `yaml:"wait"`
}

// IngestionConfig tunes the ingestion pipeline
type IngestionConfig struct {
	DataDir      string        `yaml:"data_dir"`
	BatchSize    int           `yaml:"batch_size"`
	Concurrency  int           `yaml:"concurrency"`
	EmbedTimeout time.Duration `yaml:"embed_timeout"`
	IndexTimeout time.Duration `yaml:"index_timeout"`
}

// RetrievalConfig tunes the retrieval engine
type RetrievalConfig struct {
	DefaultTopK   int           `yaml:"default_top_k"`
	MaxTopK       int           `yaml:"max_top_k"`
	TagKeys       []string      `yaml:"tag_keys"`
	AnswerTimeout time.Duration `yaml:"answer_timeout"`
}

// Config is the root configuration
type Config struct {
	Server    ServerConfig               `yaml:"server"`
	Log       LogConfig                  `yaml:"log"`
	Index     IndexConfig                `yaml:"index"`
	Lock      LockConfig                 `yaml:"lock"`
	AI        domain.AISettings          `yaml:"ai"`
	Chunking  postprocessors.ChunkConfig `yaml:"chunking"`
	Ingestion IngestionConfig            `yaml:"ingestion"`
	Retrieval RetrievalConfig            `yaml:"retrieval"`
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8000,
			AllowedOrigins: []string{"*"},
		},
		Log: LogConfig{Level: "info", Format: "text"},
		Index: IndexConfig{
			Backend:    IndexSQLite,
			Path:       "./vector_db/index.db",
			Collection: "documents",
		},
		Lock: LockConfig{
			Backend: LockNone,
			TTL:     5 * time.Minute,
			Wait:    30 * time.Second,
		},
		AI: domain.AISettings{
			Embedding: domain.EmbeddingSettings{
				Provider: domain.AIProviderOllama,
				Model:    "all-minilm",
			},
			LLM: domain.LLMSettings{
				Provider: domain.AIProviderGroq,
				Model:    "llama-3.1-8b-instant",
			},
		},
		Chunking: postprocessors.DefaultChunkConfig(),
		Ingestion: IngestionConfig{
			DataDir:      "./data",
			BatchSize:    32,
			Concurrency:  4,
			EmbedTimeout: 60 * time.Second,
			IndexTimeout: 30 * time.Second,
		},
		Retrieval: RetrievalConfig{
			DefaultTopK:   domain.DefaultTopK,
			MaxTopK:       domain.MaxTopK,
			TagKeys:       domain.DefaultTagKeys,
			AnswerTimeout: 60 * time.Second,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is not empty), then environment overrides. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: read config: %v", domain.ErrConfiguration, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parse config %s: %v", domain.ErrConfiguration, path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnvFile loads variables from .env files without overriding the
// environment. Missing files are ignored; the default is ./.env.
func LoadEnvFile(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("%w: load %s: %v", domain.ErrConfiguration, p, err)
		}
	}
	return nil
}

// applyEnv overrides file settings with environment variables
func (c *Config) applyEnv() {
	c.Server.Host = getEnv("HOST", c.Server.Host)
	c.Server.Port = getEnvInt("PORT", c.Server.Port)
	if origins := getEnv("ALLOWED_ORIGINS", ""); origins != "" {
		c.Server.AllowedOrigins = splitList(origins)
	}

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)

	c.Index.Backend = getEnv("INDEX_BACKEND", c.Index.Backend)
	c.Index.Path = getEnv("VECTOR_DB_PATH", c.Index.Path)
	c.Index.Collection = getEnv("COLLECTION_NAME", c.Index.Collection)
	c.Index.DatabaseURL = getEnv("DATABASE_URL", c.Index.DatabaseURL)

	c.Lock.RedisURL = getEnv("REDIS_URL", c.Lock.RedisURL)
	if c.Lock.RedisURL != "" && c.Lock.Backend == LockNone {
		c.Lock.Backend = LockRedis
	}
	c.Lock.Backend = getEnv("LOCK_BACKEND", c.Lock.Backend)

	emb := &c.AI.Embedding
	emb.Provider = domain.AIProvider(getEnv("EMBEDDING_PROVIDER", string(emb.Provider)))
	emb.Model = getEnv("EMBEDDING_MODEL", emb.Model)
	emb.BaseURL = getEnv("EMBEDDING_BASE_URL", emb.BaseURL)
	emb.Dimensions = getEnvInt("EMBEDDING_DIMENSIONS", emb.Dimensions)
	emb.Serialize = getEnvBool("EMBEDDING_SERIALIZE", emb.Serialize)
	emb.APIKey = getEnv("EMBEDDING_API_KEY", emb.APIKey)
	if emb.APIKey == "" && emb.Provider == domain.AIProviderOpenAI {
		emb.APIKey = getEnv("OPENAI_API_KEY", "")
	}

	llm := &c.AI.LLM
	llm.Provider = domain.AIProvider(getEnv("LLM_PROVIDER", string(llm.Provider)))
	llm.Model = getEnv("LLM_MODEL", llm.Model)
	llm.BaseURL = getEnv("LLM_BASE_URL", llm.BaseURL)
	llm.APIKey = getEnv("LLM_API_KEY", llm.APIKey)
	if llm.APIKey == "" {
		switch llm.Provider {
		case domain.AIProviderGroq:
			llm.APIKey = getEnv("GROQ_API_KEY", "")
		case domain.AIProviderOpenAI:
			llm.APIKey = getEnv("OPENAI_API_KEY", "")
		}
	}

	c.Chunking.MaxChunkSize = getEnvInt("CHUNK_SIZE", c.Chunking.MaxChunkSize)
	c.Chunking.Overlap = getEnvInt("CHUNK_OVERLAP", c.Chunking.Overlap)

	c.Ingestion.DataDir = getEnv("DATA_DIR", c.Ingestion.DataDir)
	c.Ingestion.BatchSize = getEnvInt("EMBED_BATCH_SIZE", c.Ingestion.BatchSize)
	c.Ingestion.Concurrency = getEnvInt("INGEST_CONCURRENCY", c.Ingestion.Concurrency)

	c.Retrieval.DefaultTopK = getEnvInt("TOP_K", c.Retrieval.DefaultTopK)
}

// Validate rejects settings the application cannot start with
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server port %d out of range", c.Server.Port))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log format must be text or json, got %q", c.Log.Format))
	}

	switch c.Index.Backend {
	case IndexSQLite:
		if c.Index.Path == "" {
			errs = append(errs, errors.New("index path is required for the sqlite backend"))
		}
	case IndexPostgres:
		if c.Index.DatabaseURL == "" {
			errs = append(errs, errors.New("database_url is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown index backend %q", c.Index.Backend))
	}

	switch c.Lock.Backend {
	case LockNone:
	case LockRedis:
		if c.Lock.RedisURL == "" {
			errs = append(errs, errors.New("redis_url is required for the redis lock"))
		}
	case LockPostgres:
		if c.Index.DatabaseURL == "" {
			errs = append(errs, errors.New("database_url is required for the postgres lock"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown lock backend %q", c.Lock.Backend))
	}

	if c.AI.Embedding.Provider == "" {
		errs = append(errs, errors.New("embedding provider is required"))
	}
	if err := c.AI.Validate(); err != nil {
		errs = append(errs, err)
	}

	if err := c.Chunking.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Retrieval.DefaultTopK <= 0 || c.Retrieval.MaxTopK <= 0 || c.Retrieval.DefaultTopK > c.Retrieval.MaxTopK {
		errs = append(errs, fmt.Errorf("top_k defaults invalid: default %d, max %d", c.Retrieval.DefaultTopK, c.Retrieval.MaxTopK))
	}
	if c.Ingestion.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("ingestion concurrency must be positive, got %d", c.Ingestion.Concurrency))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", domain.ErrConfiguration, errors.Join(errs...))
	}
	return nil
}

// ParseLevel converts a level name into a slog level
func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", level)
	}
	return l, nil
}

// NewLogger builds the process logger described by the log settings
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := ParseLevel(c.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.Atoi(value); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
