package config

import (
	"log/slog"

	"github.com/caarlos0/env/v10"
)

// WorkerCounts holds the number of worker goroutines per pipeline stage.
type WorkerCounts struct {
	Extract int `env:"WORKER_COUNT_EXTRACT" envDefault:"4"`
	Chunk   int `env:"WORKER_COUNT_CHUNK" envDefault:"4"`
	Embed   int `env:"WORKER_COUNT_EMBED" envDefault:"4"`
}

// ConcurrencyCaps holds optional per-tenant in-flight caps per stage.
// Zero means no cap. app.Build hands these to the scheduler without a
// queue.ConcurrencyTracker, so no in-flight count is taken and nonzero
// values do not limit dispatch.
type ConcurrencyCaps struct {
	Extract int `env:"PER_TENANT_CAP_EXTRACT" envDefault:"0"`
	Chunk   int `env:"PER_TENANT_CAP_CHUNK" envDefault:"0"`
	Embed   int `env:"PER_TENANT_CAP_EMBED" envDefault:"0"`
}

// StageTimeoutsSeconds holds the wall-clock budget a worker gives a single
// job at each stage before it's treated as failed and retried/dead-lettered.
type StageTimeoutsSeconds struct {
	Extract int `env:"STAGE_TIMEOUT_EXTRACT_SECONDS" envDefault:"300"`
	Chunk   int `env:"STAGE_TIMEOUT_CHUNK_SECONDS" envDefault:"120"`
	Embed   int `env:"STAGE_TIMEOUT_EMBED_SECONDS" envDefault:"600"`
}

// Config holds runtime configuration for every service binary. Each binary
// only touches the fields relevant to it.
type Config struct {
	// Server
	Port     int    `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Upload limits
	MaxUploadSize int64 `env:"MAX_FILE_SIZE_BYTES" envDefault:"104857600"` // 100MB in bytes

	// Store
	StoreProvider string `env:"STORE_PROVIDER" envDefault:"postgres"` // "postgres" (production database)
	DBURL         string `env:"DB_URL"`

	// Queue / scheduler
	QueueProvider    string `env:"QUEUE_PROVIDER" envDefault:"redis"` // "redis"
	RedisURL         string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	RedisPassword    string `env:"REDIS_PASSWORD"`
	DoorbellURL      string `env:"DOORBELL_URL"` // NATS; empty disables the doorbell and falls back to pure polling
	SchedulerPollMin int64  `env:"SCHEDULER_POLL_MIN_MS" envDefault:"50"`
	SchedulerPollMax int64  `env:"SCHEDULER_POLL_MAX_MS" envDefault:"2000"`

	// Blob store
	BlobRoot string `env:"BLOB_ROOT" envDefault:"./data/blob"`

	// Embedder / LLM
	EmbedderProvider   string `env:"EMBEDDER_PROVIDER" envDefault:"openai"` // "openai" or "stub"
	OpenAIKey          string `env:"OPENAI_API_KEY"`
	EmbeddingModel     string `env:"EMBEDDING_MODEL_IDENTIFIER" envDefault:"text-embedding-3-small"`
	VectorDimension    int    `env:"VECTOR_DIMENSION" envDefault:"1536"`
	SummarizerProvider string `env:"SUMMARIZER_PROVIDER" envDefault:"openai"`
	LLMModel           string `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`

	// Pipeline
	ChunkSize      int `env:"CHUNK_SIZE" envDefault:"512"`
	ChunkOverlap   int `env:"CHUNK_OVERLAP" envDefault:"50"`
	EmbedBatchSize int `env:"EMBED_BATCH_SIZE" envDefault:"100"`
	MaxRetries     int `env:"MAX_RETRIES" envDefault:"3"`

	WorkerCounts    WorkerCounts
	ConcurrencyCaps ConcurrencyCaps
	StageTimeouts   StageTimeoutsSeconds

	// Rate limiting
	RateLimitWindowSeconds int `env:"RATE_LIMIT_WINDOW_SECONDS" envDefault:"60"`

	// Auth
	InternalToken string `env:"INTERNAL_TOKEN"`

	// Query-result cache
	CacheProvider string `env:"CACHE_PROVIDER" envDefault:"redis"` // "redis" or "noop"
	CacheTTL      int    `env:"CACHE_TTL_SECONDS" envDefault:"300"`
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		slog.Warn("failed to parse env; using defaults where set", "err", err)
	}
	return cfg
}
