// Package app builds the shared dependency bundle every binary wires up
// from config, mirroring the teacher's internal/app/deps.go one-struct,
// provider-switch construction pattern.
package app

import (
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/openai/openai-go/v3"
	"github.com/redis/go-redis/v9"

	"github.com/tomerlieber/docflow/internal/blob"
	"github.com/tomerlieber/docflow/internal/cache"
	"github.com/tomerlieber/docflow/internal/config"
	"github.com/tomerlieber/docflow/internal/embedder"
	"github.com/tomerlieber/docflow/internal/extractor"
	"github.com/tomerlieber/docflow/internal/logger"
	"github.com/tomerlieber/docflow/internal/queue"
	"github.com/tomerlieber/docflow/internal/ratelimit"
	"github.com/tomerlieber/docflow/internal/store"
	"github.com/tomerlieber/docflow/internal/summarizer"
	"github.com/tomerlieber/docflow/internal/vectorindex"
)

// Deps bundles every runtime dependency any binary might need. Each
// cmd/*/main.go only touches the fields it actually uses; building one
// bundle instead of several narrower ones keeps the construction code in
// one place, the way the teacher did with a single Deps struct.
type Deps struct {
	Config config.Config
	Log    *slog.Logger

	Store       store.Store
	Blob        blob.Store
	VectorIndex vectorindex.Index

	Substrate  queue.Substrate
	LastServed queue.LastServedStore
	Scheduler  *queue.Scheduler
	Doorbell   queue.Doorbell

	RateLimiter ratelimit.Limiter
	Cache       cache.Cache
	Embedder    embedder.Embedder
	Summarizer  summarizer.Summarizer
	Extractor   *extractor.Registry

	natsConn *nats.Conn
}

// Build loads .env (if present), parses config, and wires every component.
// Binaries that don't need a given component (e.g. cmd/extractworker has
// no use for Summarizer) still pay its construction cost; that's the
// tradeoff for one shared bundle instead of several narrower ones.
func Build() (Deps, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "err", err)
	}
	cfg := config.Load()
	log := logger.New(cfg.LogLevel)

	st, err := buildStore(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize store: %w", err)
	}

	blobStore, err := buildBlob(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize blob store: %w", err)
	}

	index, err := buildVectorIndex(cfg, st)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize vector index: %w", err)
	}

	substrate, lastServed, err := buildQueue(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize queue substrate: %w", err)
	}

	caps := map[queue.Stage]int{
		queue.StageExtract: cfg.ConcurrencyCaps.Extract,
		queue.StageChunk:   cfg.ConcurrencyCaps.Chunk,
		queue.StageEmbed:   cfg.ConcurrencyCaps.Embed,
	}
	scheduler := queue.NewScheduler(substrate, nil, caps)

	doorbell, natsConn, err := buildDoorbell(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize doorbell: %w", err)
	}

	limiter, err := buildRateLimiter(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize rate limiter: %w", err)
	}

	queryCache, err := buildCache(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize cache: %w", err)
	}

	emb, err := buildEmbedder(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	summ, err := buildSummarizer(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize summarizer: %w", err)
	}

	return Deps{
		Config:      cfg,
		Log:         log,
		Store:       st,
		Blob:        blobStore,
		VectorIndex: index,
		Substrate:   substrate,
		LastServed:  lastServed,
		Scheduler:   scheduler,
		Doorbell:    doorbell,
		RateLimiter: limiter,
		Cache:       queryCache,
		Embedder:    emb,
		Summarizer:  summ,
		Extractor:   extractor.NewRegistry(extractor.PDFExtractor{}, extractor.PlainTextExtractor{}),
		natsConn:    natsConn,
	}, nil
}

// Close releases every connection the bundle opened. Binaries should defer
// this right after a successful Build.
func (d Deps) Close() {
	if d.natsConn != nil {
		d.natsConn.Close()
	}
	if closer, ok := d.Substrate.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	if d.Cache != nil {
		_ = d.Cache.Close()
	}
	if closer, ok := d.Store.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
}

func buildStore(cfg config.Config, log *slog.Logger) (store.Store, error) {
	switch cfg.StoreProvider {
	case "postgres":
		if cfg.DBURL == "" {
			return nil, fmt.Errorf("DB_URL is required when STORE_PROVIDER=postgres")
		}
		db, err := store.NewPostgres(cfg.DBURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres: %w", err)
		}
		log.Info("using Postgres store")
		return db, nil
	default:
		return nil, fmt.Errorf("invalid STORE_PROVIDER: %s (valid option: postgres)", cfg.StoreProvider)
	}
}

func buildBlob(cfg config.Config, log *slog.Logger) (blob.Store, error) {
	fs, err := blob.NewFilesystemStore(cfg.BlobRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize filesystem blob store: %w", err)
	}
	log.Info("using filesystem blob store", "root", cfg.BlobRoot)
	return fs, nil
}

// buildVectorIndex shares the metadata store's Postgres connection pool,
// so it only works when that store is a *store.PostgresStore.
func buildVectorIndex(cfg config.Config, st store.Store) (vectorindex.Index, error) {
	pg, ok := st.(*store.PostgresStore)
	if !ok {
		return nil, fmt.Errorf("vector index requires a Postgres-backed store")
	}
	return vectorindex.NewPostgresIndex(pg.DB(), cfg.VectorDimension)
}

func buildQueue(cfg config.Config, log *slog.Logger) (queue.Substrate, queue.LastServedStore, error) {
	switch cfg.QueueProvider {
	case "redis":
		addr, password, err := redisAddr(cfg.RedisURL, cfg.RedisPassword)
		if err != nil {
			return nil, nil, err
		}
		rq, err := queue.NewRedisQueue(addr, password)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to Redis queue substrate: %w", err)
		}
		log.Info("using Redis queue substrate", "addr", addr)
		return rq, rq, nil
	default:
		return nil, nil, fmt.Errorf("invalid QUEUE_PROVIDER: %s (valid option: redis)", cfg.QueueProvider)
	}
}

func buildDoorbell(cfg config.Config, log *slog.Logger) (queue.Doorbell, *nats.Conn, error) {
	if cfg.DoorbellURL == "" {
		log.Info("doorbell disabled, workers poll with backoff between SCHEDULER_POLL_MIN_MS and SCHEDULER_POLL_MAX_MS")
		return queue.NoopDoorbell{}, nil, nil
	}
	nc, err := nats.Connect(cfg.DoorbellURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS doorbell: %w", err)
	}
	log.Info("using NATS doorbell", "url", cfg.DoorbellURL)
	return queue.NewNATSDoorbell(nc), nc, nil
}

func buildRateLimiter(cfg config.Config, log *slog.Logger) (ratelimit.Limiter, error) {
	addr, password, err := redisAddr(cfg.RedisURL, cfg.RedisPassword)
	if err != nil {
		return nil, err
	}
	limiter, err := ratelimit.NewRedisLimiter(addr, password)
	if err != nil {
		return nil, fmt.Errorf("failed to connect Redis rate limiter: %w", err)
	}
	log.Info("using Redis rate limiter", "addr", addr)
	return limiter, nil
}

func buildCache(cfg config.Config, log *slog.Logger) (cache.Cache, error) {
	switch cfg.CacheProvider {
	case "redis":
		addr, password, err := redisAddr(cfg.RedisURL, cfg.RedisPassword)
		if err != nil {
			return nil, err
		}
		c, err := cache.NewRedisCache(addr, password)
		if err != nil {
			return nil, fmt.Errorf("failed to connect Redis cache: %w", err)
		}
		log.Info("using Redis search cache", "addr", addr)
		return c, nil
	case "noop":
		log.Info("search cache disabled")
		return cache.NewNoOpCache(), nil
	default:
		return nil, fmt.Errorf("invalid CACHE_PROVIDER: %s (valid options: redis, noop)", cfg.CacheProvider)
	}
}

func buildEmbedder(cfg config.Config, log *slog.Logger) (embedder.Embedder, error) {
	switch cfg.EmbedderProvider {
	case "openai":
		emb, err := embedder.NewOpenAIEmbedder(cfg.OpenAIKey, openai.EmbeddingModel(cfg.EmbeddingModel), cfg.VectorDimension)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize OpenAI embedder: %w", err)
		}
		log.Info("using OpenAI embedder", "model", cfg.EmbeddingModel)
		return emb, nil
	case "stub":
		log.Warn("using stub embedder, vectors carry no semantic meaning")
		return embedder.NewStubEmbedder(cfg.VectorDimension), nil
	default:
		return nil, fmt.Errorf("invalid EMBEDDER_PROVIDER: %s (valid options: openai, stub)", cfg.EmbedderProvider)
	}
}

func buildSummarizer(cfg config.Config, log *slog.Logger) (summarizer.Summarizer, error) {
	switch cfg.SummarizerProvider {
	case "openai":
		if cfg.OpenAIKey == "" {
			log.Warn("no OPENAI_API_KEY set, disabling summarizer enrichment")
			return summarizer.NewNoOpSummarizer(), nil
		}
		client, err := summarizer.NewOpenAIClient(cfg.OpenAIKey, openai.ChatModel(cfg.LLMModel))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize OpenAI summarizer: %w", err)
		}
		log.Info("using OpenAI summarizer", "model", cfg.LLMModel)
		return client, nil
	case "noop":
		return summarizer.NewNoOpSummarizer(), nil
	default:
		return nil, fmt.Errorf("invalid SUMMARIZER_PROVIDER: %s (valid options: openai, noop)", cfg.SummarizerProvider)
	}
}

// redisAddr resolves a redis:// URL to an addr/password pair, letting an
// explicit password override one embedded in the URL.
func redisAddr(rawURL, explicitPassword string) (string, string, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid redis URL %q: %w", rawURL, err)
	}
	password := opts.Password
	if explicitPassword != "" {
		password = explicitPassword
	}
	return opts.Addr, password, nil
}
