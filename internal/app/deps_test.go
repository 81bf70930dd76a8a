package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tomerlieber/docflow/internal/config"
	"github.com/tomerlieber/docflow/internal/logger"
)

func TestBuildStoreRejectsUnknownProvider(t *testing.T) {
	cfg := config.Config{StoreProvider: "sqlite"}
	_, err := buildStore(cfg, logger.New("error"))
	require.Error(t, err)
}

func TestBuildStoreRequiresDBURL(t *testing.T) {
	cfg := config.Config{StoreProvider: "postgres"}
	_, err := buildStore(cfg, logger.New("error"))
	require.ErrorContains(t, err, "DB_URL")
}

func TestBuildCacheRejectsUnknownProvider(t *testing.T) {
	cfg := config.Config{CacheProvider: "memcached"}
	_, err := buildCache(cfg, logger.New("error"))
	require.Error(t, err)
}

func TestBuildCacheNoop(t *testing.T) {
	cfg := config.Config{CacheProvider: "noop"}
	c, err := buildCache(cfg, logger.New("error"))
	require.NoError(t, err)
	require.NotNil(t, c)
}

func TestBuildEmbedderStub(t *testing.T) {
	cfg := config.Config{EmbedderProvider: "stub", VectorDimension: 8}
	emb, err := buildEmbedder(cfg, logger.New("error"))
	require.NoError(t, err)
	require.Equal(t, 8, emb.Dimension())
}

func TestBuildEmbedderRejectsUnknownProvider(t *testing.T) {
	cfg := config.Config{EmbedderProvider: "cohere"}
	_, err := buildEmbedder(cfg, logger.New("error"))
	require.Error(t, err)
}

func TestBuildSummarizerNoopWithoutKey(t *testing.T) {
	cfg := config.Config{SummarizerProvider: "openai", OpenAIKey: ""}
	summ, err := buildSummarizer(cfg, logger.New("error"))
	require.NoError(t, err)
	sum, err := summ.Summarize(context.Background(), "irrelevant")
	require.NoError(t, err)
	require.Empty(t, sum.Text)
}

func TestBuildQueueRejectsUnknownProvider(t *testing.T) {
	cfg := config.Config{QueueProvider: "rabbitmq"}
	_, _, err := buildQueue(cfg, logger.New("error"))
	require.Error(t, err)
}

func TestRedisAddrParsesURL(t *testing.T) {
	addr, password, err := redisAddr("redis://:secret@localhost:6380/0", "")
	require.NoError(t, err)
	require.Equal(t, "localhost:6380", addr)
	require.Equal(t, "secret", password)
}

func TestRedisAddrExplicitPasswordOverridesURL(t *testing.T) {
	addr, password, err := redisAddr("redis://:fromurl@localhost:6379/0", "override")
	require.NoError(t, err)
	require.Equal(t, "localhost:6379", addr)
	require.Equal(t, "override", password)
}

func TestRedisAddrRejectsInvalidURL(t *testing.T) {
	_, _, err := redisAddr("not a url", "")
	require.Error(t, err)
}
