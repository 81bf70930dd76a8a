package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "docflow:search:"

type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new Redis cache client.
func NewRedisCache(addr, password string) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// redisKey deterministically encodes a Key so identical search requests
// from the same tenant share a cache entry.
func redisKey(key Key) string {
	raw := fmt.Sprintf("%s|%s|%d|%g", key.TenantID, key.Query, key.Limit, key.ScoreThreshold)
	sum := sha256.Sum256([]byte(raw))
	return cacheKeyPrefix + key.TenantID.String() + ":" + hex.EncodeToString(sum[:])
}

func (c *RedisCache) GetSearchResults(ctx context.Context, key Key) ([]Result, error) {
	data, err := c.client.Get(ctx, redisKey(key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var results []Result
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, err
	}
	return results, nil
}

func (c *RedisCache) SetSearchResults(ctx context.Context, key Key, results []Result, ttl time.Duration) error {
	data, err := json.Marshal(results)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, redisKey(key), data, ttl).Err()
}

// InvalidateDocument drops every cached search result for the tenant.
// Like the simpler scheme this is adapted from, it doesn't track which
// cached queries actually matched documentID; a tenant's cache is small
// and short-lived enough (default TTL) that a full tenant-scoped flush
// on delete is cheap and always correct, never stale.
func (c *RedisCache) InvalidateDocument(ctx context.Context, tenantID, _ uuid.UUID) error {
	pattern := cacheKeyPrefix + tenantID.String() + ":*"
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()

	pipe := c.client.Pipeline()
	count := 0
	for iter.Next(ctx) {
		pipe.Del(ctx, iter.Val())
		count++
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if count > 0 {
		_, err := pipe.Exec(ctx)
		return err
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
