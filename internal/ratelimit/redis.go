package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "docflow:ratelimit:"

// allowScript evicts entries older than the window cutoff, counts the
// window, rejects (returning the oldest entry's score) when the count has
// reached limit, and otherwise adds the current attempt — all atomically so
// concurrent requests from the same tenant can't race past the limit
// between the count and the add.
var allowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local cutoff = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]
local ttl = tonumber(ARGV[5])

redis.call('ZREMRANGEBYSCORE', key, '-inf', cutoff)
local count = redis.call('ZCARD', key)
if count >= limit then
	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	local retryAfter = 0
	if #oldest == 2 then
		retryAfter = tonumber(oldest[2])
	end
	return {0, retryAfter}
end
redis.call('ZADD', key, now, member)
redis.call('EXPIRE', key, ttl)
return {1, 0}
`)

// RedisLimiter is the production Limiter, grounded on the teacher's
// internal/cache/redis.go connection pattern, using one sorted set per
// tenant where members are admission timestamps.
type RedisLimiter struct {
	client *redis.Client
}

// NewRedisLimiter connects to addr and pings it to fail fast on startup.
func NewRedisLimiter(addr, password string) (*RedisLimiter, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: 0})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return &RedisLimiter{client: client}, nil
}

func (l *RedisLimiter) Allow(ctx context.Context, tenantID uuid.UUID, limit int, window time.Duration, now time.Time) (Decision, error) {
	key := keyPrefix + tenantID.String()
	nowMS := now.UnixMilli()
	cutoff := now.Add(-window).UnixMilli()
	member := fmt.Sprintf("%d-%s", nowMS, uuid.New().String())
	ttl := int(window.Seconds()) + 1

	res, err := allowScript.Run(ctx, l.client, []string{key}, nowMS, cutoff, limit, member, ttl).Result()
	if err != nil {
		return Decision{}, err
	}
	vals, ok := res.([]interface{})
	if !ok || len(vals) != 2 {
		return Decision{}, fmt.Errorf("ratelimit: unexpected script result %v", res)
	}
	allowed, _ := vals[0].(int64)
	oldest, _ := vals[1].(int64)
	if allowed == 1 {
		return Decision{Allowed: true}, nil
	}
	retryAfter := oldest + window.Milliseconds() - nowMS
	if retryAfter < 0 {
		retryAfter = 0
	}
	return Decision{Allowed: false, RetryAfterMS: retryAfter}, nil
}

// CurrentUsage evicts stale entries and reports the window's count, without
// adding a new attempt.
func (l *RedisLimiter) CurrentUsage(ctx context.Context, tenantID uuid.UUID, window time.Duration, now time.Time) (int, error) {
	key := keyPrefix + tenantID.String()
	cutoff := now.Add(-window).UnixMilli()
	if err := l.client.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("%d", cutoff)).Err(); err != nil {
		return 0, err
	}
	count, err := l.client.ZCard(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (l *RedisLimiter) Close() error { return l.client.Close() }
