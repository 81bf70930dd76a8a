package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	activeTenantsKeyPrefix = "docflow:queue:active:" // SET of tenant ids with >=1 job at a stage
	queueKeyPrefix         = "docflow:queue:"         // ZSET per (tenant, stage)
	lastServedKeyPrefix    = "docflow:queue:lastserved:"
)

// popMinScript atomically pops the lowest-scoring member with score <= now.
var popMinScript = redis.NewScript(`
local key = KEYS[1]
local now = ARGV[1]
local members = redis.call('ZRANGEBYSCORE', key, '-inf', now, 'LIMIT', 0, 1)
if #members == 0 then
	return false
end
redis.call('ZREM', key, members[1])
return members[1]
`)

// RedisQueue is the production Substrate + LastServedStore backed by Redis
// sorted sets, grounded on the teacher's internal/cache/redis.go connection
// pattern and on original_source's per-tenant queue:{tenant}:{stage} ZSET
// scheme.
type RedisQueue struct {
	client *redis.Client
}

// NewRedisQueue connects to addr and pings it to fail fast on startup.
func NewRedisQueue(addr, password string) (*RedisQueue, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: 0})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return &RedisQueue{client: client}, nil
}

func queueKey(tenantID uuid.UUID, stage Stage) string {
	return queueKeyPrefix + string(stage) + ":" + tenantID.String()
}

func activeTenantsKey(stage Stage) string {
	return activeTenantsKeyPrefix + string(stage)
}

func lastServedKey(stage Stage) string {
	return lastServedKeyPrefix + string(stage)
}

func (q *RedisQueue) Enqueue(ctx context.Context, tenantID uuid.UUID, stage Stage, jobID uuid.UUID, score float64) error {
	pipe := q.client.TxPipeline()
	pipe.ZAdd(ctx, queueKey(tenantID, stage), redis.Z{Score: score, Member: jobID.String()})
	pipe.SAdd(ctx, activeTenantsKey(stage), tenantID.String())
	_, err := pipe.Exec(ctx)
	return err
}

func (q *RedisQueue) PopMin(ctx context.Context, tenantID uuid.UUID, stage Stage, now time.Time) (uuid.UUID, bool, error) {
	key := queueKey(tenantID, stage)
	res, err := popMinScript.Run(ctx, q.client, []string{key}, now.Unix()).Result()
	if err == redis.Nil {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}
	member, ok := res.(string)
	if !ok || member == "" {
		return uuid.Nil, false, nil
	}
	if n, cerr := q.client.ZCard(ctx, key).Result(); cerr == nil && n == 0 {
		q.client.SRem(ctx, activeTenantsKey(stage), tenantID.String())
	}
	jobID, err := uuid.Parse(member)
	if err != nil {
		return uuid.Nil, false, err
	}
	return jobID, true, nil
}

func (q *RedisQueue) ListActiveTenants(ctx context.Context, stage Stage, now time.Time) ([]uuid.UUID, error) {
	members, err := q.client.SMembers(ctx, activeTenantsKey(stage)).Result()
	if err != nil {
		return nil, err
	}
	var out []uuid.UUID
	for _, m := range members {
		tenantID, err := uuid.Parse(m)
		if err != nil {
			continue
		}
		count, err := q.client.ZCount(ctx, queueKey(tenantID, stage), "-inf", fmt.Sprintf("%d", now.Unix())).Result()
		if err != nil {
			return nil, err
		}
		if count > 0 {
			out = append(out, tenantID)
		} else if depth, derr := q.client.ZCard(ctx, queueKey(tenantID, stage)).Result(); derr == nil && depth == 0 {
			q.client.SRem(ctx, activeTenantsKey(stage), m)
		}
	}
	return out, nil
}

func (q *RedisQueue) Length(ctx context.Context, tenantID uuid.UUID, stage Stage) (int64, error) {
	return q.client.ZCard(ctx, queueKey(tenantID, stage)).Result()
}

func (q *RedisQueue) Close() error { return q.client.Close() }

// GetLastServed and SetLastServed implement LastServedStore so the fairness
// rotation pointer is shared across horizontally scaled worker processes.
func (q *RedisQueue) GetLastServed(ctx context.Context, stage Stage) (uuid.UUID, bool) {
	val, err := q.client.Get(ctx, lastServedKey(stage)).Result()
	if err != nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func (q *RedisQueue) SetLastServed(ctx context.Context, stage Stage, tenantID uuid.UUID) error {
	return q.client.Set(ctx, lastServedKey(stage), tenantID.String(), 0).Err()
}
