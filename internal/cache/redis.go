// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/token-scanner/internal/domain"
)

// DefaultRedisKey holds the discovery snapshot in Redis.
const DefaultRedisKey = "token_scanner:discovery"

var _ Cache = (*RedisCache)(nil)

// RedisCache shares the discovery snapshot between scanner replicas.
// Redis failures degrade to cache misses.
type RedisCache struct {
	client   redis.Cmdable
	key      string
	ttl      time.Duration
	now      func() time.Time
	recorder LookupRecorder
	logger   *zap.Logger
}

func NewRedisCache(client redis.Cmdable, ttl time.Duration, rec LookupRecorder, logger *zap.Logger) *RedisCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCache{
		client:   client,
		key:      DefaultRedisKey,
		ttl:      ttl,
		now:      time.Now,
		recorder: rec,
		logger:   logger.Named("redis_cache"),
	}
}

// NewRedisCacheURL parses a redis:// URL and connects lazily.
func NewRedisCacheURL(rawURL string, ttl time.Duration, rec LookupRecorder, logger *zap.Logger) (*RedisCache, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	return NewRedisCache(redis.NewClient(opts), ttl, rec, logger), nil
}

// Ping checks the connection to the Redis server.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Get(ctx context.Context) ([]domain.PairCandidate, bool) {
	items, ok := c.get(ctx)
	if c.recorder != nil {
		c.recorder.RecordCacheLookup(ok)
	}
	return items, ok
}

func (c *RedisCache) get(ctx context.Context) ([]domain.PairCandidate, bool) {
	raw, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("redis get failed", zap.Error(err))
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.logger.Warn("corrupt cache entry", zap.Error(err))
		return nil, false
	}
	if !fresh(entry.FetchedAt, c.now(), c.ttl) {
		return nil, false
	}
	return entry.Items, true
}

func (c *RedisCache) Put(ctx context.Context, items []domain.PairCandidate) {
	raw, err := json.Marshal(Entry{FetchedAt: c.now().UTC(), Items: items})
	if err != nil {
		c.logger.Warn("encode cache entry", zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, c.key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("redis set failed", zap.Error(err))
	}
}
