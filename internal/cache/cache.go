package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a best-effort shared accelerator. Nothing may depend on it for
// correctness beyond the TTL a caller chooses.
type Cache interface {
	// Get decodes the value at key into dest. A missing or undecodable
	// entry reports found=false.
	Get(ctx context.Context, key string, dest any) (found bool, err error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// Index records key as a member of indexKey so it can be purged later.
	Index(ctx context.Context, indexKey, key string, ttl time.Duration) error
	// Purge deletes every key recorded under indexKey, and the index itself.
	Purge(ctx context.Context, indexKey string) error
}

type RedisCache struct {
	redis  redis.Cmdable
	logger *slog.Logger
}

func NewRedisCache(redisClient redis.Cmdable, logger *slog.Logger) *RedisCache {
	return &RedisCache{
		redis:  redisClient,
		logger: logger.With("component", "cache"),
	}
}

func (c *RedisCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	data, err := c.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Warn("discarding undecodable cache entry", "key", key, "error", err)
		_ = c.redis.Del(ctx, key).Err()
		return false, nil
	}
	return true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := c.redis.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

func (c *RedisCache) Index(ctx context.Context, indexKey, key string, ttl time.Duration) error {
	pipe := c.redis.TxPipeline()
	pipe.SAdd(ctx, indexKey, key)
	pipe.Expire(ctx, indexKey, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache index: %w", err)
	}
	return nil
}

func (c *RedisCache) Purge(ctx context.Context, indexKey string) error {
	members, err := c.redis.SMembers(ctx, indexKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("cache purge: %w", err)
	}
	return c.Delete(ctx, append(members, indexKey)...)
}
