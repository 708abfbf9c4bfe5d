package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"Linkboard/internal/metrics"
)

// PageCache stores rendered resource pages as JSON blobs and invalidates
// them by glob pattern
type PageCache struct {
	client redis.Cmdable
}

// NewPageCache creates a page cache
func NewPageCache(client redis.Cmdable) *PageCache {
	return &PageCache{client: client}
}

// Get decodes the cached value into dest. Returns false on a miss.
func (c *PageCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// Set stores value as JSON with the given TTL
func (c *PageCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// InvalidatePattern deletes every key matching pattern. Keys are collected
// with SCAN first, then deleted in one pipeline of DEL commands carrying at
// most 100 keys each.
func (c *PageCache) InvalidatePattern(ctx context.Context, pattern string) (int, error) {
	keys, err := scanKeys(ctx, c.client, pattern)
	if err != nil {
		return 0, err
	}

	if len(keys) == 0 {
		return 0, nil
	}

	var dels []*redis.IntCmd
	_, err = c.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for start := 0; start < len(keys); start += deleteBatchSize {
			end := min(start+deleteBatchSize, len(keys))
			dels = append(dels, pipe.Del(ctx, keys[start:end]...))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("del %s: %w", pattern, err)
	}

	deleted := 0
	for _, cmd := range dels {
		deleted += int(cmd.Val())
	}
	metrics.CacheInvalidatedKeys.Add(float64(deleted))
	return deleted, nil
}
