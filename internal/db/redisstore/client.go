// Package redisstore implements the upvote pipeline's fast store on Redis:
// counters and vote flags, the outbox lists, the scheduler lease, the live
// event channel and the resource page cache.
package redisstore

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Default TTLs. Counters and flags are refreshed on every write.
const (
	DefaultCounterTTL  = 7 * 24 * time.Hour
	DefaultFlagTTL     = 7 * 24 * time.Hour
	DefaultResourceTTL = 7 * 24 * time.Hour
	scanCount          = 100
	deleteBatchSize    = 100
)

// Connect parses a redis:// URL and verifies the server is reachable
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// scanKeys collects every key matching pattern using cursor iteration
func scanKeys(ctx context.Context, client redis.Cmdable, pattern string) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := client.Scan(ctx, cursor, pattern, scanCount).Result()
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", pattern, err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}
