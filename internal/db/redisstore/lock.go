package redisstore

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"Linkboard/internal/core/upvotes"
)

// SchedulerLock implements upvotes.SchedulerLock with SET NX EX
type SchedulerLock struct {
	client redis.Cmdable
	key    string
}

// NewSchedulerLock creates the batch scheduler lease
func NewSchedulerLock(client redis.Cmdable) *SchedulerLock {
	return &SchedulerLock{client: client, key: upvotes.SchedulerLockKey}
}

func (l *SchedulerLock) Acquire(ctx context.Context, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, time.Now().UnixMilli(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx %s: %w", l.key, err)
	}
	return ok, nil
}

func (l *SchedulerLock) Reset(ctx context.Context, ttl time.Duration) error {
	if err := l.client.Set(ctx, l.key, time.Now().UnixMilli(), ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", l.key, err)
	}
	return nil
}

var _ upvotes.SchedulerLock = (*SchedulerLock)(nil)
