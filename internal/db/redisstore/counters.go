package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"

	"Linkboard/internal/core/upvotes"
)

// CounterOptions configures key lifetimes
type CounterOptions struct {
	CounterTTL  time.Duration
	FlagTTL     time.Duration
	ResourceTTL time.Duration
}

// CounterStore implements upvotes.CounterStore and upvotes.CounterScanner
type CounterStore struct {
	client redis.Cmdable
	opts   CounterOptions
}

// NewCounterStore creates a counter store. Zero TTLs fall back to the defaults.
func NewCounterStore(client redis.Cmdable, opts CounterOptions) *CounterStore {
	if opts.CounterTTL <= 0 {
		opts.CounterTTL = DefaultCounterTTL
	}
	if opts.FlagTTL <= 0 {
		opts.FlagTTL = DefaultFlagTTL
	}
	if opts.ResourceTTL <= 0 {
		opts.ResourceTTL = DefaultResourceTTL
	}
	return &CounterStore{client: client, opts: opts}
}

func (s *CounterStore) ResourceKnown(ctx context.Context, resourceID string) (bool, error) {
	n, err := s.client.Exists(ctx, upvotes.ResourceExistsKey(resourceID)).Result()
	if err != nil {
		return false, fmt.Errorf("exists resource flag: %w", err)
	}
	return n > 0, nil
}

func (s *CounterStore) MarkResourceKnown(ctx context.Context, resourceID string) error {
	if err := s.client.Set(ctx, upvotes.ResourceExistsKey(resourceID), "1", s.opts.ResourceTTL).Err(); err != nil {
		return fmt.Errorf("set resource flag: %w", err)
	}
	return nil
}

func (s *CounterStore) HasVoted(ctx context.Context, userID, resourceID string) (bool, error) {
	n, err := s.client.Exists(ctx, upvotes.UserFlagKey(userID, resourceID)).Result()
	if err != nil {
		return false, fmt.Errorf("exists vote flag: %w", err)
	}
	return n > 0, nil
}

// SetVoted is SET NX EX; false means another request already holds the flag
func (s *CounterStore) SetVoted(ctx context.Context, userID, resourceID string) (bool, error) {
	ok, err := s.client.SetNX(ctx, upvotes.UserFlagKey(userID, resourceID), "1", s.opts.FlagTTL).Result()
	if err != nil {
		return false, fmt.Errorf("setnx vote flag: %w", err)
	}
	return ok, nil
}

// ClearVoted is DEL; false means the flag was already gone
func (s *CounterStore) ClearVoted(ctx context.Context, userID, resourceID string) (bool, error) {
	n, err := s.client.Del(ctx, upvotes.UserFlagKey(userID, resourceID)).Result()
	if err != nil {
		return false, fmt.Errorf("del vote flag: %w", err)
	}
	return n == 1, nil
}

func (s *CounterStore) GetCount(ctx context.Context, resourceID string) (int64, error) {
	n, err := s.client.Get(ctx, upvotes.CounterKey(resourceID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, upvotes.ErrCounterMiss
	}
	if err != nil {
		return 0, fmt.Errorf("get counter: %w", err)
	}
	return n, nil
}

func (s *CounterStore) GetCounts(ctx context.Context, resourceIDs []string) (map[string]int64, error) {
	result := make(map[string]int64, len(resourceIDs))
	if len(resourceIDs) == 0 {
		return result, nil
	}

	keys := make([]string, len(resourceIDs))
	for i, id := range resourceIDs {
		keys[i] = upvotes.CounterKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget counters: %w", err)
	}

	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(str, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("counter %s holds %q: %w", keys[i], str, err)
		}
		result[resourceIDs[i]] = n
	}
	return result, nil
}

func (s *CounterStore) SeedCount(ctx context.Context, resourceID string, value int64) (bool, error) {
	ok, err := s.client.SetNX(ctx, upvotes.CounterKey(resourceID), value, s.opts.CounterTTL).Result()
	if err != nil {
		return false, fmt.Errorf("setnx counter: %w", err)
	}
	return ok, nil
}

func (s *CounterStore) IncrCount(ctx context.Context, resourceID string) (int64, error) {
	return s.step(ctx, resourceID, 1)
}

func (s *CounterStore) DecrCount(ctx context.Context, resourceID string) (int64, error) {
	return s.step(ctx, resourceID, -1)
}

// step applies an atomic delta and refreshes the TTL in the same round trip
func (s *CounterStore) step(ctx context.Context, resourceID string, delta int64) (int64, error) {
	key := upvotes.CounterKey(resourceID)
	var incr *redis.IntCmd
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.IncrBy(ctx, key, delta)
		pipe.Expire(ctx, key, s.opts.CounterTTL)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("incrby counter: %w", err)
	}
	return incr.Val(), nil
}

func (s *CounterStore) SetCount(ctx context.Context, resourceID string, value int64) error {
	if err := s.client.Set(ctx, upvotes.CounterKey(resourceID), value, s.opts.CounterTTL).Err(); err != nil {
		return fmt.Errorf("set counter: %w", err)
	}
	return nil
}

// compareAndSet swaps the counter only if it still holds ARGV[1], keeping
// the key's TTL semantics of SetCount.
var compareAndSet = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if not cur or tonumber(cur) ~= tonumber(ARGV[1]) then
	return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// CompareAndSetCount overwrites the counter in one atomic step unless a
// toggle moved it since the caller read expected
func (s *CounterStore) CompareAndSetCount(ctx context.Context, resourceID string, expected, value int64) (bool, error) {
	key := upvotes.CounterKey(resourceID)
	n, err := compareAndSet.Run(ctx, s.client, []string{key},
		expected, value, s.opts.CounterTTL.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("compare-and-set counter: %w", err)
	}
	return n == 1, nil
}

// ScanCounterResources lists the resource ids of every cached counter
func (s *CounterStore) ScanCounterResources(ctx context.Context) ([]string, error) {
	keys, err := scanKeys(ctx, s.client, upvotes.CounterKeyPattern)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		if id := upvotes.ResourceIDFromCounterKey(k); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

var (
	_ upvotes.CounterStore   = (*CounterStore)(nil)
	_ upvotes.CounterScanner = (*CounterStore)(nil)
)
