package upvotes

import (
	"context"
	"time"
)

// Service defines the upvote pipeline as seen by the HTTP layer.
// Toggle is the synchronous hot path; the durable vote log is written later
// by the batch processor draining the outbox.
type Service interface {
	// Toggle adds or removes the caller's upvote depending on the cached vote flag.
	// Flow: resource check -> atomic flag flip -> atomic counter mutation -> enqueue ->
	// publish -> invalidate -> arm scheduler. Steps after the counter mutation
	// never fail the call.
	Toggle(ctx context.Context, userID, resourceID string) (*ToggleResult, error)

	// Enqueue validates and queues one raw operation (internal queue endpoint)
	Enqueue(ctx context.Context, raw []byte) (*Operation, error)

	// Count returns the cached count, cold-starting it from the vote log on a miss
	Count(ctx context.Context, resourceID string) (int64, error)

	// Counts is the batched form of Count used by list pages
	Counts(ctx context.Context, resourceIDs []string) (map[string]int64, error)

	// HasVoted reports the cached vote flag for a user
	HasVoted(ctx context.Context, userID, resourceID string) (bool, error)
}

// CounterStore is the fast key-value store holding counters and vote flags.
// Every mutation must be a single-key atomic operation; TTLs are owned by the
// implementation.
type CounterStore interface {
	ResourceKnown(ctx context.Context, resourceID string) (bool, error)
	MarkResourceKnown(ctx context.Context, resourceID string) error

	HasVoted(ctx context.Context, userID, resourceID string) (bool, error)
	// SetVoted sets the flag only if absent; reports whether it was set
	SetVoted(ctx context.Context, userID, resourceID string) (bool, error)
	// ClearVoted deletes the flag; reports whether it existed
	ClearVoted(ctx context.Context, userID, resourceID string) (bool, error)

	// GetCount returns ErrCounterMiss when the counter is absent
	GetCount(ctx context.Context, resourceID string) (int64, error)
	// GetCounts omits absent counters from the result
	GetCounts(ctx context.Context, resourceIDs []string) (map[string]int64, error)
	// SeedCount stores value only if no counter exists; reports whether it was stored
	SeedCount(ctx context.Context, resourceID string, value int64) (bool, error)
	IncrCount(ctx context.Context, resourceID string) (int64, error)
	DecrCount(ctx context.Context, resourceID string) (int64, error)
	SetCount(ctx context.Context, resourceID string, value int64) error
	// CompareAndSetCount stores value only while the counter still holds
	// expected; reports whether it was stored
	CompareAndSetCount(ctx context.Context, resourceID string, expected, value int64) (bool, error)
}

// FlagReader exposes the cached vote flag to the batch processor
type FlagReader interface {
	HasVoted(ctx context.Context, userID, resourceID string) (bool, error)
}

// CounterScanner enumerates cached counters without blocking the store
type CounterScanner interface {
	ScanCounterResources(ctx context.Context) ([]string, error)
}

// Outbox is the durable FIFO of pending operations, one list per action plus
// a dead-letter list per action.
type Outbox interface {
	Push(ctx context.Context, action Action, raw []byte) error
	// Pop is non-blocking; ok is false when the list is empty
	Pop(ctx context.Context, action Action) (raw []byte, ok bool, err error)
	Len(ctx context.Context, action Action) (int64, error)

	PushFailed(ctx context.Context, action Action, raw []byte) error
	FailedLen(ctx context.Context, action Action) (int64, error)
	// ReplayFailed moves up to max dead letters back onto the live list
	ReplayFailed(ctx context.Context, action Action, max int) (int, error)
}

// SchedulerLock is the sentinel lease guarding the single pending flush job
type SchedulerLock interface {
	// Acquire sets the lock only if absent
	Acquire(ctx context.Context, ttl time.Duration) (bool, error)
	// Reset overwrites the lock unconditionally
	Reset(ctx context.Context, ttl time.Duration) error
}

// Dispatcher delivers a delayed, signed trigger to an internal endpoint.
// Delivery is at-least-once.
type Dispatcher interface {
	Schedule(ctx context.Context, target string, delay time.Duration, payload []byte) error
}

// Broadcaster is the live update channel
type Broadcaster interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(ctx context.Context) (Subscription, error)
}

// Subscription is one live listener. Close is idempotent.
type Subscription interface {
	Events() <-chan Event
	Close() error
}

// Invalidator deletes cached pages matching a glob pattern
type Invalidator interface {
	InvalidatePattern(ctx context.Context, pattern string) (int, error)
}

// Repository is the durable vote log (source of truth)
type Repository interface {
	// ResourceExists checks the owning resource table
	ResourceExists(ctx context.Context, resourceID string) (bool, error)

	// Exists reports whether a vote fact exists
	Exists(ctx context.Context, userID, resourceID string) (bool, error)

	// Insert adds a vote fact; inserted is false when it already existed
	Insert(ctx context.Context, userID, resourceID string) (inserted bool, err error)

	// Delete removes a vote fact if present
	Delete(ctx context.Context, userID, resourceID string) error

	CountByResource(ctx context.Context, resourceID string) (int64, error)
	CountsByResource(ctx context.Context, resourceIDs []string) (map[string]int64, error)
}
