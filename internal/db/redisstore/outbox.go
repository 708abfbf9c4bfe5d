package redisstore

import (
	"context"
	"errors"
	"fmt"

	redis "github.com/redis/go-redis/v9"

	"Linkboard/internal/core/upvotes"
)

// Outbox implements upvotes.Outbox on Redis lists (RPUSH producers, LPOP consumer)
type Outbox struct {
	client redis.Cmdable
}

// NewOutbox creates a list-backed outbox
func NewOutbox(client redis.Cmdable) *Outbox {
	return &Outbox{client: client}
}

func (o *Outbox) Push(ctx context.Context, action upvotes.Action, raw []byte) error {
	if err := o.client.RPush(ctx, upvotes.QueueName(action), raw).Err(); err != nil {
		return fmt.Errorf("rpush %s: %w", upvotes.QueueName(action), err)
	}
	return nil
}

func (o *Outbox) Pop(ctx context.Context, action upvotes.Action) ([]byte, bool, error) {
	raw, err := o.client.LPop(ctx, upvotes.QueueName(action)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("lpop %s: %w", upvotes.QueueName(action), err)
	}
	return raw, true, nil
}

func (o *Outbox) Len(ctx context.Context, action upvotes.Action) (int64, error) {
	n, err := o.client.LLen(ctx, upvotes.QueueName(action)).Result()
	if err != nil {
		return 0, fmt.Errorf("llen %s: %w", upvotes.QueueName(action), err)
	}
	return n, nil
}

func (o *Outbox) PushFailed(ctx context.Context, action upvotes.Action, raw []byte) error {
	if err := o.client.RPush(ctx, upvotes.FailedQueueName(action), raw).Err(); err != nil {
		return fmt.Errorf("rpush %s: %w", upvotes.FailedQueueName(action), err)
	}
	return nil
}

func (o *Outbox) FailedLen(ctx context.Context, action upvotes.Action) (int64, error) {
	n, err := o.client.LLen(ctx, upvotes.FailedQueueName(action)).Result()
	if err != nil {
		return 0, fmt.Errorf("llen %s: %w", upvotes.FailedQueueName(action), err)
	}
	return n, nil
}

// ReplayFailed moves dead letters back to the tail of the live list one at a
// time, so an interrupted replay never loses or duplicates an item.
func (o *Outbox) ReplayFailed(ctx context.Context, action upvotes.Action, max int) (int, error) {
	src, dst := upvotes.FailedQueueName(action), upvotes.QueueName(action)
	moved := 0
	for moved < max {
		err := o.client.LMove(ctx, src, dst, "LEFT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return moved, fmt.Errorf("lmove %s -> %s: %w", src, dst, err)
		}
		moved++
	}
	return moved, nil
}

var _ upvotes.Outbox = (*Outbox)(nil)
