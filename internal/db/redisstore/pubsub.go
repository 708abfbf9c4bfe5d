package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	redis "github.com/redis/go-redis/v9"

	"Linkboard/internal/core/upvotes"
)

// Broadcaster implements upvotes.Broadcaster on Redis pub/sub
type Broadcaster struct {
	client  redis.UniversalClient
	channel string
	logger  *slog.Logger
}

// NewBroadcaster creates a broadcaster on the upvote events channel
func NewBroadcaster(client redis.UniversalClient, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{client: client, channel: upvotes.EventsChannel, logger: logger}
}

func (b *Broadcaster) Publish(ctx context.Context, event upvotes.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", b.channel, err)
	}
	return nil
}

// Subscribe opens a dedicated subscriber connection. The subscription ends
// when Close is called or ctx is cancelled.
func (b *Broadcaster) Subscribe(ctx context.Context) (upvotes.Subscription, error) {
	ps := b.client.Subscribe(ctx, b.channel)
	// Wait for the subscribe confirmation so no event published after this
	// call returns is missed
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	sub := &subscription{
		ps:     ps,
		events: make(chan upvotes.Event, 64),
		done:   make(chan struct{}),
		logger: b.logger,
	}
	go sub.run(ctx)
	return sub, nil
}

type subscription struct {
	ps     *redis.PubSub
	events chan upvotes.Event
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

func (s *subscription) Events() <-chan upvotes.Event {
	return s.events
}

// Close releases the subscriber connection. Safe to call more than once.
func (s *subscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}

func (s *subscription) run(ctx context.Context) {
	defer close(s.events)
	messages := s.ps.Channel()
	for {
		select {
		case <-ctx.Done():
			_ = s.Close()
			return
		case <-s.done:
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			var event upvotes.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				s.logger.Warn("dropping malformed upvote event",
					"payload", msg.Payload,
					"error", err)
				continue
			}
			select {
			case s.events <- event:
			case <-s.done:
				return
			case <-ctx.Done():
				_ = s.Close()
				return
			}
		}
	}
}

var _ upvotes.Broadcaster = (*Broadcaster)(nil)
