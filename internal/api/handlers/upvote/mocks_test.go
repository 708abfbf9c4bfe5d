package upvote

import (
	"context"
	"sync"

	"Linkboard/internal/core/upvotes"
)

// mockUpvoteService implements upvotes.Service for testing
type mockUpvoteService struct {
	toggleFunc   func(ctx context.Context, userID, resourceID string) (*upvotes.ToggleResult, error)
	enqueueFunc  func(ctx context.Context, raw []byte) (*upvotes.Operation, error)
	countFunc    func(ctx context.Context, resourceID string) (int64, error)
	hasVotedFunc func(ctx context.Context, userID, resourceID string) (bool, error)
}

func (m *mockUpvoteService) Toggle(ctx context.Context, userID, resourceID string) (*upvotes.ToggleResult, error) {
	if m.toggleFunc != nil {
		return m.toggleFunc(ctx, userID, resourceID)
	}
	return &upvotes.ToggleResult{ResourceID: resourceID, Action: "added", Count: 1}, nil
}

func (m *mockUpvoteService) Enqueue(ctx context.Context, raw []byte) (*upvotes.Operation, error) {
	if m.enqueueFunc != nil {
		return m.enqueueFunc(ctx, raw)
	}
	op, err := upvotes.ParseOperation(raw)
	if err != nil {
		return nil, err
	}
	return &op, nil
}

func (m *mockUpvoteService) Count(ctx context.Context, resourceID string) (int64, error) {
	if m.countFunc != nil {
		return m.countFunc(ctx, resourceID)
	}
	return 0, nil
}

func (m *mockUpvoteService) Counts(ctx context.Context, resourceIDs []string) (map[string]int64, error) {
	return map[string]int64{}, nil
}

func (m *mockUpvoteService) HasVoted(ctx context.Context, userID, resourceID string) (bool, error) {
	if m.hasVotedFunc != nil {
		return m.hasVotedFunc(ctx, userID, resourceID)
	}
	return false, nil
}

type mockProcessor struct {
	result *upvotes.BatchResult
	err    error
}

func (m *mockProcessor) Run(ctx context.Context) (*upvotes.BatchResult, error) {
	return m.result, m.err
}

type mockReconciler struct {
	result *upvotes.ReconcileResult
	err    error
}

func (m *mockReconciler) Run(ctx context.Context) (*upvotes.ReconcileResult, error) {
	return m.result, m.err
}

// chanBroadcaster hands out subscriptions backed by plain channels
type chanBroadcaster struct {
	mu   sync.Mutex
	subs []*chanSubscription
	err  error
}

func (b *chanBroadcaster) Publish(ctx context.Context, event upvotes.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs {
		select {
		case s.events <- event:
		default:
		}
	}
	return nil
}

func (b *chanBroadcaster) Subscribe(ctx context.Context) (upvotes.Subscription, error) {
	if b.err != nil {
		return nil, b.err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	s := &chanSubscription{events: make(chan upvotes.Event, 8), closed: make(chan struct{})}
	b.subs = append(b.subs, s)
	return s, nil
}

func (b *chanBroadcaster) subscribers() []*chanSubscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*chanSubscription(nil), b.subs...)
}

type chanSubscription struct {
	events chan upvotes.Event
	once   sync.Once
	closed chan struct{}
}

func (s *chanSubscription) Events() <-chan upvotes.Event { return s.events }

func (s *chanSubscription) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}
