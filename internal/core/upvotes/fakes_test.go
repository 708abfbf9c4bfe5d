package upvotes

import (
	"context"
	"errors"
	"sync"
	"time"
)

var errStoreDown = errors.New("store unavailable")

// memStore is an in-memory CounterStore, CounterScanner, Outbox and SchedulerLock
type memStore struct {
	mu       sync.Mutex
	known    map[string]bool
	flags    map[string]bool
	counts   map[string]int64
	queues   map[string][][]byte
	locked   bool
	lockTTL  time.Duration
	pushErr  error
	countErr error
}

func newMemStore() *memStore {
	return &memStore{
		known:  map[string]bool{},
		flags:  map[string]bool{},
		counts: map[string]int64{},
		queues: map[string][][]byte{},
	}
}

func (m *memStore) ResourceKnown(_ context.Context, rid string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.known[rid], nil
}

func (m *memStore) MarkResourceKnown(_ context.Context, rid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.known[rid] = true
	return nil
}

func (m *memStore) HasVoted(_ context.Context, uid, rid string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flags[UserFlagKey(uid, rid)], nil
}

func (m *memStore) SetVoted(_ context.Context, uid, rid string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := UserFlagKey(uid, rid)
	if m.flags[key] {
		return false, nil
	}
	m.flags[key] = true
	return true, nil
}

func (m *memStore) ClearVoted(_ context.Context, uid, rid string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := UserFlagKey(uid, rid)
	if !m.flags[key] {
		return false, nil
	}
	delete(m.flags, key)
	return true, nil
}

func (m *memStore) GetCount(_ context.Context, rid string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.countErr != nil {
		return 0, m.countErr
	}
	c, ok := m.counts[rid]
	if !ok {
		return 0, ErrCounterMiss
	}
	return c, nil
}

func (m *memStore) GetCounts(_ context.Context, rids []string) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]int64{}
	for _, id := range rids {
		if c, ok := m.counts[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

func (m *memStore) SeedCount(_ context.Context, rid string, value int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.counts[rid]; ok {
		return false, nil
	}
	m.counts[rid] = value
	return true, nil
}

func (m *memStore) IncrCount(_ context.Context, rid string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[rid]++
	return m.counts[rid], nil
}

func (m *memStore) DecrCount(_ context.Context, rid string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[rid]--
	return m.counts[rid], nil
}

func (m *memStore) SetCount(_ context.Context, rid string, value int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[rid] = value
	return nil
}

func (m *memStore) CompareAndSetCount(_ context.Context, rid string, expected, value int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.counts[rid]
	if !ok || cur != expected {
		return false, nil
	}
	m.counts[rid] = value
	return true, nil
}

func (m *memStore) ScanCounterResources(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.counts))
	for id := range m.counts {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *memStore) Push(_ context.Context, a Action, raw []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pushErr != nil {
		return m.pushErr
	}
	m.queues[QueueName(a)] = append(m.queues[QueueName(a)], raw)
	return nil
}

func (m *memStore) Pop(_ context.Context, a Action) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := m.queues[QueueName(a)]
	if len(q) == 0 {
		return nil, false, nil
	}
	m.queues[QueueName(a)] = q[1:]
	return q[0], true, nil
}

func (m *memStore) Len(_ context.Context, a Action) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.queues[QueueName(a)])), nil
}

func (m *memStore) PushFailed(_ context.Context, a Action, raw []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queues[FailedQueueName(a)] = append(m.queues[FailedQueueName(a)], raw)
	return nil
}

func (m *memStore) FailedLen(_ context.Context, a Action) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.queues[FailedQueueName(a)])), nil
}

func (m *memStore) ReplayFailed(_ context.Context, a Action, max int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for n < max && len(m.queues[FailedQueueName(a)]) > 0 {
		item := m.queues[FailedQueueName(a)][0]
		m.queues[FailedQueueName(a)] = m.queues[FailedQueueName(a)][1:]
		m.queues[QueueName(a)] = append(m.queues[QueueName(a)], item)
		n++
	}
	return n, nil
}

func (m *memStore) Acquire(_ context.Context, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locked {
		return false, nil
	}
	m.locked = true
	m.lockTTL = ttl
	return true, nil
}

func (m *memStore) Reset(_ context.Context, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locked = true
	m.lockTTL = ttl
	return nil
}

// expireLock simulates TTL decay of the scheduler lease
func (m *memStore) expireLock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locked = false
}

func (m *memStore) count(rid string) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.counts[rid]
	return c, ok
}

type scheduledCall struct {
	target string
	delay  time.Duration
}

type fakeDispatcher struct {
	mu    sync.Mutex
	calls []scheduledCall
	err   error
}

func (d *fakeDispatcher) Schedule(_ context.Context, target string, delay time.Duration, _ []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.calls = append(d.calls, scheduledCall{target: target, delay: delay})
	return nil
}

func (d *fakeDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (b *fakeBroadcaster) Publish(_ context.Context, e Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.events = append(b.events, e)
	return nil
}

func (b *fakeBroadcaster) Subscribe(context.Context) (Subscription, error) {
	return nil, errors.New("not supported")
}

type fakeInvalidator struct {
	mu       sync.Mutex
	patterns []string
	err      error
}

func (i *fakeInvalidator) InvalidatePattern(_ context.Context, pattern string) (int, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.err != nil {
		return 0, i.err
	}
	i.patterns = append(i.patterns, pattern)
	return 1, nil
}

// memRepo is an in-memory durable vote log
type memRepo struct {
	mu        sync.Mutex
	resources map[string]bool
	votes     map[[2]string]bool
	failFor   map[string]bool // resource ids whose writes fail
	lookups   int
}

func newMemRepo(resourceIDs ...string) *memRepo {
	r := &memRepo{
		resources: map[string]bool{},
		votes:     map[[2]string]bool{},
		failFor:   map[string]bool{},
	}
	for _, id := range resourceIDs {
		r.resources[id] = true
	}
	return r
}

func (r *memRepo) ResourceExists(_ context.Context, rid string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups++
	return r.resources[rid], nil
}

func (r *memRepo) Exists(_ context.Context, uid, rid string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failFor[rid] {
		return false, errStoreDown
	}
	return r.votes[[2]string{uid, rid}], nil
}

func (r *memRepo) Insert(_ context.Context, uid, rid string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failFor[rid] {
		return false, errStoreDown
	}
	k := [2]string{uid, rid}
	if r.votes[k] {
		return false, nil
	}
	r.votes[k] = true
	return true, nil
}

func (r *memRepo) Delete(_ context.Context, uid, rid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failFor[rid] {
		return errStoreDown
	}
	delete(r.votes, [2]string{uid, rid})
	return nil
}

func (r *memRepo) CountByResource(_ context.Context, rid string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k := range r.votes {
		if k[1] == rid {
			n++
		}
	}
	return n, nil
}

func (r *memRepo) CountsByResource(ctx context.Context, rids []string) (map[string]int64, error) {
	out := make(map[string]int64, len(rids))
	for _, id := range rids {
		n, _ := r.CountByResource(ctx, id)
		out[id] = n
	}
	return out, nil
}

func (r *memRepo) hasVote(uid, rid string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.votes[[2]string{uid, rid}]
}

// harness wires a service, scheduler and processor over shared fakes
type harness struct {
	store       *memStore
	repo        *memRepo
	dispatcher  *fakeDispatcher
	broadcaster *fakeBroadcaster
	invalidator *fakeInvalidator
	scheduler   *Scheduler
	service     Service
	processor   *Processor
}

func newHarness(resourceIDs ...string) *harness {
	h := &harness{
		store:       newMemStore(),
		repo:        newMemRepo(resourceIDs...),
		dispatcher:  &fakeDispatcher{},
		broadcaster: &fakeBroadcaster{},
		invalidator: &fakeInvalidator{},
	}
	h.scheduler = NewScheduler(h.store, h.dispatcher, DefaultSchedulerConfig("https://api.test"), nil)
	h.service = NewService(Deps{
		Counters:    h.store,
		Outbox:      h.store,
		Repo:        h.repo,
		Broadcaster: h.broadcaster,
		Invalidator: h.invalidator,
		Scheduler:   h.scheduler,
	}, nil)
	h.processor = NewProcessor(h.store, h.repo, h.store, h.scheduler, 0, nil)
	return h
}
