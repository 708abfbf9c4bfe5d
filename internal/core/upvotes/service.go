package upvotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"Linkboard/internal/core/pagecache"
	"Linkboard/internal/metrics"
)

// upvoteService implements Service on top of the fast counter store and outbox
type upvoteService struct {
	counters    CounterStore
	outbox      Outbox
	repo        Repository
	broadcaster Broadcaster
	invalidator Invalidator
	scheduler   *Scheduler
	logger      *slog.Logger
}

// Deps groups the collaborators of the upvote service
type Deps struct {
	Counters    CounterStore
	Outbox      Outbox
	Repo        Repository
	Broadcaster Broadcaster
	Invalidator Invalidator
	Scheduler   *Scheduler
}

// NewService creates a new upvote service instance
func NewService(deps Deps, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &upvoteService{
		counters:    deps.Counters,
		outbox:      deps.Outbox,
		repo:        deps.Repo,
		broadcaster: deps.Broadcaster,
		invalidator: deps.Invalidator,
		scheduler:   deps.Scheduler,
		logger:      logger,
	}
}

// maxToggleAttempts bounds the flag flip loop when the same user toggles concurrently
const maxToggleAttempts = 4

// Toggle adds or removes the caller's upvote.
//
// The branch is decided by the flag write itself: a DEL that removed the flag
// is a remove, a SET NX that created it is an add. Two concurrent toggles from
// one user therefore pair up as one add and one remove, never two adds.
// The add increments before it claims the flag, so a remove can only
// decrement a counter that already holds the matching increment.
//
// The counter mutation is the commit point: once it succeeds the call succeeds,
// and enqueue, publish, invalidation and scheduling each run in their own
// failure boundary. A lost enqueue leaves the counter ahead of the vote log
// until the reconciler corrects it.
func (s *upvoteService) Toggle(ctx context.Context, userID, resourceID string) (*ToggleResult, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	if resourceID == "" {
		return nil, ErrResourceNotFound
	}
	resourceID = CanonicalResourceID(resourceID)

	if err := s.ensureResource(ctx, resourceID); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxToggleAttempts; attempt++ {
		cleared, err := s.counters.ClearVoted(ctx, userID, resourceID)
		if err != nil {
			return nil, fmt.Errorf("failed to clear vote flag: %w", err)
		}
		if cleared {
			count, err := s.removeVote(ctx, resourceID)
			if err != nil {
				return nil, err
			}
			return s.commit(ctx, userID, resourceID, ActionRemove, count), nil
		}

		count, claimed, err := s.addVote(ctx, userID, resourceID)
		if err != nil {
			return nil, err
		}
		if claimed {
			return s.commit(ctx, userID, resourceID, ActionAdd, count), nil
		}
		// Another toggle from this user set the flag between our DEL and SET NX
	}

	s.logger.Warn("upvote toggle contended",
		"user", userID,
		"resource", resourceID,
		"attempts", maxToggleAttempts)
	return nil, ErrToggleContended
}

func (s *upvoteService) commit(ctx context.Context, userID, resourceID string, action Action, count int64) *ToggleResult {
	result := &ToggleResult{ResourceID: resourceID, Count: count, Action: ResultAdded}
	if action == ActionRemove {
		result.Action = ResultRemoved
	}
	metrics.UpvoteToggles.WithLabelValues(result.Action).Inc()

	s.afterToggle(ctx, NewOperation(userID, resourceID, action), result)
	return result
}

// removeVote decrements after the flag was released, clamping underflow to zero
func (s *upvoteService) removeVote(ctx context.Context, resourceID string) (int64, error) {
	// Seed first so a cold counter decrements from the durable count, not from zero
	if _, err := s.seedFromLog(ctx, resourceID); err != nil {
		return 0, err
	}

	count, err := s.counters.DecrCount(ctx, resourceID)
	if err != nil {
		return 0, fmt.Errorf("failed to decrement upvote count: %w", err)
	}
	if count < 0 {
		s.logger.Warn("upvote count underflow, clamping to zero",
			"resource", resourceID,
			"count", count)
		if err := s.counters.SetCount(ctx, resourceID, 0); err != nil {
			return 0, fmt.Errorf("failed to clamp upvote count: %w", err)
		}
		count = 0
	}
	return count, nil
}

// addVote increments, cold-starting the counter from the log, then claims the
// flag with SET NX. When the claim loses, the increment is undone and claimed
// is false.
func (s *upvoteService) addVote(ctx context.Context, userID, resourceID string) (count int64, claimed bool, err error) {
	if _, err := s.seedFromLog(ctx, resourceID); err != nil {
		return 0, false, err
	}

	count, err = s.counters.IncrCount(ctx, resourceID)
	if err != nil {
		return 0, false, fmt.Errorf("failed to increment upvote count: %w", err)
	}

	claimed, err = s.counters.SetVoted(ctx, userID, resourceID)
	if err == nil && claimed {
		return count, true, nil
	}
	if _, undoErr := s.counters.DecrCount(ctx, resourceID); undoErr != nil {
		s.logger.Error("failed to undo upvote increment",
			"user", userID,
			"resource", resourceID,
			"error", undoErr)
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to set vote flag: %w", err)
	}
	return 0, false, nil
}

// seedFromLog stores COUNT(vote facts) as the counter base when no counter is cached.
// SeedCount is set-if-absent, so concurrent cold starts agree on one base and
// every caller's delta is still applied by its own atomic INCR/DECR.
func (s *upvoteService) seedFromLog(ctx context.Context, resourceID string) (bool, error) {
	if _, err := s.counters.GetCount(ctx, resourceID); err == nil {
		return false, nil
	} else if !errors.Is(err, ErrCounterMiss) {
		return false, fmt.Errorf("failed to read upvote count: %w", err)
	}

	durable, err := s.repo.CountByResource(ctx, resourceID)
	if err != nil {
		return false, fmt.Errorf("failed to count upvotes: %w", err)
	}
	seeded, err := s.counters.SeedCount(ctx, resourceID, durable)
	if err != nil {
		return false, fmt.Errorf("failed to seed upvote count: %w", err)
	}
	if seeded {
		s.logger.Debug("upvote counter cold start",
			"resource", resourceID,
			"count", durable)
	}
	return seeded, nil
}

// ensureResource checks the cached existence flag, falling back to the database
func (s *upvoteService) ensureResource(ctx context.Context, resourceID string) error {
	known, err := s.counters.ResourceKnown(ctx, resourceID)
	if err != nil {
		// The flag is only an optimisation; fall through to the database
		s.logger.Warn("resource existence cache unavailable",
			"resource", resourceID,
			"error", err)
	}
	if known {
		return nil
	}

	exists, err := s.repo.ResourceExists(ctx, resourceID)
	if err != nil {
		return fmt.Errorf("failed to check resource: %w", err)
	}
	if !exists {
		return ErrResourceNotFound
	}
	if err := s.counters.MarkResourceKnown(ctx, resourceID); err != nil {
		s.logger.Warn("failed to cache resource existence",
			"resource", resourceID,
			"error", err)
	}
	return nil
}

// afterToggle runs the ordered post-conditions of a toggle. Each step is
// isolated: a failure is logged and counted, and later steps still run.
func (s *upvoteService) afterToggle(ctx context.Context, op Operation, result *ToggleResult) {
	steps := []struct {
		name string
		run  func(context.Context) error
	}{
		{"enqueue", func(ctx context.Context) error { return s.enqueue(ctx, op) }},
		{"publish", func(ctx context.Context) error {
			return s.broadcaster.Publish(ctx, Event{
				ResourceID: result.ResourceID,
				Count:      result.Count,
				Action:     result.Action,
				Timestamp:  time.Now().UnixMilli(),
			})
		}},
		{"invalidate", func(ctx context.Context) error { return s.invalidate(ctx, op.UserID, op.ResourceID) }},
		{"schedule", func(ctx context.Context) error {
			_, err := s.scheduler.Arm(ctx)
			return err
		}},
	}

	for _, step := range steps {
		if err := step.run(ctx); err != nil {
			metrics.UpvoteSideEffectFailures.WithLabelValues(step.name).Inc()
			s.logger.Error("upvote toggle side effect failed",
				"step", step.name,
				"user", op.UserID,
				"resource", op.ResourceID,
				"action", op.Action,
				"error", err)
		}
	}
}

func (s *upvoteService) enqueue(ctx context.Context, op Operation) error {
	raw, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("failed to marshal operation: %w", err)
	}
	return s.outbox.Push(ctx, op.Action, raw)
}

func (s *upvoteService) invalidate(ctx context.Context, userID, resourceID string) error {
	var errs []error
	patterns := []string{
		pagecache.ListPattern(),
		pagecache.UserPattern(userID),
		pagecache.DetailPattern(resourceID),
	}
	for _, pattern := range patterns {
		if _, err := s.invalidator.InvalidatePattern(ctx, pattern); err != nil {
			errs = append(errs, fmt.Errorf("pattern %s: %w", pattern, err))
		}
	}
	return errors.Join(errs...)
}

// Enqueue validates one raw operation and appends it to its outbox list
func (s *upvoteService) Enqueue(ctx context.Context, raw []byte) (*Operation, error) {
	op, err := ParseOperation(raw)
	if err != nil {
		return nil, err
	}
	if op.Timestamp.UnixMilli() == 0 {
		op.Timestamp = time.Now().UTC()
	}
	if err := s.enqueue(ctx, op); err != nil {
		return nil, fmt.Errorf("failed to enqueue operation: %w", err)
	}
	if _, err := s.scheduler.Arm(ctx); err != nil {
		s.logger.Warn("failed to arm upvote batch scheduler",
			"error", err)
	}
	return &op, nil
}

// Count returns the cached count, cold-starting it from the vote log
func (s *upvoteService) Count(ctx context.Context, resourceID string) (int64, error) {
	resourceID = CanonicalResourceID(resourceID)
	count, err := s.counters.GetCount(ctx, resourceID)
	if err == nil {
		return clamp(count), nil
	}
	if !errors.Is(err, ErrCounterMiss) {
		return 0, fmt.Errorf("failed to read upvote count: %w", err)
	}

	if _, err := s.seedFromLog(ctx, resourceID); err != nil {
		return 0, err
	}
	count, err = s.counters.GetCount(ctx, resourceID)
	if err != nil {
		return 0, fmt.Errorf("failed to read upvote count: %w", err)
	}
	return clamp(count), nil
}

// Counts returns counts for many resources with one MGET and one COUNT query for misses.
// The result is keyed by the ids as passed in.
func (s *upvoteService) Counts(ctx context.Context, resourceIDs []string) (map[string]int64, error) {
	result := make(map[string]int64, len(resourceIDs))
	if len(resourceIDs) == 0 {
		return result, nil
	}

	canonical := make([]string, len(resourceIDs))
	for i, id := range resourceIDs {
		canonical[i] = CanonicalResourceID(id)
	}

	cached, err := s.counters.GetCounts(ctx, canonical)
	if err != nil {
		return nil, fmt.Errorf("failed to read upvote counts: %w", err)
	}

	var missing []string
	for i, id := range canonical {
		if c, ok := cached[id]; ok {
			result[resourceIDs[i]] = clamp(c)
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return result, nil
	}

	durable, err := s.repo.CountsByResource(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("failed to count upvotes: %w", err)
	}
	for _, id := range missing {
		if _, err := s.counters.SeedCount(ctx, id, durable[id]); err != nil {
			s.logger.Warn("failed to seed upvote count",
				"resource", id,
				"error", err)
		}
	}
	for i, id := range canonical {
		if _, ok := cached[id]; !ok {
			result[resourceIDs[i]] = durable[id]
		}
	}
	return result, nil
}

// HasVoted reports the cached vote flag
func (s *upvoteService) HasVoted(ctx context.Context, userID, resourceID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	return s.counters.HasVoted(ctx, userID, CanonicalResourceID(resourceID))
}

func clamp(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}
