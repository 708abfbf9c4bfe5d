package upvotes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"Linkboard/internal/metrics"
)

// DefaultBatchSize bounds how many operations per action one pass drains
const DefaultBatchSize = 50

// Processor applies queued operations to the durable vote log
type Processor struct {
	outbox    Outbox
	repo      Repository
	flags     FlagReader
	scheduler *Scheduler
	batchSize int
	logger    *slog.Logger
}

// NewProcessor creates a batch processor. batchSize <= 0 uses DefaultBatchSize.
// flags resolves an add and a remove of the same pair seen in one pass; when
// nil, operation timestamps decide.
func NewProcessor(outbox Outbox, repo Repository, flags FlagReader, scheduler *Scheduler, batchSize int, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Processor{
		outbox:    outbox,
		repo:      repo,
		flags:     flags,
		scheduler: scheduler,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Run performs one pass: removes first, then adds, each bounded by the batch size.
// A failing item is dead-lettered and never aborts the pass. When backlog remains
// afterwards a follow-up job is scheduled.
func (p *Processor) Run(ctx context.Context) (*BatchResult, error) {
	start := time.Now()
	defer func() {
		metrics.UpvoteBatchDuration.Observe(time.Since(start).Seconds())
	}()

	result := &BatchResult{}
	state := &pass{retracted: make(map[pairKey]time.Time)}

	// Removes drain first. An add for a pair already retracted in this pass
	// lands only if the user's vote flag is still set.
	for _, action := range []Action{ActionRemove, ActionAdd} {
		if err := p.drain(ctx, action, state, result); err != nil {
			return result, err
		}
	}

	var remaining int64
	for _, action := range []Action{ActionRemove, ActionAdd} {
		n, err := p.outbox.Len(ctx, action)
		if err != nil {
			return result, fmt.Errorf("failed to read outbox length: %w", err)
		}
		metrics.UpvoteOutboxBacklog.WithLabelValues(string(action)).Set(float64(n))
		remaining += n
	}
	result.Remaining = remaining

	if remaining > 0 {
		if err := p.scheduler.Rearm(ctx); err != nil {
			// The lock still decays; the next toggle re-arms
			p.logger.Error("failed to re-arm upvote batch job",
				"remaining", remaining,
				"error", err)
		} else {
			result.Rearmed = true
		}
	}

	p.logger.Info("upvote batch processed",
		"processed", result.Processed,
		"duplicates", result.Duplicates,
		"failed", result.Failed,
		"remaining", result.Remaining,
		"rearmed", result.Rearmed,
		"duration", time.Since(start))
	return result, nil
}

type pairKey struct {
	userID     string
	resourceID string
}

// pass holds per-run state shared between the remove and add drains
type pass struct {
	retracted map[pairKey]time.Time
}

func (p *Processor) drain(ctx context.Context, action Action, ps *pass, result *BatchResult) error {
	for i := 0; i < p.batchSize; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		raw, ok, err := p.outbox.Pop(ctx, action)
		if err != nil {
			return fmt.Errorf("failed to pop %s operation: %w", action, err)
		}
		if !ok {
			return nil
		}

		duplicate, err := p.apply(ctx, action, ps, raw)
		switch {
		case err == nil && duplicate:
			result.Duplicates++
			result.Processed++
			metrics.UpvoteBatchOperations.WithLabelValues(string(action), "duplicate").Inc()
		case err == nil:
			result.Processed++
			metrics.UpvoteBatchOperations.WithLabelValues(string(action), "applied").Inc()
		default:
			result.Failed++
			outcome := "failed"
			if errors.Is(err, ErrMalformedOperation) {
				outcome = "malformed"
			}
			metrics.UpvoteBatchOperations.WithLabelValues(string(action), outcome).Inc()
			p.deadLetter(ctx, action, raw, err)
		}
	}
	return nil
}

// apply writes one raw operation. duplicate is true for an add whose vote fact already existed.
func (p *Processor) apply(ctx context.Context, queue Action, ps *pass, raw []byte) (duplicate bool, err error) {
	op, err := ParseOperation(raw)
	if err != nil {
		return false, err
	}
	if op.Action != queue {
		return false, fmt.Errorf("%w: %s operation found on %s queue", ErrMalformedOperation, op.Action, queue)
	}

	key := pairKey{userID: op.UserID, resourceID: op.ResourceID}
	switch op.Action {
	case ActionAdd:
		if removedAt, ok := ps.retracted[key]; ok && p.superseded(ctx, op, removedAt) {
			p.logger.Debug("skipping superseded upvote add",
				"user", op.UserID,
				"resource", op.ResourceID)
			return true, nil
		}
		exists, err := p.repo.Exists(ctx, op.UserID, op.ResourceID)
		if err != nil {
			return false, fmt.Errorf("failed to check vote: %w", err)
		}
		if exists {
			return true, nil
		}
		inserted, err := p.repo.Insert(ctx, op.UserID, op.ResourceID)
		if err != nil {
			return false, fmt.Errorf("failed to insert vote: %w", err)
		}
		return !inserted, nil
	default:
		if err := p.repo.Delete(ctx, op.UserID, op.ResourceID); err != nil {
			return false, fmt.Errorf("failed to delete vote: %w", err)
		}
		if prev, ok := ps.retracted[key]; !ok || op.Timestamp.After(prev) {
			ps.retracted[key] = op.Timestamp
		}
		return false, nil
	}
}

// superseded decides an add against a remove of the same pair from this pass.
// Concurrent toggles by one user are stamped outside the flag flip and often
// share a millisecond, so the flag, which the flip ordered, is the tiebreaker
// of record. Timestamps are the fallback when the flag cannot be read.
func (p *Processor) superseded(ctx context.Context, op Operation, removedAt time.Time) bool {
	if p.flags != nil {
		voted, err := p.flags.HasVoted(ctx, op.UserID, op.ResourceID)
		if err == nil {
			return !voted
		}
		p.logger.Warn("vote flag unavailable, ordering by timestamp",
			"user", op.UserID,
			"resource", op.ResourceID,
			"error", err)
	}
	return !op.Timestamp.After(removedAt)
}

func (p *Processor) deadLetter(ctx context.Context, action Action, raw []byte, cause error) {
	p.logger.Warn("dead-lettering upvote operation",
		"action", action,
		"payload", string(raw),
		"error", cause)
	if err := p.outbox.PushFailed(ctx, action, raw); err != nil {
		// Nothing further to fall back to; the payload is preserved in the log line above
		p.logger.Error("failed to dead-letter upvote operation",
			"action", action,
			"payload", string(raw),
			"error", err)
	}
}
