package upvotes

import (
	"context"
	"fmt"
	"log/slog"

	"Linkboard/internal/metrics"
)

// Reconciler overwrites cached counters with the durable count.
//
// Counters drift when a user flag expires while its vote fact is still in the
// log (the next toggle counts as an add) or when an enqueue is lost after the
// counter moved. Running only against an empty outbox means every vote fact the
// counters reflect has been applied, so the durable count is the truth.
//
// Corrections are compare-and-set against the value read, so a toggle that
// moves a counter mid-pass is never overwritten; that counter is skipped and
// picked up by the next pass. A toggle that has bumped its counter but not
// yet enqueued when the pass starts is indistinguishable from drift, so
// schedule passes for quiet periods.
type Reconciler struct {
	counters CounterStore
	scanner  CounterScanner
	outbox   Outbox
	repo     Repository
	logger   *slog.Logger
}

// NewReconciler creates a counter reconciler
func NewReconciler(counters CounterStore, scanner CounterScanner, outbox Outbox, repo Repository, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		counters: counters,
		scanner:  scanner,
		outbox:   outbox,
		repo:     repo,
		logger:   logger,
	}
}

// ReconcileResult summarises one reconciliation pass
type ReconcileResult struct {
	Scanned   int `json:"scanned"`
	Corrected int `json:"corrected"`
	// Skipped counts counters a concurrent toggle moved before correction
	Skipped int `json:"skipped"`
}

// Run corrects every cached counter. Returns ErrBacklogPending while either
// outbox list still holds operations.
func (r *Reconciler) Run(ctx context.Context) (*ReconcileResult, error) {
	for _, action := range []Action{ActionRemove, ActionAdd} {
		n, err := r.outbox.Len(ctx, action)
		if err != nil {
			return nil, fmt.Errorf("failed to read outbox length: %w", err)
		}
		if n > 0 {
			return nil, ErrBacklogPending
		}
	}

	ids, err := r.scanner.ScanCounterResources(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to scan counters: %w", err)
	}
	result := &ReconcileResult{Scanned: len(ids)}
	if len(ids) == 0 {
		return result, nil
	}

	cached, err := r.counters.GetCounts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to read upvote counts: %w", err)
	}
	durable, err := r.repo.CountsByResource(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to count upvotes: %w", err)
	}

	for _, id := range ids {
		want := durable[id]
		got, ok := cached[id]
		if !ok || got == want {
			// Expired between scan and read; the next cold start reseeds it
			continue
		}
		swapped, err := r.counters.CompareAndSetCount(ctx, id, got, want)
		if err != nil {
			r.logger.Warn("failed to correct upvote count",
				"resource", id,
				"error", err)
			continue
		}
		if !swapped {
			r.logger.Debug("upvote count moved during reconcile, skipping",
				"resource", id)
			result.Skipped++
			continue
		}
		r.logger.Info("upvote count corrected",
			"resource", id,
			"cached", got,
			"durable", want)
		result.Corrected++
		metrics.UpvoteReconciled.Inc()
	}
	return result, nil
}
