// Package metrics holds the Prometheus collectors for the upvote pipeline.
// Collectors are registered on the default registry and exposed at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UpvoteToggles counts toggles by outcome ("added", "removed")
	UpvoteToggles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upvote_toggles_total",
			Help: "Total number of upvote toggles by outcome",
		},
		[]string{"action"},
	)

	// UpvoteSideEffectFailures counts post-mutation steps that failed and were absorbed
	UpvoteSideEffectFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upvote_side_effect_failures_total",
			Help: "Post-mutation toggle steps that failed (enqueue, publish, invalidate, schedule)",
		},
		[]string{"step"},
	)

	// UpvoteBatchOperations counts processed outbox operations by action and outcome
	UpvoteBatchOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upvote_batch_operations_total",
			Help: "Outbox operations applied by the batch processor",
		},
		[]string{"action", "outcome"}, // outcome: applied, duplicate, failed, malformed
	)

	// UpvoteBatchDuration observes one processor pass
	UpvoteBatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "upvote_batch_duration_seconds",
			Help:    "Duration of a batch processor pass",
			Buckets: prometheus.DefBuckets,
		},
	)

	// UpvoteOutboxBacklog is the live outbox length observed after a pass
	UpvoteOutboxBacklog = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "upvote_outbox_backlog",
			Help: "Pending operations in the upvote outbox after the last pass",
		},
		[]string{"action"},
	)

	// UpvoteSchedulerArms counts dispatched flush triggers
	UpvoteSchedulerArms = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upvote_scheduler_arms_total",
			Help: "Flush triggers dispatched by the batch scheduler",
		},
		[]string{"kind"}, // initial, followup
	)

	// UpvoteReconciled counts counters overwritten by the reconciler
	UpvoteReconciled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "upvote_reconciled_counters_total",
			Help: "Counter entries corrected from the durable vote log",
		},
	)

	// CacheInvalidatedKeys counts cached pages deleted by pattern invalidation
	CacheInvalidatedKeys = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_invalidated_keys_total",
			Help: "Cached page keys deleted by pattern invalidation",
		},
	)

	// CacheLookups counts page cache lookups by result
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Resource page cache lookups",
		},
		[]string{"cache_type", "result"}, // hit, miss
	)

	// LiveSubscribers is the number of open live-update connections
	LiveSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "upvote_live_subscribers",
			Help: "Open live upvote stream connections",
		},
	)
)
