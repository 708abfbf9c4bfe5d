package upvotes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"Linkboard/internal/metrics"
)

// Scheduler timing. The initial lock outlives the trigger delay so a second
// toggle inside the window cannot schedule a duplicate job.
const (
	DefaultInitialDelay   = 60 * time.Second
	DefaultInitialLockTTL = 70 * time.Second
	DefaultFollowUpDelay  = 5 * time.Second
	DefaultFollowUpTTL    = 15 * time.Second
)

// BatchJobPath is the internal endpoint the flush trigger is delivered to
const BatchJobPath = "/resource/upvote/job/batch"

// SchedulerConfig configures flush trigger timing
type SchedulerConfig struct {
	// BaseURL is the public origin the trigger service calls back (e.g. "https://api.example.com")
	BaseURL        string
	InitialDelay   time.Duration
	InitialLockTTL time.Duration
	FollowUpDelay  time.Duration
	FollowUpTTL    time.Duration
}

// DefaultSchedulerConfig returns the production timings
func DefaultSchedulerConfig(baseURL string) SchedulerConfig {
	return SchedulerConfig{
		BaseURL:        baseURL,
		InitialDelay:   DefaultInitialDelay,
		InitialLockTTL: DefaultInitialLockTTL,
		FollowUpDelay:  DefaultFollowUpDelay,
		FollowUpTTL:    DefaultFollowUpTTL,
	}
}

// Scheduler keeps at most one flush job pending by leasing SchedulerLockKey.
// The lease is never released explicitly; it decays via TTL, after which the
// next toggle may arm again.
type Scheduler struct {
	lock       SchedulerLock
	dispatcher Dispatcher
	cfg        SchedulerConfig
	logger     *slog.Logger
}

// NewScheduler creates a batch scheduler
func NewScheduler(lock SchedulerLock, dispatcher Dispatcher, cfg SchedulerConfig, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = DefaultInitialDelay
	}
	if cfg.InitialLockTTL <= cfg.InitialDelay {
		cfg.InitialLockTTL = cfg.InitialDelay + 10*time.Second
	}
	if cfg.FollowUpDelay <= 0 {
		cfg.FollowUpDelay = DefaultFollowUpDelay
	}
	if cfg.FollowUpTTL <= cfg.FollowUpDelay {
		cfg.FollowUpTTL = cfg.FollowUpDelay + 10*time.Second
	}
	return &Scheduler{lock: lock, dispatcher: dispatcher, cfg: cfg, logger: logger}
}

// Target is the absolute URL of the batch job endpoint
func (s *Scheduler) Target() string {
	return s.cfg.BaseURL + BatchJobPath
}

type triggerPayload struct {
	Kind      string `json:"kind"`
	Timestamp int64  `json:"timestamp"`
}

// Arm schedules a flush job unless one is already pending.
// Returns true when this call dispatched the trigger.
func (s *Scheduler) Arm(ctx context.Context) (bool, error) {
	acquired, err := s.lock.Acquire(ctx, s.cfg.InitialLockTTL)
	if err != nil {
		return false, fmt.Errorf("failed to acquire scheduler lock: %w", err)
	}
	if !acquired {
		return false, nil
	}

	// If dispatch fails the lease still holds until TTL expiry; the next toggle
	// after that re-arms. Staleness is bounded by InitialLockTTL.
	if err := s.dispatch(ctx, "initial", s.cfg.InitialDelay); err != nil {
		return false, err
	}
	s.logger.Debug("upvote batch job scheduled",
		"delay", s.cfg.InitialDelay,
		"lock_ttl", s.cfg.InitialLockTTL)
	return true, nil
}

// Rearm schedules a follow-up job while backlog remains
func (s *Scheduler) Rearm(ctx context.Context) error {
	if err := s.dispatch(ctx, "followup", s.cfg.FollowUpDelay); err != nil {
		return err
	}
	if err := s.lock.Reset(ctx, s.cfg.FollowUpTTL); err != nil {
		return fmt.Errorf("failed to reset scheduler lock: %w", err)
	}
	s.logger.Debug("upvote batch job re-armed",
		"delay", s.cfg.FollowUpDelay,
		"lock_ttl", s.cfg.FollowUpTTL)
	return nil
}

func (s *Scheduler) dispatch(ctx context.Context, kind string, delay time.Duration) error {
	payload, err := json.Marshal(triggerPayload{Kind: kind, Timestamp: time.Now().UnixMilli()})
	if err != nil {
		return fmt.Errorf("failed to marshal trigger payload: %w", err)
	}
	if err := s.dispatcher.Schedule(ctx, s.Target(), delay, payload); err != nil {
		return fmt.Errorf("failed to dispatch batch trigger: %w", err)
	}
	metrics.UpvoteSchedulerArms.WithLabelValues(kind).Inc()
	return nil
}
