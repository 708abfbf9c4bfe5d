// cmd/reconcile-upvotes/main.go
// Realigns cached upvote counters with the durable vote log
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"os"
	"time"

	_ "github.com/lib/pq"

	"Linkboard/internal/config"
	"Linkboard/internal/core/upvotes"
	postgresRepo "Linkboard/internal/db/postgres"
	"Linkboard/internal/db/redisstore"
)

// Usage:
//
//	go run ./cmd/reconcile-upvotes [-timeout 5m]
//
// Reads DATABASE_URL and REDIS_URL. Refuses to run while the outbox still
// holds pending operations, since those are already reflected in the
// counters but not yet in the vote log.
func main() {
	timeout := flag.Duration("timeout", 5*time.Minute, "abort the pass after this long")
	flag.Parse()

	cfg := config.ConfigFromEnv()
	logger := cfg.Logger()

	if cfg.DatabaseURL == "" || cfg.RedisURL == "" {
		logger.Error("DATABASE_URL and REDIS_URL are required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := redisstore.Connect(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()

	counters := redisstore.NewCounterStore(rdb, redisstore.CounterOptions{FlagTTL: cfg.UpvoteFlagTTL})
	reconciler := upvotes.NewReconciler(counters, counters, redisstore.NewOutbox(rdb),
		postgresRepo.NewUpvoteRepository(db), logger)

	result, err := reconciler.Run(ctx)
	if errors.Is(err, upvotes.ErrBacklogPending) {
		logger.Warn("outbox not drained, try again after the next batch pass")
		os.Exit(2)
	}
	if err != nil {
		logger.Error("reconcile failed", "error", err)
		os.Exit(1)
	}

	logger.Info("reconcile complete", "scanned", result.Scanned, "corrected", result.Corrected, "skipped", result.Skipped)
}
