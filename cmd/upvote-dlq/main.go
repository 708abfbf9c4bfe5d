// cmd/upvote-dlq/main.go
// Inspects and replays dead-lettered upvote operations
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"Linkboard/internal/config"
	"Linkboard/internal/core/upvotes"
	"Linkboard/internal/db/redisstore"
)

// Usage:
//
//	go run ./cmd/upvote-dlq            # print dead-letter depth per action
//	go run ./cmd/upvote-dlq -replay 100
//
// Replayed operations go back onto the live outbox and are picked up by the
// next batch pass. Reads REDIS_URL.
func main() {
	replay := flag.Int("replay", 0, "move up to N dead letters per action back onto the outbox")
	flag.Parse()

	cfg := config.ConfigFromEnv()
	logger := cfg.Logger()

	if cfg.RedisURL == "" {
		logger.Error("REDIS_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	rdb, err := redisstore.Connect(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()

	if err := run(ctx, redisstore.NewOutbox(rdb), *replay, logger); err != nil {
		logger.Error("dead-letter command failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, outbox upvotes.Outbox, replay int, logger *slog.Logger) error {
	// Removes first, matching the processor's drain order
	for _, action := range []upvotes.Action{upvotes.ActionRemove, upvotes.ActionAdd} {
		failed, err := outbox.FailedLen(ctx, action)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", upvotes.FailedQueueName(action), err)
		}
		logger.Info("dead letters", "queue", upvotes.FailedQueueName(action), "count", failed)

		if replay <= 0 || failed == 0 {
			continue
		}
		moved, err := outbox.ReplayFailed(ctx, action, replay)
		if err != nil {
			return fmt.Errorf("failed to replay %s: %w", upvotes.FailedQueueName(action), err)
		}
		logger.Info("replayed dead letters", "queue", upvotes.QueueName(action), "moved", moved)
	}
	return nil
}
