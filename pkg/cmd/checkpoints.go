package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/askdb/askdb/pkg/checkpoint"
	"github.com/redis/go-redis/v9"
)

// NewCheckpointStore builds the confirmation checkpoint store. With a Redis
// URL, suspended queries survive restarts and can be resumed on any node;
// without one, a single-node in-memory store is used.
func NewCheckpointStore(ctx context.Context, logger *slog.Logger, redisURL string, ttl time.Duration) checkpoint.Store {
	if redisURL == "" {
		logger.InfoContext(ctx, "Using in-memory checkpoint store")

		return checkpoint.NewMemoryStore(ttl)
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		panic(fmt.Errorf("failed to parse redis url: %w", err))
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		panic(fmt.Errorf("failed to connect to redis: %w", err))
	}

	logger.InfoContext(ctx, "Using Redis checkpoint store")

	return checkpoint.NewRedisStore(client, ttl)
}
