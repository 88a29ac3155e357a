package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/askdb/askdb/pkg/models"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "askdb:checkpoint:"

// RedisStore persists checkpoints in Redis so a suspended workflow can be
// resumed by any node. Expiry is delegated to Redis key TTLs.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore builds a Redis-backed store. A non-positive ttl falls back
// to DefaultTTL.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &RedisStore{client: client, ttl: ttl}
}

// Save serializes the state and stores it with the configured TTL.
func (s *RedisStore) Save(ctx context.Context, queryID string, state *models.QueryContext) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("serializing checkpoint %s: %w", queryID, err)
	}

	if err := s.client.Set(ctx, redisKeyPrefix+queryID, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("saving checkpoint %s: %w", queryID, err)
	}

	return nil
}

// Load fetches and deserializes the state, or ErrNotFound if the key is
// gone.
func (s *RedisStore) Load(ctx context.Context, queryID string) (*models.QueryContext, error) {
	payload, err := s.client.Get(ctx, redisKeyPrefix+queryID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("loading checkpoint %s: %w", queryID, err)
	}

	var state models.QueryContext
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, fmt.Errorf("deserializing checkpoint %s: %w", queryID, err)
	}

	return &state, nil
}

// Delete removes the checkpoint. Deleting a missing checkpoint is a no-op.
func (s *RedisStore) Delete(ctx context.Context, queryID string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+queryID).Err(); err != nil {
		return fmt.Errorf("deleting checkpoint %s: %w", queryID, err)
	}

	return nil
}
