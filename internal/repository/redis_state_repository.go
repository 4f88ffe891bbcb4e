package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"story-client/internal/models"
)

// Compile-time check to ensure redisStateRepository implements StateRepository.
var _ StateRepository = (*redisStateRepository)(nil)

type redisStateRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisStateRepository creates a Redis-backed StateRepository. The state
// is stored without a TTL: a session survives until an explicit reset.
func NewRedisStateRepository(client *redis.Client, logger *zap.Logger) StateRepository {
	return &redisStateRepository{
		client: client,
		logger: logger.Named("RedisStateRepo"),
	}
}

// Save serializes the whole state and writes it under the fixed key. SET is
// atomic on the Redis side, so a reader never observes a partial state.
func (r *redisStateRepository) Save(ctx context.Context, state *models.ConversationState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		r.logger.Error("Failed to marshal conversation state", zap.Error(err))
		return fmt.Errorf("failed to marshal conversation state: %w", err)
	}

	if err := r.client.Set(ctx, StateKey, payload, 0).Err(); err != nil {
		r.logger.Error("Failed to save conversation state in redis", zap.Error(err))
		return fmt.Errorf("failed to save conversation state in redis: %w", err)
	}

	r.logger.Debug("Conversation state saved",
		zap.Int("bytes", len(payload)),
		zap.Int("history_len", len(state.History)),
	)
	return nil
}

// Load reads and deserializes the persisted state. A missing key or corrupt
// payload degrades to the default-empty state rather than failing the caller.
func (r *redisStateRepository) Load(ctx context.Context) (*models.ConversationState, error) {
	payload, err := r.client.Get(ctx, StateKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			r.logger.Debug("No persisted conversation state found")
			return models.NewConversationState(), nil
		}
		r.logger.Error("Failed to load conversation state from redis", zap.Error(err))
		return models.NewConversationState(), fmt.Errorf("failed to load conversation state from redis: %w", err)
	}

	var state models.ConversationState
	if err := json.Unmarshal(payload, &state); err != nil {
		r.logger.Warn("Persisted conversation state is corrupt, starting fresh", zap.Error(err))
		return models.NewConversationState(), nil
	}

	r.logger.Debug("Conversation state loaded", zap.Int("history_len", len(state.History)))
	return &state, nil
}

// Clear removes the persisted state. Deleting a non-existent key is not an
// error: the goal is idempotency.
func (r *redisStateRepository) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, StateKey).Err(); err != nil {
		r.logger.Error("Failed to clear conversation state in redis", zap.Error(err))
		return fmt.Errorf("failed to clear conversation state in redis: %w", err)
	}
	r.logger.Info("Persisted conversation state cleared")
	return nil
}
