package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"nexapicks-bot/internal/models"
)

const defaultRedisKey = "nexapicks:db"

// RedisStore keeps the snapshot as a single Redis value, whole document per
// key, same JSON layout as the file store.
type RedisStore struct {
	Client *redis.Client
	Key    string
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{Client: client, Key: defaultRedisKey}
}

func (s *RedisStore) Load(ctx context.Context) (*models.State, error) {
	data, err := s.Client.Get(ctx, s.Key).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.NewState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot from redis: %w", err)
	}

	state := models.NewState()
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("%w: key %s: %v", ErrCorrupt, s.Key, err)
	}
	return state, nil
}

func (s *RedisStore) Save(ctx context.Context, state *models.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := s.Client.Set(ctx, s.Key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write snapshot to redis: %w", err)
	}
	return nil
}
