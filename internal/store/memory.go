package store

import (
	"context"
	"encoding/json"
	"fmt"

	"nexapicks-bot/internal/models"
)

// MemoryStore is an in-process driver used in tests. It round-trips the
// snapshot through JSON so Save hands back an independent copy, like the
// durable drivers do.
type MemoryStore struct {
	data []byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(_ context.Context) (*models.State, error) {
	if s.data == nil {
		return models.NewState(), nil
	}
	state := models.NewState()
	if err := json.Unmarshal(s.data, state); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return state, nil
}

func (s *MemoryStore) Save(_ context.Context, state *models.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	s.data = data
	return nil
}
