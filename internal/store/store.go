package store

import (
	"context"
	"errors"

	"nexapicks-bot/internal/models"
)

// ErrCorrupt marks a durable snapshot that exists but cannot be decoded.
// Callers must surface it and stop instead of falling back to an empty state.
var ErrCorrupt = errors.New("store: snapshot corrupt")

// Store persists the whole document. Load returns the last durable snapshot,
// or the empty default state if no snapshot exists yet. Save durably
// overwrites the entire snapshot; there are no partial writes.
type Store interface {
	Load(ctx context.Context) (*models.State, error)
	Save(ctx context.Context, state *models.State) error
}
