package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"nexapicks-bot/internal/models"
)

// FileStore keeps the snapshot in a single JSON file, matching the layout of
// the original database.json (indent 2, three top-level collections).
type FileStore struct {
	Path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

func (s *FileStore) Load(_ context.Context) (*models.State, error) {
	data, err := os.ReadFile(s.Path)
	if os.IsNotExist(err) {
		return models.NewState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.Path, err)
	}

	state := models.NewState()
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.Path, err)
	}
	return state, nil
}

func (s *FileStore) Save(_ context.Context, state *models.State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	// Write to a sibling temp file first so a crash mid-write never leaves a
	// truncated snapshot behind.
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.Path, err)
	}
	return nil
}
