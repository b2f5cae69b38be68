package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"nexapicks-bot/internal/models"
)

// snapshotRow holds the whole document as one jsonb row. The persistence
// contract is load-entire-snapshot/write-entire-snapshot, so the table never
// grows past a single row.
type snapshotRow struct {
	ID  uint   `gorm:"primaryKey"`
	Doc string `gorm:"type:jsonb;not null"`
}

func (snapshotRow) TableName() string {
	return "snapshots"
}

// PostgresStore keeps the snapshot in Postgres, full overwrite on every Save.
type PostgresStore struct {
	DB *gorm.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&snapshotRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &PostgresStore{DB: db}, nil
}

func (s *PostgresStore) Load(ctx context.Context) (*models.State, error) {
	var row snapshotRow
	err := s.DB.WithContext(ctx).First(&row, 1).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot row: %w", err)
	}

	state := models.NewState()
	if err := json.Unmarshal([]byte(row.Doc), state); err != nil {
		return nil, fmt.Errorf("%w: snapshot row: %v", ErrCorrupt, err)
	}
	return state, nil
}

func (s *PostgresStore) Save(ctx context.Context, state *models.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	row := snapshotRow{ID: 1, Doc: string(data)}
	if err := s.DB.WithContext(ctx).Save(&row).Error; err != nil {
		return fmt.Errorf("failed to write snapshot row: %w", err)
	}
	return nil
}
