package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/otakon/companion/internal/models"
)

// BehaviorRepository handles user behavior database operations. The whole
// behavior record (corrections, preferences, topic cache) is stored as one
// JSON blob per user; all read-merge-write serialization happens above
// this layer.
type BehaviorRepository struct {
	db *DB
}

// NewBehaviorRepository creates a new behavior repository
func NewBehaviorRepository(db *DB) *BehaviorRepository {
	return &BehaviorRepository{db: db}
}

// Get retrieves a user's behavior record. Returns (nil, nil) when no row
// exists yet; the caller supplies defaults.
func (r *BehaviorRepository) Get(ctx context.Context, userID string) (*models.BehaviorData, error) {
	var dataJSON []byte

	query := `
		SELECT data
		FROM user_behavior
		WHERE user_id = $1
	`

	err := r.db.QueryRowContext(ctx, query, userID).Scan(&dataJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get behavior data: %w", wrapSchemaMissing(err, "user_behavior"))
	}

	data := &models.BehaviorData{}
	if err := json.Unmarshal(dataJSON, data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal behavior data: %w", err)
	}

	return data, nil
}

// Upsert creates or replaces a user's behavior record.
func (r *BehaviorRepository) Upsert(ctx context.Context, userID string, data *models.BehaviorData) error {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal behavior data: %w", err)
	}

	query := `
		INSERT INTO user_behavior (user_id, data, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET data = EXCLUDED.data,
		    updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query, userID, dataJSON, time.Now())
	if err != nil {
		return fmt.Errorf("failed to upsert behavior data: %w", wrapSchemaMissing(err, "user_behavior"))
	}

	return nil
}
