package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/otakon/companion/internal/models"
)

// FeedbackRepository handles the append-only correction audit log.
type FeedbackRepository struct {
	db *DB
}

// NewFeedbackRepository creates a new feedback repository
func NewFeedbackRepository(db *DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

// RecordFeedback appends one audit row. Rows are written for accepted and
// rejected submissions alike and are never updated.
func (r *FeedbackRepository) RecordFeedback(ctx context.Context, rec models.FeedbackRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO ai_feedback (id, user_id, correction_text, original_snippet, game_title, outcome, validation_reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		rec.ID,
		rec.UserID,
		rec.CorrectionText,
		rec.OriginalSnippet,
		rec.GameTitle,
		rec.Outcome,
		rec.ValidationReason,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record feedback: %w", wrapSchemaMissing(err, "ai_feedback"))
	}

	return nil
}

// ListRecent returns the most recent feedback rows for a user, newest
// first. Used by the admin CLI.
func (r *FeedbackRepository) ListRecent(ctx context.Context, userID string, limit int) ([]*models.FeedbackRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, user_id, correction_text, original_snippet, game_title, outcome, validation_reason, created_at
		FROM ai_feedback
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", wrapSchemaMissing(err, "ai_feedback"))
	}
	defer func() { _ = rows.Close() }()

	var records []*models.FeedbackRecord
	for rows.Next() {
		rec := &models.FeedbackRecord{}
		if err := rows.Scan(
			&rec.ID,
			&rec.UserID,
			&rec.CorrectionText,
			&rec.OriginalSnippet,
			&rec.GameTitle,
			&rec.Outcome,
			&rec.ValidationReason,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan feedback row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate feedback rows: %w", err)
	}

	return records, nil
}
