package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/otakon/companion/internal/models"
)

// GroundingUsageRepository handles monthly grounding usage rows, one per
// (user_id, month_year). Absence of a row means zero usage.
type GroundingUsageRepository struct {
	db *DB
}

// NewGroundingUsageRepository creates a new grounding usage repository
func NewGroundingUsageRepository(db *DB) *GroundingUsageRepository {
	return &GroundingUsageRepository{db: db}
}

// GetUsage returns the usage count for the user in the given month.
// A missing row is zero usage, not an error.
func (r *GroundingUsageRepository) GetUsage(ctx context.Context, userID, monthYear string) (int, error) {
	var count int

	query := `
		SELECT usage_count
		FROM user_grounding_usage
		WHERE user_id = $1 AND month_year = $2
	`

	err := r.db.QueryRowContext(ctx, query, userID, monthYear).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get grounding usage: %w", wrapSchemaMissing(err, "user_grounding_usage"))
	}

	return count, nil
}

// IncrementUsage atomically adds one use to the user's row for the month,
// creating the row on first use.
func (r *GroundingUsageRepository) IncrementUsage(ctx context.Context, userID, monthYear string) error {
	query := `
		INSERT INTO user_grounding_usage (user_id, month_year, usage_count, updated_at)
		VALUES ($1, $2, 1, $3)
		ON CONFLICT (user_id, month_year) DO UPDATE
		SET usage_count = user_grounding_usage.usage_count + 1,
		    updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query, userID, monthYear, time.Now())
	if err != nil {
		return fmt.Errorf("failed to increment grounding usage: %w", wrapSchemaMissing(err, "user_grounding_usage"))
	}

	return nil
}

// GetAllForUser returns every monthly usage row for a user, newest first.
// Used by the admin CLI.
func (r *GroundingUsageRepository) GetAllForUser(ctx context.Context, userID string) ([]*models.GroundingUsage, error) {
	query := `
		SELECT user_id, month_year, usage_count, updated_at
		FROM user_grounding_usage
		WHERE user_id = $1
		ORDER BY month_year DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list grounding usage: %w", wrapSchemaMissing(err, "user_grounding_usage"))
	}
	defer func() { _ = rows.Close() }()

	var usages []*models.GroundingUsage
	for rows.Next() {
		u := &models.GroundingUsage{}
		if err := rows.Scan(&u.UserID, &u.MonthYear, &u.UsageCount, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan grounding usage row: %w", err)
		}
		usages = append(usages, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate grounding usage rows: %w", err)
	}

	return usages, nil
}
