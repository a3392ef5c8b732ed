package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/otakon/companion/internal/models"
)

// JobType represents the type of job
type JobType string

const (
	// JobTypeGroundingIncrement durably records one grounding use.
	JobTypeGroundingIncrement JobType = "grounding_increment"
	// JobTypeFeedbackRecord appends a correction audit record.
	JobTypeFeedbackRecord JobType = "feedback_record"
)

// Job represents a job in the queue. Exactly one payload field is set,
// according to Type.
type Job struct {
	ID     uuid.UUID `json:"id"`
	Type   JobType   `json:"type"`
	UserID string    `json:"user_id"`

	// MonthYear is set for grounding increment jobs.
	MonthYear string `json:"month_year,omitempty"`
	// Feedback is set for feedback record jobs.
	Feedback *models.FeedbackRecord `json:"feedback,omitempty"`

	NotBefore  *time.Time `json:"not_before,omitempty"` // Earliest time to process job (nil = immediate)
	NotAfter   *time.Time `json:"not_after,omitempty"`  // Latest time to process job (nil = no expiration)
	CreatedAt  time.Time  `json:"created_at"`
	RetryCount int        `json:"retry_count"`
	MaxRetries int        `json:"max_retries"`
}

// NewGroundingIncrementJob creates a job recording one grounding use for
// the user in the given month.
func NewGroundingIncrementJob(userID, monthYear string) *Job {
	return &Job{
		ID:         uuid.New(),
		Type:       JobTypeGroundingIncrement,
		UserID:     userID,
		MonthYear:  monthYear,
		CreatedAt:  time.Now(),
		MaxRetries: 3,
	}
}

// NewFeedbackJob creates a job appending one correction audit record.
func NewFeedbackJob(rec models.FeedbackRecord) *Job {
	return &Job{
		ID:         uuid.New(),
		Type:       JobTypeFeedbackRecord,
		UserID:     rec.UserID,
		Feedback:   &rec,
		CreatedAt:  time.Now(),
		MaxRetries: 3,
	}
}

// ShouldProcess checks if the job should be processed now
func (j *Job) ShouldProcess() bool {
	now := time.Now()

	if j.NotBefore != nil && now.Before(*j.NotBefore) {
		return false
	}
	if j.NotAfter != nil && now.After(*j.NotAfter) {
		return false
	}

	return true
}

// IsExpired checks if the job has expired
func (j *Job) IsExpired() bool {
	if j.NotAfter == nil {
		return false
	}

	return time.Now().After(*j.NotAfter)
}

// CanRetry checks if the job can be retried
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// IncrementRetry increments the retry count
func (j *Job) IncrementRetry() {
	j.RetryCount++
}
