package queue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/otakon/companion/internal/models"
)

func timePtr(t time.Time) *time.Time {
	return &t
}

func TestNewGroundingIncrementJob(t *testing.T) {
	t.Parallel()

	job := NewGroundingIncrementJob("user-1", "2026-08")

	if job.ID == uuid.Nil {
		t.Error("Expected job ID to be set")
	}
	if job.Type != JobTypeGroundingIncrement {
		t.Errorf("Expected job type to be %s, got %s", JobTypeGroundingIncrement, job.Type)
	}
	if job.UserID != "user-1" {
		t.Errorf("Expected user ID to be user-1, got %s", job.UserID)
	}
	if job.MonthYear != "2026-08" {
		t.Errorf("Expected month year to be 2026-08, got %s", job.MonthYear)
	}
	if job.Feedback != nil {
		t.Error("Expected no feedback payload on an increment job")
	}
	if job.RetryCount != 0 {
		t.Errorf("Expected retry count to be 0, got %d", job.RetryCount)
	}
	if job.MaxRetries != 3 {
		t.Errorf("Expected max retries to be 3, got %d", job.MaxRetries)
	}
}

func TestNewFeedbackJob(t *testing.T) {
	t.Parallel()

	rec := models.FeedbackRecord{
		ID:             uuid.New(),
		UserID:         "user-2",
		CorrectionText: "The merchant is in the eastern district, not the docks.",
		Outcome:        models.FeedbackAccepted,
		CreatedAt:      time.Now(),
	}

	job := NewFeedbackJob(rec)

	if job.Type != JobTypeFeedbackRecord {
		t.Errorf("Expected job type to be %s, got %s", JobTypeFeedbackRecord, job.Type)
	}
	if job.UserID != rec.UserID {
		t.Errorf("Expected user ID to be %s, got %s", rec.UserID, job.UserID)
	}
	if job.Feedback == nil || job.Feedback.ID != rec.ID {
		t.Error("Expected feedback payload to carry the record")
	}
	if job.MonthYear != "" {
		t.Error("Expected no month year on a feedback job")
	}
}

func TestJob_RoundTripsThroughJSON(t *testing.T) {
	t.Parallel()

	rec := models.FeedbackRecord{
		ID:               uuid.New(),
		UserID:           "user-3",
		CorrectionText:   "Actually frost, not fire.",
		Outcome:          models.FeedbackRejected,
		ValidationReason: "contradicts established mechanics",
		CreatedAt:        time.Now().UTC().Truncate(time.Second),
	}
	job := NewFeedbackJob(rec)

	data, err := json.Marshal(job)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Job
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Type != JobTypeFeedbackRecord || decoded.Feedback == nil {
		t.Fatal("Decoded job lost its type or payload")
	}
	if decoded.Feedback.ValidationReason != rec.ValidationReason {
		t.Errorf("ValidationReason = %q, want %q", decoded.Feedback.ValidationReason, rec.ValidationReason)
	}
}

func TestJob_ShouldProcess(t *testing.T) {
	t.Parallel()

	now := time.Now()

	tests := []struct {
		name      string
		notBefore *time.Time
		notAfter  *time.Time
		want      bool
	}{
		{name: "no time constraints", want: true},
		{name: "not before in past", notBefore: timePtr(now.Add(-1 * time.Hour)), want: true},
		{name: "not before in future", notBefore: timePtr(now.Add(1 * time.Hour)), want: false},
		{name: "not after in past", notAfter: timePtr(now.Add(-1 * time.Hour)), want: false},
		{name: "not after in future", notAfter: timePtr(now.Add(1 * time.Hour)), want: true},
		{name: "within time window", notBefore: timePtr(now.Add(-1 * time.Hour)), notAfter: timePtr(now.Add(1 * time.Hour)), want: true},
		{name: "outside time window - before", notBefore: timePtr(now.Add(1 * time.Hour)), notAfter: timePtr(now.Add(2 * time.Hour)), want: false},
		{name: "outside time window - after", notBefore: timePtr(now.Add(-2 * time.Hour)), notAfter: timePtr(now.Add(-1 * time.Hour)), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			job := NewGroundingIncrementJob("user-1", "2026-08")
			job.NotBefore = tt.notBefore
			job.NotAfter = tt.notAfter
			if got := job.ShouldProcess(); got != tt.want {
				t.Errorf("ShouldProcess() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJob_IsExpired(t *testing.T) {
	t.Parallel()

	now := time.Now()

	tests := []struct {
		name     string
		notAfter *time.Time
		want     bool
	}{
		{name: "no expiration", want: false},
		{name: "expired", notAfter: timePtr(now.Add(-1 * time.Minute)), want: true},
		{name: "not yet expired", notAfter: timePtr(now.Add(1 * time.Hour)), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			job := NewGroundingIncrementJob("user-1", "2026-08")
			job.NotAfter = tt.notAfter
			if got := job.IsExpired(); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJob_Retry(t *testing.T) {
	t.Parallel()

	job := NewGroundingIncrementJob("user-1", "2026-08")
	for i := 0; i < job.MaxRetries; i++ {
		if !job.CanRetry() {
			t.Fatalf("Expected retry %d to be allowed", i)
		}
		job.IncrementRetry()
	}
	if job.CanRetry() {
		t.Error("Expected retries exhausted after MaxRetries increments")
	}
}
