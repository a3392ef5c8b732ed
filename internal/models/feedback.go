package models

import (
	"time"

	"github.com/google/uuid"
)

// FeedbackOutcome records how a correction submission was resolved.
type FeedbackOutcome string

const (
	FeedbackAccepted FeedbackOutcome = "accepted"
	FeedbackRejected FeedbackOutcome = "rejected"
)

// FeedbackRecord is one append-only audit row per correction submission,
// written whether or not the submission was accepted.
type FeedbackRecord struct {
	ID               uuid.UUID       `json:"id"`
	UserID           string          `json:"user_id"`
	CorrectionText   string          `json:"correction_text"`
	OriginalSnippet  string          `json:"original_snippet,omitempty"`
	GameTitle        string          `json:"game_title,omitempty"`
	Outcome          FeedbackOutcome `json:"outcome"`
	ValidationReason string          `json:"validation_reason,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}
