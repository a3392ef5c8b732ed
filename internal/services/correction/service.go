package correction

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/otakon/companion/internal/models"
	"github.com/otakon/companion/internal/services/behavior"
	"go.uber.org/zap"
)

const (
	// DailySubmissionLimit caps correction submissions per rolling day.
	DailySubmissionLimit = 3
	dailyWindow          = 24 * time.Hour

	// MinCorrectionLength and MaxCorrectionLength bound the free text.
	MinCorrectionLength = 5
	MaxCorrectionLength = 1000
)

// Rejection reasons surfaced to the user. Short and specific.
const (
	ReasonRateLimited        = "Daily correction limit reached (3/day)"
	ReasonTooShort           = "Correction is too short (minimum 5 characters)"
	ReasonTooLong            = "Correction is too long (maximum 1000 characters)"
	ReasonHarmfulContent     = "Correction contains content that cannot be accepted"
	ReasonServiceUnavailable = "Correction validation is temporarily unavailable"
)

// Curated harmful-content patterns. Deliberately small; the AI validator
// is the real plausibility check.
var harmfulPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bignore\s+(?:all\s+)?(?:previous|prior)\s+instructions\b`),
	regexp.MustCompile(`(?i)\bdisregard\s+your\s+(?:system\s+)?prompt\b`),
	regexp.MustCompile(`(?i)\b(?:kill|hurt|harm)\s+(?:yourself|himself|herself|themselves)\b`),
	regexp.MustCompile(`(?i)\byou\s+are\s+no\s+longer\b.{0,40}\bassistant\b`),
}

// Validator is the AI-based plausibility check collaborator.
type Validator interface {
	ValidateCorrection(ctx context.Context, originalResponse, correctionText string) (models.ValidationOutcome, error)
}

// FeedbackSink persists the append-only audit record for every submission,
// accepted or not.
type FeedbackSink interface {
	RecordFeedback(ctx context.Context, rec models.FeedbackRecord)
}

// Submission is one correction submission from the user.
type Submission struct {
	OriginalResponse string
	CorrectionText   string
	Type             models.CorrectionType
	Scope            models.CorrectionScope
	GameTitle        string
}

// Result reports how a submission was resolved. Rejections are ordinary
// results distinguishable by Error; only infrastructure failures surface
// as a generic failure.
type Result struct {
	Success            bool               `json:"success"`
	Correction         *models.Correction `json:"correction,omitempty"`
	Error              string             `json:"error,omitempty"`
	RateLimitRemaining int                `json:"rate_limit_remaining"`
}

type dailyCounter struct {
	count   int
	resetAt time.Time
}

// Service validates, rate-limits and persists user corrections.
type Service struct {
	store     *behavior.Store
	validator Validator
	feedback  FeedbackSink
	logger    *zap.Logger
	now       func() time.Time

	mu       sync.Mutex
	counters map[string]dailyCounter
}

// NewService creates a correction service. logger may be nil.
func NewService(store *behavior.Store, validator Validator, feedback FeedbackSink, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     store,
		validator: validator,
		feedback:  feedback,
		logger:    logger,
		now:       time.Now,
		counters:  make(map[string]dailyCounter),
	}
}

// SetClock overrides the time source. Used by tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// SubmitCorrection runs the submission state machine: rate limit, local
// content checks, AI plausibility validation (fail closed), audit record,
// then delegation to the behavior store's ceilings.
func (s *Service) SubmitCorrection(ctx context.Context, userID string, sub Submission) Result {
	remaining, allowed := s.checkRateLimit(userID)
	if !allowed {
		return Result{Success: false, Error: ReasonRateLimited, RateLimitRemaining: 0}
	}

	text := strings.TrimSpace(sub.CorrectionText)
	if reason := localContentCheck(text); reason != "" {
		s.audit(ctx, userID, sub, models.FeedbackRejected, reason)
		return Result{Success: false, Error: reason, RateLimitRemaining: remaining}
	}

	outcome, err := s.validator.ValidateCorrection(ctx, sub.OriginalResponse, text)
	if err != nil {
		// Fail closed: an unreachable validator never silently accepts.
		s.logger.Warn("correction_validator_unavailable",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		outcome = models.ValidationOutcome{IsValid: false, Reason: ReasonServiceUnavailable}
	}

	if !outcome.IsValid {
		s.audit(ctx, userID, sub, models.FeedbackRejected, outcome.Reason)
		return Result{Success: false, Error: outcome.Reason, RateLimitRemaining: remaining}
	}

	// An omitted scope falls back to the user's stored default preference.
	if sub.Scope == "" {
		sub.Scope = s.store.GetBehaviorData(ctx, userID).AIPreferences.CorrectionDefaultScope
	}

	corrType := sub.Type
	if outcome.SuggestedType != "" {
		corrType = outcome.SuggestedType
	}

	corr := models.Correction{
		ID:              uuid.New(),
		Scope:           sub.Scope,
		GameTitle:       sub.GameTitle,
		OriginalSnippet: snippet(sub.OriginalResponse),
		CorrectionText:  text,
		Type:            corrType,
		IsActive:        true,
		CreatedAt:       s.now(),
	}

	added, ceilingReason, err := s.store.AddCorrection(ctx, userID, corr)
	if err != nil {
		s.logger.Error("correction_persist_failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return Result{Success: false, Error: "Failed to save correction", RateLimitRemaining: remaining}
	}
	if !added {
		s.audit(ctx, userID, sub, models.FeedbackRejected, ceilingReason)
		return Result{Success: false, Error: ceilingReason, RateLimitRemaining: remaining}
	}

	s.audit(ctx, userID, sub, models.FeedbackAccepted, outcome.Reason)

	// Only a fully accepted submission spends a rate-limit slot.
	remaining = s.consumeRateLimit(userID)
	return Result{Success: true, Correction: &corr, RateLimitRemaining: remaining}
}

// checkRateLimit reports the remaining daily submissions without consuming
// one. The window resets when now passes resetAt.
func (s *Service) checkRateLimit(userID string) (remaining int, allowed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.counters[userID]
	if !c.resetAt.IsZero() && s.now().After(c.resetAt) {
		c = dailyCounter{}
		s.counters[userID] = c
	}
	remaining = DailySubmissionLimit - c.count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, c.count < DailySubmissionLimit
}

func (s *Service) consumeRateLimit(userID string) (remaining int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.counters[userID]
	if c.resetAt.IsZero() || s.now().After(c.resetAt) {
		c = dailyCounter{resetAt: s.now().Add(dailyWindow)}
	}
	c.count++
	s.counters[userID] = c
	remaining = DailySubmissionLimit - c.count
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

func (s *Service) audit(ctx context.Context, userID string, sub Submission, outcome models.FeedbackOutcome, reason string) {
	s.feedback.RecordFeedback(ctx, models.FeedbackRecord{
		ID:               uuid.New(),
		UserID:           userID,
		CorrectionText:   sub.CorrectionText,
		OriginalSnippet:  snippet(sub.OriginalResponse),
		GameTitle:        sub.GameTitle,
		Outcome:          outcome,
		ValidationReason: reason,
		CreatedAt:        s.now(),
	})
}

func localContentCheck(text string) string {
	if len(text) < MinCorrectionLength {
		return ReasonTooShort
	}
	if len(text) > MaxCorrectionLength {
		return ReasonTooLong
	}
	for _, re := range harmfulPatterns {
		if re.MatchString(text) {
			return ReasonHarmfulContent
		}
	}
	return ""
}

// snippet keeps a short reference to the response being corrected.
func snippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 200 {
		return s[:200]
	}
	return s
}
