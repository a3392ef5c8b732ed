package summarize

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/otakon/companion/internal/models"
	"go.uber.org/zap"
)

const (
	// SummaryWordBudget is the target size of one compressed summary.
	SummaryWordBudget = 300
	// RecentWindow is the number of most-recent messages always kept verbatim.
	RecentWindow = 8
	// ContextSummaryWordCap bounds the derived plain-text framing summary.
	ContextSummaryWordCap = 500

	// Naive truncation fallback shape used when the AI call fails.
	fallbackMessageCount = 5
	fallbackCharsPerMsg  = 100
)

// Completer is the AI collaborator for history compression. The dedicated
// summarization call carries a token cap sized to the summary word budget.
type Completer interface {
	SummarizeHistory(ctx context.Context, systemPrompt string, messages []models.Message) (string, error)
}

// Summarizer compresses conversation history once it exceeds the word
// budget, keeping the most recent messages verbatim.
type Summarizer struct {
	completer Completer
	logger    *zap.Logger
}

// NewSummarizer creates a summarizer. logger may be nil.
func NewSummarizer(completer Completer, logger *zap.Logger) *Summarizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Summarizer{completer: completer, logger: logger}
}

// ShouldSummarize reports whether the conversation has outgrown its word
// budget: more messages than the recent window AND total words above three
// times the per-summary budget.
func (s *Summarizer) ShouldSummarize(conv *models.Conversation) bool {
	if len(conv.Messages) <= RecentWindow {
		return false
	}
	return conv.TotalWordCount() > 3*SummaryWordBudget
}

// Apply compresses everything older than the recent window into a single
// synthetic system message and returns the updated conversation. It is a
// no-op (the input is returned unchanged) when summarization is not
// needed, so re-applying to an already-compressed conversation is safe.
// Apply never fails: if the AI call errors, a naive truncation summary is
// used instead.
func (s *Summarizer) Apply(ctx context.Context, conv *models.Conversation) *models.Conversation {
	if !s.ShouldSummarize(conv) {
		return conv
	}

	split := len(conv.Messages) - RecentWindow
	candidates := conv.Messages[:split]
	recent := conv.Messages[split:]

	originalWords := 0
	for _, m := range candidates {
		originalWords += m.WordCount()
	}

	summary := s.summarize(ctx, conv, candidates)
	summaryWords := len(strings.Fields(summary))

	now := recent[0].Timestamp
	summaryMsg := models.Message{
		Role:      models.RoleSystem,
		Content:   "Earlier conversation summary: " + summary,
		Timestamp: now,
		Summary: &models.SummaryMetadata{
			IsSummary:         true,
			MessagesIncluded:  len(candidates),
			OriginalWordCount: originalWords,
			SummaryWordCount:  summaryWords,
		},
	}

	out := *conv
	out.Messages = make([]models.Message, 0, 1+len(recent))
	out.Messages = append(out.Messages, summaryMsg)
	out.Messages = append(out.Messages, recent...)
	out.ContextSummary = deriveContextSummary(summary)
	out.LastSummarizedAt = &now

	s.logger.Debug("history_summarized",
		zap.Int("messages_compressed", len(candidates)),
		zap.Int("original_words", originalWords),
		zap.Int("summary_words", summaryWords),
	)
	return &out
}

func (s *Summarizer) summarize(ctx context.Context, conv *models.Conversation, candidates []models.Message) string {
	system := fmt.Sprintf(
		"Compress the following conversation into at most %d words. Preserve topics discussed, decisions made, game progress and player preferences. Respond with the summary only.",
		SummaryWordBudget,
	)
	if conv.GameTitle != "" {
		system += fmt.Sprintf(" The conversation is about %s", conv.GameTitle)
		if conv.Genre != "" {
			system += fmt.Sprintf(" (%s)", conv.Genre)
		}
		system += "."
	}

	summary, err := s.completer.SummarizeHistory(ctx, system, candidates)
	if err != nil {
		s.logger.Warn("summary_completion_failed_using_truncation", zap.Error(err))
		return truncationFallback(candidates)
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return truncationFallback(candidates)
	}
	return capWords(summary, SummaryWordBudget)
}

// truncationFallback concatenates the first few candidate messages' leading
// characters, capped to the word budget. Lossy, but always usable.
func truncationFallback(candidates []models.Message) string {
	n := len(candidates)
	if n > fallbackMessageCount {
		n = fallbackMessageCount
	}
	parts := make([]string, 0, n)
	for _, m := range candidates[:n] {
		content := m.Content
		if len(content) > fallbackCharsPerMsg {
			content = content[:fallbackCharsPerMsg]
		}
		parts = append(parts, fmt.Sprintf("%s: %s", m.Role, content))
	}
	return capWords(strings.Join(parts, " | "), SummaryWordBudget)
}

var imageMarkdownRe = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)

// deriveContextSummary strips image markdown and caps the summary for use
// as lightweight prompt framing independent of the message list.
func deriveContextSummary(summary string) string {
	plain := imageMarkdownRe.ReplaceAllString(summary, "")
	plain = strings.TrimSpace(plain)
	return capWords(plain, ContextSummaryWordCap)
}

func capWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) <= n {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:n], " ")
}
