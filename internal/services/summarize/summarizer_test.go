package summarize

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/otakon/companion/internal/models"
)

type fakeCompleter struct {
	reply string
	err   error
	calls int
}

func (f *fakeCompleter) SummarizeHistory(_ context.Context, _ string, _ []models.Message) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

// buildConversation makes n messages of wordsEach words each.
func buildConversation(n, wordsEach int) *models.Conversation {
	word := strings.TrimSpace(strings.Repeat("word ", wordsEach))
	msgs := make([]models.Message, 0, n)
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		msgs = append(msgs, models.Message{Role: role, Content: word, Timestamp: base.Add(time.Duration(i) * time.Minute)})
	}
	return &models.Conversation{Messages: msgs, GameTitle: "Elden Ring", Genre: "Action RPG"}
}

func TestShouldSummarize(t *testing.T) {
	t.Parallel()

	s := NewSummarizer(&fakeCompleter{reply: "ok"}, nil)

	tests := []struct {
		name string
		conv *models.Conversation
		want bool
	}{
		{"few messages regardless of words", buildConversation(8, 500), false},
		{"many messages under word threshold", buildConversation(12, 70), false},
		{"many messages over word threshold", buildConversation(12, 100), true},
		{"boundary: exactly 900 words is not enough", buildConversation(9, 100), false},
		{"empty conversation", &models.Conversation{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := s.ShouldSummarize(tt.conv); got != tt.want {
				t.Errorf("ShouldSummarize = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestApply_CompressesOlderMessages(t *testing.T) {
	t.Parallel()

	fake := &fakeCompleter{reply: "The player cleared Limgrave and prefers stealth builds."}
	s := NewSummarizer(fake, nil)

	// 12 messages x ~84 words = ~1000 words total.
	conv := buildConversation(12, 84)
	out := s.Apply(context.Background(), conv)

	if len(out.Messages) != 1+RecentWindow {
		t.Fatalf("message count = %d, want %d", len(out.Messages), 1+RecentWindow)
	}
	head := out.Messages[0]
	if head.Role != models.RoleSystem {
		t.Errorf("summary message role = %q, want system", head.Role)
	}
	if head.Summary == nil {
		t.Fatal("summary metadata missing")
	}
	if head.Summary.MessagesIncluded != 4 {
		t.Errorf("MessagesIncluded = %d, want 4", head.Summary.MessagesIncluded)
	}
	if head.Summary.OriginalWordCount != 4*84 {
		t.Errorf("OriginalWordCount = %d, want %d", head.Summary.OriginalWordCount, 4*84)
	}
	if !strings.Contains(head.Content, "stealth builds") {
		t.Errorf("summary content = %q", head.Content)
	}
	if out.ContextSummary == "" {
		t.Error("derived ContextSummary not set")
	}
	if out.LastSummarizedAt == nil {
		t.Error("LastSummarizedAt not set")
	}

	// Recent messages survive verbatim.
	for i, m := range out.Messages[1:] {
		if m.Content != conv.Messages[4+i].Content {
			t.Errorf("recent message %d mutated", i)
		}
	}
}

func TestApply_NoopWhenNotNeeded(t *testing.T) {
	t.Parallel()

	fake := &fakeCompleter{reply: "unused"}
	s := NewSummarizer(fake, nil)

	conv := buildConversation(6, 400)
	out := s.Apply(context.Background(), conv)
	if out != conv {
		t.Error("Apply should return the identical conversation when no summarization is needed")
	}
	if fake.calls != 0 {
		t.Errorf("completer called %d times, want 0", fake.calls)
	}
}

func TestApply_IdempotentAfterCompression(t *testing.T) {
	t.Parallel()

	fake := &fakeCompleter{reply: "short summary"}
	s := NewSummarizer(fake, nil)

	conv := buildConversation(12, 100)
	once := s.Apply(context.Background(), conv)
	twice := s.Apply(context.Background(), once)

	// After compression the word count is back under the threshold, so the
	// second pass must be a no-op.
	if twice != once {
		t.Error("second Apply mutated an already-compressed conversation")
	}
	if fake.calls != 1 {
		t.Errorf("completer called %d times, want 1", fake.calls)
	}
}

func TestApply_FallbackOnCompleterFailure(t *testing.T) {
	t.Parallel()

	fake := &fakeCompleter{err: errors.New("upstream unavailable")}
	s := NewSummarizer(fake, nil)

	conv := buildConversation(12, 120)
	// Give the oldest messages recognizable prefixes.
	for i := 0; i < 4; i++ {
		conv.Messages[i].Content = strings.Repeat("x", 150)
	}

	out := s.Apply(context.Background(), conv)
	if len(out.Messages) != 1+RecentWindow {
		t.Fatalf("message count = %d, want %d", len(out.Messages), 1+RecentWindow)
	}
	head := out.Messages[0]
	if head.Summary == nil || !head.Summary.IsSummary {
		t.Fatal("fallback summary metadata missing")
	}
	// Each candidate contributes at most its first 100 characters.
	if strings.Contains(head.Content, strings.Repeat("x", 101)) {
		t.Error("fallback did not truncate candidate messages to 100 chars")
	}
	if head.Summary.SummaryWordCount > SummaryWordBudget {
		t.Errorf("fallback summary exceeds word budget: %d", head.Summary.SummaryWordCount)
	}
}

func TestDeriveContextSummary_StripsImageMarkdown(t *testing.T) {
	t.Parallel()

	in := "Progress update ![screenshot](https://cdn.example/s.png) boss defeated"
	got := deriveContextSummary(in)
	if strings.Contains(got, "![") || strings.Contains(got, "cdn.example") {
		t.Errorf("image markdown not stripped: %q", got)
	}
	if !strings.Contains(got, "boss defeated") {
		t.Errorf("content lost: %q", got)
	}
}
