package models

import (
	"strings"
	"time"
)

// MessageRole identifies who produced a conversation message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// SummaryMetadata is attached to the synthetic system message that replaces
// summarized history.
type SummaryMetadata struct {
	IsSummary         bool `json:"is_summary"`
	MessagesIncluded  int  `json:"messages_included"`
	OriginalWordCount int  `json:"original_word_count"`
	SummaryWordCount  int  `json:"summary_word_count"`
}

// Message is a single conversation turn.
type Message struct {
	Role      MessageRole      `json:"role"`
	Content   string           `json:"content"`
	Timestamp time.Time        `json:"timestamp"`
	Summary   *SummaryMetadata `json:"summary,omitempty"`
}

// WordCount counts whitespace-separated words in the message content.
func (m Message) WordCount() int {
	return len(strings.Fields(m.Content))
}

// SubtabStatus tracks whether a subtab's content has been generated yet.
type SubtabStatus string

const (
	SubtabStatusPending SubtabStatus = "pending"
	SubtabStatusLoaded  SubtabStatus = "loaded"
)

// Subtab is a persisted named content bucket attached to a conversation,
// updated incrementally by AI directives.
type Subtab struct {
	ID      string       `json:"id"`
	Title   string       `json:"title"`
	Content string       `json:"content"`
	Status  SubtabStatus `json:"status"`
}

// Conversation is the ephemeral working state of one active chat tab.
type Conversation struct {
	Messages         []Message  `json:"messages"`
	GameTitle        string     `json:"game_title,omitempty"`
	Genre            string     `json:"genre,omitempty"`
	GameProgress     int        `json:"game_progress"`
	ActiveObjective  string     `json:"active_objective,omitempty"`
	ContextSummary   string     `json:"context_summary,omitempty"`
	LastSummarizedAt *time.Time `json:"last_summarized_at,omitempty"`
	IsUnreleased     bool       `json:"is_unreleased,omitempty"`
	Subtabs          []Subtab   `json:"subtabs,omitempty"`
}

// TotalWordCount sums word counts across all messages, the synthetic
// summary message included.
func (c *Conversation) TotalWordCount() int {
	total := 0
	for _, m := range c.Messages {
		total += m.WordCount()
	}
	return total
}
