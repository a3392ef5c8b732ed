package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// CorrectionScope determines whether a correction applies to a single game
// or to every conversation the user has.
type CorrectionScope string

const (
	CorrectionScopeGame   CorrectionScope = "game"
	CorrectionScopeGlobal CorrectionScope = "global"
)

// CorrectionType classifies what kind of AI behavior a correction targets.
type CorrectionType string

const (
	CorrectionTypeFactual     CorrectionType = "factual"
	CorrectionTypeStyle       CorrectionType = "style"
	CorrectionTypeTerminology CorrectionType = "terminology"
	CorrectionTypeBehavior    CorrectionType = "behavior"
)

// HistoryScope controls how much previously-discussed-topic context is
// carried into new prompts.
type HistoryScope string

const (
	HistoryScopeOff    HistoryScope = "off"
	HistoryScopeGame   HistoryScope = "game"
	HistoryScopeGlobal HistoryScope = "global"
)

const (
	// MaxActiveGameCorrections is the ceiling on active corrections per
	// distinct game title.
	MaxActiveGameCorrections = 5
	// MaxActiveGlobalCorrections is the ceiling on active global-scope
	// corrections.
	MaxActiveGlobalCorrections = 10
	// MaxResponseTopics bounds the per-scope recently-discussed-topics cache.
	MaxResponseTopics = 20
)

// Correction is a user-supplied instruction that future prompts should honor.
type Correction struct {
	ID              uuid.UUID       `json:"id"`
	Scope           CorrectionScope `json:"scope"`
	GameTitle       string          `json:"game_title,omitempty"`
	OriginalSnippet string          `json:"original_snippet,omitempty"`
	CorrectionText  string          `json:"correction_text"`
	Type            CorrectionType  `json:"type"`
	IsActive        bool            `json:"is_active"`
	AppliedCount    int             `json:"applied_count"`
	CreatedAt       time.Time       `json:"created_at"`
}

// AIPreferences are the user's knobs for how behavior context is applied.
type AIPreferences struct {
	ResponseHistoryScope   HistoryScope    `json:"response_history_scope"`
	ApplyCorrections       bool            `json:"apply_corrections"`
	CorrectionDefaultScope CorrectionScope `json:"correction_default_scope"`
}

// BehaviorData is the per-user mutable record of corrections, preferences
// and the bounded recently-discussed-topics cache. It is stored as a single
// JSON blob and always modified through the BehaviorStore's locked
// read-merge-write path.
type BehaviorData struct {
	AICorrections       []Correction        `json:"ai_corrections"`
	AIPreferences       AIPreferences       `json:"ai_preferences"`
	ResponseTopicsCache map[string][]string `json:"response_topics_cache"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

// DefaultBehaviorData returns the empty record created lazily on first read.
func DefaultBehaviorData() *BehaviorData {
	return &BehaviorData{
		AICorrections: []Correction{},
		AIPreferences: AIPreferences{
			ResponseHistoryScope:   HistoryScopeGame,
			ApplyCorrections:       true,
			CorrectionDefaultScope: CorrectionScopeGame,
		},
		ResponseTopicsCache: map[string][]string{},
	}
}

// ActiveCorrectionCount returns the number of active corrections for the
// given scope; for game scope it counts only corrections for gameTitle
// (case-insensitive).
func (b *BehaviorData) ActiveCorrectionCount(scope CorrectionScope, gameTitle string) int {
	count := 0
	for _, c := range b.AICorrections {
		if !c.IsActive || c.Scope != scope {
			continue
		}
		if scope == CorrectionScopeGame && !strings.EqualFold(c.GameTitle, gameTitle) {
			continue
		}
		count++
	}
	return count
}

// ActiveCorrectionsFor returns the corrections that should influence a
// prompt for the given game: all active global corrections plus active
// game-scope corrections matching gameTitle.
func (b *BehaviorData) ActiveCorrectionsFor(gameTitle string) []Correction {
	var out []Correction
	for _, c := range b.AICorrections {
		if !c.IsActive {
			continue
		}
		if c.Scope == CorrectionScopeGlobal || strings.EqualFold(c.GameTitle, gameTitle) {
			out = append(out, c)
		}
	}
	return out
}

// GlobalTopicsKey is the scope key for topics not tied to a single game.
const GlobalTopicsKey = "__global__"
