package models

import "encoding/json"

// DirectiveKey is one of the fixed vocabulary of tag directive keys the AI
// may embed in a response as [OTAKON_<KEY>: payload].
type DirectiveKey string

const (
	DirectiveGameID              DirectiveKey = "GAME_ID"
	DirectiveConfidence          DirectiveKey = "CONFIDENCE"
	DirectiveGenre               DirectiveKey = "GENRE"
	DirectiveGameStatus          DirectiveKey = "GAME_STATUS"
	DirectiveProgress            DirectiveKey = "PROGRESS"
	DirectiveObjective           DirectiveKey = "OBJECTIVE"
	DirectiveSuggestions         DirectiveKey = "SUGGESTIONS"
	DirectiveSubtabUpdate        DirectiveKey = "SUBTAB_UPDATE"
	DirectiveSubtabConsolidate   DirectiveKey = "SUBTAB_CONSOLIDATE"
	DirectiveInsightUpdate       DirectiveKey = "INSIGHT_UPDATE"
	DirectiveInsightModify       DirectiveKey = "INSIGHT_MODIFY_PENDING"
	DirectiveInsightDelete       DirectiveKey = "INSIGHT_DELETE_REQUEST"
	DirectiveTriumph             DirectiveKey = "TRIUMPH"
	DirectiveObjectiveSet        DirectiveKey = "OBJECTIVE_SET"
)

// SubtabUpdate is the payload of a SUBTAB_UPDATE directive.
type SubtabUpdate struct {
	ID      string `json:"id"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
}

// SubtabConsolidate is the payload of a SUBTAB_CONSOLIDATE directive.
type SubtabConsolidate struct {
	SourceIDs []string `json:"source_ids"`
	TargetID  string   `json:"target_id"`
	Title     string   `json:"title,omitempty"`
}

// DirectiveSet is the typed result of parsing one AI response. It is
// ephemeral: built and consumed within a single response-handling cycle.
// Pointer fields distinguish "absent" from zero values; PROGRESS in
// particular is omitted entirely when no value could be extracted.
type DirectiveSet struct {
	GameID         string
	Confidence     string
	Genre          string
	GameStatus     string
	Progress       *int
	Objective      string
	ObjectiveSet   string
	Triumph        string
	Suggestions    []string
	SubtabUpdates  []SubtabUpdate
	Consolidations []SubtabConsolidate
	InsightUpdates []json.RawMessage
	InsightModify  []json.RawMessage
	InsightDeletes []string

	present map[DirectiveKey]bool
}

// MarkPresent records that a directive key was extracted.
func (d *DirectiveSet) MarkPresent(key DirectiveKey) {
	if d.present == nil {
		d.present = make(map[DirectiveKey]bool)
	}
	d.present[key] = true
}

// Has reports whether the given directive key was present in the response.
func (d *DirectiveSet) Has(key DirectiveKey) bool {
	return d.present[key]
}

// Keys returns the directive keys present, in no particular order.
func (d *DirectiveSet) Keys() []DirectiveKey {
	keys := make([]DirectiveKey, 0, len(d.present))
	for k := range d.present {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of distinct directive keys present.
func (d *DirectiveSet) Len() int {
	return len(d.present)
}
