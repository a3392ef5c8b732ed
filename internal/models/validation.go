package models

// ValidationOutcome is the AI validator's verdict on a submitted correction.
type ValidationOutcome struct {
	IsValid       bool           `json:"is_valid"`
	Reason        string         `json:"reason,omitempty"`
	SuggestedType CorrectionType `json:"suggested_type,omitempty"`
}
