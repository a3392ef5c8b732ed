package ai

import (
	"strings"
	"testing"

	"github.com/otakon/companion/internal/models"
)

func TestBuildValidationPrompt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		response   string
		correction string
		validate   func(*testing.T, string)
	}{
		{
			name:       "includes both texts",
			response:   "The boss is weak to fire damage.",
			correction: "The boss is actually weak to frost, not fire.",
			validate: func(t *testing.T, prompt string) {
				if !strings.Contains(prompt, "weak to fire damage") {
					t.Error("Expected prompt to include the original response")
				}
				if !strings.Contains(prompt, "weak to frost") {
					t.Error("Expected prompt to include the correction text")
				}
			},
		},
		{
			name:       "asks for JSON verdict with type enum",
			response:   "Some answer.",
			correction: "Some correction.",
			validate: func(t *testing.T, prompt string) {
				if !strings.Contains(prompt, `"is_valid"`) {
					t.Error("Expected prompt to request an is_valid field")
				}
				if !strings.Contains(prompt, `"factual" | "style" | "terminology" | "behavior"`) {
					t.Error("Expected prompt to enumerate correction types")
				}
				if !strings.Contains(prompt, "Return only valid JSON") {
					t.Error("Expected prompt to demand JSON-only output")
				}
			},
		},
		{
			name:       "truncates very long original responses",
			response:   strings.Repeat("a", 5000),
			correction: "Short correction.",
			validate: func(t *testing.T, prompt string) {
				if strings.Contains(prompt, strings.Repeat("a", 2001)) {
					t.Error("Expected original response to be truncated in the prompt")
				}
				if !strings.Contains(prompt, "...") {
					t.Error("Expected truncation ellipsis")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			prompt := buildValidationPrompt(tt.response, tt.correction)
			if tt.validate != nil {
				tt.validate(t, prompt)
			}
		})
	}
}

func TestParseValidationResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    models.ValidationOutcome
		wantErr bool
	}{
		{
			name:    "clean JSON object",
			content: `{"is_valid": true, "suggested_type": "terminology"}`,
			want:    models.ValidationOutcome{IsValid: true, SuggestedType: models.CorrectionTypeTerminology},
		},
		{
			name:    "JSON wrapped in prose is salvaged",
			content: "Here is my verdict:\n{\"is_valid\": false, \"reason\": \"contradicts the game's mechanics\"}\nThanks!",
			want:    models.ValidationOutcome{IsValid: false, Reason: "contradicts the game's mechanics", SuggestedType: models.CorrectionTypeFactual},
		},
		{
			name:    "unknown suggested type defaults to factual",
			content: `{"is_valid": true, "suggested_type": "vibes"}`,
			want:    models.ValidationOutcome{IsValid: true, SuggestedType: models.CorrectionTypeFactual},
		},
		{
			name:    "no JSON at all",
			content: "I cannot evaluate this.",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := parseValidationResponse(tt.content)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("parseValidationResponse() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSanitizePrompt(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", MaxPreviewLength+50)
	got := SanitizePrompt(long, false)
	if len(got) != MaxPreviewLength+3 {
		t.Errorf("Expected preview truncated to %d+ellipsis, got %d", MaxPreviewLength, len(got))
	}

	withControl := "hello\x00world\nline two"
	got = SanitizePrompt(withControl, false)
	if strings.Contains(got, "\x00") {
		t.Error("Expected control characters to be stripped")
	}
	if !strings.Contains(got, "\n") {
		t.Error("Expected newlines to survive sanitization")
	}
}
