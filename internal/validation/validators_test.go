package validation

import "testing"

func TestSanitizeText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"trims whitespace", "  hello  ", "hello"},
		{"keeps newline and tab", "a\n\tb", "a\n\tb"},
		{"strips control chars", "a\x00b\x1bc", "abc"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SanitizeText(tt.in); got != tt.want {
				t.Errorf("SanitizeText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestValidateCorrectionScope(t *testing.T) {
	t.Parallel()

	for _, valid := range []string{"game", "global"} {
		if err := ValidateCorrectionScope(valid); err != nil {
			t.Errorf("ValidateCorrectionScope(%q) = %v, want nil", valid, err)
		}
	}
	for _, invalid := range []string{"", "world", "GAME"} {
		if err := ValidateCorrectionScope(invalid); err == nil {
			t.Errorf("ValidateCorrectionScope(%q) = nil, want error", invalid)
		}
	}
}

func TestValidateTier(t *testing.T) {
	t.Parallel()

	for _, valid := range []string{"free", "pro", "vanguard_pro"} {
		if err := ValidateTier(valid); err != nil {
			t.Errorf("ValidateTier(%q) = %v, want nil", valid, err)
		}
	}
	if err := ValidateTier("platinum"); err == nil {
		t.Error("ValidateTier(platinum) = nil, want error")
	}
}

func TestStructValidationWithCustomTags(t *testing.T) {
	t.Parallel()

	type payload struct {
		Scope string `validate:"required,correction_scope"`
		Tier  string `validate:"omitempty,tier"`
	}

	if err := Validate.Struct(payload{Scope: "game", Tier: "pro"}); err != nil {
		t.Errorf("valid payload rejected: %v", err)
	}
	if err := Validate.Struct(payload{Scope: "nope"}); err == nil {
		t.Error("invalid scope accepted")
	}
}
