package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
)

// The grounding quota manager detects schema absence structurally, through
// this interface, so the mapping from pq error codes matters.
type schemaMissing interface {
	SchemaMissing() bool
}

func TestWrapSchemaMissing(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		err         error
		wantMissing bool
	}{
		{
			name:        "undefined table maps to schema missing",
			err:         &pq.Error{Code: "42P01", Message: `relation "user_grounding_usage" does not exist`},
			wantMissing: true,
		},
		{
			name:        "other pq errors pass through",
			err:         &pq.Error{Code: "23505", Message: "duplicate key"},
			wantMissing: false,
		},
		{
			name:        "plain errors pass through",
			err:         errors.New("connection refused"),
			wantMissing: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			wrapped := wrapSchemaMissing(tt.err, "user_grounding_usage")
			var sm schemaMissing
			got := errors.As(wrapped, &sm) && sm.SchemaMissing()
			if got != tt.wantMissing {
				t.Errorf("schema missing = %v, want %v", got, tt.wantMissing)
			}
		})
	}
}

func TestWrapSchemaMissing_SurvivesFurtherWrapping(t *testing.T) {
	t.Parallel()

	base := &pq.Error{Code: "42P01"}
	wrapped := fmt.Errorf("failed to get grounding usage: %w", wrapSchemaMissing(base, "user_grounding_usage"))

	var sm schemaMissing
	if !errors.As(wrapped, &sm) || !sm.SchemaMissing() {
		t.Error("Expected schema-missing detection through an fmt.Errorf wrap")
	}
}

func TestWrapSchemaMissing_NilStaysNil(t *testing.T) {
	t.Parallel()

	if wrapSchemaMissing(nil, "user_behavior") != nil {
		t.Error("Expected nil in, nil out")
	}
}
