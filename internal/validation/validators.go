package validation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/otakon/companion/internal/models"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	// Register custom validators for enums
	if err := Validate.RegisterValidation("correction_scope", validateCorrectionScope); err != nil {
		panic(fmt.Sprintf("failed to register correction_scope validator: %v", err))
	}
	if err := Validate.RegisterValidation("tier", validateTier); err != nil {
		panic(fmt.Sprintf("failed to register tier validator: %v", err))
	}
}

func validateCorrectionScope(fl validator.FieldLevel) bool {
	switch models.CorrectionScope(fl.Field().String()) {
	case models.CorrectionScopeGame, models.CorrectionScopeGlobal:
		return true
	default:
		return false
	}
}

func validateTier(fl validator.FieldLevel) bool {
	switch models.Tier(fl.Field().String()) {
	case models.TierFree, models.TierPro, models.TierVanguardPro:
		return true
	default:
		return false
	}
}

// SanitizeText trims whitespace and removes control characters except
// newline and tab.
func SanitizeText(text string) string {
	text = strings.TrimSpace(text)

	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// ValidateCorrectionScope validates a CorrectionScope string value
func ValidateCorrectionScope(value string) error {
	switch models.CorrectionScope(value) {
	case models.CorrectionScopeGame, models.CorrectionScopeGlobal:
		return nil
	default:
		return fmt.Errorf("invalid scope: %s (must be 'game' or 'global')", value)
	}
}

// ValidateHistoryScope validates a HistoryScope string value
func ValidateHistoryScope(value string) error {
	switch models.HistoryScope(value) {
	case models.HistoryScopeGame, models.HistoryScopeGlobal:
		return nil
	default:
		return fmt.Errorf("invalid history scope: %s (must be 'game' or 'global')", value)
	}
}

// ValidateTier validates a subscription tier string value
func ValidateTier(value string) error {
	switch models.Tier(value) {
	case models.TierFree, models.TierPro, models.TierVanguardPro:
		return nil
	default:
		return fmt.Errorf("invalid tier: %s (must be 'free', 'pro', or 'vanguard_pro')", value)
	}
}
