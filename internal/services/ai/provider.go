package ai

import (
	"context"

	"github.com/otakon/companion/internal/models"
)

// AIProvider is the interface for AI providers
type AIProvider interface {
	// Complete sends a system prompt plus conversation history and returns
	// the assistant's reply text (directive tags included, unparsed).
	Complete(ctx context.Context, systemPrompt string, messages []models.Message) (string, error)

	// SummarizeHistory compresses older conversation messages into a short
	// summary, honoring the word budget given in the system prompt.
	SummarizeHistory(ctx context.Context, systemPrompt string, messages []models.Message) (string, error)

	// ValidateCorrection asks the model whether a user-submitted correction
	// is plausible against the assistant response it targets.
	ValidateCorrection(ctx context.Context, originalResponse, correctionText string) (models.ValidationOutcome, error)
}

// ProviderFactory creates an AI provider based on the provider type
type ProviderFactory func(config map[string]string) (AIProvider, error)

// ProviderRegistry stores available AI providers
type ProviderRegistry struct {
	providers map[string]ProviderFactory
}

// NewProviderRegistry creates a new provider registry
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		providers: make(map[string]ProviderFactory),
	}
}

// Register registers a provider factory
func (r *ProviderRegistry) Register(name string, factory ProviderFactory) {
	r.providers[name] = factory
}

// GetProvider gets a provider by name
func (r *ProviderRegistry) GetProvider(name string, config map[string]string) (AIProvider, error) {
	factory, ok := r.providers[name]
	if !ok {
		return nil, &ErrProviderNotFound{Name: name}
	}

	return factory(config)
}

// ErrProviderNotFound is returned when a provider is not found
type ErrProviderNotFound struct {
	Name string
}

func (e *ErrProviderNotFound) Error() string {
	return "AI provider not found: " + e.Name
}
