package generation

import (
	"fmt"
	"slices"

	"github.com/easybewerbung/bewerbung-api/internal/domain"
)

// supportedModels is the static allow-list per provider. Templates are
// checked against it when saved and again at dispatch.
var supportedModels = map[domain.Provider][]string{
	domain.ProviderOpenAI: {
		"gpt-4",
		"gpt-4-turbo",
		"gpt-4o",
		"gpt-4o-mini",
		"gpt-4.1",
		"gpt-4.1-mini",
		"gpt-3.5-turbo",
		"o1",
		"o1-mini",
		"o3-mini",
	},
	domain.ProviderAnthropic: {
		"claude-3-5-haiku-latest",
		"claude-3-5-sonnet-latest",
		"claude-3-7-sonnet-latest",
		"claude-3-opus-latest",
		"claude-sonnet-4-20250514",
		"claude-opus-4-20250514",
	},
	domain.ProviderGoogle: {
		"gemini-1.5-flash",
		"gemini-1.5-pro",
		"gemini-2.0-flash",
		"gemini-2.5-flash",
		"gemini-2.5-pro",
	},
}

// SupportedModels returns a copy of the allow-list for provider.
func SupportedModels(provider domain.Provider) []string {
	return slices.Clone(supportedModels[provider])
}

// ValidateModel returns ErrInvalidModel unless model is allowed for provider.
func ValidateModel(provider domain.Provider, model string) error {
	if !provider.Valid() {
		return fmt.Errorf("%w: unknown provider %q", ErrInvalidModel, provider)
	}
	if !slices.Contains(supportedModels[provider], model) {
		return fmt.Errorf("%w: %q is not available for %s", ErrInvalidModel, model, provider)
	}
	return nil
}
