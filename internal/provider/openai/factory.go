package openai

import (
	"errors"
	"net/http"

	"github.com/mukti-ai/studycore/internal/domain"
	"github.com/mukti-ai/studycore/internal/provider/registry"
)

// OpenRouter attribution headers.
const (
	openRouterReferer = "https://github.com/mukti-ai/studycore"
	openRouterTitle   = "MUKTI AI"
)

// RegisterProviderFactories registers the Groq and OpenRouter factories.
func RegisterProviderFactories() {
	for _, kind := range []domain.ProviderKind{domain.ProviderGroq, domain.ProviderOpenRouter} {
		if registry.IsRegistered(kind) {
			continue
		}
		registry.RegisterFactory(registry.ProviderFactory{
			Kind:           kind,
			Description:    kind.DisplayName() + " OpenAI-compatible chat completions",
			Create:         CreateFromConfig,
			ValidateConfig: ValidateConfig,
		})
	}
}

// CreateFromConfig creates a provider from a resolved configuration.
func CreateFromConfig(cfg domain.ProviderConfig, httpClient *http.Client) (domain.Provider, error) {
	opts := []ProviderOption{
		WithBaseURL(cfg.BaseURL),
		WithHTTPClient(httpClient),
	}
	if cfg.Kind == domain.ProviderOpenRouter {
		opts = append(opts,
			WithHeader("HTTP-Referer", openRouterReferer),
			WithHeader("X-Title", openRouterTitle),
		)
	}
	return New(cfg.Kind, cfg.APIKey, opts...), nil
}

// ValidateConfig validates the provider configuration.
func ValidateConfig(cfg domain.ProviderConfig) error {
	if cfg.Kind != domain.ProviderGroq && cfg.Kind != domain.ProviderOpenRouter {
		return errors.New("provider kind must be groq or openrouter")
	}
	if cfg.APIKey == "" {
		return domain.ErrMissingCredential(cfg.Kind)
	}
	return nil
}
