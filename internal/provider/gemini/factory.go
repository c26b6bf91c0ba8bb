package gemini

import (
	"net/http"

	"github.com/mukti-ai/studycore/internal/domain"
	"github.com/mukti-ai/studycore/internal/provider/registry"
)

// RegisterProviderFactory registers the Gemini factory.
func RegisterProviderFactory() {
	if registry.IsRegistered(domain.ProviderGemini) {
		return
	}
	registry.RegisterFactory(registry.ProviderFactory{
		Kind:        domain.ProviderGemini,
		Description: "Google Gemini REST API",
		Create: func(cfg domain.ProviderConfig, httpClient *http.Client) (domain.Provider, error) {
			return New(cfg.APIKey, WithBaseURL(cfg.BaseURL), WithHTTPClient(httpClient)), nil
		},
		ValidateConfig: func(cfg domain.ProviderConfig) error {
			if cfg.APIKey == "" {
				return domain.ErrMissingCredential(domain.ProviderGemini)
			}
			return nil
		},
	})
}
