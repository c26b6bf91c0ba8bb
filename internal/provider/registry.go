// Package provider builds domain.Provider instances for resolved provider
// configurations.
//
// # Adding a New Provider
//
// Implement domain.Provider in a subpackage and expose a registration
// function that calls registry.RegisterFactory, then call it from
// RegisterBuiltins:
//
//	func RegisterProviderFactory() {
//	    if registry.IsRegistered(domain.ProviderGemini) {
//	        return
//	    }
//	    registry.RegisterFactory(registry.ProviderFactory{
//	        Kind:        domain.ProviderGemini,
//	        Description: "Google Gemini REST API",
//	        Create:      CreateFromConfig,
//	    })
//	}
package provider

import (
	"net/http"

	"github.com/mukti-ai/studycore/internal/domain"
	"github.com/mukti-ai/studycore/internal/provider/gemini"
	"github.com/mukti-ai/studycore/internal/provider/openai"
	"github.com/mukti-ai/studycore/internal/provider/registry"
)

// RegisterBuiltins registers every provider family. It is idempotent.
func RegisterBuiltins() {
	gemini.RegisterProviderFactory()
	openai.RegisterProviderFactories()
}

// Registry creates providers from resolved configuration. All providers it
// creates share one HTTP client.
type Registry struct {
	httpClient *http.Client
}

// NewRegistry creates a registry. A nil client means http.DefaultClient.
func NewRegistry(httpClient *http.Client) *Registry {
	RegisterBuiltins()
	return &Registry{httpClient: httpClient}
}

// Provider returns a provider for cfg. Providers are cheap and hold no
// connection state of their own, so one is built per call.
func (r *Registry) Provider(cfg domain.ProviderConfig) (domain.Provider, error) {
	return registry.CreateFromFactory(cfg, r.httpClient)
}
