// Package resolver picks the provider, model, and credential for a call.
package resolver

import (
	"fmt"
	"strings"

	"github.com/mukti-ai/studycore/internal/domain"
)

// Default model ids used when settings leave a model unset.
var (
	defaultTextModels = map[domain.ProviderKind]string{
		domain.ProviderGemini:     "gemini-2.5-flash-lite",
		domain.ProviderGroq:       "llama-3.3-70b-versatile",
		domain.ProviderOpenRouter: "meta-llama/llama-3.3-70b-instruct:free",
	}
	defaultVisionModels = map[domain.ProviderKind]string{
		domain.ProviderGemini:     "gemini-2.5-flash-lite",
		domain.ProviderGroq:       "meta-llama/llama-4-scout-17b-16e-instruct",
		domain.ProviderOpenRouter: "meta-llama/llama-3.2-11b-vision-instruct:free",
	}
)

// Option configures a Resolver.
type Option func(*Resolver)

// WithBaseURL overrides the endpoint for a provider.
func WithBaseURL(kind domain.ProviderKind, url string) Option {
	return func(r *Resolver) {
		if url != "" {
			r.baseURLs[kind] = url
		}
	}
}

// Resolver turns settings into a ProviderConfig. It holds only
// configuration and is safe for concurrent use.
type Resolver struct {
	envKeys  map[domain.ProviderKind]string
	baseURLs map[domain.ProviderKind]string
}

// New creates a resolver. envKeys are the environment-configured default
// keys, consulted when settings carry no key for the selected provider.
func New(envKeys map[domain.ProviderKind]string, opts ...Option) *Resolver {
	r := &Resolver{
		envKeys:  make(map[domain.ProviderKind]string, len(envKeys)),
		baseURLs: make(map[domain.ProviderKind]string),
	}
	for k, v := range envKeys {
		r.envKeys[k] = v
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the configuration for one call. The provider is fixed by
// the selected model string; capability only changes the default model id.
func (r *Resolver) Resolve(settings domain.Settings, capability domain.Capability) (domain.ProviderConfig, error) {
	kind, model, err := r.selectModel(settings, capability)
	if err != nil {
		return domain.ProviderConfig{}, err
	}

	key := settings.KeyFor(kind)
	if key == "" {
		key = r.envKeys[kind]
	}
	if key == "" {
		return domain.ProviderConfig{}, domain.ErrMissingCredential(kind)
	}

	return domain.ProviderConfig{
		Kind:    kind,
		ModelID: model,
		APIKey:  key,
		BaseURL: r.baseURLs[kind],
	}, nil
}

func (r *Resolver) selectModel(settings domain.Settings, capability domain.Capability) (domain.ProviderKind, string, error) {
	text := strings.TrimSpace(settings.TextModel)
	media := strings.TrimSpace(settings.MediaModel)

	if capability == domain.CapabilityVision {
		if media != "" {
			return ParseModel(media)
		}
		kind := domain.ProviderGemini
		if text != "" {
			var err error
			if kind, _, err = ParseModel(text); err != nil {
				return "", "", err
			}
		}
		return kind, defaultVisionModels[kind], nil
	}

	if text == "" {
		return domain.ProviderGemini, defaultTextModels[domain.ProviderGemini], nil
	}
	return ParseModel(text)
}

// ParseModel splits a "provider:modelId" string. A string without a known
// provider prefix is a bare Gemini model id. Model ids may themselves
// contain colons, as OpenRouter's ":free" variants do.
func ParseModel(s string) (domain.ProviderKind, string, error) {
	prefix, rest, found := strings.Cut(s, ":")
	if !found {
		return domain.ProviderGemini, s, nil
	}

	kind, err := domain.ParseProviderKind(prefix)
	if err != nil {
		// "vendor/model:variant" is a bare id, "acme:model" is a typo.
		if strings.Contains(prefix, "/") {
			return domain.ProviderGemini, s, nil
		}
		return "", "", fmt.Errorf("model %q: %w", s, err)
	}
	if rest == "" {
		return kind, defaultTextModels[kind], nil
	}
	return kind, rest, nil
}
