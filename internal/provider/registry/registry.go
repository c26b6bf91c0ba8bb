// Package registry provides provider factory registration and lookup.
//
// Each provider package exposes an explicit registration function that calls
// RegisterFactory; cmd/studycore and tests call provider.RegisterBuiltins so
// nothing depends on init() side effects.
package registry

import (
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/mukti-ai/studycore/internal/domain"
)

// ProviderFactory defines how to create a provider of a specific kind from a
// resolved configuration.
type ProviderFactory struct {
	// Kind is the provider family this factory builds.
	Kind domain.ProviderKind

	// Description provides a human-readable description of the provider.
	Description string

	// Create instantiates a provider. httpClient may be nil.
	Create func(cfg domain.ProviderConfig, httpClient *http.Client) (domain.Provider, error)

	// ValidateConfig performs provider-specific configuration validation.
	// Optional: if nil, no additional validation is performed.
	ValidateConfig func(cfg domain.ProviderConfig) error
}

var (
	factoryMu  sync.RWMutex
	factoryMap = make(map[domain.ProviderKind]ProviderFactory)
)

// RegisterFactory registers a provider factory. It panics on a duplicate or
// incomplete registration.
func RegisterFactory(f ProviderFactory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()

	if f.Kind == "" {
		panic("provider factory kind cannot be empty")
	}
	if f.Create == nil {
		panic(fmt.Sprintf("provider factory %q must have a Create function", f.Kind))
	}
	if _, exists := factoryMap[f.Kind]; exists {
		panic(fmt.Sprintf("provider factory %q already registered", f.Kind))
	}

	factoryMap[f.Kind] = f
}

// GetFactory returns the factory for a provider kind, if registered.
func GetFactory(kind domain.ProviderKind) (ProviderFactory, bool) {
	factoryMu.RLock()
	defer factoryMu.RUnlock()

	f, ok := factoryMap[kind]
	return f, ok
}

// ListFactories returns all registered provider factories sorted by kind.
func ListFactories() []ProviderFactory {
	factoryMu.RLock()
	defer factoryMu.RUnlock()

	result := make([]ProviderFactory, 0, len(factoryMap))
	for _, f := range factoryMap {
		result = append(result, f)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Kind < result[j].Kind
	})
	return result
}

// IsRegistered returns true if a provider kind is registered.
func IsRegistered(kind domain.ProviderKind) bool {
	_, ok := GetFactory(kind)
	return ok
}

// CreateFromFactory validates cfg and creates a provider using the
// registered factory.
func CreateFromFactory(cfg domain.ProviderConfig, httpClient *http.Client) (domain.Provider, error) {
	f, ok := GetFactory(cfg.Kind)
	if !ok {
		return nil, fmt.Errorf("unknown provider kind: %s", cfg.Kind)
	}

	if f.ValidateConfig != nil {
		if err := f.ValidateConfig(cfg); err != nil {
			// Credential errors are shown to the user as-is.
			if domain.IsMissingCredential(err) {
				return nil, err
			}
			return nil, fmt.Errorf("invalid configuration for provider %s: %w", cfg.Kind, err)
		}
	}

	return f.Create(cfg, httpClient)
}

// ClearFactories removes all registered factories (for testing only).
func ClearFactories() {
	factoryMu.Lock()
	defer factoryMu.Unlock()

	factoryMap = make(map[domain.ProviderKind]ProviderFactory)
}
