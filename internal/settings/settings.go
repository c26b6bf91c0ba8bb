// Package settings provides the user settings read by every AI call.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/mukti-ai/studycore/internal/domain"
	"github.com/mukti-ai/studycore/internal/resolver"
)

// Source supplies the current settings.
type Source interface {
	Get(ctx context.Context) (domain.Settings, error)
}

// Store is a Source that can be written.
type Store interface {
	Source
	Save(ctx context.Context, s domain.Settings) error
}

// Memory is an in-process Store.
type Memory struct {
	mu       sync.RWMutex
	settings domain.Settings
}

// NewMemory creates a store holding initial.
func NewMemory(initial domain.Settings) *Memory {
	return &Memory{settings: initial}
}

// Get implements Source.
func (m *Memory) Get(context.Context) (domain.Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings, nil
}

// Save implements Store.
func (m *Memory) Save(_ context.Context, s domain.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = s
	return nil
}

// Patch is a partial update. Nil fields are left unchanged; an empty string
// clears the field.
type Patch struct {
	Name             *string `json:"name,omitempty"`
	AcademicLevel    *string `json:"academicLevel,omitempty"`
	TextModel        *string `json:"textModel,omitempty"`
	MediaModel       *string `json:"mediaModel,omitempty"`
	GeminiAPIKey     *string `json:"geminiApiKey,omitempty"`
	GroqAPIKey       *string `json:"groqApiKey,omitempty"`
	OpenRouterAPIKey *string `json:"openRouterApiKey,omitempty"`
}

// Apply returns s with p applied.
func (p Patch) Apply(s domain.Settings) domain.Settings {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	set(&s.Name, p.Name)
	set(&s.AcademicLevel, p.AcademicLevel)
	set(&s.TextModel, p.TextModel)
	set(&s.MediaModel, p.MediaModel)
	set(&s.GeminiAPIKey, p.GeminiAPIKey)
	set(&s.GroqAPIKey, p.GroqAPIKey)
	set(&s.OpenRouterAPIKey, p.OpenRouterAPIKey)
	return s
}

// ErrInvalid wraps validation failures.
var ErrInvalid = errors.New("invalid settings")

// Validate checks that both model strings name a known provider.
func Validate(s domain.Settings) error {
	for field, model := range map[string]string{"textModel": s.TextModel, "mediaModel": s.MediaModel} {
		if model == "" {
			continue
		}
		if _, _, err := resolver.ParseModel(model); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalid, field, err)
		}
	}
	return nil
}

// Update applies p to the settings in store and saves the result.
func Update(ctx context.Context, store Store, p Patch) (domain.Settings, error) {
	current, err := store.Get(ctx)
	if err != nil {
		return domain.Settings{}, err
	}
	next := p.Apply(current)
	if err := Validate(next); err != nil {
		return domain.Settings{}, err
	}
	if err := store.Save(ctx, next); err != nil {
		return domain.Settings{}, err
	}
	return next, nil
}
