// Package study implements the study features built on the assistant:
// flashcards, diagrams, note enhancement, and problem solving.
package study

import (
	"log/slog"

	"github.com/mukti-ai/studycore/internal/assistant"
	"github.com/mukti-ai/studycore/internal/domain"
)

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithContextPrompt sets the builder for the personal context appended to
// flashcard prompts.
func WithContextPrompt(fn func() string) Option {
	return func(s *Service) {
		s.contextPrompt = fn
	}
}

// WithImageBaseURL overrides the image generation endpoint.
func WithImageBaseURL(u string) Option {
	return func(s *Service) {
		s.imageBaseURL = u
	}
}

// Service runs study features. Missing credentials are returned as errors
// so the user can be sent to Settings; every other failure degrades to the
// feature's fallback result and is logged.
type Service struct {
	ai            assistant.Caller
	contextPrompt func() string
	imageBaseURL  string
	logger        *slog.Logger
}

// New creates a Service.
func New(ai assistant.Caller, opts ...Option) *Service {
	s := &Service{
		ai:            ai,
		contextPrompt: func() string { return "" },
		imageBaseURL:  DefaultImageBaseURL,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// degrade reports whether err should be replaced by a fallback result.
func (s *Service) degrade(feature string, err error) bool {
	if domain.IsMissingCredential(err) {
		return false
	}
	s.logger.Warn("study feature failed",
		slog.String("feature", feature),
		slog.String("error", err.Error()))
	return true
}
