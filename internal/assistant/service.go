// Package assistant orchestrates completion requests across providers:
// one-shot calls, structured output, and streaming chat with a single tool
// round trip.
package assistant

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mukti-ai/studycore/internal/domain"
	"github.com/mukti-ai/studycore/internal/tokens"
)

var tracer = otel.Tracer("github.com/mukti-ai/studycore/internal/assistant")

// SettingsSource supplies the current user settings.
type SettingsSource interface {
	Get(ctx context.Context) (domain.Settings, error)
}

// Resolver selects a provider configuration for a call.
type Resolver interface {
	Resolve(settings domain.Settings, capability domain.Capability) (domain.ProviderConfig, error)
}

// ProviderFactory builds a provider for a resolved configuration.
type ProviderFactory interface {
	Provider(cfg domain.ProviderConfig) (domain.Provider, error)
}

// Toolbox runs tools on behalf of the model.
type Toolbox interface {
	Descriptors() []domain.ToolDescriptor
	Label(name string) string
	Execute(ctx context.Context, name string, args map[string]any) string
}

// UsageRecorder accumulates Groq token usage.
type UsageRecorder interface {
	Add(ctx context.Context, n int64) int64
}

// Option configures a Service.
type Option func(*Service)

// WithToolbox enables tool calling in chat.
func WithToolbox(tb Toolbox) Option {
	return func(s *Service) {
		s.tools = tb
	}
}

// WithUsage records Groq token usage.
func WithUsage(u UsageRecorder) Option {
	return func(s *Service) {
		s.usage = u
	}
}

// WithTokenRegistry sets the estimator used when a stream reports no usage.
func WithTokenRegistry(r *tokens.Registry) Option {
	return func(s *Service) {
		s.tokens = r
	}
}

// WithChatSystem sets the system instruction builder for chat turns.
func WithChatSystem(fn func(domain.Settings) string) Option {
	return func(s *Service) {
		s.chatSystem = fn
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// Service is the orchestration entry point. It is safe for concurrent use;
// each call resolves its own provider.
type Service struct {
	settings   SettingsSource
	resolver   Resolver
	providers  ProviderFactory
	tools      Toolbox
	usage      UsageRecorder
	tokens     *tokens.Registry
	chatSystem func(domain.Settings) string
	logger     *slog.Logger
}

// New creates a Service.
func New(settings SettingsSource, resolver Resolver, providers ProviderFactory, opts ...Option) *Service {
	s := &Service{
		settings:  settings,
		resolver:  resolver,
		providers: providers,
		tokens:    tokens.NewRegistry(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CallOptions shape a one-shot request.
type CallOptions struct {
	System string
	Image  *domain.InlineImage
	JSON   bool
	Schema any
	Tools  []domain.ToolDescriptor
	// Search enables Gemini's Google Search grounding.
	Search bool
	// Capability overrides the capability inferred from the other options.
	Capability domain.Capability
}

func (o CallOptions) capability() domain.Capability {
	switch {
	case o.Capability != "":
		return o.Capability
	case o.Image != nil:
		return domain.CapabilityVision
	case o.JSON:
		return domain.CapabilityJSON
	default:
		return domain.CapabilityText
	}
}

// CallAI sends a single prompt and returns the model's text. Errors are
// *domain.AIError values for credential, transport, and protocol failures.
// There is no automatic retry.
func (s *Service) CallAI(ctx context.Context, prompt string, opts CallOptions) (string, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return "", err
	}

	capability := opts.capability()
	cfg, err := s.resolver.Resolve(settings, capability)
	if err != nil {
		return "", err
	}

	ctx, span := tracer.Start(ctx, "assistant.CallAI", trace.WithAttributes(
		attribute.String("ai.provider", string(cfg.Kind)),
		attribute.String("ai.model", cfg.ModelID),
		attribute.String("ai.capability", string(capability)),
	))
	defer span.End()

	p, err := s.providers.Provider(cfg)
	if err != nil {
		recordError(span, err)
		return "", err
	}

	req := &domain.CompletionRequest{
		Model:    cfg.ModelID,
		System:   opts.System,
		Messages: []domain.ChatTurn{domain.TextTurn(domain.RoleUser, prompt)},
		Image:    opts.Image,
		Format:   domain.FormatText,
		Tools:    opts.Tools,
		Search:   opts.Search,
	}
	if opts.JSON {
		req.Format = domain.FormatJSON
		req.Schema = opts.Schema
	}

	resp, err := p.Complete(ctx, req)
	if err != nil {
		recordError(span, err)
		s.logger.Warn("completion failed",
			slog.String("provider", string(cfg.Kind)),
			slog.String("model", cfg.ModelID),
			slog.String("error", err.Error()))
		return "", err
	}

	s.recordUsage(ctx, cfg.Kind, req, resp.Usage, resp.Text)
	return resp.Text, nil
}

// recordUsage feeds the Groq counter, estimating when the provider did not
// report usage.
func (s *Service) recordUsage(ctx context.Context, kind domain.ProviderKind, req *domain.CompletionRequest, u *domain.Usage, output string) {
	if s.usage == nil || kind != domain.ProviderGroq {
		return
	}
	if u == nil || u.TotalTokens == 0 {
		u = s.tokens.Estimate(req, output)
	}
	s.usage.Add(ctx, int64(u.TotalTokens))
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
