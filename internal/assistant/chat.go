package assistant

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mukti-ai/studycore/internal/domain"
)

// ChatMessage is a history entry as sent by clients. Role is "user",
// "assistant", or "model".
type ChatMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Normalize builds the turn list for a chat request: entries without text
// or with an unrecognized role are dropped, a leading assistant turn is
// dropped, and message is appended as the final user turn.
func Normalize(history []ChatMessage, message string) []domain.ChatTurn {
	turns := make([]domain.ChatTurn, 0, len(history)+1)
	for _, m := range history {
		if m.Text == "" {
			continue
		}
		role, ok := domain.ParseRole(m.Role)
		if !ok || role == domain.RoleTool {
			continue
		}
		turns = append(turns, domain.TextTurn(role, m.Text))
	}
	if len(turns) > 0 && turns[0].Role == domain.RoleAssistant {
		turns = turns[1:]
	}
	return append(turns, domain.TextTurn(domain.RoleUser, message))
}

// StreamChat answers message in the context of history, streaming events
// as the provider produces them. Errors that occur before the first event
// (credentials, the initial request) are returned directly; later failures
// arrive as a final EventError. The channel is closed when the turn ends or
// ctx is cancelled.
//
// When the model requests a tool, StreamChat emits EventTool, runs the
// tool, sends the result back in a follow-up request without tools, emits
// EventDoneTool once that request is accepted, and then streams its output.
// There is at most one tool round trip per call.
func (s *Service) StreamChat(ctx context.Context, history []ChatMessage, message string) (<-chan domain.StreamEvent, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	cfg, err := s.resolver.Resolve(settings, domain.CapabilityText)
	if err != nil {
		return nil, err
	}
	p, err := s.providers.Provider(cfg)
	if err != nil {
		return nil, err
	}

	req := &domain.CompletionRequest{
		Model:    cfg.ModelID,
		Messages: Normalize(history, message),
		Stream:   true,
	}
	if s.chatSystem != nil {
		req.System = s.chatSystem(settings)
	}
	// Gemini grounds with its built-in search; the OpenAI-compatible
	// providers get our tools, filtered per model by the provider.
	if cfg.Kind == domain.ProviderGemini {
		req.Search = true
	} else if s.tools != nil {
		req.Tools = s.tools.Descriptors()
	}

	ctx, span := tracer.Start(ctx, "assistant.StreamChat", trace.WithAttributes(
		attribute.String("ai.provider", string(cfg.Kind)),
		attribute.String("ai.model", cfg.ModelID),
		attribute.Int("chat.turns", len(req.Messages)),
	))

	stream, err := p.Stream(ctx, req)
	if err != nil && req.HasTools() && domain.HasCode(err, domain.ErrorCodeToolCallFailed, domain.ErrorCodeToolsUnsupported) {
		s.logger.Info("retrying chat without tools",
			slog.String("provider", string(cfg.Kind)),
			slog.String("model", cfg.ModelID),
			slog.String("error", err.Error()))
		req = req.WithoutTools()
		stream, err = p.Stream(ctx, req)
	}
	if err != nil {
		recordError(span, err)
		span.End()
		return nil, err
	}

	out := make(chan domain.StreamEvent)
	t := &chatTurn{
		svc:      s,
		provider: p,
		kind:     cfg.Kind,
		out:      out,
	}
	go func() {
		defer close(out)
		defer span.End()
		if err := t.run(ctx, req, stream); err != nil {
			recordError(span, err)
		}
	}()
	return out, nil
}

// chatTurn is the state of one StreamChat call.
type chatTurn struct {
	svc      *Service
	provider domain.Provider
	kind     domain.ProviderKind
	out      chan<- domain.StreamEvent
}

// passResult is what one streamed pass produced besides forwarded deltas.
type passResult struct {
	text  strings.Builder
	usage *domain.Usage
	calls map[int]*domain.ToolInvocation
}

// firstCall returns the lowest-indexed complete tool call, if any.
func (r *passResult) firstCall() *domain.ToolInvocation {
	idx := make([]int, 0, len(r.calls))
	for i := range r.calls {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	for _, i := range idx {
		if r.calls[i].Name != "" {
			return r.calls[i]
		}
	}
	return nil
}

func (t *chatTurn) send(ctx context.Context, ev domain.StreamEvent) bool {
	select {
	case t.out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// fail delivers err as the final event and returns it.
func (t *chatTurn) fail(ctx context.Context, err error) error {
	t.send(ctx, domain.ErrorEvent(err))
	return err
}

func (t *chatTurn) run(ctx context.Context, req *domain.CompletionRequest, stream <-chan domain.ProviderEvent) error {
	first, err := t.pump(ctx, stream, true)
	if err != nil {
		return t.fail(ctx, err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	t.svc.recordUsage(ctx, t.kind, req, first.usage, first.text.String())

	call := first.firstCall()
	if call == nil {
		return nil
	}

	if call.ID == "" {
		call.ID = "call_" + uuid.NewString()
	}
	if !t.send(ctx, domain.ToolEvent(t.label(call.Name))) {
		return ctx.Err()
	}

	args := map[string]any{}
	if call.RawArguments != "" {
		if err := json.Unmarshal([]byte(call.RawArguments), &args); err != nil || args == nil {
			t.svc.logger.Warn("tool arguments are not a JSON object, using {}",
				slog.String("tool", call.Name),
				slog.String("arguments", call.RawArguments))
			args = map[string]any{}
		}
	}

	result := t.runTool(ctx, call.Name, args)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	followUp := req.WithoutTools()
	followUp.Messages = append(append([]domain.ChatTurn(nil), req.Messages...),
		assistantToolTurn(first.text.String(), *call),
		domain.ChatTurn{Role: domain.RoleTool, ToolCallID: call.ID, Content: &result},
	)

	stream, err = t.provider.Stream(ctx, followUp)
	if err != nil {
		return t.fail(ctx, err)
	}
	if !t.send(ctx, domain.DoneToolEvent()) {
		return ctx.Err()
	}

	second, err := t.pump(ctx, stream, false)
	if err != nil {
		return t.fail(ctx, err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	t.svc.recordUsage(ctx, t.kind, followUp, second.usage, second.text.String())
	return nil
}

func (t *chatTurn) label(name string) string {
	if t.svc.tools == nil {
		return name
	}
	return t.svc.tools.Label(name)
}

func (t *chatTurn) runTool(ctx context.Context, name string, args map[string]any) string {
	if t.svc.tools == nil {
		return "Tool " + name + " is not available."
	}
	return t.svc.tools.Execute(ctx, name, args)
}

func assistantToolTurn(text string, call domain.ToolInvocation) domain.ChatTurn {
	turn := domain.ChatTurn{Role: domain.RoleAssistant, ToolCalls: []domain.ToolInvocation{call}}
	if text != "" {
		turn.Content = &text
	}
	return turn
}

// pump forwards text and reasoning deltas in arrival order and collects tool
// call fragments. Tool calls are only collected when collectCalls is set;
// a follow-up pass never starts another round trip.
func (t *chatTurn) pump(ctx context.Context, stream <-chan domain.ProviderEvent, collectCalls bool) (*passResult, error) {
	res := &passResult{calls: map[int]*domain.ToolInvocation{}}
	for {
		var ev domain.ProviderEvent
		var ok bool
		select {
		case ev, ok = <-stream:
		case <-ctx.Done():
			return res, nil
		}
		if !ok {
			return res, nil
		}

		switch {
		case ev.Err != nil:
			return res, ev.Err
		case ev.Usage != nil:
			res.usage = ev.Usage
		case ev.ToolCall != nil:
			if !collectCalls {
				t.svc.logger.Debug("ignoring tool call in follow-up", slog.String("tool", ev.ToolCall.Name))
				continue
			}
			mergeCall(res.calls, ev.ToolCall)
		}

		if ev.ReasoningDelta != "" {
			if !t.send(ctx, domain.ReasoningEvent(ev.ReasoningDelta)) {
				return res, nil
			}
		}
		if ev.ContentDelta != "" {
			res.text.WriteString(ev.ContentDelta)
			if !t.send(ctx, domain.TextEvent(ev.ContentDelta)) {
				return res, nil
			}
		}
	}
}

// mergeCall folds a fragment into the call at its index. The id and name
// are taken from their first occurrence; arguments are concatenated.
func mergeCall(calls map[int]*domain.ToolInvocation, chunk *domain.ToolCallChunk) {
	call, ok := calls[chunk.Index]
	if !ok {
		call = &domain.ToolInvocation{}
		calls[chunk.Index] = call
	}
	if call.ID == "" {
		call.ID = chunk.ID
	}
	if call.Name == "" {
		call.Name = chunk.Name
	}
	call.RawArguments += chunk.Arguments
}
