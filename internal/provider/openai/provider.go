// Package openai adapts OpenAI-compatible chat completion APIs (Groq and
// OpenRouter) to domain.Provider.
package openai

import (
	"context"
	"net/http"
	"strings"

	openaiapi "github.com/mukti-ai/studycore/internal/api/openai"
	"github.com/mukti-ai/studycore/internal/domain"
)

// ProviderOption configures the provider.
type ProviderOption func(*Provider)

// WithBaseURL sets a custom base URL for the API.
func WithBaseURL(baseURL string) ProviderOption {
	return func(p *Provider) {
		p.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ProviderOption {
	return func(p *Provider) {
		p.httpClient = httpClient
	}
}

// WithHeader adds a header to every upstream request.
func WithHeader(key, value string) ProviderOption {
	return func(p *Provider) {
		p.headers = append(p.headers, [2]string{key, value})
	}
}

// Provider implements domain.Provider for one OpenAI-compatible upstream.
type Provider struct {
	kind       domain.ProviderKind
	client     *openaiapi.Client
	baseURL    string
	httpClient *http.Client
	headers    [][2]string
}

// New creates a provider for kind, which must be Groq or OpenRouter.
func New(kind domain.ProviderKind, apiKey string, opts ...ProviderOption) *Provider {
	p := &Provider{kind: kind}
	for _, opt := range opts {
		opt(p)
	}

	clientOpts := []openaiapi.ClientOption{
		openaiapi.WithBaseURL(p.baseURL),
		openaiapi.WithHTTPClient(p.httpClient),
	}
	for _, h := range p.headers {
		clientOpts = append(clientOpts, openaiapi.WithHeader(h[0], h[1]))
	}

	p.client = openaiapi.NewClient(kind, apiKey, clientOpts...)
	return p
}

// Kind implements domain.Provider.
func (p *Provider) Kind() domain.ProviderKind {
	return p.kind
}

// Complete implements domain.Provider.
func (p *Provider) Complete(ctx context.Context, req *domain.CompletionRequest) (*domain.Completion, error) {
	resp, err := p.client.CreateChatCompletion(ctx, toAPIRequest(req))
	if err != nil {
		return nil, err
	}

	out := &domain.Completion{Model: resp.Model}
	if len(resp.Choices) > 0 {
		out.Text = resp.Choices[0].Message.Content.String()
	}
	if resp.Usage != nil {
		out.Usage = toDomainUsage(resp.Usage)
	}
	return out, nil
}

// Stream implements domain.Provider.
func (p *Provider) Stream(ctx context.Context, req *domain.CompletionRequest) (<-chan domain.ProviderEvent, error) {
	stream, err := p.client.StreamChatCompletion(ctx, toAPIRequest(req))
	if err != nil {
		return nil, err
	}

	out := make(chan domain.ProviderEvent)
	go func() {
		defer close(out)

		send := func(ev domain.ProviderEvent) bool {
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for result := range stream {
			if result.Err != nil {
				send(domain.ProviderEvent{Err: result.Err})
				return
			}

			chunk := result.Chunk
			if u := chunk.ChunkUsage(); u != nil {
				if !send(domain.ProviderEvent{Usage: toDomainUsage(u)}) {
					return
				}
			}
			if len(chunk.Choices) == 0 {
				continue
			}

			delta := chunk.Choices[0].Delta
			if delta.Reasoning != "" {
				if !send(domain.ProviderEvent{ReasoningDelta: delta.Reasoning}) {
					return
				}
			}
			if delta.Content != "" {
				if !send(domain.ProviderEvent{ContentDelta: delta.Content}) {
					return
				}
			}
			for _, tc := range delta.ToolCalls {
				call := &domain.ToolCallChunk{Index: tc.Index, ID: tc.ID}
				if tc.Function != nil {
					call.Name = tc.Function.Name
					call.Arguments = tc.Function.Arguments
				}
				if !send(domain.ProviderEvent{ToolCall: call}) {
					return
				}
			}
		}
	}()

	return out, nil
}

// jsonModeDenylist holds model-name substrings whose endpoints reject
// response_format.
var jsonModeDenylist = []string{"compound", "deepseek"}

// visionMarkers identify models that accept images together with JSON mode.
var visionMarkers = []string{"vision", "llama-4"}

// toolDenylist holds model-name substrings that do not handle function
// calling reliably.
var toolDenylist = []string{"compound", "gemma", "guard", "allam", "whisper"}

// SupportsJSONMode reports whether response_format may be set for model.
func SupportsJSONMode(model string, hasImage bool) bool {
	m := strings.ToLower(model)
	if containsAny(m, jsonModeDenylist) {
		return false
	}
	if hasImage && !containsAny(m, visionMarkers) {
		return false
	}
	return true
}

// SupportsTools reports whether tool declarations may be sent to model.
func SupportsTools(model string) bool {
	return !containsAny(strings.ToLower(model), toolDenylist)
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func toAPIRequest(req *domain.CompletionRequest) *openaiapi.ChatCompletionRequest {
	apiReq := &openaiapi.ChatCompletionRequest{
		Model:    req.Model,
		Messages: make([]openaiapi.ChatCompletionMessage, 0, len(req.Messages)+1),
	}

	if req.System != "" {
		apiReq.Messages = append(apiReq.Messages, openaiapi.ChatCompletionMessage{
			Role:    "system",
			Content: openaiapi.TextContent(req.System),
		})
	}

	// The schema travels in the prompt either way: JSON mode still requires
	// the word JSON in the messages, and without it the prompt is all we have.
	lastUser := req.LastUserIndex()
	var suffix string
	if req.Format == domain.FormatJSON {
		suffix = "\n\n" + req.JSONInstruction()
		if SupportsJSONMode(req.Model, req.Image != nil) {
			apiReq.ResponseFormat = &openaiapi.ResponseFormat{Type: "json_object"}
		}
	}

	for i, turn := range req.Messages {
		msg := openaiapi.ChatCompletionMessage{Role: string(turn.Role)}
		switch turn.Role {
		case domain.RoleTool:
			msg.ToolCallID = turn.ToolCallID
			msg.Content = openaiapi.TextContent(turn.Text())
		case domain.RoleAssistant:
			if turn.Content != nil {
				msg.Content = openaiapi.TextContent(*turn.Content)
			}
			for _, call := range turn.ToolCalls {
				msg.ToolCalls = append(msg.ToolCalls, openaiapi.ToolCall{
					ID:   call.ID,
					Type: "function",
					Function: openaiapi.FunctionCall{
						Name:      call.Name,
						Arguments: call.RawArguments,
					},
				})
			}
		default:
			text := turn.Text()
			if i == lastUser {
				text += suffix
			}
			if i == lastUser && req.Image != nil {
				msg.Content = openaiapi.PartsContent(
					openaiapi.ContentPart{Type: "text", Text: text},
					openaiapi.ContentPart{Type: "image_url", ImageURL: &openaiapi.ImageURL{URL: req.Image.DataURI()}},
				)
			} else {
				msg.Content = openaiapi.TextContent(text)
			}
		}
		apiReq.Messages = append(apiReq.Messages, msg)
	}

	if len(req.Tools) > 0 && SupportsTools(req.Model) {
		for _, t := range req.Tools {
			apiReq.Tools = append(apiReq.Tools, openaiapi.Tool{
				Type: "function",
				Function: openaiapi.FunctionTool{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.Parameters,
				},
			})
		}
		apiReq.ToolChoice = "auto"
	}

	return apiReq
}

func toDomainUsage(u *openaiapi.Usage) *domain.Usage {
	return &domain.Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
}
