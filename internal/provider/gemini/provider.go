// Package gemini adapts the Gemini REST API to domain.Provider.
package gemini

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	geminiapi "github.com/mukti-ai/studycore/internal/api/gemini"
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

// Provider implements domain.Provider for Gemini.
type Provider struct {
	client     *geminiapi.Client
	baseURL    string
	httpClient *http.Client
}

// New creates a Gemini provider.
func New(apiKey string, opts ...ProviderOption) *Provider {
	p := &Provider{}
	for _, opt := range opts {
		opt(p)
	}
	p.client = geminiapi.NewClient(apiKey,
		geminiapi.WithBaseURL(p.baseURL),
		geminiapi.WithHTTPClient(p.httpClient),
	)
	return p
}

// Kind implements domain.Provider.
func (p *Provider) Kind() domain.ProviderKind {
	return domain.ProviderGemini
}

// Complete implements domain.Provider.
func (p *Provider) Complete(ctx context.Context, req *domain.CompletionRequest) (*domain.Completion, error) {
	resp, err := p.client.GenerateContent(ctx, req.Model, toAPIRequest(req))
	if err != nil {
		return nil, err
	}
	model := resp.ModelVersion
	if model == "" {
		model = req.Model
	}
	return &domain.Completion{
		Text:  resp.Text(),
		Model: model,
		Usage: resp.Usage(),
	}, nil
}

// Stream implements domain.Provider. Function calls arrive whole, so each
// becomes a single ToolCallChunk with a generated id.
func (p *Provider) Stream(ctx context.Context, req *domain.CompletionRequest) (<-chan domain.ProviderEvent, error) {
	stream, err := p.client.StreamGenerateContent(ctx, req.Model, toAPIRequest(req))
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

		var usage *domain.Usage
		callIndex := 0
		for result := range stream {
			if result.Err != nil {
				send(domain.ProviderEvent{Err: result.Err})
				return
			}

			chunk := result.Chunk
			if u := chunk.Usage(); u != nil {
				usage = u
			}
			if len(chunk.Candidates) == 0 {
				continue
			}

			for _, part := range chunk.Candidates[0].Content.Parts {
				var ev domain.ProviderEvent
				switch {
				case part.FunctionCall != nil:
					args, _ := json.Marshal(part.FunctionCall.Args)
					ev.ToolCall = &domain.ToolCallChunk{
						Index:     callIndex,
						ID:        "call_" + uuid.NewString(),
						Name:      part.FunctionCall.Name,
						Arguments: string(args),
					}
					callIndex++
				case part.Thought:
					ev.ReasoningDelta = part.Text
				case part.Text != "":
					ev.ContentDelta = part.Text
				default:
					continue
				}
				if !send(ev) {
					return
				}
			}
		}

		// Gemini repeats cumulative usage on every chunk; report it once.
		if usage != nil {
			send(domain.ProviderEvent{Usage: usage})
		}
	}()

	return out, nil
}

func toAPIRequest(req *domain.CompletionRequest) *geminiapi.GenerateContentRequest {
	apiReq := &geminiapi.GenerateContentRequest{}

	if req.System != "" {
		apiReq.SystemInstruction = &geminiapi.Content{
			Parts: []geminiapi.Part{{Text: req.System}},
		}
	}

	// Gemini rejects a response MIME type combined with tools.
	nativeJSON := req.Format == domain.FormatJSON && !req.HasTools()
	var suffix string
	if req.Format == domain.FormatJSON && !nativeJSON {
		suffix = "\n\n" + req.JSONInstruction()
	}

	lastUser := req.LastUserIndex()
	toolNames := map[string]string{}
	for i, turn := range req.Messages {
		switch turn.Role {
		case domain.RoleAssistant:
			content := geminiapi.Content{Role: "model"}
			if text := turn.Text(); text != "" {
				content.Parts = append(content.Parts, geminiapi.Part{Text: text})
			}
			for _, call := range turn.ToolCalls {
				toolNames[call.ID] = call.Name
				var args map[string]any
				if err := json.Unmarshal([]byte(call.RawArguments), &args); err != nil {
					args = map[string]any{}
				}
				content.Parts = append(content.Parts, geminiapi.Part{
					FunctionCall: &geminiapi.FunctionCall{Name: call.Name, Args: args},
				})
			}
			apiReq.Contents = append(apiReq.Contents, content)

		case domain.RoleTool:
			apiReq.Contents = append(apiReq.Contents, geminiapi.Content{
				Role: "user",
				Parts: []geminiapi.Part{{FunctionResponse: &geminiapi.FunctionResponse{
					Name:     toolNames[turn.ToolCallID],
					Response: map[string]string{"result": turn.Text()},
				}}},
			})

		default:
			content := geminiapi.Content{Role: "user"}
			text := turn.Text()
			if i == lastUser {
				if req.Image != nil {
					content.Parts = append(content.Parts, geminiapi.Part{
						InlineData: &geminiapi.InlineData{MimeType: req.Image.MimeType, Data: req.Image.Data},
					})
				}
				text += suffix
			}
			// Text part is always last.
			content.Parts = append(content.Parts, geminiapi.Part{Text: text})
			apiReq.Contents = append(apiReq.Contents, content)
		}
	}

	if req.Search {
		apiReq.Tools = append(apiReq.Tools, geminiapi.Tool{GoogleSearch: &geminiapi.GoogleSearch{}})
	}
	if len(req.Tools) > 0 {
		decls := make([]geminiapi.FunctionDecl, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, geminiapi.FunctionDecl{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			})
		}
		apiReq.Tools = append(apiReq.Tools, geminiapi.Tool{FunctionDeclarations: decls})
	}

	if nativeJSON {
		apiReq.GenerationConfig = &geminiapi.GenerationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   req.Schema,
		}
	}

	return apiReq
}
