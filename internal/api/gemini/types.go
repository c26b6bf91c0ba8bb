// Package gemini provides the wire types and HTTP client for the Gemini
// generativelanguage REST API.
package gemini

import (
	"strings"

	"github.com/mukti-ai/studycore/internal/domain"
)

// GenerateContentRequest is the body of generateContent and
// streamGenerateContent.
type GenerateContentRequest struct {
	Contents          []Content         `json:"contents"`
	SystemInstruction *Content          `json:"systemInstruction,omitempty"`
	Tools             []Tool            `json:"tools,omitempty"`
	GenerationConfig  *GenerationConfig `json:"generationConfig,omitempty"`
}

// Content is a role plus its parts. Role is "user" or "model".
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Part is a single piece of content. Exactly one payload field is set.
type Part struct {
	Text             string            `json:"text,omitempty"`
	Thought          bool              `json:"thought,omitempty"`
	InlineData       *InlineData       `json:"inlineData,omitempty"`
	FunctionCall     *FunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *FunctionResponse `json:"functionResponse,omitempty"`
}

// InlineData carries base64-encoded binary data.
type InlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// FunctionCall is a tool invocation by the model. Gemini sends arguments
// whole, never as fragments.
type FunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// FunctionResponse returns a tool result to the model.
type FunctionResponse struct {
	Name     string `json:"name"`
	Response any    `json:"response"`
}

// Tool is one entry of the tools array: either built-in Google Search
// grounding or a set of function declarations.
type Tool struct {
	GoogleSearch         *GoogleSearch  `json:"googleSearch,omitempty"`
	FunctionDeclarations []FunctionDecl `json:"functionDeclarations,omitempty"`
}

// GoogleSearch enables search grounding. It has no options.
type GoogleSearch struct{}

// FunctionDecl describes a function the model can call.
type FunctionDecl struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  any    `json:"parameters,omitempty"`
}

// GenerationConfig holds generation parameters.
type GenerationConfig struct {
	ResponseMimeType string   `json:"responseMimeType,omitempty"`
	ResponseSchema   any      `json:"responseSchema,omitempty"`
	MaxOutputTokens  int      `json:"maxOutputTokens,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
}

// GenerateContentResponse is a full response or one streamed chunk.
type GenerateContentResponse struct {
	Candidates     []Candidate     `json:"candidates"`
	UsageMetadata  *UsageMetadata  `json:"usageMetadata,omitempty"`
	PromptFeedback *PromptFeedback `json:"promptFeedback,omitempty"`
	ModelVersion   string          `json:"modelVersion,omitempty"`
	Error          *APIError       `json:"error,omitempty"`
}

// Candidate is one generated response.
type Candidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
}

// UsageMetadata reports token counts.
type UsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// PromptFeedback is set when the prompt itself was blocked.
type PromptFeedback struct {
	BlockReason string `json:"blockReason,omitempty"`
}

// Text joins the text of every non-thought part of the first candidate.
func (r *GenerateContentResponse) Text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		if !p.Thought {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// Usage converts usage metadata to the domain type.
func (r *GenerateContentResponse) Usage() *domain.Usage {
	if r.UsageMetadata == nil {
		return nil
	}
	return &domain.Usage{
		PromptTokens:     r.UsageMetadata.PromptTokenCount,
		CompletionTokens: r.UsageMetadata.CandidatesTokenCount,
		TotalTokens:      r.UsageMetadata.TotalTokenCount,
	}
}

// ErrorResponse is the error envelope returned with non-2xx responses.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// APIError is a google.rpc.Status.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

func (e *APIError) Error() string {
	if e.Status != "" {
		return e.Status + ": " + e.Message
	}
	return e.Message
}

// ToDomain converts the API error into a transport AIError.
func (e *APIError) ToDomain(status int) *domain.AIError {
	if status == 0 {
		status = e.Code
	}
	aiErr := domain.ErrTransport(domain.ProviderGemini, e.Message).WithStatusCode(status)
	if code := classify(e.Status, e.Message, status); code != "" {
		aiErr.WithCode(code)
	}
	return aiErr
}

// classify maps a Gemini error to a structured code. A 400 that mentions
// tools or search is how the API rejects grounding or function calling for a
// key or model that does not support it.
func classify(status, message string, code int) domain.ErrorCode {
	msgLower := strings.ToLower(message)
	switch {
	case code == 400 && (strings.Contains(msgLower, "tool") || strings.Contains(msgLower, "search")):
		return domain.ErrorCodeToolsUnsupported
	case strings.Contains(msgLower, "api key not valid"), status == "UNAUTHENTICATED":
		return domain.ErrorCodeInvalidAPIKey
	case status == "RESOURCE_EXHAUSTED", code == 429:
		return domain.ErrorCodeRateLimited
	case status == "NOT_FOUND", code == 404:
		return domain.ErrorCodeModelNotFound
	case strings.Contains(msgLower, "exceeds the maximum number of tokens"):
		return domain.ErrorCodeContextLength
	}
	return ""
}
