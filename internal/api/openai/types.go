// Package openai provides the wire types and HTTP client for OpenAI-compatible
// chat completion APIs (Groq, OpenRouter).
package openai

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/mukti-ai/studycore/internal/domain"
)

// ChatCompletionRequest is the body of POST /chat/completions.
type ChatCompletionRequest struct {
	Model          string                  `json:"model"`
	Messages       []ChatCompletionMessage `json:"messages"`
	MaxTokens      int                     `json:"max_tokens,omitempty"`
	Temperature    *float32                `json:"temperature,omitempty"`
	Stream         bool                    `json:"stream,omitempty"`
	StreamOptions  *StreamOptions          `json:"stream_options,omitempty"`
	Tools          []Tool                  `json:"tools,omitempty"`
	ToolChoice     any                     `json:"tool_choice,omitempty"`
	ResponseFormat *ResponseFormat         `json:"response_format,omitempty"`
}

// StreamOptions configures streaming behavior.
type StreamOptions struct {
	IncludeUsage bool `json:"include_usage,omitempty"`
}

// ChatCompletionMessage is a message in a request or a response.
type ChatCompletionMessage struct {
	Role       string         `json:"role"`
	Content    MessageContent `json:"content"`
	Reasoning  string         `json:"reasoning,omitempty"`
	ToolCalls  []ToolCall     `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

// MessageContent is either a plain string, an array of content parts, or
// null. The zero value encodes as null.
type MessageContent struct {
	Text  *string
	Parts []ContentPart
}

// TextContent builds string content.
func TextContent(s string) MessageContent {
	return MessageContent{Text: &s}
}

// PartsContent builds multi-part content.
func PartsContent(parts ...ContentPart) MessageContent {
	return MessageContent{Parts: parts}
}

// String returns the text of the content, joining text parts.
func (c MessageContent) String() string {
	if c.Text != nil {
		return *c.Text
	}
	var sb strings.Builder
	for _, p := range c.Parts {
		if p.Type == "text" {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// MarshalJSON implements json.Marshaler.
func (c MessageContent) MarshalJSON() ([]byte, error) {
	switch {
	case len(c.Parts) > 0:
		return json.Marshal(c.Parts)
	case c.Text != nil:
		return json.Marshal(*c.Text)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *MessageContent) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*c = MessageContent{}
		return nil
	case data[0] == '[':
		c.Text = nil
		return json.Unmarshal(data, &c.Parts)
	default:
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = MessageContent{Text: &s}
		return nil
	}
}

// ContentPart is one element of multi-part content.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL references an image, typically a data: URI.
type ImageURL struct {
	URL string `json:"url"`
}

// Tool represents a tool that the model can call.
type Tool struct {
	Type     string       `json:"type"`
	Function FunctionTool `json:"function"`
}

// FunctionTool describes a function tool.
type FunctionTool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`
}

// ToolCall represents a tool call made by the model.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall represents a function call.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ResponseFormat specifies the format of the response.
type ResponseFormat struct {
	Type string `json:"type"`
}

// ChatCompletionResponse is a non-streaming response.
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// Choice represents a completion choice.
type Choice struct {
	Index        int                   `json:"index"`
	Message      ChatCompletionMessage `json:"message"`
	FinishReason string                `json:"finish_reason"`
}

// Usage represents token usage information.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatCompletionChunk is one streamed payload. Error is set when the
// provider reports a failure in-band.
type ChatCompletionChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`
	Usage   *Usage        `json:"usage,omitempty"`
	XGroq   *XGroq        `json:"x_groq,omitempty"`
	Error   *APIError     `json:"error,omitempty"`
}

// XGroq carries Groq's vendor extension; its final chunk reports usage here.
type XGroq struct {
	ID    string `json:"id,omitempty"`
	Usage *Usage `json:"usage,omitempty"`
}

// ChunkUsage returns the usage reported by a chunk, from either location.
func (c *ChatCompletionChunk) ChunkUsage() *Usage {
	if c.Usage != nil {
		return c.Usage
	}
	if c.XGroq != nil {
		return c.XGroq.Usage
	}
	return nil
}

// ChunkChoice represents a choice in a streaming chunk.
type ChunkChoice struct {
	Index        int        `json:"index"`
	Delta        ChunkDelta `json:"delta"`
	FinishReason *string    `json:"finish_reason"`
}

// ChunkDelta is the incremental content of a streaming chunk.
type ChunkDelta struct {
	Role      string          `json:"role,omitempty"`
	Content   string          `json:"content,omitempty"`
	Reasoning string          `json:"reasoning,omitempty"`
	ToolCalls []ToolCallChunk `json:"tool_calls,omitempty"`
}

// ToolCallChunk represents a partial tool call in streaming.
type ToolCallChunk struct {
	Index    int                `json:"index"`
	ID       string             `json:"id,omitempty"`
	Type     string             `json:"type,omitempty"`
	Function *FunctionCallChunk `json:"function,omitempty"`
}

// FunctionCallChunk represents a partial function call.
type FunctionCallChunk struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// ErrorResponse is the error envelope returned with non-2xx responses.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// APIError contains error details. Code is a string on Groq and a number on
// OpenRouter.
type APIError struct {
	Message string   `json:"message"`
	Type    string   `json:"type,omitempty"`
	Param   string   `json:"param,omitempty"`
	Code    FlexCode `json:"code,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return string(e.Code) + ": " + e.Message
	}
	return e.Message
}

// FlexCode accepts either a JSON string or a JSON number.
type FlexCode string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexCode) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexCode(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexCode(n.String())
	return nil
}

// ToDomain converts the provider error into a transport AIError.
func (e *APIError) ToDomain(provider domain.ProviderKind, status int) *domain.AIError {
	msg := e.Message
	if msg == "" {
		msg = e.Error()
	}
	aiErr := domain.ErrTransport(provider, msg).WithStatusCode(status)
	if code := classify(e.Type, string(e.Code), e.Message, status); code != "" {
		aiErr.WithCode(code)
	}
	return aiErr
}

// ToStreamError converts an in-band error into a stream protocol AIError.
func (e *APIError) ToStreamError(provider domain.ProviderKind) *domain.AIError {
	aiErr := domain.ErrStreamProtocol(provider, e.Message)
	if code := classify(e.Type, string(e.Code), e.Message, 0); code != "" {
		aiErr.WithCode(code)
	}
	return aiErr
}

// classify maps provider error fields to a structured code. Message matching
// happens here and nowhere else.
func classify(errType, errCode, message string, status int) domain.ErrorCode {
	switch errCode {
	case "tool_use_failed":
		return domain.ErrorCodeToolCallFailed
	case "context_length_exceeded":
		return domain.ErrorCodeContextLength
	case "rate_limit_exceeded":
		return domain.ErrorCodeRateLimited
	case "invalid_api_key":
		return domain.ErrorCodeInvalidAPIKey
	case "model_not_found", "model_decommissioned":
		return domain.ErrorCodeModelNotFound
	}

	msgLower := strings.ToLower(message)
	switch {
	case strings.Contains(msgLower, "failed to call a function"):
		return domain.ErrorCodeToolCallFailed
	case strings.Contains(msgLower, "support tool use"),
		strings.Contains(msgLower, "does not support tools"),
		strings.Contains(msgLower, "tool calling is not supported"):
		return domain.ErrorCodeToolsUnsupported
	case strings.Contains(msgLower, "context length"), strings.Contains(msgLower, "context window"):
		return domain.ErrorCodeContextLength
	}

	switch errType {
	case "rate_limit_error", "rate_limit_exceeded", "tokens":
		return domain.ErrorCodeRateLimited
	case "authentication_error":
		return domain.ErrorCodeInvalidAPIKey
	}

	switch status {
	case 429:
		return domain.ErrorCodeRateLimited
	case 401:
		return domain.ErrorCodeInvalidAPIKey
	}
	if n, err := strconv.Atoi(errCode); err == nil && n == 429 {
		return domain.ErrorCodeRateLimited
	}
	return ""
}

// ParseErrorResponse attempts to parse an error envelope from JSON.
func ParseErrorResponse(data []byte) (*APIError, error) {
	var errResp ErrorResponse
	if err := json.Unmarshal(data, &errResp); err != nil {
		return nil, err
	}
	if errResp.Error == nil {
		return nil, nil
	}
	return errResp.Error, nil
}
