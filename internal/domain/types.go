package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ProviderKind identifies one of the supported upstream AI providers.
type ProviderKind string

const (
	ProviderGemini     ProviderKind = "gemini"
	ProviderGroq       ProviderKind = "groq"
	ProviderOpenRouter ProviderKind = "openrouter"
)

// ParseProviderKind parses a provider name. Matching is case-insensitive.
func ParseProviderKind(s string) (ProviderKind, error) {
	switch ProviderKind(strings.ToLower(strings.TrimSpace(s))) {
	case ProviderGemini:
		return ProviderGemini, nil
	case ProviderGroq:
		return ProviderGroq, nil
	case ProviderOpenRouter:
		return ProviderOpenRouter, nil
	default:
		return "", fmt.Errorf("unknown provider %q", s)
	}
}

// DisplayName returns the provider name as shown to users.
func (k ProviderKind) DisplayName() string {
	switch k {
	case ProviderGemini:
		return "Gemini"
	case ProviderGroq:
		return "Groq"
	case ProviderOpenRouter:
		return "OpenRouter"
	default:
		return string(k)
	}
}

// ProviderConfig is resolved once per call and not modified afterwards.
type ProviderConfig struct {
	Kind    ProviderKind
	ModelID string
	APIKey  string
	BaseURL string
}

// Capability is the class of work a request performs. It influences the
// default model choice but never the provider.
type Capability string

const (
	CapabilityText   Capability = "text"
	CapabilityVision Capability = "vision"
	CapabilityJSON   Capability = "json"
)

// ResponseFormat selects plain text or structured JSON output.
type ResponseFormat string

const (
	FormatText ResponseFormat = "text"
	FormatJSON ResponseFormat = "json"
)

// InlineImage is a single base64-encoded image attached to a prompt.
type InlineImage struct {
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
}

// DataURI renders the image as a data: URI.
func (img *InlineImage) DataURI() string {
	return "data:" + img.MimeType + ";base64," + img.Data
}

// ToolDescriptor declares a callable capability to the model.
type ToolDescriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  any    `json:"parameters"` // JSON Schema
}

// ToolInvocation is a tool call requested by the model. RawArguments is the
// concatenation of every argument fragment received for this call.
type ToolInvocation struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	RawArguments string `json:"arguments"`
}

// Role is the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ParseRole accepts the roles used by browser clients, including Gemini's
// "model" for assistant turns. Unknown roles return false.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user":
		return RoleUser, true
	case "assistant", "model":
		return RoleAssistant, true
	case "tool":
		return RoleTool, true
	default:
		return "", false
	}
}

// ChatTurn is one unit of conversation history. A nil Content is sent as
// JSON null, which is what an assistant tool-call turn carries.
type ChatTurn struct {
	Role       Role             `json:"role"`
	Content    *string          `json:"content"`
	ToolCallID string           `json:"toolCallId,omitempty"`
	ToolCalls  []ToolInvocation `json:"toolCalls,omitempty"`
}

// Text returns the turn content, or "" when it is null.
func (t ChatTurn) Text() string {
	if t.Content == nil {
		return ""
	}
	return *t.Content
}

// TextTurn builds a turn with string content.
func TextTurn(role Role, text string) ChatTurn {
	return ChatTurn{Role: role, Content: &text}
}

// CompletionRequest is the provider-neutral request built for every call.
// It is constructed fresh per call and never persisted.
type CompletionRequest struct {
	Model    string
	System   string
	Messages []ChatTurn
	Image    *InlineImage // attached to the last user turn
	Format   ResponseFormat
	Schema   any
	Tools    []ToolDescriptor
	// Search enables the provider's built-in web search grounding (Gemini).
	Search bool
	Stream bool
}

// HasTools reports whether the request declares any tools or grounding.
func (r *CompletionRequest) HasTools() bool {
	return len(r.Tools) > 0 || r.Search
}

// WithoutTools returns a shallow copy with tools and grounding removed.
func (r *CompletionRequest) WithoutTools() *CompletionRequest {
	cp := *r
	cp.Tools = nil
	cp.Search = false
	return &cp
}

// LastUserIndex returns the index of the final user turn, or -1.
func (r *CompletionRequest) LastUserIndex() int {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == RoleUser {
			return i
		}
	}
	return -1
}

// JSONInstruction is the text appended to a prompt when structured output
// cannot be requested natively, or when the provider requires the word
// "JSON" to appear in the prompt.
func (r *CompletionRequest) JSONInstruction() string {
	if r.Schema == nil {
		return "Respond with valid JSON only. Do not wrap it in Markdown."
	}
	schema, err := json.Marshal(r.Schema)
	if err != nil {
		return "Respond with valid JSON only. Do not wrap it in Markdown."
	}
	return "Respond with valid JSON only, matching this JSON schema. Do not wrap it in Markdown.\nSchema: " + string(schema)
}

// Usage is token accounting reported by a provider.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion is the result of a non-streaming request.
type Completion struct {
	Text  string
	Model string
	Usage *Usage
}

// ToolCallChunk is a partial tool call received mid-stream.
type ToolCallChunk struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}

// ProviderEvent is the provider-level streaming unit.
type ProviderEvent struct {
	ContentDelta   string
	ReasoningDelta string
	ToolCall       *ToolCallChunk
	Usage          *Usage
	Err            error // terminal; the channel closes after it
}

// StreamEventType tags a StreamEvent.
type StreamEventType int

const (
	EventText StreamEventType = iota
	EventReasoning
	EventTool
	EventDoneTool
	EventError
)

// StreamEvent is what StreamChat yields to callers. Text and Reasoning are
// independent accumulators; Tool and DoneTool bracket a tool execution.
// An EventError is always the last event.
type StreamEvent struct {
	Type StreamEventType
	// Text carries the text delta, reasoning delta, or tool label.
	Text string
	Err  error
}

// TextEvent builds a text delta event.
func TextEvent(s string) StreamEvent { return StreamEvent{Type: EventText, Text: s} }

// ReasoningEvent builds a reasoning delta event.
func ReasoningEvent(s string) StreamEvent { return StreamEvent{Type: EventReasoning, Text: s} }

// ToolEvent builds the event emitted before a tool runs.
func ToolEvent(label string) StreamEvent { return StreamEvent{Type: EventTool, Text: label} }

// DoneToolEvent builds the event emitted once the follow-up request is in flight.
func DoneToolEvent() StreamEvent { return StreamEvent{Type: EventDoneTool} }

// ErrorEvent builds the terminal error event.
func ErrorEvent(err error) StreamEvent { return StreamEvent{Type: EventError, Err: err} }
