package tokens

import (
	"testing"

	"github.com/mukti-ai/studycore/internal/domain"
)

func TestEstimator_CountText(t *testing.T) {
	e := NewEstimator()
	if got := e.CountText("any", "abcdefgh"); got != 2 {
		t.Errorf("CountText() = %d, want 2", got)
	}
}

func TestEstimator_CountRequest(t *testing.T) {
	e := NewEstimator()

	tests := []struct {
		name      string
		req       *domain.CompletionRequest
		minTokens int
		maxTokens int
	}{
		{
			name: "simple message",
			req: &domain.CompletionRequest{
				Messages: []domain.ChatTurn{domain.TextTurn(domain.RoleUser, "Hello, how are you?")},
			},
			minTokens: 5,
			maxTokens: 15,
		},
		{
			name: "with tools",
			req: &domain.CompletionRequest{
				Messages: []domain.ChatTurn{domain.TextTurn(domain.RoleUser, "Calculate something")},
				Tools:    []domain.ToolDescriptor{{Name: "wolfram_alpha", Description: "Math"}},
			},
			minTokens: 10,
			maxTokens: 40,
		},
		{
			name:      "empty request",
			req:       &domain.CompletionRequest{},
			minTokens: 0,
			maxTokens: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.CountRequest(tt.req)
			if got < tt.minTokens || got > tt.maxTokens {
				t.Errorf("CountRequest() = %d, want in [%d, %d]", got, tt.minTokens, tt.maxTokens)
			}
		})
	}
}

func TestTiktokenCounter_CountText(t *testing.T) {
	c := NewTiktokenCounter()
	if got := c.CountText("llama-3.3-70b-versatile", "hello world"); got != 2 {
		t.Errorf("CountText() = %d, want 2", got)
	}
	if got := c.CountText("openai/gpt-oss-120b", ""); got != 0 {
		t.Errorf("CountText(empty) = %d, want 0", got)
	}
}

func TestModelToEncoding(t *testing.T) {
	tests := []struct {
		model string
		want  string
	}{
		{"openai/gpt-oss-120b", "o200k_base"},
		{"gpt-4o-mini", "o200k_base"},
		{"llama-3.3-70b-versatile", "cl100k_base"},
		{"qwen/qwen3-32b", "cl100k_base"},
	}
	for _, tt := range tests {
		if got := string(modelToEncoding(tt.model)); got != tt.want {
			t.Errorf("modelToEncoding(%q) = %s, want %s", tt.model, got, tt.want)
		}
	}
}

func TestRegistry_GetCounter(t *testing.T) {
	r := NewRegistry()

	if _, ok := r.GetCounter("llama-3.3-70b-versatile").(*TiktokenCounter); !ok {
		t.Error("llama models should use tiktoken")
	}
	if _, ok := r.GetCounter("gemini-2.5-flash").(*Estimator); !ok {
		t.Error("gemini models should fall back to the estimator")
	}
}

func TestRegistry_Estimate(t *testing.T) {
	r := NewRegistry()
	req := &domain.CompletionRequest{
		Model:    "llama-3.3-70b-versatile",
		System:   "be brief",
		Messages: []domain.ChatTurn{domain.TextTurn(domain.RoleUser, "hello world")},
	}

	u := r.Estimate(req, "hello world")
	if u.CompletionTokens != 2 {
		t.Errorf("CompletionTokens = %d, want 2", u.CompletionTokens)
	}
	if u.PromptTokens <= 2*(tokensPerMessage+tokensPerRole) {
		t.Errorf("PromptTokens = %d, want framing plus content", u.PromptTokens)
	}
	if u.TotalTokens != u.PromptTokens+u.CompletionTokens {
		t.Errorf("TotalTokens = %d, want sum", u.TotalTokens)
	}
}
