package assistant

import (
	"context"
	"errors"
	"testing"

	"github.com/mukti-ai/studycore/internal/domain"
)

func TestCallAI(t *testing.T) {
	tests := []struct {
		name           string
		kind           domain.ProviderKind
		opts           CallOptions
		usage          *domain.Usage
		wantModel      string
		wantFormat     domain.ResponseFormat
		wantUsageAdds  int32
		wantUsageTotal int64
	}{
		{
			name:          "plain text on gemini",
			kind:          domain.ProviderGemini,
			opts:          CallOptions{System: "be brief"},
			usage:         &domain.Usage{TotalTokens: 40},
			wantModel:     "m",
			wantFormat:    domain.FormatText,
			wantUsageAdds: 0,
		},
		{
			name:           "json on groq records reported usage",
			kind:           domain.ProviderGroq,
			opts:           CallOptions{JSON: true, Schema: map[string]any{"type": "OBJECT"}},
			usage:          &domain.Usage{TotalTokens: 40},
			wantModel:      "m",
			wantFormat:     domain.FormatJSON,
			wantUsageAdds:  1,
			wantUsageTotal: 40,
		},
		{
			name:           "image selects the media model",
			kind:           domain.ProviderGroq,
			opts:           CallOptions{Image: &domain.InlineImage{Data: "QUJD", MimeType: "image/png"}},
			usage:          &domain.Usage{TotalTokens: 7},
			wantModel:      "m-vision",
			wantFormat:     domain.FormatText,
			wantUsageAdds:  1,
			wantUsageTotal: 7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(tt.kind, "m")
			h.provider.completes = []completeScript{{resp: &domain.Completion{Text: "answer", Usage: tt.usage}}}

			got, err := h.svc.CallAI(context.Background(), "explain", tt.opts)
			if err != nil {
				t.Fatalf("CallAI() error = %v", err)
			}
			if got != "answer" {
				t.Errorf("CallAI() = %q, want answer", got)
			}

			req := h.provider.recorded()[0]
			if req.Model != tt.wantModel {
				t.Errorf("Model = %q, want %q", req.Model, tt.wantModel)
			}
			if req.Format != tt.wantFormat {
				t.Errorf("Format = %q, want %q", req.Format, tt.wantFormat)
			}
			if req.System != tt.opts.System || req.Image != tt.opts.Image {
				t.Errorf("System/Image not forwarded: %+v", req)
			}
			if tt.opts.JSON && req.Schema == nil {
				t.Error("Schema not forwarded")
			}
			if got := h.usage.adds.Load(); got != tt.wantUsageAdds {
				t.Errorf("usage adds = %d, want %d", got, tt.wantUsageAdds)
			}
			if got := h.usage.total.Load(); got != tt.wantUsageTotal {
				t.Errorf("usage total = %d, want %d", got, tt.wantUsageTotal)
			}
		})
	}
}

func TestCallAI_EstimatesMissingUsage(t *testing.T) {
	h := newHarness(domain.ProviderGroq, "llama-3.3-70b-versatile")
	h.provider.completes = []completeScript{{resp: &domain.Completion{Text: "a reasonably long answer about cells"}}}

	if _, err := h.svc.CallAI(context.Background(), "what is a cell?", CallOptions{}); err != nil {
		t.Fatalf("CallAI() error = %v", err)
	}
	if h.usage.total.Load() <= 0 {
		t.Error("expected an estimated usage to be recorded")
	}
}

func TestCallAI_Errors(t *testing.T) {
	t.Run("missing credential before any request", func(t *testing.T) {
		h := newHarness(domain.ProviderGroq, "m")
		h.svc.resolver = failingResolver{}

		_, err := h.svc.CallAI(context.Background(), "hi", CallOptions{})
		aiErr, ok := domain.AsAIError(err)
		if !ok || aiErr.Message != "Groq API key is missing. Please add it in Settings!" {
			t.Fatalf("CallAI() error = %v", err)
		}
		if len(h.provider.recorded()) != 0 {
			t.Error("provider must not be called")
		}
	})

	t.Run("transport error is returned as is", func(t *testing.T) {
		h := newHarness(domain.ProviderOpenRouter, "m")
		want := domain.ErrTransport(domain.ProviderOpenRouter, "No endpoints found").WithStatusCode(404)
		h.provider.completes = []completeScript{{err: want}}

		_, err := h.svc.CallAI(context.Background(), "hi", CallOptions{})
		if !errors.Is(err, want) {
			t.Fatalf("CallAI() error = %v, want %v", err, want)
		}
		if len(h.provider.recorded()) != 1 {
			t.Error("CallAI must not retry")
		}
	})
}

func TestGenerateStructured(t *testing.T) {
	tests := []struct {
		name     string
		output   string
		wantOK   bool
		wantLen  int
		wantBack string
	}{
		{"fenced", "```json\n[{\"front\":\"a\",\"back\":\"b\"}]\n```", true, 1, "b"},
		{"truncated", `[{"front":"a","back":"b"},{"front":"c","ba`, true, 2, "b"},
		{"bare bracket", "[", true, 0, ""},
		{"prose", "Sorry, I can't help with that.", false, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(domain.ProviderGemini, "m")
			h.provider.completes = []completeScript{{resp: &domain.Completion{Text: tt.output}}}

			cards, ok, err := GenerateStructured[[]domain.Flashcard](context.Background(), h.svc, "cards", map[string]any{"type": "ARRAY"}, CallOptions{})
			if err != nil {
				t.Fatalf("GenerateStructured() error = %v", err)
			}
			if ok != tt.wantOK || len(cards) != tt.wantLen {
				t.Fatalf("GenerateStructured() = %+v, %v; want %d cards, ok %v", cards, ok, tt.wantLen, tt.wantOK)
			}
			if tt.wantLen > 0 && cards[0].Back != tt.wantBack {
				t.Errorf("first card = %+v", cards[0])
			}
			if req := h.provider.recorded()[0]; req.Format != domain.FormatJSON {
				t.Errorf("Format = %q, want json", req.Format)
			}
		})
	}
}
