package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mukti-ai/studycore/internal/domain"
)

func TestClient_GenerateContent(t *testing.T) {
	var got GenerateContentRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-2.5-flash:generateContent" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if k := r.Header.Get("x-goog-api-key"); k != "AIza-test" {
			t.Errorf("x-goog-api-key = %q", k)
		}
		if r.URL.Query().Get("key") != "" {
			t.Error("API key must not be sent in the query string")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"plan","thought":true},{"text":"[1,"},{"text":"2]"}]},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":5,"candidatesTokenCount":3,"totalTokenCount":8}}`)
	}))
	defer srv.Close()

	c := NewClient("AIza-test", WithBaseURL(srv.URL))
	resp, err := c.GenerateContent(context.Background(), "gemini-2.5-flash", &GenerateContentRequest{
		Contents: []Content{{Role: "user", Parts: []Part{
			{InlineData: &InlineData{MimeType: "image/png", Data: "AAAA"}},
			{Text: "list two numbers"},
		}}},
		GenerationConfig: &GenerationConfig{ResponseMimeType: "application/json"},
	})
	if err != nil {
		t.Fatalf("GenerateContent() error = %v", err)
	}
	if text := resp.Text(); text != "[1,2]" {
		t.Errorf("Text() = %q, want %q", text, "[1,2]")
	}
	if u := resp.Usage(); u == nil || u.TotalTokens != 8 {
		t.Errorf("Usage() = %+v", u)
	}
	if got.GenerationConfig == nil || got.GenerationConfig.ResponseMimeType != "application/json" {
		t.Errorf("generationConfig = %+v", got.GenerationConfig)
	}
	if parts := got.Contents[0].Parts; parts[0].InlineData == nil || parts[1].Text != "list two numbers" {
		t.Errorf("parts = %+v", parts)
	}
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode domain.ErrorCode
	}{
		{
			name:     "search grounding unsupported",
			status:   400,
			body:     `{"error":{"code":400,"message":"Search Grounding is not supported.","status":"INVALID_ARGUMENT"}}`,
			wantCode: domain.ErrorCodeToolsUnsupported,
		},
		{
			name:     "array wrapped stream error",
			status:   400,
			body:     `[{"error":{"code":400,"message":"Tool use with function calling is unsupported","status":"INVALID_ARGUMENT"}}]`,
			wantCode: domain.ErrorCodeToolsUnsupported,
		},
		{
			name:     "bad key",
			status:   400,
			body:     `{"error":{"code":400,"message":"API key not valid. Please pass a valid API key.","status":"INVALID_ARGUMENT"}}`,
			wantCode: domain.ErrorCodeInvalidAPIKey,
		},
		{
			name:     "quota",
			status:   429,
			body:     `{"error":{"code":429,"message":"Resource has been exhausted","status":"RESOURCE_EXHAUSTED"}}`,
			wantCode: domain.ErrorCodeRateLimited,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			c := NewClient("k", WithBaseURL(srv.URL))
			_, err := c.StreamGenerateContent(context.Background(), "m", &GenerateContentRequest{})
			if !domain.HasCode(err, tt.wantCode) {
				t.Errorf("error = %v, want code %q", err, tt.wantCode)
			}
			aiErr, _ := domain.AsAIError(err)
			if aiErr == nil || aiErr.Provider != domain.ProviderGemini || aiErr.StatusCode != tt.status {
				t.Errorf("error = %+v", aiErr)
			}
		})
	}
}

func TestClient_StreamGenerateContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("alt") != "sse" {
			t.Errorf("alt = %q, want sse", r.URL.Query().Get("alt"))
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, chunk := range []string{
			`{"candidates":[{"content":{"role":"model","parts":[{"text":"Photo"}]}}]}`,
			`{"candidates":[{"content":{"role":"model","parts":[{"text":"synthesis"}]},"finishReason":"STOP"}],"usageMetadata":{"totalTokenCount":12}}`,
		} {
			fmt.Fprintf(w, "data: %s\r\n\r\n", chunk)
		}
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL))
	stream, err := c.StreamGenerateContent(context.Background(), "gemini-2.5-flash", &GenerateContentRequest{
		Tools: []Tool{{GoogleSearch: &GoogleSearch{}}},
	})
	if err != nil {
		t.Fatalf("StreamGenerateContent() error = %v", err)
	}

	var text string
	var total int
	for res := range stream {
		if res.Err != nil {
			t.Fatalf("stream error: %v", res.Err)
		}
		text += res.Chunk.Text()
		if u := res.Chunk.Usage(); u != nil {
			total = u.TotalTokens
		}
	}
	if text != "Photosynthesis" {
		t.Errorf("text = %q", text)
	}
	if total != 12 {
		t.Errorf("total tokens = %d", total)
	}
}

func TestTool_GoogleSearchEncoding(t *testing.T) {
	b, err := json.Marshal(Tool{GoogleSearch: &GoogleSearch{}})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(b) != `{"googleSearch":{}}` {
		t.Errorf("Marshal() = %s", b)
	}
}
