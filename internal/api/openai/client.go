package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mukti-ai/studycore/internal/domain"
	"github.com/mukti-ai/studycore/internal/sse"
)

const (
	GroqBaseURL       = "https://api.groq.com/openai/v1"
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"

	userAgent = "studycore/1.0"
)

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimSuffix(baseURL, "/")
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithHeader adds a header sent with every request. OpenRouter uses
// HTTP-Referer and X-Title for attribution.
func WithHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.headers[key] = value
	}
}

// Client talks to one OpenAI-compatible endpoint on behalf of one provider.
type Client struct {
	provider   domain.ProviderKind
	apiKey     string
	baseURL    string
	httpClient *http.Client
	headers    map[string]string
}

// NewClient creates a client. The provider kind picks the default base URL
// and is stamped on every error the client returns.
func NewClient(provider domain.ProviderKind, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		provider:   provider,
		apiKey:     apiKey,
		baseURL:    GroqBaseURL,
		httpClient: http.DefaultClient,
		headers:    map[string]string{},
	}
	if provider == domain.ProviderOpenRouter {
		c.baseURL = OpenRouterBaseURL
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateChatCompletion sends a non-streaming chat completion request.
func (c *Client) CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	req.Stream = false
	req.StreamOptions = nil

	resp, err := c.post(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.ErrTransport(c.provider, "").WithCause(fmt.Errorf("failed to read response: %w", err))
	}

	var result ChatCompletionResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, domain.ErrTransport(c.provider, "").
			WithCode(domain.ErrorCodeMalformedResponse).
			WithCause(fmt.Errorf("failed to unmarshal response: %w", err))
	}
	return &result, nil
}

// StreamChatCompletion sends a streaming request. Errors before the body is
// read are returned directly; everything after arrives on the channel, which
// is closed when the stream ends or ctx is done.
func (c *Client) StreamChatCompletion(ctx context.Context, req *ChatCompletionRequest) (<-chan StreamResult, error) {
	req.Stream = true
	if req.StreamOptions == nil {
		req.StreamOptions = &StreamOptions{IncludeUsage: true}
	}

	resp, err := c.post(ctx, req)
	if err != nil {
		return nil, err
	}

	out := make(chan StreamResult)
	go c.streamReader(ctx, resp.Body, out)
	return out, nil
}

// StreamResult wraps a chunk or error from streaming.
type StreamResult struct {
	Chunk *ChatCompletionChunk
	Err   error
}

func (c *Client) streamReader(ctx context.Context, body io.ReadCloser, out chan<- StreamResult) {
	defer close(out)
	defer body.Close()

	send := func(r StreamResult) bool {
		select {
		case out <- r:
			return true
		case <-ctx.Done():
			return false
		}
	}

	reader := sse.NewReader(body)
	for {
		if ctx.Err() != nil {
			return
		}
		ev, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			if ctx.Err() == nil {
				send(StreamResult{Err: domain.ErrTransport(c.provider, "stream interrupted").WithCause(err)})
			}
			return
		}

		data := strings.TrimSpace(ev.Data)
		if data == "" {
			continue
		}
		if data == sse.Done {
			return
		}

		var chunk ChatCompletionChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			send(StreamResult{Err: domain.ErrStreamProtocol(c.provider, "malformed stream payload").
				WithCode(domain.ErrorCodeMalformedResponse).
				WithCause(err)})
			return
		}

		if chunk.Error != nil {
			send(StreamResult{Err: chunk.Error.ToStreamError(c.provider)})
			return
		}

		if !send(StreamResult{Chunk: &chunk}) {
			return
		}
	}
}

func (c *Client) post(ctx context.Context, req *ChatCompletionRequest) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, domain.ErrTransport(c.provider, "").WithCause(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, c.statusError(resp.StatusCode, respBody)
	}
	return resp, nil
}

// statusError prefers the provider's own message and falls back to the
// generic connection message when the body carries none.
func (c *Client) statusError(status int, body []byte) *domain.AIError {
	if apiErr, err := ParseErrorResponse(body); err == nil && apiErr != nil {
		return apiErr.ToDomain(c.provider, status)
	}
	aiErr := domain.ErrTransport(c.provider, "").WithStatusCode(status)
	if code := classify("", "", "", status); code != "" {
		aiErr.WithCode(code)
	}
	return aiErr
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("User-Agent", userAgent)
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
}
