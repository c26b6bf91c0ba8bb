package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/mukti-ai/studycore/internal/domain"
	"github.com/mukti-ai/studycore/internal/sse"
)

// DefaultBaseURL is the public Gemini API endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

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

// Client is an HTTP client for the Gemini REST API. The key travels in the
// x-goog-api-key header so it never appears in URLs or logs.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new Gemini API client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GenerateContent performs a one-shot generation.
func (c *Client) GenerateContent(ctx context.Context, model string, req *GenerateContentRequest) (*GenerateContentResponse, error) {
	resp, err := c.post(ctx, c.modelURL(model, "generateContent", nil), req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.ErrTransport(domain.ProviderGemini, "").WithCause(fmt.Errorf("failed to read response: %w", err))
	}

	var result GenerateContentResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, domain.ErrTransport(domain.ProviderGemini, "").
			WithCode(domain.ErrorCodeMalformedResponse).
			WithCause(fmt.Errorf("failed to unmarshal response: %w", err))
	}
	if err := blocked(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

// StreamResult wraps a chunk or error from streaming.
type StreamResult struct {
	Chunk *GenerateContentResponse
	Err   error
}

// StreamGenerateContent starts a streaming generation over SSE.
func (c *Client) StreamGenerateContent(ctx context.Context, model string, req *GenerateContentRequest) (<-chan StreamResult, error) {
	resp, err := c.post(ctx, c.modelURL(model, "streamGenerateContent", url.Values{"alt": {"sse"}}), req)
	if err != nil {
		return nil, err
	}

	out := make(chan StreamResult)
	go c.streamReader(ctx, resp.Body, out)
	return out, nil
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
				send(StreamResult{Err: domain.ErrTransport(domain.ProviderGemini, "stream interrupted").WithCause(err)})
			}
			return
		}
		if strings.TrimSpace(ev.Data) == "" {
			continue
		}

		var chunk GenerateContentResponse
		if err := json.Unmarshal([]byte(ev.Data), &chunk); err != nil {
			send(StreamResult{Err: domain.ErrStreamProtocol(domain.ProviderGemini, "malformed stream payload").
				WithCode(domain.ErrorCodeMalformedResponse).
				WithCause(err)})
			return
		}
		if chunk.Error != nil {
			aiErr := domain.ErrStreamProtocol(domain.ProviderGemini, chunk.Error.Message)
			if code := classify(chunk.Error.Status, chunk.Error.Message, chunk.Error.Code); code != "" {
				aiErr.WithCode(code)
			}
			send(StreamResult{Err: aiErr})
			return
		}
		if err := blocked(&chunk); err != nil {
			send(StreamResult{Err: err})
			return
		}

		if !send(StreamResult{Chunk: &chunk}) {
			return
		}
	}
}

func (c *Client) modelURL(model, method string, query url.Values) string {
	model = strings.TrimPrefix(model, "models/")
	u := fmt.Sprintf("%s/models/%s:%s", c.baseURL, url.PathEscape(model), method)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *Client) post(ctx context.Context, endpoint string, req *GenerateContentRequest) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, domain.ErrTransport(domain.ProviderGemini, "").WithCause(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, statusError(resp.StatusCode, respBody)
	}
	return resp, nil
}

// statusError decodes the error envelope. Streaming endpoints sometimes wrap
// it in a JSON array.
func statusError(status int, body []byte) *domain.AIError {
	var single ErrorResponse
	if err := json.Unmarshal(body, &single); err == nil && single.Error != nil {
		return single.Error.ToDomain(status)
	}
	var list []ErrorResponse
	if err := json.Unmarshal(body, &list); err == nil && len(list) > 0 && list[0].Error != nil {
		return list[0].Error.ToDomain(status)
	}
	aiErr := domain.ErrTransport(domain.ProviderGemini, "").WithStatusCode(status)
	if code := classify("", "", status); code != "" {
		aiErr.WithCode(code)
	}
	return aiErr
}

func blocked(r *GenerateContentResponse) error {
	if len(r.Candidates) == 0 && r.PromptFeedback != nil && r.PromptFeedback.BlockReason != "" {
		return domain.ErrTransport(domain.ProviderGemini, "prompt blocked: "+r.PromptFeedback.BlockReason)
	}
	return nil
}
