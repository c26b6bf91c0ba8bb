// Package tools runs the capabilities a model may call mid-conversation.
// Execute never fails: every error becomes text the model can read.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mukti-ai/studycore/internal/pkg/safehttp"
)

// DefaultProxyURL is the CORS proxy used to fetch third-party pages.
const DefaultProxyURL = "https://api.allorigins.win/get"

const (
	searchEndpoint = "https://html.duckduckgo.com/html/"
	maxPageChars   = 2000
	maxResults     = 5
	maxBodyBytes   = 5 << 20
	cacheTTL       = 15 * time.Minute
	cacheSize      = 256
)

// Fixed results returned to the model.
const (
	msgSearchFailed = "Search failed."
	msgNoResults    = "No results found."
	msgVisitFailed  = "Failed to visit webpage."
	msgUnknownTool  = "Unknown tool."
)

var tracer = otel.Tracer("github.com/mukti-ai/studycore/internal/tools")

// Option configures an Executor.
type Option func(*Executor)

// WithHTTPClient sets the client used for proxied fetches.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Executor) {
		if c != nil {
			e.client = c
		}
	}
}

// WithProxyURL sets the CORS proxy. An empty URL fetches pages directly
// through a client that refuses private addresses.
func WithProxyURL(u string) Option {
	return func(e *Executor) {
		e.proxyURL = u
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = l
	}
}

// Executor runs tools. It is safe for concurrent use.
type Executor struct {
	client   *http.Client
	direct   *http.Client
	proxyURL string
	cache    *expirable.LRU[string, string]
	logger   *slog.Logger
}

// NewExecutor creates an executor that fetches through DefaultProxyURL.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		client:   &http.Client{Timeout: 15 * time.Second},
		direct:   safehttp.NewClient(15 * time.Second),
		proxyURL: DefaultProxyURL,
		cache:    expirable.NewLRU[string, string](cacheSize, nil, cacheTTL),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs the named tool. Arguments that are missing or of the wrong
// type are treated as empty.
func (e *Executor) Execute(ctx context.Context, name string, args map[string]any) string {
	ctx, span := tracer.Start(ctx, "tools.Execute")
	defer span.End()
	span.SetAttributes(attribute.String("tool.name", name))

	switch name {
	case WebSearch:
		query := stringArg(args, "query")
		return e.cached(name, query, func() (string, bool) { return e.webSearch(ctx, query) })
	case VisitWebpage:
		target := stringArg(args, "url")
		return e.cached(name, target, func() (string, bool) { return e.visitWebpage(ctx, target) })
	case ExecuteCode:
		return simulatedCodeResult
	case WolframAlpha:
		return simulatedWolframResult
	default:
		e.logger.Warn("model called unknown tool", slog.String("tool", name))
		return msgUnknownTool
	}
}

// cached memoizes successful results only, so a transient failure is
// retried on the next call.
func (e *Executor) cached(name, arg string, run func() (string, bool)) string {
	key := name + "\x00" + arg
	if v, ok := e.cache.Get(key); ok {
		return v
	}
	result, ok := run()
	if ok {
		e.cache.Add(key, result)
	}
	return result
}

func (e *Executor) webSearch(ctx context.Context, query string) (string, bool) {
	if strings.TrimSpace(query) == "" {
		return msgSearchFailed, false
	}

	page, err := e.fetch(ctx, searchEndpoint+"?q="+url.QueryEscape(query))
	if err != nil {
		e.logger.Warn("web search failed", slog.String("query", query), slog.String("error", err.Error()))
		return msgSearchFailed, false
	}

	snippets := extractSnippets(page, maxResults)
	if len(snippets) == 0 {
		return msgNoResults, true
	}
	return strings.Join(snippets, "\n\n"), true
}

func (e *Executor) visitWebpage(ctx context.Context, target string) (string, bool) {
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return msgVisitFailed, false
	}

	page, err := e.fetch(ctx, u.String())
	if err != nil {
		e.logger.Warn("visit webpage failed", slog.String("url", target), slog.String("error", err.Error()))
		return msgVisitFailed, false
	}

	text := truncateRunes(visibleText(page), maxPageChars)
	if text == "" {
		return msgVisitFailed, false
	}
	return text, true
}

type proxyResponse struct {
	Contents string `json:"contents"`
}

// fetch returns the raw HTML of target, through the proxy when configured.
func (e *Executor) fetch(ctx context.Context, target string) (string, error) {
	if e.proxyURL == "" {
		return e.get(ctx, e.direct, target)
	}

	body, err := e.get(ctx, e.client, e.proxyURL+"?url="+url.QueryEscape(target))
	if err != nil {
		return "", err
	}
	var pr proxyResponse
	if err := json.Unmarshal([]byte(body), &pr); err != nil {
		return "", fmt.Errorf("decode proxy response: %w", err)
	}
	return pr.Contents, nil
}

func (e *Executor) get(ctx context.Context, client *http.Client, target string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "studycore/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d from %s", resp.StatusCode, req.URL.Host)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	return string(body), nil
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
