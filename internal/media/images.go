// Package media turns client-supplied images into inline images for
// providers.
package media

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mukti-ai/studycore/internal/domain"
	"github.com/mukti-ai/studycore/internal/pkg/safehttp"
)

// DefaultMaxSize bounds decoded image size.
const DefaultMaxSize = 20 * 1024 * 1024

// Input is an image as sent by a client: a data URI or raw base64 in Data,
// or a remote URL.
type Input struct {
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	URL      string `json:"url,omitempty"`
}

// IsZero reports whether no image was supplied.
func (in Input) IsZero() bool {
	return in.Data == "" && in.URL == ""
}

// Loader validates images and fetches remote ones.
type Loader struct {
	client  *http.Client
	maxSize int64
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithHTTPClient sets the client used for remote images.
func WithHTTPClient(client *http.Client) LoaderOption {
	return func(l *Loader) {
		l.client = client
	}
}

// WithMaxSize sets the maximum decoded size in bytes.
func WithMaxSize(maxSize int64) LoaderOption {
	return func(l *Loader) {
		l.maxSize = maxSize
	}
}

// NewLoader creates a Loader. Remote images are fetched with a client that
// refuses private addresses unless WithHTTPClient is given.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		client:  safehttp.NewClient(30 * time.Second),
		maxSize: DefaultMaxSize,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load returns in as a validated inline image.
func (l *Loader) Load(ctx context.Context, in Input) (domain.InlineImage, error) {
	switch {
	case strings.HasPrefix(in.Data, "data:"):
		return l.parseDataURL(in.Data)
	case in.Data != "":
		return l.fromBase64(in.Data, in.MimeType)
	case in.URL != "":
		return l.fetch(ctx, in.URL)
	default:
		return domain.InlineImage{}, fmt.Errorf("no image supplied")
	}
}

func (l *Loader) fetch(ctx context.Context, url string) (domain.InlineImage, error) {
	if strings.HasPrefix(url, "data:") {
		return l.parseDataURL(url)
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return domain.InlineImage{}, fmt.Errorf("unsupported URL scheme: must be http:// or https://")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.InlineImage{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return domain.InlineImage{}, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.InlineImage{}, fmt.Errorf("failed to fetch image: status %d", resp.StatusCode)
	}
	if resp.ContentLength > l.maxSize {
		return domain.InlineImage{}, fmt.Errorf("image too large: %d bytes (max %d)", resp.ContentLength, l.maxSize)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, l.maxSize+1))
	if err != nil {
		return domain.InlineImage{}, fmt.Errorf("failed to read image: %w", err)
	}
	if int64(len(data)) > l.maxSize {
		return domain.InlineImage{}, fmt.Errorf("image too large: exceeds %d bytes", l.maxSize)
	}

	mediaType := resp.Header.Get("Content-Type")
	if mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = inferMediaType(url, data)
	}
	if !isSupportedMediaType(mediaType) {
		return domain.InlineImage{}, fmt.Errorf("unsupported media type: %s", mediaType)
	}

	return domain.InlineImage{
		Data:     base64.StdEncoding.EncodeToString(data),
		MimeType: normalizeMediaType(mediaType),
	}, nil
}

// parseDataURL accepts data:<type>;base64,<payload>.
func (l *Loader) parseDataURL(url string) (domain.InlineImage, error) {
	metadata, data, ok := strings.Cut(strings.TrimPrefix(url, "data:"), ",")
	if !ok {
		return domain.InlineImage{}, fmt.Errorf("invalid data URL: missing comma separator")
	}

	parts := strings.Split(metadata, ";")
	isBase64 := false
	for _, part := range parts[1:] {
		if part == "base64" {
			isBase64 = true
			break
		}
	}
	if !isBase64 {
		return domain.InlineImage{}, fmt.Errorf("data URL must be base64 encoded")
	}

	return l.fromBase64(data, parts[0])
}

func (l *Loader) fromBase64(data, mediaType string) (domain.InlineImage, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return domain.InlineImage{}, fmt.Errorf("image is not valid base64: %w", err)
	}
	if int64(len(raw)) > l.maxSize {
		return domain.InlineImage{}, fmt.Errorf("image too large: exceeds %d bytes", l.maxSize)
	}
	if mediaType == "" {
		mediaType = http.DetectContentType(raw)
	}
	if !isSupportedMediaType(mediaType) {
		return domain.InlineImage{}, fmt.Errorf("unsupported media type: %s", mediaType)
	}
	return domain.InlineImage{Data: data, MimeType: normalizeMediaType(mediaType)}, nil
}

// inferMediaType sniffs data, then falls back to the URL extension.
func inferMediaType(url string, data []byte) string {
	if sniffed := http.DetectContentType(data); isSupportedMediaType(sniffed) {
		return sniffed
	}

	urlLower := strings.ToLower(url)
	switch {
	case strings.HasSuffix(urlLower, ".jpg") || strings.HasSuffix(urlLower, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(urlLower, ".png"):
		return "image/png"
	case strings.HasSuffix(urlLower, ".gif"):
		return "image/gif"
	case strings.HasSuffix(urlLower, ".webp"):
		return "image/webp"
	case strings.HasSuffix(urlLower, ".heic"):
		return "image/heic"
	default:
		return "image/jpeg"
	}
}

func isSupportedMediaType(mediaType string) bool {
	switch normalizeMediaType(mediaType) {
	case "image/jpeg", "image/png", "image/gif", "image/webp", "image/heic", "image/heif":
		return true
	default:
		return false
	}
}

func normalizeMediaType(mediaType string) string {
	mainType := strings.Split(mediaType, ";")[0]
	mainType = strings.TrimSpace(strings.ToLower(mainType))

	if mainType == "image/jpg" {
		return "image/jpeg"
	}
	return mainType
}
