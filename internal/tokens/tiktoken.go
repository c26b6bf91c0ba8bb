package tokens

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"github.com/mukti-ai/studycore/internal/domain"
)

// Chat framing overhead, per OpenAI's published counting recipe.
const (
	tokensPerMessage = 3
	tokensPerRole    = 1
	tokensPerCall    = 3
	tokensPriming    = 3
)

// TiktokenCounter counts tokens with BPE encodings. Open-weight models on
// Groq and OpenRouter use their own vocabularies, so for them cl100k is an
// approximation that is close enough for rate-limit awareness.
type TiktokenCounter struct {
	matcher    *ModelMatcher
	codecCache map[tokenizer.Encoding]tokenizer.Codec
	cacheMu    sync.RWMutex
}

// NewTiktokenCounter creates a counter for the OpenAI-compatible model families.
func NewTiktokenCounter() *TiktokenCounter {
	return &TiktokenCounter{
		matcher: NewModelMatcher(
			[]string{
				"gpt-", "o1", "o3", "o4", "openai/",
				"llama", "meta-llama/", "groq/", "qwen", "moonshotai/",
				"deepseek", "mistral", "mixtral", "gemma", "allam",
			},
			[]string{"compound-beta", "compound-beta-mini"},
		),
		codecCache: make(map[tokenizer.Encoding]tokenizer.Codec),
	}
}

// SupportsModel implements Counter.
func (c *TiktokenCounter) SupportsModel(model string) bool {
	return c.matcher.Matches(model)
}

func (c *TiktokenCounter) getCodec(model string) (tokenizer.Codec, error) {
	encoding := modelToEncoding(model)

	c.cacheMu.RLock()
	if cached, ok := c.codecCache[encoding]; ok {
		c.cacheMu.RUnlock()
		return cached, nil
	}
	c.cacheMu.RUnlock()

	codec, err := tokenizer.Get(encoding)
	if err != nil {
		return nil, err
	}

	c.cacheMu.Lock()
	c.codecCache[encoding] = codec
	c.cacheMu.Unlock()

	return codec, nil
}

// modelToEncoding maps model names to encodings.
//
// - O200kBase: gpt-4o, gpt-5, gpt-oss, o-series
// - Cl100kBase: everything else
func modelToEncoding(model string) tokenizer.Encoding {
	model = strings.TrimPrefix(strings.ToLower(model), "openai/")

	switch {
	case strings.HasPrefix(model, "gpt-4o"), strings.HasPrefix(model, "gpt-4.1"),
		strings.HasPrefix(model, "gpt-5"), strings.HasPrefix(model, "gpt-oss"):
		return tokenizer.O200kBase
	case strings.HasPrefix(model, "o1"), strings.HasPrefix(model, "o3"), strings.HasPrefix(model, "o4"):
		return tokenizer.O200kBase
	default:
		return tokenizer.Cl100kBase
	}
}

func (c *TiktokenCounter) encodeLen(codec tokenizer.Codec, text string) int {
	if text == "" {
		return 0
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return len(text) / 4
	}
	return len(ids)
}

// CountRequest implements Counter.
func (c *TiktokenCounter) CountRequest(req *domain.CompletionRequest) int {
	codec, err := c.getCodec(req.Model)
	if err != nil {
		slog.Warn("tokenizer unavailable, estimating", slog.String("model", req.Model), slog.String("error", err.Error()))
		return NewEstimator().CountRequest(req)
	}

	total := 0
	if req.System != "" {
		total += tokensPerMessage + tokensPerRole + c.encodeLen(codec, req.System)
	}
	for _, msg := range req.Messages {
		total += tokensPerMessage + tokensPerRole
		total += c.encodeLen(codec, msg.Text())
		for _, call := range msg.ToolCalls {
			total += c.encodeLen(codec, call.Name) + c.encodeLen(codec, call.RawArguments) + tokensPerCall
		}
	}
	for _, tool := range req.Tools {
		total += c.encodeLen(codec, tool.Name) + c.encodeLen(codec, tool.Description)
		total += 7 // overhead per tool definition
	}
	return total + tokensPriming
}

// CountText implements Counter.
func (c *TiktokenCounter) CountText(model, text string) int {
	codec, err := c.getCodec(model)
	if err != nil {
		return NewEstimator().CountText(model, text)
	}
	return c.encodeLen(codec, text)
}
