// Package tokens estimates token usage for streams whose provider did not
// report it.
package tokens

import (
	"strings"

	"github.com/mukti-ai/studycore/internal/domain"
)

// Counter counts tokens for a family of models.
type Counter interface {
	CountRequest(req *domain.CompletionRequest) int
	CountText(model, text string) int
	SupportsModel(model string) bool
}

// Registry picks a counter per model. Counters are tried in registration
// order; the fallback estimator covers everything else.
type Registry struct {
	counters []Counter
	fallback Counter
}

// NewRegistry returns a registry with the tiktoken counter registered.
func NewRegistry() *Registry {
	r := &Registry{fallback: NewEstimator()}
	r.Register(NewTiktokenCounter())
	return r
}

// Register adds a token counter to the registry.
func (r *Registry) Register(counter Counter) {
	r.counters = append(r.counters, counter)
}

// GetCounter returns the appropriate counter for a model.
func (r *Registry) GetCounter(model string) Counter {
	for _, counter := range r.counters {
		if counter.SupportsModel(model) {
			return counter
		}
	}
	return r.fallback
}

// Estimate approximates the usage of one request and the text it produced.
func (r *Registry) Estimate(req *domain.CompletionRequest, output string) *domain.Usage {
	c := r.GetCounter(req.Model)
	prompt := c.CountRequest(req)
	completion := c.CountText(req.Model, output)
	return &domain.Usage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
	}
}

// Estimator approximates token counts from character counts.
type Estimator struct {
	// CharsPerToken is the average characters per token (default: 4)
	CharsPerToken float64
}

// NewEstimator creates a new token estimator.
func NewEstimator() *Estimator {
	return &Estimator{CharsPerToken: 4.0}
}

// CountRequest implements Counter.
func (e *Estimator) CountRequest(req *domain.CompletionRequest) int {
	totalChars := len(req.System)
	for _, msg := range req.Messages {
		totalChars += len(msg.Role) + len(msg.Text())
		for _, call := range msg.ToolCalls {
			totalChars += len(call.Name) + len(call.RawArguments)
		}
		totalChars += 4 // role tokens + separators
	}
	for _, tool := range req.Tools {
		totalChars += len(tool.Name) + len(tool.Description)
		totalChars += 50 // rough estimate for schema
	}
	return int(float64(totalChars) / e.CharsPerToken)
}

// CountText implements Counter.
func (e *Estimator) CountText(_, text string) int {
	return int(float64(len(text)) / e.CharsPerToken)
}

// SupportsModel returns true; the estimator is the fallback for every model.
func (e *Estimator) SupportsModel(string) bool {
	return true
}

// ModelMatcher matches model names by prefix or exact name. Matching is
// case-insensitive.
type ModelMatcher struct {
	prefixes []string
	exact    []string
}

// NewModelMatcher creates a new model matcher.
func NewModelMatcher(prefixes, exact []string) *ModelMatcher {
	return &ModelMatcher{prefixes: prefixes, exact: exact}
}

// Matches returns true if the model matches any pattern.
func (m *ModelMatcher) Matches(model string) bool {
	model = strings.ToLower(model)
	for _, e := range m.exact {
		if model == e {
			return true
		}
	}
	for _, p := range m.prefixes {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}
