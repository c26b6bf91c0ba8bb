package assistant

import (
	"context"

	"github.com/mukti-ai/studycore/internal/jsonrepair"
)

// Caller sends one-shot prompts. *Service implements it.
type Caller interface {
	CallAI(ctx context.Context, prompt string, opts CallOptions) (string, error)
}

// GenerateStructured requests JSON matching schema and decodes it into T.
// ok is false when the output could not be recovered; callers treat that as
// an empty result. Credential and transport errors are returned as err.
func GenerateStructured[T any](ctx context.Context, c Caller, prompt string, schema any, opts CallOptions) (v T, ok bool, err error) {
	opts.JSON = true
	opts.Schema = schema

	text, err := c.CallAI(ctx, prompt, opts)
	if err != nil {
		return v, false, err
	}

	v, ok = jsonrepair.Decode[T](text)
	return v, ok, nil
}
