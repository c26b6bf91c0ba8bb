package domain

import (
	"context"
)

// Provider is implemented once per upstream provider family.
type Provider interface {
	Kind() ProviderKind

	// Complete handles one-shot (non-streaming) requests.
	Complete(ctx context.Context, req *CompletionRequest) (*Completion, error)

	// Stream returns a channel of events. Errors that occur before the first
	// byte of the response is read are returned directly; later failures are
	// delivered as a terminal ProviderEvent with Err set.
	// The channel MUST be closed by the provider when done.
	Stream(ctx context.Context, req *CompletionRequest) (<-chan ProviderEvent, error)
}
