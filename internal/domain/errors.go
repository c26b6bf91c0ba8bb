// Package domain provides the canonical types shared by the AI core.
package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind is the category of an AIError.
type ErrorKind string

const (
	// ErrorKindMissingCredential means no API key is available for the selected provider.
	ErrorKindMissingCredential ErrorKind = "missing_credential"

	// ErrorKindTransport covers non-2xx responses and connection failures.
	ErrorKindTransport ErrorKind = "transport"

	// ErrorKindStreamProtocol is an in-band error carried inside an SSE payload.
	ErrorKindStreamProtocol ErrorKind = "stream_protocol"
)

// ErrorCode gives transport errors a structured reason so callers never
// have to inspect message text.
type ErrorCode string

const (
	ErrorCodeToolCallFailed    ErrorCode = "tool_use_failed"
	ErrorCodeToolsUnsupported  ErrorCode = "tools_unsupported"
	ErrorCodeRateLimited       ErrorCode = "rate_limited"
	ErrorCodeInvalidAPIKey     ErrorCode = "invalid_api_key"
	ErrorCodeModelNotFound     ErrorCode = "model_not_found"
	ErrorCodeContextLength     ErrorCode = "context_length_exceeded"
	ErrorCodeMalformedResponse ErrorCode = "malformed_response"
)

// AIError is the error type surfaced by the provider layer and the
// orchestrator. Match on it with errors.As.
type AIError struct {
	Kind ErrorKind `json:"kind"`

	// Provider is the provider the failing call was addressed to.
	Provider ProviderKind `json:"provider,omitempty"`

	// Code is an optional structured reason.
	Code ErrorCode `json:"code,omitempty"`

	// Message is the human-readable message, preferably the provider's own.
	Message string `json:"message"`

	// StatusCode is the upstream HTTP status, 0 when not applicable.
	StatusCode int `json:"-"`

	cause error
}

// Error implements the error interface.
func (e *AIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s): %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *AIError) Unwrap() error {
	return e.cause
}

// HTTPStatusCode returns the status the front door should answer with.
func (e *AIError) HTTPStatusCode() int {
	switch e.Kind {
	case ErrorKindMissingCredential:
		return http.StatusUnauthorized
	case ErrorKindStreamProtocol:
		return http.StatusBadGateway
	}

	switch e.StatusCode {
	case http.StatusTooManyRequests, http.StatusBadRequest, http.StatusUnauthorized,
		http.StatusForbidden, http.StatusNotFound, http.StatusRequestEntityTooLarge:
		return e.StatusCode
	default:
		return http.StatusBadGateway
	}
}

// WithCode adds a structured code to the error.
func (e *AIError) WithCode(code ErrorCode) *AIError {
	e.Code = code
	return e
}

// WithStatusCode records the upstream HTTP status.
func (e *AIError) WithStatusCode(code int) *AIError {
	e.StatusCode = code
	return e
}

// WithCause records the underlying error for errors.Is/As.
func (e *AIError) WithCause(err error) *AIError {
	e.cause = err
	return e
}

// ErrMissingCredential builds the error shown when no key is configured for
// a provider. The message is meant to be rendered to the user verbatim.
func ErrMissingCredential(provider ProviderKind) *AIError {
	return &AIError{
		Kind:     ErrorKindMissingCredential,
		Provider: provider,
		Message:  fmt.Sprintf("%s API key is missing. Please add it in Settings!", provider.DisplayName()),
	}
}

// ErrTransport builds a transport error. An empty message falls back to a
// generic "failed to connect" text.
func ErrTransport(provider ProviderKind, message string) *AIError {
	if message == "" {
		message = fmt.Sprintf("failed to connect to %s", provider.DisplayName())
	}
	return &AIError{
		Kind:     ErrorKindTransport,
		Provider: provider,
		Message:  message,
	}
}

// ErrStreamProtocol builds an error for an in-band SSE error payload.
func ErrStreamProtocol(provider ProviderKind, message string) *AIError {
	if message == "" {
		message = "stream reported an error"
	}
	return &AIError{
		Kind:     ErrorKindStreamProtocol,
		Provider: provider,
		Message:  message,
	}
}

// AsAIError unwraps err into an *AIError.
func AsAIError(err error) (*AIError, bool) {
	var aiErr *AIError
	if errors.As(err, &aiErr) {
		return aiErr, true
	}
	return nil, false
}

// IsMissingCredential reports whether err is a MissingCredential error.
func IsMissingCredential(err error) bool {
	aiErr, ok := AsAIError(err)
	return ok && aiErr.Kind == ErrorKindMissingCredential
}

// HasCode reports whether err is an AIError carrying one of the given codes.
func HasCode(err error, codes ...ErrorCode) bool {
	aiErr, ok := AsAIError(err)
	if !ok {
		return false
	}
	for _, c := range codes {
		if aiErr.Code == c {
			return true
		}
	}
	return false
}
