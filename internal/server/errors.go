package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mukti-ai/studycore/internal/domain"
	"github.com/mukti-ai/studycore/internal/settings"
)

// errorBody is the JSON error envelope.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind     string `json:"kind"`
	Code     string `json:"code,omitempty"`
	Provider string `json:"provider,omitempty"`
	Message  string `json:"message"`
}

// errBadRequest marks client input errors.
var errBadRequest = errors.New("bad request")

func toErrorDetail(err error) (int, errorDetail) {
	if aiErr, ok := domain.AsAIError(err); ok {
		return aiErr.HTTPStatusCode(), errorDetail{
			Kind:     string(aiErr.Kind),
			Code:     string(aiErr.Code),
			Provider: string(aiErr.Provider),
			Message:  aiErr.Message,
		}
	}
	if errors.Is(err, errBadRequest) || errors.Is(err, settings.ErrInvalid) {
		return http.StatusBadRequest, errorDetail{Kind: "invalid_request", Message: err.Error()}
	}
	return http.StatusInternalServerError, errorDetail{Kind: "internal", Message: err.Error()}
}

// writeError maps err to a status and JSON body and records it in the
// request log.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	AddError(r.Context(), err)
	status, detail := toErrorDetail(err)
	writeJSON(w, status, errorBody{Error: detail})
}

func writeJSONError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Kind: kind, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}
