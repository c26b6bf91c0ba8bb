package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mukti-ai/studycore/internal/assistant"
	"github.com/mukti-ai/studycore/internal/domain"
)

type chatRequest struct {
	History []assistant.ChatMessage `json:"history"`
	Message string                  `json:"message"`
}

// chatChunk is one SSE data payload. Exactly one field is set.
type chatChunk struct {
	Text      string       `json:"text,omitempty"`
	Reasoning string       `json:"reasoning,omitempty"`
	Tool      string       `json:"tool,omitempty"`
	DoneTool  bool         `json:"doneTool,omitempty"`
	Error     *errorDetail `json:"error,omitempty"`
}

func toChunk(ev domain.StreamEvent) chatChunk {
	switch ev.Type {
	case domain.EventReasoning:
		return chatChunk{Reasoning: ev.Text}
	case domain.EventTool:
		return chatChunk{Tool: ev.Text}
	case domain.EventDoneTool:
		return chatChunk{DoneTool: true}
	case domain.EventError:
		_, detail := toErrorDetail(ev.Err)
		return chatChunk{Error: &detail}
	default:
		return chatChunk{Text: ev.Text}
	}
}

// chat streams a reply as server-sent events terminated by "data: [DONE]".
// Failures before the stream starts are plain JSON errors.
func (h *handlers) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, r, badRequest("message is required"))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "internal", "Streaming not supported")
		return
	}

	events, err := h.deps.Assistant.StreamChat(r.Context(), req.History, req.Message)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for ev := range events {
		if ev.Type == domain.EventError {
			AddError(r.Context(), ev.Err)
		}
		data, err := json.Marshal(toChunk(ev))
		if err != nil {
			h.logger.Error("failed to marshal SSE event", slog.String("error", err.Error()))
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	fmt.Fprintf(w, "data: [DONE]\n\n")
	flusher.Flush()
}
