package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"

	"github.com/mukti-ai/studycore/internal/assistant"
	"github.com/mukti-ai/studycore/internal/domain"
	"github.com/mukti-ai/studycore/internal/media"
	"github.com/mukti-ai/studycore/internal/settings"
	"github.com/mukti-ai/studycore/internal/study"
)

// maxBodyBytes leaves room for a base64 image at media.DefaultMaxSize.
const maxBodyBytes = 32 << 20

// Assistant is the orchestration surface used by the handlers.
type Assistant interface {
	assistant.Caller
	StreamChat(ctx context.Context, history []assistant.ChatMessage, message string) (<-chan domain.StreamEvent, error)
}

// Study is the study feature surface used by the handlers.
type Study interface {
	GenerateFlashcards(ctx context.Context, source study.Source, payload, mimeType string, count int) ([]domain.Flashcard, error)
	GenerateDiagramCode(ctx context.Context, prompt string) (string, error)
	GenerateDiagramImage(prompt string, seed int64) string
	EnhanceNote(ctx context.Context, content string) (string, error)
	ProcessImageToNote(ctx context.Context, image domain.InlineImage) (domain.Note, error)
	SolveProblem(ctx context.Context, image domain.InlineImage, hint string) (string, error)
}

type handlers struct {
	deps   Deps
	logger *slog.Logger
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func badRequest(msg string) error {
	return fmt.Errorf("%w: %s", errBadRequest, msg)
}

// loadImage returns nil for an absent image.
func (h *handlers) loadImage(ctx context.Context, in media.Input) (*domain.InlineImage, error) {
	if in.IsZero() {
		return nil, nil
	}
	img, err := h.deps.Images.Load(ctx, in)
	if err != nil {
		return nil, badRequest(err.Error())
	}
	return &img, nil
}

func (h *handlers) requireImage(ctx context.Context, in media.Input) (domain.InlineImage, error) {
	img, err := h.loadImage(ctx, in)
	if err != nil {
		return domain.InlineImage{}, err
	}
	if img == nil {
		return domain.InlineImage{}, badRequest("image is required")
	}
	return *img, nil
}

type completeRequest struct {
	Prompt string      `json:"prompt"`
	System string      `json:"system,omitempty"`
	Image  media.Input `json:"image"`
	JSON   bool        `json:"json,omitempty"`
	Schema any         `json:"schema,omitempty"`
	Search bool        `json:"search,omitempty"`
}

func (h *handlers) complete(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, r, badRequest("prompt is required"))
		return
	}
	img, err := h.loadImage(r.Context(), req.Image)
	if err != nil {
		writeError(w, r, err)
		return
	}

	text, err := h.deps.Assistant.CallAI(r.Context(), req.Prompt, assistant.CallOptions{
		System: req.System,
		Image:  img,
		JSON:   req.JSON,
		Schema: req.Schema,
		Search: req.Search,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

type structuredResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data"`
}

func (h *handlers) structured(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" || req.Schema == nil {
		writeError(w, r, badRequest("prompt and schema are required"))
		return
	}
	img, err := h.loadImage(r.Context(), req.Image)
	if err != nil {
		writeError(w, r, err)
		return
	}

	data, ok, err := assistant.GenerateStructured[any](r.Context(), h.deps.Assistant, req.Prompt, req.Schema,
		assistant.CallOptions{System: req.System, Image: img, Search: req.Search})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, structuredResponse{OK: ok, Data: data})
}

type flashcardsRequest struct {
	Source  string      `json:"source"`
	Payload string      `json:"payload"`
	Image   media.Input `json:"image"`
	Count   int         `json:"count,omitempty"`
}

func (h *handlers) flashcards(w http.ResponseWriter, r *http.Request) {
	var req flashcardsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	source, err := study.ParseSource(req.Source)
	if err != nil {
		writeError(w, r, badRequest(err.Error()))
		return
	}

	payload, mimeType := req.Payload, ""
	if source == study.SourceImage {
		img, err := h.requireImage(r.Context(), req.Image)
		if err != nil {
			writeError(w, r, err)
			return
		}
		payload, mimeType = img.Data, img.MimeType
	} else if strings.TrimSpace(payload) == "" {
		writeError(w, r, badRequest("payload is required"))
		return
	}

	cards, err := h.deps.Study.GenerateFlashcards(r.Context(), source, payload, mimeType, req.Count)
	if err != nil {
		writeError(w, r, err)
		return
	}
	AddLogField(r.Context(), "flashcards", fmt.Sprint(len(cards)))
	writeJSON(w, http.StatusOK, map[string]any{"flashcards": cards})
}

type promptRequest struct {
	Prompt string `json:"prompt"`
	Seed   *int64 `json:"seed,omitempty"`
}

func (h *handlers) diagramCode(w http.ResponseWriter, r *http.Request) {
	var req promptRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, r, badRequest("prompt is required"))
		return
	}

	code, err := h.deps.Study.GenerateDiagramCode(r.Context(), req.Prompt)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"code": code})
}

func (h *handlers) diagramImage(w http.ResponseWriter, r *http.Request) {
	var req promptRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, r, badRequest("prompt is required"))
		return
	}

	seed := rand.Int64N(1_000_000_000)
	if req.Seed != nil {
		seed = *req.Seed
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"url":  h.deps.Study.GenerateDiagramImage(req.Prompt, seed),
		"seed": seed,
	})
}

func (h *handlers) enhanceNote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	content, err := h.deps.Study.EnhanceNote(r.Context(), req.Content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"content": content})
}

type imageRequest struct {
	Image   media.Input `json:"image"`
	Context string      `json:"context,omitempty"`
}

func (h *handlers) noteFromImage(w http.ResponseWriter, r *http.Request) {
	var req imageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	img, err := h.requireImage(r.Context(), req.Image)
	if err != nil {
		writeError(w, r, err)
		return
	}

	note, err := h.deps.Study.ProcessImageToNote(r.Context(), img)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func (h *handlers) solve(w http.ResponseWriter, r *http.Request) {
	var req imageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	img, err := h.requireImage(r.Context(), req.Image)
	if err != nil {
		writeError(w, r, err)
		return
	}

	answer, err := h.deps.Study.SolveProblem(r.Context(), img, req.Context)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

func (h *handlers) getSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.deps.Settings.Get(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Redacted())
}

func (h *handlers) putSettings(w http.ResponseWriter, r *http.Request) {
	var patch settings.Patch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, err)
		return
	}

	s, err := settings.Update(r.Context(), h.deps.Settings, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.logger.Info("settings updated",
		slog.String("request_id", GetRequestID(r.Context())),
		slog.String("text_model", s.TextModel),
		slog.String("media_model", s.MediaModel))
	writeJSON(w, http.StatusOK, s.Redacted())
}

func (h *handlers) usage(w http.ResponseWriter, r *http.Request) {
	if h.deps.Usage == nil {
		writeJSONError(w, http.StatusNotFound, "not_found", "usage tracking is disabled")
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Usage.Snapshot())
}
