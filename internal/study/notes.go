package study

import (
	"context"
	"strings"

	"github.com/mukti-ai/studycore/internal/assistant"
	"github.com/mukti-ai/studycore/internal/domain"
)

const enhancePrompt = `You are MUKTI AI, an elite study material designer. Your task is to transform the provided raw notes into a "Visual Study Guide" that is eye-catching, highly structured, and easy to memorize.
STRICT RULE: Return ONLY the enhanced, structured content. Do NOT include any conversational text, introductions, or conclusions.

Raw Notes to Enhance:
`

var noteSchema = map[string]any{
	"type": "OBJECT",
	"properties": map[string]any{
		"title":   map[string]any{"type": "STRING"},
		"content": map[string]any{"type": "STRING"},
	},
	"required": []string{"title", "content"},
}

// FailedNote is returned when a note cannot be extracted.
var FailedNote = domain.Note{Title: "Error", Content: "Failed."}

const (
	UnsolvedAnswer = "Couldn't solve."
	SolverError    = "Error."
)

// EnhanceNote rewrites raw notes as a structured study guide. Empty input
// returns "" without calling a provider; empty output or failure returns
// content unchanged.
func (s *Service) EnhanceNote(ctx context.Context, content string) (string, error) {
	if content == "" {
		return "", nil
	}
	text, err := s.ai.CallAI(ctx, enhancePrompt+content, assistant.CallOptions{})
	if err != nil {
		if s.degrade("enhance_note", err) {
			return content, nil
		}
		return "", err
	}
	if text = strings.TrimSpace(text); text == "" {
		return content, nil
	}
	return text, nil
}

// ProcessImageToNote extracts a titled note from a photo of study material.
func (s *Service) ProcessImageToNote(ctx context.Context, image domain.InlineImage) (domain.Note, error) {
	note, ok, err := assistant.GenerateStructured[domain.Note](ctx, s.ai,
		"Extract text and format as structured study notes JSON.", noteSchema,
		assistant.CallOptions{Image: &image})
	if err != nil {
		if s.degrade("image_to_note", err) {
			return FailedNote, nil
		}
		return domain.Note{}, err
	}
	if !ok {
		return FailedNote, nil
	}
	return note, nil
}

// SolveProblem works through the problem shown in image. hint is any extra
// instruction from the student.
func (s *Service) SolveProblem(ctx context.Context, image domain.InlineImage, hint string) (string, error) {
	text, err := s.ai.CallAI(ctx, "Academic problem solver context: "+hint, assistant.CallOptions{Image: &image})
	if err != nil {
		if s.degrade("solve", err) {
			return SolverError, nil
		}
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return UnsolvedAnswer, nil
	}
	return text, nil
}
