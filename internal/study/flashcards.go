package study

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mukti-ai/studycore/internal/assistant"
	"github.com/mukti-ai/studycore/internal/domain"
)

// Source is where flashcard material comes from.
type Source string

const (
	SourceTopic   Source = "topic"
	SourceImage   Source = "image"
	SourceYouTube Source = "youtube"
)

// ParseSource parses a flashcard source name.
func ParseSource(s string) (Source, error) {
	switch src := Source(strings.ToLower(strings.TrimSpace(s))); src {
	case SourceTopic, SourceImage, SourceYouTube:
		return src, nil
	default:
		return "", fmt.Errorf("unknown flashcard source %q", s)
	}
}

const (
	DefaultFlashcardCount = 8
	MaxFlashcardCount     = 50
)

var flashcardSchema = map[string]any{
	"type": "ARRAY",
	"items": map[string]any{
		"type": "OBJECT",
		"properties": map[string]any{
			"front": map[string]any{"type": "STRING", "description": "The question or term on the front of the card"},
			"back":  map[string]any{"type": "STRING", "description": "The answer or definition on the back of the card"},
		},
		"required": []string{"front", "back"},
	},
}

type cardJSON struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

const cardRules = `
STRICT RULES:
- LENGTH: Keep it SHORT and PUNCHY. Max 15 words for the front, max 30 words for the back.
- FRONT: A single clear concept, question, or term. Use 1-2 relevant emojis. %s
- BACK: The core answer only. Use bullet points or bold text for key terms. No fluff.%s
- FORMATTING: Use Markdown and LaTeX ($...$) for formulas.
- GOAL: Fit perfectly on a mobile flashcard without scrolling.
`

// GenerateFlashcards creates count cards from a topic, a base64 image, or a
// YouTube URL. A count of zero or less means DefaultFlashcardCount. Output
// that cannot be recovered as JSON yields an empty slice.
func (s *Service) GenerateFlashcards(ctx context.Context, source Source, payload, mimeType string, count int) ([]domain.Flashcard, error) {
	if count <= 0 {
		count = DefaultFlashcardCount
	}
	count = min(count, MaxFlashcardCount)

	var (
		prompt string
		opts   assistant.CallOptions
	)
	switch source {
	case SourceTopic:
		prompt = fmt.Sprintf("Generate %d bite-sized, high-impact study flashcards about %q.\n", count, payload) +
			fmt.Sprintf(cardRules, "🧠", "\n- INTERACTIVE: Frame questions to spark curiosity (e.g., \"What's the trick to remember...?\").")
	case SourceImage:
		if mimeType == "" {
			mimeType = "image/jpeg"
		}
		opts.Image = &domain.InlineImage{Data: payload, MimeType: mimeType}
		prompt = fmt.Sprintf("Analyze this image and generate %d bite-sized study flashcards based on its content.\n", count) +
			fmt.Sprintf(cardRules, "📸", "")
	case SourceYouTube:
		opts.Search = true
		prompt = fmt.Sprintf("Search for the content of the following YouTube video and generate %d bite-sized study flashcards: %s\n", count, payload) +
			fmt.Sprintf(cardRules, "🎥", "")
	default:
		return nil, fmt.Errorf("unknown flashcard source %q", source)
	}
	if extra := s.contextPrompt(); extra != "" {
		prompt += "\n" + extra
	}

	raw, ok, err := assistant.GenerateStructured[[]cardJSON](ctx, s.ai, prompt, flashcardSchema, opts)
	if err != nil {
		if s.degrade("flashcards", err) {
			return []domain.Flashcard{}, nil
		}
		return nil, err
	}
	if !ok {
		return []domain.Flashcard{}, nil
	}

	cards := make([]domain.Flashcard, 0, len(raw))
	for _, c := range raw {
		// A truncated final object can survive repair without its answer.
		if c.Front == "" || c.Back == "" {
			continue
		}
		cards = append(cards, domain.Flashcard{
			ID:    uuid.NewString(),
			Front: c.Front,
			Back:  c.Back,
		})
	}
	return cards, nil
}
