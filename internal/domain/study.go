package domain

import "time"

// Flashcard is a single study card.
type Flashcard struct {
	ID       string `json:"id"`
	Front    string `json:"front"`
	Back     string `json:"back"`
	Mastered bool   `json:"mastered"`
}

// Note is a titled block of study notes.
type Note struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Settings holds the user preferences the AI core reads. TextModel and
// MediaModel use the "provider:modelId" format.
type Settings struct {
	Name             string `json:"name" koanf:"name"`
	AcademicLevel    string `json:"academicLevel" koanf:"academic_level"`
	TextModel        string `json:"textModel" koanf:"text_model"`
	MediaModel       string `json:"mediaModel" koanf:"media_model"`
	GeminiAPIKey     string `json:"geminiApiKey,omitempty" koanf:"gemini_api_key"`
	GroqAPIKey       string `json:"groqApiKey,omitempty" koanf:"groq_api_key"`
	OpenRouterAPIKey string `json:"openRouterApiKey,omitempty" koanf:"openrouter_api_key"`
}

// KeyFor returns the user-supplied key for a provider, if any.
func (s *Settings) KeyFor(kind ProviderKind) string {
	switch kind {
	case ProviderGemini:
		return s.GeminiAPIKey
	case ProviderGroq:
		return s.GroqAPIKey
	case ProviderOpenRouter:
		return s.OpenRouterAPIKey
	default:
		return ""
	}
}

// Redacted returns a copy with API keys masked, for display.
func (s Settings) Redacted() Settings {
	s.GeminiAPIKey = mask(s.GeminiAPIKey)
	s.GroqAPIKey = mask(s.GroqAPIKey)
	s.OpenRouterAPIKey = mask(s.OpenRouterAPIKey)
	return s
}

func mask(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}

// DefaultSettings returns the settings in effect before the user saves any.
func DefaultSettings() Settings {
	return Settings{
		Name:          "Student",
		AcademicLevel: "High School",
		TextModel:     "gemini:gemini-2.5-flash-lite",
		MediaModel:    "gemini:gemini-2.5-flash-lite",
	}
}

// UsageSnapshot is the current state of the Groq usage counter.
type UsageSnapshot struct {
	Tokens    int64     `json:"tokens"`
	Threshold int64     `json:"threshold"`
	Resets    int64     `json:"resets"`
	UpdatedAt time.Time `json:"updatedAt"`
}
