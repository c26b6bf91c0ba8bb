package study

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/mukti-ai/studycore/internal/assistant"
)

// DefaultImageBaseURL is the Pollinations image endpoint.
const DefaultImageBaseURL = "https://image.pollinations.ai/prompt/"

// FallbackDiagram is rendered when diagram generation fails.
const FallbackDiagram = "graph TD\nA[\"Error\"] --> B[\"Could not generate diagram\"]"

const diagramPrompt = `Generate Mermaid.js diagram code for: %q.

STRICT SYNTAX RULES:
1. Use 'graph TD' for flowcharts or 'mindmap' for concept maps.
2. ALL node labels MUST be wrapped in double quotes and square brackets, e.g., A["My Label"].
3. Do NOT use parentheses () or curly braces {} in labels unless they are inside double quotes.
4. Node IDs should be simple alphanumeric strings (e.g., Node1, StepA).
5. Avoid using special characters like +, -, *, /, (, ), [, ], {, } in node IDs.
6. Return ONLY the raw Mermaid code. No markdown blocks.`

// GenerateDiagramCode returns Mermaid source for prompt.
func (s *Service) GenerateDiagramCode(ctx context.Context, prompt string) (string, error) {
	text, err := s.ai.CallAI(ctx, fmt.Sprintf(diagramPrompt, prompt), assistant.CallOptions{})
	if err != nil {
		if s.degrade("diagram_code", err) {
			return FallbackDiagram, nil
		}
		return "", err
	}
	return StripMermaidFences(text), nil
}

// StripMermaidFences removes Markdown code fences a model may add despite
// instructions.
func StripMermaidFences(code string) string {
	code = strings.ReplaceAll(code, "```mermaid", "")
	code = strings.ReplaceAll(code, "```", "")
	return strings.TrimSpace(code)
}

// GenerateDiagramImage returns the URL of an illustration for prompt. The
// image is rendered by the endpoint when the URL is fetched; the same seed
// reproduces the same image.
func (s *Service) GenerateDiagramImage(prompt string, seed int64) string {
	q := url.Values{}
	q.Set("width", "1024")
	q.Set("height", "1024")
	q.Set("nologo", "true")
	q.Set("seed", strconv.FormatInt(seed, 10))
	subject := "Educational illustration, clean and labeled: " + strings.TrimSpace(prompt)
	return s.imageBaseURL + url.PathEscape(subject) + "?" + q.Encode()
}
