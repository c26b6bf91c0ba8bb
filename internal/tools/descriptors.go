package tools

import "github.com/mukti-ai/studycore/internal/domain"

// Tool names.
const (
	WebSearch    = "web_search"
	VisitWebpage = "visit_webpage"
	ExecuteCode  = "execute_code"
	WolframAlpha = "wolfram_alpha"
)

// Placeholder results. No sandbox or math backend is wired; these say so
// plainly so the model does not present them as real output.
const (
	simulatedCodeResult    = "[Simulated] Code execution is not available in this environment. No code was run; reason about the code step by step instead."
	simulatedWolframResult = "[Simulated] Wolfram Alpha is not connected. No query was made; compute the answer directly instead."
)

var labels = map[string]string{
	WebSearch:    "Searching the web",
	VisitWebpage: "Reading webpage",
	ExecuteCode:  "Running code",
	WolframAlpha: "Asking Wolfram Alpha",
}

// Label returns the human-readable label shown while a tool runs.
func Label(name string) string {
	if l, ok := labels[name]; ok {
		return l
	}
	return "Using " + name
}

func objectSchema(prop, description string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			prop: map[string]any{"type": "string", "description": description},
		},
		"required": []string{prop},
	}
}

// Descriptors returns the closed set of tools offered to models.
func Descriptors() []domain.ToolDescriptor {
	return []domain.ToolDescriptor{
		{
			Name:        WebSearch,
			Description: "Search the web for current information. Returns up to five result snippets.",
			Parameters:  objectSchema("query", "The search query"),
		},
		{
			Name:        VisitWebpage,
			Description: "Fetch a webpage and return the beginning of its visible text.",
			Parameters:  objectSchema("url", "Absolute http(s) URL of the page"),
		},
		{
			Name:        ExecuteCode,
			Description: "Run a short code snippet. Currently simulated.",
			Parameters:  objectSchema("code", "Source code to run"),
		},
		{
			Name:        WolframAlpha,
			Description: "Ask Wolfram Alpha a math or science question. Currently simulated.",
			Parameters:  objectSchema("query", "The question to ask"),
		},
	}
}

// Descriptors returns the tools this executor can run.
func (e *Executor) Descriptors() []domain.ToolDescriptor {
	return Descriptors()
}

// Label returns the human-readable label for a tool.
func (e *Executor) Label(name string) string {
	return Label(name)
}
