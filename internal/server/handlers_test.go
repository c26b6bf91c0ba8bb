package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/mukti-ai/studycore/internal/assistant"
	"github.com/mukti-ai/studycore/internal/auth"
	"github.com/mukti-ai/studycore/internal/domain"
	"github.com/mukti-ai/studycore/internal/settings"
	"github.com/mukti-ai/studycore/internal/study"
	"github.com/mukti-ai/studycore/internal/usage"
)

type fakeAssistant struct {
	mu        sync.Mutex
	text      string
	err       error
	events    []domain.StreamEvent
	streamErr error
	calls     []assistant.CallOptions
	prompts   []string
}

func (f *fakeAssistant) CallAI(_ context.Context, prompt string, opts assistant.CallOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	f.calls = append(f.calls, opts)
	return f.text, f.err
}

func (f *fakeAssistant) StreamChat(_ context.Context, _ []assistant.ChatMessage, _ string) (<-chan domain.StreamEvent, error) {
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	ch := make(chan domain.StreamEvent, len(f.events))
	for _, ev := range f.events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

type fakeStudy struct {
	source   study.Source
	payload  string
	mimeType string
	count    int
}

func (f *fakeStudy) GenerateFlashcards(_ context.Context, source study.Source, payload, mimeType string, count int) ([]domain.Flashcard, error) {
	f.source, f.payload, f.mimeType, f.count = source, payload, mimeType, count
	return []domain.Flashcard{{ID: "1", Front: "Q", Back: "A"}}, nil
}

func (f *fakeStudy) GenerateDiagramCode(context.Context, string) (string, error) {
	return "graph TD\nA-->B", nil
}

func (f *fakeStudy) GenerateDiagramImage(prompt string, seed int64) string {
	return study.New(nil).GenerateDiagramImage(prompt, seed)
}

func (f *fakeStudy) EnhanceNote(_ context.Context, content string) (string, error) {
	return "# " + content, nil
}

func (f *fakeStudy) ProcessImageToNote(context.Context, domain.InlineImage) (domain.Note, error) {
	return domain.Note{Title: "Cells", Content: "- nucleus"}, nil
}

func (f *fakeStudy) SolveProblem(_ context.Context, _ domain.InlineImage, hint string) (string, error) {
	return "x = 2 (" + hint + ")", nil
}

type testServer struct {
	ai       *fakeAssistant
	study    *fakeStudy
	settings *settings.Memory
	usage    *usage.Counter
	handler  http.Handler
}

func newTestServer(t *testing.T, authenticator *auth.Authenticator) *testServer {
	t.Helper()
	ts := &testServer{
		ai:       &fakeAssistant{},
		study:    &fakeStudy{},
		settings: settings.NewMemory(domain.DefaultSettings()),
		usage:    usage.NewCounter(1000),
	}
	srv := New(Config{Auth: authenticator}, Deps{
		Assistant: ts.ai,
		Study:     ts.study,
		Settings:  ts.settings,
		Usage:     ts.usage,
	})
	ts.handler = srv.Router
	return ts
}

func (ts *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("Unmarshal(%s) error = %v", rec.Body.String(), err)
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do("GET", "/healthz", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("healthz = %d %s", rec.Code, rec.Body.String())
	}
}

func TestComplete(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.ai.text = "Mitochondria make ATP."

	rec := ts.do("POST", "/v1/complete", `{"prompt":"What do mitochondria do?","search":true,"image":{"data":"data:image/png;base64,QUJD"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp map[string]string
	decodeBody(t, rec, &resp)
	if resp["text"] != "Mitochondria make ATP." {
		t.Errorf("text = %q", resp["text"])
	}

	opts := ts.ai.calls[0]
	if !opts.Search || opts.Image == nil || opts.Image.MimeType != "image/png" || opts.Image.Data != "QUJD" {
		t.Errorf("CallOptions = %+v", opts)
	}
}

func TestComplete_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantKind   string
	}{
		{"empty prompt", `{"prompt":"  "}`, nil, http.StatusBadRequest, "invalid_request"},
		{"malformed json", `{"prompt":`, nil, http.StatusBadRequest, "invalid_request"},
		{"bad image", `{"prompt":"hi","image":{"data":"!!"}}`, nil, http.StatusBadRequest, "invalid_request"},
		{"missing credential", `{"prompt":"hi"}`, domain.ErrMissingCredential(domain.ProviderGroq), http.StatusUnauthorized, "missing_credential"},
		{"transport", `{"prompt":"hi"}`, domain.ErrTransport(domain.ProviderGemini, "boom"), http.StatusBadGateway, "transport"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, nil)
			ts.ai.err = tt.err

			rec := ts.do("POST", "/v1/complete", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			var body errorBody
			decodeBody(t, rec, &body)
			if body.Error.Kind != tt.wantKind {
				t.Errorf("kind = %q, want %q", body.Error.Kind, tt.wantKind)
			}
		})
	}
}

func TestStructured(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.ai.text = "```json\n[{\"front\":\"Q\",\"back\":\"A\"}]\n```"

	rec := ts.do("POST", "/v1/structured", `{"prompt":"cards","schema":{"type":"ARRAY"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		OK   bool                `json:"ok"`
		Data []map[string]string `json:"data"`
	}
	decodeBody(t, rec, &resp)
	if !resp.OK || len(resp.Data) != 1 || resp.Data[0]["front"] != "Q" {
		t.Errorf("response = %+v", resp)
	}
	if !ts.ai.calls[0].JSON {
		t.Error("structured generation must request JSON output")
	}

	rec = ts.do("POST", "/v1/structured", `{"prompt":"cards"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing schema status = %d", rec.Code)
	}
}

// readSSE returns the data payloads of an event stream.
func readSSE(t *testing.T, body io.Reader) []string {
	t.Helper()
	var out []string
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		if data, ok := strings.CutPrefix(scanner.Text(), "data: "); ok {
			out = append(out, data)
		}
	}
	return out
}

func TestChat_StreamsEvents(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.ai.events = []domain.StreamEvent{
		domain.ReasoningEvent("thinking"),
		domain.ToolEvent("Searching the web"),
		domain.DoneToolEvent(),
		domain.TextEvent("Hello"),
		domain.ErrorEvent(domain.ErrTransport(domain.ProviderGroq, "reset")),
	}

	rec := ts.do("POST", "/v1/chat", `{"history":[{"role":"user","text":"hi"}],"message":"explain"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	got := readSSE(t, rec.Body)
	want := []string{
		`{"reasoning":"thinking"}`,
		`{"tool":"Searching the web"}`,
		`{"doneTool":true}`,
		`{"text":"Hello"}`,
		`{"error":{"kind":"transport","provider":"groq","message":"reset"}}`,
		`[DONE]`,
	}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestChat_ErrorBeforeStream(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.ai.streamErr = domain.ErrMissingCredential(domain.ProviderGemini)

	rec := ts.do("POST", "/v1/chat", `{"message":"hi"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "[DONE]") {
		t.Error("pre-stream failures must not open an event stream")
	}

	rec = ts.do("POST", "/v1/chat", `{"message":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty message status = %d, want 400", rec.Code)
	}
}

func TestFlashcards(t *testing.T) {
	t.Run("topic", func(t *testing.T) {
		ts := newTestServer(t, nil)
		rec := ts.do("POST", "/v1/flashcards", `{"source":"topic","payload":"osmosis","count":5}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
		var resp struct {
			Flashcards []domain.Flashcard `json:"flashcards"`
		}
		decodeBody(t, rec, &resp)
		if len(resp.Flashcards) != 1 {
			t.Errorf("flashcards = %+v", resp.Flashcards)
		}
		if ts.study.source != study.SourceTopic || ts.study.payload != "osmosis" || ts.study.count != 5 {
			t.Errorf("study called with %+v", ts.study)
		}
	})

	t.Run("image", func(t *testing.T) {
		ts := newTestServer(t, nil)
		rec := ts.do("POST", "/v1/flashcards", `{"source":"image","image":{"data":"QUJD","mimeType":"image/webp"}}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
		if ts.study.payload != "QUJD" || ts.study.mimeType != "image/webp" {
			t.Errorf("study called with %+v", ts.study)
		}
	})

	for _, body := range []string{
		`{"source":"podcast","payload":"x"}`,
		`{"source":"topic","payload":" "}`,
		`{"source":"image"}`,
	} {
		ts := newTestServer(t, nil)
		if rec := ts.do("POST", "/v1/flashcards", body); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestDiagrams(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do("POST", "/v1/diagrams/code", `{"prompt":"water cycle"}`)
	var code map[string]string
	decodeBody(t, rec, &code)
	if code["code"] != "graph TD\nA-->B" {
		t.Errorf("code = %q", code["code"])
	}

	rec = ts.do("POST", "/v1/diagrams/image", `{"prompt":"a cell","seed":42}`)
	var img struct {
		URL  string `json:"url"`
		Seed int64  `json:"seed"`
	}
	decodeBody(t, rec, &img)
	if img.Seed != 42 || !strings.HasPrefix(img.URL, study.DefaultImageBaseURL) || !strings.Contains(img.URL, "seed=42") {
		t.Errorf("image = %+v", img)
	}

	rec = ts.do("POST", "/v1/diagrams/image", `{"prompt":"a cell"}`)
	decodeBody(t, rec, &img)
	if !strings.Contains(img.URL, "seed=") {
		t.Errorf("url without seed: %s", img.URL)
	}
}

func TestNotesAndSolve(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do("POST", "/v1/notes/enhance", `{"content":"cells"}`)
	if !strings.Contains(rec.Body.String(), `"# cells"`) {
		t.Errorf("enhance = %s", rec.Body.String())
	}

	rec = ts.do("POST", "/v1/notes/from-image", `{"image":{"data":"data:image/jpeg;base64,QUJD"}}`)
	var note domain.Note
	decodeBody(t, rec, &note)
	if note.Title != "Cells" {
		t.Errorf("note = %+v", note)
	}

	rec = ts.do("POST", "/v1/solve", `{"image":{"data":"data:image/jpeg;base64,QUJD"},"context":"algebra"}`)
	if !strings.Contains(rec.Body.String(), "x = 2 (algebra)") {
		t.Errorf("solve = %s", rec.Body.String())
	}

	if rec := ts.do("POST", "/v1/solve", `{}`); rec.Code != http.StatusBadRequest {
		t.Errorf("solve without image status = %d", rec.Code)
	}
}

func TestSettings(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do("PUT", "/v1/settings", `{"name":" Asha ","groqApiKey":"gsk_secret1234","textModel":"groq:llama-3.3-70b-versatile"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var got domain.Settings
	decodeBody(t, rec, &got)
	if got.Name != "Asha" || got.GroqAPIKey != "****1234" {
		t.Errorf("PUT response = %+v", got)
	}

	stored, _ := ts.settings.Get(context.Background())
	if stored.GroqAPIKey != "gsk_secret1234" {
		t.Errorf("stored key = %q, want unredacted", stored.GroqAPIKey)
	}

	rec = ts.do("GET", "/v1/settings", "")
	if strings.Contains(rec.Body.String(), "gsk_secret") {
		t.Errorf("GET leaked key: %s", rec.Body.String())
	}

	rec = ts.do("PUT", "/v1/settings", `{"mediaModel":"acme:model"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid model status = %d, want 400", rec.Code)
	}
}

func TestUsage(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.usage.Add(context.Background(), 250)

	rec := ts.do("GET", "/v1/usage", "")
	var snap domain.UsageSnapshot
	decodeBody(t, rec, &snap)
	if snap.Tokens != 250 || snap.Threshold != 1000 {
		t.Errorf("snapshot = %+v", snap)
	}
	checkHeader(t, rec, "x-groq-usage-remaining", "750")

	srv := New(Config{}, Deps{Assistant: ts.ai, Study: ts.study, Settings: ts.settings})
	rec = httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/usage", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("usage without counter status = %d, want 404", rec.Code)
	}
}

func TestAuthEnabled(t *testing.T) {
	ts := newTestServer(t, newTestAuthenticator())

	if rec := ts.do("GET", "/v1/settings", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want 401", rec.Code)
	}
	if rec := ts.do("GET", "/healthz", ""); rec.Code != http.StatusOK {
		t.Errorf("healthz must stay public, got %d", rec.Code)
	}

	req := httptest.NewRequest("GET", "/v1/settings", nil)
	req.Header.Set("Authorization", "Bearer valid-key-123")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("authenticated status = %d, want 200", rec.Code)
	}
}
