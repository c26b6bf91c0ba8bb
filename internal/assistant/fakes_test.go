package assistant

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/mukti-ai/studycore/internal/domain"
	"github.com/mukti-ai/studycore/internal/resolver"
)

type staticSettings struct {
	settings domain.Settings
}

func (s staticSettings) Get(context.Context) (domain.Settings, error) {
	return s.settings, nil
}

type streamScript struct {
	err    error
	events []domain.ProviderEvent
	// hold leaves the channel open after the scripted events.
	hold bool
}

type completeScript struct {
	resp *domain.Completion
	err  error
}

// scriptedProvider replays canned responses in order and records requests.
type scriptedProvider struct {
	kind      domain.ProviderKind
	mu        sync.Mutex
	streams   []streamScript
	completes []completeScript
	requests  []*domain.CompletionRequest
}

func (p *scriptedProvider) Kind() domain.ProviderKind { return p.kind }

func (p *scriptedProvider) Complete(_ context.Context, req *domain.CompletionRequest) (*domain.Completion, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	s := p.completes[0]
	p.completes = p.completes[1:]
	return s.resp, s.err
}

func (p *scriptedProvider) Stream(ctx context.Context, req *domain.CompletionRequest) (<-chan domain.ProviderEvent, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	s := p.streams[0]
	p.streams = p.streams[1:]
	p.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}
	ch := make(chan domain.ProviderEvent)
	go func() {
		defer close(ch)
		for _, ev := range s.events {
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
			if ev.Err != nil {
				return
			}
		}
		if s.hold {
			<-ctx.Done()
		}
	}()
	return ch, nil
}

func (p *scriptedProvider) recorded() []*domain.CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*domain.CompletionRequest(nil), p.requests...)
}

type fakeFactory struct {
	provider *scriptedProvider
	configs  []domain.ProviderConfig
}

func (f *fakeFactory) Provider(cfg domain.ProviderConfig) (domain.Provider, error) {
	f.configs = append(f.configs, cfg)
	return f.provider, nil
}

type toolCall struct {
	name string
	args map[string]any
}

type fakeToolbox struct {
	mu     sync.Mutex
	calls  []toolCall
	result string
}

func (f *fakeToolbox) Descriptors() []domain.ToolDescriptor {
	return []domain.ToolDescriptor{{Name: "web_search", Description: "search"}}
}

func (f *fakeToolbox) Label(name string) string {
	if name == "web_search" {
		return "Searching the web"
	}
	return name
}

func (f *fakeToolbox) Execute(_ context.Context, name string, args map[string]any) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, toolCall{name: name, args: args})
	return f.result
}

type fakeUsage struct {
	total atomic.Int64
	adds  atomic.Int32
}

func (u *fakeUsage) Add(_ context.Context, n int64) int64 {
	u.adds.Add(1)
	return u.total.Add(n)
}

type harness struct {
	svc      *Service
	provider *scriptedProvider
	factory  *fakeFactory
	tools    *fakeToolbox
	usage    *fakeUsage
}

func newHarness(kind domain.ProviderKind, model string, opts ...Option) *harness {
	h := &harness{
		provider: &scriptedProvider{kind: kind},
		tools:    &fakeToolbox{result: "Photosynthesis converts light into chemical energy."},
		usage:    &fakeUsage{},
	}
	h.factory = &fakeFactory{provider: h.provider}
	settings := domain.Settings{
		Name:       "Asha",
		TextModel:  string(kind) + ":" + model,
		MediaModel: string(kind) + ":" + model + "-vision",
	}
	keys := map[domain.ProviderKind]string{
		domain.ProviderGemini:     "g",
		domain.ProviderGroq:       "q",
		domain.ProviderOpenRouter: "o",
	}
	opts = append([]Option{WithToolbox(h.tools), WithUsage(h.usage)}, opts...)
	h.svc = New(staticSettings{settings}, resolver.New(keys), h.factory, opts...)
	return h
}

func collect(ch <-chan domain.StreamEvent) []domain.StreamEvent {
	var events []domain.StreamEvent
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func countType(events []domain.StreamEvent, typ domain.StreamEventType) int {
	n := 0
	for _, ev := range events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}
