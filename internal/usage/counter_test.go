package usage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mukti-ai/studycore/internal/domain"
)

type recordingSink struct {
	mu    sync.Mutex
	saved []domain.UsageSnapshot
	err   error
}

func (s *recordingSink) SaveUsage(_ context.Context, snap domain.UsageSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, snap)
	return s.err
}

func TestCounter_Add(t *testing.T) {
	sink := &recordingSink{}
	fixed := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	c := NewCounter(100, WithSink(sink), WithClock(func() time.Time { return fixed }))

	if got := c.Add(context.Background(), 40); got != 40 {
		t.Errorf("Add(40) = %d, want 40", got)
	}
	if got := c.Add(context.Background(), 0); got != 40 {
		t.Errorf("Add(0) = %d, want 40", got)
	}
	if got := c.Add(context.Background(), 59); got != 99 {
		t.Errorf("Add(59) = %d, want 99", got)
	}
	if got := c.Add(context.Background(), 1); got != 0 {
		t.Errorf("Add(1) at threshold = %d, want 0", got)
	}

	snap := c.Snapshot()
	if snap.Tokens != 0 || snap.Resets != 1 || snap.Threshold != 100 || !snap.UpdatedAt.Equal(fixed) {
		t.Errorf("Snapshot() = %+v", snap)
	}
	if len(sink.saved) != 3 {
		t.Errorf("sink saved %d snapshots, want 3", len(sink.saved))
	}
}

func TestCounter_Concurrent(t *testing.T) {
	c := NewCounter(0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Add(context.Background(), 10)
			}
		}()
	}
	wg.Wait()

	if got := c.Snapshot().Tokens; got != 50_000 {
		t.Errorf("Tokens = %d, want 50000", got)
	}
}

func TestCounter_RestoreAndSinkError(t *testing.T) {
	sink := &recordingSink{err: errors.New("disk full")}
	c := NewCounter(1000, WithSink(sink))
	c.Restore(domain.UsageSnapshot{Tokens: 900, Resets: 2})

	if got := c.Add(context.Background(), 50); got != 950 {
		t.Errorf("Add() = %d, want 950", got)
	}
	if got := c.Snapshot().Resets; got != 2 {
		t.Errorf("Resets = %d, want 2", got)
	}
}
