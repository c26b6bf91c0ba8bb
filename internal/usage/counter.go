// Package usage tracks cumulative Groq token usage for client-side
// rate-limit awareness.
package usage

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mukti-ai/studycore/internal/domain"
)

// DefaultThreshold is the cumulative token count at which the counter
// starts over.
const DefaultThreshold int64 = 500_000

// Sink persists counter snapshots.
type Sink interface {
	SaveUsage(ctx context.Context, snap domain.UsageSnapshot) error
}

// Option configures a Counter.
type Option func(*Counter)

// WithSink persists every change to sink.
func WithSink(sink Sink) Option {
	return func(c *Counter) {
		c.sink = sink
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Counter) {
		c.logger = logger
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Counter) {
		c.now = now
	}
}

// Counter is a monotonic token counter that resets to zero once the
// cumulative total reaches the threshold. Add is lock-free; persistence is
// serialized so snapshots reach the sink in order.
type Counter struct {
	tokens    atomic.Int64
	resets    atomic.Int64
	threshold int64

	sink   Sink
	sinkMu sync.Mutex
	logger *slog.Logger
	now    func() time.Time
}

// NewCounter creates a counter. A non-positive threshold means DefaultThreshold.
func NewCounter(threshold int64, opts ...Option) *Counter {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	c := &Counter{
		threshold: threshold,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Restore seeds the counter from a persisted snapshot.
func (c *Counter) Restore(snap domain.UsageSnapshot) {
	c.tokens.Store(snap.Tokens)
	c.resets.Store(snap.Resets)
}

// Add records n tokens and returns the new total. Non-positive n is ignored.
func (c *Counter) Add(ctx context.Context, n int64) int64 {
	if n <= 0 {
		return c.tokens.Load()
	}

	var next int64
	for {
		cur := c.tokens.Load()
		next = cur + n
		reset := next >= c.threshold
		if reset {
			next = 0
		}
		if c.tokens.CompareAndSwap(cur, next) {
			if reset {
				c.resets.Add(1)
				c.logger.Info("groq usage threshold reached, counter reset",
					slog.Int64("threshold", c.threshold))
			}
			break
		}
	}

	c.persist(ctx)
	return next
}

// Snapshot returns the current state.
func (c *Counter) Snapshot() domain.UsageSnapshot {
	return domain.UsageSnapshot{
		Tokens:    c.tokens.Load(),
		Threshold: c.threshold,
		Resets:    c.resets.Load(),
		UpdatedAt: c.now().UTC(),
	}
}

func (c *Counter) persist(ctx context.Context) {
	if c.sink == nil {
		return
	}
	c.sinkMu.Lock()
	defer c.sinkMu.Unlock()

	// Snapshot under the lock so a slower writer never overwrites a newer total.
	if err := c.sink.SaveUsage(context.WithoutCancel(ctx), c.Snapshot()); err != nil {
		c.logger.Error("failed to persist usage", slog.String("error", err.Error()))
	}
}
