// Package notify provides registry event sinks.
//
// Sinks are fire-and-forget: Emit never returns an error, and a sink that
// can fail (a journal, a network publisher) logs the failure itself.
package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roach88/poe/internal/ir"
)

// Sink mirrors registry.Sink.
type Sink interface {
	Emit(ctx context.Context, ev ir.Event)
}

// Logger writes every event to a slog logger at Info level.
type Logger struct {
	logger *slog.Logger
}

// NewLogger returns a sink logging to l (slog.Default() when nil).
func NewLogger(l *slog.Logger) *Logger {
	if l == nil {
		l = slog.Default()
	}
	return &Logger{logger: l}
}

func (s *Logger) Emit(ctx context.Context, ev ir.Event) {
	attrs := []any{
		"kind", ev.Kind,
		"caller", ev.Caller,
		"claim", ev.Claim,
		"height", ev.Height,
	}
	if ev.Receiver != "" {
		attrs = append(attrs, "receiver", ev.Receiver)
	}
	s.logger.InfoContext(ctx, "event", attrs...)
}

// Fanout delivers each event to every sink in order.
type Fanout []Sink

func (f Fanout) Emit(ctx context.Context, ev ir.Event) {
	for _, s := range f {
		if s != nil {
			s.Emit(ctx, ev)
		}
	}
}

// Recorder keeps every event in memory, in emission order.
//
// Thread-safety: safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []ir.Event
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Emit(_ context.Context, ev ir.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []ir.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ir.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Len returns the number of recorded events.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Last returns the most recent event, if any.
func (r *Recorder) Last() (ir.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return ir.Event{}, false
	}
	return r.events[len(r.events)-1], true
}

// Reset discards recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// Counting calls Count with the kind of every event before passing it on.
type Counting struct {
	Next  Sink
	Count func(ir.EventKind)
}

func (c *Counting) Emit(ctx context.Context, ev ir.Event) {
	if c.Count != nil {
		c.Count(ev.Kind)
	}
	if c.Next != nil {
		c.Next.Emit(ctx, ev)
	}
}
