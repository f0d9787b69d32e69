package registry

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxClaimLength is the claim bound used when none is configured.
const DefaultMaxClaimLength = 128

// Option configures a Registry.
type Option func(*Registry)

// WithMaxClaimLength sets the maximum claim length in bytes.
// Values below 1 are ignored.
func WithMaxClaimLength(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.maxClaimLength = n
		}
	}
}

// WithLogger sets the logger used for operation outcomes.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithObserver reports every mutation outcome to o (e.g. metrics).
func WithObserver(o Observer) Option {
	return func(r *Registry) {
		r.observer = o
	}
}

// WithTracer overrides the OpenTelemetry tracer. Defaults to the global
// provider's tracer.
func WithTracer(t trace.Tracer) Option {
	return func(r *Registry) {
		if t != nil {
			r.tracer = t
		}
	}
}
