package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/roach88/poe/internal/ir"
	"github.com/roach88/poe/internal/notify"
	"github.com/roach88/poe/internal/registry"
)

// ResultOK labels a successful operation; ResultInternal one that failed
// for a reason other than a registry rejection (store or context errors).
const (
	ResultOK       = "ok"
	ResultInternal = "internal"
)

// Metrics provides observability for the claim registry.
type Metrics struct {
	// Registry operations by operation name and result (ok, error code, internal)
	Operations *prometheus.CounterVec

	// Emitted events by kind
	Events *prometheus.CounterVec
}

// New registers the registry metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "poe_operations_total",
			Help: "Total claim registry operations by operation and result",
		}, []string{"operation", "result"}),

		Events: f.NewCounterVec(prometheus.CounterOpts{
			Name: "poe_events_total",
			Help: "Total claim registry events emitted by kind",
		}, []string{"kind"}),
	}
}

// ObserveOperation implements registry.Observer.
func (m *Metrics) ObserveOperation(op registry.Operation, err error) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(string(op), resultLabel(err)).Inc()
}

// IncrementEvent records an emitted event.
func (m *Metrics) IncrementEvent(kind ir.EventKind) {
	if m != nil {
		m.Events.WithLabelValues(string(kind)).Inc()
	}
}

// Sink wraps next so every delivered event is counted.
func (m *Metrics) Sink(next notify.Sink) notify.Sink {
	return &notify.Counting{Next: next, Count: m.IncrementEvent}
}

func resultLabel(err error) string {
	if err == nil {
		return ResultOK
	}
	if code := registry.CodeOf(err); code != "" {
		return string(code)
	}
	return ResultInternal
}

var _ registry.Observer = (*Metrics)(nil)
