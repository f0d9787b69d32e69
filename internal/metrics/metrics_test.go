package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/poe/internal/ir"
	"github.com/roach88/poe/internal/notify"
	"github.com/roach88/poe/internal/registry"
)

func TestObserveOperation(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveOperation(registry.OpCreate, nil)
	m.ObserveOperation(registry.OpCreate, nil)
	m.ObserveOperation(registry.OpCreate, fmt.Errorf("wrapped: %w", registry.ErrProofAlreadyExist))
	m.ObserveOperation(registry.OpRevoke, errors.New("disk full"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Operations.WithLabelValues("create", ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("create", "PROOF_ALREADY_EXIST")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("revoke", ResultInternal)))
}

func TestSinkCountsAndForwards(t *testing.T) {
	m := New(prometheus.NewRegistry())
	rec := notify.NewRecorder()
	sink := m.Sink(rec)

	sink.Emit(context.Background(), ir.ClaimCreated("A", ir.Claim("x"), 1))
	sink.Emit(context.Background(), ir.ClaimTransfered("A", ir.Claim("x"), "B", 2))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Events.WithLabelValues("ClaimCreated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Events.WithLabelValues("ClaimTransfered")))
	assert.Equal(t, 2, rec.Len())
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveOperation(registry.OpCreate, nil)
	m.IncrementEvent(ir.EventClaimCreated)
}

func TestRegisterTwiceOnSameRegistryPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	require.Panics(t, func() { New(reg) })
}
