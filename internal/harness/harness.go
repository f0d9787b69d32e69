package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/poe/internal/identity"
	"github.com/roach88/poe/internal/ir"
	"github.com/roach88/poe/internal/memstore"
	"github.com/roach88/poe/internal/notify"
	"github.com/roach88/poe/internal/registry"
	"github.com/roach88/poe/internal/testutil"
)

// Harness is the scenario execution engine.
// It runs steps against one registry with a manual clock.
type Harness struct {
	registry *registry.Registry
	store    *memstore.Store
	clock    *testutil.ManualClock
	events   *notify.Recorder
	logger   *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory store for isolation.
// A step whose outcome or state check does not match its expectations is
// recorded in Result.Errors; Run only returns an error when a step fails
// for a reason that is not a registry rejection.
func Run(scenario *Scenario) (*Result, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests

	h := &Harness{
		store:  memstore.New(),
		clock:  testutil.NewManualClock(0),
		events: notify.NewRecorder(),
		logger: logger,
	}

	opts := []registry.Option{registry.WithLogger(logger)}
	if scenario.MaxClaimLength > 0 {
		opts = append(opts, registry.WithMaxClaimLength(scenario.MaxClaimLength))
	}
	h.registry = registry.New(h.store, h.clock, identity.Trusted{}, h.events, opts...)

	ctx := context.Background()
	result := NewResult()

	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}

	return result, nil
}

func (h *Harness) executeStep(ctx context.Context, index int, st Step, result *Result) error {
	claim, err := ir.ParseClaim(st.Claim)
	if err != nil {
		return err
	}

	if st.Height != nil {
		h.clock.Set(ir.Height(*st.Height))
	}
	height := h.clock.CurrentHeight()
	seen := h.events.Len()

	var opErr error
	switch st.Op {
	case OpCreate:
		opErr = h.registry.Create(ctx, st.Caller, claim)
	case OpRevoke:
		opErr = h.registry.Revoke(ctx, st.Caller, claim)
	case OpTransfer:
		opErr = h.registry.Transfer(ctx, st.Caller, claim, ir.AccountID(st.Receiver))
	default:
		return fmt.Errorf("unknown op %q", st.Op)
	}

	outcome := ExpectOK
	if opErr != nil {
		code := registry.CodeOf(opErr)
		if code == "" {
			return opErr
		}
		outcome = string(code)
	}

	result.AddStepTrace(index, st, claim, height, outcome)
	for _, ev := range h.events.Events()[seen:] {
		result.AddEventTrace(ev)
	}

	if outcome != st.Expect {
		result.AddError(fmt.Sprintf("steps[%d] %s %s: expected %s, got %s", index, st.Op, claim, st.Expect, outcome))
	}

	if err := h.checkState(ctx, index, st, claim, result); err != nil {
		return err
	}

	h.logger.Info("step completed",
		"step", index,
		"op", st.Op,
		"claim", claim,
		"outcome", outcome,
	)
	return nil
}

// checkState evaluates the optional record/absent expectations.
func (h *Harness) checkState(ctx context.Context, index int, st Step, claim ir.Claim, result *Result) error {
	if st.Record == nil && !st.Absent {
		return nil
	}

	// An over-long claim can never be registered, so it reads as absent.
	rec, ok, err := h.registry.Lookup(ctx, claim)
	if err != nil && !errors.Is(err, registry.ErrClaimTooLong) {
		return err
	}

	if st.Absent && ok {
		result.AddError(fmt.Sprintf("steps[%d]: expected %s absent, found owner %s", index, claim, rec.Owner))
	}

	if st.Record != nil {
		want := ir.Record{Owner: ir.AccountID(st.Record.Owner), RegisteredAt: ir.Height(st.Record.RegisteredAt)}
		switch {
		case !ok:
			result.AddError(fmt.Sprintf("steps[%d]: expected %s registered to %s, but it is absent", index, claim, want.Owner))
		case rec != want:
			result.AddError(fmt.Sprintf("steps[%d]: expected %s record {%s %d}, got {%s %d}",
				index, claim, want.Owner, want.RegisteredAt, rec.Owner, rec.RegisteredAt))
		}
	}

	return nil
}
