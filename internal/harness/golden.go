package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/poe/internal/ir"
)

// toCanonical converts trace entries to plain values for ir.MarshalCanonical.
func toCanonical(trace []TraceEntry) []any {
	out := make([]any, len(trace))
	for i, e := range trace {
		if e.Type == TraceEvent && e.Event != nil {
			out[i] = map[string]any{
				"type":  e.Type,
				"event": e.Event.Payload(),
			}
			continue
		}

		m := map[string]any{
			"type":    e.Type,
			"index":   e.Index,
			"op":      e.Op,
			"caller":  e.Caller,
			"claim":   e.Claim.String(),
			"height":  int64(e.Height),
			"outcome": e.Outcome,
		}
		if e.Receiver != "" {
			m["receiver"] = e.Receiver
		}
		out[i] = m
	}
	return out
}

// Snapshot renders the canonical JSON trace of a scenario run. Golden files
// hold exactly these bytes.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	return ir.MarshalCanonical(map[string]any{
		"scenario_name": scenarioName,
		"trace":         toCanonical(result.Trace),
	})
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}
