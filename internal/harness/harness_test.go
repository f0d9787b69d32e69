package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/poe/internal/ir"
)

func height(h uint64) *uint64 { return &h }

func TestRun_ConcreteExample(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "concrete_example.yaml"))
	require.NoError(t, err)

	result, err := RunWithGolden(t, s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)
}

func TestRun_BoundsAndAccounts(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "bounds_and_accounts.yaml"))
	require.NoError(t, err)

	result, err := RunWithGolden(t, s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_TraceInterleavesEvents(t *testing.T) {
	s := &Scenario{
		Name:        "interleave",
		Description: "d",
		Steps: []Step{
			{Op: OpCreate, Caller: "A", Claim: "x", Height: height(1), Expect: ExpectOK},
			{Op: OpCreate, Caller: "B", Claim: "x", Expect: "PROOF_ALREADY_EXIST"},
			{Op: OpTransfer, Caller: "A", Claim: "x", Receiver: "B", Height: height(2), Expect: ExpectOK},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	require.True(t, result.Pass)

	types := make([]string, len(result.Trace))
	for i, e := range result.Trace {
		types[i] = e.Type
	}
	assert.Equal(t, []string{TraceStep, TraceEvent, TraceStep, TraceStep, TraceEvent}, types)

	last := result.Trace[4].Event
	require.NotNil(t, last)
	assert.Equal(t, ir.ClaimTransfered("A", ir.Claim("x"), "B", 2), *last)
}

func TestRun_ReportsOutcomeMismatch(t *testing.T) {
	s := &Scenario{
		Name:        "mismatch",
		Description: "d",
		Steps: []Step{
			{Op: OpCreate, Caller: "A", Claim: "x", Expect: ExpectOK},
			{Op: OpRevoke, Caller: "B", Claim: "x", Expect: ExpectOK},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected ok, got NOT_CLAIM_OWNER")
}

func TestRun_ReportsStateMismatch(t *testing.T) {
	s := &Scenario{
		Name:        "state",
		Description: "d",
		Steps: []Step{
			{Op: OpCreate, Caller: "A", Claim: "x", Height: height(3), Expect: ExpectOK,
				Record: &RecordExpect{Owner: "A", RegisteredAt: 4}},
			{Op: OpRevoke, Caller: "B", Claim: "x", Expect: "NOT_CLAIM_OWNER", Absent: true},
			{Op: OpRevoke, Caller: "A", Claim: "x", Expect: ExpectOK,
				Record: &RecordExpect{Owner: "A", RegisteredAt: 3}},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "got {A 3}")
	assert.Contains(t, result.Errors[1], "expected 0x78 absent")
	assert.Contains(t, result.Errors[2], "but it is absent")
}

func TestRun_MaxClaimLength(t *testing.T) {
	s := &Scenario{
		Name:           "bound",
		Description:    "d",
		MaxClaimLength: 2,
		Steps: []Step{
			{Op: OpCreate, Caller: "A", Claim: "abc", Expect: "CLAIM_TOO_LONG", Absent: true},
			{Op: OpCreate, Caller: "A", Claim: "ab", Expect: ExpectOK},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestSnapshot(t *testing.T) {
	result := NewResult()
	result.AddStepTrace(0, Step{Op: OpCreate, Caller: "A"}, ir.Claim("hi"), 1, ExpectOK)
	result.AddEventTrace(ir.ClaimCreated("A", ir.Claim("hi"), 1))

	got, err := Snapshot("s", result)
	require.NoError(t, err)
	assert.Equal(t,
		`{"scenario_name":"s","trace":[`+
			`{"caller":"A","claim":"0x6869","height":1,"index":0,"op":"create","outcome":"ok","type":"step"},`+
			`{"event":{"caller":"A","claim":"0x6869","height":1,"kind":"ClaimCreated"},"type":"event"}]}`,
		string(got))
}

func TestResult_AddError(t *testing.T) {
	r := NewResult()
	assert.True(t, r.Pass)
	r.AddError("boom")
	assert.False(t, r.Pass)
	assert.Equal(t, []string{"boom"}, r.Errors)
}
