// Package harness runs claim registry scenarios.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	max_claim_length: 128        # optional, defaults to the registry default
//	steps:
//	  - op: create               # create | revoke | transfer
//	    caller: A                # resolved verbatim; empty means unauthenticated
//	    claim: hash0001          # literal text, or 0x-prefixed hex bytes
//	    height: 1                # optional, sets the clock before the call
//	    expect: ok               # ok, or an error code such as NOT_CLAIM_OWNER
//	    record: { owner: A, registered_at: 1 }   # optional state check
//	  - op: transfer
//	    caller: A
//	    claim: hash0001
//	    receiver: B
//	    expect: ok
//	  - op: revoke
//	    caller: B
//	    claim: hash0001
//	    expect: ok
//	    absent: true             # optional: claim must be unregistered after the step
//
// # Deterministic Testing
//
// Every scenario runs against a fresh in-memory store, a manual clock that
// only moves when a step sets height, and an identity provider that trusts
// the caller name. The trace (step outcomes interleaved with emitted events)
// is therefore identical across runs and suitable for golden comparison.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/concrete.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if !result.Pass {
//	    for _, e := range result.Errors {
//	        log.Println(e)
//	    }
//	}
package harness
