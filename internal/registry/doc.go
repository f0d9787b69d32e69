// Package registry implements the proof-of-existence claim registry.
//
// The registry maps an opaque Claim to the account that registered it and
// the height at which the record was last written. It exposes three
// mutations and one query:
//
//	Create   Absent        --(caller)-->          Owned(caller)
//	Revoke   Owned(owner)  --(owner)-->           Absent
//	Transfer Owned(owner)  --(owner, receiver)--> Owned(receiver)
//	Lookup   read-only
//
// Every other (state, operation, caller) combination is rejected with a
// typed *Error and leaves the store untouched. A successful mutation
// performs exactly one store write followed by exactly one event.
//
// COLLABORATORS:
//
// The registry owns no global state. Identity resolution, the height
// clock, the claim store and the event sink are all injected through the
// interfaces in collaborators.go, so tests run against isolated in-memory
// instances with a fixed height sequence.
//
// CONCURRENCY:
//
// Mutations are serialized by a mutex (single writer), so the
// read-check-write of one call never interleaves with another call's.
// Stores must still be safe for concurrent use because Lookup does not
// take the lock.
package registry
