package registry

import (
	"context"

	"github.com/roach88/poe/internal/ir"
)

// Identity resolves a raw caller credential to a verified account.
// Implementations return an error when the credential cannot be resolved;
// the registry wraps it as ErrAuthentication.
type Identity interface {
	Resolve(ctx context.Context, credential string) (ir.AccountID, error)
}

// Clock yields the current logical height. Heights must be monotonically
// non-decreasing within one registry.
type Clock interface {
	CurrentHeight() ir.Height
}

// Store is the durable associative store behind the registry.
//
// Writes are conditional and each must be atomic against every other
// writer of the same backing data, including other processes: the registry
// mutex only serializes callers within one process.
type Store interface {
	// Get returns the record for claim and whether it exists.
	Get(ctx context.Context, claim ir.Claim) (ir.Record, bool, error)
	// Has reports whether claim exists.
	Has(ctx context.Context, claim ir.Claim) (bool, error)
	// Insert stores rec if claim is absent and reports whether it did.
	Insert(ctx context.Context, claim ir.Claim, rec ir.Record) (bool, error)
	// Replace overwrites the record if claim exists and is owned by owner,
	// and reports whether it did.
	Replace(ctx context.Context, claim ir.Claim, owner ir.AccountID, rec ir.Record) (bool, error)
	// Remove deletes claim if it exists and is owned by owner, and reports
	// whether it did.
	Remove(ctx context.Context, claim ir.Claim, owner ir.AccountID) (bool, error)
}

// Sink receives events after a mutation commits. Emit is fire-and-forget:
// a sink that fails must handle (log) the failure itself.
type Sink interface {
	Emit(ctx context.Context, ev ir.Event)
}

// Observer is told the outcome of every mutating operation.
type Observer interface {
	ObserveOperation(op Operation, err error)
}

// Operation names a mutating registry operation.
type Operation string

const (
	OpCreate   Operation = "create"
	OpRevoke   Operation = "revoke"
	OpTransfer Operation = "transfer"
)

type discardSink struct{}

func (discardSink) Emit(context.Context, ir.Event) {}
