// Package identity resolves caller credentials to account identifiers.
//
// Accounts are did:key identifiers of Ed25519 keys. A credential is a
// short-lived EdDSA JWT whose issuer is the caller's DID; the signature is
// checked against the key embedded in that DID, so no key registry is
// needed.
package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/poe/internal/ir"
)

// ErrUnauthenticated is wrapped by every resolution failure.
var ErrUnauthenticated = errors.New("unauthenticated")

// Resolver mirrors registry.Identity.
type Resolver interface {
	Resolve(ctx context.Context, credential string) (ir.AccountID, error)
}

// Trusted treats the credential itself as an already authenticated account
// ID. Used by the scenario harness and for local development.
type Trusted struct{}

func (Trusted) Resolve(_ context.Context, credential string) (ir.AccountID, error) {
	id := ir.AccountID(credential)
	if err := id.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	return id, nil
}

func unauthenticated(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnauthenticated, fmt.Sprintf(format, args...))
}
