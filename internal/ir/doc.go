// Package ir holds the value types shared by every layer of the claim
// registry: claims, account identities, heights, records and events.
//
// ir imports nothing internal. Stores, sinks, the registry core and the
// outer surfaces all depend on it, never the other way round.
//
// Key constraints:
//   - A Claim is opaque. Nothing in this package decodes or hashes its
//     contents except to derive a storage key.
//   - Heights are logical (block) heights, never wall-clock time.
//   - All JSON uses snake_case and the canonical encoding in canonical.go.
package ir
