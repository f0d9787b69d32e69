// Package store provides SQLite-backed durable storage for the claim
// registry.
//
// The store holds three tables:
//   - claims: current owner and registration height per claim, keyed by
//     ir.ClaimKey
//   - events: append-only journal of registry events
//   - meta: scalar state such as the persisted chain height
//
// # Ordering
//
// Journal reads are ordered by seq ASC, the insertion order. Event heights
// are not unique (several calls can share a block), so they never drive
// ordering.
//
// # Claim writes
//
// Insert, Replace and Remove are single conditional statements (insert if
// absent, update or delete if owned by), so two processes sharing one file
// cannot both create a claim or both act as its owner.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Event payloads are stored as canonical JSON (ir.MarshalCanonical).
package store
