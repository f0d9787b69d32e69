package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/poe/internal/ir"
)

const metaHeight = "height"

// Get returns the record for claim, if registered.
func (s *Store) Get(ctx context.Context, claim ir.Claim) (ir.Record, bool, error) {
	var (
		owner string
		at    int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT owner, registered_at FROM claims WHERE claim_key = ?
	`, ir.ClaimKey(claim)).Scan(&owner, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Record{}, false, nil
	}
	if err != nil {
		return ir.Record{}, false, fmt.Errorf("get claim: %w", err)
	}
	return ir.Record{Owner: ir.AccountID(owner), RegisteredAt: ir.Height(at)}, true, nil
}

// Has reports whether claim is registered.
func (s *Store) Has(ctx context.Context, claim ir.Claim) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM claims WHERE claim_key = ?
	`, ir.ClaimKey(claim)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("has claim: %w", err)
	}
	return n > 0, nil
}

// Count returns the number of registered claims.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM claims`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count claims: %w", err)
	}
	return n, nil
}

// LoadHeight returns the persisted chain height, or 0 if none was saved.
func (s *Store) LoadHeight(ctx context.Context) (ir.Height, error) {
	var h int64
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM meta WHERE key = ?
	`, metaHeight).Scan(&h)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load height: %w", err)
	}
	return ir.Height(h), nil
}

// SaveHeight persists the chain height.
func (s *Store) SaveHeight(ctx context.Context, h ir.Height) error {
	v, err := h.Int64()
	if err != nil {
		return fmt.Errorf("save height: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, metaHeight, v)
	if err != nil {
		return fmt.Errorf("save height: %w", err)
	}
	return nil
}

// blob converts a claim for binding. The driver binds a nil slice as NULL,
// so the empty claim is passed as a zero-length non-nil slice.
func blob(c ir.Claim) []byte {
	if c == nil {
		return []byte{}
	}
	return []byte(c)
}
