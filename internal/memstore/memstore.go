// Package memstore is an in-memory claim store for tests, the scenario
// harness and the "memory" backend.
package memstore

import (
	"context"
	"sync"

	"github.com/roach88/poe/internal/ir"
)

// Store keeps records in a map keyed by ir.ClaimKey.
type Store struct {
	mu      sync.RWMutex
	records map[string]ir.Record
	height  ir.Height
}

// New returns an empty store.
func New() *Store {
	return &Store{records: make(map[string]ir.Record)}
}

func (s *Store) Get(_ context.Context, claim ir.Claim) (ir.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[ir.ClaimKey(claim)]
	return rec, ok, nil
}

func (s *Store) Has(_ context.Context, claim ir.Claim) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[ir.ClaimKey(claim)]
	return ok, nil
}

func (s *Store) Insert(_ context.Context, claim ir.Claim, rec ir.Record) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ir.ClaimKey(claim)
	if _, ok := s.records[key]; ok {
		return false, nil
	}
	s.records[key] = rec
	return true, nil
}

func (s *Store) Replace(_ context.Context, claim ir.Claim, owner ir.AccountID, rec ir.Record) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ir.ClaimKey(claim)
	if cur, ok := s.records[key]; !ok || cur.Owner != owner {
		return false, nil
	}
	s.records[key] = rec
	return true, nil
}

func (s *Store) Remove(_ context.Context, claim ir.Claim, owner ir.AccountID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ir.ClaimKey(claim)
	if cur, ok := s.records[key]; !ok || cur.Owner != owner {
		return false, nil
	}
	delete(s.records, key)
	return true, nil
}

// Len returns the number of registered claims. Tests use it to assert that
// rejected operations leave the store unchanged.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Snapshot copies the current contents keyed by ir.ClaimKey.
func (s *Store) Snapshot() map[string]ir.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]ir.Record, len(s.records))
	for k, v := range s.records {
		out[k] = v
	}
	return out
}

func (s *Store) LoadHeight(context.Context) (ir.Height, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.height, nil
}

func (s *Store) SaveHeight(_ context.Context, h ir.Height) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.height = h
	return nil
}
