package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/roach88/poe/internal/ir"
)

// ErrInjected is returned by FaultyStore when a fault is armed.
var ErrInjected = errors.New("injected store failure")

// ClaimStore mirrors registry.Store so testutil does not import the
// registry it is used to test.
type ClaimStore interface {
	Get(ctx context.Context, claim ir.Claim) (ir.Record, bool, error)
	Has(ctx context.Context, claim ir.Claim) (bool, error)
	Insert(ctx context.Context, claim ir.Claim, rec ir.Record) (bool, error)
	Replace(ctx context.Context, claim ir.Claim, owner ir.AccountID, rec ir.Record) (bool, error)
	Remove(ctx context.Context, claim ir.Claim, owner ir.AccountID) (bool, error)
}

// FaultyStore wraps a store and fails selected methods on demand.
type FaultyStore struct {
	ClaimStore

	mu          sync.Mutex
	failReads   bool
	failWrites  bool
	beforeWrite func()
	puts        int
	deletes     int
}

// NewFaultyStore wraps inner with no faults armed.
func NewFaultyStore(inner ClaimStore) *FaultyStore {
	return &FaultyStore{ClaimStore: inner}
}

// FailReads arms (or disarms) failures on Get and Has.
func (s *FaultyStore) FailReads(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failReads = on
}

// FailWrites arms (or disarms) failures on Insert, Replace and Remove.
func (s *FaultyStore) FailWrites(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWrites = on
}

// BeforeNextWrite runs fn once, just before the next write reaches the
// inner store. Tests use it to slip in a competing writer between the
// registry's checks and its write.
func (s *FaultyStore) BeforeNextWrite(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beforeWrite = fn
}

// Writes returns how many Insert/Replace and Remove calls reached the store.
func (s *FaultyStore) Writes() (puts, deletes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts, s.deletes
}

func (s *FaultyStore) readFault() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failReads {
		return ErrInjected
	}
	return nil
}

// write counts a write and returns the armed fault, running any pending
// BeforeNextWrite hook outside the lock.
func (s *FaultyStore) write(remove bool) error {
	s.mu.Lock()
	if remove {
		s.deletes++
	} else {
		s.puts++
	}
	fail := s.failWrites
	hook := s.beforeWrite
	s.beforeWrite = nil
	s.mu.Unlock()

	if fail {
		return ErrInjected
	}
	if hook != nil {
		hook()
	}
	return nil
}

func (s *FaultyStore) Get(ctx context.Context, claim ir.Claim) (ir.Record, bool, error) {
	if err := s.readFault(); err != nil {
		return ir.Record{}, false, err
	}
	return s.ClaimStore.Get(ctx, claim)
}

func (s *FaultyStore) Has(ctx context.Context, claim ir.Claim) (bool, error) {
	if err := s.readFault(); err != nil {
		return false, err
	}
	return s.ClaimStore.Has(ctx, claim)
}

func (s *FaultyStore) Insert(ctx context.Context, claim ir.Claim, rec ir.Record) (bool, error) {
	if err := s.write(false); err != nil {
		return false, err
	}
	return s.ClaimStore.Insert(ctx, claim, rec)
}

func (s *FaultyStore) Replace(ctx context.Context, claim ir.Claim, owner ir.AccountID, rec ir.Record) (bool, error) {
	if err := s.write(false); err != nil {
		return false, err
	}
	return s.ClaimStore.Replace(ctx, claim, owner, rec)
}

func (s *FaultyStore) Remove(ctx context.Context, claim ir.Claim, owner ir.AccountID) (bool, error) {
	if err := s.write(true); err != nil {
		return false, err
	}
	return s.ClaimStore.Remove(ctx, claim, owner)
}
