// Package clock supplies logical block heights to the registry.
//
// Heights are never derived from wall time. Logical is an in-process
// counter; Chain persists the counter through a HeightStore so a restarted
// process resumes from the last committed height.
package clock

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/roach88/poe/internal/ir"
)

// Logical is a monotonic height counter.
//
// Thread-safety: Logical is safe for concurrent use (atomic operations).
type Logical struct {
	h atomic.Uint64
}

// New creates a clock at height 0.
func New() *Logical {
	return &Logical{}
}

// NewAt creates a clock at a specific height.
// Used to resume from a persisted height.
func NewAt(h ir.Height) *Logical {
	c := &Logical{}
	c.h.Store(uint64(h))
	return c
}

// CurrentHeight returns the current height without advancing.
func (c *Logical) CurrentHeight() ir.Height {
	return ir.Height(c.h.Load())
}

// Advance moves to the next height and returns it.
// Calls are linearizable: each returns a unique, increasing value.
func (c *Logical) Advance() ir.Height {
	return ir.Height(c.h.Add(1))
}

// HeightStore persists the last committed height.
type HeightStore interface {
	LoadHeight(ctx context.Context) (ir.Height, error)
	SaveHeight(ctx context.Context, h ir.Height) error
}

// Chain is a Logical clock whose height survives restarts.
// One Advance corresponds to one block.
type Chain struct {
	mu    sync.Mutex
	clock *Logical
	store HeightStore
}

// Open resumes a chain from the height recorded in hs.
func Open(ctx context.Context, hs HeightStore) (*Chain, error) {
	h, err := hs.LoadHeight(ctx)
	if err != nil {
		return nil, fmt.Errorf("load height: %w", err)
	}
	return &Chain{clock: NewAt(h), store: hs}, nil
}

// CurrentHeight returns the height of the current block.
func (c *Chain) CurrentHeight() ir.Height {
	return c.clock.CurrentHeight()
}

// Advance starts a new block and persists its height before returning it.
func (c *Chain) Advance(ctx context.Context) (ir.Height, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.clock.CurrentHeight() + 1
	if err := c.store.SaveHeight(ctx, next); err != nil {
		return 0, fmt.Errorf("save height %d: %w", next, err)
	}
	c.clock.h.Store(uint64(next))
	return next, nil
}
