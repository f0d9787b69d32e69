package testutil

import (
	"sync"

	"github.com/roach88/poe/internal/ir"
)

// ManualClock is a height clock driven explicitly by the test.
//
// Unlike clock.Logical, ManualClock can be set to arbitrary heights and
// reset, so a scenario can replay a fixed height sequence such as 1,2,2,3.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type ManualClock struct {
	mu sync.Mutex
	h  ir.Height
}

// NewManualClock creates a clock at height h.
func NewManualClock(h ir.Height) *ManualClock {
	return &ManualClock{h: h}
}

// CurrentHeight returns the height last set.
func (c *ManualClock) CurrentHeight() ir.Height {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.h
}

// Set moves the clock to h. Tests are responsible for keeping the
// sequence non-decreasing.
func (c *ManualClock) Set(h ir.Height) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.h = h
}

// Advance increments the height and returns it.
func (c *ManualClock) Advance() ir.Height {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.h++
	return c.h
}

// Reset returns the clock to height 0.
func (c *ManualClock) Reset() {
	c.Set(0)
}
