package testutil

import "sync"

// TickClock is a resettable monotonic counter.
//
// TestScheduler stamps every pending entry with a tick from it to break ties
// between entries due at the same instant. The first call to Next returns 1.
type TickClock struct {
	mu   sync.Mutex
	tick int64
}

// NewTickClock creates a clock at 0.
func NewTickClock() *TickClock {
	return &TickClock{}
}

// Next increments and returns the tick.
func (c *TickClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tick++
	return c.tick
}

// Current returns the last tick handed out.
func (c *TickClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tick
}

// Reset sets the clock back to 0.
func (c *TickClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tick = 0
}
