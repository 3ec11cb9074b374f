// Package scheduler defines the capability effects and stores use to run work
// now, later or repeatedly, plus the real-time implementations.
//
// Two implementations live here:
//   - Loop: bound to one goroutine. Work scheduled from that goroutine runs
//     inline; work scheduled from anywhere else is queued and run by the
//     owner in FIFO order.
//   - Immediate: runs scheduled work on the calling goroutine and timers on
//     their own goroutines.
//
// The virtual-time implementation used by tests lives in internal/testutil.
package scheduler

import (
	"sync"
	"time"
)

// Scheduler runs work now, after a delay, or repeatedly.
type Scheduler interface {
	// Now returns the scheduler's current time.
	Now() time.Time

	// MinimumTolerance is the smallest delay the scheduler distinguishes.
	MinimumTolerance() time.Duration

	// Schedule runs action as soon as possible.
	Schedule(action func())

	// ScheduleAfter runs action once delay has elapsed. Negative delays
	// count as zero.
	ScheduleAfter(delay time.Duration, action func())

	// ScheduleRepeating runs action after first and then every interval
	// until the returned handle is cancelled.
	ScheduleRepeating(first, interval time.Duration, action func()) Cancellable
}

// Cancellable stops scheduled work. Cancel is idempotent.
type Cancellable interface {
	Cancel()
}

type cancelFunc struct {
	once sync.Once
	fn   func()
}

func (c *cancelFunc) Cancel() {
	c.once.Do(c.fn)
}

// CancelFunc wraps fn as a Cancellable that calls fn at most once.
func CancelFunc(fn func()) Cancellable {
	return &cancelFunc{fn: fn}
}

// startRepeating drives a wall-clock repetition. Every firing is handed to
// deliver, which decides where the action runs. Firings are anchored to the
// first due time so they do not drift with delivery latency.
func startRepeating(first, interval, tolerance time.Duration, deliver func(func()), action func()) Cancellable {
	if first < 0 {
		first = 0
	}
	if interval < tolerance {
		interval = tolerance
	}

	var (
		mu      sync.Mutex
		stopped bool
		timer   *time.Timer
		due     = time.Now().Add(first)
	)

	live := func() bool {
		mu.Lock()
		defer mu.Unlock()
		return !stopped
	}

	var fire func()
	fire = func() {
		mu.Lock()
		if stopped {
			mu.Unlock()
			return
		}
		due = due.Add(interval)
		timer = time.AfterFunc(time.Until(due), fire)
		mu.Unlock()

		deliver(func() {
			if live() {
				action()
			}
		})
	}

	mu.Lock()
	timer = time.AfterFunc(first, fire)
	mu.Unlock()

	return CancelFunc(func() {
		mu.Lock()
		defer mu.Unlock()
		stopped = true
		timer.Stop()
	})
}
