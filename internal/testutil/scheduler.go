package testutil

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/roach88/flux/internal/scheduler"
)

var (
	// ErrClockRewind is returned when asked to move virtual time backwards.
	ErrClockRewind = errors.New("virtual clock cannot move backwards")

	// ErrDrainLimit is returned by Drain when work keeps rescheduling itself.
	ErrDrainLimit = errors.New("drain limit reached")

	// ErrNestedAdvance is returned when a scheduled action advances the
	// clock that is running it.
	ErrNestedAdvance = errors.New("virtual clock is already advancing")
)

// DefaultDrainLimit bounds the number of advances Drain performs.
const DefaultDrainLimit = 10000

// Epoch is the virtual time a TestScheduler starts at by default.
var Epoch = time.Unix(0, 0).UTC()

// pendingWork is one queued action. Entries due at the same instant run in
// tick order; a repeating action keeps its tick across firings.
type pendingWork struct {
	tick   int64
	due    time.Time
	action func()
}

// TestScheduler is a virtual-time Scheduler. Nothing runs until the test
// advances the clock, and everything runs on the goroutine that advances it.
//
// Time never moves backwards. Work due at the same instant runs in the order
// it was first scheduled.
type TestScheduler struct {
	mu         sync.Mutex
	now        time.Time
	ticks      *TickClock
	pending    []pendingWork
	drainLimit int
	advancing  bool
}

var _ scheduler.Scheduler = (*TestScheduler)(nil)

// NewTestScheduler creates a scheduler at Epoch.
func NewTestScheduler() *TestScheduler {
	return NewTestSchedulerAt(Epoch)
}

// NewTestSchedulerAt creates a scheduler at start.
func NewTestSchedulerAt(start time.Time) *TestScheduler {
	return &TestScheduler{
		now:        start,
		ticks:      NewTickClock(),
		drainLimit: DefaultDrainLimit,
	}
}

// SetDrainLimit changes how many advances Drain may perform.
func (s *TestScheduler) SetDrainLimit(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drainLimit = n
}

// Now returns the virtual time.
func (s *TestScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// MinimumTolerance returns zero: virtual time has no granularity.
func (s *TestScheduler) MinimumTolerance() time.Duration {
	return 0
}

// Pending returns the number of queued entries.
func (s *TestScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Schedule queues action for the current virtual time.
func (s *TestScheduler) Schedule(action func()) {
	s.ScheduleAfter(0, action)
}

// ScheduleAfter queues action for now+delay. Negative delays count as zero.
func (s *TestScheduler) ScheduleAfter(delay time.Duration, action func()) {
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.enqueue(s.ticks.Next(), s.now.Add(delay), action)
}

// ScheduleRepeating queues action for now+first and, each time it fires,
// requeues it one interval after its previous due time under the same tick.
// Cancelling the handle removes every entry with that tick. Non-positive
// intervals are raised to one nanosecond.
func (s *TestScheduler) ScheduleRepeating(first, interval time.Duration, action func()) scheduler.Cancellable {
	if first < 0 {
		first = 0
	}
	if interval <= 0 {
		interval = time.Nanosecond
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tick := s.ticks.Next()
	cancelled := false

	var fire func(due time.Time) func()
	fire = func(due time.Time) func() {
		return func() {
			s.mu.Lock()
			if cancelled {
				s.mu.Unlock()
				return
			}
			next := due.Add(interval)
			s.enqueue(tick, next, fire(next))
			s.mu.Unlock()

			action()
		}
	}

	s.enqueue(tick, s.now.Add(first), fire(s.now.Add(first)))

	return scheduler.CancelFunc(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		cancelled = true
		s.pending = slices.DeleteFunc(s.pending, func(w pendingWork) bool {
			return w.tick == tick
		})
	})
}

// enqueue appends an entry. Callers hold s.mu.
func (s *TestScheduler) enqueue(tick int64, due time.Time, action func()) {
	s.pending = append(s.pending, pendingWork{tick: tick, due: due, action: action})
}

// sortPending orders entries by due time, then tick. Callers hold s.mu.
func (s *TestScheduler) sortPending() {
	slices.SortStableFunc(s.pending, func(a, b pendingWork) int {
		if c := a.due.Compare(b.due); c != 0 {
			return c
		}
		switch {
		case a.tick < b.tick:
			return -1
		case a.tick > b.tick:
			return 1
		}
		return 0
	})
}

// AdvanceBy moves virtual time forward by d, running everything that falls
// due on the way.
func (s *TestScheduler) AdvanceBy(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("advance by %s: %w", d, ErrClockRewind)
	}
	return s.AdvanceTo(s.Now().Add(d))
}

// AdvanceTo moves virtual time to target, running every entry due at or
// before target in (due, tick) order. Work scheduled by running actions is
// interleaved with what was already pending. On return Now() == target.
//
// A target before Now() is rejected with ErrClockRewind and nothing runs.
// Actions run by the advance cannot advance the clock themselves: those
// calls fail with ErrNestedAdvance.
func (s *TestScheduler) AdvanceTo(target time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.advancing {
		return fmt.Errorf("advance to %s: %w", target.Format(time.RFC3339Nano), ErrNestedAdvance)
	}
	if target.Before(s.now) {
		return fmt.Errorf("advance to %s from %s: %w", target.Format(time.RFC3339Nano), s.now.Format(time.RFC3339Nano), ErrClockRewind)
	}

	s.advancing = true
	defer func() { s.advancing = false }()

	for {
		s.sortPending()

		if len(s.pending) == 0 || s.pending[0].due.After(target) {
			s.now = target
			return nil
		}

		next := s.pending[0].due
		s.now = next

		for len(s.pending) > 0 && s.pending[0].due.Equal(next) {
			work := s.pending[0]
			s.pending[0] = pendingWork{}
			s.pending = s.pending[1:]

			// Actions schedule more work; run them unlocked.
			s.mu.Unlock()
			work.action()
			s.mu.Lock()
		}
	}
}

// Drain advances to the latest pending due time until nothing is pending.
// Work that keeps rescheduling itself makes Drain stop with ErrDrainLimit.
func (s *TestScheduler) Drain() error {
	s.mu.Lock()
	limit := s.drainLimit
	nested := s.advancing
	s.mu.Unlock()

	if nested {
		return fmt.Errorf("drain: %w", ErrNestedAdvance)
	}

	for round := 0; ; round++ {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.mu.Unlock()
			return nil
		}
		latest := s.pending[0].due
		for _, w := range s.pending[1:] {
			if w.due.After(latest) {
				latest = w.due
			}
		}
		s.mu.Unlock()

		if round >= limit {
			return fmt.Errorf("drain after %d rounds: %w", round, ErrDrainLimit)
		}
		if err := s.AdvanceTo(latest); err != nil {
			return err
		}
	}
}
