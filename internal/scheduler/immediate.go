package scheduler

import "time"

// Immediate runs scheduled work on the calling goroutine. Delayed and
// repeating work runs on timer goroutines.
type Immediate struct{}

// Now returns the wall-clock time.
func (Immediate) Now() time.Time {
	return time.Now()
}

// MinimumTolerance returns zero.
func (Immediate) MinimumTolerance() time.Duration {
	return 0
}

// Schedule calls action.
func (Immediate) Schedule(action func()) {
	action()
}

// ScheduleAfter calls action from a timer goroutine after delay.
func (Immediate) ScheduleAfter(delay time.Duration, action func()) {
	if delay <= 0 {
		action()
		return
	}
	time.AfterFunc(delay, action)
}

// ScheduleRepeating calls action from timer goroutines.
func (Immediate) ScheduleRepeating(first, interval time.Duration, action func()) Cancellable {
	return startRepeating(first, interval, time.Millisecond, func(fn func()) { fn() }, action)
}

var (
	_ Scheduler = Immediate{}
	_ Scheduler = (*Loop)(nil)
)
