package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// LoopTolerance is the minimum delay a Loop distinguishes.
const LoopTolerance = time.Millisecond

// Loop is a goroutine-affine scheduler.
//
// A Loop belongs to one goroutine: the one that created it, or later the one
// that calls Run. Schedule from the owner runs the action inline, so re-entry
// from the owner never pays a queue round-trip. Schedule from any other
// goroutine appends to a FIFO queue drained by Run or RunPending on the owner.
// Timers always fire off the owner and therefore always queue.
//
// Thread-safety model:
//   - Schedule, ScheduleAfter, ScheduleRepeating, Stop: safe from any goroutine
//   - Run, RunPending: owner only
type Loop struct {
	owner  atomic.Uint64
	queue  *taskQueue
	logger *slog.Logger
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithLoopLogger sets the logger used for dropped work and lifecycle messages.
func WithLoopLogger(logger *slog.Logger) LoopOption {
	return func(l *Loop) {
		l.logger = logger
	}
}

// NewLoop creates a Loop owned by the calling goroutine.
func NewLoop(opts ...LoopOption) *Loop {
	l := &Loop{
		queue:  newTaskQueue(),
		logger: slog.Default(),
	}
	l.owner.Store(goroutineID())

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Now returns the wall-clock time.
func (l *Loop) Now() time.Time {
	return time.Now()
}

// MinimumTolerance returns LoopTolerance.
func (l *Loop) MinimumTolerance() time.Duration {
	return LoopTolerance
}

// OnLoop reports whether the caller is the owner goroutine.
func (l *Loop) OnLoop() bool {
	return goroutineID() == l.owner.Load()
}

// Schedule runs action inline on the owner, otherwise queues it.
func (l *Loop) Schedule(action func()) {
	if l.OnLoop() {
		action()
		return
	}
	l.enqueue(action)
}

// ScheduleAfter queues action once delay has elapsed.
func (l *Loop) ScheduleAfter(delay time.Duration, action func()) {
	if delay <= 0 {
		l.enqueue(action)
		return
	}
	time.AfterFunc(delay, func() { l.enqueue(action) })
}

// ScheduleRepeating queues action after first and then every interval.
// Intervals shorter than LoopTolerance are raised to it.
func (l *Loop) ScheduleRepeating(first, interval time.Duration, action func()) Cancellable {
	return startRepeating(first, interval, LoopTolerance, l.enqueue, action)
}

func (l *Loop) enqueue(action func()) {
	if !l.queue.Enqueue(action) {
		l.logger.Debug("loop stopped, dropping scheduled work")
	}
}

// Run takes ownership of the loop for the calling goroutine and executes
// queued work until ctx is cancelled or Stop is called.
func (l *Loop) Run(ctx context.Context) error {
	l.owner.Store(goroutineID())
	l.logger.Debug("loop starting")

	for {
		if task, ok := l.queue.TryDequeue(); ok {
			task()
			continue
		}

		select {
		case <-ctx.Done():
			l.logger.Debug("loop stopping: context cancelled")
			l.queue.Close()
			return ctx.Err()

		case <-l.queue.Wait():
			// The signal channel is closed by Stop; drain what is left first.
			if l.queue.Closed() && l.queue.Len() == 0 {
				l.logger.Debug("loop stopping: queue closed")
				return nil
			}
		}
	}
}

// RunPending executes queued work, including work queued while running,
// until the queue is empty. Returns the number of tasks run.
func (l *Loop) RunPending() int {
	n := 0
	for {
		task, ok := l.queue.TryDequeue()
		if !ok {
			return n
		}
		task()
		n++
	}
}

// Pending returns the number of queued tasks.
func (l *Loop) Pending() int {
	return l.queue.Len()
}

// Stop rejects further queued work and makes Run return once the queue is
// empty.
func (l *Loop) Stop() {
	l.queue.Close()
}
