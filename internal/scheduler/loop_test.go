package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLoop() *Loop {
	return NewLoop(WithLoopLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func TestLoop_ScheduleOnOwnerRunsInline(t *testing.T) {
	l := quietLoop()

	ran := false
	l.Schedule(func() { ran = true })

	assert.True(t, ran, "owner goroutine should run inline")
	assert.Equal(t, 0, l.Pending())
}

func TestLoop_ScheduleFromOtherGoroutineQueues(t *testing.T) {
	l := quietLoop()

	var order []string
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.False(t, l.OnLoop())
		l.Schedule(func() { order = append(order, "a") })
		l.Schedule(func() { order = append(order, "b") })
	}()
	<-done

	assert.Empty(t, order, "work from other goroutines waits for the owner")
	assert.Equal(t, 2, l.RunPending())
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestLoop_ReentrantScheduleDuringRunPending(t *testing.T) {
	l := quietLoop()

	var order []string
	go func() {
		l.Schedule(func() {
			order = append(order, "outer")
			l.Schedule(func() { order = append(order, "inner") })
			order = append(order, "after")
		})
	}()

	require.Eventually(t, func() bool { return l.Pending() == 1 }, time.Second, time.Millisecond)
	l.RunPending()

	assert.Equal(t, []string{"outer", "inner", "after"}, order)
}

func TestLoop_ScheduleAfterQueues(t *testing.T) {
	l := quietLoop()

	var fired atomic.Bool
	l.ScheduleAfter(5*time.Millisecond, func() { fired.Store(true) })

	require.Eventually(t, func() bool { return l.Pending() == 1 }, time.Second, time.Millisecond)
	assert.False(t, fired.Load(), "timer work must wait for the owner")

	l.RunPending()
	assert.True(t, fired.Load())
}

func TestLoop_RunStopsOnContextCancel(t *testing.T) {
	l := quietLoop()
	ctx, cancel := context.WithCancel(context.Background())

	results := make(chan int, 10)
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()

	require.Eventually(t, func() bool { return !l.OnLoop() }, time.Second, time.Millisecond)
	for i := 0; i < 3; i++ {
		l.Schedule(func() { results <- i })
	}
	for i := 0; i < 3; i++ {
		assert.Equal(t, i, <-results)
	}

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
}

func TestLoop_StopDrainsQueue(t *testing.T) {
	l := quietLoop()

	var count atomic.Int32
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 5; i++ {
			l.Schedule(func() { count.Add(1) })
		}
		l.Stop()
	}()
	wg.Wait()

	require.NoError(t, l.Run(context.Background()))
	assert.Equal(t, int32(5), count.Load())

	// Dropped after stop.
	l.ScheduleAfter(0, func() { count.Add(1) })
	assert.Equal(t, 0, l.Pending())
}

func TestLoop_ScheduleRepeatingCancel(t *testing.T) {
	l := quietLoop()

	var count atomic.Int32
	handle := l.ScheduleRepeating(time.Millisecond, time.Millisecond, func() { count.Add(1) })

	require.Eventually(t, func() bool {
		l.RunPending()
		return count.Load() >= 3
	}, time.Second, time.Millisecond)

	handle.Cancel()
	handle.Cancel()
	l.RunPending()
	seen := count.Load()

	time.Sleep(10 * time.Millisecond)
	l.RunPending()
	assert.Equal(t, seen, count.Load(), "no firings after cancel")
}

func TestCancelFunc_Idempotent(t *testing.T) {
	calls := 0
	c := CancelFunc(func() { calls++ })

	c.Cancel()
	c.Cancel()

	assert.Equal(t, 1, calls)
}

func TestImmediate_Schedule(t *testing.T) {
	var s Scheduler = Immediate{}

	ran := false
	s.Schedule(func() { ran = true })
	assert.True(t, ran)

	ran = false
	s.ScheduleAfter(-time.Second, func() { ran = true })
	assert.True(t, ran, "non-positive delays run inline")
	assert.Zero(t, s.MinimumTolerance())
}

func TestImmediate_ScheduleRepeating(t *testing.T) {
	var count atomic.Int32
	handle := Immediate{}.ScheduleRepeating(0, time.Millisecond, func() { count.Add(1) })
	defer handle.Cancel()

	require.Eventually(t, func() bool { return count.Load() >= 2 }, time.Second, time.Millisecond)
}

func TestGoroutineID_DiffersAcrossGoroutines(t *testing.T) {
	mine := goroutineID()
	require.NotZero(t, mine)

	other := make(chan uint64)
	go func() { other <- goroutineID() }()

	assert.NotEqual(t, mine, <-other)
	assert.Equal(t, mine, goroutineID())
}
