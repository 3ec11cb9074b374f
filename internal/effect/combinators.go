package effect

import (
	"sync"
	"time"

	"github.com/roach88/flux/internal/scheduler"
)

// Merge runs all effects at once and interleaves their values in arrival
// order. It finishes when every effect finished. The first failure fails the
// merge and cancels the rest.
func Merge[T any](effs ...Effect[T]) Effect[T] {
	return New(func(em *Emitter[T]) {
		if len(effs) == 0 {
			em.Finish()
			return
		}

		var mu sync.Mutex
		remaining := len(effs)

		for _, e := range effs {
			if em.Done() {
				return
			}
			attach(em, e, func(v T) { em.Next(v) }, func(err error) {
				if err != nil {
					em.Fail(err)
					return
				}
				mu.Lock()
				remaining--
				last := remaining == 0
				mu.Unlock()
				if last {
					em.Finish()
				}
			})
		}
	})
}

// Concat runs effects one after another; each starts when the previous one
// finished. A failure stops the sequence.
func Concat[T any](effs ...Effect[T]) Effect[T] {
	return New(func(em *Emitter[T]) {
		var next func(i int)
		next = func(i int) {
			if i == len(effs) {
				em.Finish()
				return
			}
			if em.Done() {
				return
			}
			attach(em, effs[i], func(v T) { em.Next(v) }, func(err error) {
				if err != nil {
					em.Fail(err)
					return
				}
				next(i + 1)
			})
		}
		next(0)
	})
}

// Map transforms every value.
func Map[T, U any](e Effect[T], fn func(T) U) Effect[U] {
	return New(func(em *Emitter[U]) {
		attach(em, e, func(v T) { em.Next(fn(v)) }, em.complete)
	})
}

// Filter drops values for which keep reports false.
func Filter[T any](e Effect[T], keep func(T) bool) Effect[T] {
	return New(func(em *Emitter[T]) {
		attach(em, e, func(v T) {
			if keep(v) {
				em.Next(v)
			}
		}, em.complete)
	})
}

// Catch replaces a failure with the effect returned by recover.
func Catch[T any](e Effect[T], recover func(error) Effect[T]) Effect[T] {
	return New(func(em *Emitter[T]) {
		attach(em, e, func(v T) { em.Next(v) }, func(err error) {
			if err == nil {
				em.Finish()
				return
			}
			attach(em, recover(err), func(v T) { em.Next(v) }, em.complete)
		})
	})
}

// FlatMap maps every value to an inner effect and merges all inner effects.
// It finishes once the source and every inner effect finished.
func FlatMap[T, U any](e Effect[T], fn func(T) Effect[U]) Effect[U] {
	return New(func(em *Emitter[U]) {
		var mu sync.Mutex
		active := 1

		release := func(err error) {
			if err != nil {
				em.Fail(err)
				return
			}
			mu.Lock()
			active--
			last := active == 0
			mu.Unlock()
			if last {
				em.Finish()
			}
		}

		attach(em, e, func(v T) {
			if em.Done() {
				return
			}
			mu.Lock()
			active++
			mu.Unlock()
			attach(em, fn(v), func(u U) { em.Next(u) }, release)
		}, release)
	})
}

// SwitchMap maps every value to an inner effect, cancelling the previous
// inner effect. Only the latest inner effect emits.
func SwitchMap[T, U any](e Effect[T], fn func(T) Effect[U]) Effect[U] {
	return New(func(em *Emitter[U]) {
		var (
			mu        sync.Mutex
			gen       uint64
			current   Subscription
			innerLive bool
			outerDone bool
		)

		attach(em, e, func(v T) {
			if em.Done() {
				return
			}
			mu.Lock()
			gen++
			mine := gen
			prev := current
			current = nil
			innerLive = true
			mu.Unlock()

			if prev != nil {
				prev.Cancel()
			}

			sub := attach(em, fn(v), func(u U) {
				mu.Lock()
				stale := mine != gen
				mu.Unlock()
				if !stale {
					em.Next(u)
				}
			}, func(err error) {
				mu.Lock()
				if mine != gen {
					mu.Unlock()
					return
				}
				innerLive = false
				current = nil
				finish := outerDone
				mu.Unlock()

				if err != nil {
					em.Fail(err)
					return
				}
				if finish {
					em.Finish()
				}
			})

			mu.Lock()
			if mine == gen && innerLive {
				current = sub
			}
			mu.Unlock()
		}, func(err error) {
			if err != nil {
				em.Fail(err)
				return
			}
			mu.Lock()
			outerDone = true
			finish := !innerLive
			mu.Unlock()
			if finish {
				em.Finish()
			}
		})
	})
}

// Delay shifts every value and the terminal signal of e by d on s.
func Delay[T any](e Effect[T], d time.Duration, s scheduler.Scheduler) Effect[T] {
	return New(func(em *Emitter[T]) {
		attach(em, e, func(v T) {
			s.ScheduleAfter(d, func() { em.Next(v) })
		}, func(err error) {
			s.ScheduleAfter(d, func() { em.complete(err) })
		})
	})
}

// ReceiveOn hands every value and the terminal signal of e to s.
func ReceiveOn[T any](e Effect[T], s scheduler.Scheduler) Effect[T] {
	return New(func(em *Emitter[T]) {
		attach(em, e, func(v T) {
			s.Schedule(func() { em.Next(v) })
		}, func(err error) {
			s.Schedule(func() { em.complete(err) })
		})
	})
}

// Every emits s.Now() after first and then every interval until cancelled.
func Every(first, interval time.Duration, s scheduler.Scheduler) Effect[time.Time] {
	return New(func(em *Emitter[time.Time]) {
		handle := s.ScheduleRepeating(first, interval, func() {
			em.Next(s.Now())
		})
		em.OnDispose(handle.Cancel)
	})
}
