package testutil

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/roach88/flux/internal/effect"
	"github.com/roach88/flux/internal/scheduler"
)

// EventKind tells recorded events apart.
type EventKind int

const (
	KindNext EventKind = iota + 1
	KindFinished
	KindFailed
)

// Event is what a Recorder saw: a value, a finish, or a failure.
type Event[T any] struct {
	Kind  EventKind
	Value T
	Err   error
}

func (e Event[T]) String() string {
	switch e.Kind {
	case KindNext:
		return fmt.Sprintf("next(%v)", e.Value)
	case KindFinished:
		return "finished"
	case KindFailed:
		return fmt.Sprintf("failed(%v)", e.Err)
	default:
		return fmt.Sprintf("unknown(%d)", e.Kind)
	}
}

// Record is an Event stamped with the virtual time elapsed since the
// recorder was created.
type Record[T any] struct {
	Time time.Duration
	Event[T]
}

// Next is the expected record for a value received at at.
func Next[T any](v T, at time.Duration) Record[T] {
	return Record[T]{Time: at, Event: Event[T]{Kind: KindNext, Value: v}}
}

// Finished is the expected record for a finish at at.
func Finished[T any](at time.Duration) Record[T] {
	return Record[T]{Time: at, Event: Event[T]{Kind: KindFinished}}
}

// Failed is the expected record for a failure at at.
func Failed[T any](err error, at time.Duration) Record[T] {
	return Record[T]{Time: at, Event: Event[T]{Kind: KindFailed, Err: err}}
}

// Recorder subscribes to an effect and logs everything it receives against
// a scheduler's clock. Once a terminal event arrives it cancels its
// subscription.
type Recorder[T any] struct {
	sched scheduler.Scheduler
	start time.Time

	mu      sync.Mutex
	records []Record[T]
	sub     effect.Subscription
	ended   bool
}

// NewRecorder creates a recorder whose time origin is sched.Now().
func NewRecorder[T any](sched scheduler.Scheduler) *Recorder[T] {
	return &Recorder[T]{sched: sched, start: sched.Now()}
}

// RecordEffect subscribes a new recorder to e. Shorthand for NewRecorder followed
// by Subscribe.
func RecordEffect[T any](sched scheduler.Scheduler, e effect.Effect[T]) *Recorder[T] {
	r := NewRecorder[T](sched)
	r.Subscribe(e)
	return r
}

// Subscribe starts e and feeds it into the recorder.
func (r *Recorder[T]) Subscribe(e effect.Effect[T]) {
	sub := e.Subscribe(r.Next, r.Complete)

	r.mu.Lock()
	ended := r.ended
	if !ended {
		r.sub = sub
	}
	r.mu.Unlock()

	if ended {
		sub.Cancel()
	}
}

// Next records a value.
func (r *Recorder[T]) Next(v T) {
	r.append(Event[T]{Kind: KindNext, Value: v})
}

// Complete records a finish (nil) or a failure and cancels the subscription.
func (r *Recorder[T]) Complete(err error) {
	if err != nil {
		r.append(Event[T]{Kind: KindFailed, Err: err})
	} else {
		r.append(Event[T]{Kind: KindFinished})
	}
	r.Cancel()
}

// Cancel stops the subscription without recording anything.
func (r *Recorder[T]) Cancel() {
	r.mu.Lock()
	sub := r.sub
	r.sub = nil
	r.ended = true
	r.mu.Unlock()

	if sub != nil {
		sub.Cancel()
	}
}

func (r *Recorder[T]) append(ev Event[T]) {
	at := r.sched.Now().Sub(r.start)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, Record[T]{Time: at, Event: ev})
}

// Records returns a copy of everything recorded so far.
func (r *Recorder[T]) Records() []Record[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record[T], len(r.records))
	copy(out, r.records)
	return out
}

// Values returns just the received values.
func (r *Recorder[T]) Values() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []T
	for _, rec := range r.records {
		if rec.Kind == KindNext {
			out = append(out, rec.Value)
		}
	}
	return out
}

// String renders the records as a tree, one event per branch with its time
// underneath:
//
//	┣ next(1)
//	┃    ┗ @ 0s
//	┗ finished
//	     ┗ @ 1s
func (r *Recorder[T]) String() string {
	return FormatRecords(r.Records())
}

// FormatRecords renders records the way Recorder.String does.
func FormatRecords[T any](records []Record[T]) string {
	if len(records) == 0 {
		return "(empty)\n"
	}

	var b strings.Builder
	for i, rec := range records {
		if i < len(records)-1 {
			fmt.Fprintf(&b, "┣ %s\n┃    ┗ @ %s\n", rec.Event, rec.Time)
		} else {
			fmt.Fprintf(&b, "┗ %s\n     ┗ @ %s\n", rec.Event, rec.Time)
		}
	}
	return b.String()
}
