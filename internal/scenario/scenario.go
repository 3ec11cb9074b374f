// Package scenario checks a store step by step against an expected state.
//
// A scenario starts from the store's current state as the expectation. Every
// step does something to the store and edits the expectation the same way;
// after each step the two must be equal. Events the store emits must be
// claimed, in order, with Receive steps.
//
//	sc := scenario.ForStore(t, s)
//	sc.Run(
//		sc.Action(counter.Set(20), func(st *counter.State) { st.Value = 20 }),
//		sc.Receive(counter.Over10(20)),
//		sc.Do(func() error { return sched.AdvanceBy(10 * time.Second) },
//			func(st *counter.State) { st.Value = 0 }),
//		sc.Receive(counter.Reset0()),
//	)
package scenario

import (
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/roach88/flux/internal/effect"
	"github.com/roach88/flux/internal/store"
)

// Target is the part of a store a scenario drives. *store.Store satisfies it.
type Target[S, A, E any] interface {
	Send(action A)
	State() S
	Events() effect.Effect[E]
}

type stepKind int

const (
	kindAction stepKind = iota + 1
	kindDo
	kindThen
	kindReceive
)

func (k stepKind) String() string {
	switch k {
	case kindAction:
		return "action"
	case kindDo:
		return "do"
	case kindThen:
		return "then"
	case kindReceive:
		return "receive"
	default:
		return "unknown"
	}
}

// Step is one scenario step. Build steps with Action, Do, Then and Receive.
type Step[S, A, E any] struct {
	kind   stepKind
	action A
	work   func() error
	event  E
	update []func(*S)
	at     string
}

func (s Step[S, A, E]) String() string {
	return fmt.Sprintf("%s step at %s", s.kind, s.at)
}

// Scenario builds and runs steps against one target.
type Scenario[S, A, E any] struct {
	t      testing.TB
	target Target[S, A, E]
}

// New creates a scenario over target.
func New[S, A, E any](t testing.TB, target Target[S, A, E]) *Scenario[S, A, E] {
	return &Scenario[S, A, E]{t: t, target: target}
}

// ForStore creates a scenario over a store, inferring the type parameters.
func ForStore[S, A, M, E, Env any](t testing.TB, s *store.Store[S, A, M, E, Env]) *Scenario[S, A, E] {
	return New[S, A, E](t, s)
}

// Action sends a to the store; update edits the expected state.
func (sc *Scenario[S, A, E]) Action(a A, update ...func(*S)) Step[S, A, E] {
	return Step[S, A, E]{kind: kindAction, action: a, update: update, at: caller()}
}

// Do runs work, typically advancing a scheduler; update edits the expected
// state.
func (sc *Scenario[S, A, E]) Do(work func() error, update ...func(*S)) Step[S, A, E] {
	return Step[S, A, E]{kind: kindDo, work: work, update: update, at: caller()}
}

// Then only edits the expected state.
func (sc *Scenario[S, A, E]) Then(update func(*S)) Step[S, A, E] {
	return Step[S, A, E]{kind: kindThen, update: []func(*S){update}, at: caller()}
}

// Receive claims the oldest unclaimed event, which must equal e.
func (sc *Scenario[S, A, E]) Receive(e E, update ...func(*S)) Step[S, A, E] {
	return Step[S, A, E]{kind: kindReceive, event: e, update: update, at: caller()}
}

func caller() string {
	_, file, line, ok := runtime.Caller(2)
	if !ok {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", filepath.Base(file), line)
}

// inbox collects events until a Receive step claims them.
type inbox[E any] struct {
	mu     sync.Mutex
	events []E
}

func (b *inbox[E]) push(e E) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

func (b *inbox[E]) pop() (E, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var zero E
	if len(b.events) == 0 {
		return zero, false
	}
	e := b.events[0]
	b.events = b.events[1:]
	return e, true
}

func (b *inbox[E]) drain() []E {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.events
	b.events = nil
	return out
}

// Run executes steps against target and reports every mismatch on t.
// A failing step does not stop the scenario; later steps still run so one
// report shows every divergence.
//
// Events still unclaimed when an Action or Do step starts, or when the
// scenario ends, fail the scenario. States and events are compared with
// go-cmp, so neither may carry unexported fields.
func (sc *Scenario[S, A, E]) Run(steps ...Step[S, A, E]) {
	t, target := sc.t, sc.target
	t.Helper()

	received := &inbox[E]{}
	sub := target.Events().Subscribe(received.push, nil)
	defer sub.Cancel()

	expected := target.State()

	for i, step := range steps {
		switch step.kind {
		case kindAction, kindDo:
			if left := received.drain(); len(left) > 0 {
				t.Errorf("step %d (%s): unreceived events before this step: %v", i, step, left)
			}
		}

		switch step.kind {
		case kindAction:
			target.Send(step.action)
		case kindDo:
			if err := step.work(); err != nil {
				t.Errorf("step %d (%s): %v", i, step, err)
			}
		case kindReceive:
			got, ok := received.pop()
			if !ok {
				t.Errorf("step %d (%s): expected event %v, none was emitted", i, step, step.event)
			} else if diff := cmp.Diff(step.event, got); diff != "" {
				t.Errorf("step %d (%s): event does not match (-expected +actual):\n%s", i, step, diff)
			}
		}

		for _, update := range step.update {
			if update != nil {
				update(&expected)
			}
		}

		if diff := cmp.Diff(expected, target.State()); diff != "" {
			t.Errorf("step %d (%s): state change does not match expectation (-expected +actual):\n%s", i, step, diff)
		}
	}

	if left := received.drain(); len(left) > 0 {
		t.Errorf("scenario ended with unreceived events: %v", left)
	}
}
