// Package counter is a small store feature: an integer that callers set,
// step and tick, and that resets itself after sitting too high for too long.
//
// It drives `flux run`, the YAML scenarios of `flux test`, and the store
// tests.
package counter

import (
	"fmt"
	"time"

	"github.com/roach88/flux/internal/effect"
	"github.com/roach88/flux/internal/scheduler"
	"github.com/roach88/flux/internal/store"
)

// TickerID is the cancellation id of the ticking effect.
const TickerID = "counter.ticker"

// Thresholds watched by the state poll and the reducer.
const (
	ResetAbove = 5
	ClampAbove = 100
	AlertAbove = 10
)

// State is the counter's state.
type State struct {
	Value int `json:"value" yaml:"value"`
}

// ActionKind names an action.
type ActionKind string

const (
	ActionSet          ActionKind = "set"
	ActionIncrement    ActionKind = "increment"
	ActionDecrement    ActionKind = "decrement"
	ActionStartTicking ActionKind = "start_ticking"
	ActionStopTicking  ActionKind = "stop_ticking"
)

// Action is what callers send.
type Action struct {
	Kind  ActionKind `json:"kind"`
	Value int        `json:"value,omitempty"`
}

// Set returns the action that sets the value to n.
func Set(n int) Action { return Action{Kind: ActionSet, Value: n} }

// Increment returns the action that adds one.
func Increment() Action { return Action{Kind: ActionIncrement} }

// Decrement returns the action that subtracts one.
func Decrement() Action { return Action{Kind: ActionDecrement} }

// StartTicking returns the action that starts adding one every tick.
func StartTicking() Action { return Action{Kind: ActionStartTicking} }

// StopTicking returns the action that stops the ticker.
func StopTicking() Action { return Action{Kind: ActionStopTicking} }

// MutationKind names a mutation.
type MutationKind string

const (
	MutationSet MutationKind = "set"
	MutationAdd MutationKind = "add"
)

// Mutation is an already validated change to the state.
type Mutation struct {
	Kind  MutationKind `json:"kind"`
	Value int          `json:"value"`
}

func (m Mutation) String() string {
	return fmt.Sprintf("%s(%d)", m.Kind, m.Value)
}

// EventKind names an event.
type EventKind string

const (
	EventOver10 EventKind = "over10"
	EventReset0 EventKind = "reset0"
)

// Event is emitted after a reduce step.
type Event struct {
	Kind  EventKind `json:"kind"`
	Value int       `json:"value,omitempty"`
}

// Over10 is emitted whenever the value ends a step above AlertAbove.
func Over10(v int) Event { return Event{Kind: EventOver10, Value: v} }

// Reset0 is emitted whenever the value ends a step at zero.
func Reset0() Event { return Event{Kind: EventReset0} }

func (e Event) String() string {
	if e.Kind == EventOver10 {
		return fmt.Sprintf("%s(%d)", e.Kind, e.Value)
	}
	return string(e.Kind)
}

// Environment is what the counter needs from the outside.
type Environment struct {
	Scheduler    scheduler.Scheduler
	Registry     *effect.Registry
	ResetDelay   time.Duration
	ClampDelay   time.Duration
	TickInterval time.Duration
}

// Default delays.
const (
	DefaultResetDelay   = 10 * time.Second
	DefaultClampDelay   = 5 * time.Second
	DefaultTickInterval = time.Second
)

// NewEnvironment returns an environment on sched with the default delays and
// a private registry.
func NewEnvironment(sched scheduler.Scheduler) Environment {
	return Environment{
		Scheduler:    sched,
		Registry:     effect.NewRegistry(),
		ResetDelay:   DefaultResetDelay,
		ClampDelay:   DefaultClampDelay,
		TickInterval: DefaultTickInterval,
	}
}

// Store is a counter store.
type Store = store.Store[State, Action, Mutation, Event, Environment]

// New creates a counter store at State{Value: initial}.
func New(initial int, env Environment, opts ...store.Option) *Store {
	return store.New(State{Value: initial}, env, Feature{}, opts...)
}

// Feature implements store.Feature and store.StatePoller.
type Feature struct{}

var (
	_ store.Feature[State, Action, Mutation, Event, Environment] = Feature{}
	_ store.StatePoller[State, Mutation, Environment]            = Feature{}
)

// Mutate translates actions into mutations.
func (Feature) Mutate(a Action, env Environment) effect.Effect[Mutation] {
	switch a.Kind {
	case ActionSet:
		return effect.Just(Mutation{Kind: MutationSet, Value: a.Value})
	case ActionIncrement:
		return effect.Just(Mutation{Kind: MutationAdd, Value: 1})
	case ActionDecrement:
		return effect.Just(Mutation{Kind: MutationAdd, Value: -1})
	case ActionStartTicking:
		ticks := effect.Every(env.TickInterval, env.TickInterval, env.Scheduler)
		return effect.Map(ticks, func(time.Time) Mutation {
			return Mutation{Kind: MutationAdd, Value: 1}
		}).CancellableIn(env.Registry, TickerID, true)
	case ActionStopTicking:
		return effect.CancelIn[Mutation](env.Registry, TickerID)
	default:
		return effect.Fail[Mutation](fmt.Errorf("unknown action kind %q", a.Kind))
	}
}

// Reduce applies m and reports threshold crossings.
func (Feature) Reduce(s *State, m Mutation) effect.Effect[Event] {
	switch m.Kind {
	case MutationSet:
		s.Value = m.Value
	case MutationAdd:
		s.Value += m.Value
	}

	switch {
	case s.Value > AlertAbove:
		return effect.Just(Over10(s.Value))
	case s.Value == 0:
		return effect.Just(Reset0())
	default:
		return effect.None[Event]()
	}
}

// PollState resets the value to 0 once it has stayed above ResetAbove for
// ResetDelay, and to 1 once it has stayed above ClampAbove for ClampDelay.
// Every new state restarts both timers.
func (Feature) PollState(states effect.Effect[State], env Environment) effect.Effect[Mutation] {
	settle := func(after time.Duration, above int, to int) effect.Effect[Mutation] {
		delayed := effect.SwitchMap(states, func(s State) effect.Effect[int] {
			return effect.Delay(effect.Just(s.Value), after, env.Scheduler)
		})
		high := effect.Filter(delayed, func(v int) bool { return v > above })
		return effect.Map(high, func(int) Mutation {
			return Mutation{Kind: MutationSet, Value: to}
		})
	}

	return effect.Merge(
		settle(env.ResetDelay, ResetAbove, 0),
		settle(env.ClampDelay, ClampAbove, 1),
	)
}
