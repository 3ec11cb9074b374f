package store

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/flux/internal/effect"
	"github.com/roach88/flux/internal/observability"
	"github.com/roach88/flux/internal/scheduler"
)

// Feature is the behaviour a Store runs.
//
// Mutate translates an action into mutations; it may consult env and return
// asynchronous effects. Reduce applies one mutation to the state in place and
// returns the effect whose values are the step's events.
type Feature[S, A, M, E, Env any] interface {
	Mutate(action A, env Env) effect.Effect[M]
	Reduce(state *S, mutation M) effect.Effect[E]
}

// Poller is an optional Feature extension: a mutation source started once
// at construction.
type Poller[M, Env any] interface {
	Poll(env Env) effect.Effect[M]
}

// StatePoller is an optional Feature extension that derives mutations from
// the state stream. states replays the current state on subscription.
type StatePoller[S, M, Env any] interface {
	PollState(states effect.Effect[S], env Env) effect.Effect[M]
}

// Feedback is an optional Feature extension for events that are also
// mutations. Events for which Feedback reports true are reduced in turn.
type Feedback[E, M any] interface {
	Feedback(event E) (M, bool)
}

// Store owns a state value and serializes every change to it.
//
// Thread-safety model:
//   - Send, State, States, Events: safe from any goroutine
//   - everything else runs on the scheduler (the Loop owner by default),
//     including Close and OutstandingEffects
type Store[S, A, M, E, Env any] struct {
	feature  Feature[S, A, M, E, Env]
	env      Env
	feedback func(E) (M, bool)

	name     string
	sched    scheduler.Scheduler
	logger   *slog.Logger
	metrics  observability.MetricsRecorder
	observer Observer
	ids      IDGenerator
	ctx      context.Context

	state   S
	states  *effect.ValueSubject[S]
	actions *effect.Subject[A]
	events  *effect.Subject[E]

	// Owned by the scheduler goroutine.
	reducing  bool
	draining  bool
	syncQueue []M
	buffered  []M
	effects   map[string]effect.Subscription
	step      int64

	pipeline effect.Subscription
	closed   atomic.Bool
}

// New creates a store holding initial and starts its mutation sources.
func New[S, A, M, E, Env any](initial S, env Env, feature Feature[S, A, M, E, Env], opts ...Option) *Store[S, A, M, E, Env] {
	cfg := config{
		name:    "store",
		logger:  slog.Default(),
		metrics: observability.NoopMetrics{},
		ids:     UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.scheduler == nil {
		cfg.scheduler = scheduler.NewLoop(scheduler.WithLoopLogger(cfg.logger))
	}

	s := &Store[S, A, M, E, Env]{
		feature:  feature,
		env:      env,
		name:     cfg.name,
		sched:    cfg.scheduler,
		logger:   cfg.logger.With("store", cfg.name),
		metrics:  cfg.metrics,
		observer: cfg.observer,
		ids:      cfg.ids,
		ctx:      context.Background(),
		state:    initial,
		states:   effect.NewValueSubject(initial),
		actions:  effect.NewSubject[A](),
		events:   effect.NewSubject[E](),
		effects:  make(map[string]effect.Subscription),
	}
	if fb, ok := any(feature).(Feedback[E, M]); ok {
		s.feedback = fb.Feedback
	}

	s.attach()
	return s
}

// attach merges the poll sources and the action intake and routes every
// mutation through the scheduler into dispatch.
func (s *Store[S, A, M, E, Env]) attach() {
	var sources []effect.Effect[M]

	if p, ok := any(s.feature).(Poller[M, Env]); ok {
		sources = append(sources, s.guard("poll", p.Poll(s.env)))
	}
	if p, ok := any(s.feature).(StatePoller[S, M, Env]); ok {
		sources = append(sources, s.guard("poll state", p.PollState(s.states.Effect(), s.env)))
	}
	sources = append(sources, effect.FlatMap(s.actions.Effect(), func(a A) effect.Effect[M] {
		return s.guard("mutate", s.feature.Mutate(a, s.env))
	}))

	s.pipeline = effect.Merge(sources...).Subscribe(func(m M) {
		s.sched.Schedule(func() { s.dispatch(m) })
	}, nil)
}

// guard keeps a failing source from tearing down the whole pipeline.
func (s *Store[S, A, M, E, Env]) guard(source string, e effect.Effect[M]) effect.Effect[M] {
	return effect.Catch(e, func(err error) effect.Effect[M] {
		s.logger.Warn("mutation source failed", "source", source, "error", err)
		return effect.None[M]()
	})
}

// Send submits an action. Safe from any goroutine; actions sent after Close
// are dropped.
func (s *Store[S, A, M, E, Env]) Send(action A) {
	if s.closed.Load() {
		s.logger.Debug("store closed, dropping action")
		return
	}
	s.actions.Send(action)
}

// State returns the state as of the last reduce step.
func (s *Store[S, A, M, E, Env]) State() S {
	return s.states.Value()
}

// States returns an effect that replays the current state and then every
// state after each reduce step.
func (s *Store[S, A, M, E, Env]) States() effect.Effect[S] {
	return s.states.Effect()
}

// Events returns an effect of every event emitted after it was subscribed,
// in the order their reduce steps ran.
func (s *Store[S, A, M, E, Env]) Events() effect.Effect[E] {
	return s.events.Effect()
}

// OutstandingEffects returns the number of reduce effects still running.
func (s *Store[S, A, M, E, Env]) OutstandingEffects() int {
	return len(s.effects)
}

// Close stops the mutation sources and cancels every outstanding effect.
// Idempotent.
func (s *Store[S, A, M, E, Env]) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}

	if s.pipeline != nil {
		s.pipeline.Cancel()
	}
	for id, sub := range s.effects {
		delete(s.effects, id)
		sub.Cancel()
		s.metrics.RecordEffects(s.ctx, s.name, -1)
	}
	s.syncQueue = nil
	s.buffered = nil

	s.logger.Debug("store closed", "steps", s.step)
}

// dispatch is the single consumer of mutations. It never recurses into
// reduce: while a step runs or the backlog drains, new mutations are queued.
func (s *Store[S, A, M, E, Env]) dispatch(m M) {
	if s.closed.Load() {
		return
	}

	if s.reducing || s.draining {
		s.buffered = append(s.buffered, m)
		return
	}

	s.syncQueue = append(s.syncQueue, m)

	s.draining = true
	defer func() { s.draining = false }()

	for {
		var next M
		switch {
		case len(s.syncQueue) > 0:
			next = popFront(&s.syncQueue)
		case len(s.buffered) > 0:
			next = popFront(&s.buffered)
		default:
			return
		}
		s.reduce(next)
	}
}

func (s *Store[S, A, M, E, Env]) reduce(m M) {
	s.step++
	step := s.step
	start := time.Now()

	eff := s.apply(m)

	s.metrics.RecordReduce(s.ctx, s.name, time.Since(start))
	s.logger.Debug("reduced mutation", "step", step, "mutation", m)
	if s.observer != nil {
		s.observer.Reduced(step, m)
	}

	s.run(step, eff)
}

// apply runs Reduce and publishes the new state. A panicking Reduce reaches
// the caller of Send with the store still usable for later mutations.
func (s *Store[S, A, M, E, Env]) apply(m M) effect.Effect[E] {
	s.reducing = true
	defer func() { s.reducing = false }()

	eff := s.feature.Reduce(&s.state, m)
	s.states.Send(s.state)
	return eff
}

// run subscribes the effect of a reduce step. Events delivered before
// Subscribe returns are handled inline and their feedback goes to the
// synchronous queue. Anything later hops through the scheduler. Effects that
// outlive Subscribe are tracked until they end.
func (s *Store[S, A, M, E, Env]) run(step int64, eff effect.Effect[E]) {
	var (
		mu          sync.Mutex
		synchronous = true
		done        bool
		id          string
	)

	sub := eff.Subscribe(func(ev E) {
		mu.Lock()
		inline := synchronous
		mu.Unlock()

		if inline {
			s.emit(step, ev, true)
			return
		}
		s.sched.Schedule(func() { s.emit(step, ev, false) })
	}, func(err error) {
		mu.Lock()
		done = true
		inline := synchronous
		mu.Unlock()

		if err != nil {
			s.logger.Warn("reduce effect failed", "step", step, "error", err)
		}
		if !inline {
			s.sched.Schedule(func() { s.release(id) })
		}
	})

	mu.Lock()
	synchronous = false
	finished := done
	if !finished {
		id = s.ids.Generate()
	}
	mu.Unlock()

	if finished {
		return
	}

	s.effects[id] = sub
	s.metrics.RecordEffects(s.ctx, s.name, 1)
}

func (s *Store[S, A, M, E, Env]) emit(step int64, ev E, synchronous bool) {
	if s.closed.Load() {
		return
	}

	s.metrics.RecordEvent(s.ctx, s.name)
	s.logger.Debug("emitted event", "step", step, "event", ev)
	if s.observer != nil {
		s.observer.Emitted(step, ev)
	}
	s.events.Send(ev)

	if s.feedback == nil {
		return
	}
	m, ok := s.feedback(ev)
	if !ok {
		return
	}
	if synchronous {
		s.syncQueue = append(s.syncQueue, m)
		return
	}
	s.dispatch(m)
}

// release forgets a finished effect. Unknown ids are ignored, so an effect
// cancelled by Close is not released twice.
func (s *Store[S, A, M, E, Env]) release(id string) {
	if _, ok := s.effects[id]; !ok {
		return
	}
	delete(s.effects, id)
	s.metrics.RecordEffects(s.ctx, s.name, -1)
}

func popFront[M any](q *[]M) M {
	var zero M
	m := (*q)[0]
	(*q)[0] = zero
	*q = (*q)[1:]
	return m
}
