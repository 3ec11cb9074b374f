package effect

import (
	"maps"
	"slices"
	"sync"
)

// Subscription is the handle of a running effect.
// Cancel is idempotent and safe to call after the effect ended on its own.
type Subscription interface {
	Cancel()
	Done() bool
}

// Effect is a lazy description of future values of type T.
type Effect[T any] struct {
	produce func(em *Emitter[T])
}

// New creates an effect from a producer. The producer is called once per
// subscription with a fresh Emitter and may emit synchronously or keep the
// emitter to emit later from any goroutine.
func New[T any](produce func(em *Emitter[T])) Effect[T] {
	return Effect[T]{produce: produce}
}

// Subscribe starts the effect. onNext receives every value; onComplete
// receives nil on finish or the failure. Either callback may be nil.
func (e Effect[T]) Subscribe(onNext func(T), onComplete func(error)) Subscription {
	return e.start(onNext, onComplete)
}

func (e Effect[T]) start(onNext func(T), onComplete func(error)) *Emitter[T] {
	em := &Emitter[T]{onNext: onNext, onDone: onComplete}
	if e.produce == nil {
		em.Finish()
		return em
	}
	e.produce(em)
	return em
}

// Emitter is the producer side of a single subscription.
// It is safe for concurrent use.
type Emitter[T any] struct {
	mu        sync.Mutex
	done      bool
	onNext    func(T)
	onDone    func(error)
	nextHook  uint64
	disposers map[uint64]func()
}

// Next delivers v downstream. Reports false once the subscription ended,
// which lets producers stop early.
func (em *Emitter[T]) Next(v T) bool {
	em.mu.Lock()
	if em.done {
		em.mu.Unlock()
		return false
	}
	em.mu.Unlock()

	if em.onNext != nil {
		em.onNext(v)
	}
	return true
}

// Finish ends the subscription successfully.
func (em *Emitter[T]) Finish() {
	em.complete(nil)
}

// Fail ends the subscription with err. A nil err finishes normally.
func (em *Emitter[T]) Fail(err error) {
	em.complete(err)
}

// Cancel ends the subscription without delivering a terminal signal.
func (em *Emitter[T]) Cancel() {
	if hooks, ok := em.end(); ok {
		runHooks(hooks)
	}
}

// Done reports whether the subscription has ended.
func (em *Emitter[T]) Done() bool {
	em.mu.Lock()
	defer em.mu.Unlock()
	return em.done
}

// OnDispose registers fn to run when the subscription ends, however it ends.
// If it already ended, fn runs immediately. The returned func unregisters fn.
func (em *Emitter[T]) OnDispose(fn func()) (remove func()) {
	em.mu.Lock()
	if em.done {
		em.mu.Unlock()
		fn()
		return func() {}
	}
	if em.disposers == nil {
		em.disposers = make(map[uint64]func())
	}
	em.nextHook++
	id := em.nextHook
	em.disposers[id] = fn
	em.mu.Unlock()

	return func() {
		em.mu.Lock()
		delete(em.disposers, id)
		em.mu.Unlock()
	}
}

func (em *Emitter[T]) complete(err error) {
	hooks, ok := em.end()
	if !ok {
		return
	}
	if em.onDone != nil {
		em.onDone(err)
	}
	runHooks(hooks)
}

// end flips the emitter to done and hands back its dispose hooks in
// registration order. Only the first caller gets ok == true.
func (em *Emitter[T]) end() ([]func(), bool) {
	em.mu.Lock()
	defer em.mu.Unlock()

	if em.done {
		return nil, false
	}
	em.done = true

	hooks := make([]func(), 0, len(em.disposers))
	for _, id := range slices.Sorted(maps.Keys(em.disposers)) {
		hooks = append(hooks, em.disposers[id])
	}
	em.disposers = nil
	return hooks, true
}

func runHooks(hooks []func()) {
	for _, fn := range hooks {
		fn()
	}
}

// attach subscribes e as a child of parent: cancelling parent cancels the
// child, and the link is dropped as soon as the child ends.
func attach[T, U any](parent *Emitter[U], e Effect[T], onNext func(T), onComplete func(error)) *Emitter[T] {
	child := e.start(onNext, onComplete)
	remove := parent.OnDispose(child.Cancel)
	child.OnDispose(remove)
	return child
}

// Just emits v and finishes.
func Just[T any](v T) Effect[T] {
	return New(func(em *Emitter[T]) {
		em.Next(v)
		em.Finish()
	})
}

// FromSlice emits every element in order and finishes.
func FromSlice[T any](vs ...T) Effect[T] {
	return New(func(em *Emitter[T]) {
		for _, v := range vs {
			if !em.Next(v) {
				return
			}
		}
		em.Finish()
	})
}

// Fail fails immediately with err when subscribed.
func Fail[T any](err error) Effect[T] {
	return New(func(em *Emitter[T]) {
		em.Fail(err)
	})
}

// None finishes immediately without values.
func None[T any]() Effect[T] {
	return Effect[T]{}
}

// Never emits nothing and never ends unless cancelled.
func Never[T any]() Effect[T] {
	return New(func(*Emitter[T]) {})
}

// Future adapts callback-style asynchronous work. work receives a resolve
// func; only its first call has any effect.
func Future[T any](work func(resolve func(T, error))) Effect[T] {
	return New(func(em *Emitter[T]) {
		var once sync.Once
		work(func(v T, err error) {
			once.Do(func() {
				if err != nil {
					em.Fail(err)
					return
				}
				em.Next(v)
				em.Finish()
			})
		})
	})
}

// FireAndForget runs fn on subscription and finishes without values.
func FireAndForget[T any](fn func()) Effect[T] {
	return New(func(em *Emitter[T]) {
		fn()
		em.Finish()
	})
}

// Deferred builds the effect to run at subscription time.
func Deferred[T any](build func() Effect[T]) Effect[T] {
	return New(func(em *Emitter[T]) {
		attach(em, build(), func(v T) { em.Next(v) }, em.complete)
	})
}
