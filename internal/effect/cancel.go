package effect

import (
	"maps"
	"slices"
	"sync"
)

// Registry maps cancellation ids to the subscriptions started under them.
//
// One mutex guards every id. Registration and cancellation are triggered from
// completion callbacks that may run on any goroutine, and the critical
// sections are a few map operations, so a single lock is enough.
//
// Ids are used as map keys and must be comparable.
type Registry struct {
	mu      sync.Mutex
	nextKey uint64
	entries map[any]map[uint64]Subscription
}

// DefaultRegistry backs Effect.Cancellable and Cancel.
var DefaultRegistry = NewRegistry()

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[any]map[uint64]Subscription),
	}
}

// Cancel cancels and forgets every subscription registered under id.
// Unknown ids are a no-op.
func (r *Registry) Cancel(id any) {
	r.mu.Lock()
	subs := r.entries[id]
	delete(r.entries, id)
	r.mu.Unlock()

	// Cancel outside the lock: dispose hooks call back into remove.
	for _, key := range slices.Sorted(maps.Keys(subs)) {
		subs[key].Cancel()
	}
}

// Count returns the number of live subscriptions under id.
func (r *Registry) Count(id any) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries[id])
}

// Len returns the number of ids with at least one live subscription.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// register stores sub under id. With replace set, the subscriptions already
// under id are taken out in the same critical section and returned so the
// caller can cancel them.
func (r *Registry) register(id any, sub Subscription, replace bool) (uint64, []Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var previous []Subscription
	if replace {
		old := r.entries[id]
		for _, key := range slices.Sorted(maps.Keys(old)) {
			previous = append(previous, old[key])
		}
		delete(r.entries, id)
	}

	r.nextKey++
	key := r.nextKey
	subs, ok := r.entries[id]
	if !ok {
		subs = make(map[uint64]Subscription)
		r.entries[id] = subs
	}
	subs[key] = sub
	return key, previous
}

func (r *Registry) remove(id any, key uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs, ok := r.entries[id]
	if !ok {
		return
	}
	delete(subs, key)
	if len(subs) == 0 {
		delete(r.entries, id)
	}
}

// Cancellable tracks the effect under id in DefaultRegistry.
// With cancelInFlight set, subscriptions already under id are cancelled
// before this one starts.
func (e Effect[T]) Cancellable(id any, cancelInFlight bool) Effect[T] {
	return e.CancellableIn(DefaultRegistry, id, cancelInFlight)
}

// CancellableIn is Cancellable against an explicit registry.
func (e Effect[T]) CancellableIn(r *Registry, id any, cancelInFlight bool) Effect[T] {
	return New(func(em *Emitter[T]) {
		key, previous := r.register(id, em, cancelInFlight)
		em.OnDispose(func() { r.remove(id, key) })

		for _, sub := range previous {
			sub.Cancel()
		}

		attach(em, e, func(v T) { em.Next(v) }, em.complete)
	})
}

// Cancel returns an effect that cancels everything under id in
// DefaultRegistry and finishes without values.
func Cancel[T any](id any) Effect[T] {
	return CancelIn[T](DefaultRegistry, id)
}

// CancelIn is Cancel against an explicit registry.
func CancelIn[T any](r *Registry, id any) Effect[T] {
	return New(func(em *Emitter[T]) {
		r.Cancel(id)
		em.Finish()
	})
}
