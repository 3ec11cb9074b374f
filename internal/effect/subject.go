package effect

import "sync"

// Subject broadcasts sent values to every live subscriber of its Effect.
// The effect never completes; subscribers leave by cancelling.
type Subject[T any] struct {
	mu        sync.Mutex
	nextID    uint64
	observers []observer[T]
}

type observer[T any] struct {
	id uint64
	em *Emitter[T]
}

// NewSubject creates a subject without subscribers.
func NewSubject[T any]() *Subject[T] {
	return &Subject[T]{}
}

// Send delivers v to the subscribers present when Send was called, in
// subscription order.
func (s *Subject[T]) Send(v T) {
	s.mu.Lock()
	snapshot := make([]observer[T], len(s.observers))
	copy(snapshot, s.observers)
	s.mu.Unlock()

	for _, o := range snapshot {
		o.em.Next(v)
	}
}

// Len returns the number of live subscribers.
func (s *Subject[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.observers)
}

// Effect returns an effect that receives every value sent after it was
// subscribed.
func (s *Subject[T]) Effect() Effect[T] {
	return New(s.subscribe)
}

func (s *Subject[T]) subscribe(em *Emitter[T]) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.observers = append(s.observers, observer[T]{id: id, em: em})
	s.mu.Unlock()

	em.OnDispose(func() { s.drop(id) })
}

func (s *Subject[T]) drop(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, o := range s.observers {
		if o.id == id {
			s.observers = append(s.observers[:i], s.observers[i+1:]...)
			return
		}
	}
}

// ValueSubject is a Subject that holds a current value. New subscribers
// receive the current value first.
type ValueSubject[T any] struct {
	subject Subject[T]

	mu    sync.Mutex
	value T
}

// NewValueSubject creates a value subject holding initial.
func NewValueSubject[T any](initial T) *ValueSubject[T] {
	return &ValueSubject[T]{value: initial}
}

// Value returns the current value.
func (s *ValueSubject[T]) Value() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Send replaces the current value and broadcasts it.
func (s *ValueSubject[T]) Send(v T) {
	s.mu.Lock()
	s.value = v
	s.mu.Unlock()
	s.subject.Send(v)
}

// Len returns the number of live subscribers.
func (s *ValueSubject[T]) Len() int {
	return s.subject.Len()
}

// Effect returns an effect that replays the current value and then follows
// every later Send.
func (s *ValueSubject[T]) Effect() Effect[T] {
	return New(func(em *Emitter[T]) {
		current := s.Value()
		s.subject.subscribe(em)
		em.Next(current)
	})
}
