package store

// Binding is a read/write pair for one field of a store's state. Reads come
// from the current state; writes are turned into actions and sent.
type Binding[T any] struct {
	get func() T
	set func(T)
}

// Bind builds a Binding over s. get projects the field out of the state and
// toAction turns an edited value into the action that applies it.
func Bind[S, A, M, E, Env, T any](s *Store[S, A, M, E, Env], get func(S) T, toAction func(T) A) Binding[T] {
	return Binding[T]{
		get: func() T { return get(s.State()) },
		set: func(v T) { s.Send(toAction(v)) },
	}
}

// Get returns the field's current value.
func (b Binding[T]) Get() T {
	return b.get()
}

// Set sends the action that changes the field to v.
func (b Binding[T]) Set(v T) {
	b.set(v)
}
