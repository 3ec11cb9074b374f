// Package store implements the unidirectional-data-flow store.
//
// A Store owns a state value. Callers Send actions; the feature's Mutate turns
// each action into an effect of mutations; every mutation is applied by the
// feature's Reduce, which edits the state in place and returns an effect of
// events. Events are broadcast on Events() and, when the feature implements
// Feedback, turned back into mutations.
//
// ARCHITECTURE:
//
//	Send(a) ──► Mutate(a, env) ──┐
//	Poll(env) ───────────────────┼─► scheduler ──► dispatch ──► Reduce(&state, m)
//	PollState(states, env) ──────┘                                   │
//	                                                                 ▼
//	                          Events() ◄── emit ◄── Effect[E] (tracked until done)
//
// Single-writer dispatch:
// All mutations reach dispatch through the store's scheduler. With the default
// scheduler.Loop that means the owner goroutine, so the state, both mutation
// queues and the effect table are never touched concurrently and need no lock.
//
// Reduce is never on the stack twice. A mutation that arrives while a reduce
// step runs, or while the backlog is being drained, is queued instead:
//   - the synchronous queue holds feedback produced before a reduce effect's
//     Subscribe returned; it is always drained first
//   - the buffered queue holds everything else
//
// Reduce and Mutate must not panic. A panic propagates to whoever triggered
// the dispatch and leaves the queues in an unspecified state.
package store
