// Package effect implements lazy, cancellable producers of values.
//
// An Effect describes zero or more future values followed by an optional
// terminal signal. Nothing runs until Subscribe is called, and every call to
// Subscribe runs the production logic again. The zero Effect completes
// immediately without values.
//
// Lifecycle of a subscription:
//
//	Subscribe ──► running ──► finished   (Finish, or Fail with nil)
//	                  │  └──► failed     (Fail with a non-nil error)
//	                  └─────► cancelled  (Cancel, no terminal signal delivered)
//
// Exactly one of the three end states is reached. Dispose hooks registered on
// the Emitter run once, whichever end state it is. Values are never delivered
// after the end state.
//
// Failures travel through the completion callback as a non-nil error.
// Constructors never fail; a failing effect signals it when subscribed.
//
// Cancellation by identifier is provided by Registry. Effects wrapped with
// Cancellable are tracked under their id until they end, and Cancel(id)
// stops every one of them.
package effect
