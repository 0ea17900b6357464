package anythread

import (
	"sync/atomic"
)

// Completion outcome slots.
const (
	completionPending uint32 = iota
	completionResult
	completionFailure
)

// Completion is a one-shot synchronization primitive carrying either a result
// value or a failure from the owner goroutine back to the calling goroutine.
//
// A Completion is created per invocation, signaled exactly once on the owner
// side, and consumed once on the caller side. Signaling twice panics: the
// one-shot property is what makes an accidental double execution loud instead
// of silently overwriting a caller's outcome.
//
// Signaling establishes a happens-before edge: everything the signaling
// goroutine did before Signal* is visible to the waiter after Wait or Read
// returns.
type Completion[R any] struct {
	// Prevent copying
	_ [0]func()

	done   chan struct{}
	state  atomic.Uint32
	result R
	err    error
}

// NewCompletion creates a pending Completion.
func NewCompletion[R any]() *Completion[R] {
	return &Completion[R]{done: make(chan struct{})}
}

// Wait blocks until the completion is signaled. There is no timeout: the
// caller of a cross-thread invocation stays suspended for exactly as long as
// the owner takes to execute it.
func (x *Completion[R]) Wait() {
	<-x.done
}

// SignalResult records value as the outcome and releases the waiter.
func (x *Completion[R]) SignalResult(value R) {
	if !x.state.CompareAndSwap(completionPending, completionResult) {
		panic(`anythread: completion already signaled`)
	}
	x.result = value
	close(x.done)
}

// SignalFailure records err as the outcome and releases the waiter. A nil err
// is a programming error and panics.
func (x *Completion[R]) SignalFailure(err error) {
	if err == nil {
		panic(`anythread: nil failure`)
	}
	if !x.state.CompareAndSwap(completionPending, completionFailure) {
		panic(`anythread: completion already signaled`)
	}
	x.err = err
	close(x.done)
}

// Read returns the recorded outcome. It blocks until the completion is
// signaled, so Wait-then-Read and a bare Read are both correct.
func (x *Completion[R]) Read() (R, error) {
	<-x.done
	return x.result, x.err
}

// Signaled reports whether an outcome has been recorded yet.
func (x *Completion[R]) Signaled() bool {
	return x.state.Load() != completionPending
}
