package anythread

import (
	"runtime/debug"
)

// Invocation is one pending cross-thread call: a callable with its arguments
// already bound, the target object its dispatch is addressed to, and the
// owned Completion the outcome travels through.
//
// An Invocation is created by the calling goroutine, executed by the owner
// goroutine, and its outcome consumed by the calling goroutine. It is
// immutable apart from the Completion's outcome slot, and must not be reused.
type Invocation[R any] struct {
	ch     EventChannel
	target any
	call   func() (R, error)
	comp   *Completion[R]
}

// executor is how the dispatch side runs an invocation without knowing its
// result type.
type executor interface {
	Execute()
}

// failer lets the loop record an outcome for an invocation it cannot
// dispatch (terminated before running, or registration removed mid-flight).
type failer interface {
	fail(err error)
}

// NewInvocation creates an invocation of call addressed to target, with its
// own pending Completion. A nil channel or callable panics.
func NewInvocation[R any](ch EventChannel, target any, call func() (R, error)) *Invocation[R] {
	if ch == nil {
		panic(`anythread: nil event channel`)
	}
	if call == nil {
		panic(`anythread: nil callable`)
	}
	return &Invocation[R]{
		ch:     ch,
		target: target,
		call:   call,
		comp:   NewCompletion[R](),
	}
}

// Completion returns the invocation's completion signal.
func (x *Invocation[R]) Completion() *Completion[R] {
	return x.comp
}

// Execute runs the callable and records its outcome. It is called on the
// owner goroutine, and never lets a failure escape into the dispatch loop: a
// returned error and a panic are both captured and signaled, so the caller
// cannot be left waiting behind a crashing callable.
func (x *Invocation[R]) Execute() {
	defer func() {
		if r := recover(); r != nil {
			x.comp.SignalFailure(&PanicError{Value: r, Stack: debug.Stack()})
		}
	}()

	value, err := x.call()
	if err != nil {
		x.comp.SignalFailure(err)
		return
	}
	x.comp.SignalResult(value)
}

// Invoke posts the invocation to the owner loop and blocks until it has been
// executed, returning the callable's outcome. The calling goroutine suspends
// here for the full round trip; there is no timeout and no cancellation.
//
// On the owner goroutine Invoke executes inline instead of posting, so a
// nested invocation cannot deadlock the loop against itself. A rejected post
// (terminated loop) is recorded as the outcome and returned immediately.
func (x *Invocation[R]) Invoke() (R, error) {
	if x.ch.IsOwnerThread() {
		x.Execute()
		return x.comp.Read()
	}

	if err := x.ch.Post(Event{Kind: evtInvokeMethod, Target: x.target, Data: x}); err != nil {
		x.fail(err)
		return x.comp.Read()
	}

	x.comp.Wait()
	return x.comp.Read()
}

// fail records err as the invocation's outcome.
func (x *Invocation[R]) fail(err error) {
	x.comp.SignalFailure(err)
}
