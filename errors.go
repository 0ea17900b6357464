package anythread

import (
	"errors"
	"fmt"
)

// Standard errors.
var (
	// ErrLoopAlreadyRunning is returned when Run is called on a loop that is already running.
	ErrLoopAlreadyRunning = errors.New("anythread: loop is already running")

	// ErrLoopTerminated is returned when operations are attempted on a terminated loop.
	ErrLoopTerminated = errors.New("anythread: loop has been terminated")

	// ErrReentrantRun is returned when Run is called from within the loop itself.
	ErrReentrantRun = errors.New("anythread: cannot call Run from within the loop")

	// ErrNotRegistered is the outcome of an invocation dispatched for a target
	// with no connected handler, which can only happen when the registration
	// is removed while the invocation is in flight.
	ErrNotRegistered = errors.New("anythread: target has no registered handler")
)

// PanicError wraps a panic value recovered while executing a callable on the
// owner goroutine. Stack holds the owner-side stack captured at the point of
// recovery.
//
// A cross-thread call whose callable panics reports a *PanicError to its
// caller instead of re-panicking: the original panic value is preserved in
// Value, and non-error panic values could not survive a re-panic with their
// owner-side context intact.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("anythread: callable panicked: %v", e.Value)
}

// Unwrap returns the panic value if it was an error, so errors.Is and
// errors.As match against the original failure.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
