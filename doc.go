// Package anythread marshals calls onto a designated owner goroutine, so
// that code running on arbitrary goroutines can drive objects which must
// only ever be touched from one place, e.g. UI toolkits, C libraries with
// thread affinity, or any deliberately single-threaded state.
//
// # Ownership
//
// A [Loop] is an [EventChannel] whose owner is the goroutine that called
// [Loop.Run]. Ownership begins when Run starts and ends when it returns;
// [Loop.IsOwnerThread] reports it. The owner goroutine is locked to its OS
// thread while the loop runs, which is what makes the package suitable for
// thread-affine libraries and not just goroutine-affine state.
//
// # Calling
//
// [Wrap] adapts a method expression into a function that always executes on
// the owner goroutine:
//
//	loop, _ := anythread.NewLoop()
//	go loop.Run(ctx)
//
//	d := anythread.NewDispatcher(loop)
//	add := anythread.Wrap(d, (*Counter).Add)
//
//	// Safe from any goroutine; blocks until the owner has run it.
//	total, err := add(counter, 5)
//
// [Call] and [Do] serve ad hoc closures the same way. Calls made from the
// owner goroutine itself execute inline, so wrapped methods may freely call
// other wrapped methods without deadlocking.
//
// # Errors and panics
//
// A cross-goroutine call returns the exact error value the underlying
// function returned, preserving errors.Is and errors.As behavior. A panic
// in the underlying function does not kill the loop; it is returned to the
// caller as a [*PanicError] carrying the panic value and the owner
// goroutine's stack. Inline calls from the owner goroutine propagate
// results, errors, and panics unchanged.
//
// # Caveats
//
// Cross-goroutine calls block with no timeout. If the loop is never run, or
// stops being serviced, callers wait forever; bound the loop's lifetime
// with [Loop.Run]'s context or [Loop.Shutdown], which fails pending calls
// with [ErrLoopTerminated] rather than stranding them.
//
// See also [github.com/joeycumines/go-eventloop], a JavaScript-style event
// loop with timers and promises, if you need scheduling rather than call
// marshalling.
package anythread
