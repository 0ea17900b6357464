package anythread

// Wrap adapts a two-argument function, typically a method expression such
// as (*Counter).Add, so that every call executes on the dispatcher's owner
// goroutine. The returned function may be called from any goroutine:
//
//   - Called from the owner goroutine, it invokes fn directly, so results,
//     errors, and panics behave exactly as an unwrapped call.
//   - Called from any other goroutine, it registers the target with the
//     dispatcher (idempotently), marshals the call to the owner goroutine,
//     and blocks until it has run there. The error result is the exact
//     error value fn returned; a panic inside fn surfaces as a *PanicError.
//
// Functions with other shapes can be adapted by closing over the extra
// arguments, or by using Call or Do directly.
func Wrap[T, A, R any](d *Dispatcher, fn func(T, A) (R, error)) func(T, A) (R, error) {
	if d == nil {
		panic(`anythread: nil dispatcher`)
	}
	if fn == nil {
		panic(`anythread: nil callable`)
	}
	return func(target T, arg A) (R, error) {
		if d.ch.IsOwnerThread() {
			return fn(target, arg)
		}
		d.EnsureRegistered(target)
		return NewInvocation(d.ch, target, func() (R, error) {
			return fn(target, arg)
		}).Invoke()
	}
}

// Call executes fn on the dispatcher's owner goroutine and returns its
// result, blocking the calling goroutine until fn has run. When already on
// the owner goroutine, fn is invoked directly. The target only names the
// object the call belongs to; fn itself carries the work.
func Call[R any](d *Dispatcher, target any, fn func() (R, error)) (R, error) {
	if d == nil {
		panic(`anythread: nil dispatcher`)
	}
	if fn == nil {
		panic(`anythread: nil callable`)
	}
	if d.ch.IsOwnerThread() {
		return fn()
	}
	d.EnsureRegistered(target)
	return NewInvocation(d.ch, target, fn).Invoke()
}

// Do is Call for functions with no result.
func Do(d *Dispatcher, target any, fn func() error) error {
	if fn == nil {
		panic(`anythread: nil callable`)
	}
	_, err := Call(d, target, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}
