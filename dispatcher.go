package anythread

import (
	"fmt"
	"sync"

	"github.com/joeycumines/logiface"
)

// Dispatcher wires target objects to an owner loop, exactly once per target,
// and executes the invocations dispatched for them.
//
// Registration state lives in a side-table keyed by target identity, never in
// the targets themselves, guarded by a read/write mutex. The first
// cross-thread call for a target takes the write-locked slow path once; every
// later call is a read-locked lookup. Targets are compared by interface
// identity and must be valid map keys; in practice they are pointers.
type Dispatcher struct {
	ch     EventChannel
	logger *logiface.Logger[logiface.Event]

	mu    sync.RWMutex
	wired map[any]HandlerID
}

// NewDispatcher creates a Dispatcher on the given event channel. A nil
// channel panics.
func NewDispatcher(ch EventChannel, opts ...DispatcherOption) *Dispatcher {
	if ch == nil {
		panic(`anythread: nil event channel`)
	}
	cfg := resolveDispatcherOptions(opts)
	return &Dispatcher{
		ch:     ch,
		logger: cfg.logger,
		wired:  make(map[any]HandlerID),
	}
}

// EnsureRegistered connects the invocation handler for target, exactly once.
// It is idempotent and safe under concurrent first calls: the check and the
// connect happen under a double-checked lock, so any number of racing callers
// produce exactly one connection.
func (x *Dispatcher) EnsureRegistered(target any) {
	x.mu.RLock()
	_, ok := x.wired[target]
	x.mu.RUnlock()
	if ok {
		return
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if _, ok := x.wired[target]; ok {
		return
	}
	id := x.ch.Connect(target, evtInvokeMethod, x.handle)
	x.wired[target] = id

	x.logger.Debug().
		Str(`target`, fmt.Sprintf(`%T`, target)).
		Uint64(`handler`, uint64(id)).
		Log(`target registered`)
}

// Forget removes target's registration, disconnecting its handler. The next
// cross-thread call against target registers it again. An invocation already
// posted when Forget runs fails with ErrNotRegistered rather than hanging its
// caller. Returns whether the target was registered.
//
// Registrations are otherwise never torn down; long-lived processes that
// churn through targets should Forget them, as the side-table holds strong
// references.
func (x *Dispatcher) Forget(target any) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	id, ok := x.wired[target]
	if !ok {
		return false
	}
	delete(x.wired, target)
	x.ch.Disconnect(id)

	x.logger.Debug().
		Str(`target`, fmt.Sprintf(`%T`, target)).
		Uint64(`handler`, uint64(id)).
		Log(`target forgotten`)
	return true
}

// Registered reports whether target currently has a connected handler.
func (x *Dispatcher) Registered(target any) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	_, ok := x.wired[target]
	return ok
}

// Len returns the number of registered targets.
func (x *Dispatcher) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.wired)
}

// handle executes invocation payloads dispatched for a registered target.
func (x *Dispatcher) handle(event Event) {
	if exec, ok := event.Data.(executor); ok {
		exec.Execute()
		return
	}
	x.logger.Debug().
		Str(`data`, fmt.Sprintf(`%T`, event.Data)).
		Log(`ignoring non-invocation payload`)
}
