package anythread

import (
	"sync/atomic"
	"time"
)

// EventKind identifies a class of event traffic on an owner loop, the way a
// toolkit event type distinguishes invocation traffic from everything else.
// Allocate kinds once at startup with NewEventKind and share the value
// between posting and handling code.
type EventKind uint64

// eventKindCounter backs NewEventKind. Kind 0 is never allocated and means
// "no kind".
var eventKindCounter atomic.Uint64

// NewEventKind allocates a new process-wide event kind.
func NewEventKind() EventKind {
	return EventKind(eventKindCounter.Add(1))
}

// evtInvokeMethod is the reserved kind for cross-thread invocation traffic,
// allocated once at startup.
var evtInvokeMethod = NewEventKind()

// Event is a unit of work or notification posted to an owner loop and
// dispatched to the handlers connected for its (target, kind) pair.
type Event struct {
	// Kind routes the event to the handlers connected for it.
	Kind EventKind

	// Target is the object the event is addressed to. Targets are compared
	// by interface identity and must be valid map keys; in practice they are
	// pointers.
	Target any

	// Data is the event payload.
	Data any

	// postedAt is stamped by Post when metrics are enabled.
	postedAt time.Time
}

// Handler consumes events dispatched on the owner goroutine.
type Handler func(Event)

// HandlerID uniquely identifies a connected handler for removal purposes.
// Go functions cannot be reliably compared for equality, so connections are
// identified by ID instead.
type HandlerID uint64

// EventChannel is the owner-loop boundary consumed by Dispatcher and
// Invocation. Loop is the in-package implementation; embedders whose owner
// thread already runs an event system (a GUI toolkit, typically) can satisfy
// this interface over it instead.
type EventChannel interface {
	// Post enqueues an event for dispatch on the owner goroutine. It returns
	// an error only when the channel can no longer deliver.
	Post(event Event) error

	// Connect registers a handler for events of the given kind addressed to
	// the given target, returning an identifier for Disconnect. Handlers run
	// on the owner goroutine.
	Connect(target any, kind EventKind, handler Handler) HandlerID

	// Disconnect removes a previously connected handler.
	Disconnect(id HandlerID) bool

	// IsOwnerThread reports whether the caller is running on the owner
	// goroutine.
	IsOwnerThread() bool
}
