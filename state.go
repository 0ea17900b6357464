package anythread

// LoopState represents the lifecycle state of a Loop.
//
// State machine:
//
//	StateAwake (0) → StateRunning (3)                  [Run]
//	StateRunning (3) ↔ StateSleeping (2)               [dispatch loop]
//	StateRunning/StateSleeping → StateTerminating (4)  [Shutdown/Close/ctx]
//	StateAwake (0) → StateTerminated (1)               [Shutdown before Run]
//	StateTerminating (4) → StateTerminated (1)         [drain complete]
//
// All transitions happen under the loop mutex, which also guards the event
// queue: a state observed together with the queue is always coherent.
type LoopState uint64

const (
	// StateAwake indicates the loop has been created but not started.
	StateAwake LoopState = 0
	// StateTerminated indicates the loop has been stopped and is fully shut down.
	StateTerminated LoopState = 1
	// StateSleeping indicates the loop is blocked waiting for events.
	StateSleeping LoopState = 2
	// StateRunning indicates the loop is actively dispatching events.
	StateRunning LoopState = 3
	// StateTerminating indicates shutdown has been requested but not completed.
	StateTerminating LoopState = 4
)

// String returns a human-readable representation of the state.
func (s LoopState) String() string {
	switch s {
	case StateAwake:
		return "Awake"
	case StateRunning:
		return "Running"
	case StateSleeping:
		return "Sleeping"
	case StateTerminating:
		return "Terminating"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// IsTerminal returns true if the state is terminal (Terminated).
func (s LoopState) IsTerminal() bool {
	return s == StateTerminated
}

// IsRunning returns true if the loop is currently running or sleeping.
func (s LoopState) IsRunning() bool {
	return s == StateRunning || s == StateSleeping
}

// CanAcceptWork returns true if a loop in this state admits new events.
// Events posted while terminating are still drained before the loop stops,
// so only the terminal state refuses work.
func (s LoopState) CanAcceptWork() bool {
	return s != StateTerminated
}
