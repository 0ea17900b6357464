package anythread

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/logiface"
)

// defaultQueueCapacity is the initial capacity of the event queue, applied
// when WithQueueCapacity is not given. The queue grows past it as needed.
const defaultQueueCapacity = 128

// handlerKey identifies the handler list for a (target, kind) pair.
type handlerKey struct {
	target any
	kind   EventKind
}

// handlerEntry pairs a handler with the id it was connected under, so that
// it can be removed later despite Go functions not being comparable.
type handlerEntry struct {
	id      HandlerID
	handler Handler
}

// Loop is a single-goroutine event loop implementing EventChannel. Events
// posted from any goroutine are dispatched, in order, on the goroutine that
// called Run. That goroutine is the loop's owner for as long as Run is on
// its stack, and is locked to its OS thread for the duration.
//
// The zero value is not usable; construct with NewLoop.
type Loop struct {
	_ [0]func() // prevent comparison / copy

	logger  *logiface.Logger[logiface.Event]
	metrics *Metrics

	// mu guards state, queue, and spare. Every state transition and every
	// queue mutation happens under it, which is what makes termination
	// race-free: an event is admitted only while the state still allows it
	// to be observed by the run loop.
	mu    sync.Mutex
	state LoopState
	queue []Event
	spare []Event

	// wake is a capacity-1 signal channel used to rouse a sleeping loop.
	wake chan struct{}

	// stop is closed (once) to request termination.
	stop     chan struct{}
	stopOnce sync.Once

	// shutdownOnce makes the first Shutdown the one that runs; later calls
	// report ErrLoopTerminated.
	shutdownOnce sync.Once

	// loopDone is closed when Run returns, after the owner identity has
	// been cleared.
	loopDone chan struct{}

	// hmu guards the handler registry. Separate from mu so that Connect
	// and Disconnect never contend with the post/drain path.
	hmu           sync.RWMutex
	handlers      map[handlerKey][]handlerEntry
	byID          map[HandlerID]handlerKey
	nextHandlerID HandlerID

	// loopGoroutineID holds the owner goroutine's id while Run is active,
	// and zero otherwise.
	loopGoroutineID atomic.Uint64
}

var _ EventChannel = (*Loop)(nil)

// NewLoop creates a Loop. It does not start running; call Run on the
// goroutine that should own dispatch.
func NewLoop(opts ...LoopOption) (*Loop, error) {
	cfg, err := resolveLoopOptions(opts)
	if err != nil {
		return nil, err
	}
	l := &Loop{
		logger:        cfg.logger,
		queue:         make([]Event, 0, cfg.queueCapacity),
		spare:         make([]Event, 0, cfg.queueCapacity),
		wake:          make(chan struct{}, 1),
		stop:          make(chan struct{}),
		loopDone:      make(chan struct{}),
		handlers:      make(map[handlerKey][]handlerEntry),
		byID:          make(map[HandlerID]handlerKey),
		nextHandlerID: 1,
	}
	if cfg.metricsEnabled {
		l.metrics = newMetrics()
	}
	return l, nil
}

// Run executes the event loop on the calling goroutine until the context is
// canceled or Shutdown or Close is called. The calling goroutine becomes the
// loop's owner and is locked to its OS thread while Run is active.
//
// Run returns ErrReentrantRun when called from the owner goroutine itself,
// ErrLoopAlreadyRunning when the loop is already running elsewhere, and
// ErrLoopTerminated when the loop has already stopped. On context
// cancellation it returns the context's error; on Shutdown or Close it
// returns nil. Events admitted before termination are dispatched before Run
// returns.
func (l *Loop) Run(ctx context.Context) error {
	if l.IsOwnerThread() {
		return ErrReentrantRun
	}

	l.mu.Lock()
	switch l.state {
	case StateAwake:
		l.state = StateRunning
	case StateTerminating, StateTerminated:
		l.mu.Unlock()
		return ErrLoopTerminated
	default:
		l.mu.Unlock()
		return ErrLoopAlreadyRunning
	}
	l.mu.Unlock()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	defer close(l.loopDone)

	gid := goroutineID()
	l.loopGoroutineID.Store(gid)
	defer l.loopGoroutineID.Store(0)

	l.logger.Info().
		Uint64(`goroutine`, gid).
		Int(`os_tid`, osThreadID()).
		Log(`loop started`)

	err := l.run(ctx)

	l.logger.Info().Log(`loop stopped`)

	return err
}

// run is the loop body. It alternates between draining batches of queued
// events and sleeping, and exits only once termination has been requested
// and the queue is empty.
func (l *Loop) run(ctx context.Context) error {
	var cause error
	for {
		select {
		case <-ctx.Done():
			if cause == nil {
				cause = ctx.Err()
			}
			l.requestStop()
		case <-l.stop:
			l.requestStop()
		default:
		}

		var batch []Event
		l.mu.Lock()
		switch {
		case len(l.queue) > 0:
			batch = l.queue
			l.queue, l.spare = l.spare[:0], batch
		case l.state == StateTerminating:
			l.state = StateTerminated
			l.mu.Unlock()
			return cause
		default:
			l.state = StateSleeping
		}
		l.mu.Unlock()

		if batch != nil {
			for i := range batch {
				l.dispatch(batch[i])
				batch[i] = Event{} // release references until the buffer is reused
			}
			if b := l.logger.Debug(); b.Enabled() {
				b.Int(`events`, len(batch)).Log(`batch drained`)
			}
			continue
		}

		select {
		case <-l.wake:
		case <-l.stop:
		case <-ctx.Done():
		}

		l.mu.Lock()
		if l.state == StateSleeping {
			l.state = StateRunning
		}
		l.mu.Unlock()
	}
}

// requestStop moves an active loop to StateTerminating. The run loop then
// drains the queue before settling in StateTerminated.
func (l *Loop) requestStop() {
	l.mu.Lock()
	if l.state == StateRunning || l.state == StateSleeping {
		l.state = StateTerminating
	}
	l.mu.Unlock()
}

// Post enqueues an event for dispatch on the owner goroutine. It may be
// called from any goroutine, including the owner's own handlers. It returns
// ErrLoopTerminated once the loop has terminated; until then every admitted
// event will be dispatched, even if the loop has not started yet or is
// already draining toward termination.
func (l *Loop) Post(ev Event) error {
	if l.metrics != nil {
		ev.postedAt = time.Now()
	}

	l.mu.Lock()
	if l.state == StateTerminated {
		l.mu.Unlock()
		return ErrLoopTerminated
	}
	l.queue = append(l.queue, ev)
	depth := len(l.queue)
	sleeping := l.state == StateSleeping
	l.mu.Unlock()

	if l.metrics != nil {
		l.metrics.Queue.Update(depth)
	}
	if sleeping {
		select {
		case l.wake <- struct{}{}:
		default:
		}
	}
	return nil
}

// dispatch delivers one event to the handlers connected for its target and
// kind. Handler entries are copied out under the read lock and invoked
// outside all locks, so handlers may freely call Connect, Disconnect, or
// Post.
func (l *Loop) dispatch(ev Event) {
	l.hmu.RLock()
	entries := l.handlers[handlerKey{target: ev.Target, kind: ev.Kind}]
	var snapshot []handlerEntry
	if len(entries) > 0 {
		snapshot = make([]handlerEntry, len(entries))
		copy(snapshot, entries)
	}
	l.hmu.RUnlock()

	if len(snapshot) == 0 {
		// Nothing connected. An invocation payload must not strand its
		// caller, so it is failed rather than dropped.
		if f, ok := ev.Data.(failer); ok {
			f.fail(ErrNotRegistered)
		}
		if b := l.logger.Debug(); b.Enabled() {
			b.Uint64(`kind`, uint64(ev.Kind)).Log(`unhandled event dropped`)
		}
		return
	}

	start := time.Now()
	if l.metrics != nil && !ev.postedAt.IsZero() {
		l.metrics.Dispatch.Record(start.Sub(ev.postedAt))
	}

	for i := range snapshot {
		l.safeDispatch(snapshot[i].handler, ev)
	}

	if l.metrics != nil {
		l.metrics.Execute.Record(time.Since(start))
		l.metrics.tps.Increment()
	}

	if b := l.logger.Trace(); b.Enabled() {
		b.Uint64(`kind`, uint64(ev.Kind)).
			Int(`handlers`, len(snapshot)).
			Log(`event dispatched`)
	}
}

// safeDispatch invokes a handler, recovering any panic so that one
// misbehaving handler cannot kill the loop.
func (l *Loop) safeDispatch(fn Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Err().
				Uint64(`kind`, uint64(ev.Kind)).
				Interface(`panic`, r).
				Log(`handler panicked`)
		}
	}()
	fn(ev)
}

// Connect registers a handler for events with the given target and kind,
// returning an id for later removal via Disconnect. A nil handler is
// ignored and reports 0. Connect may be called from any goroutine at any
// point in the loop's lifecycle.
func (l *Loop) Connect(target any, kind EventKind, handler Handler) HandlerID {
	if handler == nil {
		return 0
	}
	key := handlerKey{target: target, kind: kind}
	l.hmu.Lock()
	id := l.nextHandlerID
	l.nextHandlerID++
	l.handlers[key] = append(l.handlers[key], handlerEntry{id: id, handler: handler})
	l.byID[id] = key
	l.hmu.Unlock()
	return id
}

// Disconnect removes the handler registered under id, reporting whether a
// handler was removed. Events already dispatched to a snapshot of the
// handler list may still invoke the handler once after Disconnect returns.
func (l *Loop) Disconnect(id HandlerID) bool {
	l.hmu.Lock()
	defer l.hmu.Unlock()

	key, ok := l.byID[id]
	if !ok {
		return false
	}
	delete(l.byID, id)

	entries := l.handlers[key]
	for i := range entries {
		if entries[i].id == id {
			entries = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	if len(entries) == 0 {
		delete(l.handlers, key)
	} else {
		l.handlers[key] = entries
	}
	return true
}

// HandlerCount returns the number of handlers connected for the given
// target and kind.
func (l *Loop) HandlerCount(target any, kind EventKind) int {
	l.hmu.RLock()
	defer l.hmu.RUnlock()
	return len(l.handlers[handlerKey{target: target, kind: kind}])
}

// HasHandlers reports whether any handler is connected for the target,
// regardless of kind.
func (l *Loop) HasHandlers(target any) bool {
	l.hmu.RLock()
	defer l.hmu.RUnlock()
	for key, entries := range l.handlers {
		if key.target == target && len(entries) > 0 {
			return true
		}
	}
	return false
}

// IsOwnerThread reports whether the calling goroutine is the one currently
// executing Run. It reports false before Run starts and after it returns.
func (l *Loop) IsOwnerThread() bool {
	id := l.loopGoroutineID.Load()
	return id != 0 && id == goroutineID()
}

// State returns the loop's current lifecycle state.
func (l *Loop) State() LoopState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Metrics returns the loop's metrics, or nil unless WithMetrics(true) was
// given to NewLoop.
func (l *Loop) Metrics() *Metrics {
	return l.metrics
}

// Shutdown gracefully terminates the loop, waiting until Run has returned
// or ctx is done. Events admitted before termination are dispatched first.
// Only the first call performs the shutdown; subsequent calls return
// ErrLoopTerminated. When called from the owner goroutine (that is, from a
// handler) it requests termination and returns immediately, since the loop
// cannot exit while the handler is still running.
func (l *Loop) Shutdown(ctx context.Context) error {
	var err error
	ran := false
	l.shutdownOnce.Do(func() {
		ran = true
		err = l.shutdownImpl(ctx)
	})
	if !ran {
		return ErrLoopTerminated
	}
	return err
}

func (l *Loop) shutdownImpl(ctx context.Context) error {
	l.mu.Lock()
	switch l.state {
	case StateAwake:
		// Never ran, so nothing will ever drain the queue. Terminate in
		// place and reject whatever was admitted.
		l.state = StateTerminated
		pending := l.queue
		l.queue = nil
		l.mu.Unlock()
		l.rejectPending(pending)
		return nil
	case StateTerminated:
		l.mu.Unlock()
		return ErrLoopTerminated
	default:
		if l.state == StateRunning || l.state == StateSleeping {
			l.state = StateTerminating
		}
		l.mu.Unlock()
		l.signalStop()
	}

	if l.IsOwnerThread() {
		return nil
	}

	select {
	case <-l.loopDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close requests termination and returns without waiting for the loop to
// stop. Events already admitted are still dispatched before Run returns. It
// returns ErrLoopTerminated when termination was already underway or done.
func (l *Loop) Close() error {
	l.mu.Lock()
	switch l.state {
	case StateAwake:
		l.state = StateTerminated
		pending := l.queue
		l.queue = nil
		l.mu.Unlock()
		l.rejectPending(pending)
		return nil
	case StateTerminating, StateTerminated:
		l.mu.Unlock()
		return ErrLoopTerminated
	default:
		l.state = StateTerminating
		l.mu.Unlock()
		l.signalStop()
		return nil
	}
}

// signalStop closes the stop channel exactly once.
func (l *Loop) signalStop() {
	l.stopOnce.Do(func() {
		close(l.stop)
	})
}

// rejectPending disposes of events that will never be dispatched because
// the loop terminated without running. Invocation payloads are failed so
// their callers unblock.
func (l *Loop) rejectPending(pending []Event) {
	for i := range pending {
		if f, ok := pending[i].Data.(failer); ok {
			f.fail(ErrLoopTerminated)
		} else if b := l.logger.Debug(); b.Enabled() {
			b.Uint64(`kind`, uint64(pending[i].Kind)).Log(`dropping event on terminated loop`)
		}
		pending[i] = Event{}
	}
}

// goroutineID returns the id of the calling goroutine, parsed from the
// header of a stack trace ("goroutine <id> [...").
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	const prefix = "goroutine "
	if n <= len(prefix) {
		return 0
	}
	var id uint64
	for _, c := range buf[len(prefix):n] {
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + uint64(c-'0')
	}
	return id
}
