package anythread

import (
	"fmt"

	"github.com/joeycumines/logiface"
)

// loopOptions holds configuration options for Loop creation.
type loopOptions struct {
	logger         *logiface.Logger[logiface.Event]
	queueCapacity  int
	metricsEnabled bool
}

// --- Loop Options ---

// LoopOption configures a Loop instance.
type LoopOption interface {
	applyLoop(*loopOptions) error
}

// loopOptionImpl implements LoopOption.
type loopOptionImpl struct {
	applyLoopFunc func(*loopOptions) error
}

func (l *loopOptionImpl) applyLoop(opts *loopOptions) error {
	return l.applyLoopFunc(opts)
}

// WithLogger attaches a structured logger to the loop. A nil logger is valid
// and disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithQueueCapacity sets the initial capacity of the event queue, as a hint
// to avoid growth reallocations under bursty posting. Zero selects the
// default; negative values are invalid.
func WithQueueCapacity(n int) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		if n < 0 {
			return fmt.Errorf("anythread: negative queue capacity: %d", n)
		}
		if n == 0 {
			n = defaultQueueCapacity
		}
		opts.queueCapacity = n
		return nil
	}}
}

// WithMetrics enables runtime metrics collection on the Loop.
// When enabled, metrics can be accessed via Loop.Metrics(). This adds a
// timestamp per post and a latency record per dispatch; leave it disabled
// where that overhead matters.
func WithMetrics(enabled bool) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.metricsEnabled = enabled
		return nil
	}}
}

// resolveLoopOptions applies LoopOption instances to loopOptions.
func resolveLoopOptions(opts []LoopOption) (*loopOptions, error) {
	cfg := &loopOptions{
		queueCapacity: defaultQueueCapacity,
	}
	for _, opt := range opts {
		if opt == nil {
			continue // Skip nil options gracefully
		}
		if err := opt.applyLoop(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// --- Dispatcher Options ---

// dispatcherOptions holds configuration options for Dispatcher creation.
type dispatcherOptions struct {
	logger *logiface.Logger[logiface.Event]
}

// DispatcherOption configures a Dispatcher instance.
type DispatcherOption interface {
	applyDispatcher(*dispatcherOptions)
}

// dispatcherOptionImpl implements DispatcherOption.
type dispatcherOptionImpl struct {
	applyDispatcherFunc func(*dispatcherOptions)
}

func (d *dispatcherOptionImpl) applyDispatcher(opts *dispatcherOptions) {
	d.applyDispatcherFunc(opts)
}

// WithDispatcherLogger attaches a structured logger to the dispatcher. A nil
// logger is valid and disables logging.
func WithDispatcherLogger(logger *logiface.Logger[logiface.Event]) DispatcherOption {
	return &dispatcherOptionImpl{func(opts *dispatcherOptions) {
		opts.logger = logger
	}}
}

// resolveDispatcherOptions applies DispatcherOption instances to
// dispatcherOptions.
func resolveDispatcherOptions(opts []DispatcherOption) *dispatcherOptions {
	cfg := &dispatcherOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue // Skip nil options gracefully
		}
		opt.applyDispatcher(cfg)
	}
	return cfg
}
