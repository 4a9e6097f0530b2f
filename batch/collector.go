package batch

import (
	"context"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-chainstack"
	"github.com/joeycumines/logiface"
)

type (
	// CollectorConfig models optional configuration, for NewCollector.
	CollectorConfig struct {
		// Logger receives diagnostics, e.g. processor failures, and jobs
		// discarded by Close. Logging is disabled if nil.
		Logger *logiface.Logger[logiface.Event]

		// MaxSize restricts the maximum number of jobs per batch, if positive,
		// and triggers processing once that many jobs are pending.
		// **Defaults to 16, if 0, or CollectorConfig is nil.**
		//
		// WARNING: NewCollector will panic if both MaxSize and FlushInterval
		// are disabled.
		MaxSize int

		// FlushInterval specifies how often pending jobs are processed,
		// regardless of how many there are, if positive.
		// **Defaults to 50ms, if 0, or CollectorConfig is nil.**
		// If MaxSize is specified, time-based flushing can be disabled, by
		// setting this <= 0.
		//
		// WARNING: NewCollector will panic if both MaxSize and FlushInterval
		// are disabled.
		FlushInterval time.Duration
	}

	// Processor handles a batch of jobs, in the order they were submitted.
	// Errors (and panics) are logged, they don't stop the Collector.
	Processor[Job any] func(ctx context.Context, jobs []Job) error

	// Collector accepts jobs, processing them in batches, on a single
	// background goroutine. Instances must be initialized using the
	// NewCollector factory.
	Collector[Job any] struct {
		// betteralign:ignore

		processor     Processor[Job]                      // configurable
		logger        *logiface.Logger[logiface.Event]    // configurable
		maxSize       int                                 // configurable
		flushInterval time.Duration                       // configurable
		jobs          chainstack.Stack[Job]               // pending jobs, newest first
		pending       atomic.Int64                        // approximate len(jobs), for MaxSize
		submitting    atomic.Int64                        // in-flight Submit calls
		stopped       atomic.Bool                         // set prior to closing stopCh
		waiters       atomic.Pointer[chainstack.WakerSet] // woken after the next cycle, nil once finished
		wake          *chainstack.Signal                  // requests a cycle
		ctx           context.Context
		cancel        context.CancelFunc
		stopCh        chan struct{}
		stopOnce      sync.Once
		done          chan struct{}
	}
)

// NewCollector initializes a new Collector, using the provided
// CollectorConfig and Processor. The provided config may be nil. A panic will
// occur if processor is nil, or invalid config is provided.
//
// The Collector.Close method and/or Collector.Shutdown method should be
// called when the Collector is no longer needed.
func NewCollector[Job any](config *CollectorConfig, processor Processor[Job]) *Collector[Job] {
	if processor == nil {
		panic(`batch: nil processor`)
	}

	x := Collector[Job]{
		processor:     processor,
		maxSize:       16,
		flushInterval: time.Millisecond * 50,
		wake:          chainstack.NewSignal(),
		stopCh:        make(chan struct{}),
		done:          make(chan struct{}),
	}

	if config != nil {
		x.logger = config.Logger
		if config.MaxSize != 0 {
			x.maxSize = config.MaxSize
		}
		if config.FlushInterval != 0 {
			x.flushInterval = config.FlushInterval
		}
	}

	if x.flushInterval <= 0 && x.maxSize <= 0 {
		panic(`batch: one of MaxSize or FlushInterval must be specified`)
	}

	x.waiters.Store(chainstack.NewWakerSet())
	x.ctx, x.cancel = context.WithCancel(context.Background())

	go x.run()

	return &x
}

// Submit adds a job, to be processed by a future batch. It never blocks, and
// may be called from any number of goroutines. ErrClosed is returned if the
// Collector has been stopped.
func (x *Collector[Job]) Submit(job Job) error {
	// the stop logic waits for in-flight calls, before its final cycle
	x.submitting.Add(1)
	defer x.submitting.Add(-1)

	if x.stopped.Load() {
		return ErrClosed
	}

	x.jobs.Push(job)

	if n := x.pending.Add(1); x.maxSize > 0 && n >= int64(x.maxSize) {
		x.wake.Wake()
	}

	return nil
}

// OnFlush registers w, to be woken once every job submitted prior to the
// call has been processed (or discarded, by Close). If the Collector has
// already finished stopping, w is woken immediately. Like all wakers, w may
// be woken more than once. Panics by w, on the worker goroutine, are
// recovered and logged.
func (x *Collector[Job]) OnFlush(w chainstack.Waker) {
	if w == nil {
		return
	}
	for {
		waiters := x.waiters.Load()
		if waiters == nil {
			w.Wake()
			return
		}
		waiters.Add(w)
		if x.waiters.Load() == waiters {
			return
		}
		// a cycle started concurrently, and may have already woken the set
	}
}

// Flush requests that all pending jobs are processed immediately, blocking
// until every job submitted prior to the call has been processed, or ctx is
// canceled. ErrClosed is returned if the Collector had already stopped.
func (x *Collector[Job]) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if x.stopped.Load() {
		return ErrClosed
	}

	signal := chainstack.NewSignal()
	x.OnFlush(signal)
	x.wake.Wake()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-signal.C():
		return nil
	}
}

// Pending returns the approximate number of jobs awaiting processing.
func (x *Collector[Job]) Pending() int {
	return int(max(x.pending.Load(), 0))
}

// Shutdown will immediately prevent further jobs via Submit, then wait for
// all pending jobs to be processed. An error will be returned if ctx is
// canceled prior to this, causing a forced Close.
//
// This method is unsafe to call from within a Processor.
func (x *Collector[Job]) Shutdown(ctx context.Context) (err error) {
	x.stop()

	select {
	case <-ctx.Done():
		if x.ctx.Err() == nil {
			err = ctx.Err() // indicating we forcibly closed
		}
		x.cancel()
		<-x.done
	case <-x.done:
	}

	return err
}

// Close immediately cancels the context passed to the Processor, discards
// any pending jobs, and prevents further jobs via Submit, blocking until the
// Collector has finished closing.
//
// This method is unsafe to call from within a Processor.
func (x *Collector[Job]) Close() error {
	x.cancel()
	x.stop()
	<-x.done
	return nil
}

func (x *Collector[Job]) stop() {
	x.stopOnce.Do(func() {
		x.stopped.Store(true)
		close(x.stopCh)
	})
}

func (x *Collector[Job]) run() {
	defer close(x.done)
	defer x.cancel()

	x.logger.Debug().Log(`collector started`)
	defer x.logger.Debug().Log(`collector stopped`)

	var tickerCh <-chan time.Time
	if x.flushInterval > 0 {
		ticker := time.NewTicker(x.flushInterval)
		defer ticker.Stop()
		tickerCh = ticker.C
	}

	for {
		select {
		case <-x.ctx.Done():
			x.discard()
			return

		case <-x.stopCh:
			if x.ctx.Err() != nil {
				x.discard()
				return
			}
			x.awaitSubmitters()
			x.cycle()
			x.wakeWaiters(x.waiters.Swap(nil))
			return

		case <-x.wake.C():
			x.cycle()

		case <-tickerCh:
			if !x.jobs.Empty() || !x.waiters.Load().Empty() {
				x.cycle()
			}
		}
	}
}

// cycle processes every pending job, then wakes the waiters registered
// before the jobs were detached. Waiters registered during the cycle remain
// for the next one.
func (x *Collector[Job]) cycle() {
	// swapped prior to draining jobs, which guarantees the jobs of each waiter
	waiters := x.waiters.Swap(chainstack.NewWakerSet())
	defer x.wakeWaiters(waiters)

	jobs := slices.Collect(x.jobs.Drain().All())
	if len(jobs) == 0 {
		return
	}
	x.pending.Add(-int64(len(jobs)))
	slices.Reverse(jobs)

	if x.maxSize <= 0 || len(jobs) <= x.maxSize {
		_ = x.process(jobs)
		return
	}
	for batch := range slices.Chunk(jobs, x.maxSize) {
		_ = x.process(batch)
	}
}

// wakeWaiters wakes every waiter, recovering and logging any panic.
func (x *Collector[Job]) wakeWaiters(waiters *chainstack.WakerSet) {
	defer func() {
		if r := recover(); r != nil {
			x.logger.Err().
				Err(PanicError{Value: r}).
				Log(`batch waiter failed`)
		}
	}()
	waiters.WakeAll()
}

func (x *Collector[Job]) process(jobs []Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = PanicError{Value: r}
		}
		if err != nil {
			x.logger.Err().
				Err(err).
				Int(`jobs`, len(jobs)).
				Log(`batch processor failed`)
		}
	}()
	return x.processor(x.ctx, jobs)
}

// discard is the final step of Close.
func (x *Collector[Job]) discard() {
	x.stop()
	x.awaitSubmitters()

	waiters := x.waiters.Swap(chainstack.NewWakerSet())

	if n := x.jobs.Drain().Discard(); n != 0 {
		x.pending.Add(-int64(n))
		x.logger.Warning().
			Int(`jobs`, n).
			Log(`collector closed with pending jobs`)
	}

	x.wakeWaiters(waiters)
	x.wakeWaiters(x.waiters.Swap(nil))
}

// awaitSubmitters waits for Submit calls that may have missed the stop.
// Must be called after stopped is set.
func (x *Collector[Job]) awaitSubmitters() {
	for x.submitting.Load() != 0 {
		runtime.Gosched()
	}
}
