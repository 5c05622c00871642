package writable

import (
	"context"
	"fmt"

	sfcontext "github.com/vnykmshr/sinkflow/pkg/common/context"
	"github.com/vnykmshr/sinkflow/pkg/streaming/promise"
	"github.com/vnykmshr/sinkflow/pkg/streaming/queue"
)

// record is one queue entry: a chunk to write or the close marker.
type record[T any] struct {
	chunk T
	close bool
}

// Controller drives the sink of one Stream. It owns the queue of pending
// records and dispatches them to the sink one at a time.
//
// Sinks receive the controller in Start and Write and may call Error to fail
// the stream from outside a step.
type Controller[T any] struct {
	stream *Stream[T]
	sink   Sink[T]

	// Guarded by stream.mu.
	queue   *queue.Queue[record[T]]
	started bool

	sizeFn        SizeFunc[T]
	highWaterMark float64

	signal       context.Context
	cancelSignal context.CancelCauseFunc
}

func newController[T any](s *Stream[T], sink Sink[T], sizeFn SizeFunc[T], highWaterMark float64) *Controller[T] {
	signal, cancel := sfcontext.WithAbortSignal(context.Background())
	return &Controller[T]{
		stream:        s,
		sink:          sink,
		queue:         queue.New[record[T]](),
		sizeFn:        sizeFn,
		highWaterMark: highWaterMark,
		signal:        signal,
		cancelSignal:  cancel,
	}
}

// Error fails the stream with err. It has no effect unless the stream is
// still writable.
func (c *Controller[T]) Error(err error) {
	if err == nil {
		err = promise.ErrRejected
	}

	c.stream.mu.Lock()
	defer c.stream.mu.Unlock()
	c.errorIfNeeded(err)
}

// Signal returns the abort signal passed to the sink's steps. It is canceled
// with an *AbortError cause when the stream is aborted, and with the final
// outcome once the stream closes or errors.
func (c *Controller[T]) Signal() context.Context {
	return c.signal
}

// start runs the sink's Start step and opens the queue for dispatch.
func (c *Controller[T]) start() {
	var err error
	if starter, ok := c.sink.(Starter[T]); ok {
		err = c.runStep("start", func() error {
			return starter.Start(c.signal, c)
		})
	}

	s := c.stream
	s.mu.Lock()
	defer s.mu.Unlock()

	c.started = true
	if err != nil {
		s.dealWithRejection(sinkFailure("start", err))
		return
	}
	c.advanceQueueIfNeeded()
}

// The methods below are called with stream.mu held unless noted.

func (c *Controller[T]) signalAbort(cause error) {
	c.cancelSignal(cause)
}

// releaseSignal cancels the signal once the stream reached a terminal
// state. An earlier abort cause is kept.
func (c *Controller[T]) releaseSignal(cause error) {
	c.cancelSignal(cause)
}

func (c *Controller[T]) desiredSize() float64 {
	return c.highWaterMark - c.queue.TotalSize()
}

func (c *Controller[T]) backpressure() bool {
	return c.desiredSize() <= 0
}

// chunkSize runs the size function. It is called without stream.mu held.
// A failing size function errors the stream and the chunk counts as 1.
func (c *Controller[T]) chunkSize(chunk T) float64 {
	if c.sizeFn == nil {
		return 1
	}

	size, err := c.callSizeFn(chunk)
	if err != nil {
		c.stream.mu.Lock()
		c.errorIfNeeded(err)
		c.stream.mu.Unlock()
		return 1
	}
	return size
}

func (c *Controller[T]) callSizeFn(chunk T) (size float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("size function panicked: %v", r)
		}
	}()
	return c.sizeFn(chunk)
}

func (c *Controller[T]) errorIfNeeded(err error) {
	if c.stream.state == Writable {
		c.stream.startErroring(err)
	}
}

func (c *Controller[T]) enqueueWriteRecord(chunk T, size float64) {
	s := c.stream

	if err := c.queue.Enqueue(record[T]{chunk: chunk}, size); err != nil {
		c.errorIfNeeded(err)
		return
	}
	s.inst.chunkEnqueued()
	s.inst.queueChanged(c.queue.TotalSize(), c.desiredSize())

	if !s.closeQueuedOrInFlight() && s.state == Writable {
		s.updateBackpressure(c.backpressure())
	}
	c.advanceQueueIfNeeded()
}

func (c *Controller[T]) enqueueCloseRecord() {
	// The close marker has size 0 and always fits.
	_ = c.queue.Enqueue(record[T]{close: true}, 0)
	c.advanceQueueIfNeeded()
}

func (c *Controller[T]) advanceQueueIfNeeded() {
	s := c.stream

	if !c.started || s.hasOperationMarkedInFlight() {
		return
	}

	switch s.state {
	case Closed, Errored:
		return
	case Erroring:
		s.finishErroring()
		return
	}

	next, err := c.queue.Peek()
	if err != nil {
		return
	}
	if next.close {
		c.processClose()
	} else {
		c.processWrite(next.chunk)
	}
}

func (c *Controller[T]) processClose() {
	s := c.stream
	s.markCloseRequestInFlight()
	_, _ = c.queue.Dequeue()

	closer, ok := c.sink.(Closer)
	if !ok {
		s.finishInFlightClose()
		return
	}

	go func() {
		err := c.runStep("close", func() error {
			return closer.Close(c.signal)
		})

		s.mu.Lock()
		defer s.mu.Unlock()

		if err != nil {
			s.finishInFlightCloseWithError(sinkFailure("close", err))
			return
		}
		s.finishInFlightClose()
	}()
}

func (c *Controller[T]) processWrite(chunk T) {
	s := c.stream
	s.markFirstWriteRequestInFlight()

	go func() {
		err := c.runStep("write", func() error {
			return c.sink.Write(c.signal, chunk, c)
		})

		s.mu.Lock()
		defer s.mu.Unlock()

		if err != nil {
			s.finishInFlightWriteWithError(sinkFailure("write", err))
			return
		}

		s.finishInFlightWrite()
		_, _ = c.queue.Dequeue()
		s.inst.queueChanged(c.queue.TotalSize(), c.desiredSize())

		if !s.closeQueuedOrInFlight() && s.state == Writable {
			s.updateBackpressure(c.backpressure())
		}
		c.advanceQueueIfNeeded()
	}()
}

// abortSteps runs the sink's Abort step and calls done with its result
// while holding stream.mu. A sink without Abort succeeds synchronously.
func (c *Controller[T]) abortSteps(reason error, done func(error)) {
	aborter, ok := c.sink.(Aborter)
	if !ok {
		done(nil)
		return
	}

	ctx := context.WithoutCancel(c.signal)
	go func() {
		err := c.runStep("abort", func() error {
			return aborter.Abort(ctx, reason)
		})

		c.stream.mu.Lock()
		defer c.stream.mu.Unlock()
		done(err)
	}()
}

// errorSteps drops every queued record.
func (c *Controller[T]) errorSteps() {
	c.queue.Reset()
	c.stream.inst.queueChanged(0, c.desiredSize())
}

// runStep runs one sink step without stream.mu held. A panicking step
// counts as a failed one.
func (c *Controller[T]) runStep(step string, fn func() error) error {
	return c.stream.inst.observeStep(step, func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("sink %s panicked: %v", step, r)
			}
		}()
		return fn()
	})
}
