package writable

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	gferrors "github.com/vnykmshr/sinkflow/pkg/common/errors"
	"github.com/vnykmshr/sinkflow/pkg/common/validation"
	"github.com/vnykmshr/sinkflow/pkg/streaming/promise"
)

// Stream is a backpressure-aware destination for chunks of type T.
//
// A Stream owns the lifecycle state and the bookkeeping of write and close
// requests. Chunks reach it through the single Writer returned by GetWriter;
// its Controller hands them to the Sink one at a time.
//
// All state lives behind one mutex. Sink steps run on their own goroutines
// and never while the mutex is held.
type Stream[T any] struct {
	mu sync.Mutex

	state        State
	storedError  error
	backpressure bool

	writer     *Writer[T]
	controller *Controller[T]

	closeRequest         *promise.Promise
	inFlightCloseRequest *promise.Promise
	inFlightWriteRequest *promise.Promise
	writeRequests        []*promise.Promise
	pendingAbortRequest  *abortRequest

	chunksWritten int64

	inst *instruments
}

type abortRequest struct {
	promise            *promise.Promise
	reason             error
	wasAlreadyErroring bool
}

// Stats is a point-in-time snapshot of a stream.
type Stats struct {
	// State is the lifecycle state.
	State State

	// Locked reports whether a writer is attached.
	Locked bool

	// Backpressure reports whether the queue is at or above the high-water mark.
	Backpressure bool

	// QueueLength is the number of queued records, the close marker included.
	QueueLength int

	// QueueSize is the total size of queued chunks.
	QueueSize float64

	// DesiredSize is the high-water mark minus QueueSize.
	DesiredSize float64

	// PendingWrites counts accepted writes not yet handed to the sink.
	PendingWrites int

	// ChunksWritten counts chunks the sink acknowledged.
	ChunksWritten int64
}

// New creates a Stream over sink with the default configuration.
func New[T any](sink Sink[T]) (*Stream[T], error) {
	return NewWithConfig(sink, DefaultConfig[T]())
}

// NewWithConfig creates a Stream over sink. The sink's Start step, if any,
// runs in the background; writes queue up until it returns.
func NewWithConfig[T any](sink Sink[T], config Config[T]) (*Stream[T], error) {
	if err := validation.ValidateNotNil("writable", "sink", sink); err != nil {
		return nil, err
	}

	highWaterMark := float64(DefaultHighWaterMark)
	var sizeFn SizeFunc[T]
	if config.Strategy != nil {
		highWaterMark = config.Strategy.HighWaterMark
		sizeFn = config.Strategy.Size
	}
	if err := validation.ValidateNonNegative("writable", "highWaterMark", highWaterMark); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidHighWaterMark, err)
	}

	if config.Name == "" {
		config.Name = DefaultConfig[T]().Name
	}
	var logger logrus.FieldLogger = logrus.StandardLogger()
	if config.Logger != nil {
		logger = config.Logger
	}

	s := &Stream[T]{
		state: Writable,
		inst:  newInstruments(config.Name, logger, config.Metrics),
	}
	c := newController(s, sink, sizeFn, highWaterMark)
	s.controller = c

	s.mu.Lock()
	s.updateBackpressure(c.backpressure())
	s.inst.queueChanged(0, c.desiredSize())
	s.mu.Unlock()

	go c.start()

	return s, nil
}

// GetWriter locks the stream to a new Writer. It fails with ErrLocked if a
// writer is already attached.
func (s *Stream[T]) GetWriter() (*Writer[T], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writer != nil {
		return nil, ErrLocked
	}

	w := &Writer[T]{stream: s}
	s.writer = w

	switch s.state {
	case Writable:
		if !s.closeQueuedOrInFlight() && s.backpressure {
			w.ready = promise.New()
		} else {
			w.ready = promise.Resolved()
		}
		w.closed = promise.New()
	case Erroring:
		w.ready = promise.Rejected(s.storedError)
		w.ready.MarkHandled()
		w.closed = promise.New()
	case Closed:
		w.ready = promise.Resolved()
		w.closed = promise.Resolved()
	case Errored:
		w.ready = promise.Rejected(s.storedError)
		w.ready.MarkHandled()
		w.closed = promise.Rejected(s.storedError)
		w.closed.MarkHandled()
	}

	return w, nil
}

// Locked reports whether a writer is attached.
func (s *Stream[T]) Locked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writer != nil
}

// State returns the current lifecycle state.
func (s *Stream[T]) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Backpressure reports whether the stream currently signals backpressure.
func (s *Stream[T]) Backpressure() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backpressure
}

// Stats returns a snapshot of the stream.
func (s *Stream[T]) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.controller
	return Stats{
		State:         s.state,
		Locked:        s.writer != nil,
		Backpressure:  s.backpressure,
		QueueLength:   c.queue.Len(),
		QueueSize:     c.queue.TotalSize(),
		DesiredSize:   c.desiredSize(),
		PendingWrites: len(s.writeRequests),
		ChunksWritten: s.chunksWritten,
	}
}

// Abort aborts an unlocked stream. A locked stream must be aborted through
// its writer; Abort then rejects with ErrLockedStreamAbort.
func (s *Stream[T]) Abort(reason error) *promise.Promise {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writer != nil {
		return promise.Rejected(ErrLockedStreamAbort)
	}
	return s.abort(reason)
}

// Close closes an unlocked stream once every queued chunk has been written.
func (s *Stream[T]) Close() *promise.Promise {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writer != nil {
		return promise.Rejected(ErrLocked)
	}
	if s.closeQueuedOrInFlight() {
		return promise.Rejected(errCloseRequested())
	}
	return s.close()
}

// The methods below implement the state machine. Callers hold s.mu.

func (s *Stream[T]) abort(reason error) *promise.Promise {
	switch s.state {
	case Closed:
		return promise.Resolved()
	case Errored:
		return promise.Rejected(s.storedError)
	}

	abortErr := &AbortError{Reason: reason}
	s.controller.signalAbort(abortErr)

	if s.pendingAbortRequest != nil {
		return promise.Rejected(ErrAlreadyAborting)
	}

	wasAlreadyErroring := s.state == Erroring
	p := promise.New()
	s.pendingAbortRequest = &abortRequest{
		promise:            p,
		reason:             reason,
		wasAlreadyErroring: wasAlreadyErroring,
	}
	s.inst.aborted(reason)

	if !wasAlreadyErroring {
		s.startErroring(abortErr)
	}
	return p
}

func (s *Stream[T]) close() *promise.Promise {
	switch s.state {
	case Closed:
		return promise.Rejected(errCloseAfterClose())
	case Errored:
		return promise.Rejected(s.storedError)
	}

	p := promise.New()
	s.closeRequest = p

	// Closing relieves backpressure: nothing more will be written.
	if s.writer != nil && s.backpressure && s.state == Writable {
		s.writer.ready.Resolve()
	}

	s.controller.enqueueCloseRecord()
	return p
}

func (s *Stream[T]) addWriteRequest() *promise.Promise {
	p := promise.New()
	s.writeRequests = append(s.writeRequests, p)
	return p
}

func (s *Stream[T]) dealWithRejection(err error) {
	if s.state == Writable {
		s.startErroring(err)
		return
	}
	s.finishErroring()
}

func (s *Stream[T]) startErroring(reason error) {
	s.storedError = reason
	s.state = Erroring
	s.inst.stateChanged(Erroring, reason)

	if s.writer != nil {
		s.writer.ensureReadyPromiseRejected(reason)
	}

	if !s.hasOperationMarkedInFlight() && s.controller.started {
		s.finishErroring()
	}
}

func (s *Stream[T]) finishErroring() {
	s.state = Errored
	s.inst.stateChanged(Errored, s.storedError)

	s.controller.errorSteps()
	s.controller.releaseSignal(s.storedError)

	for _, req := range s.writeRequests {
		req.Reject(s.storedError)
	}
	s.writeRequests = nil

	abortRequest := s.pendingAbortRequest
	if abortRequest == nil {
		s.rejectCloseAndClosedPromiseIfNeeded()
		return
	}
	s.pendingAbortRequest = nil

	if abortRequest.wasAlreadyErroring {
		abortRequest.promise.Reject(fmt.Errorf("%w: %w", ErrAbortedWhileErroring, s.storedError))
		s.rejectCloseAndClosedPromiseIfNeeded()
		return
	}

	s.controller.abortSteps(abortRequest.reason, func(err error) {
		if err != nil {
			abortRequest.promise.Reject(sinkFailure("abort", err))
		} else {
			abortRequest.promise.Resolve()
		}
		s.rejectCloseAndClosedPromiseIfNeeded()
	})
}

func (s *Stream[T]) rejectCloseAndClosedPromiseIfNeeded() {
	if s.closeRequest != nil {
		s.closeRequest.Reject(s.storedError)
		s.closeRequest = nil
	}

	if s.writer != nil && s.writer.closed.State() == promise.StatePending {
		s.writer.closed.Reject(s.storedError)
		s.writer.closed.MarkHandled()
	}
}

func (s *Stream[T]) finishInFlightWrite() {
	s.inFlightWriteRequest.Resolve()
	s.inFlightWriteRequest = nil
	s.chunksWritten++
	s.inst.chunkWritten()
}

func (s *Stream[T]) finishInFlightWriteWithError(err error) {
	s.inFlightWriteRequest.Reject(err)
	s.inFlightWriteRequest = nil
	s.dealWithRejection(err)
}

func (s *Stream[T]) finishInFlightClose() {
	s.inFlightCloseRequest.Resolve()
	s.inFlightCloseRequest = nil

	// The close landed before the abort step ran: the abort succeeds
	// without touching the sink.
	if s.state == Erroring {
		s.storedError = nil
		if s.pendingAbortRequest != nil {
			s.pendingAbortRequest.promise.Resolve()
			s.pendingAbortRequest = nil
		}
	}

	s.state = Closed
	s.inst.stateChanged(Closed, nil)
	s.controller.releaseSignal(gferrors.ErrClosed)

	if s.writer != nil {
		s.writer.closed.Resolve()
	}
}

func (s *Stream[T]) finishInFlightCloseWithError(err error) {
	s.inFlightCloseRequest.Reject(err)
	s.inFlightCloseRequest = nil

	if s.pendingAbortRequest != nil {
		s.pendingAbortRequest.promise.Reject(err)
		s.pendingAbortRequest = nil
	}

	s.dealWithRejection(err)
}

func (s *Stream[T]) closeQueuedOrInFlight() bool {
	return s.closeRequest != nil || s.inFlightCloseRequest != nil
}

func (s *Stream[T]) hasOperationMarkedInFlight() bool {
	return s.inFlightWriteRequest != nil || s.inFlightCloseRequest != nil
}

func (s *Stream[T]) markCloseRequestInFlight() {
	s.inFlightCloseRequest = s.closeRequest
	s.closeRequest = nil
}

func (s *Stream[T]) markFirstWriteRequestInFlight() {
	s.inFlightWriteRequest = s.writeRequests[0]
	s.writeRequests[0] = nil
	s.writeRequests = s.writeRequests[1:]
}

func (s *Stream[T]) updateBackpressure(backpressure bool) {
	if s.state != Writable || s.closeQueuedOrInFlight() {
		return
	}

	if s.writer != nil && backpressure != s.backpressure {
		if backpressure {
			s.writer.ready = promise.New()
		} else {
			s.writer.ready.Resolve()
		}
	}
	if backpressure && !s.backpressure {
		s.inst.backpressureApplied()
	}
	s.backpressure = backpressure
}
