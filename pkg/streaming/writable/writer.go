package writable

import (
	"github.com/vnykmshr/sinkflow/pkg/streaming/promise"
)

// Writer is the exclusive handle used to write to a Stream. It is obtained
// with Stream.GetWriter and stays attached until ReleaseLock.
//
// Every method is safe for concurrent use, but a stream has a single
// producer: chunks written from different goroutines at the same time are
// accepted in an unspecified relative order.
type Writer[T any] struct {
	// stream never changes; the writer is attached while stream.writer == w.
	stream *Stream[T]

	// Guarded by stream.mu.
	ready  *promise.Promise
	closed *promise.Promise
}

func (w *Writer[T]) attached() bool {
	return w.stream.writer == w
}

// Write queues chunk and returns a promise that settles once the sink has
// written it, or the stream failed first.
func (w *Writer[T]) Write(chunk T) *promise.Promise {
	s := w.stream

	s.mu.Lock()
	if !w.attached() {
		s.mu.Unlock()
		return promise.Rejected(errReleased("write"))
	}
	c := s.controller
	s.mu.Unlock()

	// The size function is user code and runs without the lock.
	size := c.chunkSize(chunk)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !w.attached() {
		return promise.Rejected(errReleased("write"))
	}

	switch {
	case s.state == Errored:
		return promise.Rejected(s.storedError)
	case s.closeQueuedOrInFlight():
		return promise.Rejected(errWriteWhileClosing())
	case s.state == Closed:
		return promise.Rejected(errWriteAfterClose())
	case s.state == Erroring:
		return promise.Rejected(s.storedError)
	}

	p := s.addWriteRequest()
	c.enqueueWriteRecord(chunk, size)
	return p
}

// Close closes the stream after every queued chunk has been written.
func (w *Writer[T]) Close() *promise.Promise {
	s := w.stream
	s.mu.Lock()
	defer s.mu.Unlock()

	if !w.attached() {
		return promise.Rejected(errReleased("close"))
	}
	if s.closeQueuedOrInFlight() {
		return promise.Rejected(errCloseRequested())
	}
	return s.close()
}

// CloseWithErrorPropagation closes the stream unless it is already closing
// or closed, in which case it resolves. On an errored stream it rejects with
// the stored error.
func (w *Writer[T]) CloseWithErrorPropagation() *promise.Promise {
	s := w.stream
	s.mu.Lock()
	defer s.mu.Unlock()

	if !w.attached() {
		return promise.Rejected(errReleased("close"))
	}
	if s.closeQueuedOrInFlight() || s.state == Closed {
		return promise.Resolved()
	}
	if s.state == Errored {
		return promise.Rejected(s.storedError)
	}
	return s.close()
}

// Abort aborts the stream: queued chunks are discarded and the sink's Abort
// step runs once the in-flight step, if any, settles.
func (w *Writer[T]) Abort(reason error) *promise.Promise {
	s := w.stream
	s.mu.Lock()
	defer s.mu.Unlock()

	if !w.attached() {
		return promise.Rejected(errReleased("abort"))
	}
	return s.abort(reason)
}

// ReleaseLock detaches the writer. Its Ready and Closed promises reject with
// ErrWriterReleased. Calling it on a released writer does nothing.
func (w *Writer[T]) ReleaseLock() {
	s := w.stream
	s.mu.Lock()
	defer s.mu.Unlock()

	if !w.attached() {
		return
	}

	w.ensureReadyPromiseRejected(ErrWriterReleased)
	w.ensureClosedPromiseRejected(ErrWriterReleased)
	s.writer = nil
}

// DesiredSize returns how much more can be queued before backpressure. ok is
// false while the stream is erroring or errored. It is 0 once closed.
func (w *Writer[T]) DesiredSize() (size float64, ok bool, err error) {
	s := w.stream
	s.mu.Lock()
	defer s.mu.Unlock()

	if !w.attached() {
		return 0, false, errReleased("desired size")
	}

	switch s.state {
	case Errored, Erroring:
		return 0, false, nil
	case Closed:
		return 0, true, nil
	}
	return s.controller.desiredSize(), true, nil
}

// Ready returns a promise that is fulfilled while the stream has room for
// more chunks. A new pending promise replaces it each time backpressure
// applies; it rejects once the stream errors.
func (w *Writer[T]) Ready() *promise.Promise {
	w.stream.mu.Lock()
	defer w.stream.mu.Unlock()
	return w.ready
}

// Closed returns a promise that is fulfilled when the stream closes and
// rejected when it errors or the writer is released.
func (w *Writer[T]) Closed() *promise.Promise {
	w.stream.mu.Lock()
	defer w.stream.mu.Unlock()
	return w.closed
}

func (w *Writer[T]) ensureReadyPromiseRejected(err error) {
	if w.ready.State() == promise.StatePending {
		w.ready.Reject(err)
	} else {
		w.ready = promise.Rejected(err)
	}
	w.ready.MarkHandled()
}

func (w *Writer[T]) ensureClosedPromiseRejected(err error) {
	if w.closed.State() == promise.StatePending {
		w.closed.Reject(err)
	} else {
		w.closed = promise.Rejected(err)
	}
	w.closed.MarkHandled()
}
