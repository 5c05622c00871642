/*
Package writable provides a backpressure-aware destination for chunks of data.

A Stream accepts chunks asynchronously from a single producer and hands them
to a Sink one at a time, in order. Each write returns a promise that settles
once the sink has taken the chunk, or the stream failed first.

# Roles

  - Stream owns the lifecycle: Writable, Erroring, Errored or Closed.
  - Controller queues chunks, computes the desired size and drives the sink.
  - Writer is the exclusive handle a producer writes through.
  - Sink is the user-supplied destination. Start, Close and Abort are
    optional capabilities (Starter, Closer, Aborter).

# Backpressure

Every queued chunk is sized with the configured Strategy. The desired size is
the high-water mark minus the total size of queued chunks; while it is zero or
less the stream signals backpressure and Writer.Ready returns a pending
promise that is fulfilled once the sink catches up:

	w, _ := stream.GetWriter()
	for _, chunk := range chunks {
		if err := w.Ready().Wait(ctx); err != nil {
			return err
		}
		w.Write(chunk)
	}
	return w.Close().Wait(ctx)

# Close and abort

Close lets every queued chunk reach the sink before the sink's Close step
runs. Abort discards queued chunks; the sink's Abort step runs after the
in-flight step, if any, settles. If a close is already in flight when Abort is
called, the close wins and the abort resolves once the sink has closed.

Failures of a sink step are reported as *errors.OperationError values from
pkg/common/errors with Module "sink"; IsSinkFailure detects them. An aborted
stream stores an *AbortError that unwraps to the abort reason.

# Concurrency

All state is guarded by one mutex per stream. Sink steps run on their own
goroutines and never while the mutex is held, and promise continuations never
run on the goroutine that settled them. A sink therefore never sees two
overlapping Write or Close calls.
*/
package writable
