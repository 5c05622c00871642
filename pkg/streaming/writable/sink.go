package writable

import "context"

// Sink is the underlying destination of a Stream. Write is called with one
// chunk at a time, never concurrently with another Write or with Close.
//
// ctx is the stream's abort signal: it is canceled, with the abort reason as
// its cause, once Abort is requested. The stream does not interrupt a step
// itself; a sink may watch ctx to give up early.
type Sink[T any] interface {
	Write(ctx context.Context, chunk T, c *Controller[T]) error
}

// Starter is implemented by sinks that need asynchronous setup. Start is
// called once, before any Write; writes queue up until it returns.
type Starter[T any] interface {
	Start(ctx context.Context, c *Controller[T]) error
}

// Closer is implemented by sinks that need to flush or release resources
// after the last write. Close is called at most once, after every queued
// write has succeeded.
type Closer interface {
	Close(ctx context.Context) error
}

// Aborter is implemented by sinks that can discard work on abort. Abort is
// called at most once, after any in-flight step settles. A sink without
// Abort is treated as aborting successfully.
type Aborter interface {
	Abort(ctx context.Context, reason error) error
}

// SinkFuncs adapts plain functions to a sink. A nil function succeeds immediately.
type SinkFuncs[T any] struct {
	StartFunc func(ctx context.Context, c *Controller[T]) error
	WriteFunc func(ctx context.Context, chunk T, c *Controller[T]) error
	CloseFunc func(ctx context.Context) error
	AbortFunc func(ctx context.Context, reason error) error
}

var (
	_ Sink[any]    = SinkFuncs[any]{}
	_ Starter[any] = SinkFuncs[any]{}
	_ Closer       = SinkFuncs[any]{}
	_ Aborter      = SinkFuncs[any]{}
)

func (f SinkFuncs[T]) Start(ctx context.Context, c *Controller[T]) error {
	if f.StartFunc == nil {
		return nil
	}
	return f.StartFunc(ctx, c)
}

func (f SinkFuncs[T]) Write(ctx context.Context, chunk T, c *Controller[T]) error {
	if f.WriteFunc == nil {
		return nil
	}
	return f.WriteFunc(ctx, chunk, c)
}

func (f SinkFuncs[T]) Close(ctx context.Context) error {
	if f.CloseFunc == nil {
		return nil
	}
	return f.CloseFunc(ctx)
}

func (f SinkFuncs[T]) Abort(ctx context.Context, reason error) error {
	if f.AbortFunc == nil {
		return nil
	}
	return f.AbortFunc(ctx, reason)
}
