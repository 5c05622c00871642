package sink

import (
	"context"

	"github.com/vnykmshr/sinkflow/pkg/streaming/writable"
)

// The decorators implement every optional step and forward each one only
// when the wrapped sink has it.

func startStep[T any](ctx context.Context, s writable.Sink[T], c *writable.Controller[T]) error {
	if starter, ok := s.(writable.Starter[T]); ok {
		return starter.Start(ctx, c)
	}
	return nil
}

func closeStep[T any](ctx context.Context, s writable.Sink[T]) error {
	if closer, ok := s.(writable.Closer); ok {
		return closer.Close(ctx)
	}
	return nil
}

func abortStep[T any](ctx context.Context, s writable.Sink[T], reason error) error {
	if aborter, ok := s.(writable.Aborter); ok {
		return aborter.Abort(ctx, reason)
	}
	return nil
}
