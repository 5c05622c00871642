package sink

import (
	"context"

	"github.com/hashicorp/go-multierror"

	"github.com/vnykmshr/sinkflow/pkg/streaming/writable"
)

// MultiSink fans every step out to several sinks.
type MultiSink[T any] struct {
	sinks []writable.Sink[T]
}

var (
	_ writable.Sink[any]    = (*MultiSink[any])(nil)
	_ writable.Starter[any] = (*MultiSink[any])(nil)
	_ writable.Closer       = (*MultiSink[any])(nil)
	_ writable.Aborter      = (*MultiSink[any])(nil)
)

// Multi returns a sink that runs each step on every one of sinks
// concurrently and waits for all of them. A step fails if any sink fails;
// the errors are combined into a *multierror.Error.
func Multi[T any](sinks ...writable.Sink[T]) *MultiSink[T] {
	return &MultiSink[T]{sinks: sinks}
}

// Len returns the number of sinks.
func (m *MultiSink[T]) Len() int {
	return len(m.sinks)
}

func (m *MultiSink[T]) Start(ctx context.Context, c *writable.Controller[T]) error {
	return m.each(func(s writable.Sink[T]) error {
		return startStep(ctx, s, c)
	})
}

func (m *MultiSink[T]) Write(ctx context.Context, chunk T, c *writable.Controller[T]) error {
	return m.each(func(s writable.Sink[T]) error {
		return s.Write(ctx, chunk, c)
	})
}

func (m *MultiSink[T]) Close(ctx context.Context) error {
	return m.each(func(s writable.Sink[T]) error {
		return closeStep(ctx, s)
	})
}

func (m *MultiSink[T]) Abort(ctx context.Context, reason error) error {
	return m.each(func(s writable.Sink[T]) error {
		return abortStep(ctx, s, reason)
	})
}

func (m *MultiSink[T]) each(fn func(s writable.Sink[T]) error) error {
	wg := multierror.Group{}
	for _, s := range m.sinks {
		s := s
		wg.Go(func() error {
			return fn(s)
		})
	}
	return wg.Wait().ErrorOrNil()
}
