package sink

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vnykmshr/sinkflow/pkg/streaming/writable"
)

// TracedSink records a span around every step of another sink.
type TracedSink[T any] struct {
	sink   writable.Sink[T]
	tracer trace.Tracer
	attrs  []attribute.KeyValue
}

var (
	_ writable.Sink[any]    = (*TracedSink[any])(nil)
	_ writable.Starter[any] = (*TracedSink[any])(nil)
	_ writable.Closer       = (*TracedSink[any])(nil)
	_ writable.Aborter      = (*TracedSink[any])(nil)
)

// Traced wraps s so each step runs inside a span named "sink.<step>" from
// tracer. attrs are added to every span.
func Traced[T any](s writable.Sink[T], tracer trace.Tracer, attrs ...attribute.KeyValue) *TracedSink[T] {
	return &TracedSink[T]{sink: s, tracer: tracer, attrs: attrs}
}

func (t *TracedSink[T]) Start(ctx context.Context, c *writable.Controller[T]) error {
	return t.span(ctx, "start", func(ctx context.Context) error {
		return startStep(ctx, t.sink, c)
	})
}

func (t *TracedSink[T]) Write(ctx context.Context, chunk T, c *writable.Controller[T]) error {
	return t.span(ctx, "write", func(ctx context.Context) error {
		return t.sink.Write(ctx, chunk, c)
	})
}

func (t *TracedSink[T]) Close(ctx context.Context) error {
	return t.span(ctx, "close", func(ctx context.Context) error {
		return closeStep(ctx, t.sink)
	})
}

func (t *TracedSink[T]) Abort(ctx context.Context, reason error) error {
	return t.span(ctx, "abort", func(ctx context.Context) error {
		trace.SpanFromContext(ctx).SetAttributes(attribute.String("abort.reason", errString(reason)))
		return abortStep(ctx, t.sink, reason)
	})
}

func (t *TracedSink[T]) span(ctx context.Context, step string, fn func(ctx context.Context) error) error {
	ctx, span := t.tracer.Start(ctx, "sink."+step, trace.WithAttributes(t.attrs...))
	defer span.End()

	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
