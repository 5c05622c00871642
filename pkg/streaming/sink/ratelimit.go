package sink

import (
	"context"
	"fmt"

	gferrors "github.com/vnykmshr/sinkflow/pkg/common/errors"
	"github.com/vnykmshr/sinkflow/pkg/streaming/writable"
)

// Limiter blocks until n events may happen. *rate.Limiter from
// golang.org/x/time/rate implements it.
type Limiter interface {
	WaitN(ctx context.Context, n int) error
}

// CostFunc returns how many limiter tokens writing chunk consumes.
type CostFunc[T any] func(chunk T) int

// ByteCost charges one token per byte.
func ByteCost(chunk []byte) int {
	return len(chunk)
}

// RateLimitSink throttles the writes of another sink.
type RateLimitSink[T any] struct {
	sink    writable.Sink[T]
	limiter Limiter
	cost    CostFunc[T]
}

var (
	_ writable.Sink[any]    = (*RateLimitSink[any])(nil)
	_ writable.Starter[any] = (*RateLimitSink[any])(nil)
	_ writable.Closer       = (*RateLimitSink[any])(nil)
	_ writable.Aborter      = (*RateLimitSink[any])(nil)
)

// RateLimit wraps s so every write first waits on limiter. With a nil cost
// each chunk costs one token. While the write waits the stream keeps
// queueing chunks, so a slow limiter shows up as backpressure.
func RateLimit[T any](s writable.Sink[T], limiter Limiter, cost CostFunc[T]) *RateLimitSink[T] {
	return &RateLimitSink[T]{sink: s, limiter: limiter, cost: cost}
}

func (r *RateLimitSink[T]) Start(ctx context.Context, c *writable.Controller[T]) error {
	return startStep(ctx, r.sink, c)
}

// Write waits for tokens, then writes. A failed wait, including one cut
// short by the abort signal, is reported wrapping ErrRateLimited.
func (r *RateLimitSink[T]) Write(ctx context.Context, chunk T, c *writable.Controller[T]) error {
	n := 1
	if r.cost != nil {
		n = r.cost(chunk)
	}
	if n > 0 {
		if err := r.limiter.WaitN(ctx, n); err != nil {
			return fmt.Errorf("%w: %w", gferrors.ErrRateLimited, err)
		}
	}
	return r.sink.Write(ctx, chunk, c)
}

func (r *RateLimitSink[T]) Close(ctx context.Context) error {
	return closeStep(ctx, r.sink)
}

func (r *RateLimitSink[T]) Abort(ctx context.Context, reason error) error {
	return abortStep(ctx, r.sink, reason)
}
