// Package context holds small context helpers shared by the stream core and
// the sink adapters.
package context

import (
	"context"
	"time"
)

// WithAbortSignal returns a context that is canceled, with the given cause,
// when the returned function is called. The stream controller hands this
// context to sink steps so they can notice an abort request.
func WithAbortSignal(parent context.Context) (context.Context, context.CancelCauseFunc) {
	return context.WithCancelCause(parent)
}

// WithTimeoutOrCancel creates a context that is canceled either when the parent
// is canceled or when the timeout duration elapses, whichever comes first
func WithTimeoutOrCancel(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}

// IsCanceled returns true if the context has been canceled
func IsCanceled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// AbortReason returns the cause the context was canceled with, or nil while
// the context is still live.
func AbortReason(ctx context.Context) error {
	if !IsCanceled(ctx) {
		return nil
	}
	return context.Cause(ctx)
}

// IsTimedOut returns true if the context was canceled due to a timeout
func IsTimedOut(ctx context.Context) bool {
	return ctx.Err() == context.DeadlineExceeded
}
