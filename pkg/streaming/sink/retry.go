package sink

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go"
	"github.com/sirupsen/logrus"

	gferrors "github.com/vnykmshr/sinkflow/pkg/common/errors"
	"github.com/vnykmshr/sinkflow/pkg/common/validation"
	"github.com/vnykmshr/sinkflow/pkg/streaming/writable"
)

// DelayType selects how the wait between attempts grows.
type DelayType int

const (
	// DelayTypeFixed waits Delay between attempts.
	DelayTypeFixed DelayType = iota

	// DelayTypeRandom waits a random duration up to MaxJitter.
	DelayTypeRandom

	// DelayTypeExponential doubles the wait after every attempt.
	DelayTypeExponential
)

// RetryConfig configures the Retry decorator.
type RetryConfig struct {
	// Attempts is the total number of tries per step, the first one included.
	// Default: 3
	Attempts uint

	// Delay is the base wait between attempts.
	// Default: 100ms
	Delay time.Duration

	// MaxDelay caps the wait between attempts. Zero means no cap.
	MaxDelay time.Duration

	// MaxJitter bounds the random wait of DelayTypeRandom.
	// Default: Delay
	MaxJitter time.Duration

	// DelayType selects the backoff.
	// Default: DelayTypeFixed
	DelayType DelayType

	// RetryIf decides whether an error is worth another attempt.
	// Default: everything except cancellation and validation errors
	RetryIf func(err error) bool

	// OnRetry is called before each new attempt.
	OnRetry func(attempt uint, err error)

	// Logger receives a debug entry per retry.
	// Default: logrus.StandardLogger()
	Logger logrus.FieldLogger
}

// DefaultRetryConfig returns a default configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Attempts:  3,
		Delay:     100 * time.Millisecond,
		DelayType: DelayTypeFixed,
		Logger:    logrus.StandardLogger(),
	}
}

// RetrySink retries the Write and Close steps of another sink.
type RetrySink[T any] struct {
	sink        writable.Sink[T]
	config      RetryConfig
	delayTypeFn retry.DelayTypeFunc
}

var (
	_ writable.Sink[any]    = (*RetrySink[any])(nil)
	_ writable.Starter[any] = (*RetrySink[any])(nil)
	_ writable.Closer       = (*RetrySink[any])(nil)
	_ writable.Aborter      = (*RetrySink[any])(nil)
)

// Retry wraps s so failed writes and closes are attempted again. Retrying
// stops early once the stream's abort signal fires. Start and Abort are
// forwarded once.
func Retry[T any](s writable.Sink[T], config RetryConfig) *RetrySink[T] {
	defaults := DefaultRetryConfig()
	if config.Attempts == 0 {
		config.Attempts = defaults.Attempts
	}
	if config.Delay <= 0 {
		config.Delay = defaults.Delay
	}
	if config.MaxJitter <= 0 {
		config.MaxJitter = config.Delay
	}
	if config.RetryIf == nil {
		config.RetryIf = retryable
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}

	rs := &RetrySink[T]{sink: s, config: config}
	switch config.DelayType {
	case DelayTypeRandom:
		rs.delayTypeFn = retry.RandomDelay
	case DelayTypeExponential:
		rs.delayTypeFn = retry.BackOffDelay
	default:
		rs.delayTypeFn = retry.FixedDelay
	}
	return rs
}

// NewRetrySink is Retry with validation of s.
func NewRetrySink[T any](s writable.Sink[T], config RetryConfig) (*RetrySink[T], error) {
	if err := validation.ValidateNotNil("sink", "sink", s); err != nil {
		return nil, err
	}
	return Retry(s, config), nil
}

func (r *RetrySink[T]) Start(ctx context.Context, c *writable.Controller[T]) error {
	return startStep(ctx, r.sink, c)
}

func (r *RetrySink[T]) Write(ctx context.Context, chunk T, c *writable.Controller[T]) error {
	return r.do(ctx, "write", func() error {
		return r.sink.Write(ctx, chunk, c)
	})
}

func (r *RetrySink[T]) Close(ctx context.Context) error {
	return r.do(ctx, "close", func() error {
		return closeStep(ctx, r.sink)
	})
}

func (r *RetrySink[T]) Abort(ctx context.Context, reason error) error {
	return abortStep(ctx, r.sink, reason)
}

func (r *RetrySink[T]) do(ctx context.Context, step string, fn func() error) error {
	opts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(r.config.Attempts),
		retry.DelayType(r.delayTypeFn),
		retry.Delay(r.config.Delay),
		retry.MaxJitter(r.config.MaxJitter),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return ctx.Err() == nil && r.config.RetryIf(err)
		}),
		retry.OnRetry(func(n uint, err error) {
			r.config.Logger.WithError(err).
				WithField("step", step).
				WithField("retry", n+1).
				Debug("retrying sink step")
			if r.config.OnRetry != nil {
				r.config.OnRetry(n+1, err)
			}
		}),
	}
	if r.config.MaxDelay > 0 {
		opts = append(opts, retry.MaxDelay(r.config.MaxDelay))
	}

	err := retry.Do(fn, opts...)
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		// Report why the signal fired, not just that it did.
		return context.Cause(ctx)
	}
	return err
}

// retryable is the default RetryIf. Timeouts, rate limiting and exhausted
// capacity are always retried; cancellation and invalid configuration never.
func retryable(err error) bool {
	switch {
	case gferrors.IsRetryable(err), gferrors.IsTemporary(err):
		return true
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case gferrors.IsValidationError(err):
		return false
	}
	return true
}
