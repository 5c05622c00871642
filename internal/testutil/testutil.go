// Package testutil holds assertion and synchronisation helpers shared by the
// sinkflow test suites.
package testutil

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// TestTimeout is the default timeout for tests
const TestTimeout = 5 * time.Second

// DefaultPollInterval is how often the Eventually helpers re-check their condition.
const DefaultPollInterval = 10 * time.Millisecond

// WithTimeout creates a context with the default test timeout
func WithTimeout(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	return context.WithTimeout(context.Background(), TestTimeout)
}

// AssertNoError fails the test if err is not nil
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertErrorIs fails the test unless errors.Is(err, target).
func AssertErrorIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("error = %v, want %v", err, target)
	}
}

// AssertEqual fails the test if got != want
func AssertEqual[T comparable](t *testing.T, got, want T) {
	t.Helper()
	if got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
}

// AssertNotEqual fails the test if got == want
func AssertNotEqual[T comparable](t *testing.T, got, notWant T) {
	t.Helper()
	if got == notWant {
		t.Fatalf("got %v, want anything else", got)
	}
}

// Eventually polls condition every interval until it holds or timeout elapses.
func Eventually(t *testing.T, condition func() bool, timeout, interval time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	EventuallyWithContext(t, ctx, condition, interval)
}

// EventuallyWithContext polls condition every interval until it holds or ctx is done.
func EventuallyWithContext(t *testing.T, ctx context.Context, condition func() bool, interval time.Duration) {
	t.Helper()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if condition() {
			return
		}
		select {
		case <-ctx.Done():
			t.Fatalf("condition not met: %v", ctx.Err())
			return
		case <-ticker.C:
		}
	}
}

// AssertEventually is Eventually with TestTimeout and DefaultPollInterval.
func AssertEventually(t *testing.T, condition func() bool) {
	t.Helper()
	Eventually(t, condition, TestTimeout, DefaultPollInterval)
}

// WaitForInt32 waits until *addr equals want.
func WaitForInt32(t *testing.T, addr *int32, want int32, timeout time.Duration) {
	t.Helper()
	Eventually(t, func() bool {
		return atomic.LoadInt32(addr) == want
	}, timeout, DefaultPollInterval)
}

// WaitForInt64 waits until *addr equals want.
func WaitForInt64(t *testing.T, addr *int64, want int64, timeout time.Duration) {
	t.Helper()
	Eventually(t, func() bool {
		return atomic.LoadInt64(addr) == want
	}, timeout, DefaultPollInterval)
}

// CallbackTracker records calls to a callback from any goroutine.
type CallbackTracker struct {
	mu    sync.Mutex
	count int
	value interface{}
}

// NewCallbackTracker creates an empty tracker.
func NewCallbackTracker() *CallbackTracker {
	return &CallbackTracker{}
}

// Mark records a call. The first argument, if any, becomes Value.
func (c *CallbackTracker) Mark(args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
	if len(args) > 0 {
		c.value = args[0]
	}
}

// Called reports whether Mark was called.
func (c *CallbackTracker) Called() bool {
	return c.CallCount() > 0
}

// CallCount returns the number of Mark calls.
func (c *CallbackTracker) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// Value returns the last value passed to Mark.
func (c *CallbackTracker) Value() interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Reset clears the tracker.
func (c *CallbackTracker) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count = 0
	c.value = nil
}

// AssertCalled fails the test if Mark was never called.
func (c *CallbackTracker) AssertCalled(t *testing.T) {
	t.Helper()
	if !c.Called() {
		t.Fatal("expected callback to be called")
	}
}

// AssertNotCalled fails the test if Mark was called.
func (c *CallbackTracker) AssertNotCalled(t *testing.T) {
	t.Helper()
	if n := c.CallCount(); n > 0 {
		t.Fatalf("expected callback not to be called, got %d calls", n)
	}
}

// AssertCallCount fails the test unless Mark was called exactly want times.
func (c *CallbackTracker) AssertCallCount(t *testing.T, want int) {
	t.Helper()
	if n := c.CallCount(); n != want {
		t.Fatalf("call count = %d, want %d", n, want)
	}
}
