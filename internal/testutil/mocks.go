package testutil

import (
	"bytes"
	"errors"
	"sync"
	"time"
)

// MockWriter is an io.Writer for sink and writer tests that can simulate
// slow writes, failures and short writes, and counts calls.
type MockWriter struct {
	buf         *bytes.Buffer
	mu          sync.Mutex
	writeDelay  time.Duration
	errorOnNth  int
	writeCount  int
	shouldError bool
	err         error
	closed      int
	closeErr    error
}

// NewMockWriter creates a new MockWriter.
func NewMockWriter() *MockWriter {
	return &MockWriter{
		buf: &bytes.Buffer{},
	}
}

// Write implements io.Writer interface with configurable behavior.
func (mw *MockWriter) Write(p []byte) (int, error) {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	mw.writeCount++

	if mw.writeDelay > 0 {
		time.Sleep(mw.writeDelay)
	}

	if mw.shouldError {
		return 0, mw.err
	}

	if mw.errorOnNth > 0 && mw.writeCount == mw.errorOnNth {
		return 0, errors.New("simulated error")
	}

	return mw.buf.Write(p)
}

// Close records the call and returns the error set with SetCloseError.
// MockWriter is accepted wherever an io.WriteCloser is.
func (mw *MockWriter) Close() error {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.closed++
	return mw.closeErr
}

// CloseCount returns the number of Close calls.
func (mw *MockWriter) CloseCount() int {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	return mw.closed
}

// SetCloseError configures the error Close returns.
func (mw *MockWriter) SetCloseError(err error) {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.closeErr = err
}

// String returns the current buffer contents.
func (mw *MockWriter) String() string {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	return mw.buf.String()
}

// Len returns the current buffer length.
func (mw *MockWriter) Len() int {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	return mw.buf.Len()
}

// WriteCount returns the number of Write calls.
func (mw *MockWriter) WriteCount() int {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	return mw.writeCount
}

// SetWriteDelay configures a delay for each write operation.
func (mw *MockWriter) SetWriteDelay(delay time.Duration) {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.writeDelay = delay
}

// SetErrorOnNth configures the writer to error on the nth write.
func (mw *MockWriter) SetErrorOnNth(n int) {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.errorOnNth = n
}

// SetAlwaysError configures the writer to always return the given error.
func (mw *MockWriter) SetAlwaysError(err error) {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.shouldError = true
	mw.err = err
}

// Reset clears the buffer and resets counters.
func (mw *MockWriter) Reset() {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.buf.Reset()
	mw.writeCount = 0
	mw.shouldError = false
	mw.errorOnNth = 0
	mw.writeDelay = 0
	mw.err = nil
	mw.closed = 0
	mw.closeErr = nil
}
