package writable

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/vnykmshr/sinkflow/pkg/streaming/promise"
)

const stepTimeout = time.Second

// sinkCall is one invocation of a manualSink step, blocked until the test
// settles it.
type sinkCall struct {
	step   string
	chunk  string
	reason error
	result chan error
	once   sync.Once
}

func (c *sinkCall) resolve()         { c.settle(nil) }
func (c *sinkCall) reject(err error) { c.settle(err) }

// settle completes the call; only the first settlement counts.
func (c *sinkCall) settle(err error) {
	c.once.Do(func() { c.result <- err })
}

// manualSink hands every Write, Close and Abort to the test, which decides
// when and how each one completes.
type manualSink struct {
	calls chan *sinkCall

	mu          sync.Mutex
	inFlight    int
	maxInFlight int
	handedOut   []*sinkCall
}

func newManualSink(t *testing.T) *manualSink {
	t.Helper()
	s := &manualSink{calls: make(chan *sinkCall, 64)}
	t.Cleanup(s.drain)
	return s
}

func (s *manualSink) call(step, chunk string, reason error) error {
	s.mu.Lock()
	s.inFlight++
	if s.inFlight > s.maxInFlight {
		s.maxInFlight = s.inFlight
	}
	s.mu.Unlock()

	c := &sinkCall{step: step, chunk: chunk, reason: reason, result: make(chan error, 1)}
	s.calls <- c
	err := <-c.result

	s.mu.Lock()
	s.inFlight--
	s.mu.Unlock()
	return err
}

func (s *manualSink) Write(_ context.Context, chunk string, _ *Controller[string]) error {
	return s.call("write", chunk, nil)
}

func (s *manualSink) Close(context.Context) error {
	return s.call("close", "", nil)
}

func (s *manualSink) Abort(_ context.Context, reason error) error {
	return s.call("abort", "", reason)
}

// next returns the next step the stream invoked.
func (s *manualSink) next(t *testing.T) *sinkCall {
	t.Helper()
	select {
	case c := <-s.calls:
		s.mu.Lock()
		s.handedOut = append(s.handedOut, c)
		s.mu.Unlock()
		return c
	case <-time.After(stepTimeout):
		t.Fatal("timed out waiting for a sink call")
		return nil
	}
}

// expectNone fails if the stream invokes another step within a short window.
func (s *manualSink) expectNone(t *testing.T) {
	t.Helper()
	select {
	case c := <-s.calls:
		t.Fatalf("unexpected sink call %s(%q)", c.step, c.chunk)
	case <-time.After(20 * time.Millisecond):
	}
}

// drain resolves whatever is still blocked so no step goroutine outlives
// the test, including calls a test took with next and never settled.
func (s *manualSink) drain() {
	s.mu.Lock()
	handedOut := s.handedOut
	s.handedOut = nil
	s.mu.Unlock()
	for _, c := range handedOut {
		c.resolve()
	}

	for {
		select {
		case c := <-s.calls:
			c.resolve()
		case <-time.After(50 * time.Millisecond):
			return
		}
	}
}

func (s *manualSink) max() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxInFlight
}

// expectStep asserts the step name and chunk of a sink call.
func expectStep(t *testing.T, c *sinkCall, step, chunk string) {
	t.Helper()
	if c.step != step || c.chunk != chunk {
		t.Fatalf("sink call = %s(%q), want %s(%q)", c.step, c.chunk, step, chunk)
	}
}

// await waits for p and returns its rejection reason.
func await(t *testing.T, p *promise.Promise) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), stepTimeout)
	defer cancel()
	select {
	case <-p.Done():
		return p.Err()
	case <-ctx.Done():
		t.Fatal("timed out waiting for promise")
		return nil
	}
}

// assertPending fails if p settles within a short window.
func assertPending(t *testing.T, p *promise.Promise) {
	t.Helper()
	select {
	case <-p.Done():
		t.Fatalf("promise settled early: %v", p.Err())
	case <-time.After(20 * time.Millisecond):
	}
}

// newTestStream builds a stream over sink with a count strategy and returns it
// with an attached writer.
func newTestStream(t *testing.T, sink Sink[string], highWaterMark float64) (*Stream[string], *Writer[string]) {
	t.Helper()
	config := DefaultConfig[string]()
	config.Strategy = CountStrategy[string](highWaterMark)
	config.Name = t.Name()

	s, err := NewWithConfig[string](sink, config)
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}
	w, err := s.GetWriter()
	if err != nil {
		t.Fatalf("GetWriter: %v", err)
	}
	return s, w
}

func desiredSize(t *testing.T, w *Writer[string]) (float64, bool) {
	t.Helper()
	size, ok, err := w.DesiredSize()
	if err != nil {
		t.Fatalf("DesiredSize: %v", err)
	}
	return size, ok
}

func (s *manualSink) inFlightNow() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}
