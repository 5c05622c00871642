package writer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	tu "github.com/vnykmshr/sinkflow/internal/testutil"
	gferrors "github.com/vnykmshr/sinkflow/pkg/common/errors"
	"github.com/vnykmshr/sinkflow/pkg/metrics"
	"github.com/vnykmshr/sinkflow/pkg/streaming/writable"
)

// gatedSink holds every write until release is called.
type gatedSink struct {
	gate chan struct{}
	once sync.Once

	mu  sync.Mutex
	buf bytes.Buffer
}

func newGatedSink(t *testing.T) *gatedSink {
	g := &gatedSink{gate: make(chan struct{})}
	t.Cleanup(g.release)
	return g
}

func (g *gatedSink) Write(ctx context.Context, chunk []byte, _ *writable.Controller[[]byte]) error {
	select {
	case <-g.gate:
	case <-ctx.Done():
		return context.Cause(ctx)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.buf.Write(chunk)
	return nil
}

func (g *gatedSink) release() {
	g.once.Do(func() { close(g.gate) })
}

func (g *gatedSink) String() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.buf.String()
}

// manualConfig disables automatic flushing and retries.
func manualConfig(bufferSize int) Config {
	config := DefaultConfig()
	config.BufferSize = bufferSize
	config.FlushInterval = 0
	config.MaxRetries = 0
	return config
}

func TestNew(t *testing.T) {
	underlying := tu.NewMockWriter()
	writer := New(underlying)
	defer func() { _ = writer.Close() }()

	tu.AssertEqual(t, writer.IsClosed(), false)
	tu.AssertEqual(t, writer.BufferSize(), 0)
	tu.AssertEqual(t, writer.BufferCapacity(), 64*1024)
}

func TestNewWithConfig(t *testing.T) {
	underlying := tu.NewMockWriter()
	config := Config{
		BufferSize:    1024,
		FlushInterval: 2 * time.Second,
		BlockOnFull:   false,
		MaxRetries:    5,
		RetryDelay:    50 * time.Millisecond,
	}

	writer, err := NewWithConfig(underlying, config)
	tu.AssertNoError(t, err)
	defer func() { _ = writer.Close() }()

	tu.AssertEqual(t, writer.IsClosed(), false)
	tu.AssertEqual(t, writer.BufferCapacity(), 1024)
	tu.AssertEqual(t, writer.Stats().Stream.DesiredSize, float64(4*1024))
}

func TestNewWithConfigValidation(t *testing.T) {
	t.Run("nil writer", func(t *testing.T) {
		_, err := NewWithConfig(nil, DefaultConfig())
		tu.AssertError(t, err)
		tu.AssertEqual(t, gferrors.IsValidationError(err), true)
	})

	t.Run("nil sink", func(t *testing.T) {
		_, err := NewWithSink(nil, DefaultConfig())
		tu.AssertEqual(t, gferrors.IsValidationError(err), true)
	})

	t.Run("bad schedule", func(t *testing.T) {
		config := DefaultConfig()
		config.FlushSchedule = "every now and then"
		_, err := NewWithConfig(tu.NewMockWriter(), config)
		tu.AssertErrorIs(t, err, gferrors.ErrInvalidConfiguration)
	})
}

func TestBasicWrite(t *testing.T) {
	underlying := tu.NewMockWriter()
	writer := New(underlying)
	defer func() { _ = writer.Close() }()

	err := writer.Write([]byte("Hello, World!"))
	tu.AssertNoError(t, err)

	err = writer.Flush(context.Background())
	tu.AssertNoError(t, err)

	tu.AssertEqual(t, underlying.String(), "Hello, World!")
}

func TestWriteString(t *testing.T) {
	underlying := tu.NewMockWriter()
	writer := New(underlying)
	defer func() { _ = writer.Close() }()

	tu.AssertNoError(t, writer.WriteString("Hello, World!"))
	tu.AssertNoError(t, writer.Flush(context.Background()))

	tu.AssertEqual(t, underlying.String(), "Hello, World!")
}

func TestMultipleWrites(t *testing.T) {
	underlying := tu.NewMockWriter()
	writer := New(underlying)
	defer func() { _ = writer.Close() }()

	for _, data := range []string{"Hello", ", ", "World", "!"} {
		tu.AssertNoError(t, writer.WriteString(data))
	}

	tu.AssertNoError(t, writer.Flush(context.Background()))

	tu.AssertEqual(t, underlying.String(), "Hello, World!")
	tu.AssertEqual(t, underlying.WriteCount(), 1)
}

func TestAsyncWrite(t *testing.T) {
	underlying := tu.NewMockWriter()
	underlying.SetWriteDelay(100 * time.Millisecond)

	writer, err := NewWithConfig(underlying, manualConfig(4))
	tu.AssertNoError(t, err)
	defer func() { _ = writer.Close() }()

	// The chunk is queued on the stream; the slow sink runs in the background.
	start := time.Now()
	err = writer.WriteString("abcd")
	elapsed := time.Since(start)

	tu.AssertNoError(t, err)
	tu.AssertEqual(t, elapsed < 50*time.Millisecond, true)

	tu.AssertNoError(t, writer.Flush(context.Background()))
	tu.AssertEqual(t, underlying.String(), "abcd")
}

func TestBuffering(t *testing.T) {
	underlying := tu.NewMockWriter()
	writer, err := NewWithConfig(underlying, manualConfig(10))
	tu.AssertNoError(t, err)
	defer func() { _ = writer.Close() }()

	tu.AssertNoError(t, writer.WriteString("12345"))
	tu.AssertEqual(t, writer.BufferSize(), 5)
	tu.AssertEqual(t, writer.Stats().BufferUtilization, 0.5)
	tu.AssertEqual(t, writer.Stats().FlushCount, int64(0))

	// Reaching the chunk size queues a chunk.
	tu.AssertNoError(t, writer.WriteString("67890ab"))
	tu.AssertEqual(t, writer.BufferSize(), 2)
	tu.AssertEqual(t, writer.Stats().FlushCount, int64(1))

	tu.AssertNoError(t, writer.Flush(context.Background()))
	tu.AssertEqual(t, underlying.String(), "1234567890ab")
	tu.AssertEqual(t, writer.BufferSize(), 0)
}

func TestAutoFlush(t *testing.T) {
	underlying := tu.NewMockWriter()
	config := DefaultConfig()
	config.FlushInterval = time.Second
	writer, err := NewWithConfig(underlying, config)
	tu.AssertNoError(t, err)
	defer func() { _ = writer.Close() }()

	tu.AssertNoError(t, writer.WriteString("auto"))

	tu.Eventually(t, func() bool {
		return underlying.String() == "auto"
	}, 3*time.Second, 20*time.Millisecond)
}

func TestFlushSchedule(t *testing.T) {
	underlying := tu.NewMockWriter()
	config := DefaultConfig()
	config.FlushInterval = 0
	config.FlushSchedule = "@every 1s"
	writer, err := NewWithConfig(underlying, config)
	tu.AssertNoError(t, err)
	defer func() { _ = writer.Close() }()

	tu.AssertNoError(t, writer.WriteString("scheduled"))

	tu.Eventually(t, func() bool {
		return underlying.String() == "scheduled"
	}, 3*time.Second, 20*time.Millisecond)
}

func TestFlushScheduleExpressions(t *testing.T) {
	for _, expr := range []string{"@every 10s", "@hourly", "0 0 * * * *", "*/10 * * * * *", "30 * * * *"} {
		t.Run(expr, func(t *testing.T) {
			config := manualConfig(16)
			config.FlushSchedule = expr
			writer, err := NewWithConfig(tu.NewMockWriter(), config)
			tu.AssertNoError(t, err)
			tu.AssertNoError(t, writer.Close())
		})
	}
}

func TestBufferFull(t *testing.T) {
	s := newGatedSink(t)
	overflows := tu.NewCallbackTracker()

	config := manualConfig(4)
	config.HighWaterMark = 4
	config.BlockOnFull = false
	config.OnBufferFull = func() { overflows.Mark() }

	writer, err := NewWithSink(s, config)
	tu.AssertNoError(t, err)
	defer func() { _ = writer.Close() }()

	// The first chunk fills the stream to its high-water mark.
	tu.AssertNoError(t, writer.WriteString("abcd"))
	tu.AssertEqual(t, writer.Stats().Stream.Backpressure, true)

	err = writer.WriteString("efgh")
	tu.AssertErrorIs(t, err, ErrBufferFull)
	overflows.AssertCallCount(t, 1)
	tu.AssertEqual(t, writer.Stats().BufferOverflows, int64(1))

	// Writes that stay below the chunk size only buffer.
	tu.AssertNoError(t, writer.WriteString("ef"))

	s.release()
	tu.AssertNoError(t, writer.Flush(context.Background()))
	tu.AssertEqual(t, s.String(), "abcdef")
	tu.AssertEqual(t, writer.Stats().Stream.Backpressure, false)
}

func TestBlockOnFull(t *testing.T) {
	s := newGatedSink(t)

	config := manualConfig(4)
	config.HighWaterMark = 4
	writer, err := NewWithSink(s, config)
	tu.AssertNoError(t, err)
	defer func() { _ = writer.Close() }()

	tu.AssertNoError(t, writer.WriteString("abcd"))

	done := make(chan error, 1)
	go func() {
		done <- writer.WriteString("efgh")
	}()

	select {
	case err := <-done:
		t.Fatalf("write returned under backpressure: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	s.release()
	select {
	case err := <-done:
		tu.AssertNoError(t, err)
	case <-time.After(tu.TestTimeout):
		t.Fatal("write still blocked after the sink caught up")
	}

	tu.AssertNoError(t, writer.Flush(context.Background()))
	tu.AssertEqual(t, s.String(), "abcdefgh")
}

func TestContextCancellation(t *testing.T) {
	s := newGatedSink(t)

	config := manualConfig(4)
	config.HighWaterMark = 4
	writer, err := NewWithSink(s, config)
	tu.AssertNoError(t, err)
	defer func() { _ = writer.Close() }()

	tu.AssertNoError(t, writer.WriteString("abcd"))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err = writer.WriteContext(ctx, []byte("efgh"))
	tu.AssertErrorIs(t, err, context.DeadlineExceeded)

	s.release()
	tu.AssertNoError(t, writer.Flush(context.Background()))
	tu.AssertEqual(t, s.String(), "abcd")
}

func TestWriteErrors(t *testing.T) {
	boom := errors.New("disk on fire")
	underlying := tu.NewMockWriter()
	underlying.SetAlwaysError(boom)
	failures := tu.NewCallbackTracker()

	config := manualConfig(1024)
	config.OnError = func(err error) { failures.Mark(err) }
	writer, err := NewWithConfig(underlying, config)
	tu.AssertNoError(t, err)

	tu.AssertNoError(t, writer.WriteString("data"))

	err = writer.Flush(context.Background())
	tu.AssertErrorIs(t, err, boom)
	tu.AssertEqual(t, writable.IsSinkFailure(err), true)
	failures.AssertCallCount(t, 1)

	stats := writer.Stats()
	tu.AssertEqual(t, stats.ErrorCount, int64(1))
	tu.AssertEqual(t, stats.Stream.State, writable.Errored)

	// The stream is errored; later writes fail fast.
	tu.AssertErrorIs(t, writer.WriteString("more"), boom)
	tu.AssertErrorIs(t, writer.Close(), boom)
}

func TestRetries(t *testing.T) {
	underlying := tu.NewMockWriter()
	underlying.SetErrorOnNth(1)

	config := manualConfig(1024)
	config.MaxRetries = 2
	config.RetryDelay = time.Millisecond
	writer, err := NewWithConfig(underlying, config)
	tu.AssertNoError(t, err)
	defer func() { _ = writer.Close() }()

	tu.AssertNoError(t, writer.WriteString("retry"))
	tu.AssertNoError(t, writer.Flush(context.Background()))

	tu.AssertEqual(t, underlying.String(), "retry")
	tu.AssertEqual(t, underlying.WriteCount(), 2)
	tu.AssertEqual(t, writer.Stats().ErrorCount, int64(0))
}

func TestStats(t *testing.T) {
	underlying := tu.NewMockWriter()
	writer, err := NewWithConfig(underlying, manualConfig(1024))
	tu.AssertNoError(t, err)
	defer func() { _ = writer.Close() }()

	for _, s := range []string{"one ", "two ", "three"} {
		tu.AssertNoError(t, writer.WriteString(s))
	}
	tu.AssertNoError(t, writer.Flush(context.Background()))

	stats := writer.Stats()
	tu.AssertEqual(t, stats.WriteCount, int64(3))
	tu.AssertEqual(t, stats.FlushCount, int64(1))
	tu.AssertEqual(t, stats.BytesWritten, int64(len("one two three")))
	tu.AssertEqual(t, stats.ErrorCount, int64(0))
	tu.AssertEqual(t, stats.LastWriteTime.IsZero(), false)
	tu.AssertEqual(t, stats.AverageWriteTime, stats.TotalWriteTime)
	tu.AssertEqual(t, stats.Stream.ChunksWritten, int64(1))
	tu.AssertEqual(t, stats.Stream.QueueLength, 0)
	tu.AssertEqual(t, stats.Stream.State, writable.Writable)
}

func TestClose(t *testing.T) {
	underlying := tu.NewMockWriter()
	writer := New(underlying)

	tu.AssertNoError(t, writer.WriteString("data"))
	tu.AssertNoError(t, writer.Close())

	tu.AssertEqual(t, writer.IsClosed(), true)
	tu.AssertEqual(t, underlying.String(), "data")
	tu.AssertEqual(t, underlying.CloseCount(), 1)
	tu.AssertEqual(t, writer.Stats().Stream.State, writable.Closed)

	tu.AssertErrorIs(t, writer.WriteString("more"), ErrWriterClosed)
	tu.AssertErrorIs(t, writer.Flush(context.Background()), ErrWriterClosed)

	// Closing twice is a no-op.
	tu.AssertNoError(t, writer.Close())
	tu.AssertEqual(t, underlying.CloseCount(), 1)
}

func TestWriteRacingClose(t *testing.T) {
	underlying := tu.NewMockWriter()
	writer, err := NewWithConfig(underlying, manualConfig(4))
	tu.AssertNoError(t, err)
	aw := writer.(*asyncWriter)

	// Park a write on mu after it has seen the writer open.
	aw.mu.Lock()
	written := make(chan error, 1)
	go func() {
		written <- writer.WriteString("abcd")
	}()
	time.Sleep(20 * time.Millisecond)

	closed := make(chan error, 1)
	go func() {
		closed <- writer.Close()
	}()
	tu.AssertEventually(t, writer.IsClosed)
	aw.mu.Unlock()

	select {
	case err := <-written:
		tu.AssertErrorIs(t, err, ErrWriterClosed)
	case <-time.After(tu.TestTimeout):
		t.Fatal("write never returned")
	}
	tu.AssertNoError(t, <-closed)
	tu.AssertEqual(t, underlying.String(), "")
	tu.AssertEqual(t, writer.Stats().Stream.State, writable.Closed)
}

func TestCloseTimeout(t *testing.T) {
	s := newGatedSink(t)

	config := manualConfig(1024)
	config.CloseTimeout = 30 * time.Millisecond
	writer, err := NewWithSink(s, config)
	tu.AssertNoError(t, err)

	tu.AssertNoError(t, writer.WriteString("stuck"))

	err = writer.Close()
	tu.AssertErrorIs(t, err, gferrors.ErrTimeout)

	// The abort reaches the pending write through its context.
	tu.AssertEventually(t, func() bool {
		return writer.Stats().Stream.State == writable.Errored
	})
	tu.AssertEqual(t, s.String(), "")
}

func TestConcurrentWrites(t *testing.T) {
	underlying := tu.NewMockWriter()
	writer, err := NewWithConfig(underlying, manualConfig(256))
	tu.AssertNoError(t, err)

	const goroutines = 10
	const writesPerGoroutine = 100

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < writesPerGoroutine; i++ {
				if err := writer.WriteString(fmt.Sprintf("g%02d-w%03d\n", g, i)); err != nil {
					t.Errorf("write failed: %v", err)
					return
				}
			}
		}(g)
	}
	wg.Wait()

	tu.AssertNoError(t, writer.Close())

	lines := strings.Split(strings.TrimSuffix(underlying.String(), "\n"), "\n")
	tu.AssertEqual(t, len(lines), goroutines*writesPerGoroutine)

	// Each goroutine's writes keep their relative order.
	next := make(map[string]int)
	for _, line := range lines {
		var g, i int
		if _, err := fmt.Sscanf(line, "g%02d-w%03d", &g, &i); err != nil {
			t.Fatalf("corrupted line %q", line)
		}
		key := fmt.Sprint(g)
		tu.AssertEqual(t, i, next[key])
		next[key]++
	}
}

func TestCallbacks(t *testing.T) {
	t.Run("Flush", func(t *testing.T) {
		flushed := tu.NewCallbackTracker()

		config := manualConfig(1024)
		config.OnFlush = func(bytesWritten int, _ time.Duration) {
			flushed.Mark(bytesWritten)
		}

		writer, err := NewWithConfig(tu.NewMockWriter(), config)
		tu.AssertNoError(t, err)
		defer func() { _ = writer.Close() }()

		tu.AssertNoError(t, writer.WriteString("callback test"))
		tu.AssertNoError(t, writer.Flush(context.Background()))

		flushed.AssertCallCount(t, 1)
		tu.AssertEqual(t, flushed.Value(), interface{}(len("callback test")))
	})

	t.Run("Error", func(t *testing.T) {
		underlying := tu.NewMockWriter()
		underlying.SetAlwaysError(errors.New("test error"))
		failed := tu.NewCallbackTracker()

		config := manualConfig(1024)
		config.OnError = func(err error) { failed.Mark(err) }

		writer, err := NewWithConfig(underlying, config)
		tu.AssertNoError(t, err)
		defer func() { _ = writer.Close() }()

		tu.AssertNoError(t, writer.WriteString("error test"))
		tu.AssertError(t, writer.Flush(context.Background()))

		failed.AssertCalled(t)
	})
}

func TestMetrics(t *testing.T) {
	reg := metrics.NewRegistry(prometheus.NewRegistry())

	config := manualConfig(4)
	config.Name = "metered"
	config.Metrics = reg
	writer, err := NewWithConfig(tu.NewMockWriter(), config)
	tu.AssertNoError(t, err)

	tu.AssertNoError(t, writer.WriteString("abcdef"))
	tu.AssertNoError(t, writer.Close())

	tu.AssertEqual(t, testutil.ToFloat64(reg.WriterFlushes.WithLabelValues("metered")), 2.0)
	tu.AssertEqual(t, testutil.ToFloat64(reg.WriterBytesWritten.WithLabelValues("metered")), 6.0)
	tu.AssertEqual(t, testutil.ToFloat64(reg.ChunksWritten.WithLabelValues("metered")), 2.0)
}

func TestEmptyWrites(t *testing.T) {
	underlying := tu.NewMockWriter()
	writer := New(underlying)
	defer func() { _ = writer.Close() }()

	tu.AssertNoError(t, writer.Write(nil))
	tu.AssertNoError(t, writer.Write([]byte{}))
	tu.AssertNoError(t, writer.WriteString(""))
	tu.AssertNoError(t, writer.Flush(context.Background()))

	tu.AssertEqual(t, underlying.Len(), 0)

	stats := writer.Stats()
	tu.AssertEqual(t, stats.WriteCount, int64(0))
	tu.AssertEqual(t, stats.BytesWritten, int64(0))
	tu.AssertEqual(t, stats.FlushCount, int64(0))
}

func TestLargeWrites(t *testing.T) {
	underlying := tu.NewMockWriter()
	writer, err := NewWithConfig(underlying, manualConfig(1024))
	tu.AssertNoError(t, err)
	defer func() { _ = writer.Close() }()

	var large strings.Builder
	for i := 0; large.Len() < 3500; i++ {
		fmt.Fprintf(&large, "%d,", i)
	}

	tu.AssertNoError(t, writer.WriteString(large.String()))
	tu.AssertEqual(t, writer.Stats().FlushCount, int64(3))

	tu.AssertNoError(t, writer.Flush(context.Background()))
	tu.AssertEqual(t, underlying.String(), large.String())
}

func BenchmarkWrite(b *testing.B) {
	writer := New(&bytes.Buffer{})
	defer func() { _ = writer.Close() }()

	data := []byte("benchmark data")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = writer.Write(data)
	}

	_ = writer.Flush(context.Background())
}

func BenchmarkWriteString(b *testing.B) {
	writer := New(&bytes.Buffer{})
	defer func() { _ = writer.Close() }()

	data := "benchmark data string"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = writer.WriteString(data)
	}

	_ = writer.Flush(context.Background())
}

func BenchmarkConcurrentWrites(b *testing.B) {
	writer := New(&bytes.Buffer{})
	defer func() { _ = writer.Close() }()

	data := []byte("concurrent benchmark data")

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = writer.Write(data)
		}
	})
}
