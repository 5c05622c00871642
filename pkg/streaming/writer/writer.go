package writer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	sfcontext "github.com/vnykmshr/sinkflow/pkg/common/context"
	gferrors "github.com/vnykmshr/sinkflow/pkg/common/errors"
	"github.com/vnykmshr/sinkflow/pkg/common/validation"
	"github.com/vnykmshr/sinkflow/pkg/metrics"
	"github.com/vnykmshr/sinkflow/pkg/streaming/promise"
	"github.com/vnykmshr/sinkflow/pkg/streaming/sink"
	"github.com/vnykmshr/sinkflow/pkg/streaming/writable"
)

// ErrWriterClosed is returned when attempting to write to a closed writer.
var ErrWriterClosed = errors.New("writer is closed")

// ErrBufferFull is returned when the stream signals backpressure and blocking is disabled.
var ErrBufferFull = errors.New("buffer is full")

// AsyncWriter provides asynchronous, buffered writing on top of a writable
// stream. Small writes are collected into chunks of BufferSize bytes; each
// full chunk is queued on the stream and written by its sink in the
// background.
type AsyncWriter interface {
	// Write buffers data. It blocks only while the stream signals
	// backpressure and BlockOnFull is set; otherwise it returns ErrBufferFull.
	Write(data []byte) error

	// WriteString writes a string asynchronously.
	WriteString(s string) error

	// WriteContext writes data with context support for cancellation.
	WriteContext(ctx context.Context, data []byte) error

	// Flush queues the buffered bytes and waits until the sink has written
	// everything queued so far.
	Flush(ctx context.Context) error

	// Close flushes, closes the stream and waits for the sink to close.
	// After Close returns, no more writes are accepted.
	Close() error

	// Stats returns statistics about the writer's performance.
	Stats() Stats

	// IsClosed returns true if the writer is closed.
	IsClosed() bool

	// BufferSize returns the current number of buffered bytes.
	BufferSize() int

	// BufferCapacity returns the chunk size.
	BufferCapacity() int
}

// Stats holds statistics about async writer performance.
type Stats struct {
	// BytesWritten is the total number of bytes the sink acknowledged.
	BytesWritten int64

	// WriteCount is the total number of accepted Write calls.
	WriteCount int64

	// FlushCount is the total number of chunks queued on the stream.
	FlushCount int64

	// ErrorCount is the total number of failed chunks.
	ErrorCount int64

	// BufferOverflows is the number of writes rejected with ErrBufferFull.
	BufferOverflows int64

	// AverageWriteTime is the average time from queueing a chunk to the sink acknowledging it.
	AverageWriteTime time.Duration

	// TotalWriteTime is the total time chunks spent queued and in the sink.
	TotalWriteTime time.Duration

	// LastWriteTime is the timestamp of the last acknowledged chunk.
	LastWriteTime time.Time

	// BufferUtilization is the current buffer utilization (0.0 to 1.0).
	BufferUtilization float64

	// Stream is a snapshot of the underlying stream.
	Stream writable.Stats
}

// Config holds configuration options for AsyncWriter.
type Config struct {
	// BufferSize is the chunk size in bytes.
	// Default: 64KB
	BufferSize int

	// HighWaterMark is the number of queued bytes at which the stream
	// signals backpressure.
	// Default: 4 * BufferSize
	HighWaterMark int

	// FlushInterval is how often to flush the buffer automatically.
	// It has one-second resolution. Set to 0 to disable automatic flushing.
	// Default: 1 second
	FlushInterval time.Duration

	// FlushSchedule is a cron expression for automatic flushing, with an
	// optional seconds field or a descriptor such as "@every 5s". It
	// takes precedence over FlushInterval.
	FlushSchedule string

	// BlockOnFull determines behavior under backpressure.
	// If true, Write operations block until the stream is ready.
	// If false, Write operations return ErrBufferFull immediately.
	// Default: true
	BlockOnFull bool

	// MaxRetries is the number of times to retry a failed chunk.
	// Default: 3
	MaxRetries int

	// RetryDelay is the delay between retries.
	// Default: 100ms
	RetryDelay time.Duration

	// CloseTimeout bounds Close. When it elapses the stream is aborted.
	// Zero waits indefinitely.
	// Default: 30 seconds
	CloseTimeout time.Duration

	// Name labels the writer and its stream in logs and metrics.
	// Default: "writer"
	Name string

	// Logger receives debug logs.
	// Default: logrus.StandardLogger()
	Logger logrus.FieldLogger

	// Metrics enables Prometheus instrumentation when set.
	Metrics *metrics.Registry

	// OnError is called when a chunk fails.
	OnError func(error)

	// OnFlush is called once the sink has written a chunk.
	OnFlush func(bytesWritten int, duration time.Duration)

	// OnBufferFull is called when a write is rejected with ErrBufferFull.
	OnBufferFull func()
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		BufferSize:    64 * 1024, // 64KB
		FlushInterval: time.Second,
		BlockOnFull:   true,
		MaxRetries:    3,
		RetryDelay:    100 * time.Millisecond,
		CloseTimeout:  30 * time.Second,
		Name:          "writer",
		Logger:        logrus.StandardLogger(),
	}
}

var scheduleParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// asyncWriter implements AsyncWriter.
type asyncWriter struct {
	config Config
	log    logrus.FieldLogger

	stream *writable.Stream[[]byte]
	writer *writable.Writer[[]byte]

	// mu serialises buffering and queueing so chunks keep write order.
	mu     sync.Mutex
	buffer []byte
	last   *promise.Promise

	// callbacks tracks chunk completions whose bookkeeping is still running.
	callbacks sync.WaitGroup

	flusher *cron.Cron

	// State
	closed int32 // atomic

	// Statistics
	stats   Stats
	statsMu sync.RWMutex
}

// New creates a new AsyncWriter over w with default configuration.
func New(w io.Writer) AsyncWriter {
	aw, _ := NewWithConfig(w, DefaultConfig())
	return aw
}

// NewWithConfig creates a new AsyncWriter over w with the specified
// configuration. If w is an io.Closer it is closed by Close.
func NewWithConfig(w io.Writer, config Config) (AsyncWriter, error) {
	s, err := sink.NewWriterSink(w)
	if err != nil {
		return nil, err
	}
	return NewWithSink(s, config)
}

// NewWithSink creates a new AsyncWriter over an arbitrary byte sink. Failed
// chunks are retried MaxRetries times before the stream errors.
func NewWithSink(s writable.Sink[[]byte], config Config) (AsyncWriter, error) {
	if err := validation.ValidateNotNil("writer", "sink", s); err != nil {
		return nil, err
	}

	defaults := DefaultConfig()
	if config.BufferSize <= 0 {
		config.BufferSize = defaults.BufferSize
	}
	if config.HighWaterMark <= 0 {
		config.HighWaterMark = 4 * config.BufferSize
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = defaults.MaxRetries
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = defaults.RetryDelay
	}
	if config.CloseTimeout < 0 {
		config.CloseTimeout = defaults.CloseTimeout
	}
	if config.Name == "" {
		config.Name = defaults.Name
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}

	var schedule cron.Schedule
	switch {
	case config.FlushSchedule != "":
		parsed, err := scheduleParser.Parse(config.FlushSchedule)
		if err != nil {
			return nil, gferrors.NewValidationError("writer", "flushSchedule", config.FlushSchedule, err.Error()).
				WithHint(`use a cron expression such as "*/5 * * * * *" or "@every 5s"`)
		}
		schedule = parsed
	case config.FlushInterval > 0:
		schedule = cron.Every(config.FlushInterval)
	}

	if config.MaxRetries > 0 {
		retryConfig := sink.DefaultRetryConfig()
		retryConfig.Attempts = uint(config.MaxRetries) + 1
		retryConfig.Delay = config.RetryDelay
		retryConfig.Logger = config.Logger
		s = sink.Retry(s, retryConfig)
	}

	streamConfig := writable.DefaultConfig[[]byte]()
	streamConfig.Strategy = writable.ByteLengthStrategy(float64(config.HighWaterMark))
	streamConfig.Name = config.Name
	streamConfig.Logger = config.Logger
	streamConfig.Metrics = config.Metrics

	stream, err := writable.NewWithConfig(s, streamConfig)
	if err != nil {
		return nil, err
	}
	w, err := stream.GetWriter()
	if err != nil {
		return nil, err
	}

	aw := &asyncWriter{
		config: config,
		log:    config.Logger.WithField("writer", config.Name),
		stream: stream,
		writer: w,
		buffer: make([]byte, 0, config.BufferSize),
	}

	if schedule != nil {
		aw.flusher = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
		aw.flusher.Schedule(schedule, cron.FuncJob(aw.autoFlush))
		aw.flusher.Start()
	}

	return aw, nil
}

// Write implements AsyncWriter.Write.
func (aw *asyncWriter) Write(data []byte) error {
	return aw.WriteContext(context.Background(), data)
}

// WriteString implements AsyncWriter.WriteString.
func (aw *asyncWriter) WriteString(s string) error {
	return aw.WriteContext(context.Background(), []byte(s))
}

// WriteContext implements AsyncWriter.WriteContext. A single call may queue
// several chunks and overshoot the high-water mark by up to its own size.
func (aw *asyncWriter) WriteContext(ctx context.Context, data []byte) error {
	if aw.IsClosed() {
		return ErrWriterClosed
	}
	if err := aw.failure(); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	aw.mu.Lock()
	defer aw.mu.Unlock()

	// Close may have run while we waited for mu.
	if aw.IsClosed() {
		return ErrWriterClosed
	}

	if len(aw.buffer)+len(data) >= aw.config.BufferSize {
		if err := aw.waitReady(ctx); err != nil {
			return err
		}
	}

	aw.buffer = append(aw.buffer, data...)
	for len(aw.buffer) >= aw.config.BufferSize {
		chunk := make([]byte, aw.config.BufferSize)
		copy(chunk, aw.buffer)
		aw.buffer = append(aw.buffer[:0], aw.buffer[aw.config.BufferSize:]...)
		aw.enqueue(chunk)
	}

	aw.updateStats(func(s *Stats) {
		s.WriteCount++
	})
	return nil
}

// Flush implements AsyncWriter.Flush.
func (aw *asyncWriter) Flush(ctx context.Context) error {
	if aw.IsClosed() {
		return ErrWriterClosed
	}
	return aw.flush(ctx)
}

func (aw *asyncWriter) flush(ctx context.Context) error {
	aw.mu.Lock()
	defer aw.mu.Unlock()

	if aw.IsClosed() {
		return ErrWriterClosed
	}

	if len(aw.buffer) > 0 {
		// An explicit flush waits out backpressure even when BlockOnFull is off.
		if err := aw.writer.Ready().Wait(ctx); err != nil {
			return err
		}
		aw.enqueue(aw.takeBuffer())
	}

	if aw.last == nil {
		return aw.failure()
	}
	return aw.settle(ctx, aw.last)
}

// Close implements AsyncWriter.Close.
func (aw *asyncWriter) Close() error {
	if !atomic.CompareAndSwapInt32(&aw.closed, 0, 1) {
		return nil // Already closed
	}

	if aw.flusher != nil {
		<-aw.flusher.Stop().Done()
	}

	ctx, cancel := sfcontext.WithTimeoutOrCancel(context.Background(), aw.config.CloseTimeout)
	defer cancel()

	aw.mu.Lock()
	defer aw.mu.Unlock()

	if len(aw.buffer) > 0 {
		// Closing ignores backpressure: nothing else will be queued.
		aw.enqueue(aw.takeBuffer())
	}

	err := aw.settle(ctx, aw.writer.CloseWithErrorPropagation())
	if errors.Is(err, context.DeadlineExceeded) && sfcontext.IsTimedOut(ctx) {
		err = fmt.Errorf("close: %w", gferrors.ErrTimeout)
		aw.log.WithError(err).Debug("aborting stream")
		aw.writer.Abort(err)
	}
	return err
}

// settle waits for p and for the bookkeeping of every chunk queued before
// it. Callers hold mu.
func (aw *asyncWriter) settle(ctx context.Context, p *promise.Promise) error {
	select {
	case <-p.Done():
		aw.callbacks.Wait()
		return p.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats implements AsyncWriter.Stats.
func (aw *asyncWriter) Stats() Stats {
	aw.statsMu.RLock()
	stats := aw.stats
	aw.statsMu.RUnlock()

	aw.mu.Lock()
	stats.BufferUtilization = float64(len(aw.buffer)) / float64(aw.config.BufferSize)
	aw.mu.Unlock()

	if stats.FlushCount > 0 {
		stats.AverageWriteTime = time.Duration(int64(stats.TotalWriteTime) / stats.FlushCount)
	}
	stats.Stream = aw.stream.Stats()

	return stats
}

// IsClosed implements AsyncWriter.IsClosed.
func (aw *asyncWriter) IsClosed() bool {
	return atomic.LoadInt32(&aw.closed) != 0
}

// BufferSize implements AsyncWriter.BufferSize.
func (aw *asyncWriter) BufferSize() int {
	aw.mu.Lock()
	defer aw.mu.Unlock()
	return len(aw.buffer)
}

// BufferCapacity implements AsyncWriter.BufferCapacity.
func (aw *asyncWriter) BufferCapacity() int {
	return aw.config.BufferSize
}

// autoFlush queues the buffer on schedule. It never waits on backpressure;
// a tick during backpressure is skipped.
func (aw *asyncWriter) autoFlush() {
	aw.mu.Lock()
	defer aw.mu.Unlock()

	if len(aw.buffer) == 0 || aw.stream.Backpressure() || aw.failure() != nil {
		return
	}
	aw.enqueue(aw.takeBuffer())
}

// waitReady applies backpressure before queueing. Callers hold mu.
func (aw *asyncWriter) waitReady(ctx context.Context) error {
	ready := aw.writer.Ready()
	if ready.State() == promise.StateFulfilled {
		return nil
	}

	if !aw.config.BlockOnFull && ready.State() == promise.StatePending {
		aw.updateStats(func(s *Stats) {
			s.BufferOverflows++
		})
		if aw.config.Metrics != nil {
			aw.config.Metrics.WriterBufferOverflows.WithLabelValues(aw.config.Name).Inc()
		}
		if aw.config.OnBufferFull != nil {
			aw.config.OnBufferFull()
		}
		return ErrBufferFull
	}

	return ready.Wait(ctx)
}

func (aw *asyncWriter) takeBuffer() []byte {
	chunk := make([]byte, len(aw.buffer))
	copy(chunk, aw.buffer)
	aw.buffer = aw.buffer[:0]
	return chunk
}

// enqueue queues one chunk on the stream. Callers hold mu.
func (aw *asyncWriter) enqueue(chunk []byte) {
	start := time.Now()
	p := aw.writer.Write(chunk)
	aw.last = p

	aw.updateStats(func(s *Stats) {
		s.FlushCount++
	})
	if aw.config.Metrics != nil {
		aw.config.Metrics.WriterFlushes.WithLabelValues(aw.config.Name).Inc()
	}

	aw.callbacks.Add(1)
	p.Then(func(err error) {
		defer aw.callbacks.Done()

		duration := time.Since(start)
		if err != nil {
			aw.updateStats(func(s *Stats) {
				s.ErrorCount++
			})
			aw.log.WithError(err).Debug("chunk failed")
			if aw.config.OnError != nil {
				aw.config.OnError(err)
			}
			return
		}

		aw.updateStats(func(s *Stats) {
			s.BytesWritten += int64(len(chunk))
			s.TotalWriteTime += duration
			s.LastWriteTime = time.Now()
		})
		if aw.config.Metrics != nil {
			aw.config.Metrics.WriterBytesWritten.WithLabelValues(aw.config.Name).Add(float64(len(chunk)))
		}
		if aw.config.OnFlush != nil {
			aw.config.OnFlush(len(chunk), duration)
		}
	})
}

// failure returns the error the stream failed with, if any.
func (aw *asyncWriter) failure() error {
	closed := aw.writer.Closed()
	if closed.State() == promise.StateRejected {
		return closed.Err()
	}
	return nil
}

// updateStats safely updates statistics.
func (aw *asyncWriter) updateStats(updater func(*Stats)) {
	aw.statsMu.Lock()
	defer aw.statsMu.Unlock()
	updater(&aw.stats)
}
