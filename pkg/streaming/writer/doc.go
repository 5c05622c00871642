/*
Package writer provides asynchronous buffered writing on top of a writable stream.

AsyncWriter collects small writes into chunks and queues each full chunk on a
writable.Stream. The stream's sink performs the I/O in the background, one
chunk at a time and in order; the stream's backpressure decides when Write
has to wait.

# Quick Start

	file, _ := os.Create("output.txt")
	w := writer.New(file)
	defer w.Close()

	w.WriteString("Hello, async world!")
	w.Flush(context.Background())

# Configuration

	config := writer.Config{
		BufferSize:    64 * 1024,   // chunk size
		HighWaterMark: 256 * 1024,  // queued bytes before backpressure
		FlushInterval: time.Second, // automatic flush
		BlockOnFull:   true,        // wait out backpressure
		MaxRetries:    3,           // retry failed chunks
	}

	w, err := writer.NewWithConfig(underlyingWriter, config)

FlushSchedule accepts a cron expression or descriptor instead of a fixed
interval:

	config.FlushSchedule = "@every 10s"
	config.FlushSchedule = "0 0 * * * *" // on the hour

# Sinks

Any writable.Sink of byte slices can take the place of an io.Writer:

	s, _ := sink.NewRedisSink(sink.RedisConfig{Redis: client, Key: "events"})
	w, err := writer.NewWithSink(s, writer.DefaultConfig())

# Backpressure Handling

When the queued bytes reach HighWaterMark, Write either blocks until the sink
catches up or fails with ErrBufferFull:

	config := writer.Config{
		BlockOnFull: false,
		OnBufferFull: func() {
			log.Println("sink is behind, dropping write")
		},
	}

# Monitoring

	config := writer.Config{
		OnFlush: func(bytes int, duration time.Duration) {
			log.Printf("wrote %d bytes in %v", bytes, duration)
		},
		OnError: func(err error) {
			log.Printf("write error: %v", err)
		},
		Metrics: metrics.DefaultRegistry,
	}

Stats reports the writer counters together with a snapshot of the stream:

	stats := w.Stats()
	fmt.Printf("written=%d queued=%d state=%s\n",
		stats.BytesWritten, stats.Stream.PendingWrites, stats.Stream.State)

# Failure

A chunk that still fails after its retries errors the stream. From then on
every Write, Flush and Close returns that error.

# Graceful Shutdown

Close queues the remaining buffer, closes the stream and waits for the sink
to close, at most CloseTimeout. On timeout the stream is aborted and Close
returns an error wrapping errors.ErrTimeout.

# Thread Safety

AsyncWriter is safe for concurrent use from multiple goroutines. Each Write
call is queued atomically, so bytes from one call are never interleaved with
another's.
*/
package writer
