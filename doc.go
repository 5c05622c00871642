/*
Package sinkflow provides backpressure-aware writable streams for Go.

A producer writes chunks through a stream's writer; the stream queues them,
sizes them against a high-water mark and hands them to a sink one at a time.
Close, abort and sink failures follow one deterministic state machine.

Streaming (pkg/streaming):
  - promise: single-settlement completion handles
  - queue: FIFO queue that tracks the total size of its entries
  - writable: Stream, Controller, Writer and the Sink contract
  - sink: io.Writer, Redis, retry, fan-out, rate limit and tracing sinks
  - writer: buffered io.Writer-style facade over a byte stream

Support (pkg/common, pkg/metrics):
  - errors and validation shared by every package
  - Prometheus instrumentation for streams and writers

Example usage:

	import (
		"github.com/vnykmshr/sinkflow/pkg/streaming/sink"
		"github.com/vnykmshr/sinkflow/pkg/streaming/writable"
	)

	stream, _ := writable.New[[]byte](sink.FromWriter(file))
	w, _ := stream.GetWriter()

	w.Write([]byte("hello"))
	if err := w.Close().Wait(ctx); err != nil {
		log.Fatal(err)
	}

The sinkcat command (cmd/sinkcat) copies standard input into a file or a
Redis stream through a writable stream.
*/
package sinkflow
