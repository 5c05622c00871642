/*
Package sink provides ready-made sinks and sink decorators for writable
streams.

Destinations:

  - FromWriter writes byte chunks to an io.Writer.
  - Redis appends chunks to a Redis stream with XADD.

Decorators wrap another sink and forward its optional Start, Close and Abort
steps:

  - Retry retries failed writes and closes with avast/retry-go.
  - Multi fans every step out to several sinks concurrently.
  - RateLimit waits on a limiter such as *rate.Limiter before each write.
  - Traced records an OpenTelemetry span per step.

Decorators compose:

	limiter := rate.NewLimiter(rate.Limit(100), 100)
	s := sink.Traced(
		sink.RateLimit(sink.Retry(sink.FromWriter(f), sink.DefaultRetryConfig()), limiter, nil),
		otel.Tracer("sinkcat"),
	)
	stream, err := writable.New[[]byte](s)

The stream core never retries; wrapping a sink in Retry is how a caller opts
in.
*/
package sink
