// Package metrics provides Prometheus instrumentation for sinkflow components.
//
// A Registry bundles the metric vectors that writable streams and buffered
// writers update. Pass one through their Config to turn instrumentation on;
// a nil Registry leaves a component uninstrumented.
//
// # Quick Start
//
//	stream, _ := writable.NewWithConfig[[]byte](s, writable.Config[[]byte]{
//		Name:    "uploads",
//		Metrics: metrics.DefaultRegistry,
//	})
//
//	http.Handle("/metrics", promhttp.Handler())
//	log.Fatal(http.ListenAndServe(":8080", nil))
//
// # Custom Registry
//
// Use a custom Prometheus registry for isolation:
//
//	promRegistry := prometheus.NewRegistry()
//	reg := metrics.NewRegistryWithConfig(metrics.Config{
//		Enabled:   true,
//		Registry:  promRegistry,
//		Namespace: "myapp",
//		Labels:    prometheus.Labels{"region": "eu-west-1"},
//	})
//
// # Available Metrics
//
// Stream metrics, labelled with stream_name:
//
//   - sinkflow_stream_chunks_enqueued_total: chunks accepted by Write
//   - sinkflow_stream_chunks_written_total: chunks the sink acknowledged
//   - sinkflow_stream_queue_size: total size of queued chunks
//   - sinkflow_stream_desired_size: high-water mark minus queue size
//   - sinkflow_stream_state_transitions_total: transitions, labelled by target state
//   - sinkflow_stream_aborts_total: accepted abort requests
//   - sinkflow_backpressure_events_total: times a stream entered backpressure
//
// Sink metrics, labelled with stream_name and step (start, write, close, abort):
//
//   - sinkflow_sink_errors_total: failed sink steps
//   - sinkflow_sink_step_duration_seconds: time spent in sink steps
//
// Buffered writer metrics, labelled with writer_name:
//
//   - sinkflow_writer_flushes_total: chunks queued on the stream
//   - sinkflow_writer_bytes_written_total: bytes the sink acknowledged
//   - sinkflow_writer_buffer_overflows_total: writes rejected under backpressure
package metrics
