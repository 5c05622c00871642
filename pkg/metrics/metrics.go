// Package metrics provides Prometheus instrumentation for sinkflow components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultNamespace is the metric namespace used when Config.Namespace is empty.
const DefaultNamespace = "sinkflow"

// Registry holds all metric instances for sinkflow components.
type Registry struct {
	// Writable stream metrics
	ChunksEnqueued   *prometheus.CounterVec
	ChunksWritten    *prometheus.CounterVec
	SinkErrors       *prometheus.CounterVec
	SinkStepDuration *prometheus.HistogramVec
	QueueSize        *prometheus.GaugeVec
	DesiredSize      *prometheus.GaugeVec
	StateTransitions *prometheus.CounterVec
	Aborts           *prometheus.CounterVec

	// Backpressure metrics
	BackpressureEvents *prometheus.CounterVec

	// Buffered writer metrics
	WriterFlushes         *prometheus.CounterVec
	WriterBytesWritten    *prometheus.CounterVec
	WriterBufferOverflows *prometheus.CounterVec
}

// DefaultRegistry is the default metrics registry used by sinkflow components.
var DefaultRegistry *Registry

func init() {
	DefaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	return NewRegistryWithConfig(Config{
		Enabled:   true,
		Registry:  reg,
		Namespace: DefaultNamespace,
	})
}

// NewRegistryWithConfig creates a metrics registry honouring the namespace and
// constant labels of config. It returns nil when config.Enabled is false; a
// nil registry turns instrumentation off wherever one is accepted.
func NewRegistryWithConfig(config Config) *Registry {
	if !config.Enabled {
		return nil
	}
	reg := config.Registry
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	ns := config.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}
	factory := promauto.With(reg)
	labels := config.Labels

	return &Registry{
		ChunksEnqueued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "stream",
				Name:        "chunks_enqueued_total",
				Help:        "Total number of chunks accepted by writable streams",
				ConstLabels: labels,
			},
			[]string{"stream_name"},
		),

		ChunksWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "stream",
				Name:        "chunks_written_total",
				Help:        "Total number of chunks the sink acknowledged",
				ConstLabels: labels,
			},
			[]string{"stream_name"},
		),

		SinkErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "sink",
				Name:        "errors_total",
				Help:        "Total number of failed sink steps",
				ConstLabels: labels,
			},
			[]string{"stream_name", "step"},
		),

		SinkStepDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   ns,
				Subsystem:   "sink",
				Name:        "step_duration_seconds",
				Help:        "Time spent in sink start, write, close and abort steps",
				Buckets:     prometheus.DefBuckets,
				ConstLabels: labels,
			},
			[]string{"stream_name", "step"},
		),

		QueueSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   "stream",
				Name:        "queue_size",
				Help:        "Total size of chunks queued but not yet written",
				ConstLabels: labels,
			},
			[]string{"stream_name"},
		),

		DesiredSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   "stream",
				Name:        "desired_size",
				Help:        "High-water mark minus queue size",
				ConstLabels: labels,
			},
			[]string{"stream_name"},
		),

		StateTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "stream",
				Name:        "state_transitions_total",
				Help:        "Total number of stream state transitions by target state",
				ConstLabels: labels,
			},
			[]string{"stream_name", "state"},
		),

		Aborts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "stream",
				Name:        "aborts_total",
				Help:        "Total number of accepted abort requests",
				ConstLabels: labels,
			},
			[]string{"stream_name"},
		),

		BackpressureEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "backpressure",
				Name:        "events_total",
				Help:        "Total number of times a stream entered backpressure",
				ConstLabels: labels,
			},
			[]string{"stream_name"},
		),

		WriterFlushes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "writer",
				Name:        "flushes_total",
				Help:        "Total number of writer flushes",
				ConstLabels: labels,
			},
			[]string{"writer_name"},
		),

		WriterBytesWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "writer",
				Name:        "bytes_written_total",
				Help:        "Total bytes handed to the stream",
				ConstLabels: labels,
			},
			[]string{"writer_name"},
		),

		WriterBufferOverflows: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "writer",
				Name:        "buffer_overflows_total",
				Help:        "Total writes rejected because the stream signalled backpressure",
				ConstLabels: labels,
			},
			[]string{"writer_name"},
		),
	}
}
