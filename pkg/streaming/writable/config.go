package writable

import (
	"github.com/sirupsen/logrus"

	"github.com/vnykmshr/sinkflow/pkg/metrics"
)

// Config holds configuration options for a Stream.
type Config[T any] struct {
	// Strategy is the backpressure policy.
	// Default: high-water mark 1, every chunk has size 1
	Strategy *Strategy[T]

	// Name labels the stream in logs and metrics.
	// Default: "default"
	Name string

	// Logger receives debug logs for state transitions and sink failures.
	// Default: logrus.StandardLogger()
	Logger logrus.FieldLogger

	// Metrics enables Prometheus instrumentation when set.
	Metrics *metrics.Registry
}

// DefaultConfig returns a default configuration.
func DefaultConfig[T any]() Config[T] {
	return Config[T]{
		Name:   "default",
		Logger: logrus.StandardLogger(),
	}
}
