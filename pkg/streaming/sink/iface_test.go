package sink

import "github.com/vnykmshr/sinkflow/pkg/streaming/writable"

//go:generate mockgen -source=iface_test.go -destination=mock_sink_test.go -package=sink

// byteSink is a byte sink with every optional step.
type byteSink interface {
	writable.Sink[[]byte]
	writable.Starter[[]byte]
	writable.Closer
	writable.Aborter
}
