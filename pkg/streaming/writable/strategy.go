package writable

// DefaultHighWaterMark is the high-water mark used when no strategy is configured.
const DefaultHighWaterMark = 1

// SizeFunc computes the size of a chunk for backpressure accounting.
// It must be free of side effects and must not call back into the stream.
type SizeFunc[T any] func(chunk T) (float64, error)

// Strategy is the backpressure policy of a stream.
type Strategy[T any] struct {
	// HighWaterMark is the total queued size at which backpressure starts.
	// It must be non-negative and not NaN; +Inf disables backpressure.
	HighWaterMark float64

	// Size returns the size of a chunk. When nil every chunk counts as 1.
	Size SizeFunc[T]
}

// CountStrategy counts chunks: backpressure applies once highWaterMark chunks are queued.
func CountStrategy[T any](highWaterMark float64) *Strategy[T] {
	return &Strategy[T]{HighWaterMark: highWaterMark}
}

// ByteLengthStrategy sizes byte chunks by their length.
func ByteLengthStrategy(highWaterMark float64) *Strategy[[]byte] {
	return &Strategy[[]byte]{
		HighWaterMark: highWaterMark,
		Size: func(chunk []byte) (float64, error) {
			return float64(len(chunk)), nil
		},
	}
}
