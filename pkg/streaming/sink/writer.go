package sink

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	sfcontext "github.com/vnykmshr/sinkflow/pkg/common/context"
	"github.com/vnykmshr/sinkflow/pkg/common/validation"
	"github.com/vnykmshr/sinkflow/pkg/streaming/writable"
)

// WriterSink writes byte chunks to an io.Writer.
//
// When a write fails part way, the sink remembers how much of the chunk
// reached w. Retrying the same chunk, as the Retry decorator does, resumes
// after that prefix instead of writing it twice.
type WriterSink struct {
	w       io.Writer
	written atomic.Int64

	mu     sync.Mutex
	resume resumePoint
}

// resumePoint marks how far a failed chunk got.
type resumePoint struct {
	chunk  []byte
	offset int
}

func (r resumePoint) matches(chunk []byte) bool {
	return r.offset > 0 && len(chunk) == len(r.chunk) && &chunk[0] == &r.chunk[0]
}

var (
	_ writable.Sink[[]byte] = (*WriterSink)(nil)
	_ writable.Closer       = (*WriterSink)(nil)
	_ writable.Aborter      = (*WriterSink)(nil)
)

// FromWriter returns a sink that writes each chunk to w. If w is an
// io.Closer it is closed when the stream closes or aborts.
func FromWriter(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// NewWriterSink is FromWriter with validation.
func NewWriterSink(w io.Writer) (*WriterSink, error) {
	if err := validation.ValidateNotNil("sink", "writer", w); err != nil {
		return nil, err
	}
	return FromWriter(w), nil
}

// Write writes chunk in full. It gives up without writing once the stream's
// abort signal fires.
func (s *WriterSink) Write(ctx context.Context, chunk []byte, _ *writable.Controller[[]byte]) error {
	if reason := sfcontext.AbortReason(ctx); reason != nil {
		return reason
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	offset := 0
	if s.resume.matches(chunk) {
		offset = s.resume.offset
	}
	s.resume = resumePoint{}

	n, err := s.w.Write(chunk[offset:])
	s.written.Add(int64(n))
	if err == nil && n < len(chunk)-offset {
		err = io.ErrShortWrite
	}
	if err != nil {
		if offset += n; offset > 0 {
			s.resume = resumePoint{chunk: chunk, offset: offset}
		}
		return err
	}
	return nil
}

// Close closes the underlying writer if it is an io.Closer.
func (s *WriterSink) Close(context.Context) error {
	return s.closeWriter()
}

// Abort closes the underlying writer if it is an io.Closer.
func (s *WriterSink) Abort(context.Context, error) error {
	return s.closeWriter()
}

// BytesWritten returns the number of bytes written so far.
func (s *WriterSink) BytesWritten() int64 {
	return s.written.Load()
}

func (s *WriterSink) closeWriter() error {
	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
