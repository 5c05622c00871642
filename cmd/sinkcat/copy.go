package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	sfcontext "github.com/vnykmshr/sinkflow/pkg/common/context"
	"github.com/vnykmshr/sinkflow/pkg/streaming/writable"
)

// copyStream reads r in chunks of at most chunkSize bytes and writes them to
// stream, pausing while the stream signals backpressure. It returns the
// number of bytes read once the stream has closed. Canceling ctx or a read
// error aborts the stream.
func copyStream(ctx context.Context, stream *writable.Stream[[]byte], r io.Reader, chunkSize int) (int64, error) {
	w, err := stream.GetWriter()
	if err != nil {
		return 0, err
	}

	var read int64
	buf := make([]byte, chunkSize)
	for {
		if reason := sfcontext.AbortReason(ctx); reason != nil {
			return read, abort(w, reason)
		}
		if err := w.Ready().Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return read, abort(w, context.Cause(ctx))
			}
			return read, err
		}

		n, rerr := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			// Failures surface through Ready and Close.
			w.Write(chunk)
			read += int64(n)
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return read, abort(w, fmt.Errorf("reading input: %w", rerr))
		}
	}

	if err := w.Close().Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return read, abort(w, context.Cause(ctx))
		}
		return read, err
	}
	return read, nil
}

// abort aborts the stream with reason and waits for the sink to clean up.
func abort(w *writable.Writer[[]byte], reason error) error {
	if err := w.Abort(reason).Wait(context.Background()); err != nil && !errors.Is(err, reason) {
		return fmt.Errorf("%w (abort: %v)", reason, err)
	}
	return reason
}
