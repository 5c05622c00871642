package writable

import (
	"errors"
	"fmt"

	gferrors "github.com/vnykmshr/sinkflow/pkg/common/errors"
	"github.com/vnykmshr/sinkflow/pkg/streaming/queue"
)

var (
	// ErrInvalidSize is the reason a stream errors with when a size function
	// returns a negative, NaN or infinite size.
	ErrInvalidSize = queue.ErrInvalidSize

	// ErrInvalidHighWaterMark is returned by the constructors for a negative or NaN high-water mark.
	ErrInvalidHighWaterMark = errors.New("invalid high water mark")

	// ErrLocked is returned by GetWriter when the stream already has a writer.
	ErrLocked = errors.New("stream is locked to a writer")

	// ErrLockedStreamAbort rejects Stream.Abort while a writer holds the lock.
	ErrLockedStreamAbort = errors.New("cannot abort a stream that is locked to a writer")

	// ErrAlreadyClosingOrClosed rejects writes and closes once a close was requested.
	ErrAlreadyClosingOrClosed = errors.New("stream is closing or closed")

	// ErrWriterReleased rejects operations on a writer after ReleaseLock.
	ErrWriterReleased = errors.New("writer has been released")

	// ErrAlreadyAborting rejects an abort while another abort is pending.
	ErrAlreadyAborting = errors.New("stream is already aborting")

	// ErrAbortedWhileErroring rejects an abort requested after the stream had
	// already started erroring. It is wrapped together with the stored error.
	ErrAbortedWhileErroring = errors.New("abort requested while stream was erroring")
)

// AbortError is the stored error of a stream that was aborted. It unwraps to
// the reason given to Abort.
type AbortError struct {
	Reason error
}

func (e *AbortError) Error() string {
	if e.Reason == nil {
		return "stream aborted"
	}
	return "stream aborted: " + e.Reason.Error()
}

func (e *AbortError) Unwrap() error {
	return e.Reason
}

const sinkModule = "sink"

// sinkFailure wraps an error returned by one of the sink's steps.
func sinkFailure(step string, err error) error {
	return gferrors.NewOperationError(sinkModule, step, err)
}

// IsSinkFailure reports whether err came from a failed sink step.
func IsSinkFailure(err error) bool {
	var opErr *gferrors.OperationError
	return errors.As(err, &opErr) && opErr.Module == sinkModule
}

func errWriteWhileClosing() error {
	return fmt.Errorf("cannot write to a closing stream: %w", ErrAlreadyClosingOrClosed)
}

func errWriteAfterClose() error {
	return fmt.Errorf("cannot write to a closed stream: %w", ErrAlreadyClosingOrClosed)
}

func errCloseAfterClose() error {
	return fmt.Errorf("cannot close a closed stream: %w", ErrAlreadyClosingOrClosed)
}

func errCloseRequested() error {
	return fmt.Errorf("close already requested: %w", ErrAlreadyClosingOrClosed)
}

func errReleased(op string) error {
	return fmt.Errorf("%s: %w", op, ErrWriterReleased)
}
