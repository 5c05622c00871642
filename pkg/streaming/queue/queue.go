// Package queue implements a FIFO that tracks the total size of its entries.
//
// The writable stream controller keeps its pending write records here and
// derives backpressure from TotalSize.
package queue

import (
	"errors"
	"fmt"

	"github.com/vnykmshr/sinkflow/pkg/common/validation"
)

// ErrInvalidSize is returned by Enqueue when size is negative, NaN or infinite.
var ErrInvalidSize = errors.New("invalid chunk size")

// ErrEmpty is returned by Dequeue and Peek on an empty queue.
var ErrEmpty = errors.New("queue is empty")

type entry[T any] struct {
	value T
	size  float64
}

// Queue is a FIFO of values paired with sizes. It is not safe for
// concurrent use; the owner serialises access.
type Queue[T any] struct {
	entries []entry[T]
	total   float64
}

// New creates an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

// Enqueue appends value with the given size.
func (q *Queue[T]) Enqueue(value T, size float64) error {
	if err := validation.ValidateFiniteNonNegative("queue", "size", size); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSize, err)
	}
	q.entries = append(q.entries, entry[T]{value: value, size: size})
	q.total += size
	return nil
}

// Dequeue removes and returns the oldest value.
func (q *Queue[T]) Dequeue() (T, error) {
	var zero T
	if len(q.entries) == 0 {
		return zero, ErrEmpty
	}

	e := q.entries[0]
	q.entries[0] = entry[T]{}
	q.entries = q.entries[1:]

	q.total -= e.size
	// Floating point drift can leave a tiny negative remainder.
	if q.total < 0 {
		q.total = 0
	}
	return e.value, nil
}

// Peek returns the oldest value without removing it.
func (q *Queue[T]) Peek() (T, error) {
	var zero T
	if len(q.entries) == 0 {
		return zero, ErrEmpty
	}
	return q.entries[0].value, nil
}

// Reset drops every entry and zeroes the total size.
func (q *Queue[T]) Reset() {
	q.entries = nil
	q.total = 0
}

// Len returns the number of queued entries.
func (q *Queue[T]) Len() int {
	return len(q.entries)
}

// TotalSize returns the sum of the sizes of all queued entries.
func (q *Queue[T]) TotalSize() float64 {
	return q.total
}
