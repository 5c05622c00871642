// Package promise provides a single-settlement completion handle.
//
// A Promise starts Pending and moves to Fulfilled or Rejected exactly once.
// Settling it a second time is a programming error and panics with
// ErrAlreadySettled, the same way closing a closed channel panics.
//
// Callers observe a promise by selecting on Done, by calling Wait, or by
// registering a continuation with Then. Continuations never run on the
// goroutine that settles the promise, so code holding a lock may settle
// promises without calling back into user code.
package promise

import (
	"context"
	"errors"
	"sync"
)

// ErrAlreadySettled is the panic value used when a settled promise is settled again.
var ErrAlreadySettled = errors.New("promise already settled")

// ErrRejected is the reason recorded when a promise is rejected with a nil error.
var ErrRejected = errors.New("promise rejected")

// State is the settlement state of a Promise.
type State int

const (
	// StatePending means the promise has not been settled yet.
	StatePending State = iota

	// StateFulfilled means the promise was resolved successfully.
	StateFulfilled

	// StateRejected means the promise was rejected with an error.
	StateRejected
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateFulfilled:
		return "fulfilled"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Promise is a three-state completion cell.
type Promise struct {
	mu        sync.Mutex
	state     State
	err       error
	done      chan struct{}
	callbacks []func(error)
	handled   bool
}

// New returns a pending promise.
func New() *Promise {
	return &Promise{done: make(chan struct{})}
}

// Resolved returns a promise that is already fulfilled.
func Resolved() *Promise {
	p := New()
	p.Resolve()
	return p
}

// Rejected returns a promise that is already rejected with err.
func Rejected(err error) *Promise {
	p := New()
	p.Reject(err)
	return p
}

// Resolve fulfills the promise. It panics if the promise is already settled.
func (p *Promise) Resolve() {
	p.settle(StateFulfilled, nil)
}

// Reject rejects the promise with err. A nil err is recorded as ErrRejected.
// It panics if the promise is already settled.
func (p *Promise) Reject(err error) {
	if err == nil {
		err = ErrRejected
	}
	p.settle(StateRejected, err)
}

func (p *Promise) settle(state State, err error) {
	p.mu.Lock()
	if p.state != StatePending {
		p.mu.Unlock()
		panic(ErrAlreadySettled)
	}
	p.state = state
	p.err = err
	callbacks := p.callbacks
	p.callbacks = nil
	close(p.done)
	p.mu.Unlock()

	for _, cb := range callbacks {
		go cb(err)
	}
}

// State returns the current settlement state.
func (p *Promise) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Done returns a channel that is closed once the promise settles.
func (p *Promise) Done() <-chan struct{} {
	return p.done
}

// Err returns the rejection reason, or nil if the promise is pending or fulfilled.
func (p *Promise) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateRejected {
		p.handled = true
	}
	return p.err
}

// Wait blocks until the promise settles or ctx is done. It returns the
// rejection reason, nil on fulfilment, or the context error.
func (p *Promise) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Then registers fn to run once with the rejection reason (nil when fulfilled).
// fn runs on its own goroutine, also when the promise is already settled.
func (p *Promise) Then(fn func(err error)) {
	p.mu.Lock()
	if p.state == StatePending {
		p.handled = true
		p.callbacks = append(p.callbacks, fn)
		p.mu.Unlock()
		return
	}
	err := p.err
	p.handled = true
	p.mu.Unlock()

	go fn(err)
}

// MarkHandled flags the promise as observed.
func (p *Promise) MarkHandled() {
	p.mu.Lock()
	p.handled = true
	p.mu.Unlock()
}

// Handled reports whether anyone has observed the outcome of the promise or
// it was explicitly marked as handled.
func (p *Promise) Handled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handled
}
