// Package future provides a one-shot, re-armable result channel with
// two-phase publication: invoking the wrapped functor captures its result
// without releasing waiters, and an explicit ready step publishes it. The
// split lets a scheduler run completion-side bookkeeping between computing
// a result and letting consumers observe it.
package future

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrAlreadyRetrieved is returned by Packaged.Future when the future for
// the current arming has already been handed out.
var ErrAlreadyRetrieved = errors.New("future already retrieved")

// PanicError wraps a value recovered from a panicking functor.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("functor panicked: %v", e.Value)
}

// cell is one execution's result slot. Futures hold the cell they were
// issued against, so re-arming the packaged functor never disturbs an
// outstanding future.
type cell[R any] struct {
	done chan struct{}
	val  R
	err  error
}

// Future is the consumer handle to a single execution's result.
type Future[R any] struct {
	c *cell[R]
}

// Get blocks until the result is published or ctx is done. A published
// failure is returned as the error; a cancelled wait returns the context's
// cause.
func (f *Future[R]) Get(ctx context.Context) (R, error) {
	select {
	case <-f.c.done:
		return f.c.val, f.c.err
	case <-ctx.Done():
		var zero R
		return zero, context.Cause(ctx)
	}
}

// Done returns a channel closed when the result is published.
func (f *Future[R]) Done() <-chan struct{} { return f.c.done }

// Packaged wraps a functor so that its result lands in a cell consumable
// through a Future. The zero value is not usable; construct with New.
type Packaged[R any] struct {
	mu        sync.Mutex
	fn        func(context.Context) (R, error)
	cell      *cell[R]
	invoked   bool
	retrieved bool
}

// New creates an armed Packaged around fn.
func New[R any](fn func(context.Context) (R, error)) *Packaged[R] {
	return &Packaged[R]{
		fn:   fn,
		cell: &cell[R]{done: make(chan struct{})},
	}
}

// Future returns the consumer handle for the current arming. At most one
// future may be retrieved per arming; further calls return
// ErrAlreadyRetrieved.
func (p *Packaged[R]) Future() (*Future[R], error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.retrieved {
		return nil, ErrAlreadyRetrieved
	}
	p.retrieved = true
	return &Future[R]{c: p.cell}, nil
}

// InvokeDelayed runs the functor and captures its value or failure in the
// cell without publishing: consumers blocked on Get stay blocked until
// SetReady(true). A panic in the functor is recovered into a *PanicError.
// The captured error is also returned, for callers that route failures
// onward. Invoking twice per arming is a state-machine violation.
func (p *Packaged[R]) InvokeDelayed(ctx context.Context) error {
	p.mu.Lock()
	if p.invoked {
		p.mu.Unlock()
		panic("future: packaged functor invoked twice without re-arming")
	}
	p.invoked = true
	fn, c := p.fn, p.cell
	p.mu.Unlock()

	func() {
		defer func() {
			if r := recover(); r != nil {
				c.err = &PanicError{Value: r}
			}
		}()
		c.val, c.err = fn(ctx)
	}()
	return c.err
}

// FailDelayed captures err as the execution's failure without running the
// functor, leaving the cell ready-pending like InvokeDelayed.
func (p *Packaged[R]) FailDelayed(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.invoked {
		panic("future: packaged functor invoked twice without re-arming")
	}
	p.invoked = true
	p.cell.err = err
}

// SetReady with ready=true publishes the captured result, releasing all
// waiters on the current arming's future. With ready=false it re-arms: a
// fresh cell is installed for the next execution and a new future becomes
// retrievable. Publishing before InvokeDelayed is a state-machine
// violation.
func (p *Packaged[R]) SetReady(ready bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ready {
		if !p.invoked {
			panic("future: published before the functor was invoked")
		}
		select {
		case <-p.cell.done:
		default:
			close(p.cell.done)
		}
		return
	}
	p.cell = &cell[R]{done: make(chan struct{})}
	p.invoked = false
	p.retrieved = false
}
