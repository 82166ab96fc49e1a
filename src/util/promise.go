package util

import (
	"context"
	"sync"
)

// A Promise holds the outcome of an operation that runs at most once.
//
// Any number of goroutines may wait for the outcome. Once settled, the
// outcome never changes, a failed operation is not retried.
type Promise struct {
	fn   func() error
	once sync.Once
	done chan struct{}
	err  error
}

// NewPromise creates a promise for fn. The function is not invoked until
// Start is called.
func NewPromise(fn func() error) *Promise {
	return &Promise{fn: fn, done: make(chan struct{})}
}

// Settled creates a promise that is already settled with err.
func Settled(err error) *Promise {
	p := &Promise{done: make(chan struct{}), err: err}
	p.once.Do(func() {})
	close(p.done)
	return p
}

// Start runs the operation in a new goroutine. Calls after the first have no
// effect.
func (p *Promise) Start() *Promise {
	p.once.Do(func() {
		go func() {
			p.err = p.fn()
			close(p.done)
		}()
	})
	return p
}

// Done returns a channel that is closed once the operation has completed.
func (p *Promise) Done() <-chan struct{} {
	return p.done
}

// Settled reports whether the operation has completed.
func (p *Promise) Settled() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Err returns the outcome of the operation. It must only be called after
// Done is closed.
func (p *Promise) Err() error {
	return p.err
}

// Wait starts the operation if needed and blocks until it completes or the
// context is cancelled.
func (p *Promise) Wait(ctx context.Context) error {
	p.Start()
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
