package util

import (
	"context"
	"sync"
)

// listenerBacklog is the number of events a listener may lag behind before
// deliveries to it are handed off to a goroutine.
const listenerBacklog = 64

// An Eventer is a type that publishes its state changes through an Emitter.
type Eventer interface {
	Events() *Emitter
}

type listener struct {
	ch   chan interface{}
	done chan struct{}
}

// An Emitter fans events out to any number of listeners.
//
// The zero value is ready for use. Events are delivered to each listener in
// the order they were emitted as long as the listener keeps up with its
// backlog.
type Emitter struct {
	listeners map[<-chan interface{}]*listener
	lock      sync.Mutex
}

// Events implements the Eventer interface.
func (emitter *Emitter) Events() *Emitter {
	return emitter
}

// Emit broadcasts an event to all listeners.
func (emitter *Emitter) Emit(event interface{}) {
	emitter.lock.Lock()
	defer emitter.lock.Unlock()
	for _, l := range emitter.listeners {
		select {
		case l.ch <- event:
		default:
			go func(l *listener) {
				select {
				case l.ch <- event:
				case <-l.done:
				}
			}(l)
		}
	}
}

// Listen registers a new listener. The listener is removed once the context
// is cancelled. The returned channel is never closed, callers should select
// on their context as well.
func (emitter *Emitter) Listen(ctx context.Context) <-chan interface{} {
	l := &listener{
		ch:   make(chan interface{}, listenerBacklog),
		done: make(chan struct{}),
	}

	emitter.lock.Lock()
	if emitter.listeners == nil {
		emitter.listeners = map[<-chan interface{}]*listener{}
	}
	emitter.listeners[l.ch] = l
	emitter.lock.Unlock()

	go func() {
		<-ctx.Done()
		emitter.lock.Lock()
		defer emitter.lock.Unlock()
		// Signal any pending deliveries to abort.
		close(l.done)
		delete(emitter.listeners, l.ch)
	}()
	return l.ch
}

// NumListeners returns the number of currently registered listeners.
func (emitter *Emitter) NumListeners() int {
	emitter.lock.Lock()
	defer emitter.lock.Unlock()
	return len(emitter.listeners)
}
