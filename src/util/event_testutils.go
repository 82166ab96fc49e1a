package util

import (
	"context"
	"reflect"
	"testing"
	"time"
)

// TestEventEmission asserts that trigger causes ev to emit an event that is
// deeply equal to event.
func TestEventEmission(t *testing.T, ev Eventer, event interface{}, trigger func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := ev.Events().Listen(ctx)
	trigger()
	for {
		select {
		case msg := <-l:
			t.Logf("%T %#v", msg, msg)
			if reflect.DeepEqual(msg, event) {
				return
			}
		case <-time.After(time.Second):
			t.Fatalf("Event %#v was not emitted", event)
		}
	}
}

// WaitForEvent reads from l until an event for which match returns true
// arrives and returns it.
func WaitForEvent(t *testing.T, l <-chan interface{}, match func(interface{}) bool) interface{} {
	t.Helper()
	for {
		select {
		case msg := <-l:
			if match(msg) {
				return msg
			}
		case <-time.After(time.Second):
			t.Fatal("Expected event was not emitted")
			return nil
		}
	}
}
