package player

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"mixtape/src/library"
	"mixtape/src/util"
)

// A CallLog records the calls made to one or more DummyBackends in order.
type CallLog struct {
	lock  sync.Mutex
	calls []string
}

func (l *CallLog) record(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	l.calls = append(l.calls, fmt.Sprintf(format, args...))
}

// Calls returns the recorded calls, formatted as "<kind>.<method>".
func (l *CallLog) Calls() []string {
	l.lock.Lock()
	defer l.lock.Unlock()
	return append([]string(nil), l.calls...)
}

// Reset forgets all recorded calls.
func (l *CallLog) Reset() {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.calls = nil
}

// DummyBackend is an in-memory backend for testing.
type DummyBackend struct {
	util.Emitter

	kind  Kind
	ready *util.Promise
	log   *CallLog

	lock     sync.Mutex
	track    library.Track
	state    PlayState
	elapsed  time.Duration
	duration time.Duration

	// LoadErr, if set, is returned by Load.
	LoadErr error
	// TrackDuration is reported as the duration of every loaded track.
	TrackDuration time.Duration
}

// NewDummyBackend creates a backend of the specified kind that is ready
// right away. Calls are recorded in log, which may be nil.
func NewDummyBackend(kind Kind, log *CallLog) *DummyBackend {
	return NewDummyBackendWithBootstrap(kind, log, util.Settled(nil))
}

// NewDummyBackendWithBootstrap creates a backend of the specified kind that
// becomes ready when the specified promise settles.
func NewDummyBackendWithBootstrap(kind Kind, log *CallLog, ready *util.Promise) *DummyBackend {
	return &DummyBackend{
		kind:          kind,
		ready:         ready,
		log:           log,
		state:         PlayStateStopped,
		TrackDuration: 3 * time.Minute,
	}
}

func (b *DummyBackend) Kind() Kind { return b.kind }

func (b *DummyBackend) Ready() *util.Promise { return b.ready }

func (b *DummyBackend) Load(ctx context.Context, track library.Track, autoplay bool) error {
	b.log.record("%s.load", b.kind)
	if b.LoadErr != nil {
		return b.LoadErr
	}
	b.lock.Lock()
	b.track = track
	b.elapsed = 0
	b.duration = b.TrackDuration
	b.state = PlayStatePaused
	b.lock.Unlock()
	if autoplay {
		return b.Play(ctx)
	}
	return nil
}

func (b *DummyBackend) Play(ctx context.Context) error {
	b.log.record("%s.play", b.kind)
	b.setState(PlayStatePlaying, StartedEvent{})
	return nil
}

func (b *DummyBackend) Pause(ctx context.Context) error {
	b.log.record("%s.pause", b.kind)
	b.setState(PlayStatePaused, PausedEvent{})
	return nil
}

func (b *DummyBackend) Stop(ctx context.Context) error {
	b.log.record("%s.stop", b.kind)
	b.lock.Lock()
	defer b.lock.Unlock()
	b.state = PlayStateStopped
	b.elapsed = 0
	return nil
}

func (b *DummyBackend) setState(state PlayState, event interface{}) {
	b.lock.Lock()
	changed := b.state != state
	b.state = state
	b.lock.Unlock()
	if changed {
		b.Emit(event)
	}
}

func (b *DummyBackend) State(ctx context.Context) (PlayState, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.state, nil
}

func (b *DummyBackend) SeekToRatio(ctx context.Context, ratio float64) error {
	b.log.record("%s.seek", b.kind)
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.duration <= 0 {
		return nil
	}
	b.elapsed = time.Duration(ratio * float64(b.duration))
	return nil
}

func (b *DummyBackend) Elapsed(ctx context.Context) (time.Duration, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.elapsed, nil
}

func (b *DummyBackend) Duration(ctx context.Context) (time.Duration, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.duration, nil
}

// Track returns the track that was loaded last.
func (b *DummyBackend) Track() library.Track {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.track
}

// SetPosition changes the playback position and emits a TimeEvent like
// backends that push their position do.
func (b *DummyBackend) SetPosition(elapsed, duration time.Duration) {
	b.lock.Lock()
	b.elapsed, b.duration = elapsed, duration
	b.lock.Unlock()
	if b.kind == KindDirect {
		b.Emit(TimeEvent{Elapsed: elapsed, Duration: duration})
	}
}

// End simulates the loaded track playing to its end.
func (b *DummyBackend) End() {
	b.lock.Lock()
	b.state = PlayStateStopped
	id := b.track.ID
	b.lock.Unlock()
	b.Emit(EndedEvent{TrackID: id})
}

// Fail simulates the loaded track turning out to be unplayable after it was
// loaded.
func (b *DummyBackend) Fail(err error) {
	b.lock.Lock()
	b.state = PlayStateStopped
	id := b.track.ID
	b.lock.Unlock()
	b.Emit(FailedEvent{TrackID: id, Error: err})
}

// TestBackendImplementation tests the implementation of the Backend
// interface using a track it is able to play.
func TestBackendImplementation(t *testing.T, b Backend, track library.Track) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := b.Ready().Wait(ctx); err != nil {
		t.Fatalf("Backend did not become ready: %v", err)
	}
	if KindFor(track.Type) != b.Kind() {
		t.Fatalf("Backend of kind %q can not play %q tracks", b.Kind(), track.Type)
	}

	t.Run("load", func(t *testing.T) {
		if err := b.Load(ctx, track, false); err != nil {
			t.Fatal(err)
		}
		state, err := b.State(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if state == PlayStatePlaying {
			t.Fatalf("Playback started without autoplay")
		}
	})
	t.Run("started_event", func(t *testing.T) {
		util.TestEventEmission(t, b, StartedEvent{}, func() {
			if err := b.Play(ctx); err != nil {
				t.Fatal(err)
			}
		})
		testBackendState(ctx, t, b, PlayStatePlaying)
	})
	t.Run("paused_event", func(t *testing.T) {
		util.TestEventEmission(t, b, PausedEvent{}, func() {
			if err := b.Pause(ctx); err != nil {
				t.Fatal(err)
			}
		})
		testBackendState(ctx, t, b, PlayStatePaused)
	})
	t.Run("seek", func(t *testing.T) {
		if err := b.SeekToRatio(ctx, 0.5); err != nil {
			t.Fatal(err)
		}
		if _, err := b.Elapsed(ctx); err != nil {
			t.Fatal(err)
		}
	})
	t.Run("stop", func(t *testing.T) {
		if err := b.Stop(ctx); err != nil {
			t.Fatal(err)
		}
		testBackendState(ctx, t, b, PlayStateStopped)
	})
	t.Run("autoplay", func(t *testing.T) {
		if err := b.Load(ctx, track, true); err != nil {
			t.Fatal(err)
		}
		testBackendState(ctx, t, b, PlayStatePlaying)
		if err := b.Stop(ctx); err != nil {
			t.Fatal(err)
		}
	})
}

func testBackendState(ctx context.Context, t *testing.T, b Backend, exp PlayState) {
	t.Helper()
	state, err := b.State(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if state != exp {
		t.Fatalf("Unexpected state: %v != %v", exp, state)
	}
}
