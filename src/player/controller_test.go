package player

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"mixtape/src/library"
	"mixtape/src/storage"
	"mixtape/src/util"
)

var testPlaylist = library.Playlist{
	{ID: "a", Type: library.TypeRemote, Name: "a", URL: "https://example.com/a.mp3"},
	{ID: "b", Type: library.TypeVideo, Name: "b", VideoID: "bbb"},
	{ID: "c", Type: library.TypeLocal, Name: "c", DataURL: "data:audio/mpeg;base64,AAAA"},
}

type testRig struct {
	ctx      context.Context
	ctrl     *Controller
	store    *library.Store
	direct   *DummyBackend
	embedded *DummyBackend
	log      *CallLog
}

func newTestRig(t *testing.T, pl library.Playlist, embeddedReady *util.Promise) *testRig {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	store := library.NewStore(storage.NewMemory())
	if pl != nil {
		if err := store.Save(ctx, pl); err != nil {
			t.Fatal(err)
		}
	}
	if embeddedReady == nil {
		embeddedReady = util.Settled(nil)
	}
	log := &CallLog{}
	direct := NewDummyBackend(KindDirect, log)
	embedded := NewDummyBackendWithBootstrap(KindEmbedded, log, embeddedReady)

	ctrl, err := NewController(store, direct, embedded)
	if err != nil {
		t.Fatal(err)
	}
	ctrl.PollInterval = 10 * time.Millisecond
	go ctrl.Run(ctx)
	return &testRig{ctx: ctx, ctrl: ctrl, store: store, direct: direct, embedded: embedded, log: log}
}

func (rig *testRig) init(t *testing.T) {
	t.Helper()
	if err := rig.ctrl.Init(rig.ctx); err != nil {
		t.Fatal(err)
	}
	rig.log.Reset()
}

func (rig *testRig) expectIndex(t *testing.T, exp int) {
	t.Helper()
	if i := rig.ctrl.Transport().CurrentIndex; i != exp {
		t.Fatalf("Unexpected current index: %v != %v", exp, i)
	}
}

func (rig *testRig) expectCalls(t *testing.T, exp ...string) {
	t.Helper()
	if calls := rig.log.Calls(); !reflect.DeepEqual(calls, exp) {
		t.Fatalf("Unexpected backend calls:\nexp %v\ngot %v", exp, calls)
	}
}

func TestNewControllerRequiresBothBackends(t *testing.T) {
	store := library.NewStore(storage.NewMemory())
	if _, err := NewController(store, NewDummyBackend(KindDirect, nil)); !errors.Is(err, ErrBackendNotFound) {
		t.Fatalf("Expected ErrBackendNotFound, got %v", err)
	}
	if _, err := NewController(store, NewDummyBackend(KindDirect, nil), NewDummyBackend(KindDirect, nil)); err == nil {
		t.Fatalf("Expected an error for duplicate backends")
	}
}

func TestControllerInit(t *testing.T) {
	rig := newTestRig(t, testPlaylist, nil)
	if err := rig.ctrl.Init(rig.ctx); err != nil {
		t.Fatal(err)
	}

	tr := rig.ctrl.Transport()
	if tr.CurrentIndex != 0 || tr.State != PlayStatePaused || tr.Backend != KindDirect {
		t.Fatalf("Unexpected transport after init: %#v", tr)
	}
	if !reflect.DeepEqual(rig.ctrl.Playlist(), testPlaylist) {
		t.Fatalf("Unexpected playlist: %#v", rig.ctrl.Playlist())
	}
	rig.expectCalls(t, "embedded.stop", "direct.load")
}

func TestControllerInitEmpty(t *testing.T) {
	rig := newTestRig(t, nil, nil)
	rig.init(t)
	if tr := rig.ctrl.Transport(); tr != idleTransport() {
		t.Fatalf("Unexpected transport: %#v", tr)
	}
	rig.expectCalls(t)
}

func TestControllerBackendExclusivity(t *testing.T) {
	rig := newTestRig(t, testPlaylist, nil)
	rig.init(t)

	if err := rig.ctrl.SelectAndLoad(rig.ctx, 1, true); err != nil {
		t.Fatal(err)
	}
	rig.expectCalls(t, "direct.stop", "embedded.load", "embedded.play")
	if tr := rig.ctrl.Transport(); tr.Backend != KindEmbedded || tr.State != PlayStatePlaying {
		t.Fatalf("Unexpected transport: %#v", tr)
	}
	if state, _ := rig.direct.State(rig.ctx); state != PlayStateStopped {
		t.Fatalf("The direct backend was not stopped: %v", state)
	}

	rig.log.Reset()
	if err := rig.ctrl.SelectAndLoad(rig.ctx, 2, true); err != nil {
		t.Fatal(err)
	}
	rig.expectCalls(t, "embedded.stop", "direct.load", "direct.play")
	if rig.direct.Track().ID != "c" {
		t.Fatalf("Unexpected track loaded: %#v", rig.direct.Track())
	}
}

func TestControllerSelectOutOfRange(t *testing.T) {
	rig := newTestRig(t, testPlaylist, nil)
	rig.init(t)
	for _, i := range []int{-1, 3} {
		if err := rig.ctrl.SelectAndLoad(rig.ctx, i, true); err != nil {
			t.Fatal(err)
		}
	}
	rig.expectIndex(t, 0)
	rig.expectCalls(t)
}

func TestControllerNavigation(t *testing.T) {
	rig := newTestRig(t, testPlaylist, nil)
	rig.init(t)

	for _, exp := range []int{1, 2, 0, 1} {
		if err := rig.ctrl.Next(rig.ctx); err != nil {
			t.Fatal(err)
		}
		rig.expectIndex(t, exp)
		if tr := rig.ctrl.Transport(); tr.State != PlayStatePlaying {
			t.Fatalf("Next did not start playback: %v", tr.State)
		}
	}
	for _, exp := range []int{0, 2, 1} {
		if err := rig.ctrl.Previous(rig.ctx); err != nil {
			t.Fatal(err)
		}
		rig.expectIndex(t, exp)
	}
}

func TestControllerNavigationEmpty(t *testing.T) {
	rig := newTestRig(t, nil, nil)
	rig.init(t)
	if err := rig.ctrl.Next(rig.ctx); err != nil {
		t.Fatal(err)
	}
	if err := rig.ctrl.Previous(rig.ctx); err != nil {
		t.Fatal(err)
	}
	rig.expectIndex(t, -1)
	rig.expectCalls(t)
}

func TestControllerAutoAdvance(t *testing.T) {
	rig := newTestRig(t, testPlaylist, nil)
	rig.init(t)

	l := rig.ctrl.Listen(rig.ctx)
	rig.direct.End()
	util.WaitForEvent(t, l, func(event interface{}) bool {
		ev, ok := event.(TransportEvent)
		return ok && ev.Transport.CurrentIndex == 1 && ev.Transport.State == PlayStatePlaying
	})

	// The direct backend is no longer active, so its events are ignored.
	rig.direct.End()
	time.Sleep(50 * time.Millisecond)
	rig.expectIndex(t, 1)
}

func TestControllerTogglePlayPause(t *testing.T) {
	rig := newTestRig(t, nil, nil)
	rig.init(t)
	for _, track := range testPlaylist {
		if ok, err := rig.ctrl.Add(rig.ctx, library.RawTrack{Type: string(track.Type), URL: track.URL, VideoID: track.VideoID, DataURL: track.DataURL}); err != nil || !ok {
			t.Fatalf("Could not add track: %v, %v", ok, err)
		}
	}
	rig.expectIndex(t, -1)

	for _, exp := range []PlayState{PlayStatePlaying, PlayStatePaused, PlayStatePlaying} {
		if err := rig.ctrl.TogglePlayPause(rig.ctx); err != nil {
			t.Fatal(err)
		}
		if tr := rig.ctrl.Transport(); tr.State != exp || tr.CurrentIndex != 0 {
			t.Fatalf("Unexpected transport: %#v", tr)
		}
	}
	rig.expectCalls(t, "embedded.stop", "direct.load", "direct.play", "direct.pause", "direct.play")
}

func TestControllerTogglePlayPauseEmpty(t *testing.T) {
	rig := newTestRig(t, nil, nil)
	rig.init(t)
	if err := rig.ctrl.TogglePlayPause(rig.ctx); err != nil {
		t.Fatal(err)
	}
	rig.expectIndex(t, -1)
	rig.expectCalls(t)
}

func TestControllerBackendStateEvents(t *testing.T) {
	rig := newTestRig(t, testPlaylist, nil)
	rig.init(t)

	l := rig.ctrl.Listen(rig.ctx)
	rig.direct.Play(rig.ctx)
	util.WaitForEvent(t, l, func(event interface{}) bool {
		ev, ok := event.(TransportEvent)
		return ok && ev.Transport.State == PlayStatePlaying
	})
	rig.direct.Pause(rig.ctx)
	util.WaitForEvent(t, l, func(event interface{}) bool {
		ev, ok := event.(TransportEvent)
		return ok && ev.Transport.State == PlayStatePaused
	})
}

func TestControllerRemove(t *testing.T) {
	cases := []struct {
		current, removed int
		expIndex         int
	}{
		{current: 1, removed: 0, expIndex: 0},
		{current: 1, removed: 2, expIndex: 1},
		{current: 1, removed: 1, expIndex: 1},
		{current: 2, removed: 2, expIndex: 1},
	}
	for _, c := range cases {
		rig := newTestRig(t, testPlaylist, nil)
		rig.init(t)
		if err := rig.ctrl.SelectAndLoad(rig.ctx, c.current, false); err != nil {
			t.Fatal(err)
		}
		if err := rig.ctrl.Remove(rig.ctx, c.removed); err != nil {
			t.Fatal(err)
		}
		rig.expectIndex(t, c.expIndex)
		if len(rig.ctrl.Playlist()) != 2 {
			t.Fatalf("Unexpected playlist length: %d", len(rig.ctrl.Playlist()))
		}
		persisted, err := rig.store.Load(rig.ctx)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(persisted, rig.ctrl.Playlist()) {
			t.Fatalf("The removal was not persisted")
		}
		tr := rig.ctrl.Transport()
		if c.removed == c.current && (tr.State != PlayStateStopped || tr.Backend != KindNone) {
			t.Fatalf("Removing the selected track did not stop playback: %#v", tr)
		}
	}
}

func TestControllerRemoveLast(t *testing.T) {
	rig := newTestRig(t, testPlaylist[:1], nil)
	rig.init(t)
	if err := rig.ctrl.Remove(rig.ctx, 0); err != nil {
		t.Fatal(err)
	}
	if tr := rig.ctrl.Transport(); tr != idleTransport() {
		t.Fatalf("Unexpected transport: %#v", tr)
	}
	rig.expectCalls(t, "direct.stop", "embedded.stop")
}

func TestControllerRemoveCurrent(t *testing.T) {
	rig := newTestRig(t, testPlaylist, nil)
	rig.init(t)
	if err := rig.ctrl.SelectAndLoad(rig.ctx, 0, true); err != nil {
		t.Fatal(err)
	}
	rig.log.Reset()

	if err := rig.ctrl.RemoveCurrent(rig.ctx); err != nil {
		t.Fatal(err)
	}
	tr := rig.ctrl.Transport()
	if tr.CurrentIndex != 0 || tr.Track.ID != "b" || tr.State != PlayStatePaused || tr.Backend != KindEmbedded {
		t.Fatalf("Unexpected transport: %#v", tr)
	}
	rig.expectCalls(t, "direct.stop", "direct.stop", "embedded.load")
}

func TestControllerRemoveCurrentWithoutSelection(t *testing.T) {
	rig := newTestRig(t, nil, nil)
	rig.init(t)
	if err := rig.ctrl.RemoveCurrent(rig.ctx); !errors.Is(err, ErrNoSelection) {
		t.Fatalf("Expected ErrNoSelection, got %v", err)
	}
}

func TestControllerClearAll(t *testing.T) {
	rig := newTestRig(t, testPlaylist, nil)
	rig.init(t)
	if err := rig.ctrl.SelectAndLoad(rig.ctx, 1, true); err != nil {
		t.Fatal(err)
	}
	rig.log.Reset()

	if err := rig.ctrl.ClearAll(rig.ctx); err != nil {
		t.Fatal(err)
	}
	rig.expectCalls(t, "direct.stop", "embedded.stop")
	if tr := rig.ctrl.Transport(); tr != idleTransport() {
		t.Fatalf("Unexpected transport: %#v", tr)
	}
	if pl := rig.ctrl.Playlist(); len(pl) != 0 {
		t.Fatalf("Playlist was not cleared: %#v", pl)
	}
	if pl, _ := rig.store.Load(rig.ctx); len(pl) != 0 {
		t.Fatalf("The cleared playlist was not persisted: %#v", pl)
	}
}

func TestControllerLoadFailure(t *testing.T) {
	rig := newTestRig(t, testPlaylist, nil)
	rig.init(t)
	rig.embedded.LoadErr = errors.New("bootstrap failed")

	l := rig.ctrl.Listen(rig.ctx)
	if err := rig.ctrl.SelectAndLoad(rig.ctx, 1, true); err == nil {
		t.Fatalf("Expected an error")
	}
	ev := util.WaitForEvent(t, l, func(event interface{}) bool {
		_, ok := event.(ErrorEvent)
		return ok
	}).(ErrorEvent)
	if ev.Index != 1 || ev.Track.ID != "b" {
		t.Fatalf("Unexpected error event: %#v", ev)
	}
	if tr := rig.ctrl.Transport(); tr.CurrentIndex != 1 || tr.State != PlayStatePaused || tr.Backend != KindNone {
		t.Fatalf("Unexpected transport: %#v", tr)
	}

	// The controller must remain usable.
	if err := rig.ctrl.SelectAndLoad(rig.ctx, 2, true); err != nil {
		t.Fatal(err)
	}
	if tr := rig.ctrl.Transport(); tr.State != PlayStatePlaying || tr.Backend != KindDirect {
		t.Fatalf("Unexpected transport: %#v", tr)
	}
}

func TestControllerPlaybackFailure(t *testing.T) {
	rig := newTestRig(t, testPlaylist, nil)
	rig.init(t)
	if err := rig.ctrl.SelectAndLoad(rig.ctx, 1, true); err != nil {
		t.Fatal(err)
	}

	l := rig.ctrl.Listen(rig.ctx)
	rig.embedded.Fail(errors.New("video unavailable"))
	ev := util.WaitForEvent(t, l, func(event interface{}) bool {
		_, ok := event.(ErrorEvent)
		return ok
	}).(ErrorEvent)
	if ev.Index != 1 || ev.Track.ID != "b" || ev.Error == nil {
		t.Fatalf("Unexpected error event: %#v", ev)
	}
	util.WaitForEvent(t, l, func(event interface{}) bool {
		ev, ok := event.(TransportEvent)
		return ok && ev.Transport.Backend == KindNone
	})
	if tr := rig.ctrl.Transport(); tr.CurrentIndex != 1 || tr.State != PlayStatePaused || tr.Backend != KindNone {
		t.Fatalf("Unexpected transport: %#v", tr)
	}

	// The backend is no longer active, a repeated report is ignored.
	rig.embedded.Fail(errors.New("video unavailable"))
	time.Sleep(50 * time.Millisecond)
	for len(l) > 0 {
		if _, ok := (<-l).(ErrorEvent); ok {
			t.Fatalf("The failure was reported twice")
		}
	}

	// Toggling retries the track.
	if err := rig.ctrl.TogglePlayPause(rig.ctx); err != nil {
		t.Fatal(err)
	}
	if tr := rig.ctrl.Transport(); tr.State != PlayStatePlaying || tr.Backend != KindEmbedded {
		t.Fatalf("Unexpected transport: %#v", tr)
	}
}

func TestControllerIgnoresEndOfReplacedTrack(t *testing.T) {
	rig := newTestRig(t, testPlaylist, nil)
	rig.init(t)
	if err := rig.ctrl.SelectAndLoad(rig.ctx, 2, true); err != nil {
		t.Fatal(err)
	}

	// Track a was replaced on the same backend before its end was handled.
	rig.direct.Emit(EndedEvent{TrackID: "a"})
	rig.direct.Emit(FailedEvent{TrackID: "a", Error: errors.New("late")})
	time.Sleep(50 * time.Millisecond)
	if tr := rig.ctrl.Transport(); tr.CurrentIndex != 2 || tr.State != PlayStatePlaying || tr.Backend != KindDirect {
		t.Fatalf("Unexpected transport: %#v", tr)
	}

	l := rig.ctrl.Listen(rig.ctx)
	rig.direct.End()
	util.WaitForEvent(t, l, func(event interface{}) bool {
		ev, ok := event.(TransportEvent)
		return ok && ev.Transport.CurrentIndex == 0 && ev.Transport.State == PlayStatePlaying
	})
}

func TestControllerBootstrapFailure(t *testing.T) {
	ready := util.Settled(errors.New("no runtime"))
	rig := newTestRig(t, testPlaylist, ready)
	rig.init(t)

	if err := rig.ctrl.SelectAndLoad(rig.ctx, 1, true); err == nil {
		t.Fatalf("Expected an error")
	}
	rig.expectCalls(t, "direct.stop")
	if tr := rig.ctrl.Transport(); tr.Backend != KindNone {
		t.Fatalf("Unexpected transport: %#v", tr)
	}
}

func TestControllerAsyncBootstrap(t *testing.T) {
	release := make(chan struct{})
	ready := util.NewPromise(func() error {
		<-release
		return nil
	})
	rig := newTestRig(t, testPlaylist, ready)
	rig.init(t)

	l := rig.ctrl.Listen(rig.ctx)
	if err := rig.ctrl.SelectAndLoad(rig.ctx, 1, true); err != nil {
		t.Fatal(err)
	}
	if tr := rig.ctrl.Transport(); tr.State != PlayStateLoading {
		t.Fatalf("Unexpected state while bootstrapping: %v", tr.State)
	}
	close(release)
	util.WaitForEvent(t, l, func(event interface{}) bool {
		ev, ok := event.(TransportEvent)
		return ok && ev.Transport.State == PlayStatePlaying && ev.Transport.Backend == KindEmbedded
	})
	rig.expectCalls(t, "direct.stop", "embedded.load", "embedded.play")
}

func TestControllerDiscardsSupersededLoad(t *testing.T) {
	release := make(chan struct{})
	ready := util.NewPromise(func() error {
		<-release
		return nil
	})
	rig := newTestRig(t, testPlaylist, ready)
	rig.init(t)

	if err := rig.ctrl.SelectAndLoad(rig.ctx, 1, true); err != nil {
		t.Fatal(err)
	}
	if err := rig.ctrl.SelectAndLoad(rig.ctx, 2, true); err != nil {
		t.Fatal(err)
	}
	close(release)
	<-ready.Done()
	time.Sleep(50 * time.Millisecond)

	for _, call := range rig.log.Calls() {
		if call == "embedded.load" {
			t.Fatalf("A superseded load was applied: %v", rig.log.Calls())
		}
	}
	if tr := rig.ctrl.Transport(); tr.CurrentIndex != 2 || tr.Backend != KindDirect || tr.State != PlayStatePlaying {
		t.Fatalf("Unexpected transport: %#v", tr)
	}
}

func TestControllerPoll(t *testing.T) {
	rig := newTestRig(t, testPlaylist, nil)
	rig.init(t)
	rig.embedded.TrackDuration = 0
	if err := rig.ctrl.SelectAndLoad(rig.ctx, 1, true); err != nil {
		t.Fatal(err)
	}

	// An unknown duration must be skipped.
	rig.embedded.SetPosition(30*time.Second, 0)
	time.Sleep(50 * time.Millisecond)
	if tr := rig.ctrl.Transport(); tr.Elapsed != 0 || tr.Duration != 0 {
		t.Fatalf("Poll did not skip an unknown duration: %#v", tr)
	}

	l := rig.ctrl.Listen(rig.ctx)
	rig.embedded.SetPosition(30*time.Second, time.Minute)
	util.WaitForEvent(t, l, func(event interface{}) bool {
		ev, ok := event.(TransportEvent)
		return ok && ev.Transport.Elapsed == 30*time.Second && ev.Transport.Duration == time.Minute
	})
}

func TestControllerPollOnlyEmbedded(t *testing.T) {
	rig := newTestRig(t, testPlaylist, nil)
	rig.init(t)

	// Positions of the direct backend are pushed, never polled.
	rig.direct.lock.Lock()
	rig.direct.elapsed = 10 * time.Second
	rig.direct.lock.Unlock()
	time.Sleep(50 * time.Millisecond)
	if tr := rig.ctrl.Transport(); tr.Elapsed != 0 {
		t.Fatalf("The direct backend was polled: %#v", tr)
	}

	l := rig.ctrl.Listen(rig.ctx)
	rig.direct.SetPosition(20*time.Second, time.Minute)
	util.WaitForEvent(t, l, func(event interface{}) bool {
		ev, ok := event.(TransportEvent)
		return ok && ev.Transport.Elapsed == 20*time.Second
	})
}

func TestControllerSeek(t *testing.T) {
	rig := newTestRig(t, testPlaylist, nil)
	if err := rig.ctrl.Seek(rig.ctx, 0.5); err != nil {
		t.Fatal(err)
	}
	rig.init(t)

	if err := rig.ctrl.Seek(rig.ctx, 0.5); err != nil {
		t.Fatal(err)
	}
	if tr := rig.ctrl.Transport(); tr.Elapsed != 90*time.Second {
		t.Fatalf("Unexpected elapsed time: %v", tr.Elapsed)
	}
	if err := rig.ctrl.Seek(rig.ctx, 4); err != nil {
		t.Fatal(err)
	}
	if elapsed, _ := rig.direct.Elapsed(rig.ctx); elapsed != 3*time.Minute {
		t.Fatalf("Ratio was not clamped: %v", elapsed)
	}
}

func TestControllerStopped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ctrl, err := NewController(library.NewStore(storage.NewMemory()), NewDummyBackend(KindDirect, nil), NewDummyBackend(KindEmbedded, nil))
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan struct{})
	go func() {
		ctrl.Run(ctx)
		close(done)
	}()
	cancel()
	<-done
	if err := ctrl.Next(context.Background()); !errors.Is(err, ErrStopped) {
		t.Fatalf("Expected ErrStopped, got %v", err)
	}
}

func TestControllerPlaylistEvent(t *testing.T) {
	rig := newTestRig(t, nil, nil)
	rig.init(t)
	util.TestEventEmission(t, rig.ctrl, PlaylistEvent{Playlist: library.Playlist{{ID: "x", Type: library.TypeVideo, Name: "YouTube Track 1", VideoID: "x"}}}, func() {
		if _, err := rig.ctrl.Add(rig.ctx, library.RawTrack{ID: "x", Type: "youtube", VideoID: "x"}); err != nil {
			t.Fatal(err)
		}
	})
}
