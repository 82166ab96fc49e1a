package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"mixtape/src/library"
	"mixtape/src/util"
)

// DefaultPollInterval is how often the position of backends that do not push
// it is read.
const DefaultPollInterval = 500 * time.Millisecond

var (
	// ErrStopped is returned by operations on a Controller that is not
	// running.
	ErrStopped = errors.New("controller is not running")
	// ErrNoSelection is returned by operations that need a selected track.
	ErrNoSelection = errors.New("no track selected")
)

// The Controller owns the playlist and the transport state and drives
// exactly one backend at a time.
//
// All state changes and backend calls happen on the goroutine that executes
// Run. The exported methods hand their work over to it and wait for the
// result, so they are safe for concurrent use.
type Controller struct {
	util.Emitter

	// PollInterval must be set before Run is called.
	PollInterval time.Duration

	store    *library.Store
	backends Backends

	inbox chan func()
	quit  chan struct{}

	// Only accessed from the Run goroutine.
	runCtx context.Context
	epoch  uint64

	lock      sync.RWMutex
	playlist  library.Playlist
	transport Transport
}

// NewController creates a controller for the playlist persisted in store.
// Exactly one direct and one embedded backend must be supplied.
func NewController(store *library.Store, backends ...Backend) (*Controller, error) {
	bs := Backends{}
	for _, b := range backends {
		if _, ok := bs[b.Kind()]; ok {
			return nil, fmt.Errorf("duplicate backend of kind %q", b.Kind())
		}
		if err := bs.Set(b); err != nil {
			return nil, err
		}
	}
	for _, kind := range []Kind{KindDirect, KindEmbedded} {
		if _, err := bs.ByKind(kind); err != nil {
			return nil, err
		}
	}
	return &Controller{
		PollInterval: DefaultPollInterval,
		store:        store,
		backends:     bs,
		inbox:        make(chan func()),
		quit:         make(chan struct{}),
		playlist:     library.Playlist{},
		transport:    idleTransport(),
	}, nil
}

// Run processes commands and backend events until the context is cancelled.
// It must be called exactly once.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.quit)
	c.runCtx = ctx

	direct := c.backends[KindDirect].Events().Listen(ctx)
	embedded := c.backends[KindEmbedded].Events().Listen(ctx)
	ticker := time.NewTicker(c.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-c.inbox:
			fn()
		case event := <-direct:
			c.handleBackendEvent(ctx, KindDirect, event)
		case event := <-embedded:
			c.handleBackendEvent(ctx, KindEmbedded, event)
		case <-ticker.C:
			c.poll(ctx)
		}
	}
}

// do executes fn on the Run goroutine and returns its error.
func (c *Controller) do(ctx context.Context, fn func() error) error {
	errc := make(chan error, 1)
	select {
	case c.inbox <- func() { errc <- fn() }:
	case <-c.quit:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-errc:
		return err
	case <-c.quit:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post schedules fn on the Run goroutine without waiting for it.
func (c *Controller) post(fn func()) {
	select {
	case c.inbox <- fn:
	case <-c.quit:
	}
}

// Transport returns a snapshot of the transport state.
func (c *Controller) Transport() Transport {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.transport
}

// Playlist returns a snapshot of the playlist.
func (c *Controller) Playlist() library.Playlist {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.playlist.Clone()
}

// Init loads the playlist from the store and selects the first track without
// starting playback.
func (c *Controller) Init(ctx context.Context) error {
	return c.do(ctx, func() error {
		pl, err := c.store.Load(ctx)
		if err != nil {
			if pl == nil {
				return err
			}
			log.Warnf("Could not persist the loaded playlist: %v", err)
		}
		log.Infof("Loaded %d tracks", len(pl))
		c.setPlaylist(pl)
		c.epoch++
		c.setTransport(idleTransport())
		if len(pl) > 0 {
			return c.selectAndLoad(ctx, 0, false)
		}
		return nil
	})
}

// SelectAndLoad selects the track at index and loads it into the backend
// for its type, stopping the other backend first. It is a no-op if the index
// is out of range.
func (c *Controller) SelectAndLoad(ctx context.Context, index int, autoplay bool) error {
	return c.do(ctx, func() error {
		return c.selectAndLoad(ctx, index, autoplay)
	})
}

// TogglePlayPause pauses the active backend if it is playing and starts it
// otherwise. If no track is selected the first one is played.
func (c *Controller) TogglePlayPause(ctx context.Context) error {
	return c.do(ctx, func() error {
		return c.togglePlayPause(ctx)
	})
}

// Play starts or resumes playback of the selected track.
func (c *Controller) Play(ctx context.Context) error {
	return c.do(ctx, func() error {
		return c.setPlaying(ctx, true)
	})
}

// Pause pauses playback of the selected track.
func (c *Controller) Pause(ctx context.Context) error {
	return c.do(ctx, func() error {
		return c.setPlaying(ctx, false)
	})
}

// Next plays the track after the selected one, wrapping around at the end of
// the playlist.
func (c *Controller) Next(ctx context.Context) error {
	return c.do(ctx, func() error {
		return c.next(ctx)
	})
}

// Previous plays the track before the selected one, wrapping around at the
// start of the playlist.
func (c *Controller) Previous(ctx context.Context) error {
	return c.do(ctx, func() error {
		n := len(c.playlist)
		if n == 0 {
			return nil
		}
		return c.selectAndLoad(ctx, PreviousIndex(c.transport.CurrentIndex, n), true)
	})
}

// Seek moves the position of the selected track to a fraction of its
// duration. It is a no-op if no track is selected or the duration is not
// known.
func (c *Controller) Seek(ctx context.Context, ratio float64) error {
	return c.do(ctx, func() error {
		return c.seek(ctx, ratio)
	})
}

// Add appends a track to the playlist. False is returned if the record is
// not a valid track.
func (c *Controller) Add(ctx context.Context, raw library.RawTrack) (bool, error) {
	var added bool
	err := c.do(ctx, func() error {
		pl, ok, err := c.store.Add(ctx, c.playlist, raw)
		if err != nil {
			return err
		}
		if ok {
			added = true
			c.setPlaylist(pl)
		}
		return nil
	})
	return added, err
}

// Remove removes the track at index from the playlist. If the selected track
// is removed, playback stops. It is a no-op if the index is out of range.
func (c *Controller) Remove(ctx context.Context, index int) error {
	return c.do(ctx, func() error {
		return c.remove(ctx, index)
	})
}

// RemoveCurrent removes the selected track and loads the track that takes its
// place without starting playback.
func (c *Controller) RemoveCurrent(ctx context.Context) error {
	return c.do(ctx, func() error {
		current := c.transport.CurrentIndex
		if current < 0 {
			return ErrNoSelection
		}
		if err := c.remove(ctx, current); err != nil {
			return err
		}
		if len(c.playlist) == 0 {
			return nil
		}
		return c.selectAndLoad(ctx, max(0, c.transport.CurrentIndex), false)
	})
}

// ClearAll empties the playlist and stops all backends.
func (c *Controller) ClearAll(ctx context.Context) error {
	return c.do(ctx, func() error {
		if err := c.store.Clear(ctx); err != nil {
			return err
		}
		c.setPlaylist(library.Playlist{})
		c.epoch++
		c.stopBackends(ctx, c.backends.All())
		c.setTransport(idleTransport())
		return nil
	})
}

func (c *Controller) selectAndLoad(ctx context.Context, index int, autoplay bool) error {
	track, ok := c.playlist.At(index)
	if !ok {
		return nil
	}
	target, err := c.backends.ByKind(KindFor(track.Type))
	if err != nil {
		return err
	}

	c.epoch++
	epoch := c.epoch
	c.stopBackends(ctx, c.backends.Others(target.Kind()))
	c.setTransport(Transport{
		CurrentIndex: index,
		Track:        track,
		State:        PlayStateLoading,
		Backend:      target.Kind(),
	})

	ready := target.Ready()
	if ready.Settled() {
		return c.finishLoad(ctx, epoch, index, track, target, autoplay, ready.Err())
	}

	log.WithField("backend", target.Kind()).Debugf("Waiting for backend to become ready")
	runCtx := c.runCtx
	go func() {
		err := ready.Wait(runCtx)
		c.post(func() {
			if err := c.finishLoad(runCtx, epoch, index, track, target, autoplay, err); err != nil {
				log.Warn(err)
			}
		})
	}()
	return nil
}

// finishLoad loads a track into its backend once it has become ready. Loads
// that were superseded by a newer selection are discarded.
func (c *Controller) finishLoad(ctx context.Context, epoch uint64, index int, track library.Track, target Backend, autoplay bool, readyErr error) error {
	if epoch != c.epoch {
		log.WithField("track", track.Name).Debugf("Discarding superseded load")
		return nil
	}

	err := readyErr
	if err == nil {
		err = target.Load(ctx, track, autoplay)
	}
	if err != nil {
		return c.failLoad(index, track, err)
	}

	state := PlayStatePaused
	if autoplay {
		state = PlayStatePlaying
	}
	c.updateTransport(func(t *Transport) {
		t.State = state
		t.Backend = target.Kind()
		t.Elapsed, t.Duration = 0, 0
	})
	return nil
}

// failLoad reports a track that could not be played and leaves the transport
// inactive on it.
func (c *Controller) failLoad(index int, track library.Track, err error) error {
	err = fmt.Errorf("could not load %q: %w", track.Name, err)
	c.Emit(ErrorEvent{Index: index, Track: track, Error: err})
	c.updateTransport(func(t *Transport) {
		t.State = PlayStatePaused
		t.Backend = KindNone
	})
	return err
}

func (c *Controller) stopBackends(ctx context.Context, backends []Backend) {
	for _, b := range backends {
		if err := b.Stop(ctx); err != nil {
			log.WithField("backend", b.Kind()).Warnf("Could not stop backend: %v", err)
		}
	}
}

// activeBackend returns the backend that owns playback of the selected
// track, or nil if there is none or it is not ready.
func (c *Controller) activeBackend() Backend {
	if c.transport.Backend == KindNone || c.transport.State == PlayStateLoading {
		return nil
	}
	b, err := c.backends.ByKind(c.transport.Backend)
	if err != nil {
		return nil
	}
	return b
}

func (c *Controller) togglePlayPause(ctx context.Context) error {
	if !c.transport.Selected() {
		if len(c.playlist) == 0 {
			return nil
		}
		return c.selectAndLoad(ctx, 0, true)
	}
	b := c.activeBackend()
	if b == nil {
		return c.selectAndLoad(ctx, c.transport.CurrentIndex, true)
	}
	state, err := b.State(ctx)
	if err != nil {
		return err
	}
	return c.setPlaying(ctx, state != PlayStatePlaying)
}

func (c *Controller) setPlaying(ctx context.Context, playing bool) error {
	if !c.transport.Selected() {
		return ErrNoSelection
	}
	b := c.activeBackend()
	if b == nil {
		if playing {
			return c.selectAndLoad(ctx, c.transport.CurrentIndex, true)
		}
		return nil
	}
	if playing {
		if err := b.Play(ctx); err != nil {
			return err
		}
		c.updateTransport(func(t *Transport) { t.State = PlayStatePlaying })
		return nil
	}
	if err := b.Pause(ctx); err != nil {
		return err
	}
	c.updateTransport(func(t *Transport) { t.State = PlayStatePaused })
	return nil
}

func (c *Controller) next(ctx context.Context) error {
	n := len(c.playlist)
	if n == 0 {
		return nil
	}
	return c.selectAndLoad(ctx, NextIndex(c.transport.CurrentIndex, n), true)
}

func (c *Controller) seek(ctx context.Context, ratio float64) error {
	b := c.activeBackend()
	if !c.transport.Selected() || b == nil {
		return nil
	}
	ratio = min(max(ratio, 0), 1)
	duration, err := b.Duration(ctx)
	if err != nil {
		return err
	}
	if duration <= 0 {
		return nil
	}
	if err := b.SeekToRatio(ctx, ratio); err != nil {
		return err
	}
	c.updateTransport(func(t *Transport) {
		t.Elapsed = time.Duration(ratio * float64(duration))
		t.Duration = duration
	})
	return nil
}

func (c *Controller) remove(ctx context.Context, index int) error {
	pl, ok, err := c.store.RemoveAt(ctx, c.playlist, index)
	if err != nil || !ok {
		return err
	}
	current := c.transport.CurrentIndex
	newIndex := AdjustIndexAfterRemove(index, current, len(pl))
	c.setPlaylist(pl)

	switch {
	case len(pl) == 0:
		c.epoch++
		c.stopBackends(ctx, c.backends.All())
		c.setTransport(idleTransport())
	case index == current:
		c.epoch++
		if b := c.activeBackend(); b != nil {
			c.stopBackends(ctx, []Backend{b})
		}
		c.setTransport(Transport{
			CurrentIndex: newIndex,
			Track:        pl[newIndex],
			State:        PlayStateStopped,
			Backend:      KindNone,
		})
	default:
		c.updateTransport(func(t *Transport) { t.CurrentIndex = newIndex })
	}
	return nil
}

func (c *Controller) handleBackendEvent(ctx context.Context, kind Kind, event interface{}) {
	// Only the active backend gets to influence the transport.
	if kind != c.transport.Backend || c.transport.State == PlayStateLoading {
		return
	}
	switch ev := event.(type) {
	case StartedEvent:
		c.updateTransport(func(t *Transport) { t.State = PlayStatePlaying })
	case PausedEvent:
		c.updateTransport(func(t *Transport) { t.State = PlayStatePaused })
	case TimeEvent:
		if ev.Duration <= 0 {
			return
		}
		c.updateTransport(func(t *Transport) {
			t.Elapsed, t.Duration = ev.Elapsed, ev.Duration
		})
	case EndedEvent:
		if ev.TrackID != c.transport.Track.ID {
			log.WithField("backend", kind).Debugf("Ignoring the end of %q, it is no longer loaded", ev.TrackID)
			return
		}
		log.WithField("backend", kind).Debugf("Track ended, advancing")
		if err := c.next(ctx); err != nil {
			log.Warnf("Could not advance to the next track: %v", err)
		}
	case FailedEvent:
		if ev.TrackID != c.transport.Track.ID {
			return
		}
		err := c.failLoad(c.transport.CurrentIndex, c.transport.Track, ev.Error)
		log.WithField("backend", kind).Warn(err)
	}
}

// poll reads the position of the embedded backend, which does not push it.
func (c *Controller) poll(ctx context.Context) {
	if c.transport.Track.Type != library.TypeVideo || c.transport.Backend != KindEmbedded {
		return
	}
	b := c.activeBackend()
	if !c.transport.Selected() || b == nil {
		return
	}
	duration, err := b.Duration(ctx)
	if err != nil || duration <= 0 {
		return
	}
	elapsed, err := b.Elapsed(ctx)
	if err != nil {
		return
	}
	c.updateTransport(func(t *Transport) {
		t.Elapsed, t.Duration = elapsed, duration
	})
}

func (c *Controller) setPlaylist(pl library.Playlist) {
	c.lock.Lock()
	c.playlist = pl
	c.lock.Unlock()
	c.Emit(PlaylistEvent{Playlist: pl.Clone()})
}

func (c *Controller) setTransport(t Transport) {
	c.updateTransport(func(tr *Transport) { *tr = t })
}

// updateTransport applies fn to the transport state and emits a
// TransportEvent if that changed anything.
func (c *Controller) updateTransport(fn func(*Transport)) {
	c.lock.Lock()
	old := c.transport
	fn(&c.transport)
	t := c.transport
	c.lock.Unlock()
	if t != old {
		c.Emit(TransportEvent{Transport: t})
	}
}
