// Package mpd implements the direct media backend on top of the Music Player
// Daemon.
package mpd

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/fhs/gompd/v2/mpd"
	log "github.com/sirupsen/logrus"

	"mixtape/src/library"
	"mixtape/src/player"
	"mixtape/src/util"
)

// timeUpdateInterval is how often TimeEvents are emitted while playing.
const timeUpdateInterval = 250 * time.Millisecond

// A PayloadResolver makes the inline payload of local tracks available at a
// URL that MPD can open.
type PayloadResolver interface {
	URL(track library.Track) (string, error)
}

// Backend plays direct media tracks through MPD. Only one track is queued at
// any time, so MPD stopping means the track has ended.
type Backend struct {
	util.Emitter

	// Running the idle routine on the same connection as the main connection
	// will fuck things up badly.
	watcher *mpd.Watcher

	network, addr, passwd string
	payloads              PayloadResolver
	ready                 *util.Promise
	closed                chan struct{}

	lock sync.Mutex
	// The MPD state as seen by the last status update.
	lastState string
	// The song ID that was last seen playing or paused.
	playingSong int
	// The song ID of the track we loaded. It is reset to -1 whenever playback
	// is stopped on purpose so the stop is not mistaken for the track ending.
	loadedSong int
	// The ID of the track behind loadedSong.
	loadedTrack string
}

var _ player.Backend = &Backend{}

// Connect connects to the MPD server at address. Local tracks are handed to
// MPD through the specified resolver.
func Connect(network, address string, mpdPassword *string, payloads PayloadResolver) (*Backend, error) {
	var passwd string
	if mpdPassword != nil {
		passwd = *mpdPassword
	}

	watcher, err := mpd.NewWatcher(network, address, passwd, "player")
	if err != nil {
		return nil, fmt.Errorf("could not connect to mpd at %s: %w", address, err)
	}

	b := &Backend{
		watcher:     watcher,
		network:     network,
		addr:        address,
		passwd:      passwd,
		payloads:    payloads,
		ready:       util.Settled(nil),
		closed:      make(chan struct{}),
		lastState:   "stop",
		playingSong: -1,
		loadedSong:  -1,
	}
	err = b.withMpd(context.Background(), func(ctx context.Context, mpdc *mpd.Client) error {
		status, err := mpdc.Status()
		if err != nil {
			return err
		}
		b.lastState = status["state"]
		return nil
	})
	if err != nil {
		watcher.Close()
		return nil, err
	}

	go b.eventLoop()
	go b.timeLoop()
	return b, nil
}

// Close stops watching MPD. The backend must not be used afterwards.
func (b *Backend) Close() error {
	close(b.closed)
	return b.watcher.Close()
}

func (b *Backend) withMpd(ctx context.Context, fn func(context.Context, *mpd.Client) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	client, err := mpd.DialAuthenticated(b.network, b.addr, b.passwd)
	if err != nil {
		return err
	}
	defer client.Close()
	return fn(ctx, client)
}

func (b *Backend) eventLoop() {
	for {
		select {
		case <-b.closed:
			return
		case _, ok := <-b.watcher.Event:
			if !ok {
				return
			}
			b.update()
		case err, ok := <-b.watcher.Error:
			if !ok {
				return
			}
			log.WithField("backend", player.KindDirect).Errorf("MPD watcher: %v", err)
		}
	}
}

func (b *Backend) timeLoop() {
	ticker := time.NewTicker(timeUpdateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-b.closed:
			return
		case <-ticker.C:
		}
		b.lock.Lock()
		playing := b.lastState == "play"
		b.lock.Unlock()
		if !playing {
			continue
		}

		err := b.withMpd(context.Background(), func(ctx context.Context, mpdc *mpd.Client) error {
			status, err := mpdc.Status()
			if err != nil {
				return err
			}
			if duration := statusSeconds(status, "duration"); duration > 0 {
				b.Emit(player.TimeEvent{Elapsed: statusSeconds(status, "elapsed"), Duration: duration})
			}
			return nil
		})
		if err != nil {
			log.WithField("backend", player.KindDirect).Debugf("Could not read position: %v", err)
		}
	}
}

// update reads the player status after MPD signalled a change and emits the
// events it implies.
func (b *Backend) update() {
	var status mpd.Attrs
	err := b.withMpd(context.Background(), func(ctx context.Context, mpdc *mpd.Client) error {
		var err error
		status, err = mpdc.Status()
		return err
	})
	if err != nil {
		log.WithField("backend", player.KindDirect).Errorf("Could not read status: %v", err)
		return
	}

	state := status["state"]
	b.lock.Lock()
	if state != "stop" {
		b.playingSong = statusSongID(status)
	}
	events := transitionEvents(b.lastState, state, b.playingSong, b.loadedSong, b.loadedTrack)
	for _, ev := range events {
		if _, ok := ev.(player.EndedEvent); ok {
			b.loadedSong = -1
		}
	}
	b.lastState = state
	b.lock.Unlock()

	for _, ev := range events {
		b.Emit(ev)
	}
}

// transitionEvents returns the events implied by MPD's state changing from
// prev to cur. The track has ended if MPD stopped while playing the song we
// loaded, the ended event names loadedTrack.
func transitionEvents(prev, cur string, playingSong, loadedSong int, loadedTrack string) []interface{} {
	switch {
	case cur == "play" && prev != "play":
		return []interface{}{player.StartedEvent{}}
	case cur == "pause" && prev == "play":
		return []interface{}{player.PausedEvent{}}
	case cur == "stop" && prev != "stop" && loadedSong >= 0 && playingSong == loadedSong:
		return []interface{}{player.EndedEvent{TrackID: loadedTrack}}
	}
	return nil
}

func statusSongID(status mpd.Attrs) int {
	id, err := strconv.Atoi(status["songid"])
	if err != nil {
		return -1
	}
	return id
}

func statusSeconds(status mpd.Attrs, key string) time.Duration {
	f, err := strconv.ParseFloat(status[key], 64)
	if err != nil || f < 0 {
		return 0
	}
	return time.Duration(f * float64(time.Second))
}

func (b *Backend) setLoadedSong(id int, trackID string) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.loadedSong = id
	b.loadedTrack = trackID
}

// Kind implements the player.Backend interface.
func (b *Backend) Kind() player.Kind {
	return player.KindDirect
}

// Ready implements the player.Backend interface. The connection is verified
// by Connect, so the promise is settled from the start.
func (b *Backend) Ready() *util.Promise {
	return b.ready
}

// Load implements the player.Backend interface.
func (b *Backend) Load(ctx context.Context, track library.Track, autoplay bool) error {
	uri, err := b.uri(track)
	if err != nil {
		return err
	}
	return b.withMpd(ctx, func(ctx context.Context, mpdc *mpd.Client) error {
		b.setLoadedSong(-1, "")
		if err := mpdc.Clear(); err != nil {
			return err
		}
		id, err := mpdc.AddID(uri, -1)
		if err != nil {
			return err
		}
		b.setLoadedSong(id, track.ID)
		if autoplay {
			return mpdc.PlayID(id)
		}
		return nil
	})
}

func (b *Backend) uri(track library.Track) (string, error) {
	switch track.Type {
	case library.TypeRemote:
		return track.URL, nil
	case library.TypeLocal:
		if b.payloads == nil {
			return "", fmt.Errorf("local tracks are not supported without a payload server: %w", library.ErrInvalidTrack)
		}
		return b.payloads.URL(track)
	default:
		return "", fmt.Errorf("mpd can not play %q tracks: %w", track.Type, library.ErrInvalidTrack)
	}
}

// Play implements the player.Backend interface.
func (b *Backend) Play(ctx context.Context) error {
	return b.withMpd(ctx, func(ctx context.Context, mpdc *mpd.Client) error {
		status, err := mpdc.Status()
		if err != nil {
			return err
		}
		if status["state"] == "stop" {
			return mpdc.Play(0)
		}
		return mpdc.Pause(false)
	})
}

// Pause implements the player.Backend interface.
func (b *Backend) Pause(ctx context.Context) error {
	return b.withMpd(ctx, func(ctx context.Context, mpdc *mpd.Client) error {
		return mpdc.Pause(true)
	})
}

// Stop implements the player.Backend interface.
func (b *Backend) Stop(ctx context.Context) error {
	return b.withMpd(ctx, func(ctx context.Context, mpdc *mpd.Client) error {
		b.setLoadedSong(-1, "")
		return mpdc.Stop()
	})
}

// State implements the player.Backend interface.
func (b *Backend) State(ctx context.Context) (player.PlayState, error) {
	var state player.PlayState
	err := b.withMpd(ctx, func(ctx context.Context, mpdc *mpd.Client) error {
		status, err := mpdc.Status()
		if err != nil {
			return err
		}
		state = map[string]player.PlayState{
			"play":  player.PlayStatePlaying,
			"pause": player.PlayStatePaused,
			"stop":  player.PlayStateStopped,
		}[status["state"]]
		return nil
	})
	return state, err
}

// SeekToRatio implements the player.Backend interface.
func (b *Backend) SeekToRatio(ctx context.Context, ratio float64) error {
	return b.withMpd(ctx, func(ctx context.Context, mpdc *mpd.Client) error {
		status, err := mpdc.Status()
		if err != nil {
			return err
		}
		duration := statusSeconds(status, "duration")
		if duration <= 0 || status["state"] == "stop" {
			return nil
		}
		return mpdc.SeekCur(time.Duration(ratio*float64(duration)), false)
	})
}

// Elapsed implements the player.Backend interface.
func (b *Backend) Elapsed(ctx context.Context) (time.Duration, error) {
	return b.statusDuration(ctx, "elapsed")
}

// Duration implements the player.Backend interface.
func (b *Backend) Duration(ctx context.Context) (time.Duration, error) {
	return b.statusDuration(ctx, "duration")
}

func (b *Backend) statusDuration(ctx context.Context, key string) (time.Duration, error) {
	var d time.Duration
	err := b.withMpd(ctx, func(ctx context.Context, mpdc *mpd.Client) error {
		status, err := mpdc.Status()
		d = statusSeconds(status, key)
		return err
	})
	return d, err
}
