// Package mpv implements the embedded video backend with a single mpv
// process that is controlled over its JSON IPC socket. mpv resolves video
// links through its youtube-dl hook and only plays their audio.
package mpv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"mixtape/src/library"
	"mixtape/src/player"
	"mixtape/src/util"
)

// pauseObserverID identifies our observation of the pause property.
const pauseObserverID = 1

var errNotReady = errors.New("mpv is not running")

// Config controls how the mpv process is started.
type Config struct {
	// Binary is the mpv executable. Defaults to "mpv".
	Binary string
	// Socket is the path of the IPC socket. A path in the temporary
	// directory is used if empty.
	Socket string
	// YTDLFormat selects the stream mpv requests from the video platform.
	YTDLFormat string
	// Args are passed to mpv in addition to the required ones.
	Args []string
	// StartTimeout bounds how long the process may take to open its socket.
	StartTimeout time.Duration
}

// A Dialer returns a connection to a running mpv's IPC server.
type Dialer func(ctx context.Context) (io.ReadWriteCloser, error)

// Backend plays video tracks. The mpv process is started the first time the
// backend is waited on, one process serves all tracks.
type Backend struct {
	util.Emitter

	dial  Dialer
	ready *util.Promise
	conn  *ipcConn
	proc  *exec.Cmd

	lock    sync.Mutex
	loaded  bool
	paused  bool
	trackID string
}

var _ player.Backend = &Backend{}

// New creates a backend that starts mpv as configured.
func New(conf Config) *Backend {
	b := &Backend{}
	b.dial = b.spawn(conf)
	b.ready = util.NewPromise(b.bootstrap)
	return b
}

// NewWithDialer creates a backend that controls the mpv instance returned by
// dial instead of starting its own.
func NewWithDialer(dial Dialer) *Backend {
	b := &Backend{dial: dial}
	b.ready = util.NewPromise(b.bootstrap)
	return b
}

func (b *Backend) spawn(conf Config) Dialer {
	if conf.Binary == "" {
		conf.Binary = "mpv"
	}
	if conf.Socket == "" {
		conf.Socket = filepath.Join(os.TempDir(), fmt.Sprintf("mixtape-mpv-%d.sock", os.Getpid()))
	}
	if conf.StartTimeout <= 0 {
		conf.StartTimeout = 10 * time.Second
	}
	return func(ctx context.Context) (io.ReadWriteCloser, error) {
		os.Remove(conf.Socket)
		args := []string{
			"--idle=yes",
			"--no-video",
			"--no-terminal",
			"--input-ipc-server=" + conf.Socket,
		}
		if conf.YTDLFormat != "" {
			args = append(args, "--ytdl-format="+conf.YTDLFormat)
		}
		args = append(args, conf.Args...)

		cmd := exec.Command(conf.Binary, args...)
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("could not start %s: %w", conf.Binary, err)
		}
		b.proc = cmd
		log.WithField("pid", cmd.Process.Pid).Infof("Started %s", conf.Binary)

		ctx, cancel := context.WithTimeout(ctx, conf.StartTimeout)
		defer cancel()
		var d net.Dialer
		for {
			conn, err := d.DialContext(ctx, "unix", conf.Socket)
			if err == nil {
				return conn, nil
			}
			select {
			case <-ctx.Done():
				cmd.Process.Kill()
				cmd.Wait()
				return nil, fmt.Errorf("mpv did not open its socket: %w", err)
			case <-time.After(50 * time.Millisecond):
			}
		}
	}
}

func (b *Backend) bootstrap() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	conn, err := b.dial(ctx)
	if err != nil {
		return err
	}
	b.conn = newIPCConn(conn, b.handleEvent)
	if _, err := b.conn.Command(ctx, "observe_property", pauseObserverID, "pause"); err != nil {
		b.conn.Close()
		return fmt.Errorf("could not observe mpv: %w", err)
	}
	return nil
}

func (b *Backend) handleEvent(ev ipcEvent) {
	switch ev.Event {
	case "property-change":
		if ev.Name != "pause" {
			return
		}
		var paused bool
		if err := json.Unmarshal(ev.Data, &paused); err != nil {
			return
		}
		b.lock.Lock()
		changed := b.paused != paused
		b.paused = paused
		loaded := b.loaded
		b.lock.Unlock()
		if !changed || !loaded {
			return
		}
		if paused {
			b.Emit(player.PausedEvent{})
		} else {
			b.Emit(player.StartedEvent{})
		}

	case "end-file":
		if ev.Reason != "eof" && ev.Reason != "error" {
			return
		}
		b.lock.Lock()
		wasLoaded := b.loaded
		trackID := b.trackID
		b.loaded = false
		b.lock.Unlock()
		if !wasLoaded {
			return
		}
		if ev.Reason == "eof" {
			b.Emit(player.EndedEvent{TrackID: trackID})
			return
		}
		reason := ev.FileError
		if reason == "" {
			reason = "unknown error"
		}
		b.Emit(player.FailedEvent{
			TrackID: trackID,
			Error:   fmt.Errorf("mpv could not play the video: %s", reason),
		})
	}
}

// Close terminates the connection and the mpv process if it was started by
// this backend.
func (b *Backend) Close() error {
	if !b.ready.Settled() || b.ready.Err() != nil {
		return nil
	}
	b.conn.Command(context.Background(), "quit")
	err := b.conn.Close()
	if b.proc != nil {
		b.proc.Wait()
	}
	return err
}

func (b *Backend) command(ctx context.Context, args ...interface{}) (json.RawMessage, error) {
	if !b.ready.Settled() || b.ready.Err() != nil {
		return nil, errNotReady
	}
	return b.conn.Command(ctx, args...)
}

// Kind implements the player.Backend interface.
func (b *Backend) Kind() player.Kind {
	return player.KindEmbedded
}

// Ready implements the player.Backend interface.
func (b *Backend) Ready() *util.Promise {
	return b.ready
}

// Load implements the player.Backend interface. The pause state is set
// before the file is loaded so a cued track never starts to sound.
func (b *Backend) Load(ctx context.Context, track library.Track, autoplay bool) error {
	if track.Type != library.TypeVideo {
		return fmt.Errorf("mpv backend can not play %q tracks: %w", track.Type, library.ErrInvalidTrack)
	}
	b.lock.Lock()
	b.loaded = false
	b.lock.Unlock()

	if _, err := b.command(ctx, "set_property", "pause", !autoplay); err != nil {
		return err
	}
	if _, err := b.command(ctx, "loadfile", library.WatchURL(track.VideoID), "replace"); err != nil {
		return err
	}

	b.lock.Lock()
	b.loaded = true
	b.paused = !autoplay
	b.trackID = track.ID
	b.lock.Unlock()
	if autoplay {
		b.Emit(player.StartedEvent{})
	}
	return nil
}

// Play implements the player.Backend interface.
func (b *Backend) Play(ctx context.Context) error {
	_, err := b.command(ctx, "set_property", "pause", false)
	return err
}

// Pause implements the player.Backend interface.
func (b *Backend) Pause(ctx context.Context) error {
	_, err := b.command(ctx, "set_property", "pause", true)
	return err
}

// Stop implements the player.Backend interface.
func (b *Backend) Stop(ctx context.Context) error {
	if !b.ready.Settled() || b.ready.Err() != nil {
		return nil
	}
	b.lock.Lock()
	b.loaded = false
	b.lock.Unlock()
	_, err := b.command(ctx, "stop")
	return err
}

// State implements the player.Backend interface.
func (b *Backend) State(ctx context.Context) (player.PlayState, error) {
	b.lock.Lock()
	loaded := b.loaded
	b.lock.Unlock()
	if !loaded {
		return player.PlayStateStopped, nil
	}
	var paused bool
	if err := b.getProperty(ctx, "pause", &paused); err != nil {
		return player.PlayStateInvalid, err
	}
	if paused {
		return player.PlayStatePaused, nil
	}
	return player.PlayStatePlaying, nil
}

// SeekToRatio implements the player.Backend interface.
func (b *Backend) SeekToRatio(ctx context.Context, ratio float64) error {
	duration, err := b.Duration(ctx)
	if err != nil || duration <= 0 {
		return err
	}
	_, err = b.command(ctx, "seek", ratio*duration.Seconds(), "absolute")
	return err
}

// Elapsed implements the player.Backend interface.
func (b *Backend) Elapsed(ctx context.Context) (time.Duration, error) {
	return b.secondsProperty(ctx, "time-pos")
}

// Duration implements the player.Backend interface.
func (b *Backend) Duration(ctx context.Context) (time.Duration, error) {
	return b.secondsProperty(ctx, "duration")
}

func (b *Backend) secondsProperty(ctx context.Context, name string) (time.Duration, error) {
	var secs float64
	if err := b.getProperty(ctx, name, &secs); err != nil {
		if strings.Contains(err.Error(), errPropertyUnavailable) {
			return 0, nil
		}
		return 0, err
	}
	if secs < 0 {
		return 0, nil
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func (b *Backend) getProperty(ctx context.Context, name string, v interface{}) error {
	data, err := b.command(ctx, "get_property", name)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
