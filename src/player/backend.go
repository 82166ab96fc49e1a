package player

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mixtape/src/library"
	"mixtape/src/util"
)

// ErrBackendNotFound is returned when no backend of a requested kind is
// registered.
var ErrBackendNotFound = errors.New("backend not found")

// A Backend plays tracks of one or more types.
//
// Implementations publish StartedEvent, PausedEvent and EndedEvent, and
// FailedEvent for tracks that fail after Load returned. Ended and failed
// events carry the ID of the track they concern. Backends that are able to,
// publish TimeEvent while playing so their position does not have to be
// polled.
type Backend interface {
	util.Eventer

	Kind() Kind

	// Ready returns a promise that settles once the backend is able to play.
	// The same promise is returned on every call, a failed bootstrap is not
	// retried. Waiting on the promise starts the bootstrap if that has not
	// happened yet.
	Ready() *util.Promise

	// Load prepares the specified track for playback, replacing any track
	// that was loaded before. Playback starts right away if autoplay is set.
	Load(ctx context.Context, track library.Track, autoplay bool) error

	Play(ctx context.Context) error

	Pause(ctx context.Context) error

	// Stop halts playback completely. Calling Stop on a backend that has not
	// been bootstrapped yet is a no-op.
	Stop(ctx context.Context) error

	State(ctx context.Context) (PlayState, error)

	// SeekToRatio moves the playback position to a fraction of the duration
	// of the current track. It is a no-op while the duration is unknown.
	SeekToRatio(ctx context.Context, ratio float64) error

	Elapsed(ctx context.Context) (time.Duration, error)

	// Duration returns the length of the loaded track, or 0 if it is not
	// known yet.
	Duration(ctx context.Context) (time.Duration, error)
}

// A Backends set maps each kind to the backend that implements it.
type Backends map[Kind]Backend

// Set registers the backend under its kind, replacing any backend of the
// same kind.
func (bs Backends) Set(backend Backend) error {
	kind := backend.Kind()
	if kind != KindDirect && kind != KindEmbedded {
		return fmt.Errorf("invalid backend kind: %q", kind)
	}
	bs[kind] = backend
	return nil
}

// ByKind looks up a backend by its kind.
//
// If no backend is registered for the kind, ErrBackendNotFound is returned.
func (bs Backends) ByKind(kind Kind) (Backend, error) {
	if b, ok := bs[kind]; ok {
		return b, nil
	}
	return nil, fmt.Errorf("%w, no backend of kind %q", ErrBackendNotFound, kind)
}

// Others returns every backend except the one of the specified kind in a
// stable order.
func (bs Backends) Others(kind Kind) []Backend {
	var others []Backend
	for _, k := range []Kind{KindDirect, KindEmbedded} {
		if b, ok := bs[k]; ok && k != kind {
			others = append(others, b)
		}
	}
	return others
}

// All returns every registered backend in a stable order.
func (bs Backends) All() []Backend {
	return bs.Others(KindNone)
}
