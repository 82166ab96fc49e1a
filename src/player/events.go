package player

import (
	"time"

	"mixtape/src/library"
)

// StartedEvent is emitted by a backend when playback starts or resumes.
type StartedEvent struct{}

// PausedEvent is emitted by a backend when playback is paused.
type PausedEvent struct{}

// EndedEvent is emitted by a backend when the loaded track played to its
// end. It is not emitted when playback is stopped or another track is
// loaded.
type EndedEvent struct {
	TrackID string
}

// FailedEvent is emitted by a backend when a track it accepted in Load turns
// out to be unplayable.
type FailedEvent struct {
	TrackID string
	Error   error
}

// TimeEvent is emitted by backends that push their playback position.
type TimeEvent struct {
	Elapsed  time.Duration
	Duration time.Duration
}

// TransportEvent is emitted by the Controller when its transport state
// changes.
type TransportEvent struct {
	Transport Transport
}

// PlaylistEvent is emitted by the Controller when tracks are added or
// removed.
type PlaylistEvent struct {
	Playlist library.Playlist
}

// ErrorEvent is emitted by the Controller when a track could not be loaded.
// The controller remains usable.
type ErrorEvent struct {
	Index int
	Track library.Track
	Error error
}
