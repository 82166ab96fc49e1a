// Package player implements the playback controller and the contract for the
// backends it drives.
package player

import (
	"mixtape/src/library"
)

// PlayState is the transport state of a backend or the controller.
type PlayState string

// NamedPlaystate parses a state name. Unknown names yield PlayStateInvalid.
func NamedPlaystate(str string) PlayState {
	switch PlayState(str) {
	case PlayStatePlaying, PlayStatePaused, PlayStateStopped, PlayStateLoading:
		return PlayState(str)
	default:
		return PlayStateInvalid
	}
}

// Name returns the name of the state as accepted by NamedPlaystate.
func (state PlayState) Name() string {
	if state == PlayStateInvalid {
		return "invalid"
	}
	return string(state)
}

const (
	PlayStateInvalid PlayState = ""
	PlayStateStopped PlayState = "stopped"
	PlayStateLoading PlayState = "loading"
	PlayStatePlaying PlayState = "playing"
	PlayStatePaused  PlayState = "paused"
)

// Kind identifies one of the backends.
type Kind string

const (
	// KindNone indicates that no backend is active.
	KindNone Kind = "none"
	// KindDirect plays local and remote audio streams.
	KindDirect Kind = "direct"
	// KindEmbedded plays the audio of videos on the video platform.
	KindEmbedded Kind = "embedded"
)

// KindFor returns the kind of backend that plays tracks of type t.
func KindFor(t library.Type) Kind {
	switch t {
	case library.TypeVideo:
		return KindEmbedded
	default:
		return KindDirect
	}
}
