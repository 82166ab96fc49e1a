package library

import (
	"fmt"
)

// Type discriminates the playable payload of a Track.
type Type string

const (
	// TypeLocal tracks carry their audio inline as a data URL.
	TypeLocal Type = "audio_local"
	// TypeRemote tracks reference an audio file over HTTP(S).
	TypeRemote Type = "audio_url"
	// TypeVideo tracks reference a video on the video platform by its ID.
	TypeVideo Type = "youtube"
)

// ParseType maps a raw type name to a Type. Unrecognized names are treated
// as local tracks.
func ParseType(str string) Type {
	switch Type(str) {
	case TypeVideo:
		return TypeVideo
	case TypeRemote:
		return TypeRemote
	default:
		return TypeLocal
	}
}

// Track holds a normalized playlist entry. Exactly one of DataURL, URL and
// VideoID is the playable payload, depending on the Type. For video tracks,
// URL holds the link the track was added from.
type Track struct {
	ID      string `json:"id"`
	Type    Type   `json:"type"`
	Name    string `json:"name"`
	DataURL string `json:"dataUrl"`
	URL     string `json:"url"`
	VideoID string `json:"videoId"`
	Source  string `json:"source"`
}

// Valid reports whether the payload required by the track's type is present.
func (track Track) Valid() bool {
	switch track.Type {
	case TypeVideo:
		return track.VideoID != ""
	case TypeRemote:
		return track.URL != ""
	case TypeLocal:
		return track.DataURL != ""
	}
	return false
}

// Label returns the short tag shown next to a track in listings.
func (track Track) Label() string {
	switch {
	case track.Type == TypeVideo:
		return "YOUTUBE"
	case track.Source == "jukehost":
		return "JUKEHOST"
	case track.Type == TypeRemote:
		return "ONLINE"
	}
	return "MP3"
}

func (track Track) String() string {
	return fmt.Sprintf("%s [%s]", track.Name, track.Label())
}

// A Playlist is an ordered list of tracks, in playback order.
type Playlist []Track

// At returns the track at index i, or false if i is out of range.
func (pl Playlist) At(i int) (Track, bool) {
	if i < 0 || i >= len(pl) {
		return Track{}, false
	}
	return pl[i], true
}

// Clone returns a copy of the playlist that does not share storage.
func (pl Playlist) Clone() Playlist {
	if pl == nil {
		return nil
	}
	return append(Playlist(nil), pl...)
}
