package player

import (
	"encoding/json"
	"fmt"
	"time"

	"mixtape/src/library"
)

// Transport is the observable playback state of the Controller. It always
// reflects the active backend only.
type Transport struct {
	// CurrentIndex is the index of the selected track in the playlist, or -1
	// if no track is selected.
	CurrentIndex int
	// Track is the selected track. It is only meaningful if CurrentIndex is
	// not negative.
	Track    library.Track
	State    PlayState
	Backend  Kind
	Elapsed  time.Duration
	Duration time.Duration
}

func idleTransport() Transport {
	return Transport{
		CurrentIndex: -1,
		State:        PlayStateStopped,
		Backend:      KindNone,
	}
}

// Selected reports whether a track is selected.
func (t Transport) Selected() bool {
	return t.CurrentIndex >= 0
}

// Position returns the elapsed time as a fraction of the duration, or 0 if
// the duration is not known.
func (t Transport) Position() float64 {
	if t.Duration <= 0 {
		return 0
	}
	r := float64(t.Elapsed) / float64(t.Duration)
	if r > 1 {
		return 1
	}
	return r
}

// MarshalJSON implements the json.Marshaler interface. Inline payloads are
// left out.
func (t Transport) MarshalJSON() ([]byte, error) {
	var track *library.Track
	if t.Selected() {
		tr := t.Track
		tr.DataURL = ""
		track = &tr
	}
	return json.Marshal(struct {
		Current      int            `json:"current"`
		Track        *library.Track `json:"track"`
		State        string         `json:"state"`
		Backend      Kind           `json:"backend"`
		Elapsed      float64        `json:"elapsed"`
		Duration     float64        `json:"duration"`
		Position     float64        `json:"position"`
		ElapsedText  string         `json:"elapsedText"`
		DurationText string         `json:"durationText"`
	}{
		Current:      t.CurrentIndex,
		Track:        track,
		State:        t.State.Name(),
		Backend:      t.Backend,
		Elapsed:      t.Elapsed.Seconds(),
		Duration:     t.Duration.Seconds(),
		Position:     t.Position(),
		ElapsedText:  FormatTime(t.Elapsed),
		DurationText: FormatTime(t.Duration),
	})
}

// FormatTime formats a duration as minutes and seconds, e.g. "03:07".
// Negative durations are shown as "00:00".
func FormatTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
