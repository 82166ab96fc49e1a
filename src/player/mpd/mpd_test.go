package mpd

import (
	"errors"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/fhs/gompd/v2/mpd"

	"mixtape/src/library"
	"mixtape/src/player"
)

func connectForTesting(t *testing.T) *Backend {
	addr := os.Getenv("MIXTAPE_TEST_MPD")
	if addr == "" {
		t.Skip("MIXTAPE_TEST_MPD is not set")
	}
	b, err := Connect("tcp", addr, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func TestBackendImplementation(t *testing.T) {
	b := connectForTesting(t)
	url := os.Getenv("MIXTAPE_TEST_MPD_TRACK")
	if url == "" {
		t.Skip("MIXTAPE_TEST_MPD_TRACK is not set")
	}
	player.TestBackendImplementation(t, b, library.Track{ID: "test", Type: library.TypeRemote, Name: "test", URL: url})
}

func TestTransitionEvents(t *testing.T) {
	cases := []struct {
		prev, cur       string
		playing, loaded int
		expected        []interface{}
	}{
		{"stop", "play", 1, 1, []interface{}{player.StartedEvent{}}},
		{"pause", "play", 1, 1, []interface{}{player.StartedEvent{}}},
		{"play", "play", 1, 1, nil},
		{"play", "pause", 1, 1, []interface{}{player.PausedEvent{}}},
		{"stop", "pause", 1, 1, nil},
		{"play", "stop", 1, 1, []interface{}{player.EndedEvent{TrackID: "t1"}}},
		{"pause", "stop", 1, 1, []interface{}{player.EndedEvent{TrackID: "t1"}}},
		// Stopped on purpose.
		{"play", "stop", 1, -1, nil},
		// Stopped because another song replaced the one that was playing.
		{"play", "stop", 1, 2, nil},
		{"stop", "stop", 1, 1, nil},
	}
	for _, c := range cases {
		events := transitionEvents(c.prev, c.cur, c.playing, c.loaded, "t1")
		if !reflect.DeepEqual(events, c.expected) {
			t.Fatalf("%s -> %s (playing %d, loaded %d): exp %#v, got %#v", c.prev, c.cur, c.playing, c.loaded, c.expected, events)
		}
	}
}

func TestStatusParsing(t *testing.T) {
	status := mpd.Attrs{
		"state":    "play",
		"songid":   "12",
		"elapsed":  "61.500",
		"duration": "180.000",
	}
	if id := statusSongID(status); id != 12 {
		t.Fatalf("Unexpected song id: %d", id)
	}
	if d := statusSeconds(status, "elapsed"); d != 61500*time.Millisecond {
		t.Fatalf("Unexpected elapsed time: %v", d)
	}
	if d := statusSeconds(status, "duration"); d != 3*time.Minute {
		t.Fatalf("Unexpected duration: %v", d)
	}

	empty := mpd.Attrs{"state": "stop"}
	if id := statusSongID(empty); id != -1 {
		t.Fatalf("Unexpected song id: %d", id)
	}
	if d := statusSeconds(empty, "duration"); d != 0 {
		t.Fatalf("Unexpected duration: %v", d)
	}
}

type staticResolver string

func (r staticResolver) URL(track library.Track) (string, error) {
	return string(r) + track.ID, nil
}

func TestURI(t *testing.T) {
	b := &Backend{payloads: staticResolver("http://localhost/raw/")}
	if uri, err := b.uri(library.Track{Type: library.TypeRemote, URL: "https://example.com/a.mp3"}); err != nil || uri != "https://example.com/a.mp3" {
		t.Fatalf("Unexpected uri: %q, %v", uri, err)
	}
	if uri, err := b.uri(library.Track{ID: "x", Type: library.TypeLocal, DataURL: "data:,"}); err != nil || uri != "http://localhost/raw/x" {
		t.Fatalf("Unexpected uri: %q, %v", uri, err)
	}
	if _, err := b.uri(library.Track{Type: library.TypeVideo, VideoID: "x"}); !errors.Is(err, library.ErrInvalidTrack) {
		t.Fatalf("Expected ErrInvalidTrack, got %v", err)
	}

	b.payloads = nil
	if _, err := b.uri(library.Track{ID: "x", Type: library.TypeLocal, DataURL: "data:,"}); !errors.Is(err, library.ErrInvalidTrack) {
		t.Fatalf("Expected ErrInvalidTrack, got %v", err)
	}
}
