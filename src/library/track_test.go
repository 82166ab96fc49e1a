package library

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestNormalizeRejectsMissingPayload(t *testing.T) {
	rejects := []RawTrack{
		{},
		{Type: "youtube", URL: "https://youtu.be/abc"},
		{Type: "audio_url", VideoID: "abc"},
		{Type: "audio_local", URL: "https://example.com/a.mp3"},
		{Type: "something", URL: "https://example.com/a.mp3"},
	}
	for _, raw := range rejects {
		if track, ok := Normalize(raw, 0); ok {
			t.Fatalf("expected %#v to be rejected, got %#v", raw, track)
		}
	}
}

func TestNormalizeValid(t *testing.T) {
	valid := []RawTrack{
		{Type: "youtube", VideoID: "abc"},
		{Type: "audio_url", URL: "https://example.com/a.mp3"},
		{Type: "audio_local", DataURL: "data:audio/mpeg;base64,AAAA"},
		{Type: "", DataURL: "data:audio/mpeg;base64,AAAA"},
		{ID: "fixed", Type: "youtube", VideoID: "abc", Name: "  Some name  "},
	}
	for i, raw := range valid {
		track, ok := Normalize(raw, i)
		if !ok {
			t.Fatalf("expected %#v to be accepted", raw)
		}
		if !track.Valid() {
			t.Fatalf("normalized track is not valid: %#v", track)
		}
		if track.ID == "" {
			t.Fatalf("no id was generated for %#v", raw)
		}
		if track.Name == "" || track.Name != strings.TrimSpace(track.Name) {
			t.Fatalf("bad name: %q", track.Name)
		}
	}
}

func TestNormalizeKeepsID(t *testing.T) {
	track, _ := Normalize(RawTrack{ID: "fixed", Type: "youtube", VideoID: "abc"}, 0)
	if track.ID != "fixed" {
		t.Fatalf("unexpected id: %q", track.ID)
	}
	a, _ := Normalize(RawTrack{Type: "youtube", VideoID: "abc"}, 0)
	b, _ := Normalize(RawTrack{Type: "youtube", VideoID: "abc"}, 0)
	if a.ID == b.ID {
		t.Fatalf("generated ids are not unique: %q", a.ID)
	}
}

func TestNormalizeDefaultNames(t *testing.T) {
	cases := []struct {
		raw      RawTrack
		position int
		name     string
	}{
		{RawTrack{Type: "youtube", VideoID: "abc"}, 0, "YouTube Track 1"},
		{RawTrack{Type: "audio_url", URL: "https://example.com/music/My%20Song.mp3"}, 3, "My Song.mp3"},
		{RawTrack{Type: "audio_url", URL: "https://example.com/"}, 3, "Online Track 4"},
		{RawTrack{Type: "audio_local", DataURL: "data:,"}, 1, "MP3 Track 2"},
		{RawTrack{Type: "audio_local", DataURL: "data:,", Name: "   "}, 1, "MP3 Track 2"},
	}
	for _, c := range cases {
		track, ok := Normalize(c.raw, c.position)
		if !ok {
			t.Fatalf("expected %#v to be accepted", c.raw)
		}
		if track.Name != c.name {
			t.Fatalf("unexpected name for %#v: exp %q, got %q", c.raw, c.name, track.Name)
		}
	}
}

func TestRawTrackLenientDecode(t *testing.T) {
	var raw RawTrack
	input := `{"id": 42, "type": "youtube", "name": 7, "videoId": "abc", "extra": [1, 2]}`
	if err := json.Unmarshal([]byte(input), &raw); err != nil {
		t.Fatal(err)
	}
	if raw.ID != "42" {
		t.Fatalf("unexpected id: %q", raw.ID)
	}
	if raw.Name != "" {
		t.Fatalf("a non-string name was accepted: %q", raw.Name)
	}
	if raw.VideoID != "abc" {
		t.Fatalf("unexpected video id: %q", raw.VideoID)
	}

	if err := json.Unmarshal([]byte(`"track"`), &raw); err == nil {
		t.Fatalf("expected an error when decoding a non-object")
	}
}

func TestTrackJSONFields(t *testing.T) {
	track := Track{ID: "1", Type: TypeVideo, Name: "n", URL: "u", VideoID: "v", Source: "s"}
	b, err := json.Marshal(track)
	if err != nil {
		t.Fatal(err)
	}
	exp := `{"id":"1","type":"youtube","name":"n","dataUrl":"","url":"u","videoId":"v","source":"s"}`
	if string(b) != exp {
		t.Fatalf("unexpected encoding:\nexp %s\ngot %s", exp, b)
	}
}

func TestLabel(t *testing.T) {
	cases := []struct {
		track Track
		label string
	}{
		{Track{Type: TypeVideo, Source: "jukehost"}, "YOUTUBE"},
		{Track{Type: TypeRemote, Source: "jukehost"}, "JUKEHOST"},
		{Track{Type: TypeRemote, Source: "manual"}, "ONLINE"},
		{Track{Type: TypeLocal}, "MP3"},
	}
	for _, c := range cases {
		if l := c.track.Label(); l != c.label {
			t.Fatalf("unexpected label for %#v: exp %q, got %q", c.track, c.label, l)
		}
	}
}

func TestPlaylistAt(t *testing.T) {
	pl := Playlist{{ID: "a"}, {ID: "b"}}
	if track, ok := pl.At(1); !ok || track.ID != "b" {
		t.Fatalf("unexpected track: %#v, %v", track, ok)
	}
	for _, i := range []int{-1, 2} {
		if _, ok := pl.At(i); ok {
			t.Fatalf("index %d should be out of range", i)
		}
	}
}
