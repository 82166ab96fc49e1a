package library

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidTrack is returned when a raw record lacks the payload its type
// requires.
var ErrInvalidTrack = errors.New("invalid track")

// RawTrack is a track record as it is received from storage or a client,
// before normalization. Decoding is lenient: numeric values are accepted
// where strings are expected and values of other types are ignored.
type RawTrack struct {
	ID      string `json:"id,omitempty"`
	Type    string `json:"type,omitempty"`
	Name    string `json:"name,omitempty"`
	DataURL string `json:"dataUrl,omitempty"`
	URL     string `json:"url,omitempty"`
	VideoID string `json:"videoId,omitempty"`
	Source  string `json:"source,omitempty"`
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (raw *RawTrack) UnmarshalJSON(b []byte) error {
	var fields map[string]interface{}
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	*raw = RawTrack{
		ID:      stringField(fields["id"]),
		Type:    stringField(fields["type"]),
		DataURL: stringField(fields["dataUrl"]),
		URL:     stringField(fields["url"]),
		VideoID: stringField(fields["videoId"]),
		Source:  stringField(fields["source"]),
	}
	// Only actual strings are accepted as a name.
	if name, ok := fields["name"].(string); ok {
		raw.Name = name
	}
	return nil
}

func stringField(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == 0 {
			return ""
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}

// Normalize converts a raw record into a canonical Track. The position is
// the index the track will occupy in its playlist and is used to generate a
// default name.
//
// The second return value is false if the record does not carry the
// payload required by its type.
func Normalize(raw RawTrack, position int) (Track, bool) {
	track := Track{
		ID:      raw.ID,
		Type:    ParseType(raw.Type),
		Name:    strings.TrimSpace(raw.Name),
		DataURL: raw.DataURL,
		URL:     raw.URL,
		VideoID: raw.VideoID,
		Source:  raw.Source,
	}
	if !track.Valid() {
		return Track{}, false
	}
	if track.ID == "" {
		track.ID = uuid.New().String()
	}
	if track.Name == "" {
		track.Name = defaultName(track, position)
	}
	return track, true
}

func defaultName(track Track, position int) string {
	switch track.Type {
	case TypeVideo:
		return fmt.Sprintf("YouTube Track %d", position+1)
	case TypeRemote:
		if name := NameFromURL(track.URL); name != "" {
			return name
		}
		return fmt.Sprintf("Online Track %d", position+1)
	default:
		return fmt.Sprintf("MP3 Track %d", position+1)
	}
}

// NameFromURL returns the unescaped last path segment of an absolute URL, or
// an empty string if there is none.
func NameFromURL(str string) string {
	u, err := url.Parse(str)
	if err != nil || !u.IsAbs() {
		return ""
	}
	_, file := path.Split(u.EscapedPath())
	name, err := url.PathUnescape(file)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(name)
}
