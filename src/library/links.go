package library

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

var (
	ErrInvalidVideoLink = errors.New("not a valid video link")
	ErrInvalidAudioURL  = errors.New("the link must point to an .mp3 file over http or https")
)

var remoteAudioRe = regexp.MustCompile(`(?i)^https?://.+\.mp3(\?.*)?$`)

// IsRemoteAudioURL reports whether str is an HTTP(S) link to an MP3 file.
func IsRemoteAudioURL(str string) bool {
	return remoteAudioRe.MatchString(str)
}

// ParseVideoID extracts the video identifier from a link to the video
// platform. An empty string is returned for links that are not recognized.
//
// Recognized forms:
//
//	https://youtu.be/<id>
//	https://youtube.com/watch?v=<id>
//	https://youtube.com/shorts/<id>
//	https://youtube.com/embed/<id>
//
// The m. and music. subdomains are accepted as well as a leading www.
func ParseVideoID(input string) string {
	u, err := url.Parse(strings.TrimSpace(input))
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")

	switch host {
	case "youtu.be":
		return strings.TrimPrefix(u.Path, "/")
	case "youtube.com", "m.youtube.com", "music.youtube.com":
		if u.Path == "/watch" {
			return u.Query().Get("v")
		}
		if strings.HasPrefix(u.Path, "/shorts/") || strings.HasPrefix(u.Path, "/embed/") {
			return strings.Split(u.Path, "/")[2]
		}
	}
	return ""
}

// WatchURL returns a link that plays the video with the specified ID.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + url.QueryEscape(videoID)
}

// VideoTrack builds a record for the video behind a link. Without a name,
// the video ID is used to label it.
func VideoTrack(link, name string) (RawTrack, error) {
	videoID := ParseVideoID(link)
	if videoID == "" {
		return RawTrack{}, ErrInvalidVideoLink
	}
	if name = strings.TrimSpace(name); name == "" {
		name = "YouTube - " + videoID
	}
	return RawTrack{
		Type:    string(TypeVideo),
		Name:    name,
		VideoID: videoID,
		URL:     strings.TrimSpace(link),
	}, nil
}

// RemoteTrack builds a record for a manually entered link to an MP3 file.
// Without a name, the file name in the link is used.
func RemoteTrack(link, name string) (RawTrack, error) {
	link = strings.TrimSpace(link)
	if !IsRemoteAudioURL(link) {
		return RawTrack{}, ErrInvalidAudioURL
	}
	return RawTrack{
		Type:   string(TypeRemote),
		Name:   strings.TrimSpace(name),
		URL:    link,
		Source: "manual",
	}, nil
}
