// Package raw serves the inline payloads of local tracks over HTTP so
// players that can only open URLs are able to fetch them.
package raw

import (
	"bytes"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/go-chi/chi/v5"

	"mixtape/src/library"
)

type payload struct {
	trackID  string
	mimeType string
	data     []byte
	added    time.Time
}

// A Server holds decoded track payloads in memory. Payloads are keyed by
// track ID and a hash of the data URL, so tracks that share an ID each get
// their own audio.
type Server struct {
	urlRoot string

	payloads     map[string]payload
	payloadsLock sync.RWMutex
}

// NewServer creates a server that is reachable at urlRoot. The handler must
// be mounted so that the path parameter "id" holds the track ID, e.g.
// urlRoot+"/{id}".
func NewServer(urlRoot string) *Server {
	return &Server{
		urlRoot:  strings.TrimSuffix(urlRoot, "/"),
		payloads: map[string]payload{},
	}
}

// payloadKey identifies the payload of a track in URLs.
func payloadKey(track library.Track) string {
	return track.ID + "-" + strconv.FormatUint(xxhash.Sum64String(track.DataURL), 36)
}

// URL returns the location the payload of the specified local track can be
// fetched from. The payload is decoded on the first call and kept until
// Release is called.
func (sv *Server) URL(track library.Track) (string, error) {
	if track.Type != library.TypeLocal || track.DataURL == "" {
		return "", fmt.Errorf("track %q has no inline payload: %w", track.ID, library.ErrInvalidTrack)
	}

	key := payloadKey(track)
	sv.payloadsLock.RLock()
	_, ok := sv.payloads[key]
	sv.payloadsLock.RUnlock()
	if !ok {
		mimeType, data, err := DecodeDataURL(track.DataURL)
		if err != nil {
			return "", fmt.Errorf("could not decode payload of track %q: %w", track.ID, err)
		}
		sv.payloadsLock.Lock()
		sv.payloads[key] = payload{trackID: track.ID, mimeType: mimeType, data: data, added: time.Now()}
		sv.payloadsLock.Unlock()
	}
	return sv.urlRoot + "/" + url.PathEscape(key), nil
}

// Release drops the payloads of the track with the specified ID.
func (sv *Server) Release(id string) {
	sv.payloadsLock.Lock()
	defer sv.payloadsLock.Unlock()
	for key, p := range sv.payloads {
		if p.trackID == id {
			delete(sv.payloads, key)
		}
	}
}

// Retain drops every payload that does not belong to one of the tracks in pl.
func (sv *Server) Retain(pl library.Playlist) {
	keep := make(map[string]bool, len(pl))
	for _, track := range pl {
		if track.Type == library.TypeLocal {
			keep[payloadKey(track)] = true
		}
	}
	sv.payloadsLock.Lock()
	defer sv.payloadsLock.Unlock()
	for key := range sv.payloads {
		if !keep[key] {
			delete(sv.payloads, key)
		}
	}
}

func (sv *Server) ServeHTTP(res http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")
	sv.payloadsLock.RLock()
	p, ok := sv.payloads[id]
	sv.payloadsLock.RUnlock()

	if !ok {
		http.NotFound(res, req)
		return
	}
	res.Header().Set("Content-Type", p.mimeType)
	http.ServeContent(res, req, "", p.added, bytes.NewReader(p.data))
}
