package api

import (
	"encoding/json"
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
	"github.com/tdewolff/minify/v2"
	minjson "github.com/tdewolff/minify/v2/json"

	"mixtape/src/library"
	"mixtape/src/player"
)

// API exposes a playback controller over HTTP.
type API struct {
	ctrl *player.Controller
}

// InitRouter attaches all API routes to the specified router.
func InitRouter(r chi.Router, ctrl *player.Controller) {
	api := API{ctrl: ctrl}

	m := minify.New()
	m.AddFuncRegexp(regexp.MustCompile("[/+]json$"), minjson.Minify)

	r.Route("/player", func(r chi.Router) {
		r.Get("/events", api.playerEvents)
		r.Group(func(r chi.Router) {
			r.Use(jsonCtx, m.Middleware)
			r.Get("/", api.playerTransport)
			r.Post("/toggle", api.playerToggle)
			r.Post("/play", api.playerPlay)
			r.Post("/pause", api.playerPause)
			r.Post("/next", api.playerNext)
			r.Post("/previous", api.playerPrevious)
			r.Post("/seek", api.playerSeek)
			r.Post("/select", api.playerSelect)
		})
	})

	r.Route("/playlist", func(r chi.Router) {
		r.Use(jsonCtx, m.Middleware)
		r.Get("/", api.playlistContents)
		r.Put("/", api.playlistAdd)
		r.Delete("/", api.playlistClear)
		r.Delete("/current", api.playlistRemoveCurrent)
		r.Delete("/{index:[0-9]+}", api.playlistRemove)
	})
}

// WriteError writes an error to the client.
//
// An attempt is made to tune the response format to the requestor.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	log.Errorf("Error serving %s: %v", r.RemoteAddr, err)

	if r.Header.Get("X-Requested-With") == "" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(err.Error()))
		return
	}
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": err.Error(),
	})
}

func jsonCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

type jsonTrack struct {
	Index   int          `json:"index"`
	ID      string       `json:"id"`
	Type    library.Type `json:"type"`
	Name    string       `json:"name"`
	Label   string       `json:"label"`
	URL     string       `json:"url,omitempty"`
	VideoID string       `json:"videoId,omitempty"`
	Source  string       `json:"source,omitempty"`
}

// jsonTracks converts a playlist for transmission. Inline payloads are left
// out, they are served by the raw handler.
func jsonTracks(pl library.Playlist) []jsonTrack {
	out := make([]jsonTrack, len(pl))
	for i, tr := range pl {
		out[i] = jsonTrack{
			Index:   i,
			ID:      tr.ID,
			Type:    tr.Type,
			Name:    tr.Name,
			Label:   tr.Label(),
			URL:     tr.URL,
			VideoID: tr.VideoID,
			Source:  tr.Source,
		}
	}
	return out
}
