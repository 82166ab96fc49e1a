package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"mixtape/src/library"
)

func (api *API) playlistContents(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]interface{}{
		"tracks":  jsonTracks(api.ctrl.Playlist()),
		"current": api.ctrl.Transport().CurrentIndex,
	})
}

// decodeAddRequest accepts a video link, a remote audio URL or a complete
// track record.
func decodeAddRequest(body []byte) (library.RawTrack, error) {
	var req struct {
		Type string `json:"type"`
		Link string `json:"link"`
		URL  string `json:"url"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return library.RawTrack{}, err
	}

	switch {
	case req.Link != "":
		return library.VideoTrack(req.Link, req.Name)
	case req.Type == "" && req.URL != "":
		return library.RemoteTrack(req.URL, req.Name)
	}

	var raw library.RawTrack
	err := json.Unmarshal(body, &raw)
	return raw, err
}

func (api *API) playlistAdd(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	raw, err := decodeAddRequest(body)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	added, err := api.ctrl.Add(r.Context(), raw)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if !added {
		WriteError(w, r, fmt.Errorf("%w: the %q payload is missing", library.ErrInvalidTrack, library.ParseType(raw.Type)))
		return
	}
	api.playlistContents(w, r)
}

func (api *API) playlistRemove(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if err := api.ctrl.Remove(r.Context(), index); err != nil {
		WriteError(w, r, err)
		return
	}
	api.playlistContents(w, r)
}

func (api *API) playlistRemoveCurrent(w http.ResponseWriter, r *http.Request) {
	if err := api.ctrl.RemoveCurrent(r.Context()); err != nil {
		WriteError(w, r, err)
		return
	}
	api.playlistContents(w, r)
}

func (api *API) playlistClear(w http.ResponseWriter, r *http.Request) {
	if err := api.ctrl.ClearAll(r.Context()); err != nil {
		WriteError(w, r, err)
		return
	}
	api.playlistContents(w, r)
}
