package api

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"

	"mixtape/src/player"
	"mixtape/src/util/eventsource"
)

func (api *API) playerTransport(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(api.ctrl.Transport())
}

func (api *API) playerToggle(w http.ResponseWriter, r *http.Request) {
	if err := api.ctrl.TogglePlayPause(r.Context()); err != nil {
		WriteError(w, r, err)
		return
	}
	api.playerTransport(w, r)
}

func (api *API) playerPlay(w http.ResponseWriter, r *http.Request) {
	if err := api.ctrl.Play(r.Context()); err != nil {
		WriteError(w, r, err)
		return
	}
	api.playerTransport(w, r)
}

func (api *API) playerPause(w http.ResponseWriter, r *http.Request) {
	if err := api.ctrl.Pause(r.Context()); err != nil {
		WriteError(w, r, err)
		return
	}
	api.playerTransport(w, r)
}

func (api *API) playerNext(w http.ResponseWriter, r *http.Request) {
	if err := api.ctrl.Next(r.Context()); err != nil {
		WriteError(w, r, err)
		return
	}
	api.playerTransport(w, r)
}

func (api *API) playerPrevious(w http.ResponseWriter, r *http.Request) {
	if err := api.ctrl.Previous(r.Context()); err != nil {
		WriteError(w, r, err)
		return
	}
	api.playerTransport(w, r)
}

func (api *API) playerSeek(w http.ResponseWriter, r *http.Request) {
	var data struct {
		Ratio float64 `json:"ratio"`
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		WriteError(w, r, err)
		return
	}
	if err := api.ctrl.Seek(r.Context(), data.Ratio); err != nil {
		WriteError(w, r, err)
		return
	}
	api.playerTransport(w, r)
}

func (api *API) playerSelect(w http.ResponseWriter, r *http.Request) {
	var data struct {
		Index    int  `json:"index"`
		Autoplay bool `json:"autoplay"`
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		WriteError(w, r, err)
		return
	}
	if err := api.ctrl.SelectAndLoad(r.Context(), data.Index, data.Autoplay); err != nil {
		WriteError(w, r, err)
		return
	}
	api.playerTransport(w, r)
}

func (api *API) playerEvents(w http.ResponseWriter, r *http.Request) {
	es, err := eventsource.Begin(w, r)
	if err != nil {
		log.Errorf("%v", err)
		return
	}
	listener := api.ctrl.Listen(r.Context())

	es.EventJSON("playlist", map[string]interface{}{"tracks": jsonTracks(api.ctrl.Playlist())})
	es.EventJSON("transport", api.ctrl.Transport())

	for {
		var event interface{}
		select {
		case event = <-listener:
		case <-r.Context().Done():
			return
		}

		switch t := event.(type) {
		case player.TransportEvent:
			es.EventJSON("transport", t.Transport)
		case player.PlaylistEvent:
			es.EventJSON("playlist", map[string]interface{}{"tracks": jsonTracks(t.Playlist)})
		case player.ErrorEvent:
			es.EventJSON("error", map[string]interface{}{
				"index": t.Index,
				"name":  t.Track.Name,
				"error": t.Error.Error(),
			})
		default:
			log.Debugf("Unmapped event %#v", event)
		}
	}
}
