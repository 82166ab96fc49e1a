package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"mixtape/src/handler/api"
	"mixtape/src/library/raw"
	"mixtape/src/player"
	"mixtape/src/util"
)

// New creates the HTTP service: the control API next to the server for
// inline track payloads.
func New(version string, ctrl *player.Controller, payloads *raw.Server) chi.Router {
	service := chi.NewRouter()
	service.Use(util.LogHandler)
	service.Use(middleware.Compress(5))

	service.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(version))
	})
	service.Get("/raw/{id}", payloads.ServeHTTP)
	api.InitRouter(service, ctrl)

	return service
}
