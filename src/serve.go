package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"mixtape/src/config"
	"mixtape/src/handler/web"
	"mixtape/src/library"
	"mixtape/src/library/raw"
	"mixtape/src/player"
	"mixtape/src/player/mpd"
	"mixtape/src/player/mpv"
	"mixtape/src/storage"
	"mixtape/src/util"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the player daemon and its HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		return serve(ctx, conf)
	},
}

func openStore(conf *config.Config) (*library.Store, storage.Storage, error) {
	st, err := storage.Open(conf.Storage.Driver, conf.StorageLocation())
	if err != nil {
		return nil, nil, err
	}
	log.Infof("Using %s storage at %q", conf.Storage.Driver, conf.StorageLocation())
	store := library.NewStore(st)
	store.Key = conf.Storage.Key
	store.LegacyKeys = conf.Storage.LegacyKeys
	return store, st, nil
}

func serve(ctx context.Context, conf *config.Config) error {
	log.Infof("Version: %v (%v)", version, build)

	store, st, err := openStore(conf)
	if err != nil {
		return err
	}
	defer st.Close()

	urlRoot, err := util.DetermineFullURLRoot(conf.URLRoot, conf.Address)
	if err != nil {
		return err
	}
	payloads := raw.NewServer(urlRoot + "/raw")

	direct, err := mpd.Connect(conf.MPD.Network, conf.MPD.Address, conf.MPD.Password, payloads)
	if err != nil {
		return err
	}
	defer direct.Close()
	embedded := mpv.New(mpv.Config{
		Binary:       conf.MPV.Binary,
		Socket:       conf.MPV.Socket,
		YTDLFormat:   conf.MPV.YTDLFormat,
		Args:         conf.MPV.Args,
		StartTimeout: conf.MPV.StartTimeout,
	})
	defer embedded.Close()
	// Starting mpv can take a while, do it ahead of the first video.
	embedded.Ready().Start()

	ctrl, err := player.NewController(store, direct, embedded)
	if err != nil {
		return err
	}
	ctrl.PollInterval = conf.PollInterval
	go ctrl.Run(ctx)

	go watchController(ctx, ctrl, payloads)
	if err := ctrl.Init(ctx); err != nil {
		log.Errorf("Could not restore the playlist: %v", err)
	}

	service := web.New(version, ctrl, payloads)
	if build == "debug" {
		service.Get("/debug/pprof/*", pprof.Index)
	}
	server := &http.Server{
		Addr:           conf.Address,
		Handler:        service,
		ReadTimeout:    10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Infof("Now accepting HTTP connections on %v", conf.Address)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// watchController drops payloads of removed tracks and logs load failures
// until ctx is cancelled.
func watchController(ctx context.Context, ctrl *player.Controller, payloads *raw.Server) {
	listener := ctrl.Listen(ctx)
	for {
		var event interface{}
		select {
		case event = <-listener:
		case <-ctx.Done():
			return
		}

		switch t := event.(type) {
		case player.PlaylistEvent:
			payloads.Retain(t.Playlist)
		case player.ErrorEvent:
			log.WithField("track", t.Track.Name).Warn(t.Error)
		}
	}
}
