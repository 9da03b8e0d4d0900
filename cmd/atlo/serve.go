package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atlo/dashboard/internal/card"
	"github.com/atlo/dashboard/internal/config"
	"github.com/atlo/dashboard/internal/logging"
	"github.com/atlo/dashboard/internal/mapview"
	"github.com/atlo/dashboard/internal/monitor"
	"github.com/atlo/dashboard/internal/route"
	"github.com/atlo/dashboard/internal/server"
	"github.com/atlo/dashboard/internal/strava"
	"github.com/atlo/dashboard/pkg/core"
)

const shutdownTimeout = 10 * time.Second

func serve() error {
	store, err := initStorage()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	mapOpts, err := mapOptions()
	if err != nil {
		return err
	}
	client, err := newStravaClient()
	if err != nil {
		return err
	}

	cfg := config.GetServerConfig()
	srv := server.New(server.Dependencies{
		Store:            store,
		Provider:         client,
		Builder:          newBuilder(),
		MapOptions:       mapOpts,
		Card:             cardConfig(),
		Config:           cfg,
		Logger:           Logger,
		DispatcherLogger: logging.NewDispatcherLogger(ZLogger),
	})
	activeServer.Store(srv)
	defer activeServer.Store(nil)

	if mc := config.GetMonitorConfig(); mc.Enabled {
		mon := monitor.NewService(monitor.Dependencies{
			Store:      store,
			Sessions:   srv.Sessions,
			Logger:     Logger,
			StatusPath: mc.StatusFile,
			Interval:   mc.Interval,
		})
		if err := mon.Start(); err != nil {
			return err
		}
		defer mon.Stop()
	}

	httpSrv := &http.Server{
		Addr:        cfg.Addr,
		Handler:     srv.Handler(),
		ReadTimeout: cfg.ReadTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()
	Logger.Info("Listening", "addr", cfg.Addr, "storage", config.GetStorageConfig().Type)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	Logger.Info("Shutting down", "sessions", srv.Sessions())
	_ = srv.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err = httpSrv.Shutdown(shutdownCtx)
	if flushErr := SlogManager.Flush(shutdownCtx); flushErr != nil {
		Logger.Warn("Failed to flush OTel logs", "error", flushErr)
	}
	return err
}

// mapOptions builds the controller settings from the map config. A MapTiler
// key is appended to every style URL.
func mapOptions() (mapview.Options, error) {
	cfg, err := config.GetMapConfig()
	if err != nil {
		return mapview.Options{}, err
	}

	opts := mapview.DefaultOptions()
	styles := mapview.DefaultStyles()
	if cfg.MapTilerKey != "" {
		for id, ref := range styles {
			styles[id] = ref + "?key=" + url.QueryEscape(cfg.MapTilerKey)
		}
	}
	opts.Styles = styles
	if cfg.Style != "" {
		if _, ok := styles[cfg.Style]; !ok {
			return mapview.Options{}, fmt.Errorf("map.style: %w: %q", mapview.ErrUnknownStyle, cfg.Style)
		}
		opts.InitialStyle = cfg.Style
	}
	opts.DefaultView = core.CameraView{Center: cfg.DefaultCenter, Zoom: cfg.DefaultZoom}
	opts.Fit = mapview.FitOptions{Padding: cfg.Fit.Padding, MaxZoom: cfg.Fit.MaxZoom, Duration: cfg.Fit.Duration}
	opts.Focus = mapview.FitOptions{Padding: cfg.Focus.Padding, MaxZoom: cfg.Focus.MaxZoom, Duration: cfg.Focus.Duration}
	opts.Logger = SlogManager.Component("mapview")
	return opts, nil
}

func newBuilder() *route.Builder {
	cfg := config.GetSmoothingConfig()
	opts := route.DefaultOptions()
	opts.SamplesPerSegment = cfg.SamplesPerSegment
	opts.Alpha = cfg.Alpha
	return route.NewBuilder(opts)
}

func cardConfig() card.Config {
	cfg := config.GetCardConfig()
	return card.Config{Width: cfg.Width, Height: cfg.Height, Spacing: cfg.Spacing, DPI: cfg.DPI}
}

func newStravaClient() (*strava.Client, error) {
	cfg := config.GetStravaConfig()
	if cfg.AccessToken == "" {
		Logger.Warn("strava.accessToken not set, sync requests will be rejected")
	}
	return strava.New(strava.Config{
		BaseURL: cfg.BaseURL,
		PerPage: cfg.PerPage,
		Timeout: cfg.Timeout,
	}, strava.StaticToken(cfg.AccessToken), Logger)
}
