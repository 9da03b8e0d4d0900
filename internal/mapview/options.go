package mapview

import (
	"log/slog"
	"time"

	"github.com/atlo/dashboard/pkg/core"
)

// Route source and layer ids.
const (
	DefaultSourceID = "strava-routes"
	DefaultLayerID  = "strava-routes-layer"
	DefaultStyleID  = "bright"
)

// Options configures a Controller.
type Options struct {
	SourceID string
	LayerID  string

	// Styles maps style ids to the reference handed to Engine.SetStyle.
	Styles       map[string]string
	InitialStyle string

	// DefaultView is shown when there are no routes.
	DefaultView         core.CameraView
	DefaultViewDuration time.Duration

	Fit   FitOptions
	Focus FitOptions

	Logger *slog.Logger
}

// DefaultStyles returns the MapTiler catalogue the dashboard offers.
func DefaultStyles() map[string]string {
	return map[string]string{
		"bright":    "https://api.maptiler.com/maps/bright-v2/style.json",
		"streets":   "https://api.maptiler.com/maps/streets-v2/style.json",
		"outdoor":   "https://api.maptiler.com/maps/outdoor-v2/style.json",
		"satellite": "https://api.maptiler.com/maps/hybrid/style.json",
		"dark":      "https://api.maptiler.com/maps/dataviz-dark/style.json",
	}
}

// DefaultOptions returns the dashboard's map settings.
func DefaultOptions() Options {
	return Options{
		SourceID:            DefaultSourceID,
		LayerID:             DefaultLayerID,
		Styles:              DefaultStyles(),
		InitialStyle:        DefaultStyleID,
		DefaultView:         core.CameraView{Zoom: 1.5},
		DefaultViewDuration: 600 * time.Millisecond,
		Fit:                 FitOptions{Padding: 60, MaxZoom: 12, Duration: 900 * time.Millisecond},
		Focus:               FitOptions{Padding: 40, MaxZoom: 15, Duration: 900 * time.Millisecond},
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.SourceID == "" {
		o.SourceID = d.SourceID
	}
	if o.LayerID == "" {
		o.LayerID = d.LayerID
	}
	if len(o.Styles) == 0 {
		o.Styles = d.Styles
	}
	if o.InitialStyle == "" {
		o.InitialStyle = d.InitialStyle
	}
	if o.Fit == (FitOptions{}) {
		o.Fit = d.Fit
	}
	if o.Focus == (FitOptions{}) {
		o.Focus = d.Focus
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// routeLayer is the line layer drawing every route, widened on hover.
func (o Options) routeLayer() LayerSpec {
	return LayerSpec{
		ID:     o.LayerID,
		Type:   "line",
		Source: o.SourceID,
		Layout: map[string]any{
			"line-join": "round",
			"line-cap":  "round",
		},
		Paint: map[string]any{
			"line-color": []any{"coalesce", []any{"get", "color"}, "#38acbd"},
			"line-width": []any{
				"case",
				[]any{"boolean", []any{"feature-state", "hover"}, false}, 6,
				3,
			},
			"line-opacity": 0.85,
		},
	}
}
