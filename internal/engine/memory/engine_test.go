package memory

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlo/dashboard/internal/mapview"
	"github.com/atlo/dashboard/pkg/core"
)

func TestFitCamera(t *testing.T) {
	tests := []struct {
		name     string
		bounds   core.Bounds
		opts     mapview.FitOptions
		wantZoom float64
		center   core.Coordinate2D
	}{
		{
			name:     "half the world",
			bounds:   core.Bounds{MinLon: -90, MaxLon: 90},
			wantZoom: 2,
		},
		{
			name:     "padding shrinks the viewport",
			bounds:   core.Bounds{MinLon: -90, MaxLon: 90},
			opts:     mapview.FitOptions{Padding: 256},
			wantZoom: 1,
		},
		{
			name:     "single point uses max zoom",
			bounds:   core.Bounds{MinLon: 7, MinLat: 46, MaxLon: 7, MaxLat: 46},
			opts:     mapview.FitOptions{MaxZoom: 15},
			wantZoom: 15,
			center:   core.Coordinate2D{Lon: 7, Lat: 46},
		},
		{
			name:     "small area capped",
			bounds:   core.Bounds{MinLon: 7, MinLat: 46, MaxLon: 7.001, MaxLat: 46.001},
			opts:     mapview.FitOptions{MaxZoom: 12},
			wantZoom: 12,
			center:   core.Coordinate2D{Lon: 7.0005, Lat: 46.0005},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cam := FitCamera(tt.bounds, tt.opts, 1024, 768, core.CameraView{Bearing: 30, Pitch: 10})
			assert.InDelta(t, tt.wantZoom, cam.Zoom, 1e-6)
			assert.InDelta(t, tt.center.Lon, cam.Center.Lon, 1e-6)
			assert.InDelta(t, tt.center.Lat, cam.Center.Lat, 1e-6)
			assert.Equal(t, 30.0, cam.Bearing)
			assert.Equal(t, 10.0, cam.Pitch)
		})
	}
}

func TestFitBounds_Empty(t *testing.T) {
	e := New(Options{Loaded: true})
	assert.ErrorIs(t, e.FitBounds(core.EmptyBounds(), mapview.FitOptions{}), ErrEmptyBounds)
}

func TestSourcesAndLayers(t *testing.T) {
	e := New(Options{Loaded: true})
	fc := core.FeatureCollection{Features: []core.Feature{{ID: "1", Coordinates: []core.Coordinate2D{{Lon: 1, Lat: 2}}}}}

	require.NoError(t, e.AddSource("routes", fc))
	assert.ErrorIs(t, e.AddSource("routes", fc), ErrSourceExists)
	assert.ErrorIs(t, e.AddLayer(mapview.LayerSpec{ID: "l", Source: "missing"}), ErrSourceNotFound)
	require.NoError(t, e.AddLayer(mapview.LayerSpec{ID: "l", Source: "routes"}))
	assert.ErrorIs(t, e.AddLayer(mapview.LayerSpec{ID: "l", Source: "routes"}), ErrLayerExists)

	ref := mapview.FeatureRef{Source: "routes", ID: "1"}
	require.NoError(t, e.SetFeatureState(ref, map[string]any{"hover": true}))
	assert.Equal(t, map[string]any{"hover": true}, e.FeatureState(ref))

	assert.Error(t, e.RemoveSource("routes"), "layer still uses the source")
	require.NoError(t, e.RemoveLayer("l"))
	require.NoError(t, e.RemoveSource("routes"))
	assert.Empty(t, e.FeatureState(ref))
	assert.Equal(t, 1, e.Calls("RemoveLayer"))
}

func TestSetStyle_DiscardsAndSettles(t *testing.T) {
	camera := core.CameraView{Zoom: 2}
	e := New(Options{Loaded: true, Style: "a", StyleCamera: &camera})
	require.NoError(t, e.AddSource("routes", core.FeatureCollection{}))
	require.NoError(t, e.AddLayer(mapview.LayerSpec{ID: "l", Source: "routes"}))
	require.NoError(t, e.EaseTo(core.CameraView{Zoom: 9}, 0))

	var got []mapview.EventType
	for _, ev := range []mapview.EventType{mapview.EventStyleLoad, mapview.EventIdle, mapview.EventError} {
		e.On(ev, "", func(ev mapview.Event) { got = append(got, ev.Type) })
	}

	require.NoError(t, e.SetStyle("b"))
	assert.Equal(t, "b", e.Style())
	assert.False(t, e.HasSource("routes"))
	assert.False(t, e.HasLayer("l"))
	assert.Equal(t, 2.0, e.Camera().Zoom)
	assert.Equal(t, []mapview.EventType{mapview.EventStyleLoad, mapview.EventIdle}, got)

	got = nil
	e.FailNextStyle(errors.New("tiles unavailable"))
	require.NoError(t, e.SetStyle("c"))
	assert.Equal(t, []mapview.EventType{mapview.EventError}, got)
}

func TestSettlePolicies(t *testing.T) {
	for _, tt := range []struct {
		policy SettlePolicy
		want   int
	}{
		{SettleStyleLoad, 2},
		{SettleIdle, 1},
		{SettleManual, 0},
	} {
		e := New(Options{Loaded: true, Settle: tt.policy})
		n := 0
		e.On(mapview.EventStyleLoad, "", func(mapview.Event) { n++ })
		e.On(mapview.EventIdle, "", func(mapview.Event) { n++ })
		require.NoError(t, e.SetStyle("x"))
		assert.Equal(t, tt.want, n, "policy %d", tt.policy)
	}
}

func TestEmit_LayerEventsNeedLayer(t *testing.T) {
	e := New(Options{Loaded: true})
	var hovered []core.FeatureID
	unsubscribe := e.On(mapview.EventMouseMove, "l", func(ev mapview.Event) { hovered = append(hovered, ev.FeatureID) })

	e.Hover("l", "1")
	assert.Empty(t, hovered)

	require.NoError(t, e.AddSource("routes", core.FeatureCollection{}))
	require.NoError(t, e.AddLayer(mapview.LayerSpec{ID: "l", Source: "routes"}))
	e.Hover("l", "2")
	assert.Equal(t, []core.FeatureID{"2"}, hovered)

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 0, e.ListenerCount(mapview.EventMouseMove, "l"))
}

func TestLoad(t *testing.T) {
	e := New(Options{})
	loads := 0
	e.On(mapview.EventLoad, "", func(mapview.Event) { loads++ })
	assert.False(t, e.Loaded())
	e.Load()
	assert.True(t, e.Loaded())
	assert.Equal(t, 1, loads)
	assert.False(t, math.IsNaN(e.Camera().Zoom))
}
