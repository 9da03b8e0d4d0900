package remote

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlo/dashboard/internal/mapview"
	"github.com/atlo/dashboard/pkg/core"
	"github.com/atlo/dashboard/pkg/streaming"
)

// pair connects a test client to a server-side Engine.
func pair(t *testing.T) (*Engine, *ws.Conn) {
	t.Helper()
	engines := make(chan *Engine, 1)
	upgrader := ws.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		engines <- New(conn, "bright", nil)
	}))
	t.Cleanup(srv.Close)

	client, _, err := ws.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	select {
	case e := <-engines:
		t.Cleanup(func() { _ = e.Close() })
		return e, client
	case <-time.After(2 * time.Second):
		t.Fatal("engine was not created")
		return nil, nil
	}
}

func sendEnvelope(t *testing.T, client *ws.Conn, typ string, payload any) {
	t.Helper()
	data, err := streaming.Encode(typ, payload)
	require.NoError(t, err)
	require.NoError(t, client.WriteMessage(ws.TextMessage, data))
}

func readEnvelope(t *testing.T, client *ws.Conn) streaming.Envelope {
	t.Helper()
	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := client.ReadMessage()
	require.NoError(t, err)
	var env streaming.Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func TestEngine_LoadEventMarksLoaded(t *testing.T) {
	e, client := pair(t)
	loads := make(chan mapview.Event, 1)
	e.On(mapview.EventLoad, "", func(ev mapview.Event) { loads <- ev })

	assert.False(t, e.Loaded())
	sendEnvelope(t, client, streaming.TypeEvent, streaming.EventPayload{
		Event:  "load",
		Camera: &streaming.CameraPayload{Center: [2]float64{7, 46}, Zoom: 3},
	})

	select {
	case ev := <-loads:
		assert.Equal(t, mapview.EventLoad, ev.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("load not delivered")
	}
	assert.True(t, e.Loaded())
	assert.Equal(t, core.CameraView{Center: core.Coordinate2D{Lon: 7, Lat: 46}, Zoom: 3}, e.Camera())
}

func TestEngine_PointerEventsScopedToLayer(t *testing.T) {
	e, client := pair(t)
	clicks := make(chan mapview.Event, 4)
	unsub := e.On(mapview.EventClick, "routes", func(ev mapview.Event) { clicks <- ev })

	sendEnvelope(t, client, streaming.TypeEvent, streaming.EventPayload{Event: "click", Layer: "other", FeatureID: "9"})
	sendEnvelope(t, client, streaming.TypeEvent, streaming.EventPayload{Event: "click", Layer: "routes", FeatureID: "42"})

	select {
	case ev := <-clicks:
		assert.Equal(t, core.FeatureID("42"), ev.FeatureID)
		assert.Equal(t, "routes", ev.LayerID)
	case <-time.After(2 * time.Second):
		t.Fatal("click not delivered")
	}

	unsub()
	unsub()
	sendEnvelope(t, client, streaming.TypeEvent, streaming.EventPayload{Event: "click", Layer: "routes", FeatureID: "43"})
	sendEnvelope(t, client, streaming.TypeCamera, streaming.CameraPayload{Zoom: 5})
	require.Eventually(t, func() bool { return e.Camera().Zoom == 5 }, 2*time.Second, 5*time.Millisecond)
	assert.Empty(t, clicks)
}

func TestEngine_ErrorEvent(t *testing.T) {
	e, client := pair(t)
	errs := make(chan mapview.Event, 1)
	e.On(mapview.EventError, "", func(ev mapview.Event) { errs <- ev })

	sendEnvelope(t, client, streaming.TypeEvent, streaming.EventPayload{Event: "error", Error: "style 404"})

	select {
	case ev := <-errs:
		require.Error(t, ev.Err)
		assert.Equal(t, "style 404", ev.Err.Error())
	case <-time.After(2 * time.Second):
		t.Fatal("error not delivered")
	}
}

func TestEngine_Intents(t *testing.T) {
	e, client := pair(t)
	intents := make(chan streaming.IntentPayload, 1)
	e.OnIntent(func(p streaming.IntentPayload) { intents <- p })

	sendEnvelope(t, client, streaming.TypeIntent, streaming.IntentPayload{Command: "filter", Args: []string{"Run"}})

	select {
	case p := <-intents:
		assert.Equal(t, "filter", p.Command)
		assert.Equal(t, []string{"Run"}, p.Args)
	case <-time.After(2 * time.Second):
		t.Fatal("intent not delivered")
	}
}

func TestEngine_SourceAndLayerCommands(t *testing.T) {
	e, client := pair(t)
	fc := core.FeatureCollection{Features: []core.Feature{{
		ID:          "1",
		Coordinates: []core.Coordinate2D{{Lon: 1, Lat: 2}, {Lon: 3, Lat: 4}},
	}}}

	require.NoError(t, e.AddSource("routes", fc))
	env := readEnvelope(t, client)
	assert.Equal(t, streaming.TypeAddSource, env.Type)
	var src streaming.SourcePayload
	require.NoError(t, env.Decode(&src))
	assert.Equal(t, "routes", src.ID)
	assert.Contains(t, string(src.Data), `"FeatureCollection"`)
	assert.True(t, e.HasSource("routes"))

	require.NoError(t, e.AddLayer(mapview.LayerSpec{ID: "routes-layer", Type: "line", Source: "routes"}))
	env = readEnvelope(t, client)
	assert.Equal(t, streaming.TypeAddLayer, env.Type)
	assert.True(t, e.HasLayer("routes-layer"))

	require.NoError(t, e.SetStyle("dark"))
	env = readEnvelope(t, client)
	assert.Equal(t, streaming.TypeSetStyle, env.Type)
	assert.False(t, e.HasSource("routes"), "style swap discards sources")
	assert.False(t, e.HasLayer("routes-layer"), "style swap discards layers")
}

func TestEngine_OpenLinkWithoutOpener(t *testing.T) {
	e, client := pair(t)

	require.NoError(t, e.OpenLink("https://www.strava.com/activities/1"))

	env := readEnvelope(t, client)
	require.Equal(t, streaming.TypeOpenLink, env.Type)
	var link streaming.LinkPayload
	require.NoError(t, env.Decode(&link))
	assert.Equal(t, "_blank", link.Target)
	assert.Contains(t, link.Features, "noopener")
}

func TestEngine_FitAndEase(t *testing.T) {
	e, client := pair(t)

	require.NoError(t, e.FitBounds(core.Bounds{MinLon: 1, MinLat: 2, MaxLon: 3, MaxLat: 4}, mapview.FitOptions{Padding: 60, MaxZoom: 12, Duration: 900 * time.Millisecond}))
	env := readEnvelope(t, client)
	var fit streaming.FitBoundsPayload
	require.NoError(t, env.Decode(&fit))
	assert.Equal(t, streaming.FitBoundsPayload{Bounds: [4]float64{1, 2, 3, 4}, Padding: 60, MaxZoom: 12, DurationMs: 900}, fit)

	view := core.CameraView{Center: core.Coordinate2D{Lon: 10, Lat: 20}, Zoom: 4, Bearing: 30, Pitch: 10}
	require.NoError(t, e.EaseTo(view, 0))
	env = readEnvelope(t, client)
	assert.Equal(t, streaming.TypeEaseTo, env.Type)
	assert.Equal(t, view, e.Camera())
}

func TestEngine_ClientDisconnect(t *testing.T) {
	e, client := pair(t)

	require.NoError(t, client.Close())

	select {
	case <-e.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not notice the disconnect")
	}
	assert.ErrorIs(t, e.SetCursor("pointer"), ErrDisconnected)
}
