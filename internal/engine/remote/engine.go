// Package remote is a map engine backed by a browser client. Commands are
// streamed to the client over a WebSocket and the client's engine events,
// camera reports and user intents flow back.
package remote

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/atlo/dashboard/internal/mapview"
	"github.com/atlo/dashboard/internal/route"
	"github.com/atlo/dashboard/pkg/core"
	"github.com/atlo/dashboard/pkg/streaming"
)

// IntentHandler receives user intents sent by the client.
type IntentHandler func(streaming.IntentPayload)

type listenerKey struct {
	event mapview.EventType
	layer string
}

// Engine implements mapview.Engine for one connected client. It mirrors
// the sources and layers it has asked the client to create, and forgets
// them on a style swap as the client's renderer does.
type Engine struct {
	conn   *connection
	logger *slog.Logger

	mu      sync.Mutex
	loaded  bool
	style   string
	camera  core.CameraView
	sources map[string]struct{}
	layers  map[string]struct{}
	intents IntentHandler

	listeners    map[listenerKey]map[int]mapview.Handler
	nextListener int
}

var _ mapview.Engine = (*Engine)(nil)

// New wraps an upgraded connection and starts its read and write loops.
func New(conn *ws.Conn, style string, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		logger:    logger,
		style:     style,
		sources:   make(map[string]struct{}),
		layers:    make(map[string]struct{}),
		listeners: make(map[listenerKey]map[int]mapview.Handler),
	}
	e.conn = newConnection(conn, e.handle, logger)
	e.conn.start()
	return e
}

// OnIntent registers the handler for client intents. It replaces any
// previous handler.
func (e *Engine) OnIntent(h IntentHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.intents = h
}

// Done is closed once the client has disconnected.
func (e *Engine) Done() <-chan struct{} {
	return e.conn.done
}

// Close disconnects the client.
func (e *Engine) Close() error {
	return e.conn.close()
}

// Notify sends a message that is not part of the engine surface, such as
// filter choices or status lines.
func (e *Engine) Notify(typ string, payload any) error {
	return e.sendCommand(typ, payload)
}

func (e *Engine) sendCommand(typ string, payload any) error {
	data, err := streaming.Encode(typ, payload)
	if err != nil {
		return err
	}
	if err := e.conn.send(data); err != nil {
		return fmt.Errorf("%s: %w", typ, err)
	}
	return nil
}

func (e *Engine) handle(env streaming.Envelope) {
	switch env.Type {
	case streaming.TypeEvent:
		var p streaming.EventPayload
		if err := env.Decode(&p); err != nil {
			e.logger.Debug("Ignoring malformed event", "error", err)
			return
		}
		e.handleEvent(p)
	case streaming.TypeCamera:
		var p streaming.CameraPayload
		if err := env.Decode(&p); err != nil {
			e.logger.Debug("Ignoring malformed camera", "error", err)
			return
		}
		e.mu.Lock()
		e.camera = cameraView(p)
		e.mu.Unlock()
	case streaming.TypeIntent:
		var p streaming.IntentPayload
		if err := env.Decode(&p); err != nil {
			e.logger.Debug("Ignoring malformed intent", "error", err)
			return
		}
		e.mu.Lock()
		h := e.intents
		e.mu.Unlock()
		if h != nil {
			h(p)
		}
	default:
		e.logger.Debug("Ignoring unknown message", "type", env.Type)
	}
}

func (e *Engine) handleEvent(p streaming.EventPayload) {
	ev := mapview.Event{
		Type:      mapview.EventType(p.Event),
		LayerID:   p.Layer,
		FeatureID: core.FeatureID(p.FeatureID),
	}
	if p.Error != "" {
		ev.Err = errors.New(p.Error)
	}

	e.mu.Lock()
	if ev.Type == mapview.EventLoad {
		e.loaded = true
	}
	if p.Camera != nil {
		e.camera = cameraView(*p.Camera)
	}
	e.mu.Unlock()

	e.emit(ev)
}

func (e *Engine) emit(ev mapview.Event) {
	e.mu.Lock()
	subs := e.listeners[listenerKey{event: ev.Type, layer: ev.LayerID}]
	ids := make([]int, 0, len(subs))
	for id := range subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	handlers := make([]mapview.Handler, 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, subs[id])
	}
	e.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}

func (e *Engine) Loaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loaded
}

func (e *Engine) AddSource(id string, data core.FeatureCollection) error {
	raw, err := route.MarshalGeoJSON(data)
	if err != nil {
		return err
	}
	if err := e.sendCommand(streaming.TypeAddSource, streaming.SourcePayload{ID: id, Data: raw}); err != nil {
		return err
	}
	e.mu.Lock()
	e.sources[id] = struct{}{}
	e.mu.Unlock()
	return nil
}

func (e *Engine) UpdateSource(id string, data core.FeatureCollection) error {
	raw, err := route.MarshalGeoJSON(data)
	if err != nil {
		return err
	}
	return e.sendCommand(streaming.TypeUpdateSource, streaming.SourcePayload{ID: id, Data: raw})
}

func (e *Engine) HasSource(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.sources[id]
	return ok
}

func (e *Engine) RemoveSource(id string) error {
	if err := e.sendCommand(streaming.TypeRemoveSource, streaming.SourcePayload{ID: id}); err != nil {
		return err
	}
	e.mu.Lock()
	delete(e.sources, id)
	e.mu.Unlock()
	return nil
}

func (e *Engine) AddLayer(spec mapview.LayerSpec) error {
	err := e.sendCommand(streaming.TypeAddLayer, streaming.LayerPayload{
		ID:     spec.ID,
		Type:   spec.Type,
		Source: spec.Source,
		Layout: spec.Layout,
		Paint:  spec.Paint,
	})
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.layers[spec.ID] = struct{}{}
	e.mu.Unlock()
	return nil
}

func (e *Engine) HasLayer(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.layers[id]
	return ok
}

func (e *Engine) RemoveLayer(id string) error {
	if err := e.sendCommand(streaming.TypeRemoveLayer, streaming.LayerPayload{ID: id}); err != nil {
		return err
	}
	e.mu.Lock()
	delete(e.layers, id)
	e.mu.Unlock()
	return nil
}

func (e *Engine) SetFeatureState(ref mapview.FeatureRef, state map[string]any) error {
	return e.sendCommand(streaming.TypeFeatureState, streaming.FeatureStatePayload{
		Source: ref.Source,
		ID:     string(ref.ID),
		State:  state,
	})
}

func (e *Engine) FitBounds(b core.Bounds, opts mapview.FitOptions) error {
	return e.sendCommand(streaming.TypeFitBounds, streaming.FitBoundsPayload{
		Bounds:     [4]float64{b.MinLon, b.MinLat, b.MaxLon, b.MaxLat},
		Padding:    opts.Padding,
		MaxZoom:    opts.MaxZoom,
		DurationMs: opts.Duration.Milliseconds(),
	})
}

func (e *Engine) EaseTo(view core.CameraView, duration time.Duration) error {
	p := cameraPayload(view)
	p.DurationMs = duration.Milliseconds()
	if err := e.sendCommand(streaming.TypeEaseTo, p); err != nil {
		return err
	}
	e.mu.Lock()
	e.camera = view
	e.mu.Unlock()
	return nil
}

// Camera returns the last camera the client reported or the server set.
func (e *Engine) Camera() core.CameraView {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.camera
}

func (e *Engine) SetStyle(style string) error {
	if err := e.sendCommand(streaming.TypeSetStyle, streaming.StylePayload{Style: style}); err != nil {
		return err
	}
	e.mu.Lock()
	e.style = style
	e.sources = make(map[string]struct{})
	e.layers = make(map[string]struct{})
	e.mu.Unlock()
	return nil
}

func (e *Engine) SetCursor(cursor string) error {
	return e.sendCommand(streaming.TypeSetCursor, streaming.CursorPayload{Cursor: cursor})
}

func (e *Engine) OpenLink(url string) error {
	return e.sendCommand(streaming.TypeOpenLink, streaming.LinkPayload{
		URL:      url,
		Target:   "_blank",
		Features: "noopener,noreferrer",
	})
}

func (e *Engine) On(event mapview.EventType, layerID string, h mapview.Handler) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := listenerKey{event: event, layer: layerID}
	if e.listeners[key] == nil {
		e.listeners[key] = make(map[int]mapview.Handler)
	}
	id := e.nextListener
	e.nextListener++
	e.listeners[key][id] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			delete(e.listeners[key], id)
		})
	}
}

func cameraView(p streaming.CameraPayload) core.CameraView {
	return core.CameraView{
		Center:  core.Coordinate2D{Lon: p.Center[0], Lat: p.Center[1]},
		Zoom:    p.Zoom,
		Bearing: p.Bearing,
		Pitch:   p.Pitch,
	}
}

func cameraPayload(v core.CameraView) streaming.CameraPayload {
	return streaming.CameraPayload{
		Center:  [2]float64{v.Center.Lon, v.Center.Lat},
		Zoom:    v.Zoom,
		Bearing: v.Bearing,
		Pitch:   v.Pitch,
	}
}
