// Package memory is a headless map engine. It keeps sources, layers and
// feature state in memory, computes fitted cameras in Web Mercator and lets
// callers drive lifecycle and pointer events. The render command and the
// controller tests run against it.
package memory

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/atlo/dashboard/internal/geo"
	"github.com/atlo/dashboard/internal/mapview"
	"github.com/atlo/dashboard/pkg/core"
)

// SettlePolicy selects which events follow a style swap.
type SettlePolicy int

const (
	// SettleStyleLoad emits style.load then idle.
	SettleStyleLoad SettlePolicy = iota
	// SettleIdle emits only idle, as engines that skip style.load do.
	SettleIdle
	// SettleManual emits nothing until Settle is called.
	SettleManual
)

const (
	defaultWidth   = 1024
	defaultHeight  = 768
	tileSize       = 512
	defaultMaxZoom = 22
)

// Errors returned by Engine methods.
var (
	ErrSourceExists   = errors.New("source already exists")
	ErrSourceNotFound = errors.New("source not found")
	ErrLayerExists    = errors.New("layer already exists")
	ErrLayerNotFound  = errors.New("layer not found")
	ErrEmptyBounds    = errors.New("cannot fit empty bounds")
)

// Options configures an Engine.
type Options struct {
	Loaded bool
	Style  string
	Settle SettlePolicy

	// Viewport size in pixels.
	Width  float64
	Height float64

	Camera core.CameraView
	// StyleCamera, when set, is the camera every new style imposes as it
	// loads.
	StyleCamera *core.CameraView
}

type listenerKey struct {
	event mapview.EventType
	layer string
}

// Engine implements mapview.Engine in memory.
type Engine struct {
	mu sync.Mutex

	opts     Options
	loaded   bool
	style    string
	camera   core.CameraView
	cursor   string
	links    []string
	styleErr error

	sources map[string]core.FeatureCollection
	layers  map[string]mapview.LayerSpec
	states  map[mapview.FeatureRef]map[string]any

	listeners    map[listenerKey]map[int]mapview.Handler
	nextListener int

	calls map[string]int
}

var _ mapview.Engine = (*Engine)(nil)

// New creates an engine.
func New(opts Options) *Engine {
	if opts.Width <= 0 {
		opts.Width = defaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = defaultHeight
	}
	return &Engine{
		opts:      opts,
		loaded:    opts.Loaded,
		style:     opts.Style,
		camera:    opts.Camera,
		sources:   make(map[string]core.FeatureCollection),
		layers:    make(map[string]mapview.LayerSpec),
		states:    make(map[mapview.FeatureRef]map[string]any),
		listeners: make(map[listenerKey]map[int]mapview.Handler),
		calls:     make(map[string]int),
	}
}

func (e *Engine) record(method string) {
	e.calls[method]++
}

// Loaded reports whether the initial load has completed.
func (e *Engine) Loaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loaded
}

func (e *Engine) AddSource(id string, data core.FeatureCollection) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("AddSource")
	if _, ok := e.sources[id]; ok {
		return fmt.Errorf("%w: %s", ErrSourceExists, id)
	}
	e.sources[id] = data
	return nil
}

func (e *Engine) UpdateSource(id string, data core.FeatureCollection) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("UpdateSource")
	if _, ok := e.sources[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSourceNotFound, id)
	}
	e.sources[id] = data
	return nil
}

func (e *Engine) HasSource(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.sources[id]
	return ok
}

func (e *Engine) RemoveSource(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("RemoveSource")
	if _, ok := e.sources[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSourceNotFound, id)
	}
	for _, l := range e.layers {
		if l.Source == id {
			return fmt.Errorf("source %s is used by layer %s", id, l.ID)
		}
	}
	delete(e.sources, id)
	for ref := range e.states {
		if ref.Source == id {
			delete(e.states, ref)
		}
	}
	return nil
}

func (e *Engine) AddLayer(spec mapview.LayerSpec) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("AddLayer")
	if _, ok := e.layers[spec.ID]; ok {
		return fmt.Errorf("%w: %s", ErrLayerExists, spec.ID)
	}
	if _, ok := e.sources[spec.Source]; !ok {
		return fmt.Errorf("%w: %s", ErrSourceNotFound, spec.Source)
	}
	e.layers[spec.ID] = spec
	return nil
}

func (e *Engine) HasLayer(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.layers[id]
	return ok
}

func (e *Engine) RemoveLayer(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("RemoveLayer")
	if _, ok := e.layers[id]; !ok {
		return fmt.Errorf("%w: %s", ErrLayerNotFound, id)
	}
	delete(e.layers, id)
	return nil
}

func (e *Engine) SetFeatureState(ref mapview.FeatureRef, state map[string]any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("SetFeatureState")
	if _, ok := e.sources[ref.Source]; !ok {
		return fmt.Errorf("%w: %s", ErrSourceNotFound, ref.Source)
	}
	cur := e.states[ref]
	if cur == nil {
		cur = make(map[string]any, len(state))
		e.states[ref] = cur
	}
	for k, v := range state {
		cur[k] = v
	}
	return nil
}

func (e *Engine) FitBounds(b core.Bounds, opts mapview.FitOptions) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("FitBounds")
	if b.IsEmpty() {
		return ErrEmptyBounds
	}
	e.camera = FitCamera(b, opts, e.opts.Width, e.opts.Height, e.camera)
	return nil
}

func (e *Engine) EaseTo(view core.CameraView, _ time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("EaseTo")
	e.camera = view
	return nil
}

func (e *Engine) Camera() core.CameraView {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.camera
}

// SetStyle swaps the style, discarding sources, layers and feature state,
// then emits the settle events the policy calls for. Listeners survive the
// swap.
func (e *Engine) SetStyle(style string) error {
	e.mu.Lock()
	e.record("SetStyle")
	e.style = style
	e.sources = make(map[string]core.FeatureCollection)
	e.layers = make(map[string]mapview.LayerSpec)
	e.states = make(map[mapview.FeatureRef]map[string]any)
	if e.opts.StyleCamera != nil {
		e.camera = *e.opts.StyleCamera
	}
	failure := e.styleErr
	e.styleErr = nil
	policy := e.opts.Settle
	e.mu.Unlock()

	switch {
	case failure != nil:
		e.Emit(mapview.Event{Type: mapview.EventError, Err: failure})
	case policy == SettleStyleLoad:
		e.Emit(mapview.Event{Type: mapview.EventStyleLoad})
		e.Emit(mapview.Event{Type: mapview.EventIdle})
	case policy == SettleIdle:
		e.Emit(mapview.Event{Type: mapview.EventIdle})
	}
	return nil
}

func (e *Engine) SetCursor(cursor string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cursor = cursor
	return nil
}

func (e *Engine) OpenLink(url string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.links = append(e.links, url)
	return nil
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

// Emit delivers ev to its listeners in subscription order. Layer events are
// dropped while the layer is absent.
func (e *Engine) Emit(ev mapview.Event) {
	e.mu.Lock()
	if ev.LayerID != "" {
		if _, ok := e.layers[ev.LayerID]; !ok {
			e.mu.Unlock()
			return
		}
	}
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

// Load completes the initial load.
func (e *Engine) Load() {
	e.mu.Lock()
	e.loaded = true
	e.mu.Unlock()
	e.Emit(mapview.Event{Type: mapview.EventLoad})
}

// Fail reports an engine error.
func (e *Engine) Fail(err error) {
	e.Emit(mapview.Event{Type: mapview.EventError, Err: err})
}

// FailNextStyle makes the next SetStyle emit err instead of settling.
func (e *Engine) FailNextStyle(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.styleErr = err
}

// Settle emits style.load and idle; used with SettleManual.
func (e *Engine) Settle() {
	e.Emit(mapview.Event{Type: mapview.EventStyleLoad})
	e.Emit(mapview.Event{Type: mapview.EventIdle})
}

// Click emits a click on feature id of layer.
func (e *Engine) Click(layer string, id core.FeatureID) {
	e.Emit(mapview.Event{Type: mapview.EventClick, LayerID: layer, FeatureID: id})
}

// Hover emits a pointer move over feature id of layer.
func (e *Engine) Hover(layer string, id core.FeatureID) {
	e.Emit(mapview.Event{Type: mapview.EventMouseMove, LayerID: layer, FeatureID: id})
}

// Leave emits the pointer leaving layer.
func (e *Engine) Leave(layer string) {
	e.Emit(mapview.Event{Type: mapview.EventMouseLeave, LayerID: layer})
}

// ListenerCount returns the live subscriptions for event on layer.
func (e *Engine) ListenerCount(event mapview.EventType, layer string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners[listenerKey{event: event, layer: layer}])
}

// FeatureState returns a copy of the state held for ref.
func (e *Engine) FeatureState(ref mapview.FeatureRef) map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]any, len(e.states[ref]))
	for k, v := range e.states[ref] {
		out[k] = v
	}
	return out
}

// Source returns the data of source id.
func (e *Engine) Source(id string) (core.FeatureCollection, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fc, ok := e.sources[id]
	return fc, ok
}

// Style returns the current style reference.
func (e *Engine) Style() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.style
}

// Cursor returns the current cursor.
func (e *Engine) Cursor() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cursor
}

// Links returns every link opened so far.
func (e *Engine) Links() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.links...)
}

// Calls returns how often a mutating method has been called.
func (e *Engine) Calls(method string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[method]
}

// FitCamera returns the camera that shows b inside a width x height
// viewport with opts.Padding pixels on every side, capped at opts.MaxZoom.
// Bearing and pitch are kept from current.
func FitCamera(b core.Bounds, opts mapview.FitOptions, width, height float64, current core.CameraView) core.CameraView {
	x0, y0 := geo.WebMercator(core.Coordinate2D{Lon: b.MinLon, Lat: b.MinLat})
	x1, y1 := geo.WebMercator(core.Coordinate2D{Lon: b.MaxLon, Lat: b.MaxLat})

	maxZoom := opts.MaxZoom
	if maxZoom <= 0 {
		maxZoom = defaultMaxZoom
	}

	availW := math.Max(width-2*opts.Padding, 1)
	availH := math.Max(height-2*opts.Padding, 1)
	worldWidth := 2 * math.Pi * geo.SemiMajorAxis

	// Pixels per metre available along each axis; a degenerate axis does not
	// constrain the zoom.
	scale := math.Inf(1)
	if w := x1 - x0; w > 0 {
		scale = availW / w
	}
	if h := y1 - y0; h > 0 {
		scale = math.Min(scale, availH/h)
	}

	zoom := maxZoom
	if !math.IsInf(scale, 1) {
		zoom = math.Min(math.Log2(scale*worldWidth/tileSize), maxZoom)
	}

	return core.CameraView{
		Center:  geo.FromWebMercator((x0+x1)/2, (y0+y1)/2),
		Zoom:    zoom,
		Bearing: current.Bearing,
		Pitch:   current.Pitch,
	}
}
