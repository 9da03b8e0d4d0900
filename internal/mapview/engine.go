// Package mapview drives an interactive map engine: it owns the single route
// source and layer, keeps hover state consistent, and survives base style
// swaps without losing the camera or duplicating event bindings.
package mapview

import (
	"time"

	"github.com/atlo/dashboard/pkg/core"
)

// EventType names an engine event.
type EventType string

// Engine events.
const (
	EventLoad       EventType = "load"
	EventStyleLoad  EventType = "style.load"
	EventIdle       EventType = "idle"
	EventError      EventType = "error"
	EventClick      EventType = "click"
	EventMouseMove  EventType = "mousemove"
	EventMouseLeave EventType = "mouseleave"
)

// Event is delivered to handlers registered with Engine.On. Pointer events
// carry the layer and the topmost feature under the pointer.
type Event struct {
	Type      EventType
	LayerID   string
	FeatureID core.FeatureID
	Err       error
}

// Handler receives engine events. Engines may call it from any goroutine,
// including synchronously from inside another Engine method.
type Handler func(Event)

// LayerSpec describes a rendered layer.
type LayerSpec struct {
	ID     string         `json:"id"`
	Type   string         `json:"type"`
	Source string         `json:"source"`
	Layout map[string]any `json:"layout,omitempty"`
	Paint  map[string]any `json:"paint,omitempty"`
}

// FeatureRef addresses one feature of a source.
type FeatureRef struct {
	Source string         `json:"source"`
	ID     core.FeatureID `json:"id"`
}

// FitOptions controls a bounds fit.
type FitOptions struct {
	Padding  float64
	MaxZoom  float64
	Duration time.Duration
}

// Engine is the capability surface of a map renderer. Implementations must
// be safe for concurrent use. A style swap discards every source, layer and
// feature state the engine holds.
type Engine interface {
	Loaded() bool

	AddSource(id string, data core.FeatureCollection) error
	UpdateSource(id string, data core.FeatureCollection) error
	HasSource(id string) bool
	RemoveSource(id string) error

	AddLayer(spec LayerSpec) error
	HasLayer(id string) bool
	RemoveLayer(id string) error

	SetFeatureState(ref FeatureRef, state map[string]any) error

	FitBounds(b core.Bounds, opts FitOptions) error
	EaseTo(view core.CameraView, duration time.Duration) error
	Camera() core.CameraView

	SetStyle(style string) error
	SetCursor(cursor string) error
	// OpenLink opens url in a new browsing context with no opener.
	OpenLink(url string) error

	// On subscribes to an event. An empty layerID subscribes to map-wide
	// events; pointer events are scoped to a layer. The returned function
	// removes the subscription and is safe to call more than once.
	On(event EventType, layerID string, h Handler) (unsubscribe func())
}
