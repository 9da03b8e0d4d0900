// Package streaming defines the JSON protocol spoken between the dashboard
// server and a browser map client over a WebSocket.
package streaming

import (
	"encoding/json"
	"fmt"
)

// Commands sent by the server to the map client.
const (
	TypeAddSource     = "add_source"
	TypeUpdateSource  = "update_source"
	TypeRemoveSource  = "remove_source"
	TypeAddLayer      = "add_layer"
	TypeRemoveLayer   = "remove_layer"
	TypeFeatureState  = "feature_state"
	TypeFitBounds     = "fit_bounds"
	TypeEaseTo        = "ease_to"
	TypeSetStyle      = "set_style"
	TypeSetCursor     = "set_cursor"
	TypeOpenLink      = "open_link"
	TypeActivityTypes = "activity_types"
	TypeStatus        = "status"
)

// Messages sent by the map client to the server.
const (
	TypeEvent  = "event"
	TypeCamera = "camera"
	TypeIntent = "intent"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Encode marshals payload into an envelope of the given type.
func Encode(typ string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", typ, err)
	}
	data, err := json.Marshal(Envelope{Type: typ, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", typ, err)
	}
	return data, nil
}

// Decode unmarshals an envelope's payload into v.
func (e Envelope) Decode(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%s: empty payload", e.Type)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("%s: %w", e.Type, err)
	}
	return nil
}

// SourcePayload carries a GeoJSON source.
type SourcePayload struct {
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data,omitempty"`
}

// LayerPayload describes a layer to add or remove.
type LayerPayload struct {
	ID     string         `json:"id"`
	Type   string         `json:"type,omitempty"`
	Source string         `json:"source,omitempty"`
	Layout map[string]any `json:"layout,omitempty"`
	Paint  map[string]any `json:"paint,omitempty"`
}

// FeatureStatePayload sets state on one feature of a source.
type FeatureStatePayload struct {
	Source string         `json:"source"`
	ID     string         `json:"id"`
	State  map[string]any `json:"state"`
}

// CameraPayload is a camera position. Center is [lon, lat].
type CameraPayload struct {
	Center     [2]float64 `json:"center"`
	Zoom       float64    `json:"zoom"`
	Bearing    float64    `json:"bearing"`
	Pitch      float64    `json:"pitch"`
	DurationMs int64      `json:"duration,omitempty"`
}

// FitBoundsPayload fits the camera to [minLon, minLat, maxLon, maxLat].
type FitBoundsPayload struct {
	Bounds     [4]float64 `json:"bounds"`
	Padding    float64    `json:"padding"`
	MaxZoom    float64    `json:"maxZoom"`
	DurationMs int64      `json:"duration"`
}

// StylePayload selects a base style.
type StylePayload struct {
	Style string `json:"style"`
}

// CursorPayload sets the map canvas cursor.
type CursorPayload struct {
	Cursor string `json:"cursor"`
}

// LinkPayload asks the client to open a URL in a new browsing context.
type LinkPayload struct {
	URL      string `json:"url"`
	Target   string `json:"target"`
	Features string `json:"features"`
}

// ActivityTypesPayload lists the choices offered by the type filter.
type ActivityTypesPayload struct {
	Types    []string `json:"types"`
	Selected string   `json:"selected"`
}

// StatusPayload reports progress or failures to the user.
type StatusPayload struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// EventPayload is a map engine event reported by the client. Camera is set
// on lifecycle events so the server tracks the view.
type EventPayload struct {
	Event     string         `json:"event"`
	Layer     string         `json:"layer,omitempty"`
	FeatureID string         `json:"featureId,omitempty"`
	Error     string         `json:"error,omitempty"`
	Camera    *CameraPayload `json:"camera,omitempty"`
}

// IntentPayload is a user request from the dashboard controls.
type IntentPayload struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}
