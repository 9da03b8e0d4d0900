package mapview

import "github.com/atlo/dashboard/pkg/core"

// LayerState tracks how far the route layer has been attached to the
// current style.
type LayerState int

// Layer lifecycle, in attach order.
const (
	StateAbsent LayerState = iota
	StateSourceBound
	StateLayerBound
	StateInteractive
)

func (s LayerState) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateSourceBound:
		return "source-bound"
	case StateLayerBound:
		return "layer-bound"
	case StateInteractive:
		return "interactive"
	default:
		return "unknown"
	}
}

// Snapshot is a point-in-time view of a controller.
type Snapshot struct {
	StyleID      string          `json:"styleId"`
	PendingStyle string          `json:"pendingStyle,omitempty"`
	Camera       core.CameraView `json:"camera"`
	Hovered      core.FeatureID  `json:"hovered,omitempty"`
	State        LayerState      `json:"state"`
	Features     int             `json:"features"`
}
