package core

// FeatureID identifies a rendered route. It is the activity id when the
// activity has one, a synthetic index-based id otherwise.
type FeatureID string

// NoFeature is the absence of a hovered or focused feature.
const NoFeature FeatureID = ""

// FeatureProperties is the metadata carried next to a route geometry.
type FeatureProperties struct {
	ActivityID   *int64 `json:"activityId,omitempty"`
	ActivityURL  string `json:"activityUrl,omitempty"`
	ActivityType string `json:"type"`
	Name         string `json:"name"`
	Color        string `json:"color"`
}

// Feature is one rendered route. Coordinates is never empty and every value
// in it is finite.
type Feature struct {
	ID          FeatureID         `json:"id"`
	Coordinates []Coordinate2D    `json:"coordinates"`
	Properties  FeatureProperties `json:"properties"`
}

// FeatureCollection is the full set of routes shown on a map. It replaces the
// map's route source wholesale.
type FeatureCollection struct {
	Features []Feature `json:"features"`
}

// Len returns the number of features.
func (fc FeatureCollection) Len() int {
	return len(fc.Features)
}

// Find returns the feature with the given id.
func (fc FeatureCollection) Find(id FeatureID) (Feature, bool) {
	for _, f := range fc.Features {
		if f.ID == id {
			return f, true
		}
	}
	return Feature{}, false
}
