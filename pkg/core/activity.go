// Package core holds the types shared between the route pipeline, the map
// controller and the storage backends.
package core

import "time"

// Activity is one GPS-tagged workout as returned by the provider.
// An empty Polyline means the activity carries no geometry.
type Activity struct {
	ID             *int64    `json:"id,omitempty"`
	Polyline       string    `json:"polyline,omitempty"`
	Type           string    `json:"type"`
	Name           string    `json:"name"`
	Date           time.Time `json:"date"`
	DistanceM      float64   `json:"distance"`
	MovingTimeS    float64   `json:"movingTime"`
	ElevationGainM float64   `json:"elevationGain"`
	GearID         string    `json:"gearId,omitempty"`
}

// HasGeometry reports whether the activity has an encoded route.
func (a Activity) HasGeometry() bool {
	return a.Polyline != ""
}

// DateRange bounds an activity query. A zero After or Before is open-ended.
type DateRange struct {
	After  time.Time
	Before time.Time
}

// LastYear returns the range covering the year up to now.
func LastYear(now time.Time) DateRange {
	return DateRange{After: now.AddDate(-1, 0, 0), Before: now}
}

// Contains reports whether t falls within the range (inclusive).
func (r DateRange) Contains(t time.Time) bool {
	if !r.After.IsZero() && t.Before(r.After) {
		return false
	}
	if !r.Before.IsZero() && t.After(r.Before) {
		return false
	}
	return true
}
