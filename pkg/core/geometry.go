package core

import "math"

// LatLng is a decoded polyline vertex, in degrees.
type LatLng struct {
	Lat float64
	Lng float64
}

// Coordinate2D is a map coordinate in degrees, longitude first as GeoJSON
// orders it.
type Coordinate2D struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// Geodetic is a WGS84 position.
type Geodetic struct {
	LatDeg float64
	LonDeg float64
	AltM   float64
}

// Bounds is a lon/lat envelope.
type Bounds struct {
	MinLon float64 `json:"minLon"`
	MinLat float64 `json:"minLat"`
	MaxLon float64 `json:"maxLon"`
	MaxLat float64 `json:"maxLat"`
}

// EmptyBounds returns an envelope that contains nothing; extending it with
// any coordinate yields that coordinate's point envelope.
func EmptyBounds() Bounds {
	return Bounds{
		MinLon: math.Inf(1),
		MinLat: math.Inf(1),
		MaxLon: math.Inf(-1),
		MaxLat: math.Inf(-1),
	}
}

// IsEmpty reports whether the envelope contains no coordinate.
func (b Bounds) IsEmpty() bool {
	return b.MinLon > b.MaxLon || b.MinLat > b.MaxLat
}

// Center returns the midpoint of the envelope.
func (b Bounds) Center() Coordinate2D {
	return Coordinate2D{Lon: (b.MinLon + b.MaxLon) / 2, Lat: (b.MinLat + b.MaxLat) / 2}
}

// CameraView is the map camera state.
type CameraView struct {
	Center  Coordinate2D `json:"center"`
	Zoom    float64      `json:"zoom"`
	Bearing float64      `json:"bearing"`
	Pitch   float64      `json:"pitch"`
}
