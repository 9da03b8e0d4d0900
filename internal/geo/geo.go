package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/atlo/dashboard/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// Finite reports whether every value is a real number.
func Finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// ParseLonLat parses a string in the format "lon,lat" into a map coordinate.
func ParseLonLat(s string) (core.Coordinate2D, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return core.Coordinate2D{}, ErrInvalidCoordinates
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return core.Coordinate2D{}, ErrInvalidCoordinates
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return core.Coordinate2D{}, ErrInvalidCoordinates
	}
	if !Finite(lon, lat) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return core.Coordinate2D{}, ErrInvalidCoordinates
	}
	return core.Coordinate2D{Lon: lon, Lat: lat}, nil
}

// WebMercator projects a WGS84 coordinate (EPSG:4326) to EPSG:3857 metres.
func WebMercator(c core.Coordinate2D) (x, y float64) {
	f := wgs84.EPSG().Transform(4326, 3857)
	x, y, _ = f(c.Lon, c.Lat, 0)
	return x, y
}

// FromWebMercator is the inverse of WebMercator.
func FromWebMercator(x, y float64) core.Coordinate2D {
	f := wgs84.EPSG().Transform(3857, 4326)
	lon, lat, _ := f(x, y, 0)
	return core.Coordinate2D{Lon: lon, Lat: lat}
}

// LineString builds an XY line string from map coordinates. The coordinates
// must be finite and hold at least two distinct positions.
func LineString(coords []core.Coordinate2D) (geom.LineString, error) {
	flat := make([]float64, 0, len(coords)*2)
	for _, c := range coords {
		flat = append(flat, c.Lon, c.Lat)
	}
	ls, err := geom.NewLineString(geom.NewSequence(flat, geom.DimXY))
	if err != nil {
		return geom.LineString{}, fmt.Errorf("failed to build line string: %w", err)
	}
	return ls, nil
}

// Point builds an XY point from a map coordinate.
func Point(c core.Coordinate2D) (geom.Point, error) {
	pt, err := geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: c.Lon, Y: c.Lat},
		Type: geom.DimXY,
	})
	if err != nil {
		return geom.Point{}, fmt.Errorf("failed to build point: %w", err)
	}
	return pt, nil
}

// Envelope returns the lon/lat bounds of the coordinates. Non-finite
// coordinates are skipped.
func Envelope(coords []core.Coordinate2D) core.Bounds {
	env := geom.Envelope{}
	for _, c := range coords {
		next, err := env.ExtendToIncludeXY(geom.XY{X: c.Lon, Y: c.Lat})
		if err != nil {
			continue
		}
		env = next
	}
	return boundsOf(env)
}

func boundsOf(env geom.Envelope) core.Bounds {
	lo, hi, ok := env.MinMaxXYs()
	if !ok {
		return core.EmptyBounds()
	}
	return core.Bounds{MinLon: lo.X, MinLat: lo.Y, MaxLon: hi.X, MaxLat: hi.Y}
}

// UnionBounds merges envelopes, skipping empty and non-finite ones.
func UnionBounds(bounds ...core.Bounds) core.Bounds {
	env := geom.Envelope{}
	for _, b := range bounds {
		if b.IsEmpty() {
			continue
		}
		box, err := geom.NewEnvelope([]geom.XY{{X: b.MinLon, Y: b.MinLat}, {X: b.MaxLon, Y: b.MaxLat}})
		if err != nil {
			continue
		}
		env = env.ExpandToIncludeEnvelope(box)
	}
	return boundsOf(env)
}
