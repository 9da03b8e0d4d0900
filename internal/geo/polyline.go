package geo

import (
	"math"

	"github.com/atlo/dashboard/pkg/core"
	"github.com/twpayne/go-polyline"
)

const polylineScale = 1e5

// DecodePolyline decodes a Google encoded polyline (precision 1e-5) into
// latitude/longitude pairs.
//
// Decoding never fails. Input that ends partway through a value, or holds a
// byte outside the encoding alphabet, stops at the last pair whose latitude
// and longitude were both read; an empty string yields an empty slice.
func DecodePolyline(encoded string) []core.LatLng {
	points := make([]core.LatLng, 0, len(encoded)/4)
	buf := []byte(encoded)
	var lat, lng int
	for len(buf) > 0 {
		dlat, rest, err := polyline.DecodeInt(buf)
		if err != nil {
			break
		}
		dlng, rest, err := polyline.DecodeInt(rest)
		if err != nil {
			break
		}
		buf = rest
		lat += dlat
		lng += dlng
		points = append(points, core.LatLng{
			Lat: float64(lat) / polylineScale,
			Lng: float64(lng) / polylineScale,
		})
	}
	return points
}

// EncodePolyline is the inverse of DecodePolyline. Coordinates are rounded to
// 1e-5 degrees.
func EncodePolyline(points []core.LatLng) string {
	buf := make([]byte, 0, len(points)*8)
	var prevLat, prevLng int
	for _, p := range points {
		lat := int(math.Round(p.Lat * polylineScale))
		lng := int(math.Round(p.Lng * polylineScale))
		buf = polyline.EncodeInt(buf, lat-prevLat)
		buf = polyline.EncodeInt(buf, lng-prevLng)
		prevLat, prevLng = lat, lng
	}
	return string(buf)
}
