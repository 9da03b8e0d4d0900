package geo

import (
	"math"

	"github.com/atlo/dashboard/pkg/core"
	"gonum.org/v1/gonum/spatial/r3"
)

// WGS84 ellipsoid.
const (
	SemiMajorAxis = 6378137.0
	Flattening    = 1 / 298.257223563
	SemiMinorAxis = SemiMajorAxis * (1 - Flattening)

	eccSq       = 2*Flattening - Flattening*Flattening
	secondEccSq = (SemiMajorAxis*SemiMajorAxis - SemiMinorAxis*SemiMinorAxis) / (SemiMinorAxis * SemiMinorAxis)
)

const (
	degToRad = math.Pi / 180
	radToDeg = 180 / math.Pi
)

// GeodeticToECEF converts a WGS84 position to earth-centred earth-fixed
// metres. ok is false when any input is NaN or infinite.
func GeodeticToECEF(g core.Geodetic) (p r3.Vec, ok bool) {
	if !Finite(g.LatDeg, g.LonDeg, g.AltM) {
		return r3.Vec{}, false
	}
	sinLat, cosLat := math.Sincos(g.LatDeg * degToRad)
	sinLon, cosLon := math.Sincos(g.LonDeg * degToRad)
	n := primeVerticalRadius(sinLat)
	return r3.Vec{
		X: (n + g.AltM) * cosLat * cosLon,
		Y: (n + g.AltM) * cosLat * sinLon,
		Z: (n*(1-eccSq) + g.AltM) * sinLat,
	}, true
}

// ECEFToGeodetic converts earth-centred metres back to WGS84 using Bowring's
// closed form. The earth's centre maps to (0, 0, -a). Longitude is in
// (-180, 180]. ok is false when any input is NaN or infinite.
func ECEFToGeodetic(p r3.Vec) (g core.Geodetic, ok bool) {
	if !Finite(p.X, p.Y, p.Z) {
		return core.Geodetic{}, false
	}
	rho := math.Hypot(p.X, p.Y)
	if rho == 0 && p.Z == 0 {
		return core.Geodetic{AltM: -SemiMajorAxis}, true
	}

	lon := math.Atan2(p.Y, p.X)
	if lon <= -math.Pi {
		lon += 2 * math.Pi
	}

	sinT, cosT := math.Sincos(math.Atan2(p.Z*SemiMajorAxis, rho*SemiMinorAxis))
	lat := math.Atan2(
		p.Z+secondEccSq*SemiMinorAxis*sinT*sinT*sinT,
		rho-eccSq*SemiMajorAxis*cosT*cosT*cosT,
	)
	sinLat, cosLat := math.Sincos(lat)

	// Height projected on the normal; stays well-conditioned at the poles
	// where rho/cos(lat) does not.
	alt := rho*cosLat + p.Z*sinLat - SemiMajorAxis*math.Sqrt(1-eccSq*sinLat*sinLat)

	return core.Geodetic{LatDeg: lat * radToDeg, LonDeg: lon * radToDeg, AltM: alt}, true
}

func primeVerticalRadius(sinLat float64) float64 {
	return SemiMajorAxis / math.Sqrt(1-eccSq*sinLat*sinLat)
}

// ToECEF converts a batch of positions, dropping non-finite ones.
func ToECEF(points []core.Geodetic) []r3.Vec {
	out := make([]r3.Vec, 0, len(points))
	for _, g := range points {
		if p, ok := GeodeticToECEF(g); ok {
			out = append(out, p)
		}
	}
	return out
}

// ToGeodetic converts a batch of ECEF vectors, dropping non-finite ones.
func ToGeodetic(points []r3.Vec) []core.Geodetic {
	out := make([]core.Geodetic, 0, len(points))
	for _, p := range points {
		if g, ok := ECEFToGeodetic(p); ok {
			out = append(out, g)
		}
	}
	return out
}
