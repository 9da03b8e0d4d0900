package geo

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Smoothing defaults.
const (
	DefaultSamplesPerSegment = 10
	DefaultAlpha             = 0.5
)

// Smooth densifies a path with a Catmull-Rom spline evaluated over every
// window of four consecutive control points. Each window contributes
// samplesPerSegment+1 points running from its second to its third control
// point, so the curve passes through every interior control point.
//
// alpha selects the knot parameterisation: 0 uniform, 0.5 centripetal,
// 1 chordal. Paths of fewer than four points are returned unchanged.
func Smooth(points []r3.Vec, samplesPerSegment int, alpha float64) []r3.Vec {
	if len(points) < 4 {
		return points
	}
	if samplesPerSegment < 1 {
		samplesPerSegment = 1
	}
	alpha = math.Max(0, math.Min(1, alpha))

	out := make([]r3.Vec, 0, (len(points)-3)*(samplesPerSegment+1))
	for i := 0; i+3 < len(points); i++ {
		out = appendSegment(out, points[i], points[i+1], points[i+2], points[i+3], samplesPerSegment, alpha)
	}
	return out
}

func appendSegment(out []r3.Vec, p0, p1, p2, p3 r3.Vec, samples int, alpha float64) []r3.Vec {
	t0 := 0.0
	t1 := nextKnot(t0, p0, p1, alpha)
	t2 := nextKnot(t1, p1, p2, alpha)
	t3 := nextKnot(t2, p2, p3, alpha)

	for j := 0; j <= samples; j++ {
		t := t1 + float64(j)/float64(samples)*(t2-t1)

		a1 := lerp(p0, p1, weight(t-t0, t1-t0))
		a2 := lerp(p1, p2, weight(t-t1, t2-t1))
		a3 := lerp(p2, p3, weight(t-t2, t3-t2))

		b1 := lerp(a1, a2, weight(t-t0, t2-t0))
		b2 := lerp(a2, a3, weight(t-t1, t3-t1))

		out = append(out, lerp(b1, b2, weight(t-t1, t2-t1)))
	}
	return out
}

func nextKnot(t float64, from, to r3.Vec, alpha float64) float64 {
	return t + math.Pow(r3.Norm(r3.Sub(to, from)), alpha)
}

// weight is the interpolation parameter over an interval of the given
// width; zero-width intervals weigh 0.
func weight(offset, width float64) float64 {
	if width == 0 {
		return 0
	}
	return offset / width
}

func lerp(a, b r3.Vec, t float64) r3.Vec {
	return r3.Add(a, r3.Scale(t, r3.Sub(b, a)))
}
