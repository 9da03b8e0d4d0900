// Package route turns provider activities into renderable route geometry.
package route

import (
	"fmt"
	"strconv"

	"github.com/atlo/dashboard/internal/geo"
	"github.com/atlo/dashboard/pkg/core"
)

// StravaActivityURL links a provider activity id to its public page.
func StravaActivityURL(id int64) string {
	return "https://www.strava.com/activities/" + strconv.FormatInt(id, 10)
}

// Options tunes the geometry pipeline.
type Options struct {
	SamplesPerSegment int
	Alpha             float64
	// ActivityURL builds the link opened when a route is clicked. Nil
	// disables links.
	ActivityURL func(id int64) string
}

// DefaultOptions returns centripetal smoothing with ten samples per segment.
func DefaultOptions() Options {
	return Options{
		SamplesPerSegment: geo.DefaultSamplesPerSegment,
		Alpha:             geo.DefaultAlpha,
		ActivityURL:       StravaActivityURL,
	}
}

// Builder runs the decode, project, smooth, re-project pipeline. It holds no
// state besides its options and is safe for concurrent use.
type Builder struct {
	opts Options
}

// NewBuilder creates a builder.
func NewBuilder(opts Options) *Builder {
	return &Builder{opts: opts}
}

// Build converts activities with default options.
func Build(activities []core.Activity) core.FeatureCollection {
	return NewBuilder(DefaultOptions()).Build(activities)
}

// Build converts every activity that carries geometry into a feature.
// Activities without a polyline, or whose polyline decodes to nothing, are
// skipped; the rest keep their input order.
func (b *Builder) Build(activities []core.Activity) core.FeatureCollection {
	fc := core.FeatureCollection{Features: make([]core.Feature, 0, len(activities))}
	for i, a := range activities {
		if f, ok := b.BuildFeature(i, a); ok {
			fc.Features = append(fc.Features, f)
		}
	}
	return fc
}

// BuildType builds the routes of one activity type; an empty type or AllTypes
// builds everything. Ids and colours come from each activity's position in the
// full list, so a route keeps them under every filter.
func (b *Builder) BuildType(activities []core.Activity, activityType string) core.FeatureCollection {
	fc := core.FeatureCollection{Features: make([]core.Feature, 0, len(activities))}
	for i, a := range activities {
		if !matchesType(a, activityType) {
			continue
		}
		if f, ok := b.BuildFeature(i, a); ok {
			fc.Features = append(fc.Features, f)
		}
	}
	return fc
}

// BuildFeature converts a single activity found at index in its list.
func (b *Builder) BuildFeature(index int, a core.Activity) (core.Feature, bool) {
	if !a.HasGeometry() {
		return core.Feature{}, false
	}

	decoded := geo.DecodePolyline(a.Polyline)
	flat := make([]core.Coordinate2D, 0, len(decoded))
	surface := make([]core.Geodetic, 0, len(decoded))
	for _, p := range decoded {
		if !geo.Finite(p.Lat, p.Lng) {
			continue
		}
		flat = append(flat, core.Coordinate2D{Lon: p.Lng, Lat: p.Lat})
		surface = append(surface, core.Geodetic{LatDeg: p.Lat, LonDeg: p.Lng})
	}
	if len(flat) == 0 {
		return core.Feature{}, false
	}

	coords := flat
	if smoothed := b.smooth(surface); len(smoothed) > 0 {
		coords = smoothed
	}

	return core.Feature{
		ID:          FeatureID(index, a),
		Coordinates: coords,
		Properties:  b.properties(index, a),
	}, true
}

// smooth returns nil when the path is too short to smooth.
func (b *Builder) smooth(surface []core.Geodetic) []core.Coordinate2D {
	ecef := geo.ToECEF(surface)
	if len(ecef) < 4 {
		return nil
	}
	curve := geo.ToGeodetic(geo.Smooth(ecef, b.opts.SamplesPerSegment, b.opts.Alpha))
	out := make([]core.Coordinate2D, 0, len(curve))
	for _, g := range curve {
		out = append(out, core.Coordinate2D{Lon: g.LonDeg, Lat: g.LatDeg})
	}
	return out
}

func (b *Builder) properties(index int, a core.Activity) core.FeatureProperties {
	props := core.FeatureProperties{
		ActivityType: a.Type,
		Name:         a.Name,
		Color:        Color(index),
	}
	if a.ID != nil {
		id := *a.ID
		props.ActivityID = &id
		if b.opts.ActivityURL != nil {
			props.ActivityURL = b.opts.ActivityURL(id)
		}
	}
	return props
}

// FeatureID is the activity id, or "idx-<index>" for activities without one.
func FeatureID(index int, a core.Activity) core.FeatureID {
	if a.ID != nil {
		return core.FeatureID(strconv.FormatInt(*a.ID, 10))
	}
	return core.FeatureID("idx-" + strconv.Itoa(index))
}

// Color spreads route colours around the hue circle by list position.
func Color(index int) string {
	hue := (index * 57) % 360
	if hue < 0 {
		hue += 360
	}
	return fmt.Sprintf("hsl(%d, 70%%, 55%%)", hue)
}
