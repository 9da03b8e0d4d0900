package route

import (
	"github.com/atlo/dashboard/internal/geo"
	"github.com/atlo/dashboard/pkg/core"
)

// FeatureBounds returns the envelope of one route.
func FeatureBounds(f core.Feature) core.Bounds {
	return geo.Envelope(f.Coordinates)
}

// Bounds returns the envelope of every route in the collection. It is empty
// for an empty collection.
func Bounds(fc core.FeatureCollection) core.Bounds {
	all := make([]core.Bounds, 0, len(fc.Features))
	for _, f := range fc.Features {
		all = append(all, FeatureBounds(f))
	}
	return geo.UnionBounds(all...)
}
