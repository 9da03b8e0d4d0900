package route

import (
	"encoding/json"
	"fmt"

	"github.com/atlo/dashboard/internal/geo"
	"github.com/atlo/dashboard/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// GeoJSON converts a collection to a simplefeatures GeoJSON collection.
// Routes with a single distinct position become points, everything else a
// line string. A route with no finite position has an empty geometry.
func GeoJSON(fc core.FeatureCollection) geom.GeoJSONFeatureCollection {
	out := make(geom.GeoJSONFeatureCollection, 0, len(fc.Features))
	for _, f := range fc.Features {
		out = append(out, geom.GeoJSONFeature{
			ID:         string(f.ID),
			Geometry:   featureGeometry(f),
			Properties: featureProperties(f),
		})
	}
	return out
}

// MarshalGeoJSON encodes a collection as a GeoJSON FeatureCollection.
func MarshalGeoJSON(fc core.FeatureCollection) ([]byte, error) {
	data, err := json.Marshal(GeoJSON(fc))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal geojson: %w", err)
	}
	return data, nil
}

func featureGeometry(f core.Feature) geom.Geometry {
	if len(f.Coordinates) == 0 {
		return geom.Geometry{}
	}
	if len(f.Coordinates) > 1 {
		if ls, err := geo.LineString(f.Coordinates); err == nil {
			return ls.AsGeometry()
		}
	}
	pt, err := geo.Point(f.Coordinates[0])
	if err != nil {
		return geom.Geometry{}
	}
	return pt.AsGeometry()
}

func featureProperties(f core.Feature) map[string]interface{} {
	props := map[string]interface{}{
		"type":  f.Properties.ActivityType,
		"name":  f.Properties.Name,
		"color": f.Properties.Color,
	}
	if f.Properties.ActivityID != nil {
		props["activityId"] = *f.Properties.ActivityID
	}
	if f.Properties.ActivityURL != "" {
		props["activityUrl"] = f.Properties.ActivityURL
	}
	return props
}
