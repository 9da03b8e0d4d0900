package route

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/atlo/dashboard/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type geoJSONDoc struct {
	Type     string `json:"type"`
	Features []struct {
		ID       string                 `json:"id"`
		Geometry struct {
			Type string `json:"type"`
		} `json:"geometry"`
		Properties map[string]interface{} `json:"properties"`
	} `json:"features"`
}

func TestMarshalGeoJSON(t *testing.T) {
	fc := core.FeatureCollection{Features: []core.Feature{
		{
			ID:          "1",
			Coordinates: []core.Coordinate2D{{Lon: 1, Lat: 2}, {Lon: 3, Lat: 4}},
			Properties:  core.FeatureProperties{ActivityID: id(1), ActivityURL: "https://example.com/1", ActivityType: "Run", Name: "Morning"},
		},
		{
			ID:          "idx-1",
			Coordinates: []core.Coordinate2D{{Lon: 5, Lat: 6}},
			Properties:  core.FeatureProperties{ActivityType: "Swim"},
		},
	}}

	data, err := MarshalGeoJSON(fc)
	require.NoError(t, err)

	var doc geoJSONDoc
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "FeatureCollection", doc.Type)
	require.Len(t, doc.Features, 2)

	assert.Equal(t, "1", doc.Features[0].ID)
	assert.Equal(t, "LineString", doc.Features[0].Geometry.Type)
	assert.Equal(t, "https://example.com/1", doc.Features[0].Properties["activityUrl"])
	assert.Equal(t, "Run", doc.Features[0].Properties["type"])

	assert.Equal(t, "idx-1", doc.Features[1].ID)
	assert.Equal(t, "Point", doc.Features[1].Geometry.Type)
	assert.NotContains(t, doc.Features[1].Properties, "activityUrl")
}

func TestMarshalGeoJSON_DegenerateRoutes(t *testing.T) {
	tests := []struct {
		name   string
		coords []core.Coordinate2D
		want   string
	}{
		{"repeated position", []core.Coordinate2D{{Lon: 1, Lat: 2}, {Lon: 1, Lat: 2}}, "Point"},
		{"non-finite tail", []core.Coordinate2D{{Lon: 1, Lat: 2}, {Lon: math.NaN(), Lat: 2}}, "Point"},
		{"no finite position", []core.Coordinate2D{{Lon: math.Inf(1), Lat: 0}}, "GeometryCollection"},
		{"no coordinates", nil, "GeometryCollection"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := MarshalGeoJSON(core.FeatureCollection{Features: []core.Feature{{ID: "x", Coordinates: tt.coords}}})
			require.NoError(t, err)

			var doc geoJSONDoc
			require.NoError(t, json.Unmarshal(data, &doc))
			require.Len(t, doc.Features, 1)
			assert.Equal(t, tt.want, doc.Features[0].Geometry.Type)
		})
	}
}

func TestMarshalGeoJSON_Empty(t *testing.T) {
	data, err := MarshalGeoJSON(core.FeatureCollection{})
	require.NoError(t, err)

	var doc geoJSONDoc
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "FeatureCollection", doc.Type)
	assert.Empty(t, doc.Features)
}

func TestBounds(t *testing.T) {
	fc := core.FeatureCollection{Features: []core.Feature{
		{ID: "a", Coordinates: []core.Coordinate2D{{Lon: 1, Lat: 1}, {Lon: 2, Lat: 3}}},
		{ID: "b", Coordinates: []core.Coordinate2D{{Lon: -4, Lat: 0.5}}},
	}}

	assert.Equal(t, core.Bounds{MinLon: -4, MinLat: 0.5, MaxLon: 2, MaxLat: 3}, Bounds(fc))
	assert.Equal(t, core.Bounds{MinLon: -4, MinLat: 0.5, MaxLon: -4, MaxLat: 0.5}, FeatureBounds(fc.Features[1]))
	assert.True(t, Bounds(core.FeatureCollection{}).IsEmpty())
}

func TestWriteKML(t *testing.T) {
	fc := Build([]core.Activity{
		{ID: id(1), Name: "Col du Galibier", Polyline: samplePolyline},
		{ID: id(2), Polyline: "??"},
	})

	var buf bytes.Buffer
	require.NoError(t, WriteKML(&buf, "routes", fc))

	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, "<Placemark>"))
	assert.Contains(t, out, "<name>Col du Galibier</name>")
	assert.Contains(t, out, "<LineString>")
	assert.Contains(t, out, "<Point>")
	assert.Contains(t, out, "-120.2,38.5")
}
