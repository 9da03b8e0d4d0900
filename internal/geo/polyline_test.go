package geo

import (
	"testing"

	"github.com/atlo/dashboard/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePolyline = "_p~iF~ps|U_ulLnnqC_mqNvxq`@"

func TestDecodePolyline_ReferenceString(t *testing.T) {
	points := DecodePolyline(samplePolyline)

	require.Len(t, points, 3)
	assert.Equal(t, core.LatLng{Lat: 38.5, Lng: -120.2}, points[0])
	assert.Equal(t, core.LatLng{Lat: 40.7, Lng: -120.95}, points[1])
	assert.Equal(t, core.LatLng{Lat: 43.252, Lng: -126.453}, points[2])
}

func TestDecodePolyline_Empty(t *testing.T) {
	points := DecodePolyline("")

	require.NotNil(t, points)
	assert.Empty(t, points)
}

func TestDecodePolyline_Truncated(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"latitude only", "_p~iF", 0},
		{"cut inside latitude", "_p~", 0},
		{"second pair missing longitude", "_p~iF~ps|U_ulL", 1},
		{"second pair longitude cut", "_p~iF~ps|U_ulLnnq", 1},
		{"dangling continuation byte", samplePolyline + "_", 3},
		{"byte below alphabet after first pair", "_p~iF~ps|U _ulLnnqC", 1},
		{"overlong continuation run", "_p~iF~ps|U" + "~~~~~~~~~~~~~~~~~~~~~~", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			points := DecodePolyline(tt.input)
			assert.Len(t, points, tt.want)
		})
	}
}

func TestDecodePolyline_GarbageNeverPanics(t *testing.T) {
	inputs := []string{"\x00\x01\x02", "~~~~~~~~~~~~~~~~~~~~~~", "    ", "é", string([]byte{0xff, 0xfe, 0x20})}
	for _, in := range inputs {
		assert.NotPanics(t, func() { DecodePolyline(in) })
	}
}

func TestEncodePolyline_ReferencePoints(t *testing.T) {
	points := []core.LatLng{
		{Lat: 38.5, Lng: -120.2},
		{Lat: 40.7, Lng: -120.95},
		{Lat: 43.252, Lng: -126.453},
	}
	assert.Equal(t, samplePolyline, EncodePolyline(points))
}

func TestEncodePolyline_InverseOfDecode(t *testing.T) {
	inputs := []string{
		samplePolyline,
		"",
		"??",
		"u{~vFvyys@fS]",
		"_ibE_seK_seK_seK",
	}
	for _, in := range inputs {
		assert.Equal(t, in, EncodePolyline(DecodePolyline(in)), "input %q", in)
	}
}

func TestEncodePolyline_RoundsToPrecision(t *testing.T) {
	encoded := EncodePolyline([]core.LatLng{{Lat: 51.4778812, Lng: -0.0014}})
	points := DecodePolyline(encoded)

	require.Len(t, points, 1)
	assert.InDelta(t, 51.47788, points[0].Lat, 1e-9)
	assert.InDelta(t, -0.0014, points[0].Lng, 1e-9)
}
