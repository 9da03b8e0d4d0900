package card

import (
	"bytes"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlo/dashboard/internal/geo"
	"github.com/atlo/dashboard/pkg/core"
)

func TestGridSize(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		n          int
		nrow, ncol int
	}{
		{0, 0, 0},
		{1, 1, 2},
		{2, 1, 2},
		{4, 2, 3},
		{10, 3, 4},
		{100, 9, 12},
	}
	for _, tt := range tests {
		nrow, ncol := GridSize(tt.n, cfg)
		assert.Equal(t, tt.nrow, nrow, "rows for %d", tt.n)
		assert.Equal(t, tt.ncol, ncol, "cols for %d", tt.n)
		assert.GreaterOrEqual(t, nrow*ncol, tt.n)
	}
}

func TestTypeColor(t *testing.T) {
	assert.Equal(t, color.RGBA{R: 0x73, G: 0xba, B: 0x9b, A: 0xff}, TypeColor("Ride"))
	assert.Equal(t, color.RGBA{R: 0x2a, G: 0x3b, B: 0x3a, A: 0xff}, TypeColor("Run"))
	assert.Equal(t, defaultColor, TypeColor("Kitesurf"))
}

func activity(typ string, pts ...core.LatLng) core.Activity {
	return core.Activity{Type: typ, Polyline: geo.EncodePolyline(pts)}
}

func sampleActivities() []core.Activity {
	return []core.Activity{
		activity("Run", core.LatLng{Lat: 47.0, Lng: 8.0}, core.LatLng{Lat: 47.01, Lng: 8.02}, core.LatLng{Lat: 47.02, Lng: 8.01}),
		{Type: "Ride"},
		activity("Ride", core.LatLng{Lat: 46.5, Lng: 7.5}, core.LatLng{Lat: 46.6, Lng: 7.7}),
		activity("Hike", core.LatLng{Lat: 45.9, Lng: 6.8}, core.LatLng{Lat: 45.95, Lng: 6.8}),
	}
}

func TestLayout_SkipsEmptyAndFillsColumns(t *testing.T) {
	cfg := DefaultConfig()
	cells := Layout(sampleActivities(), cfg)

	require.Len(t, cells, 3)
	assert.Equal(t, []int{0, 2, 3}, []int{cells[0].Index, cells[1].Index, cells[2].Index})

	// three routes fit a single row
	nrow, ncol := GridSize(3, cfg)
	assert.Equal(t, 1, nrow)
	assert.Equal(t, 3, ncol)
	for i, c := range cells {
		assert.Equal(t, 0, c.Row)
		assert.Equal(t, i, c.Col)
	}
}

func TestLayout_PointsStayInCell(t *testing.T) {
	cfg := DefaultConfig()
	cells := Layout(sampleActivities(), cfg)
	nrow, ncol := GridSize(len(cells), cfg)
	cellW := (cfg.Width - float64(ncol+1)*cfg.Spacing) / float64(ncol)
	cellH := (cfg.Height - float64(nrow+1)*cfg.Spacing) / float64(nrow)

	for _, c := range cells {
		x0 := cfg.Spacing + float64(c.Col)*(cellW+cfg.Spacing)
		y0 := cfg.Spacing + float64(c.Row)*(cellH+cfg.Spacing)
		for _, p := range c.Points {
			assert.GreaterOrEqual(t, p.X, x0-1e-12)
			assert.LessOrEqual(t, p.X, x0+cellW+1e-12)
			assert.GreaterOrEqual(t, p.Y, y0-1e-12)
			assert.LessOrEqual(t, p.Y, y0+cellH+1e-12)
		}
	}
}

func TestLayout_DegenerateAxis(t *testing.T) {
	cfg := DefaultConfig()
	// north-south line has no east-west extent
	cells := Layout([]core.Activity{sampleActivities()[3]}, cfg)
	require.Len(t, cells, 1)
	for _, p := range cells[0].Points {
		assert.InDelta(t, cfg.Spacing, p.X, 1e-12)
	}
}

func TestLayout_Empty(t *testing.T) {
	assert.Nil(t, Layout(nil, DefaultConfig()))
	assert.Nil(t, Layout([]core.Activity{{Type: "Run"}}, DefaultConfig()))
}

func TestLayout_TopRowFirst(t *testing.T) {
	cfg := DefaultConfig()
	var acts []core.Activity
	for i := 0; i < 4; i++ {
		acts = append(acts, activity("Run", core.LatLng{Lat: 1, Lng: float64(i)}, core.LatLng{Lat: 2, Lng: float64(i) + 1}))
	}
	cells := Layout(acts, cfg)
	require.Len(t, cells, 4)

	// 2 rows x 3 cols, filled top to bottom then left to right
	assert.Equal(t, [2]int{1, 0}, [2]int{cells[0].Row, cells[0].Col})
	assert.Equal(t, [2]int{0, 0}, [2]int{cells[1].Row, cells[1].Col})
	assert.Equal(t, [2]int{1, 1}, [2]int{cells[2].Row, cells[2].Col})
	assert.Equal(t, [2]int{0, 1}, [2]int{cells[3].Row, cells[3].Col})
}

func TestWritePNG(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DPI = 100

	var buf bytes.Buffer
	require.NoError(t, WritePNG(&buf, sampleActivities(), cfg))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	b := img.Bounds()
	assert.InDelta(t, cfg.Width/metresPerInch*100, float64(b.Dx()), 1)
	assert.InDelta(t, cfg.Height/metresPerInch*100, float64(b.Dy()), 1)
}

func TestWritePNG_NoRoutes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePNG(&buf, nil, DefaultConfig()))
	assert.NotZero(t, buf.Len())
}
