// Package card renders a poster of activity routes laid out on a grid.
// Sizes are in metres of printed card.
package card

import (
	"fmt"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/atlo/dashboard/internal/geo"
	"github.com/atlo/dashboard/pkg/core"
)

const metresPerInch = 0.0254

// Config sets the card size and resolution.
type Config struct {
	Width   float64
	Height  float64
	Spacing float64
	DPI     int
}

// DefaultConfig is an A6 landscape card at 300 dpi.
func DefaultConfig() Config {
	return Config{Width: 0.148, Height: 0.105, Spacing: 0.001, DPI: 300}
}

var (
	defaultColor = color.RGBA{R: 0x55, G: 0x55, B: 0x55, A: 0xff}
	typeColors   = map[string]color.RGBA{
		"Run":       {R: 0x2a, G: 0x3b, B: 0x3a, A: 0xff},
		"NordicSki": {R: 0xa7, G: 0x18, B: 0x19, A: 0xff},
		"Ride":      {R: 0x73, G: 0xba, B: 0x9b, A: 0xff},
		"Hike":      {R: 0xc3, G: 0x6d, B: 0x52, A: 0xff},
		"Swim":      {R: 0x18, G: 0x7c, B: 0x9d, A: 0xff},
	}
)

// TypeColor returns the stroke colour for an activity type.
func TypeColor(activityType string) color.Color {
	if c, ok := typeColors[activityType]; ok {
		return c
	}
	return defaultColor
}

// GridSize picks rows and columns for n routes so that cells roughly follow
// the card's aspect ratio.
func GridSize(n int, cfg Config) (nrow, ncol int) {
	if n <= 0 {
		return 0, 0
	}
	ratio := cfg.Width / cfg.Height
	ncol = int(math.Ceil(math.Sqrt(ratio * float64(n))))
	nrow = int(math.Ceil(float64(n) / float64(ncol)))
	for nrow*ncol < n {
		ncol++
		nrow = int(math.Ceil(float64(n) / float64(ncol)))
	}
	return nrow, ncol
}

// Cell is one route placed on the card.
type Cell struct {
	Index  int // position in the input slice
	Type   string
	Row    int
	Col    int
	Points plotter.XYs
}

// Layout decodes each activity, stretches its route to fill one grid cell
// and places the cells column by column starting at the top left.
// Activities without geometry are skipped.
func Layout(activities []core.Activity, cfg Config) []Cell {
	type route struct {
		index int
		xy    plotter.XYs
	}
	var routes []route
	for i, a := range activities {
		xy := project(a.Polyline)
		if len(xy) == 0 {
			continue
		}
		routes = append(routes, route{index: i, xy: xy})
	}

	nrow, ncol := GridSize(len(routes), cfg)
	if nrow == 0 {
		return nil
	}
	cellW := (cfg.Width - float64(ncol+1)*cfg.Spacing) / float64(ncol)
	cellH := (cfg.Height - float64(nrow+1)*cfg.Spacing) / float64(nrow)

	cells := make([]Cell, 0, len(routes))
	row, col := nrow-1, 0
	for _, r := range routes {
		x0 := cfg.Spacing + float64(col)*(cellW+cfg.Spacing)
		y0 := cfg.Spacing + float64(row)*(cellH+cfg.Spacing)
		cells = append(cells, Cell{
			Index:  r.index,
			Type:   activities[r.index].Type,
			Row:    row,
			Col:    col,
			Points: fit(r.xy, x0, y0, cellW, cellH),
		})

		if row == 0 {
			row = nrow - 1
			col++
		} else {
			row--
		}
	}
	return cells
}

// project decodes a polyline into Web Mercator metres.
func project(encoded string) plotter.XYs {
	points := geo.DecodePolyline(encoded)
	xy := make(plotter.XYs, 0, len(points))
	for _, p := range points {
		x, y := geo.WebMercator(core.Coordinate2D{Lon: p.Lng, Lat: p.Lat})
		if !geo.Finite(x, y) {
			continue
		}
		xy = append(xy, plotter.XY{X: x, Y: y})
	}
	return xy
}

// fit scales each axis independently so the route spans the cell. A route
// with no extent along an axis sits on the cell's lower or left edge.
func fit(xy plotter.XYs, x0, y0, w, h float64) plotter.XYs {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range xy {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	sx, sy := 0.0, 0.0
	if maxX > minX {
		sx = w / (maxX - minX)
	}
	if maxY > minY {
		sy = h / (maxY - minY)
	}

	out := make(plotter.XYs, len(xy))
	for i, p := range xy {
		out[i] = plotter.XY{X: x0 + (p.X-minX)*sx, Y: y0 + (p.Y-minY)*sy}
	}
	return out
}

// Plot builds the poster as a gonum plot with hidden axes spanning the card.
func Plot(activities []core.Activity, cfg Config) (*plot.Plot, error) {
	p := plot.New()
	p.HideAxes()
	p.X.Min, p.X.Max = 0, cfg.Width
	p.Y.Min, p.Y.Max = 0, cfg.Height

	for _, c := range Layout(activities, cfg) {
		line, err := plotter.NewLine(c.Points)
		if err != nil {
			return nil, fmt.Errorf("route %d: %w", c.Index, err)
		}
		line.Color = TypeColor(c.Type)
		line.Width = vg.Points(0.5)
		p.Add(line)
	}
	return p, nil
}

// WritePNG renders the poster as PNG at cfg.DPI.
func WritePNG(w io.Writer, activities []core.Activity, cfg Config) error {
	p, err := Plot(activities, cfg)
	if err != nil {
		return err
	}

	width := vg.Length(cfg.Width/metresPerInch) * vg.Inch
	height := vg.Length(cfg.Height/metresPerInch) * vg.Inch
	canvas := vgimg.NewWith(vgimg.UseWH(width, height), vgimg.UseDPI(cfg.DPI))
	p.Draw(draw.New(canvas))

	if _, err := (vgimg.PngCanvas{Canvas: canvas}).WriteTo(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}
