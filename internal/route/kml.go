package route

import (
	"fmt"
	"io"

	"github.com/atlo/dashboard/pkg/core"
	kml "github.com/twpayne/go-kml"
)

// WriteKML writes the collection as a KML document with one placemark per
// route.
func WriteKML(w io.Writer, title string, fc core.FeatureCollection) error {
	children := make([]kml.Element, 0, len(fc.Features)+1)
	children = append(children, kml.Name(title))
	for _, f := range fc.Features {
		children = append(children, placemark(f))
	}
	if err := kml.KML(kml.Document(children...)).WriteIndent(w, "", "  "); err != nil {
		return fmt.Errorf("failed to write kml: %w", err)
	}
	return nil
}

func placemark(f core.Feature) kml.Element {
	coords := make([]kml.Coordinate, len(f.Coordinates))
	for i, c := range f.Coordinates {
		coords[i] = kml.Coordinate{Lon: c.Lon, Lat: c.Lat}
	}

	name := f.Properties.Name
	if name == "" {
		name = string(f.ID)
	}
	var shape kml.Element
	if len(coords) == 1 {
		shape = kml.Point(kml.Coordinates(coords...))
	} else {
		shape = kml.LineString(kml.Tessellate(true), kml.Coordinates(coords...))
	}
	return kml.Placemark(
		kml.Name(name),
		kml.Description(f.Properties.ActivityURL),
		shape,
	)
}
