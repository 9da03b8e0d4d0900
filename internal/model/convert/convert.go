// Package convert maps between GORM models and core types.
package convert

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"

	"github.com/atlo/dashboard/internal/geo"
	"github.com/atlo/dashboard/internal/model"
	"github.com/atlo/dashboard/pkg/core"
)

// ActivityToModel converts a core.Activity to its stored form. The decoded
// route is kept alongside the encoded polyline.
func ActivityToModel(a core.Activity) model.Activity {
	m := model.Activity{
		Polyline:       a.Polyline,
		Path:           polylineToLineString(a.Polyline),
		ActivityType:   a.Type,
		Name:           a.Name,
		StartTime:      a.Date.UTC(),
		DistanceM:      a.DistanceM,
		MovingTimeS:    a.MovingTimeS,
		ElevationGainM: a.ElevationGainM,
		GearID:         a.GearID,
	}
	if a.ID != nil {
		m.ProviderID = sql.NullInt64{Int64: *a.ID, Valid: true}
	}
	return m
}

// ActivityToCore converts a stored activity back to a core.Activity.
func ActivityToCore(m model.Activity) core.Activity {
	a := core.Activity{
		Polyline:       m.Polyline,
		Type:           m.ActivityType,
		Name:           m.Name,
		Date:           m.StartTime.UTC(),
		DistanceM:      m.DistanceM,
		MovingTimeS:    m.MovingTimeS,
		ElevationGainM: m.ElevationGainM,
		GearID:         m.GearID,
	}
	if m.ProviderID.Valid {
		id := m.ProviderID.Int64
		a.ID = &id
	}
	return a
}

// LineStringToCoordinates flattens a stored path into map coordinates.
func LineStringToCoordinates(ls geom.LineString) []core.Coordinate2D {
	seq := ls.Coordinates()
	if seq.Length() == 0 {
		return nil
	}
	coords := make([]core.Coordinate2D, seq.Length())
	for i := 0; i < seq.Length(); i++ {
		pt := seq.GetXY(i)
		coords[i] = core.Coordinate2D{Lon: pt.X, Lat: pt.Y}
	}
	return coords
}

func polylineToLineString(encoded string) geom.LineString {
	points := geo.DecodePolyline(encoded)
	if len(points) < 2 {
		return geom.LineString{}
	}
	coords := make([]core.Coordinate2D, len(points))
	for i, p := range points {
		coords[i] = core.Coordinate2D{Lon: p.Lng, Lat: p.Lat}
	}
	ls, err := geo.LineString(coords)
	if err != nil {
		return geom.LineString{}
	}
	return ls
}

// SyncRunFields are the values recorded for one provider fetch.
type SyncRunFields struct {
	StartedAt time.Time
	Duration  time.Duration
	Fetched   int
	Stored    int
	Types     []string
	Err       string
}

// SyncRunToModel converts sync fields to their stored form.
func SyncRunToModel(f SyncRunFields) model.SyncRun {
	types := datatypes.JSON("[]")
	if len(f.Types) > 0 {
		types, _ = json.Marshal(f.Types)
	}
	return model.SyncRun{
		StartedAt:  f.StartedAt.UTC(),
		DurationMs: f.Duration.Milliseconds(),
		Fetched:    f.Fetched,
		Stored:     f.Stored,
		Types:      types,
		Error:      f.Err,
	}
}

// SyncRunToFields converts a stored sync run back to plain fields. An empty
// type list yields nil Types.
func SyncRunToFields(m model.SyncRun) (SyncRunFields, error) {
	var types []string
	if len(m.Types) > 0 {
		if err := json.Unmarshal(m.Types, &types); err != nil {
			return SyncRunFields{}, fmt.Errorf("failed to decode sync run types: %w", err)
		}
	}
	if len(types) == 0 {
		types = nil
	}
	return SyncRunFields{
		StartedAt: m.StartedAt.UTC(),
		Duration:  time.Duration(m.DurationMs) * time.Millisecond,
		Fetched:   m.Fetched,
		Stored:    m.Stored,
		Types:     types,
		Err:       m.Error,
	}, nil
}
