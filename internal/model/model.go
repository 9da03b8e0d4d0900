package model

import (
	"database/sql"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

// DatabaseModels lists every table in the schema, in migration order.
var DatabaseModels = []interface{}{
	&Activity{},
	&SyncRun{},
}

// Activity is the stored form of a provider activity. ProviderID is null
// for activities imported without an id.
type Activity struct {
	ID             uint            `json:"-" gorm:"primarykey"`
	CreatedAt      time.Time       `json:"-"`
	UpdatedAt      time.Time       `json:"-"`
	ProviderID     sql.NullInt64   `json:"id" gorm:"uniqueIndex:idx_activity_provider_id"`
	Polyline       string          `json:"polyline" gorm:"type:text"`
	Path           geom.LineString `json:"-"`
	ActivityType   string          `json:"type" gorm:"size:64;index:idx_activity_type"`
	Name           string          `json:"name" gorm:"size:255"`
	StartTime      time.Time       `json:"date" gorm:"index:idx_activity_start_time"`
	DistanceM      float64         `json:"distance"`
	MovingTimeS    float64         `json:"movingTime"`
	ElevationGainM float64         `json:"elevationGain"`
	GearID         string          `json:"gearId" gorm:"size:64"`
}

func (*Activity) TableName() string {
	return "activities"
}

// SyncRun records one provider fetch.
type SyncRun struct {
	ID         uint           `json:"id" gorm:"primarykey"`
	StartedAt  time.Time      `json:"startedAt" gorm:"index:idx_sync_started_at"`
	DurationMs int64          `json:"durationMs"`
	Fetched    int            `json:"fetched"`
	Stored     int            `json:"stored"`
	Types      datatypes.JSON `json:"types"`
	Error      string         `json:"error" gorm:"size:500"`
}

func (*SyncRun) TableName() string {
	return "sync_runs"
}
