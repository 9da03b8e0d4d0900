// Package storage defines the activity store used by the dashboard.
package storage

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/atlo/dashboard/pkg/core"
)

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = errors.New("storage: not found")

// ActivitySource yields the activities to render.
type ActivitySource interface {
	Activities(ctx context.Context, r core.DateRange) ([]core.Activity, error)
}

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	ActivitySource

	// Lifecycle
	Init() error
	Close() error

	// Upsert stores activities, replacing any with the same provider id.
	// It returns the number written.
	Upsert(ctx context.Context, activities []core.Activity) (int, error)
	Activity(ctx context.Context, id int64) (core.Activity, error)

	RecordSync(ctx context.Context, run SyncRun) error
	LastSync(ctx context.Context) (SyncRun, error)
}

// SyncRun summarises one provider fetch.
type SyncRun struct {
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
	Fetched   int           `json:"fetched"`
	Stored    int           `json:"stored"`
	Types     []string      `json:"types,omitempty"`
	Err       string        `json:"error,omitempty"`
}

// SortByDateDesc orders activities newest first. Ties keep their order.
func SortByDateDesc(activities []core.Activity) {
	sort.SliceStable(activities, func(i, j int) bool {
		return activities[i].Date.After(activities[j].Date)
	})
}
