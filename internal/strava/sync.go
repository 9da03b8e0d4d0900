package strava

import (
	"context"
	"fmt"
	"time"

	"github.com/atlo/dashboard/internal/route"
	"github.com/atlo/dashboard/internal/storage"
	"github.com/atlo/dashboard/pkg/core"
)

// Sync fetches activities in r from src and upserts them into dst. The run
// is recorded in dst whether or not it succeeded.
func Sync(ctx context.Context, src storage.ActivitySource, dst storage.Backend, r core.DateRange) (storage.SyncRun, error) {
	run := storage.SyncRun{StartedAt: time.Now().UTC()}

	activities, err := src.Activities(ctx, r)
	if err == nil {
		run.Fetched = len(activities)
		run.Types = route.Types(activities)[1:]
		run.Stored, err = dst.Upsert(ctx, activities)
	}
	run.Duration = time.Since(run.StartedAt)
	if err != nil {
		run.Err = err.Error()
	}

	if recErr := dst.RecordSync(ctx, run); recErr != nil && err == nil {
		err = recErr
	}
	if err != nil {
		return run, fmt.Errorf("sync activities: %w", err)
	}
	return run, nil
}
