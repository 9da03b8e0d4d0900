// Package gormstorage implements storage.Backend on top of GORM. The same
// code serves SQLite and PostgreSQL; the dialect is chosen by whoever opens
// the *gorm.DB.
package gormstorage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/atlo/dashboard/internal/model"
	"github.com/atlo/dashboard/internal/model/convert"
	"github.com/atlo/dashboard/internal/storage"
	"github.com/atlo/dashboard/pkg/core"
)

const upsertBatchSize = 200

// Dependencies holds injected dependencies for the GORM backend.
type Dependencies struct {
	DB     *gorm.DB
	Logger *slog.Logger
}

// Backend stores activities through GORM.
type Backend struct {
	db  *gorm.DB
	log *slog.Logger
}

// New creates a GORM backend. The schema is migrated by Init.
func New(deps Dependencies) *Backend {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Backend{db: deps.DB, log: log.With("component", "storage.gorm")}
}

// Init migrates the schema.
func (b *Backend) Init() error {
	if err := b.db.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (b *Backend) Close() error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Upsert writes activities. Rows with a provider id replace the existing
// row for that id.
func (b *Backend) Upsert(ctx context.Context, activities []core.Activity) (int, error) {
	// a provider id may only appear once per statement; the last one wins
	var keyed, anon []model.Activity
	seen := make(map[int64]int)
	for _, a := range activities {
		m := convert.ActivityToModel(a)
		if !m.ProviderID.Valid {
			anon = append(anon, m)
			continue
		}
		if i, ok := seen[m.ProviderID.Int64]; ok {
			keyed[i] = m
			continue
		}
		seen[m.ProviderID.Int64] = len(keyed)
		keyed = append(keyed, m)
	}

	err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(keyed) > 0 {
			err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "provider_id"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"updated_at", "polyline", "path", "activity_type", "name", "start_time",
					"distance_m", "moving_time_s", "elevation_gain_m", "gear_id",
				}),
			}).CreateInBatches(keyed, upsertBatchSize).Error
			if err != nil {
				return err
			}
		}
		if len(anon) > 0 {
			if err := tx.CreateInBatches(anon, upsertBatchSize).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("upsert activities: %w", err)
	}

	b.log.Debug("Stored activities", "count", len(activities))
	return len(activities), nil
}

// Activities returns the activities within r, newest first.
func (b *Backend) Activities(ctx context.Context, r core.DateRange) ([]core.Activity, error) {
	q := b.db.WithContext(ctx).Model(&model.Activity{})
	if !r.After.IsZero() {
		q = q.Where("start_time >= ?", r.After.UTC())
	}
	if !r.Before.IsZero() {
		q = q.Where("start_time <= ?", r.Before.UTC())
	}

	var rows []model.Activity
	if err := q.Order("start_time desc").Order("id asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query activities: %w", err)
	}

	out := make([]core.Activity, len(rows))
	for i, row := range rows {
		out[i] = convert.ActivityToCore(row)
	}
	return out, nil
}

// Activity looks up an activity by provider id.
func (b *Backend) Activity(ctx context.Context, id int64) (core.Activity, error) {
	var row model.Activity
	err := b.db.WithContext(ctx).Where("provider_id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return core.Activity{}, storage.ErrNotFound
	}
	if err != nil {
		return core.Activity{}, fmt.Errorf("query activity %d: %w", id, err)
	}
	return convert.ActivityToCore(row), nil
}

// RecordSync stores a sync summary.
func (b *Backend) RecordSync(ctx context.Context, run storage.SyncRun) error {
	row := convert.SyncRunToModel(convert.SyncRunFields(run))
	if err := b.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("record sync: %w", err)
	}
	return nil
}

// LastSync returns the most recent sync summary.
func (b *Backend) LastSync(ctx context.Context) (storage.SyncRun, error) {
	var row model.SyncRun
	err := b.db.WithContext(ctx).Order("started_at desc").Order("id desc").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return storage.SyncRun{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.SyncRun{}, fmt.Errorf("query last sync: %w", err)
	}
	fields, err := convert.SyncRunToFields(row)
	if err != nil {
		return storage.SyncRun{}, err
	}
	return storage.SyncRun(fields), nil
}
