// Package memory keeps activities in process memory.
package memory

import (
	"context"
	"sync"

	"github.com/atlo/dashboard/internal/storage"
	"github.com/atlo/dashboard/pkg/core"
)

// Backend stores activities in memory
type Backend struct {
	byID  map[int64]core.Activity // keyed by provider id
	anon  []core.Activity
	syncs []storage.SyncRun

	mu sync.RWMutex
}

// New creates a new memory backend
func New() *Backend {
	return &Backend{
		byID: make(map[int64]core.Activity),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// Upsert stores activities keyed by provider id. Activities without an id
// are appended.
func (b *Backend) Upsert(_ context.Context, activities []core.Activity) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, a := range activities {
		if a.ID == nil {
			b.anon = append(b.anon, a)
			continue
		}
		id := *a.ID
		a.ID = &id
		b.byID[id] = a
	}
	return len(activities), nil
}

// Activities returns the activities within r, newest first.
func (b *Backend) Activities(_ context.Context, r core.DateRange) ([]core.Activity, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]core.Activity, 0, len(b.byID)+len(b.anon))
	for _, a := range b.byID {
		if r.Contains(a.Date) {
			out = append(out, a)
		}
	}
	for _, a := range b.anon {
		if r.Contains(a.Date) {
			out = append(out, a)
		}
	}
	storage.SortByDateDesc(out)
	return out, nil
}

// Activity looks up an activity by provider id.
func (b *Backend) Activity(_ context.Context, id int64) (core.Activity, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	a, ok := b.byID[id]
	if !ok {
		return core.Activity{}, storage.ErrNotFound
	}
	return a, nil
}

// RecordSync appends a sync summary.
func (b *Backend) RecordSync(_ context.Context, run storage.SyncRun) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.syncs = append(b.syncs, run)
	return nil
}

// LastSync returns the most recent sync summary.
func (b *Backend) LastSync(_ context.Context) (storage.SyncRun, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.syncs) == 0 {
		return storage.SyncRun{}, storage.ErrNotFound
	}
	return b.syncs[len(b.syncs)-1], nil
}
