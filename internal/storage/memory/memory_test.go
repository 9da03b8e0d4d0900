package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/atlo/dashboard/internal/storage"
	"github.com/atlo/dashboard/pkg/core"
)

// Verify Backend implements storage.Backend interface
var _ storage.Backend = (*Backend)(nil)

func ptr(v int64) *int64 { return &v }

var base = time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)

func TestNew(t *testing.T) {
	b := New()

	if b == nil {
		t.Fatal("New returned nil")
	}
	if b.byID == nil {
		t.Error("byID map not initialized")
	}
}

func TestInitAndClose(t *testing.T) {
	b := New()

	if err := b.Init(); err != nil {
		t.Errorf("Init returned error: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("Close returned error: %v", err)
	}
}

func TestUpsert_ReplacesByID(t *testing.T) {
	b := New()
	ctx := context.Background()

	n, err := b.Upsert(ctx, []core.Activity{
		{ID: ptr(1), Name: "first", Date: base},
		{ID: ptr(2), Name: "second", Date: base.Add(time.Hour)},
	})
	if err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 written, got %d", n)
	}

	if _, err := b.Upsert(ctx, []core.Activity{{ID: ptr(1), Name: "renamed", Date: base}}); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}

	got, err := b.Activity(ctx, 1)
	if err != nil {
		t.Fatalf("Activity returned error: %v", err)
	}
	if got.Name != "renamed" {
		t.Errorf("expected name=renamed, got %s", got.Name)
	}

	all, _ := b.Activities(ctx, core.DateRange{})
	if len(all) != 2 {
		t.Errorf("expected 2 activities, got %d", len(all))
	}
}

func TestUpsert_CopiesID(t *testing.T) {
	b := New()
	id := int64(5)
	_, _ = b.Upsert(context.Background(), []core.Activity{{ID: &id, Name: "x"}})

	id = 6
	got, err := b.Activity(context.Background(), 5)
	if err != nil {
		t.Fatalf("Activity returned error: %v", err)
	}
	if *got.ID != 5 {
		t.Errorf("stored id changed with caller's pointer: %d", *got.ID)
	}
}

func TestUpsert_WithoutID(t *testing.T) {
	b := New()
	ctx := context.Background()

	_, _ = b.Upsert(ctx, []core.Activity{{Name: "a", Date: base}, {Name: "b", Date: base}})

	all, _ := b.Activities(ctx, core.DateRange{})
	if len(all) != 2 {
		t.Errorf("expected 2 anonymous activities, got %d", len(all))
	}
}

func TestActivities_RangeAndOrder(t *testing.T) {
	b := New()
	ctx := context.Background()

	_, _ = b.Upsert(ctx, []core.Activity{
		{ID: ptr(1), Name: "old", Date: base.AddDate(0, -2, 0)},
		{ID: ptr(2), Name: "mid", Date: base},
		{ID: ptr(3), Name: "new", Date: base.AddDate(0, 0, 3)},
		{Name: "anon", Date: base.AddDate(0, 0, 1)},
	})

	got, err := b.Activities(ctx, core.DateRange{After: base.AddDate(0, 0, -1), Before: base.AddDate(0, 0, 5)})
	if err != nil {
		t.Fatalf("Activities returned error: %v", err)
	}

	want := []string{"new", "anon", "mid"}
	if len(got) != len(want) {
		t.Fatalf("expected %d activities, got %d", len(want), len(got))
	}
	for i, name := range want {
		if got[i].Name != name {
			t.Errorf("position %d: expected %s, got %s", i, name, got[i].Name)
		}
	}
}

func TestActivity_NotFound(t *testing.T) {
	b := New()
	_, err := b.Activity(context.Background(), 404)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSyncRuns(t *testing.T) {
	b := New()
	ctx := context.Background()

	if _, err := b.LastSync(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound before any sync, got %v", err)
	}

	_ = b.RecordSync(ctx, storage.SyncRun{StartedAt: base, Fetched: 10})
	_ = b.RecordSync(ctx, storage.SyncRun{StartedAt: base.Add(time.Hour), Fetched: 12})

	last, err := b.LastSync(ctx)
	if err != nil {
		t.Fatalf("LastSync returned error: %v", err)
	}
	if last.Fetched != 12 {
		t.Errorf("expected latest run, got fetched=%d", last.Fetched)
	}
}

func TestConcurrentAccess(t *testing.T) {
	b := New()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = b.Upsert(ctx, []core.Activity{{ID: ptr(int64(i)), Date: base}})
			_, _ = b.Activities(ctx, core.DateRange{})
		}(i)
	}
	wg.Wait()

	all, _ := b.Activities(ctx, core.DateRange{})
	if len(all) != 20 {
		t.Errorf("expected 20 activities, got %d", len(all))
	}
}
