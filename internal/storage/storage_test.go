package storage_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/atlo/dashboard/internal/storage"
	"github.com/atlo/dashboard/pkg/core"
)

func TestSortByDateDesc(t *testing.T) {
	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	activities := []core.Activity{
		{Name: "oldest", Date: base},
		{Name: "newest", Date: base.Add(48 * time.Hour)},
		{Name: "tie-a", Date: base.Add(24 * time.Hour)},
		{Name: "tie-b", Date: base.Add(24 * time.Hour)},
	}

	storage.SortByDateDesc(activities)

	var names []string
	for _, a := range activities {
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{"newest", "tie-a", "tie-b", "oldest"}, names)
}

func TestErrNotFound(t *testing.T) {
	assert.EqualError(t, storage.ErrNotFound, "storage: not found")
}
