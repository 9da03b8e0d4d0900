package server

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/atlo/dashboard/internal/route"
	"github.com/atlo/dashboard/pkg/core"
)

const dateLayout = "2006-01-02"

var errInvertedRange = errors.New("the start date has to be before the end date")

// parseRange reads after/before from q. Both accept a calendar date or an
// RFC 3339 timestamp; a date in before includes that whole day. Missing
// bounds default to the last year.
func parseRange(q url.Values, now time.Time) (core.DateRange, error) {
	r := core.LastYear(now)

	if v := q.Get("after"); v != "" {
		t, _, err := parseBound(v)
		if err != nil {
			return core.DateRange{}, fmt.Errorf("after: %w", err)
		}
		r.After = t
	}
	if v := q.Get("before"); v != "" {
		t, dateOnly, err := parseBound(v)
		if err != nil {
			return core.DateRange{}, fmt.Errorf("before: %w", err)
		}
		if dateOnly {
			t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		r.Before = t
	}

	if !r.Before.After(r.After) {
		return core.DateRange{}, errInvertedRange
	}
	return r, nil
}

func parseBound(v string) (time.Time, bool, error) {
	if t, err := time.Parse(dateLayout, v); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid time %q", v)
	}
	return t, false, nil
}

// activityType returns the type filter from q, "All" when absent.
func activityType(q url.Values) string {
	if v := q.Get("type"); v != "" {
		return v
	}
	return route.AllTypes
}
