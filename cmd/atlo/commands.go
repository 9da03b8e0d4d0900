package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/atlo/dashboard/internal/card"
	"github.com/atlo/dashboard/internal/engine/memory"
	"github.com/atlo/dashboard/internal/mapview"
	"github.com/atlo/dashboard/internal/route"
	"github.com/atlo/dashboard/internal/strava"
	"github.com/atlo/dashboard/pkg/core"
)

const renderTimeout = 5 * time.Second

// syncActivities pulls activities from Strava into the configured store.
// Bounds are calendar dates; missing bounds default to the last year.
func syncActivities(args []string) error {
	rng, err := dateRange(args, time.Now())
	if err != nil {
		return err
	}
	store, err := initStorage()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	client, err := newStravaClient()
	if err != nil {
		return err
	}

	txStart := time.Now()
	run, err := strava.Sync(context.Background(), client, store, rng)
	if err != nil {
		return err
	}
	fmt.Printf("Fetched %d activities, stored %d in %s\n", run.Fetched, run.Stored, time.Since(txStart).Round(time.Millisecond))
	if len(run.Types) > 0 {
		fmt.Println("Types:", strings.Join(run.Types, ", "))
	}
	return nil
}

type renderReport struct {
	Snapshot mapview.Snapshot `json:"snapshot"`
	Bounds   *core.Bounds     `json:"bounds,omitempty"`
}

// render drives a headless map through the same controller the dashboard
// uses and prints where the camera ends up.
func render(args []string) error {
	activities, err := loadActivities()
	if err != nil {
		return err
	}
	fc := newBuilder().BuildType(activities, argOr(args, 0, route.AllTypes))

	opts, err := mapOptions()
	if err != nil {
		return err
	}
	engine := memory.New(memory.Options{Loaded: true, Style: opts.Styles[opts.InitialStyle]})
	ctrl, err := mapview.New(engine, opts)
	if err != nil {
		return err
	}
	defer func() { _ = ctrl.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), renderTimeout)
	defer cancel()
	if err := ctrl.Start(ctx); err != nil {
		return err
	}
	if err := ctrl.SetGeometry(ctx, fc); err != nil {
		return err
	}

	report := renderReport{Snapshot: ctrl.Snapshot()}
	if len(fc.Features) > 0 {
		b := route.Bounds(fc)
		report.Bounds = &b
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func writeCard(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("card: output path required")
	}
	activities, err := loadActivities()
	if err != nil {
		return err
	}
	activities = route.Filter(activities, argOr(args, 1, route.AllTypes))

	f, err := os.Create(args[0])
	if err != nil {
		return fmt.Errorf("error creating file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := card.WritePNG(f, activities, cardConfig()); err != nil {
		return err
	}
	fmt.Println("Wrote card to", args[0])
	return nil
}

func export(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("export: format and output path required")
	}
	format, path := strings.ToLower(args[0]), args[1]
	if format != "geojson" && format != "kml" {
		return fmt.Errorf("export: unknown format %q", args[0])
	}
	activities, err := loadActivities()
	if err != nil {
		return err
	}
	fc := newBuilder().BuildType(activities, argOr(args, 2, route.AllTypes))

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating file: %w", err)
	}
	defer func() { _ = f.Close() }()

	switch format {
	case "geojson":
		data, err := route.MarshalGeoJSON(fc)
		if err != nil {
			return err
		}
		if _, err := f.Write(data); err != nil {
			return fmt.Errorf("error writing file: %w", err)
		}
	case "kml":
		if err := route.WriteKML(f, "Routes", fc); err != nil {
			return err
		}
	}
	fmt.Printf("Wrote %d routes to %s\n", len(fc.Features), path)
	return nil
}

// loadActivities reads the last year of activities from the configured
// store.
func loadActivities() ([]core.Activity, error) {
	store, err := initStorage()
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()

	activities, err := store.Activities(context.Background(), core.LastYear(time.Now()))
	if err != nil {
		return nil, err
	}
	return activities, nil
}

func dateRange(args []string, now time.Time) (core.DateRange, error) {
	r := core.LastYear(now)
	if v := argOr(args, 0, ""); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return core.DateRange{}, fmt.Errorf("after: %w", err)
		}
		r.After = t
	}
	if v := argOr(args, 1, ""); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return core.DateRange{}, fmt.Errorf("before: %w", err)
		}
		r.Before = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	if !r.Before.After(r.After) {
		return core.DateRange{}, fmt.Errorf("the start date has to be before the end date")
	}
	return r, nil
}

func argOr(args []string, i int, fallback string) string {
	if i < len(args) && args[i] != "" {
		return args[i]
	}
	return fallback
}
