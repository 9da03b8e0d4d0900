package strava

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/atlo/dashboard/internal/strava"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

type clientMetrics struct {
	pages      metric.Int64Counter
	activities metric.Int64Counter
}

func newClientMetrics() (*clientMetrics, error) {
	m := meter()
	cm := &clientMetrics{}

	var err error
	cm.pages, err = m.Int64Counter(
		"strava.pages",
		metric.WithDescription("Activity pages fetched"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating page counter: %w", err)
	}

	cm.activities, err = m.Int64Counter(
		"strava.activities",
		metric.WithDescription("Activities kept after dropping those without geometry"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating activity counter: %w", err)
	}

	return cm, nil
}
