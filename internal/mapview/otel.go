package mapview

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/atlo/dashboard/internal/mapview"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

type controllerMetrics struct {
	geometryUpdates metric.Int64Counter
	styleSwaps      metric.Int64Counter
	reattachments   metric.Int64Counter
}

func newControllerMetrics() (*controllerMetrics, error) {
	m := meter()
	cm := &controllerMetrics{}

	var err error
	cm.geometryUpdates, err = m.Int64Counter(
		"mapview.geometry.updates",
		metric.WithDescription("Route collections applied to the map"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating geometry counter: %w", err)
	}

	cm.styleSwaps, err = m.Int64Counter(
		"mapview.style.swaps",
		metric.WithDescription("Base style changes requested"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating style swap counter: %w", err)
	}

	cm.reattachments, err = m.Int64Counter(
		"mapview.reattachments",
		metric.WithDescription("Route layer reattachments after a style settled"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating reattachment counter: %w", err)
	}

	return cm, nil
}
