package strava

import (
	"errors"
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

const breakerName = "strava-api"

// newBreaker trips after five consecutive failures and tries again after
// a minute. Rejected tokens count as successes: retrying cannot fix them.
func newBreaker(log *slog.Logger) *gobreaker.CircuitBreaker[[]summaryActivity] {
	return gobreaker.NewCircuitBreaker[[]summaryActivity](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			trip := counts.ConsecutiveFailures >= 5
			if trip {
				log.Warn("Opening circuit", "failures", counts.ConsecutiveFailures)
			}
			return trip
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrUnauthorized)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info("Circuit state transition", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}
