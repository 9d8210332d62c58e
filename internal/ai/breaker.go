package ai

import (
	"log/slog"
	"time"

	"doc-analysis-platform/internal/telemetry"

	"github.com/sony/gobreaker"
)

// newBreaker trips when at least 3 requests in a 10s window fail at a 60%
// ratio and probes again after a minute.
func newBreaker(name string, logger *slog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			telemetry.CircuitBreakerTransitions.WithLabelValues(name, to.String()).Inc()
			if to == gobreaker.StateOpen {
				logger.Error("Circuit breaker opened, AI analysis degraded", "breaker", name, "from", from.String())
				return
			}
			logger.Info("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}
