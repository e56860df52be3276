package circuitbreaker

import (
	"time"

	"github.com/sony/gobreaker"
)

// New returns a breaker tuned for messaging gateways: trip after a 60%
// failure ratio over at least 3 calls, probe again after a minute.
func New(name string) *gobreaker.CircuitBreaker {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
	}
	return gobreaker.NewCircuitBreaker(settings)
}
