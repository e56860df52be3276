package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/havenloop/dispatch-api/pkg/logger"
	"github.com/havenloop/dispatch-api/pkg/metrics"
)

// allowScript is the whole check-and-increment as one atomic unit. The
// count is read before incrementing so a full window is denied without
// the stored count ever exceeding the max. The TTL set on the first hit
// resets the window outright once it expires.
var allowScript = redis.NewScript(`
local count = tonumber(redis.call('GET', KEYS[1]) or '0')
if count >= tonumber(ARGV[1]) then
    return 0
end
count = redis.call('INCR', KEYS[1])
if count == 1 then
    redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 1
`)

// Limiter tracks fixed-window operation counts per (user, operation) pair
// in redis, so the window holds across processes and restarts.
type Limiter struct {
	client  *redis.Client
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewLimiter(client *redis.Client, log *logger.Logger, m *metrics.Metrics) *Limiter {
	return &Limiter{
		client:  client,
		logger:  log,
		metrics: m,
	}
}

func key(userID, operation string) string {
	return fmt.Sprintf("ratelimit:%s:%s", userID, operation)
}

// Allow checks and increments in one step. When the store is unreachable
// it returns (false, err): the limiter itself fails closed, and callers
// with urgent traffic apply their fail-open policy on the returned error.
func (l *Limiter) Allow(ctx context.Context, userID, operation string, maxOperations int, window time.Duration) (bool, error) {
	if maxOperations <= 0 {
		l.observe("denied")
		return false, nil
	}

	res, err := allowScript.Run(ctx, l.client,
		[]string{key(userID, operation)},
		maxOperations, window.Milliseconds(),
	).Int()
	if err != nil {
		l.observe("error")
		l.logger.Error(err, "rate limit store unreachable", "user_id", userID, "operation", operation)
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}

	if res == 1 {
		l.observe("allowed")
		return true, nil
	}
	l.observe("denied")
	return false, nil
}

// Remaining reports how many operations are left in the live window
// without consuming any.
func (l *Limiter) Remaining(ctx context.Context, userID, operation string, maxOperations int) (int, error) {
	count, err := l.client.Get(ctx, key(userID, operation)).Int()
	if err != nil {
		if err == redis.Nil {
			return maxOperations, nil
		}
		return 0, fmt.Errorf("rate limit read failed: %w", err)
	}
	remaining := maxOperations - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

func (l *Limiter) observe(result string) {
	if l.metrics != nil {
		l.metrics.RateLimitDecisions.WithLabelValues(result).Inc()
	}
}
