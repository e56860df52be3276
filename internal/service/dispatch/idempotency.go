package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/havenloop/dispatch-api/internal/model"
)

// IdempotencyStore remembers which (key, channel) pairs already produced
// a sent outcome, so the dispatcher is safe inside an at-least-once retry
// framework upstream.
type IdempotencyStore interface {
	AlreadySent(ctx context.Context, key string, ch model.Channel) (bool, error)
	MarkSent(ctx context.Context, key string, ch model.Channel) error
}

type redisIdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewIdempotencyStore(client *redis.Client, ttl time.Duration) IdempotencyStore {
	return &redisIdempotencyStore{client: client, ttl: ttl}
}

func idemKey(key string, ch model.Channel) string {
	return fmt.Sprintf("idem:%s:%s", key, ch)
}

func (s *redisIdempotencyStore) AlreadySent(ctx context.Context, key string, ch model.Channel) (bool, error) {
	err := s.client.Get(ctx, idemKey(key, ch)).Err()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("idempotency check failed: %w", err)
	}
	return true, nil
}

func (s *redisIdempotencyStore) MarkSent(ctx context.Context, key string, ch model.Channel) error {
	if err := s.client.Set(ctx, idemKey(key, ch), "sent", s.ttl).Err(); err != nil {
		return fmt.Errorf("idempotency mark failed: %w", err)
	}
	return nil
}
