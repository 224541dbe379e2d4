package redis

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"course-entitlement-platform/internal/usecase"
)

const eventKeyPrefix = "webhook:event:"

var _ usecase.ProcessedEventCache = (*EventCache)(nil)

// EventCache remembers processor event ids whose writes have committed, so
// redelivered webhooks can be acknowledged without touching the database.
// The marker is written only after processing succeeds; the TTL bounds the
// marker set, the database constraints stay the source of correctness after
// expiry.
type EventCache struct {
	cli RedisClient
	ttl time.Duration
}

func NewEventCache(cli RedisClient, ttl time.Duration) *EventCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &EventCache{cli: cli, ttl: ttl}
}

// Seen reports whether the event id was marked processed. A missing key and
// a cache error both read as unseen to the caller.
func (c *EventCache) Seen(ctx context.Context, eventID string) (bool, error) {
	_, err := c.cli.Get(ctx, eventKeyPrefix+eventID)
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// MarkProcessed records that the event's mandatory writes committed.
func (c *EventCache) MarkProcessed(ctx context.Context, eventID string) error {
	return c.cli.Set(ctx, eventKeyPrefix+eventID, "1", c.ttl)
}
