package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const statusKeyPrefix = "subscription:status:"

// StatusSnapshot is the billing state the polling guard and status endpoint
// need. It is never written back to the user store.
type StatusSnapshot struct {
	SubscriptionStatus string `json:"subscription_status"`
	PaymentCompleted   bool   `json:"payment_completed"`
}

// StatusCache keeps short-lived subscription snapshots so that browser polling
// does not hit the database every two seconds.
type StatusCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStatusCache(client *redis.Client, ttl time.Duration) *StatusCache {
	return &StatusCache{client: client, ttl: ttl}
}

// Get returns the cached snapshot; ok is false on a miss or any cache error.
func (c *StatusCache) Get(ctx context.Context, userID string) (StatusSnapshot, bool) {
	var snap StatusSnapshot
	if c == nil || c.client == nil || c.ttl <= 0 {
		return snap, false
	}
	raw, err := c.client.Get(ctx, statusKeyPrefix+userID).Bytes()
	if err != nil {
		return snap, false
	}
	if err := json.Unmarshal(raw, &snap); err != nil {
		return snap, false
	}
	return snap, true
}

func (c *StatusCache) Set(ctx context.Context, userID string, snap StatusSnapshot) error {
	if c == nil || c.client == nil || c.ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, statusKeyPrefix+userID, data, c.ttl).Err()
}

// Invalidate drops the snapshot after a billing write.
func (c *StatusCache) Invalidate(ctx context.Context, userID string) error {
	if c == nil || c.client == nil {
		return nil
	}
	err := c.client.Del(ctx, statusKeyPrefix+userID).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}
