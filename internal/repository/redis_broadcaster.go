package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
)

// RedisBroadcaster publishes state-change events on a broker-layer pub/sub
// channel. Delivery is fire-and-forget; callers swallow errors.
type RedisBroadcaster struct {
	client  *redis.Client
	channel string
}

func NewRedisBroadcaster(client *redis.Client, channel string) *RedisBroadcaster {
	if channel == "" {
		channel = "marketpulse:events"
	}
	return &RedisBroadcaster{client: client, channel: channel}
}

var _ domrepo.Broadcaster = (*RedisBroadcaster)(nil)

func (r *RedisBroadcaster) Publish(ctx context.Context, ev *models.Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, raw).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}
