package repository

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	domrepo "MarketPulse/internal/domain/repository"
)

// RedisActiveSet tracks the currently-open controlled markets in one
// broker-layer set. Add/Remove return the resulting size so the gate can
// detect the first-open and last-close edges.
type RedisActiveSet struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedisActiveSet(client *redis.Client, keyPrefix string) *RedisActiveSet {
	if keyPrefix == "" {
		keyPrefix = "marketpulse"
	}
	return &RedisActiveSet{client: client, keyPrefix: keyPrefix}
}

var _ domrepo.ActiveSet = (*RedisActiveSet)(nil)

func (r *RedisActiveSet) Add(ctx context.Context, market string) (int64, error) {
	pipe := r.client.TxPipeline()
	pipe.SAdd(ctx, r.key(), market)
	card := pipe.SCard(ctx, r.key())
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("active add %s: %w", market, err)
	}
	return card.Val(), nil
}

func (r *RedisActiveSet) Remove(ctx context.Context, market string) (int64, error) {
	pipe := r.client.TxPipeline()
	pipe.SRem(ctx, r.key(), market)
	card := pipe.SCard(ctx, r.key())
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("active remove %s: %w", market, err)
	}
	return card.Val(), nil
}

func (r *RedisActiveSet) Members(ctx context.Context) ([]string, error) {
	members, err := r.client.SMembers(ctx, r.key()).Result()
	if err != nil {
		return nil, fmt.Errorf("active members: %w", err)
	}
	return members, nil
}

func (r *RedisActiveSet) key() string {
	return fmt.Sprintf("%s:markets:active", r.keyPrefix)
}
