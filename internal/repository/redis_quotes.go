package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
)

// RedisQuotes holds the latest per-symbol snapshot in one broker-layer hash.
// Absence of a snapshot means "skip this tick" and is reported as a nil
// quote, never an error.
type RedisQuotes struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedisQuotes(client *redis.Client, keyPrefix string) *RedisQuotes {
	if keyPrefix == "" {
		keyPrefix = "marketpulse"
	}
	return &RedisQuotes{client: client, keyPrefix: keyPrefix}
}

var _ domrepo.QuoteSource = (*RedisQuotes)(nil)

func (r *RedisQuotes) Latest(ctx context.Context, symbol string) (*models.Quote, error) {
	raw, err := r.client.HGet(ctx, r.key(), symbol).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("hget quote %s: %w", symbol, err)
	}
	var q models.Quote
	if err := json.Unmarshal(raw, &q); err != nil {
		return nil, fmt.Errorf("decode quote %s: %w", symbol, err)
	}
	return &q, nil
}

func (r *RedisQuotes) Publish(ctx context.Context, q *models.Quote) error {
	raw, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("encode quote %s: %w", q.Symbol, err)
	}
	if err := r.client.HSet(ctx, r.key(), q.Symbol, raw).Err(); err != nil {
		return fmt.Errorf("hset quote %s: %w", q.Symbol, err)
	}
	return nil
}

func (r *RedisQuotes) key() string {
	return fmt.Sprintf("%s:quotes", r.keyPrefix)
}
