package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
)

// latestBarTTL bounds how long the latest-flushed-minute cache lives.
const latestBarTTL = 48 * time.Hour

// RedisBarQueue is the closed-bar queue plus the live-bar working hashes.
// Checkout uses LMOVE into a per-market processing list, so a consumer crash
// leaves its batch recoverable instead of lost.
type RedisBarQueue struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedisBarQueue(client *redis.Client, keyPrefix string) *RedisBarQueue {
	if keyPrefix == "" {
		keyPrefix = "marketpulse"
	}
	return &RedisBarQueue{client: client, keyPrefix: keyPrefix}
}

var _ domrepo.BarQueue = (*RedisBarQueue)(nil)

func (r *RedisBarQueue) Push(ctx context.Context, market string, bar *models.OneMinuteBar) error {
	raw, err := json.Marshal(bar)
	if err != nil {
		return fmt.Errorf("encode bar %s: %w", bar.Symbol, err)
	}
	if err := r.client.LPush(ctx, r.queueKey(market), raw).Err(); err != nil {
		return fmt.Errorf("lpush bar: %w", err)
	}
	return nil
}

// Checkout atomically moves up to n items from the main queue into the
// processing list and returns them.
func (r *RedisBarQueue) Checkout(ctx context.Context, market string, n int) ([][]byte, error) {
	out := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		raw, err := r.client.LMove(ctx, r.queueKey(market), r.processingKey(market), "RIGHT", "LEFT").Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				break
			}
			return out, fmt.Errorf("lmove checkout: %w", err)
		}
		out = append(out, raw)
	}
	return out, nil
}

// Acknowledge permanently removes processed items from the processing list.
func (r *RedisBarQueue) Acknowledge(ctx context.Context, market string, items [][]byte) error {
	pipe := r.client.TxPipeline()
	for _, raw := range items {
		pipe.LRem(ctx, r.processingKey(market), 1, raw)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("ack bars: %w", err)
	}
	return nil
}

// Nack returns failed items to the main queue.
func (r *RedisBarQueue) Nack(ctx context.Context, market string, items [][]byte) error {
	pipe := r.client.TxPipeline()
	for _, raw := range items {
		pipe.LRem(ctx, r.processingKey(market), 1, raw)
		pipe.RPush(ctx, r.queueKey(market), raw)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("nack bars: %w", err)
	}
	return nil
}

// Recover drains items an earlier crashed consumer left in the processing
// list. The caller re-persists them; duplicates are harmless downstream.
func (r *RedisBarQueue) Recover(ctx context.Context, market string) ([][]byte, error) {
	raws, err := r.client.LRange(ctx, r.processingKey(market), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange processing: %w", err)
	}
	out := make([][]byte, 0, len(raws))
	for _, raw := range raws {
		out = append(out, []byte(raw))
	}
	return out, nil
}

func (r *RedisBarQueue) GetLive(ctx context.Context, market, symbol string) (*models.OneMinuteBar, error) {
	raw, err := r.client.HGet(ctx, r.liveKey(market), symbol).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("hget live bar %s: %w", symbol, err)
	}
	var bar models.OneMinuteBar
	if err := json.Unmarshal(raw, &bar); err != nil {
		return nil, fmt.Errorf("decode live bar %s: %w", symbol, err)
	}
	return &bar, nil
}

func (r *RedisBarQueue) SetLive(ctx context.Context, market string, bar *models.OneMinuteBar) error {
	raw, err := json.Marshal(bar)
	if err != nil {
		return fmt.Errorf("encode live bar %s: %w", bar.Symbol, err)
	}
	if err := r.client.HSet(ctx, r.liveKey(market), bar.Symbol, raw).Err(); err != nil {
		return fmt.Errorf("hset live bar %s: %w", bar.Symbol, err)
	}
	return nil
}

func (r *RedisBarQueue) CacheLatest(ctx context.Context, symbol string, minute time.Time) error {
	key := fmt.Sprintf("%s:bars:latest:%s", r.keyPrefix, symbol)
	if err := r.client.Set(ctx, key, minute.UTC().Format(time.RFC3339), latestBarTTL).Err(); err != nil {
		return fmt.Errorf("cache latest bar %s: %w", symbol, err)
	}
	return nil
}

func (r *RedisBarQueue) queueKey(market string) string {
	return fmt.Sprintf("%s:bars:pending:%s", r.keyPrefix, market)
}

func (r *RedisBarQueue) processingKey(market string) string {
	return fmt.Sprintf("%s:bars:working:%s", r.keyPrefix, market)
}

func (r *RedisBarQueue) liveKey(market string) string {
	return fmt.Sprintf("%s:bars:live:%s", r.keyPrefix, market)
}
