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

// week52Entry is the hash-field encoding of one symbol's working copy,
// stamped with the session it was seeded for.
type week52Entry struct {
	Stat      models.Rolling52WeekStat `json:"stat"`
	SessionNo int64                    `json:"session_no"`
}

// RedisExtremes is the live 52-week working copy: one hash for the stats,
// one set per session for the dirty symbols.
type RedisExtremes struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedisExtremes(client *redis.Client, keyPrefix string) *RedisExtremes {
	if keyPrefix == "" {
		keyPrefix = "marketpulse"
	}
	return &RedisExtremes{client: client, keyPrefix: keyPrefix}
}

var _ domrepo.ExtremesHash = (*RedisExtremes)(nil)

// Seed bulk-copies the authoritative stats and clears the session's dirty
// set in one pipeline.
func (r *RedisExtremes) Seed(ctx context.Context, sessionNo int64, stats []*models.Rolling52WeekStat) error {
	pipe := r.client.TxPipeline()
	for _, stat := range stats {
		raw, err := json.Marshal(week52Entry{Stat: *stat, SessionNo: sessionNo})
		if err != nil {
			return fmt.Errorf("encode 52w %s: %w", stat.Symbol, err)
		}
		pipe.HSet(ctx, r.hashKey(), stat.Symbol, raw)
	}
	pipe.Del(ctx, r.dirtyKey(sessionNo))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("seed 52w: %w", err)
	}
	return nil
}

func (r *RedisExtremes) Get(ctx context.Context, symbol string) (*models.Rolling52WeekStat, int64, error) {
	raw, err := r.client.HGet(ctx, r.hashKey(), symbol).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("hget 52w %s: %w", symbol, err)
	}
	var e week52Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, 0, fmt.Errorf("decode 52w %s: %w", symbol, err)
	}
	return &e.Stat, e.SessionNo, nil
}

func (r *RedisExtremes) Set(ctx context.Context, symbol string, stat *models.Rolling52WeekStat, sessionNo int64) error {
	raw, err := json.Marshal(week52Entry{Stat: *stat, SessionNo: sessionNo})
	if err != nil {
		return fmt.Errorf("encode 52w %s: %w", symbol, err)
	}
	if err := r.client.HSet(ctx, r.hashKey(), symbol, raw).Err(); err != nil {
		return fmt.Errorf("hset 52w %s: %w", symbol, err)
	}
	return nil
}

func (r *RedisExtremes) MarkDirty(ctx context.Context, sessionNo int64, symbol string) error {
	if err := r.client.SAdd(ctx, r.dirtyKey(sessionNo), symbol).Err(); err != nil {
		return fmt.Errorf("sadd dirty %s: %w", symbol, err)
	}
	return nil
}

// DrainDirty returns and clears the session's dirty set atomically.
func (r *RedisExtremes) DrainDirty(ctx context.Context, sessionNo int64) ([]string, error) {
	pipe := r.client.TxPipeline()
	members := pipe.SMembers(ctx, r.dirtyKey(sessionNo))
	pipe.Del(ctx, r.dirtyKey(sessionNo))
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("drain dirty: %w", err)
	}
	return members.Val(), nil
}

func (r *RedisExtremes) hashKey() string {
	return fmt.Sprintf("%s:week52", r.keyPrefix)
}

func (r *RedisExtremes) dirtyKey(sessionNo int64) string {
	return fmt.Sprintf("%s:week52:dirty:%d", r.keyPrefix, sessionNo)
}
