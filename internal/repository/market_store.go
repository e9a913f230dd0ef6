package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	"MarketPulse/pkg/cache"
)

// ErrUnknownMarket is returned for lookups outside the configured set.
var ErrUnknownMarket = errors.New("unknown market")

// ConfigMarkets implements MarketStore over the configured market
// definitions, with live status persisted in the broker layer so every
// process observes the monitor's transitions.
type ConfigMarkets struct {
	cache cache.Service
	defs  map[string]*models.Market
	order []string
}

func NewConfigMarkets(cacheSvc cache.Service, defs []*models.Market) *ConfigMarkets {
	s := &ConfigMarkets{
		cache: cacheSvc,
		defs:  make(map[string]*models.Market, len(defs)),
	}
	for _, m := range defs {
		s.defs[m.Key] = m
		s.order = append(s.order, m.Key)
	}
	sort.Strings(s.order)
	return s
}

var _ domrepo.MarketStore = (*ConfigMarkets)(nil)

func (s *ConfigMarkets) All(ctx context.Context) ([]*models.Market, error) {
	out := make([]*models.Market, 0, len(s.order))
	for _, key := range s.order {
		m, err := s.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *ConfigMarkets) Controlled(ctx context.Context) ([]*models.Market, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, m := range all {
		if m.Control {
			out = append(out, m)
		}
	}
	return out, nil
}

// Get returns a copy of the definition with the live status resolved from
// the broker layer; an unset status defaults to CLOSED.
func (s *ConfigMarkets) Get(ctx context.Context, key string) (*models.Market, error) {
	def, ok := s.defs[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMarket, key)
	}

	m := *def
	var status string
	err := s.cache.Get(ctx, s.statusKey(key), &status)
	switch {
	case err == nil && status != "":
		m.Status = models.MarketStatus(status)
	case errors.Is(err, cache.ErrCacheMiss):
		m.Status = models.StatusClosed
	case err != nil:
		return nil, fmt.Errorf("status read %s: %w", key, err)
	}
	return &m, nil
}

func (s *ConfigMarkets) SetStatus(ctx context.Context, key string, status models.MarketStatus) error {
	if _, ok := s.defs[key]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMarket, key)
	}
	if err := s.cache.Set(ctx, s.statusKey(key), string(status), 0); err != nil {
		return fmt.Errorf("status write %s: %w", key, err)
	}
	return nil
}

func (s *ConfigMarkets) statusKey(key string) string {
	return fmt.Sprintf("markets:status:%s", key)
}
