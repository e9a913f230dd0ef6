package usecase

import (
	"context"
	"sync"
	"time"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	"MarketPulse/internal/service/marketclock"
	"MarketPulse/pkg/logger"
)

// minDelay floors the rearm delay so clock jitter around a transition never
// produces a hot loop.
const minDelay = 500 * time.Millisecond

// idleRecheck is the rearm delay when no transition falls inside the clock
// horizon.
const idleRecheck = time.Hour

// TransitionHandler receives confirmed open/close flips. The gate implements
// it; handler errors are the handler's problem, the monitor always rearms.
type TransitionHandler interface {
	OnMarketOpen(ctx context.Context, m *models.Market)
	OnMarketClose(ctx context.Context, m *models.Market)
}

// Monitor owns one single-shot timer per controlled market. On fire it
// recomputes the actual open/closed status from the clock rather than
// trusting the scheduled guess, persists any flip, hands the transition to
// the gate, and rearms.
type Monitor struct {
	markets domrepo.MarketStore
	handler TransitionHandler
	metrics domrepo.Metrics
	log     *logger.Logger
	now     func() time.Time

	mu      sync.Mutex
	timers  map[string]*time.Timer
	running bool
}

func NewMonitor(markets domrepo.MarketStore, handler TransitionHandler, metrics domrepo.Metrics, log *logger.Logger) *Monitor {
	return &Monitor{
		markets: markets,
		handler: handler,
		metrics: metrics,
		log:     log,
		now:     time.Now,
		timers:  make(map[string]*time.Timer),
	}
}

// Start runs a synchronous reconciliation pass over all controlled markets,
// correcting stale status and capturing immediately, then arms one timer per
// market. Idempotent.
func (mon *Monitor) Start(ctx context.Context) error {
	mon.mu.Lock()
	if mon.running {
		mon.mu.Unlock()
		return nil
	}
	mon.running = true
	mon.mu.Unlock()

	markets, err := mon.markets.Controlled(ctx)
	if err != nil {
		return err
	}
	for _, m := range markets {
		mon.reconcile(ctx, m)
		mon.schedule(m.Key)
	}
	mon.log.Info("market monitor started", logger.Int("markets", len(markets)))
	return nil
}

// Stop cancels every timer. Idempotent.
func (mon *Monitor) Stop() {
	mon.mu.Lock()
	defer mon.mu.Unlock()
	if !mon.running {
		return
	}
	mon.running = false
	for key, t := range mon.timers {
		t.Stop()
		delete(mon.timers, key)
	}
	mon.log.Info("market monitor stopped")
}

// schedule arms exactly one timer for the market, cancelling any prior one.
func (mon *Monitor) schedule(key string) {
	mon.mu.Lock()
	defer mon.mu.Unlock()
	if !mon.running {
		return
	}

	delay := mon.delayFor(key)
	if prev, ok := mon.timers[key]; ok {
		prev.Stop()
	}
	mon.timers[key] = time.AfterFunc(delay, func() { mon.fire(key) })
	mon.log.Debug("market timer armed",
		logger.String("market", key),
		logger.Int64("delay_ms", delay.Milliseconds()))
}

func (mon *Monitor) delayFor(key string) time.Duration {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	m, err := mon.markets.Get(ctx, key)
	if err != nil {
		mon.log.Error("schedule: market lookup failed", logger.String("market", key), logger.Error(err))
		return idleRecheck
	}
	next := marketclock.NextTransition(m, mon.now())
	if next.IsZero() {
		return idleRecheck
	}
	delay := next.Sub(mon.now())
	if delay < minDelay {
		delay = minDelay
	}
	return delay
}

func (mon *Monitor) fire(key string) {
	mon.mu.Lock()
	running := mon.running
	mon.mu.Unlock()
	if !running {
		return
	}

	// one bad iteration must never permanently stall a market
	defer mon.schedule(key)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	m, err := mon.markets.Get(ctx, key)
	if err != nil {
		mon.log.Error("fire: market lookup failed", logger.String("market", key), logger.Error(err))
		return
	}
	mon.reconcile(ctx, m)
}

// reconcile recomputes the actual status and, when it differs from the
// persisted one, flips it and notifies the gate. Tolerates drift and missed
// fires because it never trusts the cached guess.
func (mon *Monitor) reconcile(ctx context.Context, m *models.Market) {
	res := marketclock.Evaluate(m, mon.now())
	if res.Status == m.Status {
		return
	}

	prev := m.Status
	if err := mon.markets.SetStatus(ctx, m.Key, res.Status); err != nil {
		mon.log.Error("persist transition failed",
			logger.String("market", m.Key),
			logger.String("to", string(res.Status)),
			logger.Error(err))
		return
	}
	m.Status = res.Status
	mon.metrics.RecordTransition(m.Key, string(res.Status))
	mon.log.Info("market transition",
		logger.String("market", m.Key),
		logger.String("from", string(prev)),
		logger.String("to", string(res.Status)),
		logger.String("reason", string(res.Reason)))

	switch {
	case res.Status == models.StatusOpen:
		if marketclock.TradingDay(m, mon.now()) {
			mon.handler.OnMarketOpen(ctx, m)
		}
	case prev == models.StatusOpen:
		mon.handler.OnMarketClose(ctx, m)
	}
}
