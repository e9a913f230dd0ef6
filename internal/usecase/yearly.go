package usecase

import (
	"context"
	"strconv"
	"sync"
	"time"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	"MarketPulse/pkg/logger"
)

// DaySession identifies one global trading day (UTC) as YYYYMMDD. The
// 52-week tracker seeds once and finalizes once per day session.
func DaySession(t time.Time) int64 {
	n, _ := strconv.ParseInt(t.UTC().Format("20060102"), 10, 64)
	return n
}

// Yearly maintains the live per-symbol 52-week high/low working copy in the
// broker layer, seeded from and reconciled back to the durable store. Live
// ticks only touch the broker layer; durability comes from the once-per-
// session finalize over the dirty set.
type Yearly struct {
	store     domrepo.StatStore
	hash      domrepo.ExtremesHash
	broadcast domrepo.Broadcaster
	metrics   domrepo.Metrics
	log       *logger.Logger
	now       func() time.Time

	mu      sync.Mutex
	session int64 // set by Seed, in force until the next Seed
}

func NewYearly(store domrepo.StatStore, hash domrepo.ExtremesHash, broadcast domrepo.Broadcaster, metrics domrepo.Metrics, log *logger.Logger) *Yearly {
	return &Yearly{store: store, hash: hash, broadcast: broadcast, metrics: metrics, log: log, now: time.Now}
}

// activeSession is the session captured at seed time. Observations that
// arrive before any seed fall back to the current UTC day.
func (y *Yearly) activeSession() int64 {
	y.mu.Lock()
	defer y.mu.Unlock()
	if y.session != 0 {
		return y.session
	}
	return DaySession(y.now())
}

// Seed bulk-copies the authoritative highs/lows into the broker layer and
// clears the session's dirty set. Run once per session.
func (y *Yearly) Seed(ctx context.Context, sessionNo int64) error {
	stats, err := y.store.All52w(ctx)
	if err != nil {
		return err
	}
	if err := y.hash.Seed(ctx, sessionNo, stats); err != nil {
		return err
	}
	y.mu.Lock()
	y.session = sessionNo
	y.mu.Unlock()
	y.log.Info("52w working copy seeded",
		logger.Int64("session", sessionNo),
		logger.Int("symbols", len(stats)))
	return nil
}

// Observe compares one price against the symbol's working copy, re-seeding
// it when its stored session is stale, and returns a change payload only
// when a new extreme was set. The session number is the one captured at
// seed time, so an open window crossing UTC midnight keeps a single
// working copy and dirty set.
func (y *Yearly) Observe(ctx context.Context, symbol string, price float64, at time.Time) (*models.Week52Change, error) {
	if price <= 0 {
		return nil, nil
	}
	sessionNo := y.activeSession()

	stat, storedSession, err := y.hash.Get(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if stat == nil || storedSession != sessionNo {
		stat, err = y.reseed(ctx, sessionNo, symbol)
		if err != nil {
			return nil, err
		}
	}

	var change *models.Week52Change
	switch {
	case price > stat.High:
		stat.High, stat.HighAt = price, at
		change = &models.Week52Change{Symbol: symbol, Side: "high", Price: price, Touched: at}
	case stat.Low == 0 || price < stat.Low:
		stat.Low, stat.LowAt = price, at
		change = &models.Week52Change{Symbol: symbol, Side: "low", Price: price, Touched: at}
	}
	if change == nil {
		return nil, nil
	}

	if err := y.hash.Set(ctx, symbol, stat, sessionNo); err != nil {
		return nil, err
	}
	if err := y.hash.MarkDirty(ctx, sessionNo, symbol); err != nil {
		return nil, err
	}
	if y.broadcast != nil {
		ev := &models.Event{Kind: models.EventWeek52, Symbol: symbol, Payload: change, Timestamp: at}
		if perr := y.broadcast.Publish(ctx, ev); perr != nil {
			y.log.Warn("52w broadcast failed", logger.String("symbol", symbol), logger.Error(perr))
		}
	}
	return change, nil
}

// Finalize drains the seeded session's dirty set and upserts each symbol's
// working copy to the durable store. Per-symbol failures are isolated. Run
// once per session.
func (y *Yearly) Finalize(ctx context.Context) error {
	sessionNo := y.activeSession()
	dirty, err := y.hash.DrainDirty(ctx, sessionNo)
	if err != nil {
		return err
	}
	persisted := 0
	for _, sym := range dirty {
		stat, _, err := y.hash.Get(ctx, sym)
		if err != nil || stat == nil {
			y.metrics.RecordError("52w_finalize")
			y.log.Warn("52w finalize: read failed", logger.String("symbol", sym), logger.Error(err))
			continue
		}
		if err := y.store.Upsert52w(ctx, stat); err != nil {
			y.metrics.RecordError("52w_finalize")
			y.log.Warn("52w finalize: upsert failed", logger.String("symbol", sym), logger.Error(err))
			continue
		}
		persisted++
	}
	y.log.Info("52w finalize done",
		logger.Int64("session", sessionNo),
		logger.Int("dirty", len(dirty)),
		logger.Int("persisted", persisted))
	return nil
}

func (y *Yearly) reseed(ctx context.Context, sessionNo int64, symbol string) (*models.Rolling52WeekStat, error) {
	stat, err := y.store.Get52w(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if stat == nil {
		stat = &models.Rolling52WeekStat{Symbol: symbol}
	}
	if err := y.hash.Set(ctx, symbol, stat, sessionNo); err != nil {
		return nil, err
	}
	return stat, nil
}
