package usecase

import (
	"context"
	"sync"
	"time"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	"MarketPulse/pkg/logger"
	"MarketPulse/pkg/util"
)

const (
	minPoll = 1 * time.Second
	maxPoll = 10 * time.Second
	// joinWait bounds how long a close waits for a worker's current tick.
	joinWait = 10 * time.Second
)

// Supervisor runs one worker goroutine per open market. Each tick reads the
// latest quote snapshot per symbol and updates intraday extremes, rolling 24h
// stats, one-minute bars, and session cumulative volume. Workers stop
// cooperatively: on gate command or when the market's intraday flag flips off.
type Supervisor struct {
	markets  domrepo.MarketStore
	sessions domrepo.SessionStore
	stats    domrepo.StatStore
	quotes   domrepo.QuoteSource
	bars     domrepo.BarQueue
	metrics  domrepo.Metrics
	log      *logger.Logger
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	workers map[string]*marketWorker
}

type marketWorker struct {
	market string
	stop   chan struct{}
	done   chan struct{}
	// last-seen broker cumulative volume per symbol, for delta accumulation
	lastCum map[string]float64
}

func NewSupervisor(
	markets domrepo.MarketStore,
	sessions domrepo.SessionStore,
	stats domrepo.StatStore,
	quotes domrepo.QuoteSource,
	bars domrepo.BarQueue,
	metrics domrepo.Metrics,
	log *logger.Logger,
	interval time.Duration,
) *Supervisor {
	if interval < minPoll {
		interval = minPoll
	}
	if interval > maxPoll {
		interval = maxPoll
	}
	return &Supervisor{
		markets:  markets,
		sessions: sessions,
		stats:    stats,
		quotes:   quotes,
		bars:     bars,
		metrics:  metrics,
		log:      log,
		interval: interval,
		now:      time.Now,
		workers:  make(map[string]*marketWorker),
	}
}

// OnMarketOpen starts the worker for a market. Starting twice is a no-op.
func (s *Supervisor) OnMarketOpen(m *models.Market) {
	if !m.IntradayEnabled {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workers[m.Key]; ok {
		return
	}
	w := &marketWorker{
		market:  m.Key,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		lastCum: make(map[string]float64),
	}
	s.workers[m.Key] = w
	go s.run(w)
	s.log.Info("intraday worker started", logger.String("market", m.Key))
}

// OnMarketClose signals the worker and waits for its current tick, bounded
// by joinWait so a stuck tick never blocks the gate.
func (s *Supervisor) OnMarketClose(m *models.Market) {
	s.mu.Lock()
	w, ok := s.workers[m.Key]
	if ok {
		delete(s.workers, m.Key)
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	close(w.stop)
	select {
	case <-w.done:
		s.log.Info("intraday worker stopped", logger.String("market", m.Key))
	case <-time.After(joinWait):
		s.log.Warn("intraday worker join timed out", logger.String("market", m.Key))
	}
}

// StopAll stops every worker; used on shutdown.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	workers := make([]*marketWorker, 0, len(s.workers))
	for key, w := range s.workers {
		workers = append(workers, w)
		delete(s.workers, key)
	}
	s.mu.Unlock()

	for _, w := range workers {
		close(w.stop)
		select {
		case <-w.done:
		case <-time.After(joinWait):
			s.log.Warn("intraday worker join timed out", logger.String("market", w.market))
		}
	}
}

func (s *Supervisor) run(w *marketWorker) {
	defer close(w.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.interval)
			alive := s.tick(ctx, w)
			cancel()
			if !alive {
				s.remove(w.market)
				return
			}
		}
	}
}

func (s *Supervisor) remove(market string) {
	s.mu.Lock()
	delete(s.workers, market)
	s.mu.Unlock()
	s.log.Info("intraday worker self-stopped", logger.String("market", market))
}

// tick runs steps high → low → 24h → bars → volume for every row of the open
// session. Returns false when the worker should stop.
func (s *Supervisor) tick(ctx context.Context, w *marketWorker) bool {
	start := s.now()

	m, err := s.markets.Get(ctx, w.market)
	if err != nil {
		s.log.Error("tick: market lookup failed", logger.String("market", w.market), logger.Error(err))
		return true
	}
	// flags are re-read every iteration so a mid-session disable takes
	// effect within one poll interval
	if !m.IntradayEnabled {
		return false
	}

	sessionNo, err := s.sessions.LatestSessionNo(ctx, w.market)
	if err != nil || sessionNo == 0 {
		return true
	}
	rows, err := s.sessions.OpenRows(ctx, w.market, sessionNo)
	if err != nil {
		s.log.Error("tick: rows fetch failed", logger.String("market", w.market), logger.Error(err))
		return true
	}

	var pctSum float64
	var pctN int
	now := s.now()

	for _, row := range rows {
		if row.Symbol == models.TotalSymbol {
			continue
		}
		q, err := s.quotes.Latest(ctx, row.Symbol)
		if err != nil {
			s.metrics.RecordError("quote_fetch")
			s.log.Warn("tick: quote fetch failed", logger.String("symbol", row.Symbol), logger.Error(err))
			continue
		}
		if !q.HasPrice() {
			continue // no data yet, retried next tick
		}

		delta := w.volumeDelta(row.Symbol, q.Volume)

		if err := s.sessions.Update(ctx, w.market, row.Symbol, sessionNo, func(sess *models.Session) bool {
			return applyIntraday(sess, q.Last, delta, now)
		}); err != nil {
			s.metrics.RecordError("session_update")
			s.log.Error("tick: session update failed", logger.String("symbol", row.Symbol), logger.Error(err))
		}

		s.roll24h(ctx, sessionNo, row.Symbol, q, delta, now)
		s.updateBar(ctx, w.market, row.Symbol, q, now)
		s.metrics.RecordLastPrice(row.Symbol, q.Last)

		if row.Open > 0 {
			pctSum += (q.Last - row.Open) / row.Open * 100
			pctN++
		}
	}

	if pctN > 0 {
		avg := pctSum / float64(pctN)
		if err := s.sessions.Update(ctx, w.market, models.TotalSymbol, sessionNo, func(sess *models.Session) bool {
			if sess.Open <= 0 {
				return false
			}
			composite := sess.Open * (1 + avg/100)
			return applyIntraday(sess, composite, 0, now)
		}); err != nil {
			s.metrics.RecordError("session_update")
		}
	}

	s.metrics.RecordTick(w.market, time.Since(start).Seconds())
	return true
}

func (s *Supervisor) roll24h(ctx context.Context, sessionNo int64, symbol string, q *models.Quote, delta float64, now time.Time) {
	stat, err := s.stats.Get24h(ctx, sessionNo, symbol)
	if err != nil {
		s.metrics.RecordError("stat_fetch")
		return
	}
	if stat == nil {
		stat = &models.Rolling24HourStat{SessionNo: sessionNo, Symbol: symbol}
	}
	stat.Roll(q, delta, now)
	if err := s.stats.Upsert24h(ctx, stat); err != nil {
		s.metrics.RecordError("stat_upsert")
		s.log.Warn("24h upsert failed", logger.String("symbol", symbol), logger.Error(err))
	}
}

// updateBar maintains the live working bar for the symbol's current UTC
// minute and queues the previous one once its minute has passed.
func (s *Supervisor) updateBar(ctx context.Context, market, symbol string, q *models.Quote, now time.Time) {
	bucket := util.MinuteBucket(now)

	live, err := s.bars.GetLive(ctx, market, symbol)
	if err != nil {
		s.metrics.RecordError("bar_fetch")
		return
	}
	if live == nil || live.Minute.Before(bucket) {
		if live != nil {
			if err := s.bars.Push(ctx, market, live); err != nil {
				s.metrics.RecordError("bar_enqueue")
				s.log.Warn("closed bar enqueue failed", logger.String("symbol", symbol), logger.Error(err))
			}
		}
		live = models.NewBar(bucket, symbol, market, q)
	} else {
		live.Extend(q)
	}
	if err := s.bars.SetLive(ctx, market, live); err != nil {
		s.metrics.RecordError("bar_store")
	}
}

// volumeDelta converts the broker's cumulative volume into a per-tick delta.
// The first observation only sets the baseline; an out-of-order lower sample
// contributes nothing and leaves the baseline alone, so accumulators never go
// negative and never double-count.
func (w *marketWorker) volumeDelta(symbol string, cumulative float64) float64 {
	last, seen := w.lastCum[symbol]
	if !seen {
		w.lastCum[symbol] = cumulative
		return 0
	}
	if cumulative <= last {
		return 0
	}
	w.lastCum[symbol] = cumulative
	return cumulative - last
}

// applyIntraday is one tick's worth of high/low/volume updates on a row.
// The high percent is peak-frozen; the low run-up recomputes every tick and
// resets to zero on a new lower low.
func applyIntraday(s *models.Session, price, volumeDelta float64, now time.Time) bool {
	if s.Open <= 0 || price <= 0 {
		return false
	}
	if s.High == 0 || price > s.High {
		s.High = price
		pct := (s.High - s.Open) / s.Open * 100
		if pct < 0 {
			pct = 0
		}
		s.HighMovePct = pct
	}
	if s.Low == 0 || price < s.Low {
		s.Low = price
		s.LowMovePct = 0
	} else {
		runUp := (price - s.Low) / s.Low * 100
		if runUp < 0 {
			runUp = 0
		}
		s.LowMovePct = runUp
	}
	if volumeDelta > 0 {
		s.Volume += volumeDelta
	}
	s.UpdatedAt = now
	return true
}
