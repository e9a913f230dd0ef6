package usecase

import (
	"context"
	"sync"
	"time"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	icache "MarketPulse/internal/service/cache"
	"MarketPulse/pkg/logger"
)

const (
	gradeInterval = 500 * time.Millisecond
	anyOpenTTL    = 5 * time.Second
)

// Grader is the single global loop settling PENDING rows against live
// bid/ask. It is decoupled from any one market; a 5s cached any-market-open
// check short-circuits the loop while everything is closed.
type Grader struct {
	sessions  domrepo.SessionStore
	quotes    domrepo.QuoteSource
	markets   domrepo.MarketStore
	broadcast domrepo.Broadcaster
	metrics   domrepo.Metrics
	log       *logger.Logger
	now       func() time.Time

	anyOpen *icache.Value[bool]

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	running bool
}

func NewGrader(
	sessions domrepo.SessionStore,
	quotes domrepo.QuoteSource,
	markets domrepo.MarketStore,
	broadcast domrepo.Broadcaster,
	metrics domrepo.Metrics,
	log *logger.Logger,
) *Grader {
	return &Grader{
		sessions:  sessions,
		quotes:    quotes,
		markets:   markets,
		broadcast: broadcast,
		metrics:   metrics,
		log:       log,
		now:       time.Now,
		anyOpen:   icache.NewValue[bool](anyOpenTTL),
	}
}

// Start launches the grading loop. Idempotent.
func (g *Grader) Start() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		return
	}
	g.running = true
	g.stop = make(chan struct{})
	g.done = make(chan struct{})
	go g.loop(g.stop, g.done)
	g.log.Info("grader started")
}

// Running reports whether the grading loop is active.
func (g *Grader) Running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}

// Stop halts the loop and waits for the in-flight pass. Idempotent.
func (g *Grader) Stop() {
	g.mu.Lock()
	if !g.running {
		g.mu.Unlock()
		return
	}
	g.running = false
	close(g.stop)
	done := g.done
	g.mu.Unlock()

	<-done
	g.log.Info("grader stopped")
}

func (g *Grader) loop(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(gradeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), gradeInterval*10)
			if g.marketOpen(ctx) {
				if err := g.GradePendingOnce(ctx); err != nil {
					g.log.Error("grade pass failed", logger.Error(err))
				}
			}
			cancel()
		}
	}
}

func (g *Grader) marketOpen(ctx context.Context) bool {
	open, err := g.anyOpen.Get(func() (bool, error) {
		markets, err := g.markets.Controlled(ctx)
		if err != nil {
			return false, err
		}
		for _, m := range markets {
			if m.Status == models.StatusOpen {
				return true, nil
			}
		}
		return false, nil
	})
	if err != nil {
		g.log.Warn("any-open refresh failed", logger.Error(err))
	}
	return open
}

// GradePendingOnce evaluates every PENDING row once. Exported for pull-based
// schedulers; a per-symbol fetch error never aborts the pass for the rest.
func (g *Grader) GradePendingOnce(ctx context.Context) error {
	rows, err := g.sessions.Pending(ctx)
	if err != nil {
		return err
	}
	gradable, err := g.gradableMarkets(ctx)
	if err != nil {
		return err
	}

	for _, row := range rows {
		if !gradable[row.Market] {
			continue
		}
		if err := g.gradeRow(ctx, row); err != nil {
			g.metrics.RecordError("grade_row")
			g.log.Warn("grade row failed",
				logger.String("market", row.Market),
				logger.String("symbol", row.Symbol),
				logger.Error(err))
		}
	}
	return nil
}

// gradableMarkets is the set of markets whose grading flag is on. Re-read
// every pass so a mid-session disable takes effect promptly.
func (g *Grader) gradableMarkets(ctx context.Context) (map[string]bool, error) {
	markets, err := g.markets.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(markets))
	for _, m := range markets {
		out[m.Key] = m.GradingEnabled
	}
	return out, nil
}

func (g *Grader) gradeRow(ctx context.Context, row *models.Session) error {
	// HOLD or empty signal carries no direction to grade
	if row.Signal == "" || row.Signal == models.SignalHold {
		return g.settle(ctx, row, models.OutcomeNeutral, "", 0)
	}
	if !row.Gradable() {
		return nil // configuration gap, left pending for visibility
	}

	q, err := g.quotes.Latest(ctx, row.Symbol)
	if err != nil {
		return err
	}
	ref := g.referencePrice(row.Signal, q)
	if ref <= 0 {
		return nil // transient absence, retried next pass
	}

	switch {
	case row.Signal.IsBuy() && ref >= row.TargetHigh:
		return g.settle(ctx, row, models.OutcomeWorked, models.HitTarget, ref)
	case row.Signal.IsBuy() && ref <= row.TargetLow:
		return g.settle(ctx, row, models.OutcomeDidntWork, models.HitStop, ref)
	case row.Signal.IsSell() && ref <= row.TargetLow:
		return g.settle(ctx, row, models.OutcomeWorked, models.HitTarget, ref)
	case row.Signal.IsSell() && ref >= row.TargetHigh:
		return g.settle(ctx, row, models.OutcomeDidntWork, models.HitStop, ref)
	}
	return nil
}

// referencePrice is bid for long variants, ask for short variants.
func (g *Grader) referencePrice(sig models.Signal, q *models.Quote) float64 {
	if q == nil {
		return 0
	}
	if sig.IsBuy() {
		return q.Bid
	}
	return q.Ask
}

func (g *Grader) settle(ctx context.Context, row *models.Session, outcome models.Outcome, hit models.HitType, price float64) error {
	var applied bool
	now := g.now()
	err := g.sessions.Update(ctx, row.Market, row.Symbol, row.SessionNo, func(s *models.Session) bool {
		if s.Outcome != models.OutcomePending {
			return false
		}
		if hit == "" {
			// neutral auto-resolve, no hit recorded
			s.Outcome = outcome
			applied = true
			return true
		}
		applied = s.Resolve(outcome, hit, price, now)
		return applied
	})
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}

	g.metrics.RecordOutcome(string(outcome))
	ev := &models.Event{
		Kind:      models.EventGraded,
		Market:    row.Market,
		Symbol:    row.Symbol,
		Payload:   map[string]any{"outcome": outcome, "hit_type": hit, "price": price},
		Timestamp: now,
	}
	if perr := g.broadcast.Publish(ctx, ev); perr != nil {
		g.log.Warn("graded broadcast failed", logger.Error(perr))
	}
	return nil
}
