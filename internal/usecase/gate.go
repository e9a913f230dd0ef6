package usecase

import (
	"context"
	"sync"
	"time"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	icache "MarketPulse/internal/service/cache"
	"MarketPulse/internal/service/marketclock"
	"MarketPulse/pkg/logger"
)

// controlledTTL bounds how stale the controlled-market set may get.
const controlledTTL = 60 * time.Second

// Gate is the single integration surface translating open/close transitions
// into start/stop calls on the supervisor and grader, with de-duplication and
// first-open/last-close bookkeeping. Uncontrolled markets are ignored, never
// errored.
type Gate struct {
	markets    domrepo.MarketStore
	active     domrepo.ActiveSet
	broadcast  domrepo.Broadcaster
	capture    *Capture
	supervisor *Supervisor
	grader     *Grader
	tracker    *Yearly
	log        *logger.Logger
	now        func() time.Time

	controlled *icache.Value[map[string]bool]
	mu         sync.Mutex
}

func NewGate(
	markets domrepo.MarketStore,
	active domrepo.ActiveSet,
	broadcast domrepo.Broadcaster,
	capture *Capture,
	supervisor *Supervisor,
	grader *Grader,
	tracker *Yearly,
	log *logger.Logger,
) *Gate {
	return &Gate{
		markets:    markets,
		active:     active,
		broadcast:  broadcast,
		capture:    capture,
		supervisor: supervisor,
		grader:     grader,
		tracker:    tracker,
		log:        log,
		now:        time.Now,
		controlled: icache.NewValue[map[string]bool](controlledTTL),
	}
}

// Bootstrap reconciles the active set against the clock at process start:
// stale members left by a crash are pruned, every controlled market that is
// open right now is registered as if its open transition just fired, and the
// global services are started if the replay could not see the empty to
// non-empty edge because members survived the crash. Idempotent.
func (g *Gate) Bootstrap(ctx context.Context) error {
	markets, err := g.markets.Controlled(ctx)
	if err != nil {
		return err
	}

	open := make(map[string]bool, len(markets))
	for _, m := range markets {
		if marketclock.IsOpen(m, g.now()) {
			open[m.Key] = true
		}
	}

	members, err := g.active.Members(ctx)
	if err != nil {
		return err
	}
	for _, key := range members {
		if open[key] {
			continue
		}
		if _, err := g.active.Remove(ctx, key); err != nil {
			g.log.Error("active set prune failed", logger.String("market", key), logger.Error(err))
		}
	}

	for _, m := range markets {
		if open[m.Key] {
			g.OnMarketOpen(ctx, m)
		}
	}

	if len(open) > 0 && !g.grader.Running() {
		g.mu.Lock()
		g.startGlobal(ctx)
		g.mu.Unlock()
	}
	return nil
}

// OnMarketOpen handles a confirmed transition to OPEN.
func (g *Gate) OnMarketOpen(ctx context.Context, m *models.Market) {
	if !g.isControlled(ctx, m.Key) {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	size, err := g.active.Add(ctx, m.Key)
	if err != nil {
		g.log.Error("active set add failed", logger.String("market", m.Key), logger.Error(err))
		return
	}
	firstOpen := size == 1

	if firstOpen {
		g.startGlobal(ctx)
	}
	if m.CaptureEnabled {
		if _, err := g.capture.Open(ctx, m, 0); err != nil {
			g.log.Error("open capture failed", logger.String("market", m.Key), logger.Error(err))
		}
	}
	g.supervisor.OnMarketOpen(m)
	g.publish(ctx, m, models.StatusOpen)
}

// OnMarketClose handles a confirmed transition out of OPEN.
func (g *Gate) OnMarketClose(ctx context.Context, m *models.Market) {
	if !g.isControlled(ctx, m.Key) {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if m.CaptureEnabled {
		if err := g.capture.Close(ctx, m); err != nil {
			g.log.Error("close capture failed", logger.String("market", m.Key), logger.Error(err))
		}
	}

	size, err := g.active.Remove(ctx, m.Key)
	if err != nil {
		g.log.Error("active set remove failed", logger.String("market", m.Key), logger.Error(err))
	}
	g.supervisor.OnMarketClose(m)

	if err == nil && size == 0 {
		g.stopGlobal(ctx)
	}
	g.publish(ctx, m, models.StatusClosed)
}

// startGlobal starts the once-per-open services on the empty→non-empty edge.
func (g *Gate) startGlobal(ctx context.Context) {
	g.grader.Start()
	if err := g.tracker.Seed(ctx, DaySession(g.now())); err != nil {
		g.log.Error("52w seed failed", logger.Error(err))
	}
	g.log.Info("first market open, global services started")
}

// stopGlobal stops them on the non-empty→empty edge.
func (g *Gate) stopGlobal(ctx context.Context) {
	g.grader.Stop()
	if err := g.tracker.Finalize(ctx); err != nil {
		g.log.Error("52w finalize failed", logger.Error(err))
	}
	g.log.Info("last market closed, global services stopped")
}

func (g *Gate) isControlled(ctx context.Context, key string) bool {
	set, err := g.controlled.Get(func() (map[string]bool, error) {
		markets, err := g.markets.Controlled(ctx)
		if err != nil {
			return nil, err
		}
		out := make(map[string]bool, len(markets))
		for _, m := range markets {
			out[m.Key] = true
		}
		return out, nil
	})
	if err != nil {
		g.log.Warn("controlled set refresh failed, using stale", logger.Error(err))
	}
	return set[key]
}

func (g *Gate) publish(ctx context.Context, m *models.Market, to models.MarketStatus) {
	ev := &models.Event{
		Kind:      models.EventTransition,
		Market:    m.Key,
		Payload:   models.Transition{Market: m.Key, To: to, At: g.now()},
		Timestamp: g.now(),
	}
	if err := g.broadcast.Publish(ctx, ev); err != nil {
		g.log.Warn("transition broadcast failed", logger.String("market", m.Key), logger.Error(err))
	}
}
