package usecase

import (
	"context"
	"sort"
	"time"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	"MarketPulse/internal/service/targets"
	"MarketPulse/pkg/logger"
)

// Capture creates session rows at market open and finalizes them at close.
// One row per configured symbol plus the synthetic TOTAL composite; entry and
// targets come from the per-symbol offset configuration.
type Capture struct {
	sessions domrepo.SessionStore
	quotes   domrepo.QuoteSource
	stats    domrepo.StatStore
	closer   *Closer
	targets  targets.Config
	signals  map[string]models.Signal
	log      *logger.Logger
	now      func() time.Time
}

func NewCapture(
	sessions domrepo.SessionStore,
	quotes domrepo.QuoteSource,
	stats domrepo.StatStore,
	closer *Closer,
	cfg targets.Config,
	signals map[string]models.Signal,
	log *logger.Logger,
) *Capture {
	return &Capture{
		sessions: sessions,
		quotes:   quotes,
		stats:    stats,
		closer:   closer,
		targets:  cfg,
		signals:  signals,
		log:      log,
		now:      time.Now,
	}
}

// Open captures a new session for the market. A zero sessionNo allocates the
// next one. Returns 0 when the capture was skipped: capture disabled or no
// symbol had a quote yet.
func (c *Capture) Open(ctx context.Context, m *models.Market, sessionNo int64) (int64, error) {
	if !m.CaptureEnabled {
		return 0, nil
	}
	if sessionNo == 0 {
		latest, err := c.sessions.LatestSessionNo(ctx, m.Key)
		if err != nil {
			return 0, err
		}
		sessionNo = latest + 1
	}

	symbols := c.targets.Symbols()
	sort.Strings(symbols)

	now := c.now()
	rows := make([]*models.Session, 0, len(symbols)+1)
	var entrySum float64

	for _, sym := range symbols {
		q, err := c.quotes.Latest(ctx, sym)
		if err != nil {
			c.log.Warn("open capture: quote fetch failed", logger.String("symbol", sym), logger.Error(err))
			continue
		}
		if !q.HasPrice() {
			continue // no snapshot yet, symbol sits this session out
		}

		row := &models.Session{
			Market:    m.Key,
			Symbol:    sym,
			SessionNo: sessionNo,
			Signal:    c.signalFor(sym),
			Outcome:   models.OutcomePending,
			Entry:     q.Last,
			Open:      q.Last,
			High:      q.Last,
			Low:       q.Last,
			UpdatedAt: now,
		}
		if th, tl, ok := c.targets.Compute(sym, q.Last); ok {
			row.TargetHigh, row.TargetLow = th, tl
		}
		if stat, err := c.stats.Get52w(ctx, sym); err == nil && stat != nil {
			row.Week52High, row.Week52Low = stat.High, stat.Low
		}
		rows = append(rows, row)
		entrySum += q.Last
	}

	if len(rows) == 0 {
		c.log.Warn("open capture skipped, no quotes", logger.String("market", m.Key))
		return 0, nil
	}

	composite := entrySum / float64(len(rows))
	rows = append(rows, &models.Session{
		Market:    m.Key,
		Symbol:    models.TotalSymbol,
		SessionNo: sessionNo,
		Signal:    models.SignalHold,
		Outcome:   models.OutcomePending,
		Entry:     composite,
		Open:      composite,
		High:      composite,
		Low:       composite,
		UpdatedAt: now,
	})

	if err := c.sessions.Insert(ctx, rows); err != nil {
		return 0, err
	}
	c.log.Info("session captured",
		logger.String("market", m.Key),
		logger.Int64("session_no", sessionNo),
		logger.Int("rows", len(rows)))
	return sessionNo, nil
}

// Close runs the once-per-close finalize sweep for the market.
func (c *Capture) Close(ctx context.Context, m *models.Market) error {
	return c.closer.Run(ctx, m.Key)
}

func (c *Capture) signalFor(symbol string) models.Signal {
	if sig, ok := c.signals[symbol]; ok && sig != "" {
		return sig
	}
	return models.SignalHold
}
