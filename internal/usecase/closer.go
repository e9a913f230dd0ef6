package usecase

import (
	"context"
	"time"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	"MarketPulse/pkg/logger"
)

// Closer runs the once-at-close sweep: copy the latest price into each row's
// close, derive the close/range percentages, and force any row still PENDING
// without a recorded hit to NEUTRAL. Only the gate invokes it.
type Closer struct {
	sessions domrepo.SessionStore
	quotes   domrepo.QuoteSource
	metrics  domrepo.Metrics
	log      *logger.Logger
	now      func() time.Time
}

func NewCloser(sessions domrepo.SessionStore, quotes domrepo.QuoteSource, metrics domrepo.Metrics, log *logger.Logger) *Closer {
	return &Closer{sessions: sessions, quotes: quotes, metrics: metrics, log: log, now: time.Now}
}

// Run finalizes the market's latest session in a single multi-row
// transaction, rows visited in stable symbol order.
func (c *Closer) Run(ctx context.Context, market string) error {
	sessionNo, err := c.sessions.LatestSessionNo(ctx, market)
	if err != nil {
		return err
	}
	if sessionNo == 0 {
		return nil // nothing captured, nothing to close
	}

	// prefetch one snapshot per symbol so the sweep itself stays pure
	rows, err := c.sessions.OpenRows(ctx, market, sessionNo)
	if err != nil {
		return err
	}
	prices := make(map[string]float64, len(rows))
	var pctSum float64
	var pctN int
	for _, row := range rows {
		if row.Symbol == models.TotalSymbol {
			continue
		}
		q, qerr := c.quotes.Latest(ctx, row.Symbol)
		if qerr != nil || !q.HasPrice() {
			continue // stale close price, row still swept
		}
		prices[row.Symbol] = q.Last
		if row.Open > 0 {
			pctSum += (q.Last - row.Open) / row.Open * 100
			pctN++
		}
	}

	now := c.now()
	return c.sessions.UpdateAll(ctx, market, sessionNo, func(s *models.Session) bool {
		price, ok := prices[s.Symbol]
		if s.Symbol == models.TotalSymbol && pctN > 0 && s.Open > 0 {
			price = s.Open * (1 + pctSum/float64(pctN)/100)
			ok = true
		}
		if ok {
			s.Close = price
		}
		finalizeRow(s, now)
		return true
	})
}

// finalizeRow computes the close-relative percentages and the range metrics,
// then applies the NEUTRAL sweep. Rows that already recorded a hit keep their
// outcome untouched.
func finalizeRow(s *models.Session, now time.Time) {
	if s.Close > 0 {
		if s.High > 0 {
			pct := (s.High - s.Close) / s.High * 100
			if pct < 0 {
				pct = 0
			}
			s.BelowHighPct = pct
		}
		if s.Low > 0 {
			pct := (s.Close - s.Low) / s.Low * 100
			if pct < 0 {
				pct = 0
			}
			s.AboveLowPct = pct
		}
		if s.Open > 0 {
			s.ClosePct = (s.Close - s.Open) / s.Open * 100
		}
	}
	if s.High > 0 && s.Low > 0 {
		s.RangeValue = s.High - s.Low
		if s.Open > 0 {
			s.RangePct = s.RangeValue / s.Open * 100
		}
	}
	if s.Outcome == models.OutcomePending && !s.Hit() {
		s.Outcome = models.OutcomeNeutral
	}
	s.UpdatedAt = now
}
