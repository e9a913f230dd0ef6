package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
)

// ClickHouseBars implements BarStore on a ReplacingMergeTree ordered by
// (symbol, minute). Re-inserting the same (minute, symbol) collapses to one
// row on merge, which is the conflict-ignoring behavior the at-least-once
// flush pipeline relies on.
type ClickHouseBars struct {
	db    *sql.DB
	table string
}

func NewClickHouseBars(db *sql.DB, table string) *ClickHouseBars {
	return &ClickHouseBars{db: db, table: table}
}

var _ domrepo.BarStore = (*ClickHouseBars)(nil)

func (s *ClickHouseBars) InsertBars(ctx context.Context, bars []*models.OneMinuteBar) error {
	if len(bars) == 0 {
		return nil
	}

	values := make([]string, 0, len(bars))
	args := make([]any, 0, len(bars)*11)
	for _, b := range bars {
		if b == nil || b.Symbol == "" || b.Minute.IsZero() {
			continue
		}
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args, b.Minute, b.Symbol, b.Market, b.Open, b.High, b.Low, b.Close, b.Volume, b.Bid, b.Ask, b.Spread)
	}
	if len(values) == 0 {
		return nil
	}

	q := fmt.Sprintf("INSERT INTO %s (minute, symbol, market, open, high, low, close, volume, bid, ask, spread) VALUES %s",
		s.table, strings.Join(values, ","))
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("insert bars: %w", err)
	}
	return nil
}

func (s *ClickHouseBars) LatestMinute(ctx context.Context, symbol string) (time.Time, error) {
	q := fmt.Sprintf("SELECT max(minute) FROM %s WHERE symbol = ?", s.table)
	var t time.Time
	if err := s.db.QueryRowContext(ctx, q, symbol).Scan(&t); err != nil {
		return time.Time{}, fmt.Errorf("latest minute: %w", err)
	}
	return t, nil
}
