package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
)

// ClickHouseStats implements StatStore over two ReplacingMergeTree tables:
// rolling 24h extremes keyed by (session_no, symbol) and the authoritative
// 52-week extremes keyed by symbol.
type ClickHouseStats struct {
	db       *sql.DB
	table24h string
	table52w string
}

func NewClickHouseStats(db *sql.DB, table24h, table52w string) *ClickHouseStats {
	return &ClickHouseStats{db: db, table24h: table24h, table52w: table52w}
}

var _ domrepo.StatStore = (*ClickHouseStats)(nil)

func (s *ClickHouseStats) Upsert24h(ctx context.Context, stat *models.Rolling24HourStat) error {
	q := fmt.Sprintf("INSERT INTO %s (session_no, symbol, high, low, range_value, range_pct, volume, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)", s.table24h)
	_, err := s.db.ExecContext(ctx, q,
		stat.SessionNo, stat.Symbol, stat.High, stat.Low, stat.Range, stat.RangePct, stat.Volume, stat.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert 24h %s: %w", stat.Symbol, err)
	}
	return nil
}

func (s *ClickHouseStats) Get24h(ctx context.Context, sessionNo int64, symbol string) (*models.Rolling24HourStat, error) {
	q := fmt.Sprintf("SELECT session_no, symbol, high, low, range_value, range_pct, volume, updated_at FROM %s FINAL WHERE session_no = ? AND symbol = ? LIMIT 1", s.table24h)
	var stat models.Rolling24HourStat
	err := s.db.QueryRowContext(ctx, q, sessionNo, symbol).Scan(
		&stat.SessionNo, &stat.Symbol, &stat.High, &stat.Low, &stat.Range, &stat.RangePct, &stat.Volume, &stat.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get 24h %s: %w", symbol, err)
	}
	return &stat, nil
}

func (s *ClickHouseStats) All52w(ctx context.Context) ([]*models.Rolling52WeekStat, error) {
	q := fmt.Sprintf("SELECT symbol, high, high_at, low, low_at FROM %s FINAL ORDER BY symbol", s.table52w)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("all 52w: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Rolling52WeekStat, 0, 64)
	for rows.Next() {
		var stat models.Rolling52WeekStat
		if err := rows.Scan(&stat.Symbol, &stat.High, &stat.HighAt, &stat.Low, &stat.LowAt); err != nil {
			return nil, fmt.Errorf("scan 52w: %w", err)
		}
		out = append(out, &stat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *ClickHouseStats) Get52w(ctx context.Context, symbol string) (*models.Rolling52WeekStat, error) {
	q := fmt.Sprintf("SELECT symbol, high, high_at, low, low_at FROM %s FINAL WHERE symbol = ? LIMIT 1", s.table52w)
	var stat models.Rolling52WeekStat
	err := s.db.QueryRowContext(ctx, q, symbol).Scan(&stat.Symbol, &stat.High, &stat.HighAt, &stat.Low, &stat.LowAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get 52w %s: %w", symbol, err)
	}
	return &stat, nil
}

func (s *ClickHouseStats) Upsert52w(ctx context.Context, stat *models.Rolling52WeekStat) error {
	highAt, lowAt := stat.HighAt, stat.LowAt
	if highAt.IsZero() {
		highAt = time.Unix(0, 0)
	}
	if lowAt.IsZero() {
		lowAt = time.Unix(0, 0)
	}
	q := fmt.Sprintf("INSERT INTO %s (symbol, high, high_at, low, low_at) VALUES (?, ?, ?, ?, ?)", s.table52w)
	if _, err := s.db.ExecContext(ctx, q, stat.Symbol, stat.High, highAt, stat.Low, lowAt); err != nil {
		return fmt.Errorf("upsert 52w %s: %w", stat.Symbol, err)
	}
	return nil
}
