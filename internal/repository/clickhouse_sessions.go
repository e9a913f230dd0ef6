package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
)

// ClickHouseSessions implements SessionStore on a ReplacingMergeTree keyed
// by (market, session_no, symbol) with updated_at as the version column.
// Updates are full-row re-inserts; a per-row keyed mutex serializes
// read-modify-write so the supervisor and grader never lose each other's
// writes.
type ClickHouseSessions struct {
	db    *sql.DB
	table string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewClickHouseSessions(db *sql.DB, table string) *ClickHouseSessions {
	return &ClickHouseSessions{db: db, table: table, locks: make(map[string]*sync.Mutex)}
}

var _ domrepo.SessionStore = (*ClickHouseSessions)(nil)

const sessionColumns = `market, symbol, session_no, signal, outcome,
	entry, target_high, target_low, hit_price, hit_type, hit_at,
	open, high, low, close,
	high_move_pct, low_move_pct, close_pct, below_high_pct, above_low_pct,
	range_value, range_pct, week52_high, week52_low, volume, updated_at`

func (s *ClickHouseSessions) Insert(ctx context.Context, rows []*models.Session) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", s.table, sessionColumns)
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, sessionArgs(row)...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert session %s/%s: %w", row.Market, row.Symbol, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *ClickHouseSessions) Pending(ctx context.Context) ([]*models.Session, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s FINAL WHERE outcome = 'PENDING' ORDER BY market, session_no, symbol`, sessionColumns, s.table)
	return s.query(ctx, q)
}

func (s *ClickHouseSessions) OpenRows(ctx context.Context, market string, sessionNo int64) ([]*models.Session, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s FINAL WHERE market = ? AND session_no = ? ORDER BY symbol`, sessionColumns, s.table)
	return s.query(ctx, q, market, sessionNo)
}

func (s *ClickHouseSessions) LatestSessionNo(ctx context.Context, market string) (int64, error) {
	q := fmt.Sprintf(`SELECT max(session_no) FROM %s WHERE market = ?`, s.table)
	var n int64
	if err := s.db.QueryRowContext(ctx, q, market).Scan(&n); err != nil {
		return 0, fmt.Errorf("latest session: %w", err)
	}
	return n, nil
}

func (s *ClickHouseSessions) Update(ctx context.Context, market, symbol string, sessionNo int64, fn func(*models.Session) bool) error {
	lock := s.rowLock(market, symbol, sessionNo)
	lock.Lock()
	defer lock.Unlock()

	row, err := s.getRow(ctx, market, symbol, sessionNo)
	if err != nil {
		return err
	}
	if row == nil {
		return nil // row vanished, nothing to update
	}
	if !fn(row) {
		return nil
	}
	row.UpdatedAt = time.Now()
	return s.insertOne(ctx, row)
}

func (s *ClickHouseSessions) UpdateAll(ctx context.Context, market string, sessionNo int64, fn func(*models.Session) bool) error {
	rows, err := s.OpenRows(ctx, market, sessionNo)
	if err != nil {
		return err
	}
	// lock rows in stable symbol order to avoid deadlock with row updates
	sort.Slice(rows, func(i, j int) bool { return rows[i].Symbol < rows[j].Symbol })
	locks := make([]*sync.Mutex, 0, len(rows))
	for _, row := range rows {
		l := s.rowLock(market, row.Symbol, sessionNo)
		l.Lock()
		locks = append(locks, l)
	}
	defer func() {
		for _, l := range locks {
			l.Unlock()
		}
	}()

	changed := make([]*models.Session, 0, len(rows))
	now := time.Now()
	for _, row := range rows {
		if fn(row) {
			row.UpdatedAt = now
			changed = append(changed, row)
		}
	}
	if len(changed) == 0 {
		return nil
	}
	return s.Insert(ctx, changed)
}

func (s *ClickHouseSessions) getRow(ctx context.Context, market, symbol string, sessionNo int64) (*models.Session, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s FINAL WHERE market = ? AND symbol = ? AND session_no = ? LIMIT 1`, sessionColumns, s.table)
	rows, err := s.query(ctx, q, market, symbol, sessionNo)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (s *ClickHouseSessions) insertOne(ctx context.Context, row *models.Session) error {
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", s.table, sessionColumns)
	if _, err := s.db.ExecContext(ctx, q, sessionArgs(row)...); err != nil {
		return fmt.Errorf("update session %s/%s: %w", row.Market, row.Symbol, err)
	}
	return nil
}

func (s *ClickHouseSessions) query(ctx context.Context, q string, args ...any) ([]*models.Session, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Session, 0, 32)
	for rows.Next() {
		var r models.Session
		var hitType string
		var hitAt time.Time
		if err := rows.Scan(
			&r.Market, &r.Symbol, &r.SessionNo, (*string)(&r.Signal), (*string)(&r.Outcome),
			&r.Entry, &r.TargetHigh, &r.TargetLow, &r.HitPrice, &hitType, &hitAt,
			&r.Open, &r.High, &r.Low, &r.Close,
			&r.HighMovePct, &r.LowMovePct, &r.ClosePct, &r.BelowHighPct, &r.AboveLowPct,
			&r.RangeValue, &r.RangePct, &r.Week52High, &r.Week52Low, &r.Volume, &r.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		r.HitType = models.HitType(hitType)
		if hitAt.Unix() > 0 {
			r.HitAt = hitAt
		}
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func sessionArgs(r *models.Session) []any {
	hitAt := r.HitAt
	if hitAt.IsZero() {
		hitAt = time.Unix(0, 0)
	}
	return []any{
		r.Market, r.Symbol, r.SessionNo, string(r.Signal), string(r.Outcome),
		r.Entry, r.TargetHigh, r.TargetLow, r.HitPrice, string(r.HitType), hitAt,
		r.Open, r.High, r.Low, r.Close,
		r.HighMovePct, r.LowMovePct, r.ClosePct, r.BelowHighPct, r.AboveLowPct,
		r.RangeValue, r.RangePct, r.Week52High, r.Week52Low, r.Volume, r.UpdatedAt,
	}
}

func (s *ClickHouseSessions) rowLock(market, symbol string, sessionNo int64) *sync.Mutex {
	key := fmt.Sprintf("%s|%d|%s", market, sessionNo, symbol)
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}
