package repository

import (
	"context"
	"time"

	"MarketPulse/internal/domain/models"
)

// MarketStore reads market definitions and persists confirmed transitions.
type MarketStore interface {
	All(ctx context.Context) ([]*models.Market, error)
	Controlled(ctx context.Context) ([]*models.Market, error)
	Get(ctx context.Context, key string) (*models.Market, error)
	SetStatus(ctx context.Context, key string, status models.MarketStatus) error
}

// SessionStore is the durability boundary for capture rows. Implementations
// must serialize read-modify-write on a row so the supervisor and grader can
// race without lost updates.
type SessionStore interface {
	Insert(ctx context.Context, rows []*models.Session) error
	Pending(ctx context.Context) ([]*models.Session, error)
	OpenRows(ctx context.Context, market string, sessionNo int64) ([]*models.Session, error)
	LatestSessionNo(ctx context.Context, market string) (int64, error)
	// Update applies fn to the current row under the row lock and persists
	// the result. fn returning false skips the write.
	Update(ctx context.Context, market, symbol string, sessionNo int64, fn func(*models.Session) bool) error
	// UpdateAll applies fn to every row of one session in stable symbol
	// order inside a single transaction.
	UpdateAll(ctx context.Context, market string, sessionNo int64, fn func(*models.Session) bool) error
}

// BarStore persists finalized one-minute bars. Insert must be
// conflict-ignoring on (minute, symbol) so at-least-once delivery from the
// flush pipeline never corrupts data.
type BarStore interface {
	InsertBars(ctx context.Context, bars []*models.OneMinuteBar) error
	LatestMinute(ctx context.Context, symbol string) (time.Time, error)
}

// StatStore persists rolling aggregates.
type StatStore interface {
	Upsert24h(ctx context.Context, stat *models.Rolling24HourStat) error
	Get24h(ctx context.Context, sessionNo int64, symbol string) (*models.Rolling24HourStat, error)
	All52w(ctx context.Context) ([]*models.Rolling52WeekStat, error)
	Get52w(ctx context.Context, symbol string) (*models.Rolling52WeekStat, error)
	Upsert52w(ctx context.Context, stat *models.Rolling52WeekStat) error
}

// QuoteSource reads the latest per-symbol snapshot from the broker layer.
// A nil quote means "no data yet, skip this tick" and is never an error.
type QuoteSource interface {
	Latest(ctx context.Context, symbol string) (*models.Quote, error)
	Publish(ctx context.Context, q *models.Quote) error
}

// BarQueue is the per-market closed-bar queue with two-phase consumption:
// Checkout atomically moves up to n items into a processing area, Acknowledge
// removes them permanently, Nack returns them to the main queue. Recover
// drains items a crashed consumer abandoned in the processing area.
type BarQueue interface {
	Push(ctx context.Context, market string, bar *models.OneMinuteBar) error
	Checkout(ctx context.Context, market string, n int) ([][]byte, error)
	Acknowledge(ctx context.Context, market string, items [][]byte) error
	Nack(ctx context.Context, market string, items [][]byte) error
	Recover(ctx context.Context, market string) ([][]byte, error)
	// Live working copies of the current-minute bars, one hash per market.
	GetLive(ctx context.Context, market, symbol string) (*models.OneMinuteBar, error)
	SetLive(ctx context.Context, market string, bar *models.OneMinuteBar) error
	// CacheLatest records the newest flushed bar minute per symbol.
	CacheLatest(ctx context.Context, symbol string, minute time.Time) error
}

// ExtremesHash is the live 52-week working copy in the broker layer.
type ExtremesHash interface {
	Seed(ctx context.Context, sessionNo int64, stats []*models.Rolling52WeekStat) error
	Get(ctx context.Context, symbol string) (*models.Rolling52WeekStat, int64, error)
	Set(ctx context.Context, symbol string, stat *models.Rolling52WeekStat, sessionNo int64) error
	MarkDirty(ctx context.Context, sessionNo int64, symbol string) error
	DrainDirty(ctx context.Context, sessionNo int64) ([]string, error)
}

// ActiveSet tracks which controlled markets are currently open.
type ActiveSet interface {
	Add(ctx context.Context, market string) (size int64, err error)
	Remove(ctx context.Context, market string) (size int64, err error)
	Members(ctx context.Context) ([]string, error)
}

// Broadcaster publishes fire-and-forget state-change events.
type Broadcaster interface {
	Publish(ctx context.Context, ev *models.Event) error
}

// Metrics records operational measurements.
type Metrics interface {
	RecordTransition(market string, status string)
	RecordTick(market string, seconds float64)
	RecordOutcome(outcome string)
	RecordFlushedBars(n int)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
}
