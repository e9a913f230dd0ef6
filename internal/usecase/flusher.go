package usecase

import (
	"context"
	"encoding/json"
	"time"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	"MarketPulse/pkg/logger"
)

const (
	defaultFlushBatch = 100
	maxFlushBatches   = 50
)

// Flusher drains finalized one-minute bars from the broker-layer queue into
// the durable store using checkout/acknowledge/nack. Each invocation first
// recovers items a crashed consumer abandoned in the processing area;
// downstream insertion is conflict-ignoring on (minute, symbol), so
// at-least-once delivery is safe.
type Flusher struct {
	queue   domrepo.BarQueue
	store   domrepo.BarStore
	tracker *Yearly
	metrics domrepo.Metrics
	log     *logger.Logger
	batch   int
}

func NewFlusher(queue domrepo.BarQueue, store domrepo.BarStore, tracker *Yearly, metrics domrepo.Metrics, log *logger.Logger, batch int) *Flusher {
	if batch <= 0 {
		batch = defaultFlushBatch
	}
	return &Flusher{
		queue:   queue,
		store:   store,
		tracker: tracker,
		metrics: metrics,
		log:     log,
		batch:   batch,
	}
}

// FlushOnce processes one market's queue until it empties or the bounded
// batch count is reached. Persistence failures stop the invocation early
// rather than retrying in a tight loop.
func (f *Flusher) FlushOnce(ctx context.Context, market string) error {
	if recovered, err := f.queue.Recover(ctx, market); err != nil {
		f.log.Warn("flush: recover failed", logger.String("market", market), logger.Error(err))
	} else if len(recovered) > 0 {
		f.log.Info("flush: recovered abandoned bars",
			logger.String("market", market),
			logger.Int("count", len(recovered)))
		if err := f.persist(ctx, market, recovered); err != nil {
			return err
		}
	}

	for i := 0; i < maxFlushBatches; i++ {
		items, err := f.queue.Checkout(ctx, market, f.batch)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		if err := f.persist(ctx, market, items); err != nil {
			return err
		}
	}
	return nil
}

// persist decodes and inserts one checked-out batch. Undecodable items are
// acknowledged anyway so a poison message can never wedge the queue; store
// failures nack the whole batch rather than half-committing it.
func (f *Flusher) persist(ctx context.Context, market string, items [][]byte) error {
	bars := make([]*models.OneMinuteBar, 0, len(items))
	bad := 0
	for _, raw := range items {
		var bar models.OneMinuteBar
		if err := json.Unmarshal(raw, &bar); err != nil {
			bad++
			continue
		}
		bars = append(bars, &bar)
	}
	if bad > 0 {
		f.metrics.RecordError("bar_decode")
		f.log.Error("flush: undecodable bars dropped",
			logger.String("market", market),
			logger.Int("dropped", bad),
			logger.Int("batch", len(items)))
	}
	if len(bars) == 0 {
		// whole batch was garbage; acknowledge to avoid a stuck queue
		return f.queue.Acknowledge(ctx, market, items)
	}

	if err := f.store.InsertBars(ctx, bars); err != nil {
		f.metrics.RecordError("bar_insert")
		if nerr := f.queue.Nack(ctx, market, items); nerr != nil {
			f.log.Error("flush: nack failed", logger.String("market", market), logger.Error(nerr))
		}
		return err
	}
	if err := f.queue.Acknowledge(ctx, market, items); err != nil {
		return err
	}
	f.metrics.RecordFlushedBars(len(bars))

	f.afterInsert(ctx, bars)
	return nil
}

// afterInsert caches the newest flushed minute per symbol and opportunistically
// feeds the bars' extremes to the 52-week tracker.
func (f *Flusher) afterInsert(ctx context.Context, bars []*models.OneMinuteBar) {
	latest := make(map[string]time.Time, len(bars))
	for _, bar := range bars {
		if bar.Minute.After(latest[bar.Symbol]) {
			latest[bar.Symbol] = bar.Minute
		}
		if f.tracker != nil {
			if _, err := f.tracker.Observe(ctx, bar.Symbol, bar.High, bar.Minute); err != nil {
				f.log.Warn("flush: 52w observe failed", logger.String("symbol", bar.Symbol), logger.Error(err))
			}
			if _, err := f.tracker.Observe(ctx, bar.Symbol, bar.Low, bar.Minute); err != nil {
				f.log.Warn("flush: 52w observe failed", logger.String("symbol", bar.Symbol), logger.Error(err))
			}
		}
	}
	for sym, minute := range latest {
		if err := f.queue.CacheLatest(ctx, sym, minute); err != nil {
			f.log.Warn("flush: latest-bar cache failed", logger.String("symbol", sym), logger.Error(err))
		}
	}
}
