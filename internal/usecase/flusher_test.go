package usecase

import (
	"context"
	"testing"
	"time"

	"MarketPulse/internal/domain/models"
)

func testBar(symbol string, minute time.Time, high, low float64) *models.OneMinuteBar {
	return &models.OneMinuteBar{
		Minute: minute,
		Symbol: symbol,
		Market: "nyse",
		Open:   low,
		High:   high,
		Low:    low,
		Close:  high,
		Volume: 100,
	}
}

func TestFlushPersistsAndAcks(t *testing.T) {
	ctx := context.Background()
	q := newFakeBarQueue()
	store := &fakeBars{}
	fmet := newFakeMetrics()
	tracker := NewYearly(newFakeStats(), newFakeExtremes(), &fakeBroadcast{}, fmet, testLogger(t))

	m1 := time.Date(2025, 6, 4, 15, 30, 0, 0, time.UTC)
	m2 := time.Date(2025, 6, 4, 15, 31, 0, 0, time.UTC)
	q.Push(ctx, "nyse", testBar("AAPL", m1, 101, 99))
	q.Push(ctx, "nyse", testBar("AAPL", m2, 102, 100))
	q.Push(ctx, "nyse", testBar("MSFT", m1, 201, 199))

	f := NewFlusher(q, store, tracker, fmet, testLogger(t), 10)
	if err := f.FlushOnce(ctx, "nyse"); err != nil {
		t.Fatalf("flush: %v", err)
	}

	if len(store.bars) != 3 {
		t.Fatalf("stored=%d want 3", len(store.bars))
	}
	if len(q.pending["nyse"]) != 0 || len(q.working["nyse"]) != 0 {
		t.Fatalf("queue not drained: pending=%d working=%d", len(q.pending["nyse"]), len(q.working["nyse"]))
	}
	if fmet.flushed != 3 {
		t.Fatalf("flushed metric=%d", fmet.flushed)
	}
	if !q.latest["AAPL"].Equal(m2) {
		t.Fatalf("latest AAPL minute=%v want %v", q.latest["AAPL"], m2)
	}
	if !q.latest["MSFT"].Equal(m1) {
		t.Fatalf("latest MSFT minute=%v", q.latest["MSFT"])
	}
}

func TestFlushFeedsExtremesTracker(t *testing.T) {
	ctx := context.Background()
	q := newFakeBarQueue()
	hash := newFakeExtremes()
	tracker := NewYearly(newFakeStats(), hash, &fakeBroadcast{}, newFakeMetrics(), testLogger(t))

	minute := time.Date(2025, 6, 4, 15, 30, 0, 0, time.UTC)
	q.Push(ctx, "nyse", testBar("AAPL", minute, 105, 95))

	f := NewFlusher(q, &fakeBars{}, tracker, newFakeMetrics(), testLogger(t), 10)
	if err := f.FlushOnce(ctx, "nyse"); err != nil {
		t.Fatalf("flush: %v", err)
	}

	stat, _, err := hash.Get(ctx, "AAPL")
	if err != nil || stat == nil {
		t.Fatalf("working copy missing: %v", err)
	}
	if stat.High != 105 || stat.Low != 95 {
		t.Fatalf("extremes = %+v", stat)
	}
}

func TestFlushRecoversAbandonedBars(t *testing.T) {
	ctx := context.Background()
	q := newFakeBarQueue()
	store := &fakeBars{}

	minute := time.Date(2025, 6, 4, 15, 30, 0, 0, time.UTC)
	// simulate a crash after checkout: the bar sits in the processing area
	q.Push(ctx, "nyse", testBar("AAPL", minute, 101, 99))
	if _, err := q.Checkout(ctx, "nyse", 10); err != nil {
		t.Fatalf("checkout: %v", err)
	}

	f := NewFlusher(q, store, nil, newFakeMetrics(), testLogger(t), 10)
	if err := f.FlushOnce(ctx, "nyse"); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if len(store.bars) != 1 {
		t.Fatalf("recovered bar not persisted, stored=%d", len(store.bars))
	}
	if len(q.working["nyse"]) != 0 {
		t.Fatalf("processing area not cleared")
	}
}

func TestFlushNacksOnStoreFailure(t *testing.T) {
	ctx := context.Background()
	q := newFakeBarQueue()
	store := &fakeBars{failInsert: true}
	fmet := newFakeMetrics()

	minute := time.Date(2025, 6, 4, 15, 30, 0, 0, time.UTC)
	q.Push(ctx, "nyse", testBar("AAPL", minute, 101, 99))

	f := NewFlusher(q, store, nil, fmet, testLogger(t), 10)
	if err := f.FlushOnce(ctx, "nyse"); err == nil {
		t.Fatalf("expected insert failure to surface")
	}
	if len(q.pending["nyse"]) != 1 {
		t.Fatalf("nacked bar not requeued, pending=%d", len(q.pending["nyse"]))
	}
	if len(q.working["nyse"]) != 0 {
		t.Fatalf("processing area not cleared after nack")
	}
	if fmet.errors["bar_insert"] != 1 {
		t.Fatalf("errors=%v", fmet.errors)
	}
}

func TestFlushAcksGarbageBatch(t *testing.T) {
	ctx := context.Background()
	q := newFakeBarQueue()
	store := &fakeBars{}
	fmet := newFakeMetrics()
	q.push("nyse", []byte("not a bar"))

	f := NewFlusher(q, store, nil, fmet, testLogger(t), 10)
	if err := f.FlushOnce(ctx, "nyse"); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if len(store.bars) != 0 {
		t.Fatalf("garbage persisted")
	}
	if len(q.pending["nyse"]) != 0 || len(q.working["nyse"]) != 0 {
		t.Fatalf("poison item wedged the queue")
	}
	if fmet.errors["bar_decode"] != 1 {
		t.Fatalf("errors=%v", fmet.errors)
	}
}
