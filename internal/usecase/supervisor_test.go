package usecase

import (
	"context"
	"math"
	"testing"
	"time"

	"MarketPulse/internal/domain/models"
)

func closeTo(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestApplyIntradayHighPeakFrozen(t *testing.T) {
	now := time.Now()
	s := &models.Session{Open: 100}

	if !applyIntraday(s, 110, 0, now) {
		t.Fatalf("apply rejected")
	}
	if s.High != 110 || !closeTo(s.HighMovePct, 10) {
		t.Fatalf("high=%v pct=%v", s.High, s.HighMovePct)
	}

	// retreat below the peak must not move the frozen percent
	applyIntraday(s, 105, 0, now)
	if s.High != 110 || !closeTo(s.HighMovePct, 10) {
		t.Fatalf("peak moved: high=%v pct=%v", s.High, s.HighMovePct)
	}

	applyIntraday(s, 120, 0, now)
	if s.High != 120 || !closeTo(s.HighMovePct, 20) {
		t.Fatalf("new peak not recorded: high=%v pct=%v", s.High, s.HighMovePct)
	}
}

func TestApplyIntradayLowRunUp(t *testing.T) {
	now := time.Now()
	s := &models.Session{Open: 100}

	applyIntraday(s, 110, 0, now)
	if s.Low != 110 || s.LowMovePct != 0 {
		t.Fatalf("first tick: low=%v runup=%v", s.Low, s.LowMovePct)
	}

	applyIntraday(s, 105, 0, now)
	if s.Low != 105 || s.LowMovePct != 0 {
		t.Fatalf("new low must reset run-up: low=%v runup=%v", s.Low, s.LowMovePct)
	}

	applyIntraday(s, 108, 0, now)
	want := (108.0 - 105.0) / 105.0 * 100
	if !closeTo(s.LowMovePct, want) {
		t.Fatalf("runup=%v want %v", s.LowMovePct, want)
	}

	applyIntraday(s, 104, 0, now)
	if s.Low != 104 || s.LowMovePct != 0 {
		t.Fatalf("lower low must reset run-up: low=%v runup=%v", s.Low, s.LowMovePct)
	}
}

func TestApplyIntradayRejectsBadInput(t *testing.T) {
	now := time.Now()
	if applyIntraday(&models.Session{Open: 0}, 100, 0, now) {
		t.Fatalf("zero open accepted")
	}
	if applyIntraday(&models.Session{Open: 100}, 0, 0, now) {
		t.Fatalf("zero price accepted")
	}
}

func TestApplyIntradayVolume(t *testing.T) {
	now := time.Now()
	s := &models.Session{Open: 100}
	applyIntraday(s, 100, 500, now)
	applyIntraday(s, 100, 0, now)
	applyIntraday(s, 100, 250, now)
	if s.Volume != 750 {
		t.Fatalf("volume=%v want 750", s.Volume)
	}
}

func TestVolumeDelta(t *testing.T) {
	w := &marketWorker{lastCum: make(map[string]float64)}

	if d := w.volumeDelta("ES", 1000); d != 0 {
		t.Fatalf("first observation delta=%v want 0", d)
	}
	if d := w.volumeDelta("ES", 1500); d != 500 {
		t.Fatalf("delta=%v want 500", d)
	}
	// out-of-order sample contributes nothing and keeps the baseline
	if d := w.volumeDelta("ES", 1400); d != 0 {
		t.Fatalf("stale sample delta=%v want 0", d)
	}
	if d := w.volumeDelta("ES", 1600); d != 100 {
		t.Fatalf("delta after stale=%v want 100", d)
	}
}

func newTickSupervisor(t *testing.T, fm *fakeMarkets, fs *fakeSessions, fstats *fakeStats, fq *fakeQuotes, fb *fakeBarQueue, fmet *fakeMetrics) *Supervisor {
	s := NewSupervisor(fm, fs, fstats, fq, fb, fmet, testLogger(t), time.Second)
	s.now = func() time.Time { return time.Date(2025, 6, 4, 15, 30, 12, 0, time.UTC) }
	return s
}

func TestTickUpdatesRowsStatsAndBars(t *testing.T) {
	fm := newFakeMarkets(&models.Market{Key: "nyse", Control: true, IntradayEnabled: true})
	fs := &fakeSessions{}
	fstats := newFakeStats()
	fq := newFakeQuotes()
	fb := newFakeBarQueue()
	fmet := newFakeMetrics()

	ctx := context.Background()
	fs.Insert(ctx, []*models.Session{
		{Market: "nyse", Symbol: "AAPL", SessionNo: 3, Open: 100, High: 100, Low: 100, Outcome: models.OutcomePending},
		{Market: "nyse", Symbol: models.TotalSymbol, SessionNo: 3, Open: 100, High: 100, Low: 100, Outcome: models.OutcomePending},
	})
	fq.set(&models.Quote{Symbol: "AAPL", Last: 110, Bid: 109.9, Ask: 110.1, Volume: 5000, High: 112, Low: 99})

	s := newTickSupervisor(t, fm, fs, fstats, fq, fb, fmet)
	w := &marketWorker{market: "nyse", lastCum: make(map[string]float64)}
	if !s.tick(ctx, w) {
		t.Fatalf("tick asked to stop")
	}

	row := fs.get("nyse", "AAPL", 3)
	if row.High != 110 || !closeTo(row.HighMovePct, 10) {
		t.Fatalf("row high=%v pct=%v", row.High, row.HighMovePct)
	}
	if row.Volume != 0 {
		t.Fatalf("first tick must only set the volume baseline, got %v", row.Volume)
	}

	total := fs.get("nyse", models.TotalSymbol, 3)
	if !closeTo(total.High, 110) || !closeTo(total.HighMovePct, 10) {
		t.Fatalf("composite high=%v pct=%v", total.High, total.HighMovePct)
	}

	stat, _ := fstats.Get24h(ctx, 3, "AAPL")
	if stat == nil || stat.High != 112 || stat.Low != 99 {
		t.Fatalf("24h stat = %+v", stat)
	}

	live, _ := fb.GetLive(ctx, "nyse", "AAPL")
	if live == nil || live.Open != 110 || live.Close != 110 {
		t.Fatalf("live bar = %+v", live)
	}
	if fmet.ticks != 1 {
		t.Fatalf("ticks=%d", fmet.ticks)
	}
}

func TestTickAccumulatesVolumeDelta(t *testing.T) {
	fm := newFakeMarkets(&models.Market{Key: "nyse", Control: true, IntradayEnabled: true})
	fs := &fakeSessions{}
	fstats := newFakeStats()
	fq := newFakeQuotes()
	fb := newFakeBarQueue()
	fmet := newFakeMetrics()

	ctx := context.Background()
	fs.Insert(ctx, []*models.Session{
		{Market: "nyse", Symbol: "AAPL", SessionNo: 1, Open: 100, High: 100, Low: 100, Outcome: models.OutcomePending},
	})
	fq.set(&models.Quote{Symbol: "AAPL", Last: 100, Volume: 1000})

	s := newTickSupervisor(t, fm, fs, fstats, fq, fb, fmet)
	w := &marketWorker{market: "nyse", lastCum: make(map[string]float64)}
	s.tick(ctx, w)
	fq.set(&models.Quote{Symbol: "AAPL", Last: 100, Volume: 1600})
	s.tick(ctx, w)

	row := fs.get("nyse", "AAPL", 1)
	if row.Volume != 600 {
		t.Fatalf("volume=%v want 600", row.Volume)
	}
	stat, _ := fstats.Get24h(ctx, 1, "AAPL")
	if stat.Volume != 600 {
		t.Fatalf("24h volume=%v want 600", stat.Volume)
	}
}

func TestTickStopsWhenIntradayDisabled(t *testing.T) {
	fm := newFakeMarkets(&models.Market{Key: "nyse", Control: true, IntradayEnabled: false})
	s := newTickSupervisor(t, fm, &fakeSessions{}, newFakeStats(), newFakeQuotes(), newFakeBarQueue(), newFakeMetrics())
	w := &marketWorker{market: "nyse", lastCum: make(map[string]float64)}
	if s.tick(context.Background(), w) {
		t.Fatalf("worker must stop when the intraday flag is off")
	}
}

func TestTickNoCapturedSession(t *testing.T) {
	fm := newFakeMarkets(&models.Market{Key: "nyse", Control: true, IntradayEnabled: true})
	fmet := newFakeMetrics()
	s := newTickSupervisor(t, fm, &fakeSessions{}, newFakeStats(), newFakeQuotes(), newFakeBarQueue(), fmet)
	w := &marketWorker{market: "nyse", lastCum: make(map[string]float64)}
	if !s.tick(context.Background(), w) {
		t.Fatalf("worker must stay alive while no session exists")
	}
}

func TestUpdateBarMinuteRoll(t *testing.T) {
	fb := newFakeBarQueue()
	fm := newFakeMarkets(&models.Market{Key: "fx", Control: true, IntradayEnabled: true})
	s := newTickSupervisor(t, fm, &fakeSessions{}, newFakeStats(), newFakeQuotes(), fb, newFakeMetrics())
	ctx := context.Background()

	m1 := time.Date(2025, 6, 4, 15, 30, 10, 0, time.UTC)
	m2 := time.Date(2025, 6, 4, 15, 31, 2, 0, time.UTC)

	s.updateBar(ctx, "fx", "EURUSD", &models.Quote{Symbol: "EURUSD", Last: 1.10, Bid: 1.0999, Ask: 1.1001}, m1)
	s.updateBar(ctx, "fx", "EURUSD", &models.Quote{Symbol: "EURUSD", Last: 1.12, Bid: 1.1199, Ask: 1.1201}, m1.Add(20*time.Second))
	s.updateBar(ctx, "fx", "EURUSD", &models.Quote{Symbol: "EURUSD", Last: 1.11, Bid: 1.1099, Ask: 1.1101}, m2)

	closed, _ := fb.Checkout(ctx, "fx", 10)
	if len(closed) != 1 {
		t.Fatalf("closed bars=%d want 1", len(closed))
	}
	live, _ := fb.GetLive(ctx, "fx", "EURUSD")
	if live == nil || !live.Minute.Equal(time.Date(2025, 6, 4, 15, 31, 0, 0, time.UTC)) {
		t.Fatalf("live bar = %+v", live)
	}
	if live.Open != 1.11 {
		t.Fatalf("live open=%v", live.Open)
	}
}

func TestSupervisorOpenCloseLifecycle(t *testing.T) {
	fm := newFakeMarkets(&models.Market{Key: "nyse", Control: true, IntradayEnabled: true})
	s := NewSupervisor(fm, &fakeSessions{}, newFakeStats(), newFakeQuotes(), newFakeBarQueue(), newFakeMetrics(), testLogger(t), time.Second)

	m := &models.Market{Key: "nyse", IntradayEnabled: true}
	s.OnMarketOpen(m)
	s.OnMarketOpen(m) // second open is a no-op
	s.mu.Lock()
	n := len(s.workers)
	s.mu.Unlock()
	if n != 1 {
		t.Fatalf("workers=%d want 1", n)
	}

	s.OnMarketClose(m)
	s.mu.Lock()
	n = len(s.workers)
	s.mu.Unlock()
	if n != 0 {
		t.Fatalf("workers=%d after close", n)
	}

	s.OnMarketOpen(&models.Market{Key: "nyse", IntradayEnabled: false})
	s.mu.Lock()
	n = len(s.workers)
	s.mu.Unlock()
	if n != 0 {
		t.Fatalf("intraday-disabled market must not get a worker")
	}
}
