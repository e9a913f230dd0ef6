package usecase

import (
	"context"
	"testing"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/service/targets"
)

func newTestCapture(t *testing.T, fs *fakeSessions, fq *fakeQuotes, fstats *fakeStats, cfg targets.Config, signals map[string]models.Signal) *Capture {
	closer := NewCloser(fs, fq, newFakeMetrics(), testLogger(t))
	c := NewCapture(fs, fq, fstats, closer, cfg, signals, testLogger(t))
	c.now = func() time.Time { return time.Date(2025, 6, 4, 13, 30, 0, 0, time.UTC) }
	return c
}

func captureTargets() targets.Config {
	return targets.Config{
		"ES":   {Mode: targets.ModePoints, Offset: 10},
		"AAPL": {Mode: targets.ModePercent, Offset: 2},
	}
}

func TestOpenCapturesRows(t *testing.T) {
	ctx := context.Background()
	fs := &fakeSessions{}
	fq := newFakeQuotes()
	fq.set(&models.Quote{Symbol: "ES", Last: 5000})
	fq.set(&models.Quote{Symbol: "AAPL", Last: 200})
	fstats := newFakeStats()
	fstats.Upsert52w(ctx, &models.Rolling52WeekStat{Symbol: "AAPL", High: 240, Low: 160})

	c := newTestCapture(t, fs, fq, fstats, captureTargets(), map[string]models.Signal{"ES": models.SignalBuy})
	m := &models.Market{Key: "nyse", CaptureEnabled: true}

	no, err := c.Open(ctx, m, 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if no != 1 {
		t.Fatalf("session no=%d want 1", no)
	}

	es := fs.get("nyse", "ES", 1)
	if es == nil || es.Entry != 5000 || es.TargetHigh != 5010 || es.TargetLow != 4990 {
		t.Fatalf("ES row = %+v", es)
	}
	if es.Signal != models.SignalBuy {
		t.Fatalf("ES signal=%s", es.Signal)
	}
	if es.Outcome != models.OutcomePending {
		t.Fatalf("ES outcome=%s", es.Outcome)
	}

	aapl := fs.get("nyse", "AAPL", 1)
	if aapl == nil || !closeTo(aapl.TargetHigh, 204) || !closeTo(aapl.TargetLow, 196) {
		t.Fatalf("AAPL row = %+v", aapl)
	}
	if aapl.Signal != models.SignalHold {
		t.Fatalf("unconfigured symbol must default to HOLD, got %s", aapl.Signal)
	}
	if aapl.Week52High != 240 || aapl.Week52Low != 160 {
		t.Fatalf("52w snapshot not copied: %+v", aapl)
	}

	total := fs.get("nyse", models.TotalSymbol, 1)
	if total == nil || !closeTo(total.Entry, 2600) {
		t.Fatalf("composite row = %+v", total)
	}
	if total.Signal != models.SignalHold {
		t.Fatalf("composite signal=%s", total.Signal)
	}
}

func TestOpenAllocatesNextSessionNo(t *testing.T) {
	ctx := context.Background()
	fs := &fakeSessions{}
	fs.Insert(ctx, []*models.Session{{Market: "nyse", Symbol: "ES", SessionNo: 41}})
	fq := newFakeQuotes()
	fq.set(&models.Quote{Symbol: "ES", Last: 5000})
	fq.set(&models.Quote{Symbol: "AAPL", Last: 200})

	c := newTestCapture(t, fs, fq, newFakeStats(), captureTargets(), nil)
	no, err := c.Open(ctx, &models.Market{Key: "nyse", CaptureEnabled: true}, 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if no != 42 {
		t.Fatalf("session no=%d want 42", no)
	}
}

func TestOpenExplicitSessionNo(t *testing.T) {
	ctx := context.Background()
	fs := &fakeSessions{}
	fq := newFakeQuotes()
	fq.set(&models.Quote{Symbol: "ES", Last: 5000})
	fq.set(&models.Quote{Symbol: "AAPL", Last: 200})

	c := newTestCapture(t, fs, fq, newFakeStats(), captureTargets(), nil)
	no, err := c.Open(ctx, &models.Market{Key: "nyse", CaptureEnabled: true}, 7)
	if err != nil || no != 7 {
		t.Fatalf("no=%d err=%v", no, err)
	}
	if fs.get("nyse", "ES", 7) == nil {
		t.Fatalf("row missing for explicit session")
	}
}

func TestOpenSkipsWhenCaptureDisabled(t *testing.T) {
	ctx := context.Background()
	fs := &fakeSessions{}
	c := newTestCapture(t, fs, newFakeQuotes(), newFakeStats(), captureTargets(), nil)
	no, err := c.Open(ctx, &models.Market{Key: "nyse", CaptureEnabled: false}, 0)
	if err != nil || no != 0 {
		t.Fatalf("no=%d err=%v", no, err)
	}
	if rows, _ := fs.Pending(ctx); len(rows) != 0 {
		t.Fatalf("rows inserted for disabled market")
	}
}

func TestOpenSkipsWithoutQuotes(t *testing.T) {
	ctx := context.Background()
	fs := &fakeSessions{}
	c := newTestCapture(t, fs, newFakeQuotes(), newFakeStats(), captureTargets(), nil)
	no, err := c.Open(ctx, &models.Market{Key: "nyse", CaptureEnabled: true}, 0)
	if err != nil || no != 0 {
		t.Fatalf("no=%d err=%v", no, err)
	}
}

func TestOpenMissingQuoteSymbolSitsOut(t *testing.T) {
	ctx := context.Background()
	fs := &fakeSessions{}
	fq := newFakeQuotes()
	fq.set(&models.Quote{Symbol: "ES", Last: 5000})

	c := newTestCapture(t, fs, fq, newFakeStats(), captureTargets(), nil)
	no, err := c.Open(ctx, &models.Market{Key: "nyse", CaptureEnabled: true}, 0)
	if err != nil || no != 1 {
		t.Fatalf("no=%d err=%v", no, err)
	}
	if fs.get("nyse", "AAPL", 1) != nil {
		t.Fatalf("quoteless symbol captured")
	}
	total := fs.get("nyse", models.TotalSymbol, 1)
	if total == nil || total.Entry != 5000 {
		t.Fatalf("composite over one symbol = %+v", total)
	}
}
