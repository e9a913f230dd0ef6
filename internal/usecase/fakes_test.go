package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/pkg/logger"
)

func testLogger(t interface{ Fatalf(string, ...interface{}) }) *logger.Logger {
	l, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

// --- market store ---

type fakeMarkets struct {
	mu   sync.Mutex
	defs map[string]*models.Market
}

func newFakeMarkets(defs ...*models.Market) *fakeMarkets {
	f := &fakeMarkets{defs: make(map[string]*models.Market)}
	for _, m := range defs {
		f.defs[m.Key] = m
	}
	return f
}

func (f *fakeMarkets) All(ctx context.Context) ([]*models.Market, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.defs))
	for k := range f.defs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*models.Market, 0, len(keys))
	for _, k := range keys {
		cp := *f.defs[k]
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeMarkets) Controlled(ctx context.Context) ([]*models.Market, error) {
	all, _ := f.All(ctx)
	out := all[:0]
	for _, m := range all {
		if m.Control {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMarkets) Get(ctx context.Context, key string) (*models.Market, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.defs[key]
	if !ok {
		return nil, fmt.Errorf("unknown market %s", key)
	}
	cp := *m
	return &cp, nil
}

func (f *fakeMarkets) SetStatus(ctx context.Context, key string, status models.MarketStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.defs[key]
	if !ok {
		return fmt.Errorf("unknown market %s", key)
	}
	m.Status = status
	return nil
}

// --- session store ---

type fakeSessions struct {
	mu   sync.Mutex
	rows []*models.Session
}

func (f *fakeSessions) Insert(ctx context.Context, rows []*models.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range rows {
		cp := *r
		f.rows = append(f.rows, &cp)
	}
	return nil
}

func (f *fakeSessions) Pending(ctx context.Context) ([]*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*models.Session{}
	for _, r := range f.rows {
		if r.Outcome == models.OutcomePending {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeSessions) OpenRows(ctx context.Context, market string, sessionNo int64) ([]*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*models.Session{}
	for _, r := range f.rows {
		if r.Market == market && r.SessionNo == sessionNo {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (f *fakeSessions) LatestSessionNo(ctx context.Context, market string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var max int64
	for _, r := range f.rows {
		if r.Market == market && r.SessionNo > max {
			max = r.SessionNo
		}
	}
	return max, nil
}

func (f *fakeSessions) Update(ctx context.Context, market, symbol string, sessionNo int64, fn func(*models.Session) bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.Market == market && r.Symbol == symbol && r.SessionNo == sessionNo {
			fn(r)
			return nil
		}
	}
	return nil
}

func (f *fakeSessions) UpdateAll(ctx context.Context, market string, sessionNo int64, fn func(*models.Session) bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rows := []*models.Session{}
	for _, r := range f.rows {
		if r.Market == market && r.SessionNo == sessionNo {
			rows = append(rows, r)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Symbol < rows[j].Symbol })
	for _, r := range rows {
		fn(r)
	}
	return nil
}

// get returns the stored row, not a copy. Test-side inspection only.
func (f *fakeSessions) get(market, symbol string, sessionNo int64) *models.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.Market == market && r.Symbol == symbol && r.SessionNo == sessionNo {
			return r
		}
	}
	return nil
}

// --- quote source ---

type fakeQuotes struct {
	mu     sync.Mutex
	quotes map[string]*models.Quote
	errOn  map[string]error
}

func newFakeQuotes() *fakeQuotes {
	return &fakeQuotes{quotes: make(map[string]*models.Quote), errOn: make(map[string]error)}
}

func (f *fakeQuotes) Latest(ctx context.Context, symbol string) (*models.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errOn[symbol]; err != nil {
		return nil, err
	}
	q, ok := f.quotes[symbol]
	if !ok {
		return nil, nil
	}
	cp := *q
	return &cp, nil
}

func (f *fakeQuotes) Publish(ctx context.Context, q *models.Quote) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *q
	f.quotes[q.Symbol] = &cp
	return nil
}

func (f *fakeQuotes) set(q *models.Quote) { _ = f.Publish(context.Background(), q) }

// --- stat store ---

type fakeStats struct {
	mu      sync.Mutex
	daily   map[string]*models.Rolling24HourStat
	yearly  map[string]*models.Rolling52WeekStat
	upserts int
}

func newFakeStats() *fakeStats {
	return &fakeStats{
		daily:  make(map[string]*models.Rolling24HourStat),
		yearly: make(map[string]*models.Rolling52WeekStat),
	}
}

func (f *fakeStats) Upsert24h(ctx context.Context, stat *models.Rolling24HourStat) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *stat
	f.daily[fmt.Sprintf("%d/%s", stat.SessionNo, stat.Symbol)] = &cp
	return nil
}

func (f *fakeStats) Get24h(ctx context.Context, sessionNo int64, symbol string) (*models.Rolling24HourStat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.daily[fmt.Sprintf("%d/%s", sessionNo, symbol)]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStats) All52w(ctx context.Context) ([]*models.Rolling52WeekStat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	syms := make([]string, 0, len(f.yearly))
	for s := range f.yearly {
		syms = append(syms, s)
	}
	sort.Strings(syms)
	out := make([]*models.Rolling52WeekStat, 0, len(syms))
	for _, s := range syms {
		cp := *f.yearly[s]
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeStats) Get52w(ctx context.Context, symbol string) (*models.Rolling52WeekStat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.yearly[symbol]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStats) Upsert52w(ctx context.Context, stat *models.Rolling52WeekStat) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *stat
	f.yearly[stat.Symbol] = &cp
	f.upserts++
	return nil
}

// --- bar queue ---

type fakeBarQueue struct {
	mu      sync.Mutex
	pending map[string][][]byte
	working map[string][][]byte
	live    map[string]*models.OneMinuteBar
	latest  map[string]time.Time
}

func newFakeBarQueue() *fakeBarQueue {
	return &fakeBarQueue{
		pending: make(map[string][][]byte),
		working: make(map[string][][]byte),
		live:    make(map[string]*models.OneMinuteBar),
		latest:  make(map[string]time.Time),
	}
}

func (f *fakeBarQueue) Push(ctx context.Context, market string, bar *models.OneMinuteBar) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending[market] = append(f.pending[market], encodeBar(bar))
	return nil
}

func (f *fakeBarQueue) push(market string, raw []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending[market] = append(f.pending[market], raw)
}

func (f *fakeBarQueue) Checkout(ctx context.Context, market string, n int) ([][]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q := f.pending[market]
	if n > len(q) {
		n = len(q)
	}
	out := q[:n]
	f.pending[market] = q[n:]
	f.working[market] = append(f.working[market], out...)
	return out, nil
}

func (f *fakeBarQueue) Acknowledge(ctx context.Context, market string, items [][]byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, item := range items {
		f.working[market] = removeOne(f.working[market], item)
	}
	return nil
}

func (f *fakeBarQueue) Nack(ctx context.Context, market string, items [][]byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, item := range items {
		f.working[market] = removeOne(f.working[market], item)
		f.pending[market] = append(f.pending[market], item)
	}
	return nil
}

func (f *fakeBarQueue) Recover(ctx context.Context, market string) ([][]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.working[market]
	return out, nil
}

func (f *fakeBarQueue) GetLive(ctx context.Context, market, symbol string) (*models.OneMinuteBar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	bar, ok := f.live[market+"/"+symbol]
	if !ok {
		return nil, nil
	}
	cp := *bar
	return &cp, nil
}

func (f *fakeBarQueue) SetLive(ctx context.Context, market string, bar *models.OneMinuteBar) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *bar
	f.live[market+"/"+bar.Symbol] = &cp
	return nil
}

func (f *fakeBarQueue) CacheLatest(ctx context.Context, symbol string, minute time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latest[symbol] = minute
	return nil
}

func encodeBar(bar *models.OneMinuteBar) []byte {
	b, _ := json.Marshal(bar)
	return b
}

func removeOne(items [][]byte, target []byte) [][]byte {
	for i, item := range items {
		if string(item) == string(target) {
			return append(items[:i:i], items[i+1:]...)
		}
	}
	return items
}

// --- extremes hash ---

type fakeExtremes struct {
	mu      sync.Mutex
	stats   map[string]*models.Rolling52WeekStat
	session map[string]int64
	dirty   map[int64]map[string]bool
}

func newFakeExtremes() *fakeExtremes {
	return &fakeExtremes{
		stats:   make(map[string]*models.Rolling52WeekStat),
		session: make(map[string]int64),
		dirty:   make(map[int64]map[string]bool),
	}
}

func (f *fakeExtremes) Seed(ctx context.Context, sessionNo int64, stats []*models.Rolling52WeekStat) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range stats {
		cp := *s
		f.stats[s.Symbol] = &cp
		f.session[s.Symbol] = sessionNo
	}
	delete(f.dirty, sessionNo)
	return nil
}

func (f *fakeExtremes) Get(ctx context.Context, symbol string) (*models.Rolling52WeekStat, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.stats[symbol]
	if !ok {
		return nil, 0, nil
	}
	cp := *s
	return &cp, f.session[symbol], nil
}

func (f *fakeExtremes) Set(ctx context.Context, symbol string, stat *models.Rolling52WeekStat, sessionNo int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *stat
	f.stats[symbol] = &cp
	f.session[symbol] = sessionNo
	return nil
}

func (f *fakeExtremes) MarkDirty(ctx context.Context, sessionNo int64, symbol string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dirty[sessionNo] == nil {
		f.dirty[sessionNo] = make(map[string]bool)
	}
	f.dirty[sessionNo][symbol] = true
	return nil
}

func (f *fakeExtremes) DrainDirty(ctx context.Context, sessionNo int64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	set := f.dirty[sessionNo]
	delete(f.dirty, sessionNo)
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}

// --- active set ---

type fakeActive struct {
	mu      sync.Mutex
	members map[string]bool
}

func newFakeActive() *fakeActive { return &fakeActive{members: make(map[string]bool)} }

func (f *fakeActive) Add(ctx context.Context, market string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members[market] = true
	return int64(len(f.members)), nil
}

func (f *fakeActive) Remove(ctx context.Context, market string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.members, market)
	return int64(len(f.members)), nil
}

func (f *fakeActive) Members(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.members))
	for m := range f.members {
		out = append(out, m)
	}
	sort.Strings(out)
	return out, nil
}

// --- broadcaster ---

type fakeBroadcast struct {
	mu     sync.Mutex
	events []*models.Event
}

func (f *fakeBroadcast) Publish(ctx context.Context, ev *models.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeBroadcast) kinds() []models.EventKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.EventKind, 0, len(f.events))
	for _, ev := range f.events {
		out = append(out, ev.Kind)
	}
	return out
}

// --- metrics ---

type fakeMetrics struct {
	mu          sync.Mutex
	transitions int
	ticks       int
	outcomes    map[string]int
	flushed     int
	errors      map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{outcomes: make(map[string]int), errors: make(map[string]int)}
}

func (f *fakeMetrics) RecordTransition(market, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transitions++
}

func (f *fakeMetrics) RecordTick(market string, seconds float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ticks++
}

func (f *fakeMetrics) RecordOutcome(outcome string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes[outcome]++
}

func (f *fakeMetrics) RecordFlushedBars(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushed += n
}

func (f *fakeMetrics) RecordError(kind string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors[kind]++
}

func (f *fakeMetrics) RecordLastPrice(symbol string, price float64) {}

// --- bar store ---

type fakeBars struct {
	mu         sync.Mutex
	bars       []*models.OneMinuteBar
	failInsert bool
}

func (f *fakeBars) InsertBars(ctx context.Context, bars []*models.OneMinuteBar) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failInsert {
		return fmt.Errorf("insert refused")
	}
	f.bars = append(f.bars, bars...)
	return nil
}

func (f *fakeBars) LatestMinute(ctx context.Context, symbol string) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var max time.Time
	for _, b := range f.bars {
		if b.Symbol == symbol && b.Minute.After(max) {
			max = b.Minute
		}
	}
	return max, nil
}
