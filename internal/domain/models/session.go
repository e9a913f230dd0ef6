package models

import "time"

// Signal is the speculative direction captured at market open.
type Signal string

const (
	SignalBuy        Signal = "BUY"
	SignalStrongBuy  Signal = "STRONG_BUY"
	SignalSell       Signal = "SELL"
	SignalStrongSell Signal = "STRONG_SELL"
	SignalHold       Signal = "HOLD"
)

// IsBuy reports whether the signal is a long variant.
func (s Signal) IsBuy() bool { return s == SignalBuy || s == SignalStrongBuy }

// IsSell reports whether the signal is a short variant.
func (s Signal) IsSell() bool { return s == SignalSell || s == SignalStrongSell }

// Outcome is the grading state of a session row.
type Outcome string

const (
	OutcomePending   Outcome = "PENDING"
	OutcomeWorked    Outcome = "WORKED"
	OutcomeDidntWork Outcome = "DIDNT_WORK"
	OutcomeNeutral   Outcome = "NEUTRAL"
)

// HitType records which level resolved a trade first.
type HitType string

const (
	HitTarget HitType = "TARGET"
	HitStop   HitType = "STOP"
)

// TotalSymbol is the synthetic cross-instrument composite row per session.
const TotalSymbol = "TOTAL"

// Session is one capture row: a hypothetical trade for (market, symbol,
// session number) graded against its targets while the market is open.
type Session struct {
	Market    string
	Symbol    string
	SessionNo int64

	Signal  Signal
	Outcome Outcome

	Entry      float64
	TargetHigh float64
	TargetLow  float64

	HitPrice float64
	HitType  HitType
	HitAt    time.Time // zero until first resolution; frozen afterward

	Open  float64
	High  float64
	Low   float64
	Close float64

	HighMovePct  float64 // peak move above open, frozen at the peak
	LowMovePct   float64 // run-up from the running low, recomputed each tick
	ClosePct     float64 // signed close vs open
	BelowHighPct float64
	AboveLowPct  float64
	RangeValue   float64
	RangePct     float64

	Week52High float64
	Week52Low  float64

	Volume    float64 // session cumulative
	UpdatedAt time.Time
}

// Hit reports whether the row has recorded its first target/stop hit.
func (s *Session) Hit() bool { return !s.HitAt.IsZero() }

// Gradable reports whether the row carries enough data to be graded.
func (s *Session) Gradable() bool {
	return s.Entry > 0 && s.TargetHigh > 0 && s.TargetLow > 0
}

// Resolve freezes the first hit. Replayed ticks after the first hit are
// ignored so the recorded price and type never change.
func (s *Session) Resolve(outcome Outcome, hit HitType, price float64, at time.Time) bool {
	if s.Hit() {
		return false
	}
	s.Outcome = outcome
	s.HitType = hit
	s.HitPrice = price
	s.HitAt = at
	return true
}
