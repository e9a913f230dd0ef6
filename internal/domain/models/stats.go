package models

import "time"

// Rolling24HourStat holds broker-reported rolling 24h extremes for one
// (session group, symbol), independent of the intraday window.
type Rolling24HourStat struct {
	SessionNo int64
	Symbol    string
	High      float64
	Low       float64
	Range     float64
	RangePct  float64
	Volume    float64 // delta-accumulated, never the raw cumulative
	UpdatedAt time.Time
}

// Roll folds a quote's 24h fields into the stat. High/low only move outward;
// volume grows by the caller-computed delta.
func (r *Rolling24HourStat) Roll(q *Quote, volumeDelta float64, now time.Time) {
	if q.High > r.High {
		r.High = q.High
	}
	if r.Low == 0 || (q.Low > 0 && q.Low < r.Low) {
		r.Low = q.Low
	}
	r.Range = r.High - r.Low
	if r.Low > 0 {
		r.RangePct = r.Range / r.Low * 100
	}
	if volumeDelta > 0 {
		r.Volume += volumeDelta
	}
	r.UpdatedAt = now
}

// Rolling52WeekStat is the authoritative 52-week high/low for one symbol.
type Rolling52WeekStat struct {
	Symbol string
	High   float64
	HighAt time.Time
	Low    float64
	LowAt  time.Time
}
