package models

import "time"

// OneMinuteBar is an OHLCV record for one UTC minute bucket. Within its own
// minute it only extends monotonically; once a later minute begins the bar is
// finalized and queued for flushing.
type OneMinuteBar struct {
	Minute time.Time `json:"minute"`
	Symbol string    `json:"symbol"`
	Market string    `json:"market"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
	Bid    float64   `json:"bid"`
	Ask    float64   `json:"ask"`
	Spread float64   `json:"spread"`
}

// NewBar seeds a bar from the first observation of its minute.
func NewBar(minute time.Time, symbol, market string, q *Quote) *OneMinuteBar {
	return &OneMinuteBar{
		Minute: minute,
		Symbol: symbol,
		Market: market,
		Open:   q.Last,
		High:   q.Last,
		Low:    q.Last,
		Close:  q.Last,
		Volume: q.Volume,
		Bid:    q.Bid,
		Ask:    q.Ask,
		Spread: q.Ask - q.Bid,
	}
}

// Extend folds a later observation from the same minute into the bar.
func (b *OneMinuteBar) Extend(q *Quote) {
	if q.Last > b.High {
		b.High = q.Last
	}
	if q.Last < b.Low {
		b.Low = q.Last
	}
	b.Close = q.Last
	b.Volume = q.Volume
	b.Bid = q.Bid
	b.Ask = q.Ask
	b.Spread = q.Ask - q.Bid
}
