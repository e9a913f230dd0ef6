package models

import "time"

// Quote is one upstream snapshot for a symbol. Volume is the broker's
// cumulative session volume; High/Low are the broker's rolling 24h extremes.
type Quote struct {
	Symbol    string    `json:"symbol"`
	Last      float64   `json:"last"`
	Bid       float64   `json:"bid"`
	Ask       float64   `json:"ask"`
	Volume    float64   `json:"volume"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Open      float64   `json:"open"`
	Close     float64   `json:"close"`
	Timestamp time.Time `json:"timestamp"`
}

// HasPrice reports whether the snapshot carries a usable last price.
func (q *Quote) HasPrice() bool {
	return q != nil && q.Last > 0
}
