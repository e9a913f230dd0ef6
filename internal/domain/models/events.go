package models

import "time"

// EventKind tags broadcast payloads.
type EventKind string

const (
	EventTransition EventKind = "market_transition"
	EventGraded     EventKind = "session_graded"
	EventWeek52     EventKind = "week52_extreme"
)

// Event is a fire-and-forget state-change notification. Delivery failures
// are logged and swallowed; no component depends on receiving one.
type Event struct {
	Kind      EventKind   `json:"kind"`
	Market    string      `json:"market,omitempty"`
	Symbol    string      `json:"symbol,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Week52Change is the payload emitted when a live price sets a new extreme.
type Week52Change struct {
	Symbol  string    `json:"symbol"`
	Side    string    `json:"side"` // "high" or "low"
	Price   float64   `json:"price"`
	Touched time.Time `json:"touched"`
}
