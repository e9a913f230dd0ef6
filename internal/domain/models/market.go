package models

import "time"

// MarketStatus is the persisted open/closed state of a regional market.
type MarketStatus string

const (
	StatusClosed    MarketStatus = "CLOSED"
	StatusPremarket MarketStatus = "PREMARKET"
	StatusOpen      MarketStatus = "OPEN"
)

// ClockReason explains why the clock resolved to a given status.
type ClockReason string

const (
	ReasonSession      ClockReason = "SESSION"
	ReasonPremarket    ClockReason = "PREMARKET"
	ReasonWeeklyClosed ClockReason = "WEEKLY_CLOSED"
	ReasonHoliday      ClockReason = "HOLIDAY"
	ReasonOutsideHours ClockReason = "OUTSIDE_HOURS"
)

// SessionWindow is one weekday's trading window in local time-of-day minutes.
// A close before open means the session runs overnight into the next day.
type SessionWindow struct {
	Open      int `yaml:"open"`      // minutes from local midnight
	Close     int `yaml:"close"`     // minutes from local midnight
	Premarket int `yaml:"premarket"` // minutes from local midnight, 0 = none
}

// Holiday overrides the weekly table for one local date.
// EarlyClose of 0 means fully closed.
type Holiday struct {
	Name       string `yaml:"name"`
	EarlyClose int    `yaml:"early_close"` // minutes from local midnight, 0 = closed all day
}

// Market is one tradable region: its calendar, status, and capability flags.
type Market struct {
	Key      string
	Name     string
	Timezone string
	Weekly   map[time.Weekday]SessionWindow
	Holidays map[string]Holiday // keyed by local date "2006-01-02"
	Status   MarketStatus
	Control  bool // participates in monitoring/gating

	CaptureEnabled  bool
	IntradayEnabled bool
	GradingEnabled  bool
}

// Location resolves the market's IANA timezone, falling back to UTC when the
// configured zone is unknown.
func (m *Market) Location() *time.Location {
	loc, err := time.LoadLocation(m.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Transition is a confirmed open/close flip emitted by the monitor.
type Transition struct {
	Market string       `json:"market"`
	From   MarketStatus `json:"from"`
	To     MarketStatus `json:"to"`
	At     time.Time    `json:"at"`
}
