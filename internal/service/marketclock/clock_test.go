package marketclock

import (
	"testing"
	"time"

	"MarketPulse/internal/domain/models"
)

func dayMarket() *models.Market {
	return &models.Market{
		Key:      "nyse",
		Timezone: "America/New_York",
		Weekly: map[time.Weekday]models.SessionWindow{
			time.Monday:    {Open: 570, Close: 960, Premarket: 480},
			time.Tuesday:   {Open: 570, Close: 960, Premarket: 480},
			time.Wednesday: {Open: 570, Close: 960, Premarket: 480},
			time.Thursday:  {Open: 570, Close: 960, Premarket: 480},
			time.Friday:    {Open: 570, Close: 960, Premarket: 480},
		},
		Holidays: map[string]models.Holiday{},
	}
}

func overnightMarket() *models.Market {
	return &models.Market{
		Key:      "sydney",
		Timezone: "UTC",
		Weekly: map[time.Weekday]models.SessionWindow{
			// opens 22:00, closes 06:00 next day
			time.Monday:  {Open: 1320, Close: 360},
			time.Tuesday: {Open: 1320, Close: 360},
		},
		Holidays: map[string]models.Holiday{},
	}
}

func at(loc *time.Location, y int, mo time.Month, d, h, min int) time.Time {
	return time.Date(y, mo, d, h, min, 0, 0, loc)
}

func TestEvaluateOpenDuringSession(t *testing.T) {
	m := dayMarket()
	loc := m.Location()
	// Wednesday 2025-06-04 12:00 local
	res := Evaluate(m, at(loc, 2025, time.June, 4, 12, 0))
	if res.Status != models.StatusOpen {
		t.Fatalf("status = %s, want OPEN", res.Status)
	}
	wantClose := at(loc, 2025, time.June, 4, 16, 0)
	if !res.Next.Equal(wantClose) {
		t.Fatalf("next = %v, want %v", res.Next, wantClose)
	}
}

func TestEvaluatePremarket(t *testing.T) {
	m := dayMarket()
	loc := m.Location()
	res := Evaluate(m, at(loc, 2025, time.June, 4, 8, 30))
	if res.Status != models.StatusPremarket {
		t.Fatalf("status = %s, want PREMARKET", res.Status)
	}
	if res.Reason != models.ReasonPremarket {
		t.Fatalf("reason = %s", res.Reason)
	}
	wantOpen := at(loc, 2025, time.June, 4, 9, 30)
	if !res.Next.Equal(wantOpen) {
		t.Fatalf("next = %v, want %v", res.Next, wantOpen)
	}
}

func TestEvaluateClosedWeekend(t *testing.T) {
	m := dayMarket()
	loc := m.Location()
	// Saturday
	res := Evaluate(m, at(loc, 2025, time.June, 7, 12, 0))
	if res.Status != models.StatusClosed {
		t.Fatalf("status = %s, want CLOSED", res.Status)
	}
	if res.Reason != models.ReasonWeeklyClosed {
		t.Fatalf("reason = %s", res.Reason)
	}
	// next transition is Monday premarket 08:00
	wantPre := at(loc, 2025, time.June, 9, 8, 0)
	if !res.Next.Equal(wantPre) {
		t.Fatalf("next = %v, want %v", res.Next, wantPre)
	}
}

func TestEvaluateHolidayFullClose(t *testing.T) {
	m := dayMarket()
	m.Holidays["2025-06-04"] = models.Holiday{Name: "Observed"}
	loc := m.Location()
	res := Evaluate(m, at(loc, 2025, time.June, 4, 12, 0))
	if res.Status != models.StatusClosed {
		t.Fatalf("status = %s, want CLOSED", res.Status)
	}
	if res.Reason != models.ReasonHoliday {
		t.Fatalf("reason = %s", res.Reason)
	}
}

func TestEvaluateHolidayEarlyClose(t *testing.T) {
	m := dayMarket()
	// closes 13:00 instead of 16:00
	m.Holidays["2025-06-04"] = models.Holiday{Name: "Half day", EarlyClose: 780}
	loc := m.Location()

	res := Evaluate(m, at(loc, 2025, time.June, 4, 12, 0))
	if res.Status != models.StatusOpen {
		t.Fatalf("status = %s, want OPEN before early close", res.Status)
	}
	wantClose := at(loc, 2025, time.June, 4, 13, 0)
	if !res.Next.Equal(wantClose) {
		t.Fatalf("next = %v, want %v", res.Next, wantClose)
	}

	res = Evaluate(m, at(loc, 2025, time.June, 4, 14, 0))
	if res.Status != models.StatusClosed {
		t.Fatalf("status = %s, want CLOSED after early close", res.Status)
	}
}

func TestEvaluateOvernightSpansMidnight(t *testing.T) {
	m := overnightMarket()
	loc := m.Location()

	// Tuesday 03:00 falls inside Monday's overnight window
	res := Evaluate(m, at(loc, 2025, time.June, 3, 3, 0))
	if res.Status != models.StatusOpen {
		t.Fatalf("status = %s, want OPEN inside overnight window", res.Status)
	}
	wantClose := at(loc, 2025, time.June, 3, 6, 0)
	if !res.Next.Equal(wantClose) {
		t.Fatalf("next = %v, want %v", res.Next, wantClose)
	}

	// Tuesday 12:00 is between sessions
	res = Evaluate(m, at(loc, 2025, time.June, 3, 12, 0))
	if res.Status != models.StatusClosed {
		t.Fatalf("status = %s, want CLOSED between overnight sessions", res.Status)
	}
}

func TestNextTransitionBeyondHorizon(t *testing.T) {
	m := &models.Market{
		Key:      "idle",
		Timezone: "UTC",
		Weekly:   map[time.Weekday]models.SessionWindow{},
	}
	next := NextTransition(m, time.Date(2025, time.June, 4, 0, 0, 0, 0, time.UTC))
	if !next.IsZero() {
		t.Fatalf("expected zero next for market with no sessions, got %v", next)
	}
}

func TestTradingDay(t *testing.T) {
	m := dayMarket()
	loc := m.Location()
	if !TradingDay(m, at(loc, 2025, time.June, 4, 1, 0)) {
		t.Fatalf("Wednesday should be a trading day")
	}
	if TradingDay(m, at(loc, 2025, time.June, 7, 12, 0)) {
		t.Fatalf("Saturday should not be a trading day")
	}
	m.Holidays["2025-06-04"] = models.Holiday{Name: "Observed"}
	if TradingDay(m, at(loc, 2025, time.June, 4, 1, 0)) {
		t.Fatalf("full-close holiday should not be a trading day")
	}
}

func TestPremarketIgnoredWhenNotBeforeOpen(t *testing.T) {
	m := dayMarket()
	w := m.Weekly[time.Wednesday]
	w.Premarket = w.Open + 10
	m.Weekly[time.Wednesday] = w
	loc := m.Location()
	res := Evaluate(m, at(loc, 2025, time.June, 4, 9, 0))
	if res.Status != models.StatusClosed {
		t.Fatalf("status = %s, want CLOSED when premarket is misconfigured", res.Status)
	}
}

func TestEvaluateOpenOnDSTTransitionDay(t *testing.T) {
	m := dayMarket()
	m.Weekly[time.Sunday] = models.SessionWindow{Open: 570, Close: 960}
	loc := m.Location()

	// US spring-forward: 2026-03-08 has no 02:00-03:00 hour, so midnight
	// plus 9h30m of duration lands at 10:30 wall clock.
	res := Evaluate(m, at(loc, 2026, time.March, 8, 9, 45))
	if res.Status != models.StatusOpen {
		t.Fatalf("status = %s (reason %s), want OPEN", res.Status, res.Reason)
	}
	wantClose := at(loc, 2026, time.March, 8, 16, 0)
	if !res.Next.Equal(wantClose) {
		t.Fatalf("next = %v, want %v", res.Next, wantClose)
	}

	// Fall-back day gains an hour; the close must still be 16:00 wall clock.
	res = Evaluate(m, at(loc, 2026, time.November, 1, 15, 30))
	if res.Status != models.StatusOpen {
		t.Fatalf("fall-back status = %s (reason %s), want OPEN", res.Status, res.Reason)
	}
	res = Evaluate(m, at(loc, 2026, time.November, 1, 16, 30))
	if res.Status != models.StatusClosed {
		t.Fatalf("fall-back status after close = %s, want CLOSED", res.Status)
	}
}
