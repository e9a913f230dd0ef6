// Package marketclock evaluates a market's calendar: current status and the
// instant of its next open/close transition. It is pure and stateless so the
// monitor can re-evaluate it on every timer fire without drift concerns.
package marketclock

import (
	"time"

	"MarketPulse/internal/domain/models"
)

// Horizon bounds the forward search for the next transition. Markets closed
// longer than this report no next transition.
const Horizon = 14 * 24 * time.Hour

const dateLayout = "2006-01-02"

// Result is one clock evaluation.
type Result struct {
	Status models.MarketStatus
	Reason models.ClockReason
	Next   time.Time // zero when nothing happens inside the horizon
}

// window is one concrete session resolved to absolute instants.
type window struct {
	pre   time.Time // zero when premarket is absent or misconfigured
	open  time.Time
	close time.Time
}

// Evaluate resolves the market's status at now and the next transition after
// now. Overnight sessions (close time-of-day before open) are handled by
// checking both the previous local day's window and the current one.
func Evaluate(m *models.Market, now time.Time) Result {
	loc := m.Location()
	local := now.In(loc)
	today := dayStart(local)

	for _, day := range []time.Time{today.AddDate(0, 0, -1), today} {
		w, ok := windowFor(m, day)
		if !ok {
			continue
		}
		if !now.Before(w.open) && now.Before(w.close) {
			return Result{Status: models.StatusOpen, Reason: models.ReasonSession, Next: w.close}
		}
		if !w.pre.IsZero() && !now.Before(w.pre) && now.Before(w.open) {
			return Result{Status: models.StatusPremarket, Reason: models.ReasonPremarket, Next: w.open}
		}
	}

	return Result{
		Status: models.StatusClosed,
		Reason: closedReason(m, today),
		Next:   NextTransition(m, now),
	}
}

// IsOpen is the boolean the monitor trusts over any cached status.
func IsOpen(m *models.Market, now time.Time) bool {
	return Evaluate(m, now).Status == models.StatusOpen
}

// TradingDay reports whether the market's current local date has a session,
// i.e. open capture is allowed today.
func TradingDay(m *models.Market, now time.Time) bool {
	_, ok := windowFor(m, dayStart(now.In(m.Location())))
	return ok
}

// NextTransition returns the earliest premarket/open/close instant strictly
// after now, scanning forward day by day and skipping closed days, bounded by
// the horizon.
func NextTransition(m *models.Market, now time.Time) time.Time {
	loc := m.Location()
	start := dayStart(now.In(loc)).AddDate(0, 0, -1)
	limit := now.Add(Horizon)

	for day := start; day.Before(limit); day = day.AddDate(0, 0, 1) {
		w, ok := windowFor(m, day)
		if !ok {
			continue
		}
		for _, t := range []time.Time{w.pre, w.open, w.close} {
			if !t.IsZero() && t.After(now) {
				return t
			}
		}
	}
	return time.Time{}
}

// windowFor resolves the session window for one local day (midnight in the
// market's zone). Holiday overrides win: a zero early close means the whole
// day is closed, a positive one substitutes the close.
func windowFor(m *models.Market, day time.Time) (window, bool) {
	sw, ok := m.Weekly[day.Weekday()]
	if !ok || sw.Close == sw.Open {
		return window{}, false
	}

	closeMin := sw.Close
	if h, held := m.Holidays[day.Format(dateLayout)]; held {
		if h.EarlyClose <= 0 {
			return window{}, false
		}
		closeMin = h.EarlyClose
	}

	w := window{
		open:  atMinute(day, sw.Open),
		close: atMinute(day, closeMin),
	}
	if closeMin < sw.Open {
		// overnight session, close falls on the next local day
		w.close = atMinute(day.AddDate(0, 0, 1), closeMin)
	}
	if sw.Premarket > 0 && sw.Premarket < sw.Open {
		w.pre = atMinute(day, sw.Premarket)
	}
	return w, true
}

// atMinute pins a minute-of-day onto a local calendar day. Going through
// time.Date keeps the wall-clock time stable across DST transitions, where
// adding a duration to midnight would drift by the offset change.
func atMinute(day time.Time, min int) time.Time {
	y, mo, d := day.Date()
	return time.Date(y, mo, d, min/60, min%60, 0, 0, day.Location())
}

func closedReason(m *models.Market, today time.Time) models.ClockReason {
	if h, held := m.Holidays[today.Format(dateLayout)]; held && h.EarlyClose <= 0 {
		return models.ReasonHoliday
	}
	if _, ok := m.Weekly[today.Weekday()]; !ok {
		return models.ReasonWeeklyClosed
	}
	return models.ReasonOutsideHours
}

func dayStart(local time.Time) time.Time {
	y, mo, d := local.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, local.Location())
}
