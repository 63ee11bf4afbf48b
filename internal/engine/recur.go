package engine

import (
	"errors"
	"time"

	"github.com/circle97/remind/internal/store"
)

var (
	// ErrNotRecurring is returned when expansion is requested for a
	// non-recurring event.
	ErrNotRecurring = errors.New("event has no recurrence rule")
	// ErrInvalidHorizon is returned when the expansion horizon precedes the
	// event's start time.
	ErrInvalidHorizon = errors.New("horizon before event start")
)

// Occurrence is one concrete instance of a recurring event. Occurrences are
// transient — the caller decides whether to materialize any of them.
type Occurrence struct {
	EventID   string    `json:"event_id"`
	Title     string    `json:"title"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	AllDay    bool      `json:"all_day"`
}

// Expand steps the event's start forward by its recurrence period up to and
// including the horizon, preserving time-of-day and duration. The original
// occurrence is included. Monthly and yearly steps that land on a nonexistent
// day clamp to the last valid day of the target month (Jan-31 monthly yields
// Feb-28 or Feb-29). The horizon is additionally capped by the event's
// recurrence end. Pure: nothing is persisted.
func Expand(ev *store.Event, until time.Time) ([]Occurrence, error) {
	if ev.Recurrence == store.RecurNone || ev.Recurrence == "" {
		return nil, ErrNotRecurring
	}
	if until.Before(ev.StartTime) {
		return nil, ErrInvalidHorizon
	}

	horizon := until
	if ev.RecurrenceEnd != nil && ev.RecurrenceEnd.Before(horizon) {
		horizon = *ev.RecurrenceEnd
	}

	duration := ev.EndTime.Sub(ev.StartTime)

	var out []Occurrence
	for i := 0; ; i++ {
		start := nthStart(ev.StartTime, ev.Recurrence, i)
		if start.After(horizon) {
			break
		}
		out = append(out, Occurrence{
			EventID:   ev.ID,
			Title:     ev.Title,
			StartTime: start,
			EndTime:   start.Add(duration),
			AllDay:    ev.AllDay,
		})
	}
	return out, nil
}

// nthStart computes the start of the n-th occurrence (n=0 is the anchor).
// Month and year arithmetic is done on the anchor's calendar fields each time,
// not by repeated AddDate, so clamping never drifts the anchor day.
func nthStart(anchor time.Time, recurrence string, n int) time.Time {
	switch recurrence {
	case store.RecurDaily:
		return anchor.AddDate(0, 0, n)
	case store.RecurWeekly:
		return anchor.AddDate(0, 0, 7*n)
	case store.RecurMonthly:
		return clampedMonth(anchor, n)
	case store.RecurYearly:
		return clampedMonth(anchor, 12*n)
	}
	return anchor
}

// clampedMonth shifts the anchor by months whole calendar months, clamping
// the day-of-month to the last valid day of the target month.
func clampedMonth(anchor time.Time, months int) time.Time {
	y := anchor.Year()
	m := int(anchor.Month()) - 1 + months
	y += m / 12
	m = m % 12

	day := anchor.Day()
	if last := daysInMonth(y, time.Month(m+1)); day > last {
		day = last
	}
	return time.Date(y, time.Month(m+1), day,
		anchor.Hour(), anchor.Minute(), anchor.Second(), anchor.Nanosecond(),
		anchor.Location())
}

func daysInMonth(year int, month time.Month) int {
	// Day zero of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
