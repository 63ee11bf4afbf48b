package engine

import (
	"strings"
	"time"

	"github.com/circle97/remind/internal/store"
)

// Candidate is an event recognized from free text, tagged with the keyword
// that triggered it. Candidates are not persisted — the caller confirms,
// dedupes across categories if it wants to, and saves the ones it keeps.
type Candidate struct {
	Event   store.Event `json:"event"`
	Keyword string      `json:"keyword"`
}

// candidateRecurrenceYears bounds the recurrence horizon of recognized yearly
// events, since free text never states one.
const candidateRecurrenceYears = 10

type category struct {
	name     string
	keywords []string
	priority string
}

// Each category scans independently; overlapping keywords may emit multiple
// candidates for the same text.
var categories = []category{
	{store.CategoryBirthday, []string{"生日", "birthday"}, store.PriorityHigh},
	{store.CategoryAnniversary, []string{"纪念日", "周年", "anniversary"}, store.PriorityHigh},
	{store.CategoryFestival, festivalKeywords(), store.PriorityMedium},
	{store.CategoryAppointment, []string{"约会", "聚餐", "appointment", "dinner"}, store.PriorityMedium},
	{store.CategoryMeeting, []string{"会议", "讨论", "开会", "meeting"}, store.PriorityHigh},
}

type festival struct {
	keywords []string
	month    time.Month
	day      int
}

// Fixed-date festival table. Lunar festivals (Spring Festival, Mid-Autumn)
// are fixed-date approximations; true lunar calendaring is out of scope.
var festivals = []festival{
	{[]string{"元旦", "new year"}, time.January, 1},
	{[]string{"春节", "spring festival"}, time.February, 1},
	{[]string{"中秋", "mid-autumn"}, time.September, 15},
	{[]string{"国庆", "national day"}, time.October, 1},
	{[]string{"圣诞", "christmas"}, time.December, 25},
}

func festivalKeywords() []string {
	var kws []string
	for _, f := range festivals {
		kws = append(kws, f.keywords...)
	}
	return kws
}

// Recognize scans free text for calendar-worthy events. Each category is
// scanned independently and may emit one candidate; no keyword across any
// category yields an empty result, not an error.
func Recognize(text, ownerID string, now time.Time) []Candidate {
	lower := strings.ToLower(text)

	var out []Candidate
	for _, cat := range categories {
		kw, ok := matchKeyword(lower, cat.keywords)
		if !ok {
			continue
		}
		ev := buildCandidate(cat, kw, text, ownerID, now)
		out = append(out, Candidate{Event: ev, Keyword: kw})
	}
	return out
}

func matchKeyword(lower string, keywords []string) (string, bool) {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return kw, true
		}
	}
	return "", false
}

func buildCandidate(cat category, keyword, text, ownerID string, now time.Time) store.Event {
	ev := store.Event{
		OwnerID:     ownerID,
		Title:       keyword,
		Description: "recognized from: " + snippet(text, 120),
		Category:    cat.name,
		Priority:    cat.priority,
		Tags:        []string{"auto-detected"},
	}

	date, dateOK := ExtractDate(text, now)
	hour, minute, timeOK := ExtractTime(text)
	tomorrow := today(now).AddDate(0, 0, 1)

	switch cat.name {
	case store.CategoryBirthday, store.CategoryAnniversary:
		if !dateOK {
			date = tomorrow
		}
		ev.StartTime = date
		ev.EndTime = date.AddDate(0, 0, 1)
		ev.AllDay = true
		ev.Recurrence = store.RecurYearly

	case store.CategoryFestival:
		if !dateOK {
			date = festivalDate(keyword, now)
		}
		ev.StartTime = date
		ev.EndTime = date.AddDate(0, 0, 1)
		ev.AllDay = true
		ev.Recurrence = store.RecurYearly

	case store.CategoryAppointment:
		ev.StartTime = atClock(date, dateOK, tomorrow, hour, minute, timeOK, 18)
		ev.EndTime = ev.StartTime.Add(2 * time.Hour)
		ev.Recurrence = store.RecurNone

	case store.CategoryMeeting:
		ev.StartTime = atClock(date, dateOK, tomorrow, hour, minute, timeOK, 9)
		ev.EndTime = ev.StartTime.Add(1 * time.Hour)
		ev.Recurrence = store.RecurNone
	}

	if ev.Recurrence == store.RecurYearly {
		end := ev.StartTime.AddDate(candidateRecurrenceYears, 0, 0)
		ev.RecurrenceEnd = &end
	}
	return ev
}

// atClock combines the extracted (or defaulted) date with the extracted
// (or defaulted) hour on that day.
func atClock(date time.Time, dateOK bool, fallback time.Time, hour, minute int, timeOK bool, defaultHour int) time.Time {
	day := fallback
	if dateOK {
		day = date
	}
	if !timeOK {
		hour, minute = defaultHour, 0
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location())
}

// festivalDate resolves a festival keyword to its fixed date this year,
// rolled to next year if already past.
func festivalDate(keyword string, now time.Time) time.Time {
	for _, f := range festivals {
		for _, kw := range f.keywords {
			if kw != keyword {
				continue
			}
			date := time.Date(now.UTC().Year(), f.month, f.day, 0, 0, 0, 0, time.UTC)
			if date.Before(today(now)) {
				date = date.AddDate(1, 0, 0)
			}
			return date
		}
	}
	// Unreachable while the keyword tables stay derived from festivals.
	return today(now).AddDate(0, 0, 1)
}

func snippet(text string, max int) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= max {
		return string(runes)
	}
	return string(runes[:max]) + "…"
}
