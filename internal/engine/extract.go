package engine

import (
	"regexp"
	"strconv"
	"time"
)

// Date and time token patterns. Dates accept 年/月/日, "-" or "/" separators
// with an optional trailing day marker; times accept HH:MM or HH时MM分.
var (
	dateRe      = regexp.MustCompile(`(\d{4})[年/\-](\d{1,2})[月/\-](\d{1,2})日?`)
	clockTimeRe = regexp.MustCompile(`(\d{1,2}):(\d{2})`)
	cjkTimeRe   = regexp.MustCompile(`(\d{1,2})时(\d{1,2})分`)
)

// ExtractDate scans text for a calendar date token. Invalid calendar dates
// (month 13, Feb 30) are treated as no match, never an error. A date strictly
// before today rolls forward one year: a past date in free text almost always
// describes an annually recurring occasion, and the next occurrence is what
// the user wants recorded.
func ExtractDate(text string, now time.Time) (time.Time, bool) {
	m := dateRe.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}

	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])

	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow (Feb 30 → Mar 2); reject that.
	if date.Year() != year || date.Month() != time.Month(month) || date.Day() != day {
		return time.Time{}, false
	}

	if date.Before(today(now)) {
		date = date.AddDate(1, 0, 0)
	}
	return date, true
}

// ExtractTime scans text for a clock time token. Out-of-range values
// (hour 25, minute 72) are treated as no match.
func ExtractTime(text string) (hour, minute int, ok bool) {
	m := clockTimeRe.FindStringSubmatch(text)
	if m == nil {
		m = cjkTimeRe.FindStringSubmatch(text)
	}
	if m == nil {
		return 0, 0, false
	}

	hour, _ = strconv.Atoi(m[1])
	minute, _ = strconv.Atoi(m[2])
	if hour > 23 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}

// today truncates now to midnight UTC.
func today(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
