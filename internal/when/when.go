// Package when computes and formats the timestamps resched works with: the
// randomized "tomorrow morning" target, the strings Gmail's manual picker
// accepts, and best-effort parsing of the localized text Gmail displays.
package when

import (
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// MorningHour is the hour of day the randomized target lands on.
	MorningHour = 8

	// cutoffHour separates "still early enough for this morning" from
	// "schedule for tomorrow". Before 08:00 local time the target stays on
	// the current day.
	cutoffHour = 8
)

// RandomMorning returns a target instant at MorningHour with a uniformly
// random minute in [0,59]. When now is within [00:00, 08:00) local time the
// target is the same calendar day, otherwise the next one.
func RandomMorning(now time.Time, r *rand.Rand) time.Time {
	minute := r.Intn(60)
	day := now
	if now.Hour() >= cutoffHour {
		day = now.AddDate(0, 0, 1)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), MorningHour, minute, 0, 0, now.Location())
}

// FormatMenuLabel renders a timestamp the way Gmail labels its own scheduling
// options, e.g. "Jan 2, 8:34 AM".
func FormatMenuLabel(t time.Time) string {
	return t.Format("Jan 2, 3:04 PM")
}

// FormatDateField renders the MM/DD/YYYY string Gmail's manual date input
// expects. The field is locale-fixed: Gmail validates this shape regardless
// of the display locale.
func FormatDateField(t time.Time) string {
	return t.Format("01/02/2006")
}

// FormatTimeField renders the 12-hour H:MM AM|PM string Gmail's manual time
// input expects.
func FormatTimeField(t time.Time) string {
	return t.Format("3:04 PM")
}

// FormatCanonical renders a machine-parseable instant string for persistence.
func FormatCanonical(t time.Time) string {
	return t.Format(time.RFC3339)
}

// ParseCanonical parses a string produced by FormatCanonical.
func ParseCanonical(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse canonical instant: %w", err)
	}
	return t, nil
}

// clockRe matches a 12-hour clock reading like "8:34 AM". Gmail sometimes
// separates the meridiem with a narrow no-break space; normalizeSpaces folds
// those before matching.
var clockRe = regexp.MustCompile(`(\d{1,2}):(\d{2})\s*([AaPp])\.?[Mm]\.?`)

// monthDayRe matches an abbreviated month-day reading like "Jan 2".
var monthDayRe = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+(\d{1,2})\b`)

var monthsByPrefix = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

func normalizeSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\u00a0', '\u202f', '\u2009':
			return ' '
		}
		return r
	}, s)
}

// ParseDisplay heuristically parses the localized text Gmail shows for a
// scheduled send, e.g. "Tomorrow, 8:34 AM" or "Jan 2, 8:34 AM". It recognizes
// the relative markers "today" and "tomorrow" and abbreviated month-day
// forms, always combined with a 12-hour clock time. The result carries the
// current year and now's location. This is a best-effort fallback for records
// persisted without a canonical instant; callers must treat failures as
// non-fatal.
func ParseDisplay(raw string, now time.Time) (time.Time, error) {
	s := normalizeSpaces(strings.TrimSpace(raw))
	if s == "" {
		return time.Time{}, fmt.Errorf("empty display text")
	}

	m := clockRe.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, fmt.Errorf("no clock time in %q", raw)
	}
	hour, err := strconv.Atoi(m[1])
	if err != nil || hour < 1 || hour > 12 {
		return time.Time{}, fmt.Errorf("bad hour in %q", raw)
	}
	minute, err := strconv.Atoi(m[2])
	if err != nil || minute > 59 {
		return time.Time{}, fmt.Errorf("bad minute in %q", raw)
	}
	if hour == 12 {
		hour = 0
	}
	if strings.EqualFold(m[3], "p") {
		hour += 12
	}

	lower := strings.ToLower(s)
	day := now
	switch {
	case strings.Contains(lower, "tomorrow"):
		day = now.AddDate(0, 0, 1)
	case strings.Contains(lower, "today"):
		// keep now's day
	default:
		md := monthDayRe.FindStringSubmatch(s)
		if md == nil {
			return time.Time{}, fmt.Errorf("no date marker in %q", raw)
		}
		month := monthsByPrefix[strings.ToLower(md[1])]
		dom, err := strconv.Atoi(md[2])
		if err != nil || dom < 1 || dom > 31 {
			return time.Time{}, fmt.Errorf("bad day of month in %q", raw)
		}
		day = time.Date(now.Year(), month, dom, 0, 0, 0, 0, now.Location())
	}

	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, now.Location()), nil
}
