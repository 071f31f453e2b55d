package ingest

import (
	"strconv"
	"strings"
	"time"
)

// serialEpoch is the spreadsheet serial-date origin. Serial 1 is
// 1899-12-31 under the (historically off-by-one) 1900 date system.
var serialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.Local)

// generalLayouts approximate a platform date parser for the string shapes
// observed in exported reports.
var generalLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"02-Jan-2006",
}

// NormalizeDate parses a raw cell value into a calendar date. It recognizes,
// in order: spreadsheet serial numbers, common calendar strings, and
// slash-delimited month/day/year. The second return is false when no
// encoding matched; malformed input never produces an error.
func NormalizeDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}

	// Serial day-count offset from the fixed epoch. The bounds exclude small
	// integers (row counts, IDs) and absurd far-future values.
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		if n >= 1000 && n < 100000 {
			return serialEpoch.AddDate(0, 0, int(n)), true
		}
		return time.Time{}, false
	}

	for _, layout := range generalLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return midnight(t), true
		}
	}

	if t, ok := parseSlashMDY(s); ok {
		return t, true
	}
	return time.Time{}, false
}

// parseSlashMDY handles explicit month/day/year values such as "3/14/2024".
// Two-digit years are taken literally, not pivoted.
func parseSlashMDY(s string) (time.Time, bool) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return time.Time{}, false
	}
	m, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	d, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	y, err3 := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, false
	}
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return time.Time{}, false
	}
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.Local), true
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.Local)
}

// ISODate renders a normalized date as the calendar key used across the
// time series and records store.
func ISODate(t time.Time) string {
	return t.Format("2006-01-02")
}
