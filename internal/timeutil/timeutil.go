// Package timeutil provides shared timestamp formatting, parsing,
// and calendar-aware truncation helpers.
package timeutil

import "time"

// Format renders t as RFC3339Nano in UTC, or "" for the zero time.
func Format(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// Ptr returns a pointer to the formatted timestamp, or nil for the
// zero time. Used for optional JSON fields.
func Ptr(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := Format(t)
	return &s
}

// Parse accepts RFC3339Nano and the plain seconds variant. Returns
// the zero time when the string cannot be parsed.
func Parse(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02T15:04:05Z", s); err == nil {
		return t
	}
	return time.Time{}
}

// LocalDay renders t as a YYYY-MM-DD calendar-day string in loc.
func LocalDay(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

// StartOfHour truncates t to the top of its hour in loc.
func StartOfHour(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(
		lt.Year(), lt.Month(), lt.Day(), lt.Hour(), 0, 0, 0, loc,
	)
}

// StartOfDay truncates t to local midnight in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

// StartOfISOWeek truncates t to the Monday midnight that starts its
// ISO week in loc.
func StartOfISOWeek(t time.Time, loc *time.Location) time.Time {
	day := StartOfDay(t, loc)
	// Weekday with Monday as 0.
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// StartOfMonth truncates t to the first local midnight of its month.
func StartOfMonth(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), 1, 0, 0, 0, 0, loc)
}

// ISOWeekday returns the Monday-indexed weekday of t (Mon=0, Sun=6).
func ISOWeekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}
