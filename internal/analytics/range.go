package analytics

import (
	"time"

	"github.com/agentlens/agentlens/internal/timeutil"
)

// Granularity is the calendar-aware bucket width for time-series
// aggregation. Buckets are calendar-truncated, not fixed-width, so
// DST transitions and month-length variation bucket correctly.
type Granularity string

const (
	GranularityHour  Granularity = "hour"
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week" // ISO week, Monday start
	GranularityMonth Granularity = "month"
)

// Truncate maps t to the start of its bucket in loc.
func (g Granularity) Truncate(
	t time.Time, loc *time.Location,
) time.Time {
	switch g {
	case GranularityHour:
		return timeutil.StartOfHour(t, loc)
	case GranularityWeek:
		return timeutil.StartOfISOWeek(t, loc)
	case GranularityMonth:
		return timeutil.StartOfMonth(t, loc)
	default:
		return timeutil.StartOfDay(t, loc)
	}
}

// RangeKind enumerates the supported date ranges.
type RangeKind string

const (
	RangeToday      RangeKind = "today"
	RangeYesterday  RangeKind = "yesterday"
	RangeLast7Days  RangeKind = "7d"
	RangeLast30Days RangeKind = "30d"
	RangeAllTime    RangeKind = "all"
	RangeCustom     RangeKind = "custom"
)

// DateRange selects the analytics query window. From/To apply to
// custom ranges only; To may be zero (unbounded above).
type DateRange struct {
	Kind RangeKind
	From time.Time
	To   time.Time
}

// Bounds returns the [lower, upper) window for the range. A zero
// bound means unbounded on that side. upper equals now for the
// trailing ranges; all-time and custom ranges have no upper bound
// (custom honors an explicit To).
func (r DateRange) Bounds(
	now time.Time, loc *time.Location,
) (lower, upper time.Time) {
	switch r.Kind {
	case RangeToday:
		return timeutil.StartOfDay(now, loc), now
	case RangeYesterday:
		today := timeutil.StartOfDay(now, loc)
		return today.AddDate(0, 0, -1), today
	case RangeLast7Days:
		return timeutil.StartOfDay(now, loc).AddDate(0, 0, -6), now
	case RangeLast30Days:
		return timeutil.StartOfDay(now, loc).AddDate(0, 0, -29), now
	case RangeCustom:
		return r.From, r.To
	default: // all time
		return time.Time{}, time.Time{}
	}
}

// PreviousBounds returns the immediately preceding interval of
// identical length ending exactly at the range's lower bound. For
// all-time there is no previous period by definition; a custom
// range has one only when both bounds are set.
func (r DateRange) PreviousBounds(
	now time.Time, loc *time.Location,
) (lower, upper time.Time, ok bool) {
	lo, hi := r.Bounds(now, loc)
	if lo.IsZero() || hi.IsZero() {
		return time.Time{}, time.Time{}, false
	}
	length := hi.Sub(lo)
	return lo.Add(-length), lo, true
}

// Granularity picks the bucket width appropriate for the range's
// span: hours inside a day, days up to ~3 months, ISO weeks up to a
// year, months beyond.
func (r DateRange) Granularity(now time.Time) Granularity {
	switch r.Kind {
	case RangeToday, RangeYesterday:
		return GranularityHour
	case RangeLast7Days, RangeLast30Days:
		return GranularityDay
	case RangeAllTime:
		return GranularityMonth
	}

	// Custom: span-based.
	from, to := r.From, r.To
	if to.IsZero() {
		to = now
	}
	if from.IsZero() {
		return GranularityMonth
	}
	span := to.Sub(from)
	switch {
	case span <= 48*time.Hour:
		return GranularityHour
	case span <= 92*24*time.Hour:
		return GranularityDay
	case span <= 366*24*time.Hour:
		return GranularityWeek
	default:
		return GranularityMonth
	}
}
