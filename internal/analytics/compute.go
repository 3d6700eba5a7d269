package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/agentlens/agentlens/internal/session"
	"github.com/agentlens/agentlens/internal/timeutil"
)

// maxReliableChangePct suppresses percentage changes whose absolute
// magnitude exceeds this bound: a near-zero baseline makes the ratio
// meaningless. Empirically tuned; preserve the value.
const maxReliableChangePct = 1000.0

// heatmap level thresholds over the cell count normalized against
// the grid maximum.
const (
	heatmapLowCutoff    = 0.33
	heatmapMediumCutoff = 0.67
)

// pctChange computes (current-previous)/previous*100, defined only
// when previous > 0 and the magnitude is reliable.
func pctChange(current, previous float64) *float64 {
	if previous <= 0 {
		return nil
	}
	change := (current - previous) / previous * 100
	if math.Abs(change) > maxReliableChangePct {
		return nil
	}
	return &change
}

// clippedActiveSeconds is the session's activity duration
// intersected with [lower, upper); zero bounds default to distant
// past/future. A non-positive intersection contributes zero.
func clippedActiveSeconds(
	s *session.Session, lower, upper, now time.Time,
) float64 {
	lo, hi := s.ActiveBounds(now)
	if !lower.IsZero() && lo.Before(lower) {
		lo = lower
	}
	if !upper.IsZero() && hi.After(upper) {
		hi = upper
	}
	if !hi.After(lo) {
		return 0
	}
	return hi.Sub(lo).Seconds()
}

// representativeInstant selects the single timestamp that stands in
// for the whole session in time-bucketed aggregation: the maximum
// event timestamp within [lower, upper) when events are loaded, else
// the endTime ?? startTime ?? modifiedAt fallback, but only when
// that fallback itself lies within bounds.
func representativeInstant(
	s *session.Session, lower, upper time.Time,
) (time.Time, bool) {
	in := func(t time.Time) bool {
		if t.IsZero() {
			return false
		}
		if !lower.IsZero() && t.Before(lower) {
			return false
		}
		if !upper.IsZero() && !t.Before(upper) {
			return false
		}
		return true
	}

	var best time.Time
	for i := range s.Events {
		ts := s.Events[i].Timestamp
		if in(ts) && ts.After(best) {
			best = ts
		}
	}
	if !best.IsZero() {
		return best, true
	}

	fallback := s.EndTime
	if fallback.IsZero() {
		fallback = s.StartTime
	}
	if fallback.IsZero() {
		fallback = s.ModifiedAt()
	}
	if in(fallback) {
		return fallback, true
	}
	return time.Time{}, false
}

// bestTimestamp is the single-timestamp precedence used by the
// heatmap and most-active views: startTime ?? endTime ?? modifiedAt.
func bestTimestamp(s *session.Session) time.Time {
	if !s.StartTime.IsZero() {
		return s.StartTime
	}
	if !s.EndTime.IsZero() {
		return s.EndTime
	}
	return s.ModifiedAt()
}

// inPeriod reports whether a session belongs to [lower, upper). The
// membership rule is shared by summary, breakdown, heatmap, and
// most-active so every view counts the same session set.
func inPeriod(s *session.Session, lower, upper time.Time) bool {
	_, ok := representativeInstant(s, lower, upper)
	return ok
}

// periodTotals are the raw totals for one period, used for both the
// current summary and the previous-period comparison.
type periodTotals struct {
	sessions      int
	messages      int
	commands      int
	activeSeconds float64
}

func (t periodTotals) avgSessionSeconds() float64 {
	if t.sessions == 0 {
		return 0
	}
	return t.activeSeconds / float64(t.sessions)
}

func computeTotals(
	sessions []*session.Session,
	lower, upper, now time.Time,
	opts Options,
) periodTotals {
	var t periodTotals
	for _, s := range sessions {
		if !opts.keeps(s.MessageCount()) {
			continue
		}
		if !inPeriod(s, lower, upper) {
			continue
		}
		t.sessions++
		t.messages += s.MessageCount()
		t.commands += s.CommandCount()
		t.activeSeconds += clippedActiveSeconds(s, lower, upper, now)
	}
	return t
}

// computeSummary builds the summary with period-over-period changes
// from the in-memory fallback path. Ranges without a previous period
// (all-time, open-ended custom) leave every change nil by
// definition, not computed-and-discarded.
func computeSummary(
	sessions []*session.Session,
	r DateRange,
	now time.Time, loc *time.Location,
	opts Options,
) Summary {
	lower, upper := r.Bounds(now, loc)
	cur := computeTotals(sessions, lower, upper, now, opts)

	s := Summary{
		Sessions:          cur.sessions,
		Messages:          cur.messages,
		Commands:          cur.commands,
		ActiveSeconds:     cur.activeSeconds,
		AvgSessionSeconds: cur.avgSessionSeconds(),
	}

	prevLower, prevUpper, ok := r.PreviousBounds(now, loc)
	if !ok {
		return s
	}
	prev := computeTotals(sessions, prevLower, prevUpper, now, opts)

	s.SessionsChange = pctChange(
		float64(cur.sessions), float64(prev.sessions))
	s.MessagesChange = pctChange(
		float64(cur.messages), float64(prev.messages))
	s.CommandsChange = pctChange(
		float64(cur.commands), float64(prev.commands))
	s.ActiveChange = pctChange(cur.activeSeconds, prev.activeSeconds)
	s.AvgSessionChange = pctChange(
		cur.avgSessionSeconds(), prev.avgSessionSeconds())
	return s
}

// computeTimeSeries buckets each session's representative instant by
// the range's granularity. Output is sorted by bucket time ascending
// with source name as tie-break.
func computeTimeSeries(
	sessions []*session.Session,
	r DateRange,
	now time.Time, loc *time.Location,
	opts Options,
) []TimeSeriesPoint {
	lower, upper := r.Bounds(now, loc)
	g := r.Granularity(now)

	type key struct {
		bucket time.Time
		source session.Source
	}
	acc := make(map[key]*TimeSeriesPoint)

	for _, s := range sessions {
		if !opts.keeps(s.MessageCount()) {
			continue
		}
		instant, ok := representativeInstant(s, lower, upper)
		if !ok {
			continue
		}
		k := key{bucket: g.Truncate(instant, loc), source: s.Source}
		p := acc[k]
		if p == nil {
			p = &TimeSeriesPoint{Bucket: k.bucket, Source: k.source}
			acc[k] = p
		}
		p.Sessions++
		p.Messages += s.MessageCount()
	}

	points := make([]TimeSeriesPoint, 0, len(acc))
	for _, p := range acc {
		points = append(points, *p)
	}
	sort.Slice(points, func(i, j int) bool {
		if !points[i].Bucket.Equal(points[j].Bucket) {
			return points[i].Bucket.Before(points[j].Bucket)
		}
		return points[i].Source < points[j].Source
	})
	return points
}

// computeHeatmap partitions matching sessions into a 7-day x
// 8-block grid by the best-available timestamp. All 56 cells are
// always emitted, zero-count cells included.
func computeHeatmap(
	sessions []*session.Session,
	r DateRange,
	now time.Time, loc *time.Location,
	opts Options,
) []HeatmapCell {
	lower, upper := r.Bounds(now, loc)

	var counts [7][8]int
	maxCount := 0
	for _, s := range sessions {
		if !opts.keeps(s.MessageCount()) {
			continue
		}
		if !inPeriod(s, lower, upper) {
			continue
		}
		ts := bestTimestamp(s).In(loc)
		day := timeutil.ISOWeekday(ts)
		block := ts.Hour() / 3
		counts[day][block]++
		if counts[day][block] > maxCount {
			maxCount = counts[day][block]
		}
	}

	cells := make([]HeatmapCell, 0, 56)
	for day := 0; day < 7; day++ {
		for block := 0; block < 8; block++ {
			cells = append(cells, HeatmapCell{
				Day:   day,
				Block: block,
				Count: counts[day][block],
				Level: heatmapLevel(counts[day][block], maxCount),
			})
		}
	}
	return cells
}

func heatmapLevel(count, maxCount int) ActivityLevel {
	if count == 0 || maxCount == 0 {
		return LevelNone
	}
	normalized := float64(count) / float64(maxCount)
	switch {
	case normalized < heatmapLowCutoff:
		return LevelLow
	case normalized < heatmapMediumCutoff:
		return LevelMedium
	default:
		return LevelHigh
	}
}

// computeBreakdown groups period sessions by source. Percentages are
// of the respective cross-source totals, 0 when a total is 0. Output
// is sorted by session count descending, source name ascending.
func computeBreakdown(
	sessions []*session.Session,
	r DateRange,
	now time.Time, loc *time.Location,
	opts Options,
) []AgentStat {
	lower, upper := r.Bounds(now, loc)

	acc := make(map[session.Source]*AgentStat)
	totalSessions, totalMessages := 0, 0

	for _, s := range sessions {
		if !opts.keeps(s.MessageCount()) {
			continue
		}
		if !inPeriod(s, lower, upper) {
			continue
		}
		st := acc[s.Source]
		if st == nil {
			st = &AgentStat{Source: s.Source}
			acc[s.Source] = st
		}
		st.Sessions++
		st.Messages += s.MessageCount()
		st.ActiveSeconds += clippedActiveSeconds(s, lower, upper, now)
		totalSessions++
		totalMessages += s.MessageCount()
	}

	stats := make([]AgentStat, 0, len(acc))
	for _, st := range acc {
		stats = append(stats, *st)
	}
	applyBreakdownPcts(stats, totalSessions, totalMessages)
	sortBreakdown(stats)
	return stats
}

func applyBreakdownPcts(
	stats []AgentStat, totalSessions, totalMessages int,
) {
	for i := range stats {
		if totalSessions > 0 {
			stats[i].SessionsPct =
				float64(stats[i].Sessions) /
					float64(totalSessions) * 100
		}
		if totalMessages > 0 {
			stats[i].MessagesPct =
				float64(stats[i].Messages) /
					float64(totalMessages) * 100
		}
	}
}

func sortBreakdown(stats []AgentStat) {
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Sessions != stats[j].Sessions {
			return stats[i].Sessions > stats[j].Sessions
		}
		return stats[i].Source < stats[j].Source
	})
}

// computeMostActive finds the 3-hour window holding the most period
// sessions, formatted as an hour range. Empty string when the input
// set is empty.
func computeMostActive(
	sessions []*session.Session,
	r DateRange,
	now time.Time, loc *time.Location,
	opts Options,
) string {
	lower, upper := r.Bounds(now, loc)

	var counts [8]int
	total := 0
	for _, s := range sessions {
		if !opts.keeps(s.MessageCount()) {
			continue
		}
		if !inPeriod(s, lower, upper) {
			continue
		}
		counts[bestTimestamp(s).In(loc).Hour()/3]++
		total++
	}
	if total == 0 {
		return ""
	}

	best := 0
	for block := 1; block < 8; block++ {
		if counts[block] > counts[best] {
			best = block
		}
	}
	return fmt.Sprintf("%02d:00-%02d:00", best*3, best*3+3)
}
