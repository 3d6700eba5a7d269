package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentlens/agentlens/internal/session"
)

// testNow is a Wednesday. All tests run in UTC.
var testNow = time.Date(2024, 6, 12, 15, 0, 0, 0, time.UTC)

// fullAt builds a fully parsed session with n user/assistant pairs
// anchored at ts. Message count is 2n.
func fullAt(
	src session.Source, ts time.Time, pairs int,
) *session.Session {
	s := &session.Session{ID: ts.Format(time.RFC3339), Source: src}
	for i := 0; i < pairs; i++ {
		at := ts.Add(time.Duration(i) * time.Minute)
		s.Events = append(s.Events,
			session.Event{Kind: session.KindUser, Timestamp: at, Text: "q"},
			session.Event{Kind: session.KindAssistant,
				Timestamp: at.Add(30 * time.Second), Text: "a"},
		)
	}
	// Mirror the parser builder: header bounds from event times.
	if pairs > 0 {
		s.StartTime = ts
		s.EndTime = s.Events[len(s.Events)-1].Timestamp
	}
	return s
}

func TestPctChange(t *testing.T) {
	t.Run("normal change", func(t *testing.T) {
		got := pctChange(150, 100)
		require.NotNil(t, got)
		assert.InDelta(t, 50.0, *got, 1e-9)
	})

	t.Run("zero previous is undefined", func(t *testing.T) {
		assert.Nil(t, pctChange(10, 0))
	})

	t.Run("unreliable magnitude suppressed", func(t *testing.T) {
		assert.Nil(t, pctChange(1200, 1)) // +119900%
		got := pctChange(11, 1)           // exactly +1000%
		require.NotNil(t, got)
		assert.InDelta(t, 1000.0, *got, 1e-9)
	})

	t.Run("negative change kept", func(t *testing.T) {
		got := pctChange(50, 100)
		require.NotNil(t, got)
		assert.InDelta(t, -50.0, *got, 1e-9)
	})
}

func TestRepresentativeInstant(t *testing.T) {
	lower := testNow.Add(-24 * time.Hour)
	upper := testNow

	t.Run("max in-bounds event timestamp", func(t *testing.T) {
		s := fullAt(session.SourceClaude, testNow.Add(-2*time.Hour), 2)
		// An out-of-bounds later event must not win.
		s.Events = append(s.Events, session.Event{
			Kind:      session.KindAssistant,
			Timestamp: testNow.Add(time.Hour),
		})
		got, ok := representativeInstant(s, lower, upper)
		require.True(t, ok)
		assert.Equal(t,
			testNow.Add(-2*time.Hour).Add(time.Minute+30*time.Second),
			got)
	})

	t.Run("fallback must itself be in bounds", func(t *testing.T) {
		s := &session.Session{
			Source:    session.SourceAmp,
			StartTime: testNow.Add(-48 * time.Hour),
		}
		_, ok := representativeInstant(s, lower, upper)
		assert.False(t, ok)
	})

	t.Run("end time preferred over start time", func(t *testing.T) {
		s := &session.Session{
			Source:    session.SourceAmp,
			StartTime: testNow.Add(-48 * time.Hour),
			EndTime:   testNow.Add(-time.Hour),
		}
		got, ok := representativeInstant(s, lower, upper)
		require.True(t, ok)
		assert.Equal(t, testNow.Add(-time.Hour), got)
	})

	t.Run("upper bound exclusive", func(t *testing.T) {
		s := &session.Session{
			Source:  session.SourceAmp,
			EndTime: upper,
		}
		_, ok := representativeInstant(s, lower, upper)
		assert.False(t, ok)
	})
}

func TestComputeSummary(t *testing.T) {
	r := DateRange{Kind: RangeLast7Days}
	opts := DefaultOptions()

	current := []*session.Session{
		fullAt(session.SourceClaude, testNow.Add(-2*time.Hour), 2),
		fullAt(session.SourceCodex, testNow.Add(-26*time.Hour), 3),
	}
	previous := fullAt(
		session.SourceClaude, testNow.Add(-8*24*time.Hour), 2)
	all := append(append([]*session.Session{}, current...), previous)

	got := computeSummary(all, r, testNow, time.UTC, opts)
	assert.Equal(t, 2, got.Sessions)
	assert.Equal(t, 10, got.Messages)

	require.NotNil(t, got.SessionsChange)
	assert.InDelta(t, 100.0, *got.SessionsChange, 1e-9)

	t.Run("all time has no previous period", func(t *testing.T) {
		got := computeSummary(
			all, DateRange{Kind: RangeAllTime}, testNow, time.UTC, opts)
		assert.Equal(t, 3, got.Sessions)
		assert.Nil(t, got.SessionsChange)
		assert.Nil(t, got.MessagesChange)
	})

	t.Run("hide toggles drop small sessions", func(t *testing.T) {
		small := fullAt(session.SourceClaude, testNow.Add(-time.Hour), 1)
		got := computeSummary(
			append(all, small), r, testNow, time.UTC, opts)
		assert.Equal(t, 2, got.Sessions)

		loose := Options{}
		got = computeSummary(
			append(all, small), r, testNow, time.UTC, loose)
		assert.Equal(t, 3, got.Sessions)
	})
}

func TestComputeTimeSeries(t *testing.T) {
	r := DateRange{Kind: RangeLast7Days}
	sessions := []*session.Session{
		fullAt(session.SourceClaude, testNow.Add(-2*time.Hour), 2),
		fullAt(session.SourceClaude, testNow.Add(-3*time.Hour), 2),
		fullAt(session.SourceCodex, testNow.Add(-26*time.Hour), 2),
	}

	points := computeTimeSeries(
		sessions, r, testNow, time.UTC, DefaultOptions())
	require.Len(t, points, 2)

	// Sorted by bucket ascending; each session contributes exactly
	// one representative instant.
	assert.True(t, points[0].Bucket.Before(points[1].Bucket))
	assert.Equal(t, session.SourceCodex, points[0].Source)
	assert.Equal(t, 1, points[0].Sessions)
	assert.Equal(t, session.SourceClaude, points[1].Source)
	assert.Equal(t, 2, points[1].Sessions)
	assert.Equal(t, 8, points[1].Messages)
}

func TestComputeHeatmap(t *testing.T) {
	r := DateRange{Kind: RangeLast7Days}

	t.Run("always 56 cells", func(t *testing.T) {
		cells := computeHeatmap(
			nil, r, testNow, time.UTC, DefaultOptions())
		require.Len(t, cells, 56)
		for _, c := range cells {
			assert.Equal(t, 0, c.Count)
			assert.Equal(t, LevelNone, c.Level)
		}
	})

	t.Run("levels against grid max", func(t *testing.T) {
		// testNow is a Wednesday (ISO weekday 2); 15:00 is block 5.
		var sessions []*session.Session
		for i := 0; i < 4; i++ {
			sessions = append(sessions, fullAt(
				session.SourceClaude, testNow.Add(-time.Hour), 2))
		}
		// One session the previous day (Tuesday, weekday 1).
		sessions = append(sessions, fullAt(
			session.SourceCodex, testNow.Add(-25*time.Hour), 2))

		cells := computeHeatmap(
			sessions, r, testNow, time.UTC, DefaultOptions())
		require.Len(t, cells, 56)

		byCell := make(map[[2]int]HeatmapCell, 56)
		for _, c := range cells {
			byCell[[2]int{c.Day, c.Block}] = c
		}

		wed := byCell[[2]int{2, 4}] // 14:00 falls in block 4
		assert.Equal(t, 4, wed.Count)
		assert.Equal(t, LevelHigh, wed.Level)

		tue := byCell[[2]int{1, 4}]
		assert.Equal(t, 1, tue.Count)
		assert.Equal(t, LevelLow, tue.Level)
	})
}

func TestHeatmapLevel(t *testing.T) {
	assert.Equal(t, LevelNone, heatmapLevel(0, 10))
	assert.Equal(t, LevelNone, heatmapLevel(0, 0))
	assert.Equal(t, LevelLow, heatmapLevel(1, 10))
	assert.Equal(t, LevelMedium, heatmapLevel(5, 10))
	assert.Equal(t, LevelHigh, heatmapLevel(7, 10))
	assert.Equal(t, LevelHigh, heatmapLevel(10, 10))
}

func TestComputeBreakdown(t *testing.T) {
	r := DateRange{Kind: RangeLast7Days}
	sessions := []*session.Session{
		fullAt(session.SourceCodex, testNow.Add(-2*time.Hour), 2),
		fullAt(session.SourceClaude, testNow.Add(-3*time.Hour), 2),
		fullAt(session.SourceClaude, testNow.Add(-4*time.Hour), 4),
	}

	stats := computeBreakdown(
		sessions, r, testNow, time.UTC, DefaultOptions())
	require.Len(t, stats, 2)

	assert.Equal(t, session.SourceClaude, stats[0].Source)
	assert.Equal(t, 2, stats[0].Sessions)
	assert.InDelta(t, 66.666, stats[0].SessionsPct, 0.01)
	assert.Equal(t, session.SourceCodex, stats[1].Source)
	assert.InDelta(t, 33.333, stats[1].SessionsPct, 0.01)

	total := stats[0].MessagesPct + stats[1].MessagesPct
	assert.InDelta(t, 100.0, total, 1e-9)
}

func TestComputeMostActive(t *testing.T) {
	r := DateRange{Kind: RangeLast7Days}

	t.Run("empty set", func(t *testing.T) {
		got := computeMostActive(
			nil, r, testNow, time.UTC, DefaultOptions())
		assert.Equal(t, "", got)
	})

	t.Run("densest block wins", func(t *testing.T) {
		var sessions []*session.Session
		for i := 0; i < 3; i++ {
			// Starts at 13:00, block 4 (12:00-15:00).
			sessions = append(sessions, fullAt(
				session.SourceClaude, testNow.Add(-2*time.Hour), 2))
		}
		sessions = append(sessions, fullAt(
			session.SourceCodex,
			testNow.Add(-8*time.Hour), 2)) // 07:00, block 2

		got := computeMostActive(
			sessions, r, testNow, time.UTC, DefaultOptions())
		assert.Equal(t, "12:00-15:00", got)
	})
}
