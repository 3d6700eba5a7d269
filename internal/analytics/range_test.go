package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateRangeBounds(t *testing.T) {
	now := time.Date(2024, 6, 12, 15, 30, 0, 0, time.UTC)
	startOfDay := time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		r     DateRange
		lower time.Time
		upper time.Time
	}{
		{
			name:  "today",
			r:     DateRange{Kind: RangeToday},
			lower: startOfDay,
			upper: now,
		},
		{
			name:  "yesterday is a closed calendar day",
			r:     DateRange{Kind: RangeYesterday},
			lower: startOfDay.AddDate(0, 0, -1),
			upper: startOfDay,
		},
		{
			name:  "7d includes today",
			r:     DateRange{Kind: RangeLast7Days},
			lower: startOfDay.AddDate(0, 0, -6),
			upper: now,
		},
		{
			name:  "30d",
			r:     DateRange{Kind: RangeLast30Days},
			lower: startOfDay.AddDate(0, 0, -29),
			upper: now,
		},
		{
			name: "all time unbounded",
			r:    DateRange{Kind: RangeAllTime},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lo, hi := tt.r.Bounds(now, time.UTC)
			assert.Equal(t, tt.lower, lo)
			assert.Equal(t, tt.upper, hi)
		})
	}
}

func TestPreviousBounds(t *testing.T) {
	now := time.Date(2024, 6, 12, 15, 30, 0, 0, time.UTC)

	t.Run("adjacent equal-length window", func(t *testing.T) {
		r := DateRange{Kind: RangeLast7Days}
		lo, hi := r.Bounds(now, time.UTC)
		prevLo, prevHi, ok := r.PreviousBounds(now, time.UTC)
		require.True(t, ok)
		assert.Equal(t, lo, prevHi)
		assert.Equal(t, hi.Sub(lo), prevHi.Sub(prevLo))
	})

	t.Run("all time has none", func(t *testing.T) {
		_, _, ok := DateRange{Kind: RangeAllTime}.
			PreviousBounds(now, time.UTC)
		assert.False(t, ok)
	})

	t.Run("open-ended custom has none", func(t *testing.T) {
		r := DateRange{
			Kind: RangeCustom,
			From: now.AddDate(0, 0, -10),
		}
		_, _, ok := r.PreviousBounds(now, time.UTC)
		assert.False(t, ok)
	})

	t.Run("closed custom has one", func(t *testing.T) {
		r := DateRange{
			Kind: RangeCustom,
			From: now.AddDate(0, 0, -10),
			To:   now.AddDate(0, 0, -3),
		}
		prevLo, prevHi, ok := r.PreviousBounds(now, time.UTC)
		require.True(t, ok)
		assert.Equal(t, r.From, prevHi)
		assert.Equal(t, now.AddDate(0, 0, -17), prevLo)
	})
}

func TestGranularityPicker(t *testing.T) {
	now := time.Date(2024, 6, 12, 15, 30, 0, 0, time.UTC)

	assert.Equal(t, GranularityHour,
		DateRange{Kind: RangeToday}.Granularity(now))
	assert.Equal(t, GranularityHour,
		DateRange{Kind: RangeYesterday}.Granularity(now))
	assert.Equal(t, GranularityDay,
		DateRange{Kind: RangeLast7Days}.Granularity(now))
	assert.Equal(t, GranularityDay,
		DateRange{Kind: RangeLast30Days}.Granularity(now))
	assert.Equal(t, GranularityMonth,
		DateRange{Kind: RangeAllTime}.Granularity(now))

	custom := func(days int) DateRange {
		return DateRange{
			Kind: RangeCustom,
			From: now.AddDate(0, 0, -days),
			To:   now,
		}
	}
	assert.Equal(t, GranularityHour, custom(1).Granularity(now))
	assert.Equal(t, GranularityDay, custom(30).Granularity(now))
	assert.Equal(t, GranularityWeek, custom(180).Granularity(now))
	assert.Equal(t, GranularityMonth, custom(500).Granularity(now))
}

func TestGranularityTruncate(t *testing.T) {
	// Thursday mid-month.
	ts := time.Date(2024, 6, 13, 17, 45, 10, 0, time.UTC)

	assert.Equal(t,
		time.Date(2024, 6, 13, 17, 0, 0, 0, time.UTC),
		GranularityHour.Truncate(ts, time.UTC))
	assert.Equal(t,
		time.Date(2024, 6, 13, 0, 0, 0, 0, time.UTC),
		GranularityDay.Truncate(ts, time.UTC))
	assert.Equal(t,
		time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), // Monday
		GranularityWeek.Truncate(ts, time.UTC))
	assert.Equal(t,
		time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		GranularityMonth.Truncate(ts, time.UTC))
}
