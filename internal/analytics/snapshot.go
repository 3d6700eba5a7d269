// Package analytics computes comparative usage analytics over the
// canonical session model: summary totals with period-over-period
// deltas, time-series histograms, activity heatmaps, per-agent
// breakdowns, and the most-active time window. A rollup-backed fast
// path and an in-memory fallback path produce equivalent counting
// semantics; the path is chosen once per snapshot, never mixed.
package analytics

import (
	"time"

	"github.com/agentlens/agentlens/internal/session"
)

// Options holds the session-counting toggles threaded into every
// filtering call. Both default to enabled; aggregation functions
// never read ambient global state.
type Options struct {
	HideZeroMessage bool // drop sessions with 0 messages
	HideLowMessage  bool // drop sessions with <= 2 messages
}

// DefaultOptions returns the toggles in their default-enabled state.
func DefaultOptions() Options {
	return Options{HideZeroMessage: true, HideLowMessage: true}
}

func (o Options) keeps(messageCount int) bool {
	if o.HideZeroMessage && messageCount == 0 {
		return false
	}
	if o.HideLowMessage && messageCount <= 2 {
		return false
	}
	return true
}

// Request selects what a snapshot covers.
type Request struct {
	Range   DateRange
	Source  session.Source // "" = all sources
	Project string         // repo-name filter, "" = all
}

// Snapshot is the immutable aggregate result, replaced wholesale on
// every recomputation.
type Snapshot struct {
	Summary        Summary           `json:"summary"`
	TimeSeries     []TimeSeriesPoint `json:"time_series"`
	AgentBreakdown []AgentStat       `json:"agent_breakdown"`
	HeatmapCells   []HeatmapCell     `json:"heatmap_cells"`
	MostActive     string            `json:"most_active_time_range,omitempty"`
	LastUpdated    time.Time         `json:"last_updated"`
}

// Summary holds period totals, each paired with an optional
// percentage change vs. the immediately preceding period of equal
// length. A nil change means no prior period exists or the
// comparison is statistically meaningless.
type Summary struct {
	Sessions       int      `json:"sessions"`
	SessionsChange *float64 `json:"sessions_change,omitempty"`

	Messages       int      `json:"messages"`
	MessagesChange *float64 `json:"messages_change,omitempty"`

	Commands       int      `json:"commands"`
	CommandsChange *float64 `json:"commands_change,omitempty"`

	ActiveSeconds float64  `json:"active_time_seconds"`
	ActiveChange  *float64 `json:"active_time_change,omitempty"`

	AvgSessionSeconds float64  `json:"avg_session_length_seconds"`
	AvgSessionChange  *float64 `json:"avg_session_length_change,omitempty"`
}

// TimeSeriesPoint is one (bucket, source) accumulation. Each session
// contributes exactly one representative instant, never one point
// per event.
type TimeSeriesPoint struct {
	Bucket   time.Time      `json:"bucket"`
	Source   session.Source `json:"source"`
	Sessions int            `json:"sessions"`
	Messages int            `json:"messages"`
}

// ActivityLevel is the discretized heatmap intensity.
type ActivityLevel string

const (
	LevelNone   ActivityLevel = "none"
	LevelLow    ActivityLevel = "low"
	LevelMedium ActivityLevel = "medium"
	LevelHigh   ActivityLevel = "high"
)

// HeatmapCell is one cell of the 7-day x 8-block activity grid.
// Day is the Monday-indexed weekday (Mon=0); Block is hour/3.
type HeatmapCell struct {
	Day   int           `json:"day"`
	Block int           `json:"block"`
	Count int           `json:"count"`
	Level ActivityLevel `json:"level"`
}

// AgentStat is one per-source breakdown entry.
type AgentStat struct {
	Source        session.Source `json:"source"`
	Sessions      int            `json:"sessions"`
	SessionsPct   float64        `json:"sessions_pct"`
	Messages      int            `json:"messages"`
	MessagesPct   float64        `json:"messages_pct"`
	ActiveSeconds float64        `json:"active_time_seconds"`
}
