package rollup

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentlens/agentlens/internal/session"
)

// SummaryRow holds cross-day totals for a source set.
type SummaryRow struct {
	SessionsDistinct int
	Messages         int
	Commands         int
	DurationSeconds  float64
}

// AgentRow holds per-source totals for the breakdown query.
type AgentRow struct {
	Source           session.Source
	SessionsDistinct int
	Messages         int
	DurationSeconds  float64
}

// buildWhere assembles the shared WHERE clause. Day bounds are
// inclusive calendar-day strings (YYYY-MM-DD) in local time; an
// empty bound is unbounded on that side. Rollup queries are
// agent-filterable only; project filtering is not expressible here,
// which is why project-filtered requests take the fallback path.
func buildWhere(
	sources []session.Source, dayStart, dayEnd string,
) (string, []any) {
	var preds []string
	var args []any

	if len(sources) > 0 {
		ph := make([]string, len(sources))
		for i, src := range sources {
			ph[i] = "?"
			args = append(args, string(src))
		}
		preds = append(preds,
			"source IN ("+strings.Join(ph, ",")+")")
	}
	if dayStart != "" {
		preds = append(preds, "day >= ?")
		args = append(args, dayStart)
	}
	if dayEnd != "" {
		preds = append(preds, "day <= ?")
		args = append(args, dayEnd)
	}

	if len(preds) == 0 {
		return "1=1", nil
	}
	return strings.Join(preds, " AND "), args
}

// Summary returns totals for the given sources and day range.
func (st *Store) Summary(
	ctx context.Context,
	sources []session.Source, dayStart, dayEnd string,
) (SummaryRow, error) {
	where, args := buildWhere(sources, dayStart, dayEnd)
	query := `SELECT
			COALESCE(SUM(sessions), 0),
			COALESCE(SUM(messages), 0),
			COALESCE(SUM(commands), 0),
			COALESCE(SUM(duration_seconds), 0)
		FROM daily_rollups WHERE ` + where

	var row SummaryRow
	if err := st.reader.QueryRowContext(ctx, query, args...).Scan(
		&row.SessionsDistinct, &row.Messages,
		&row.Commands, &row.DurationSeconds,
	); err != nil {
		return SummaryRow{}, fmt.Errorf("querying summary: %w", err)
	}
	return row, nil
}

// AvgSessionLength returns the mean session duration in seconds for
// the given sources and day range, 0 when no sessions match.
func (st *Store) AvgSessionLength(
	ctx context.Context,
	sources []session.Source, dayStart, dayEnd string,
) (float64, error) {
	row, err := st.Summary(ctx, sources, dayStart, dayEnd)
	if err != nil {
		return 0, fmt.Errorf("querying avg session length: %w", err)
	}
	if row.SessionsDistinct == 0 {
		return 0, nil
	}
	return row.DurationSeconds / float64(row.SessionsDistinct), nil
}

// BreakdownByAgent returns per-source totals sorted by session count
// descending (source name as tie-break).
func (st *Store) BreakdownByAgent(
	ctx context.Context,
	sources []session.Source, dayStart, dayEnd string,
) ([]AgentRow, error) {
	where, args := buildWhere(sources, dayStart, dayEnd)
	query := `SELECT source,
			COALESCE(SUM(sessions), 0),
			COALESCE(SUM(messages), 0),
			COALESCE(SUM(duration_seconds), 0)
		FROM daily_rollups
		WHERE ` + where + `
		GROUP BY source
		ORDER BY SUM(sessions) DESC, source ASC`

	rows, err := st.reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying breakdown: %w", err)
	}
	defer rows.Close()

	var out []AgentRow
	for rows.Next() {
		var r AgentRow
		var src string
		if err := rows.Scan(
			&src, &r.SessionsDistinct, &r.Messages,
			&r.DurationSeconds,
		); err != nil {
			return nil, fmt.Errorf("scanning breakdown row: %w", err)
		}
		r.Source = session.Source(src)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating breakdown rows: %w", err)
	}
	return out, nil
}
