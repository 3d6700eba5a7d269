package analytics

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agentlens/agentlens/internal/rollup"
	"github.com/agentlens/agentlens/internal/session"
	"github.com/agentlens/agentlens/internal/timeutil"
)

// defaultDebounce coalesces bursts of indexer list changes into a
// single recomputation.
const defaultDebounce = time.Second

// SessionSource is the per-agent indexer contract the aggregator
// consumes: an observable wholesale-replaced session list.
type SessionSource interface {
	Source() session.Source
	Sessions() []*session.Session
	Subscribe(fn func())
}

// RollupStore is the optional precomputed-aggregate collaborator.
// Queries are agent-filterable only; day bounds are inclusive local
// calendar-day strings, "" meaning unbounded.
type RollupStore interface {
	IsReady() bool
	Summary(ctx context.Context, sources []session.Source,
		dayStart, dayEnd string) (rollup.SummaryRow, error)
	AvgSessionLength(ctx context.Context, sources []session.Source,
		dayStart, dayEnd string) (float64, error)
	BreakdownByAgent(ctx context.Context, sources []session.Source,
		dayStart, dayEnd string) ([]rollup.AgentRow, error)
}

// Aggregator owns the published analytics state. All mutations to
// that state happen serially under mu; a recomputation started while
// another is in flight supersedes it via the generation counter
// (last writer wins, no interleaving).
type Aggregator struct {
	sources  []SessionSource
	store    RollupStore // nil = fallback path only
	loc      *time.Location
	now      func() time.Time
	debounce time.Duration

	gen atomic.Uint64

	mu       sync.Mutex
	req      Request
	opts     Options
	snapshot Snapshot
	loading  bool
	subs     []func(Snapshot)
	timer    *time.Timer
}

// New creates an aggregator over the given indexers. store may be
// nil; its absence permanently selects the in-memory path.
func New(
	sources []SessionSource, store RollupStore, opts Options,
) *Aggregator {
	a := &Aggregator{
		sources:  sources,
		store:    store,
		loc:      time.Local,
		now:      time.Now,
		debounce: defaultDebounce,
		req:      Request{Range: DateRange{Kind: RangeLast30Days}},
		opts:     opts,
	}
	for _, src := range sources {
		src.Subscribe(a.scheduleRecompute)
	}
	return a
}

// SetRequest changes the active query and recomputes immediately.
func (a *Aggregator) SetRequest(req Request) Snapshot {
	a.mu.Lock()
	a.req = req
	a.mu.Unlock()
	return a.Recompute()
}

// Snapshot returns the last published snapshot.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshot
}

// IsLoading reports whether a recomputation is in flight.
func (a *Aggregator) IsLoading() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loading
}

// Subscribe registers a callback invoked with every published
// snapshot.
func (a *Aggregator) Subscribe(fn func(Snapshot)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.subs = append(a.subs, fn)
}

// scheduleRecompute is the debounced change trigger: each upstream
// change restarts a short timer, and only the timer's expiry runs
// the recomputation.
func (a *Aggregator) scheduleRecompute() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.debounce, func() {
		a.Recompute()
	})
}

// Recompute builds a fresh snapshot from the current indexer lists
// and publishes it, unless a newer recomputation superseded this one
// while it ran.
func (a *Aggregator) Recompute() Snapshot {
	gen := a.gen.Add(1)

	a.mu.Lock()
	req := a.req
	opts := a.opts
	a.loading = true
	a.mu.Unlock()

	snap := a.compute(req, opts)

	a.mu.Lock()
	superseded := gen != a.gen.Load()
	if !superseded {
		a.snapshot = snap
		a.loading = false
	}
	subs := a.subs
	a.mu.Unlock()

	if !superseded {
		for _, fn := range subs {
			fn(snap)
		}
	}
	return snap
}

// compute assembles one snapshot. The working set is snapshotted
// from the indexers, narrowed by source/project, and fed to the
// per-view computations. Summary and breakdown may take the
// rollup-backed fast path; time series, heatmap, and most-active
// have no rollup queries and always compute in memory.
func (a *Aggregator) compute(req Request, opts Options) Snapshot {
	now := a.now()
	working := a.workingSet(req)

	snap := Snapshot{
		TimeSeries: computeTimeSeries(working, req.Range, now, a.loc, opts),
		HeatmapCells: computeHeatmap(
			working, req.Range, now, a.loc, opts),
		MostActive: computeMostActive(
			working, req.Range, now, a.loc, opts),
		LastUpdated: now,
	}

	if a.fastPathEligible(req, opts) {
		summary, breakdown, err := a.computeFromRollup(req, now)
		if err == nil {
			snap.Summary = summary
			snap.AgentBreakdown = breakdown
			return snap
		}
		// Store trouble is not an error condition: fall through
		// to the equivalent in-memory computation.
		log.Printf("analytics: rollup path failed, "+
			"falling back: %v", err)
	}

	snap.Summary = computeSummary(working, req.Range, now, a.loc, opts)
	snap.AgentBreakdown = computeBreakdown(
		working, req.Range, now, a.loc, opts)
	return snap
}

// workingSet snapshots and narrows the indexer-owned session lists.
// Sessions are read, never mutated.
func (a *Aggregator) workingSet(req Request) []*session.Session {
	var working []*session.Session
	for _, src := range a.sources {
		if req.Source != "" && src.Source() != req.Source {
			continue
		}
		for _, s := range src.Sessions() {
			if req.Project != "" && s.RepoName() != req.Project {
				continue
			}
			working = append(working, s)
		}
	}
	return working
}

// fastPathEligible gates the rollup-backed path: the store must be
// present and ready, and the filter combination expressible in its
// schema. Agent filtering is expressible; a project filter or
// non-default counting toggles are not, and force the fallback path
// for the whole summary/breakdown computation. Partial delegation
// would mix two counting semantics in one snapshot.
func (a *Aggregator) fastPathEligible(req Request, opts Options) bool {
	if a.store == nil || !a.store.IsReady() {
		return false
	}
	if req.Project != "" {
		return false
	}
	return opts == Options(rollup.DefaultCountFilter())
}

// dayBounds converts a [lower, upper) instant window into the
// store's inclusive local calendar-day strings.
func (a *Aggregator) dayBounds(
	lower, upper time.Time,
) (string, string) {
	dayStart, dayEnd := "", ""
	if !lower.IsZero() {
		dayStart = timeutil.LocalDay(lower, a.loc)
	}
	if !upper.IsZero() {
		// upper is exclusive; back off one instant so a bound at
		// exactly midnight does not include the following day.
		dayEnd = timeutil.LocalDay(upper.Add(-time.Nanosecond), a.loc)
	}
	return dayStart, dayEnd
}

func (a *Aggregator) computeFromRollup(
	req Request, now time.Time,
) (Summary, []AgentStat, error) {
	ctx := context.Background()

	var sources []session.Source
	if req.Source != "" {
		sources = []session.Source{req.Source}
	}

	lower, upper := req.Range.Bounds(now, a.loc)
	dayStart, dayEnd := a.dayBounds(lower, upper)

	cur, err := a.store.Summary(ctx, sources, dayStart, dayEnd)
	if err != nil {
		return Summary{}, nil, err
	}
	avg, err := a.store.AvgSessionLength(
		ctx, sources, dayStart, dayEnd)
	if err != nil {
		return Summary{}, nil, err
	}

	summary := Summary{
		Sessions:          cur.SessionsDistinct,
		Messages:          cur.Messages,
		Commands:          cur.Commands,
		ActiveSeconds:     cur.DurationSeconds,
		AvgSessionSeconds: avg,
	}

	if prevLower, prevUpper, ok := req.Range.PreviousBounds(
		now, a.loc,
	); ok {
		prevStart, prevEnd := a.dayBounds(prevLower, prevUpper)
		prev, err := a.store.Summary(ctx, sources, prevStart, prevEnd)
		if err != nil {
			return Summary{}, nil, err
		}
		prevAvg, err := a.store.AvgSessionLength(
			ctx, sources, prevStart, prevEnd)
		if err != nil {
			return Summary{}, nil, err
		}

		summary.SessionsChange = pctChange(
			float64(cur.SessionsDistinct),
			float64(prev.SessionsDistinct))
		summary.MessagesChange = pctChange(
			float64(cur.Messages), float64(prev.Messages))
		summary.CommandsChange = pctChange(
			float64(cur.Commands), float64(prev.Commands))
		summary.ActiveChange = pctChange(
			cur.DurationSeconds, prev.DurationSeconds)
		summary.AvgSessionChange = pctChange(avg, prevAvg)
	}

	rows, err := a.store.BreakdownByAgent(
		ctx, sources, dayStart, dayEnd)
	if err != nil {
		return Summary{}, nil, err
	}

	stats := make([]AgentStat, 0, len(rows))
	totalSessions, totalMessages := 0, 0
	for _, r := range rows {
		stats = append(stats, AgentStat{
			Source:        r.Source,
			Sessions:      r.SessionsDistinct,
			Messages:      r.Messages,
			ActiveSeconds: r.DurationSeconds,
		})
		totalSessions += r.SessionsDistinct
		totalMessages += r.Messages
	}
	applyBreakdownPcts(stats, totalSessions, totalMessages)
	sortBreakdown(stats)
	return summary, stats, nil
}
