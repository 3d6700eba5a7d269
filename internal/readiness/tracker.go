// Package readiness combines the lifecycle phases of all per-agent
// indexers with the rollup store's own readiness into one boolean
// "analytics is trustworthy" signal.
package readiness

import (
	"sync"

	"github.com/agentlens/agentlens/internal/indexer"
	"github.com/agentlens/agentlens/internal/session"
)

// RollupReadiness is the optional rollup-store collaborator. A nil
// value means no store is configured, in which case phase readiness
// alone suffices.
type RollupReadiness interface {
	IsReady() bool
}

// Tracker recomputes combined readiness whenever any tracked phase
// or the rollup's readiness changes. Only the combined boolean is
// exposed; intermediate states are not.
type Tracker struct {
	mu       sync.Mutex
	phases   map[session.Source]indexer.Phase
	store    RollupReadiness
	ready    bool
	onChange func(bool)
}

// New creates a tracker for the given enabled sources, all starting
// in the initializing phase. onChange may be nil.
func New(
	sources []session.Source,
	store RollupReadiness,
	onChange func(bool),
) *Tracker {
	phases := make(map[session.Source]indexer.Phase, len(sources))
	for _, src := range sources {
		phases[src] = indexer.PhaseInitializing
	}
	t := &Tracker{
		phases:   phases,
		store:    store,
		onChange: onChange,
	}
	t.ready = t.combined()
	return t
}

// SetPhase records a source's phase and recomputes.
func (t *Tracker) SetPhase(src session.Source, phase indexer.Phase) {
	t.mu.Lock()
	if _, tracked := t.phases[src]; !tracked {
		t.mu.Unlock()
		return
	}
	t.phases[src] = phase
	t.recomputeLocked()
}

// StoreChanged recomputes after a rollup readiness transition.
func (t *Tracker) StoreChanged() {
	t.mu.Lock()
	t.recomputeLocked()
}

// Ready returns the combined readiness.
func (t *Tracker) Ready() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ready
}

// recomputeLocked publishes the new combined value, releasing the
// lock before any callback runs.
func (t *Tracker) recomputeLocked() {
	next := t.combined()
	changed := next != t.ready
	t.ready = next
	fn := t.onChange
	t.mu.Unlock()

	if changed && fn != nil {
		fn(next)
	}
}

// combined is true when every enabled source is in a usable phase
// ({ready, idle}) and the rollup store, when present, reports ready.
func (t *Tracker) combined() bool {
	for _, phase := range t.phases {
		if phase != indexer.PhaseReady && phase != indexer.PhaseIdle {
			return false
		}
	}
	if t.store != nil && !t.store.IsReady() {
		return false
	}
	return true
}
