package backfill

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentlens/agentlens/internal/session"
)

// fakeTarget simulates one agent's pending full parses.
type fakeTarget struct {
	source  session.Source
	pending int
	perFile time.Duration

	mu     sync.Mutex
	parsed int
}

func (f *fakeTarget) Source() session.Source { return f.source }

func (f *fakeTarget) LightweightCount() int { return f.pending }

func (f *fakeTarget) ParseAllFull(
	ctx context.Context, progress func(done, total int),
) error {
	for i := 0; i < f.pending; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if f.perFile > 0 {
			time.Sleep(f.perFile)
		}
		f.mu.Lock()
		f.parsed++
		f.mu.Unlock()
		if progress != nil {
			progress(i+1, f.pending)
		}
	}
	return nil
}

func (f *fakeTarget) parsedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.parsed
}

// recorder collects progress updates.
type recorder struct {
	mu      sync.Mutex
	updates []Progress
}

func (r *recorder) record(p Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, p)
}

func (r *recorder) snapshot() []Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Progress, len(r.updates))
	copy(out, r.updates)
	return out
}

func TestController_GlobalProgress(t *testing.T) {
	rec := &recorder{}
	c := New(rec.record)

	a := &fakeTarget{source: session.SourceClaude, pending: 2}
	b := &fakeTarget{source: session.SourceCodex, pending: 2}
	c.Start([]Target{a, b})

	require.Eventually(t, func() bool {
		updates := rec.snapshot()
		return len(updates) > 0 &&
			!updates[len(updates)-1].Running &&
			updates[len(updates)-1].Fraction == 1
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 2, a.parsedCount())
	assert.Equal(t, 2, b.parsedCount())

	updates := rec.snapshot()
	require.Len(t, updates, 5) // 4 per-file updates + terminal

	// The fraction is global: the first agent's completion lands at
	// one half, not one.
	assert.InDelta(t, 0.25, updates[0].Fraction, 1e-9)
	assert.InDelta(t, 0.5, updates[1].Fraction, 1e-9)
	assert.Contains(t, updates[0].Status, "Claude Code")
	assert.Contains(t, updates[0].Status, "(1/2)")
	assert.Contains(t, updates[2].Status, "Codex")

	last := updates[len(updates)-1]
	assert.False(t, last.Running)
	assert.Equal(t, "All sessions parsed", last.Status)

	// Fractions never decrease.
	for i := 1; i < len(updates); i++ {
		assert.GreaterOrEqual(t,
			updates[i].Fraction, updates[i-1].Fraction)
	}
}

func TestController_NoopWhenNothingPending(t *testing.T) {
	rec := &recorder{}
	c := New(rec.record)

	c.Start([]Target{
		&fakeTarget{source: session.SourceClaude, pending: 0},
	})

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, rec.snapshot())
	assert.Equal(t, Progress{}, c.Progress())
}

func TestController_CancelResetsProgress(t *testing.T) {
	c := New(nil)
	target := &fakeTarget{
		source:  session.SourceClaude,
		pending: 100,
		perFile: 5 * time.Millisecond,
	}
	c.Start([]Target{target})

	require.Eventually(t, func() bool {
		return c.Progress().Running
	}, time.Second, time.Millisecond)

	c.Cancel()

	require.Eventually(t, func() bool {
		return c.Progress() == Progress{}
	}, time.Second, time.Millisecond)
	assert.Less(t, target.parsedCount(), 100)
}

// blockingTarget parks in ParseAllFull until released, then returns
// whatever the context says. It lets a test hold a canceled run alive
// past its successor's completion.
type blockingTarget struct {
	source  session.Source
	release chan struct{}
}

func (b *blockingTarget) Source() session.Source { return b.source }

func (b *blockingTarget) LightweightCount() int { return 1 }

func (b *blockingTarget) ParseAllFull(
	ctx context.Context, _ func(done, total int),
) error {
	<-b.release
	return ctx.Err()
}

func TestController_StaleRunCannotClobberSuccessor(t *testing.T) {
	c := New(nil)
	blocked := &blockingTarget{
		source:  session.SourceClaude,
		release: make(chan struct{}),
	}
	c.Start([]Target{blocked})

	quick := &fakeTarget{source: session.SourceCodex, pending: 1}
	c.Start([]Target{quick})

	done := Progress{
		Running:  false,
		Fraction: 1,
		Status:   "All sessions parsed",
	}
	require.Eventually(t, func() bool {
		return c.Progress() == done
	}, time.Second, time.Millisecond)

	// Release the canceled run; its reset must be dropped rather
	// than wipe the completed run's terminal state.
	close(blocked.release)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, done, c.Progress())
}

func TestController_RestartCancelsPriorRun(t *testing.T) {
	c := New(nil)
	slow := &fakeTarget{
		source:  session.SourceClaude,
		pending: 100,
		perFile: 5 * time.Millisecond,
	}
	c.Start([]Target{slow})
	require.Eventually(t, func() bool {
		return c.Progress().Running
	}, time.Second, time.Millisecond)

	quick := &fakeTarget{source: session.SourceCodex, pending: 1}
	c.Start([]Target{quick})

	require.Eventually(t, func() bool {
		return quick.parsedCount() == 1
	}, time.Second, time.Millisecond)
	assert.Less(t, slow.parsedCount(), 100)
}
