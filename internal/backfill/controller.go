// Package backfill upgrades lightweight sessions to fully parsed
// ones across all agents as a single cancelable background task with
// fractional progress reporting.
package backfill

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/agentlens/agentlens/internal/session"
)

// Target is the per-agent surface the controller drives. Agents are
// processed sequentially; each agent's full parse may be concurrent
// internally, but driving them one at a time avoids CPU contention
// across several agents' worth of JSON parsing.
type Target interface {
	Source() session.Source
	LightweightCount() int
	ParseAllFull(ctx context.Context,
		progress func(done, total int)) error
}

// Progress is the controller's externally observable state.
type Progress struct {
	Running  bool    `json:"running"`
	Fraction float64 `json:"fraction"` // 0..1 across all agents
	Status   string  `json:"status"`
}

// Controller runs at most one backfill at a time. Starting a new one
// cancels any in-flight run cooperatively (between agents and
// between files).
type Controller struct {
	mu       sync.Mutex
	cancel   context.CancelFunc
	gen      uint64 // current run; stale runs may not publish
	progress Progress
	onUpdate func(Progress)
}

// New creates a controller. onUpdate may be nil.
func New(onUpdate func(Progress)) *Controller {
	return &Controller{onUpdate: onUpdate}
}

// Progress returns the current progress state.
func (c *Controller) Progress() Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progress
}

// Cancel stops an in-flight backfill, resetting progress and status.
func (c *Controller) Cancel() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Start launches a backfill over the targets, canceling any prior
// run first. It returns immediately; progress is reported through
// the update callback. A zero global lightweight count is a no-op.
func (c *Controller) Start(targets []Target) {
	c.Cancel()

	globalTotal := 0
	for _, t := range targets {
		globalTotal += t.LightweightCount()
	}
	if globalTotal == 0 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.cancel = cancel
	c.mu.Unlock()

	go c.run(ctx, gen, targets, globalTotal)
}

func (c *Controller) run(
	ctx context.Context, gen uint64,
	targets []Target, globalTotal int,
) {
	completedBefore := 0

	for _, t := range targets {
		if ctx.Err() != nil {
			c.reset(gen)
			return
		}

		agentTotal := t.LightweightCount()
		if agentTotal == 0 {
			continue
		}

		name := t.Source().DisplayName()
		base := completedBefore
		err := t.ParseAllFull(ctx, func(done, total int) {
			c.publish(gen, Progress{
				Running: true,
				Fraction: float64(base+done) /
					float64(globalTotal),
				Status: fmt.Sprintf(
					"Parsing %s sessions (%d/%d)",
					name, done, total),
			})
		})
		if err != nil {
			// Cancellation is cooperative, not an error
			// condition; it always leaves progress cleanly reset.
			c.reset(gen)
			return
		}
		completedBefore += agentTotal
	}

	c.publish(gen, Progress{
		Running:  false,
		Fraction: 1,
		Status:   "All sessions parsed",
	})
	log.Printf("backfill: parsed %d session(s)", globalTotal)

	c.mu.Lock()
	if gen == c.gen {
		c.cancel = nil
	}
	c.mu.Unlock()
}

// publish records p as the observable state. A run superseded by a
// later Start holds a stale generation and its writes are dropped,
// so a canceled run can never clobber its successor's progress.
func (c *Controller) publish(gen uint64, p Progress) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.progress = p
	fn := c.onUpdate
	c.mu.Unlock()
	if fn != nil {
		fn(p)
	}
}

func (c *Controller) reset(gen uint64) {
	c.publish(gen, Progress{})
}
