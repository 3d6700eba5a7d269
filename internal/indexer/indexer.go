// Package indexer maintains the per-agent session lists: file
// discovery, delta detection, lightweight scanning, and the
// full-parse upgrade path. Each indexer owns its sessions; other
// components only read them.
package indexer

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/agentlens/agentlens/internal/parser"
	"github.com/agentlens/agentlens/internal/session"
)

// Phase is an indexer's lifecycle phase. Readiness checks treat
// ready and idle as usable.
type Phase string

const (
	PhaseInitializing Phase = "initializing"
	PhaseScanning     Phase = "scanning"
	PhaseReady        Phase = "ready"
	PhaseIdle         Phase = "idle"
	PhaseError        Phase = "error"
)

// fileRecord tracks a scanned file for delta detection. A file is
// rescanned only when its size or mtime changes.
type fileRecord struct {
	size  int64
	mtime time.Time
	sess  *session.Session
}

// Indexer owns the session list for one agent source.
type Indexer struct {
	def  parser.AgentDef
	dirs []string

	mu        sync.RWMutex
	sessions  []*session.Session
	byPath    map[string]fileRecord
	phase     Phase
	subs      []func()
	phaseSubs []func(Phase)
}

// New creates an indexer for one registry entry over the given
// root directories.
func New(def parser.AgentDef, dirs []string) *Indexer {
	return &Indexer{
		def:    def,
		dirs:   dirs,
		byPath: make(map[string]fileRecord),
		phase:  PhaseInitializing,
	}
}

// Source returns the agent source this indexer serves.
func (ix *Indexer) Source() session.Source {
	return ix.def.Source
}

// Phase returns the current lifecycle phase.
func (ix *Indexer) Phase() Phase {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.phase
}

// Sessions returns a snapshot copy of the session list. The list is
// replaced wholesale on each refresh; order is not guaranteed stable
// across refreshes.
func (ix *Indexer) Sessions() []*session.Session {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]*session.Session, len(ix.sessions))
	copy(out, ix.sessions)
	return out
}

// LightweightCount returns how many sessions still lack their event
// list.
func (ix *Indexer) LightweightCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	n := 0
	for _, s := range ix.sessions {
		if s.IsLightweight() {
			n++
		}
	}
	return n
}

// Subscribe registers a list-change callback.
func (ix *Indexer) Subscribe(fn func()) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.subs = append(ix.subs, fn)
}

// SubscribePhase registers a phase-change callback.
func (ix *Indexer) SubscribePhase(fn func(Phase)) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.phaseSubs = append(ix.phaseSubs, fn)
}

func (ix *Indexer) setPhase(phase Phase) {
	ix.mu.Lock()
	if ix.phase == phase {
		ix.mu.Unlock()
		return
	}
	ix.phase = phase
	subs := ix.phaseSubs
	ix.mu.Unlock()
	for _, fn := range subs {
		fn(phase)
	}
}

func (ix *Indexer) notify() {
	ix.mu.RLock()
	subs := ix.subs
	ix.mu.RUnlock()
	for _, fn := range subs {
		fn()
	}
}

// Refresh discovers session files under the configured directories
// and rebuilds the session list. Unchanged files keep their existing
// session (including a full parse if one happened); new or changed
// files get a lightweight scan. Files that fail to scan are logged
// and skipped, never fatal.
func (ix *Indexer) Refresh() {
	ix.setPhase(PhaseScanning)

	var discovered []parser.DiscoveredFile
	for _, dir := range ix.dirs {
		discovered = append(discovered, ix.def.Discover(dir)...)
	}

	ix.mu.RLock()
	prev := ix.byPath
	ix.mu.RUnlock()

	next := make(map[string]fileRecord, len(discovered))
	sessions := make([]*session.Session, 0, len(discovered))

	for _, df := range discovered {
		if rec, ok := prev[df.Path]; ok &&
			rec.size == df.Size && rec.mtime.Equal(df.Mtime) {
			next[df.Path] = rec
			sessions = append(sessions, rec.sess)
			continue
		}

		s, err := ix.def.ScanLight(df.Path)
		if err != nil {
			log.Printf("%s: scanning %s: %v",
				ix.def.Source, df.Path, err)
			continue
		}
		ix.applyFileStamp(s)
		next[df.Path] = fileRecord{
			size: df.Size, mtime: df.Mtime, sess: s,
		}
		sessions = append(sessions, s)
	}

	ix.mu.Lock()
	ix.sessions = sessions
	ix.byPath = next
	ix.mu.Unlock()

	ix.setPhase(PhaseReady)
	ix.notify()
}

func (ix *Indexer) applyFileStamp(s *session.Session) {
	if ix.def.FileStamp == nil {
		return
	}
	if ts, ok := ix.def.FileStamp(s.FilePath); ok {
		s.FileStamp = ts
	}
}

// ParseAllFull upgrades every lightweight session to fully parsed,
// in place. The callback is invoked at least once per completed file
// and once at 100%. Cancellation is cooperative: checked between
// files, leaving already-upgraded sessions in place.
func (ix *Indexer) ParseAllFull(
	ctx context.Context, progress func(done, total int),
) error {
	ix.mu.RLock()
	var pending []*session.Session
	for _, s := range ix.sessions {
		if s.IsLightweight() {
			pending = append(pending, s)
		}
	}
	ix.mu.RUnlock()

	total := len(pending)
	if total == 0 {
		if progress != nil {
			progress(0, 0)
		}
		return nil
	}

	for i, s := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}

		full, err := ix.def.ParseFull(s.FilePath)
		if err != nil {
			log.Printf("%s: parsing %s: %v",
				ix.def.Source, s.FilePath, err)
		} else {
			ix.applyFileStamp(full)
			ix.replace(s, full)
		}
		if progress != nil {
			progress(i+1, total)
		}
	}

	ix.notify()
	return nil
}

// replace swaps a session in the list and path index. The indexer is
// the only component permitted to mutate its sessions.
func (ix *Indexer) replace(old, next *session.Session) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for i, s := range ix.sessions {
		if s == old {
			ix.sessions[i] = next
			break
		}
	}
	if rec, ok := ix.byPath[old.FilePath]; ok {
		rec.sess = next
		ix.byPath[old.FilePath] = rec
	}
}
