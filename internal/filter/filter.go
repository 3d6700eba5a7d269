// Package filter evaluates pure predicates over sessions: date
// range, agent, repo/path operators, event-kind sets, and free-text
// search with a pluggable transcript cache.
package filter

import (
	"strings"
	"time"

	"github.com/agentlens/agentlens/internal/session"
)

// Filters narrows a session collection. Zero values mean "no
// constraint". DateTo is exclusive.
type Filters struct {
	Query        string
	DateFrom     time.Time
	DateTo       time.Time
	Source       session.Source
	Kinds        map[session.EventKind]bool
	RepoName     string
	PathContains string
}

// TranscriptCache supplies cached transcript renderings for
// substring search. Implementations decide retention; the engine
// only reads.
type TranscriptCache interface {
	Transcript(sessionID string) (string, bool)
}

// Engine evaluates filters. A nil Cache means no transcript
// renderings exist and text search falls through to raw fields.
type Engine struct {
	Cache TranscriptCache
}

// Apply returns the sessions matching f, preserving input order.
// It is a filter, not a sort: the output is a strict subsequence of
// the input.
func (e *Engine) Apply(
	sessions []*session.Session, f Filters,
) []*session.Session {
	q := ParseQuery(f.Query)
	var out []*session.Session
	for _, s := range sessions {
		if e.matches(s, f, q) {
			out = append(out, s)
		}
	}
	return out
}

// Matches reports whether one session passes the filters.
func (e *Engine) Matches(s *session.Session, f Filters) bool {
	return e.matches(s, f, ParseQuery(f.Query))
}

func (e *Engine) matches(
	s *session.Session, f Filters, q Query,
) bool {
	if !inDateRange(s, f.DateFrom, f.DateTo) {
		return false
	}
	if f.Source != "" && s.Source != f.Source {
		return false
	}

	repoNeedle := f.RepoName
	if q.Repo != "" {
		repoNeedle = q.Repo
	}
	if repoNeedle != "" && !containsFold(s.RepoName(), repoNeedle) {
		return false
	}

	pathNeedle := f.PathContains
	if q.Path != "" {
		pathNeedle = q.Path
	}
	if pathNeedle != "" && !containsFold(s.Cwd(), pathNeedle) &&
		!containsFold(s.FilePath, pathNeedle) {
		return false
	}

	// Kind filtering needs the event list; lightweight sessions
	// pass unconditionally.
	if len(f.Kinds) > 0 && !s.IsLightweight() {
		if !hasAnyKind(s, f.Kinds) {
			return false
		}
	}

	return e.textMatches(s, q.Text)
}

// inDateRange keeps a session when at least one event timestamp, or
// the fallback timestamp, falls within [from, to). to is exclusive.
func inDateRange(s *session.Session, from, to time.Time) bool {
	if from.IsZero() && to.IsZero() {
		return true
	}
	in := func(t time.Time) bool {
		if t.IsZero() {
			return false
		}
		if !from.IsZero() && t.Before(from) {
			return false
		}
		if !to.IsZero() && !t.Before(to) {
			return false
		}
		return true
	}
	for i := range s.Events {
		if in(s.Events[i].Timestamp) {
			return true
		}
	}
	return in(s.ModifiedAt())
}

func hasAnyKind(
	s *session.Session, kinds map[session.EventKind]bool,
) bool {
	for i := range s.Events {
		if kinds[s.Events[i].Kind] {
			return true
		}
	}
	return false
}

// textMatches applies the free-text search priority: cached
// transcript substring first; with no cache configured, raw fields;
// a lightweight session without a cached transcript matches only an
// empty query; otherwise raw fields.
func (e *Engine) textMatches(s *session.Session, text string) bool {
	if text == "" {
		return true
	}
	if e.Cache != nil {
		if transcript, ok := e.Cache.Transcript(s.ID); ok {
			return containsFold(transcript, text)
		}
		if s.IsLightweight() {
			return false
		}
	}
	return rawFieldsMatch(s, text)
}

func rawFieldsMatch(s *session.Session, text string) bool {
	if containsFold(s.Title(), text) ||
		containsFold(s.RepoName(), text) ||
		containsFold(s.FirstUserPreview(), text) {
		return true
	}
	for i := range s.Events {
		ev := &s.Events[i]
		if containsFold(ev.Text, text) ||
			containsFold(ev.ToolInput, text) ||
			containsFold(ev.ToolOutput, text) {
			return true
		}
	}
	return false
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(
		strings.ToLower(haystack), strings.ToLower(needle),
	)
}
