// Package session defines the canonical in-memory model for one
// agent conversation and the derivation logic (title, working
// directory, repo name) computed from it. It performs no file
// discovery or JSON decoding; the per-agent adapters in
// internal/parser produce these values.
package session

import (
	"strings"
	"time"
)

// Source identifies the CLI coding agent that produced a session.
type Source string

const (
	SourceClaude  Source = "claude"
	SourceCodex   Source = "codex"
	SourceGemini  Source = "gemini"
	SourceCopilot Source = "copilot"
	SourceAmp     Source = "amp"
)

// Sources lists all supported agents in stable iteration order.
var Sources = []Source{
	SourceClaude, SourceCodex, SourceGemini, SourceCopilot, SourceAmp,
}

// DisplayName returns a human-readable agent name.
func (s Source) DisplayName() string {
	switch s {
	case SourceClaude:
		return "Claude Code"
	case SourceCodex:
		return "Codex"
	case SourceGemini:
		return "Gemini"
	case SourceCopilot:
		return "Copilot"
	case SourceAmp:
		return "Amp"
	default:
		return string(s)
	}
}

// lightweightMetaSources lists sources whose fully parsed
// transcripts never encode a working directory or title. For these
// the lightweight fields stay authoritative even after a full parse.
var lightweightMetaSources = map[Source]bool{
	SourceGemini: true,
	SourceAmp:    true,
}

// previewTitleSources lists sources whose log format places the
// conversational opener within the first few events, making the
// head-window preview-title heuristic applicable.
var previewTitleSources = map[Source]bool{
	SourceClaude:  true,
	SourceCodex:   true,
	SourceCopilot: true,
}

// EventKind classifies a single turn or action within a session.
type EventKind string

const (
	KindUser       EventKind = "user"
	KindAssistant  EventKind = "assistant"
	KindToolCall   EventKind = "tool_call"
	KindToolResult EventKind = "tool_result"
	KindMeta       EventKind = "meta"
)

// Event is one turn/action within a session. The zero Timestamp
// means the underlying log line carried none. Raw preserves the
// original JSON line for best-effort field extraction when no typed
// field exists.
type Event struct {
	Kind       EventKind
	Timestamp  time.Time
	Text       string
	ToolName   string
	ToolInput  string
	ToolOutput string
	Raw        string
}

// Session is one agent conversation. Events is either empty
// (lightweight materialization) or the complete ordered event list;
// partial states are not permitted. The Lightweight* fields are
// populated only by the metadata-only scan and must be ignored once
// Events is non-empty, except for cwd/title resolution on
// lightweight-meta sources.
type Session struct {
	ID       string
	Source   Source
	FilePath string

	StartTime time.Time // zero = never recorded
	EndTime   time.Time // zero = never recorded
	FileStamp time.Time // filename-embedded timestamp, zero = none

	Events []Event

	LightweightCwd      string
	LightweightTitle    string
	LightweightCommands int
	EventCount          int // estimated event count when lightweight

	GitBranch string
}

// distantPast is the universal fallback timestamp for sessions whose
// logs recorded nothing usable.
var distantPast = time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)

// IsLightweight reports whether the session carries metadata only.
func (s *Session) IsLightweight() bool {
	return len(s.Events) == 0
}

// ModifiedAt is the universal fallback timestamp: the
// filename-embedded timestamp when the agent encodes one, else the
// end time, else the start time, else a distant-past sentinel.
func (s *Session) ModifiedAt() time.Time {
	switch {
	case !s.FileStamp.IsZero():
		return s.FileStamp
	case !s.EndTime.IsZero():
		return s.EndTime
	case !s.StartTime.IsZero():
		return s.StartTime
	default:
		return distantPast
	}
}

// MessageCount is an estimate (EventCount) for lightweight sessions
// and the exact count of non-meta events for fully parsed ones.
// The two must never be compared as equals.
func (s *Session) MessageCount() int {
	if s.IsLightweight() {
		return s.EventCount
	}
	n := 0
	for i := range s.Events {
		if s.Events[i].Kind != KindMeta {
			n++
		}
	}
	return n
}

// CommandCount counts tool invocations: the lightweight estimate
// when no events are loaded, else the exact tool_call event count.
func (s *Session) CommandCount() int {
	if s.IsLightweight() {
		return s.LightweightCommands
	}
	n := 0
	for i := range s.Events {
		if s.Events[i].Kind == KindToolCall {
			n++
		}
	}
	return n
}

// ActiveBounds returns the session's own activity window. With
// loaded events it is the min/max event timestamp; otherwise it
// falls back to (StartTime ?? ModifiedAt, EndTime ?? now).
func (s *Session) ActiveBounds(now time.Time) (time.Time, time.Time) {
	if !s.IsLightweight() {
		var lo, hi time.Time
		for i := range s.Events {
			ts := s.Events[i].Timestamp
			if ts.IsZero() {
				continue
			}
			if lo.IsZero() || ts.Before(lo) {
				lo = ts
			}
			if hi.IsZero() || ts.After(hi) {
				hi = ts
			}
		}
		if !lo.IsZero() {
			return lo, hi
		}
	}
	lo := s.StartTime
	if lo.IsZero() {
		lo = s.ModifiedAt()
	}
	hi := s.EndTime
	if hi.IsZero() {
		hi = now
	}
	return lo, hi
}

// FirstUserPreview returns the first user event text, whitespace
// collapsed, for search and title fallbacks. Empty for lightweight
// sessions without events.
func (s *Session) FirstUserPreview() string {
	for i := range s.Events {
		if s.Events[i].Kind == KindUser &&
			strings.TrimSpace(s.Events[i].Text) != "" {
			return collapseWhitespace(s.Events[i].Text)
		}
	}
	return ""
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
