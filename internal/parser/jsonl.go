package parser

import (
	"fmt"
	"os"
	"time"

	"github.com/agentlens/agentlens/internal/session"
	"github.com/tidwall/gjson"
)

// lineAdapter translates one valid raw JSONL line into a canonical
// event. Returns false when the line carries nothing worth keeping.
type lineAdapter func(line string) (session.Event, bool)

// builder accumulates session state while scanning a JSONL file.
// In lightweight mode it keeps aggregate counts only; in full mode
// it also retains the ordered event list.
type builder struct {
	keepEvents bool

	events     []session.Event
	eventCount int
	commands   int
	firstUser  string
	minTS      time.Time
	maxTS      time.Time
}

func (b *builder) add(ev session.Event) {
	b.eventCount++
	if ev.Kind == session.KindToolCall {
		b.commands++
	}
	if ev.Kind == session.KindUser && b.firstUser == "" {
		b.firstUser = truncate(ev.Text, 300)
	}
	if !ev.Timestamp.IsZero() {
		if b.minTS.IsZero() || ev.Timestamp.Before(b.minTS) {
			b.minTS = ev.Timestamp
		}
		if b.maxTS.IsZero() || ev.Timestamp.After(b.maxTS) {
			b.maxTS = ev.Timestamp
		}
	}
	if b.keepEvents {
		b.events = append(b.events, ev)
	}
}

// finish writes the accumulated state into a session. Lightweight
// metadata fields are populated in both modes; the session model
// ignores them once events are present, except on lightweight-meta
// sources.
func (b *builder) finish(s *session.Session) {
	s.StartTime = b.minTS
	s.EndTime = b.maxTS
	s.Events = b.events
	s.EventCount = b.eventCount
	s.LightweightCommands = b.commands
	if s.LightweightTitle == "" {
		s.LightweightTitle = b.firstUser
	}
}

// scanJSONL drives a line adapter over a JSONL session file.
// Malformed or partially written lines are skipped per line, never
// fatal to the whole file. The raw callback, when non-nil, sees
// every valid line before adaptation (for header/hint extraction).
func scanJSONL(
	path string, b *builder, adapt lineAdapter, raw func(line string),
) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	lr := newLineReader(f)
	for {
		line, ok := lr.next()
		if !ok {
			break
		}
		if !gjson.Valid(line) {
			continue
		}
		if raw != nil {
			raw(line)
		}
		if ev, ok := adapt(line); ok {
			b.add(ev)
		}
	}
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
