package parser

import (
	"path/filepath"
	"strings"

	"github.com/agentlens/agentlens/internal/session"
	"github.com/agentlens/agentlens/internal/timeutil"
	"github.com/tidwall/gjson"
)

// ScanCopilotSession builds a lightweight session from a Copilot CLI
// events.jsonl file.
func ScanCopilotSession(path string) (*session.Session, error) {
	return parseCopilot(path, false)
}

// ParseCopilotSession builds a fully parsed session.
func ParseCopilotSession(path string) (*session.Session, error) {
	return parseCopilot(path, true)
}

func parseCopilot(path string, full bool) (*session.Session, error) {
	s := &session.Session{
		ID:       copilotSessionID(path),
		Source:   session.SourceCopilot,
		FilePath: path,
	}

	b := &builder{keepEvents: full}
	err := scanJSONL(path, b, copilotEvent, func(line string) {
		if s.LightweightCwd == "" {
			s.LightweightCwd = gjson.Get(line, "data.cwd").Str
		}
	})
	if err != nil {
		return nil, err
	}

	b.finish(s)
	return s, nil
}

// copilotSessionID derives the session ID from the file layout:
// session-state/<uuid>/events.jsonl uses the directory name,
// session-state/<uuid>.jsonl the file stem.
func copilotSessionID(path string) string {
	base := filepath.Base(path)
	if base == "events.jsonl" {
		return filepath.Base(filepath.Dir(path))
	}
	return strings.TrimSuffix(base, ".jsonl")
}

// copilotEvent adapts one Copilot CLI event line. Event types are
// dotted: user.message, assistant.message, tool.invoke, tool.result.
// Session bookkeeping entries become meta events.
func copilotEvent(line string) (session.Event, bool) {
	ts := timeutil.Parse(gjson.Get(line, "timestamp").Str)
	data := gjson.Get(line, "data")
	ev := session.Event{Timestamp: ts, Raw: line}

	switch gjson.Get(line, "type").Str {
	case "user.message":
		ev.Kind = session.KindUser
		ev.Text = data.Get("content").Str
		return ev, strings.TrimSpace(ev.Text) != ""

	case "assistant.message":
		ev.Kind = session.KindAssistant
		ev.Text = data.Get("content").Str
		return ev, strings.TrimSpace(ev.Text) != ""

	case "tool.invoke":
		name := data.Get("tool").Str
		if name == "" {
			name = data.Get("name").Str
		}
		if name == "" {
			return session.Event{}, false
		}
		ev.Kind = session.KindToolCall
		ev.ToolName = name
		ev.ToolInput = data.Get("arguments").Raw
		return ev, true

	case "tool.result":
		ev.Kind = session.KindToolResult
		ev.ToolOutput = data.Get("output").Str
		return ev, true

	case "session.start", "session.end", "session.info":
		ev.Kind = session.KindMeta
		return ev, true
	}
	return session.Event{}, false
}
