package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/agentlens/agentlens/internal/session"
	"github.com/agentlens/agentlens/internal/timeutil"
	"github.com/tidwall/gjson"
)

// Gemini CLI checkpoints are single JSON documents under
// ~/.gemini/tmp/<hash>/chats/. The header carries the project path
// and session bounds; individual messages never encode a cwd, so the
// lightweight fields stay authoritative after a full parse.

// ScanGeminiSession builds a lightweight session from a Gemini chat
// file.
func ScanGeminiSession(path string) (*session.Session, error) {
	return parseGemini(path, false)
}

// ParseGeminiSession builds a fully parsed session.
func ParseGeminiSession(path string) (*session.Session, error) {
	return parseGemini(path, true)
}

func parseGemini(path string, full bool) (*session.Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid JSON in %s", path)
	}
	root := gjson.ParseBytes(data)

	id := root.Get("sessionId").Str
	if id == "" {
		id = strings.TrimSuffix(filepath.Base(path), ".json")
	}

	s := &session.Session{
		ID:             id,
		Source:         session.SourceGemini,
		FilePath:       path,
		LightweightCwd: root.Get("projectPath").Str,
	}

	b := &builder{keepEvents: full}
	root.Get("messages").ForEach(func(_, msg gjson.Result) bool {
		for _, ev := range geminiEvents(msg) {
			b.add(ev)
		}
		return true
	})

	b.finish(s)
	// Header bounds win over derived event times when present.
	if ts := timeutil.Parse(root.Get("startTime").Str); !ts.IsZero() {
		s.StartTime = ts
	}
	if ts := timeutil.Parse(root.Get("lastUpdated").Str); !ts.IsZero() {
		s.EndTime = ts
	}
	return s, nil
}

// geminiEvents adapts one Gemini chat message. The model role maps
// to assistant; toolCalls fan out into tool_call events.
func geminiEvents(msg gjson.Result) []session.Event {
	role := msg.Get("role").Str
	var kind session.EventKind
	switch role {
	case "user":
		kind = session.KindUser
	case "model", "assistant":
		kind = session.KindAssistant
	default:
		return nil
	}

	ts := timeutil.Parse(msg.Get("timestamp").Str)
	var events []session.Event

	if text := geminiText(msg); strings.TrimSpace(text) != "" {
		events = append(events, session.Event{
			Kind:      kind,
			Timestamp: ts,
			Text:      text,
			Raw:       msg.Raw,
		})
	}

	msg.Get("toolCalls").ForEach(func(_, tc gjson.Result) bool {
		name := tc.Get("name").Str
		if name == "" {
			return true
		}
		ev := session.Event{
			Kind:      session.KindToolCall,
			Timestamp: ts,
			ToolName:  name,
			ToolInput: tc.Get("args").Raw,
			Raw:       msg.Raw,
		}
		events = append(events, ev)
		if out := tc.Get("result").Str; out != "" {
			events = append(events, session.Event{
				Kind:       session.KindToolResult,
				Timestamp:  ts,
				ToolOutput: out,
				Raw:        msg.Raw,
			})
		}
		return true
	})

	return events
}

// geminiText flattens a message's text, which may live in content
// (string), parts (array of {text}), or thoughts.
func geminiText(msg gjson.Result) string {
	content := msg.Get("content")
	if content.Type == gjson.String {
		return content.Str
	}

	var parts []string
	appendText := func(_, part gjson.Result) bool {
		if part.Type == gjson.String {
			if part.Str != "" {
				parts = append(parts, part.Str)
			}
			return true
		}
		if t := part.Get("text").Str; t != "" {
			parts = append(parts, t)
		}
		return true
	}
	content.ForEach(appendText)
	msg.Get("parts").ForEach(appendText)
	return strings.Join(parts, "\n")
}
