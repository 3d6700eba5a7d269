package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/agentlens/agentlens/internal/session"
	"github.com/tidwall/gjson"
)

// Amp threads are single JSON documents at
// ~/.local/share/amp/threads/T-*.json. Their message content never
// encodes a working directory or title, so the lightweight fields
// stay authoritative even after a full parse.

// ScanAmpSession builds a lightweight session from an Amp thread.
func ScanAmpSession(path string) (*session.Session, error) {
	return parseAmp(path, false)
}

// ParseAmpSession builds a fully parsed session.
func ParseAmpSession(path string) (*session.Session, error) {
	return parseAmp(path, true)
}

func parseAmp(path string, full bool) (*session.Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid JSON in %s", path)
	}
	root := gjson.ParseBytes(data)

	id := root.Get("id").Str
	if id == "" {
		id = strings.TrimSuffix(filepath.Base(path), ".json")
	}

	s := &session.Session{
		ID:               id,
		Source:           session.SourceAmp,
		FilePath:         path,
		LightweightTitle: root.Get("title").Str,
		LightweightCwd:   root.Get("env.initial.trees.0.path").Str,
	}

	b := &builder{keepEvents: full}
	root.Get("messages").ForEach(func(_, msg gjson.Result) bool {
		for _, ev := range ampEvents(msg) {
			b.add(ev)
		}
		return true
	})

	b.finish(s)
	// The thread header's created stamp wins over derived event
	// times for the start bound.
	if ms := root.Get("created").Int(); ms > 0 {
		s.StartTime = time.UnixMilli(ms).UTC()
	}
	return s, nil
}

// ampEvents adapts one Amp thread message, which may fan out into a
// text event plus tool_call/tool_result events from content blocks.
func ampEvents(msg gjson.Result) []session.Event {
	role := msg.Get("role").Str
	if role != "user" && role != "assistant" {
		return nil
	}

	var ts time.Time
	if ms := msg.Get("meta.sentAt").Int(); ms > 0 {
		ts = time.UnixMilli(ms).UTC()
	}

	bc := walkBlocks(msg.Get("content"))
	var events []session.Event

	if strings.TrimSpace(bc.text) != "" {
		events = append(events, session.Event{
			Kind:      session.EventKind(role),
			Timestamp: ts,
			Text:      bc.text,
			Raw:       msg.Raw,
		})
	}
	if bc.hasToolUse {
		events = append(events, session.Event{
			Kind:      session.KindToolCall,
			Timestamp: ts,
			ToolName:  bc.toolName,
			ToolInput: bc.toolInput,
			Raw:       msg.Raw,
		})
	}
	if bc.hasResult {
		events = append(events, session.Event{
			Kind:       session.KindToolResult,
			Timestamp:  ts,
			ToolOutput: bc.toolOutput,
			Raw:        msg.Raw,
		})
	}
	return events
}
