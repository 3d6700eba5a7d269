package parser

import (
	"path/filepath"
	"strings"

	"github.com/agentlens/agentlens/internal/session"
	"github.com/agentlens/agentlens/internal/timeutil"
	"github.com/tidwall/gjson"
)

// ScanClaudeSession builds a lightweight session from a Claude Code
// JSONL file: metadata and counts only, no event list.
func ScanClaudeSession(path string) (*session.Session, error) {
	return parseClaude(path, false)
}

// ParseClaudeSession builds a fully parsed session with its complete
// ordered event list.
func ParseClaudeSession(path string) (*session.Session, error) {
	return parseClaude(path, true)
}

func parseClaude(path string, full bool) (*session.Session, error) {
	s := &session.Session{
		ID:       strings.TrimSuffix(filepath.Base(path), ".jsonl"),
		Source:   session.SourceClaude,
		FilePath: path,
	}

	b := &builder{keepEvents: full}
	err := scanJSONL(path, b, claudeEvent, func(line string) {
		if s.LightweightCwd == "" {
			s.LightweightCwd = gjson.Get(line, "cwd").Str
		}
		if s.GitBranch == "" {
			s.GitBranch = gjson.Get(line, "gitBranch").Str
		}
	})
	if err != nil {
		return nil, err
	}

	b.finish(s)
	return s, nil
}

// claudeEvent adapts one Claude Code JSONL line. Entry types other
// than user/assistant (summaries, file snapshots) are dropped;
// system-injected user entries become meta events.
func claudeEvent(line string) (session.Event, bool) {
	entryType := gjson.Get(line, "type").Str
	if entryType != "user" && entryType != "assistant" {
		return session.Event{}, false
	}

	ts := timeutil.Parse(gjson.Get(line, "timestamp").Str)
	bc := walkBlocks(gjson.Get(line, "message.content"))

	ev := session.Event{Timestamp: ts, Raw: line}

	if entryType == "user" {
		if gjson.Get(line, "isMeta").Bool() ||
			gjson.Get(line, "isCompactSummary").Bool() ||
			isClaudeSystemText(bc.text) {
			ev.Kind = session.KindMeta
			ev.Text = bc.text
			return ev, true
		}
		if bc.hasResult && !bc.hasText {
			ev.Kind = session.KindToolResult
			ev.ToolOutput = bc.toolOutput
			return ev, true
		}
		ev.Kind = session.KindUser
		ev.Text = bc.text
		return ev, bc.hasText
	}

	// Assistant entry: a pure tool_use turn normalizes to a
	// tool_call event; mixed turns keep the assistant kind with
	// the tool name attached.
	if bc.hasToolUse && !bc.hasText {
		ev.Kind = session.KindToolCall
		ev.ToolName = bc.toolName
		ev.ToolInput = bc.toolInput
		return ev, true
	}
	ev.Kind = session.KindAssistant
	ev.Text = bc.text
	ev.ToolName = bc.toolName
	ev.ToolInput = bc.toolInput
	return ev, bc.hasText || bc.hasToolUse
}

// isClaudeSystemText matches known system-injected user message
// patterns that are not real conversation turns.
func isClaudeSystemText(content string) bool {
	trimmed := strings.TrimSpace(content)
	prefixes := [...]string{
		"This session is being continued",
		"[Request interrupted",
		"<task-notification>",
		"<command-message>",
		"<command-name>",
		"<local-command-",
		"Stop hook feedback:",
	}
	for _, p := range prefixes {
		if strings.HasPrefix(trimmed, p) {
			return true
		}
	}
	return false
}
