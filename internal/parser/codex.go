package parser

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/agentlens/agentlens/internal/session"
	"github.com/agentlens/agentlens/internal/timeutil"
	"github.com/tidwall/gjson"
)

// Codex rollout filenames embed the session start timestamp:
// rollout-2025-01-02T03-04-05-<uuid>.jsonl.
var codexStampRe = regexp.MustCompile(
	`^rollout-(\d{4}-\d{2}-\d{2}T\d{2}-\d{2}-\d{2})-`,
)

// CodexFileStamp extracts the filename-embedded timestamp from a
// Codex rollout file. Resilient to absence: returns false, never
// errors.
func CodexFileStamp(path string) (time.Time, bool) {
	m := codexStampRe.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return time.Time{}, false
	}
	// Hour/minute/second separators are dashes in filenames.
	stamp := m[1][:10] + "T" + strings.ReplaceAll(m[1][11:], "-", ":")
	t, err := time.Parse("2006-01-02T15:04:05", stamp)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// ScanCodexSession builds a lightweight session from a Codex rollout
// JSONL file.
func ScanCodexSession(path string) (*session.Session, error) {
	return parseCodex(path, false)
}

// ParseCodexSession builds a fully parsed session.
func ParseCodexSession(path string) (*session.Session, error) {
	return parseCodex(path, true)
}

func parseCodex(path string, full bool) (*session.Session, error) {
	s := &session.Session{
		Source:   session.SourceCodex,
		FilePath: path,
	}
	if ts, ok := CodexFileStamp(path); ok {
		s.FileStamp = ts
	}

	b := &builder{keepEvents: full}
	err := scanJSONL(path, b, codexEvent, func(line string) {
		if gjson.Get(line, "type").Str != "session_meta" {
			return
		}
		payload := gjson.Get(line, "payload")
		if s.ID == "" {
			s.ID = payload.Get("id").Str
		}
		if s.LightweightCwd == "" {
			s.LightweightCwd = payload.Get("cwd").Str
		}
		if s.GitBranch == "" {
			s.GitBranch = payload.Get("git.branch").Str
		}
	})
	if err != nil {
		return nil, err
	}

	if s.ID == "" {
		s.ID = strings.TrimSuffix(filepath.Base(path), ".jsonl")
	}
	b.finish(s)
	return s, nil
}

// codexEvent adapts one Codex rollout line: session_meta becomes a
// meta event; response_item payloads map to user/assistant messages,
// function calls, and function outputs.
func codexEvent(line string) (session.Event, bool) {
	ts := timeutil.Parse(gjson.Get(line, "timestamp").Str)
	payload := gjson.Get(line, "payload")

	switch gjson.Get(line, "type").Str {
	case "session_meta":
		return session.Event{
			Kind:      session.KindMeta,
			Timestamp: ts,
			Raw:       line,
		}, true

	case "response_item":
		return codexResponseItem(payload, ts, line)
	}
	return session.Event{}, false
}

func codexResponseItem(
	payload gjson.Result, ts time.Time, line string,
) (session.Event, bool) {
	ev := session.Event{Timestamp: ts, Raw: line}

	switch payload.Get("type").Str {
	case "function_call":
		name := payload.Get("name").Str
		if name == "" {
			return session.Event{}, false
		}
		ev.Kind = session.KindToolCall
		ev.ToolName = name
		ev.ToolInput = codexCallArgs(payload)
		return ev, true

	case "function_call_output":
		ev.Kind = session.KindToolResult
		ev.ToolOutput = payload.Get("output").Str
		return ev, true

	case "message":
		role := payload.Get("role").Str
		if role != "user" && role != "assistant" {
			return session.Event{}, false
		}
		text := codexMessageText(payload)
		if strings.TrimSpace(text) == "" {
			return session.Event{}, false
		}
		if role == "user" && isCodexSystemText(text) {
			ev.Kind = session.KindMeta
			ev.Text = text
			return ev, true
		}
		ev.Kind = session.EventKind(role)
		ev.Text = text
		return ev, true
	}
	return session.Event{}, false
}

func codexCallArgs(payload gjson.Result) string {
	for _, key := range []string{"arguments", "input"} {
		if arg := payload.Get(key); arg.Exists() {
			return arg.Raw
		}
	}
	return ""
}

// codexMessageText flattens a message payload's content, which is
// either a string or an array of input_text/output_text parts.
func codexMessageText(payload gjson.Result) string {
	content := payload.Get("content")
	if content.Type == gjson.String {
		return content.Str
	}
	var parts []string
	content.ForEach(func(_, part gjson.Result) bool {
		switch part.Get("type").Str {
		case "input_text", "output_text", "text":
			if t := part.Get("text").Str; t != "" {
				parts = append(parts, t)
			}
		}
		return true
	})
	return strings.Join(parts, "\n")
}

// isCodexSystemText matches environment-context and instruction
// blocks that Codex injects as user-role messages.
func isCodexSystemText(content string) bool {
	trimmed := strings.TrimSpace(content)
	prefixes := [...]string{
		"<environment_context>",
		"<user_instructions>",
		"<turn_aborted>",
		"# AGENTS.md",
	}
	for _, p := range prefixes {
		if strings.HasPrefix(trimmed, p) {
			return true
		}
	}
	return false
}
