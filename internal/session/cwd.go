package session

import (
	"strings"

	"github.com/tidwall/gjson"
)

// rawCwdKeys are the JSON keys scanned, in order, by the raw-JSON
// working-directory fallback.
var rawCwdKeys = []string{
	"cwd", "workingDirectory", "working_dir", "project_path",
}

// Cwd resolves the session's working directory. Fixed precedence,
// first non-empty hit wins, no merging:
//  1. the lightweight field, for sources whose full-parse form
//     never encodes a cwd;
//  2. the lightweight field generically, while no events are loaded;
//  3. an in-text <cwd>-style tag in any event;
//  4. a raw-JSON field scan across events.
func (s *Session) Cwd() string {
	if lightweightMetaSources[s.Source] && s.LightweightCwd != "" {
		return s.LightweightCwd
	}
	if s.IsLightweight() {
		return s.LightweightCwd
	}
	for i := range s.Events {
		if cwd := extractTag(s.Events[i].Text, "cwd"); cwd != "" {
			return cwd
		}
	}
	for i := range s.Events {
		if cwd := scanRawCwd(s.Events[i].Raw); cwd != "" {
			return cwd
		}
	}
	return ""
}

// extractTag pulls the trimmed body of an XML-ish <name>...</name>
// tag out of a text block. Returns "" when absent or malformed.
func extractTag(text, name string) string {
	openTag := "<" + name + ">"
	closeTag := "</" + name + ">"
	start := strings.Index(text, openTag)
	if start < 0 {
		return ""
	}
	rest := text[start+len(openTag):]
	end := strings.Index(rest, closeTag)
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(rest[:end])
}

// scanRawCwd is a compat fallback: it scans a raw JSON line for any
// known working-directory key. Isolated here so its fragility does
// not leak into the typed model path.
func scanRawCwd(raw string) string {
	if raw == "" || !gjson.Valid(raw) {
		return ""
	}
	for _, key := range rawCwdKeys {
		if v := gjson.Get(raw, key).Str; v != "" {
			return v
		}
	}
	return ""
}

// ScanRawSessionID is a compat fallback for agents that only record
// the session identity inside event payloads. It checks the typed
// top-level keys first, then one level of nesting.
func ScanRawSessionID(raw string) string {
	if raw == "" || !gjson.Valid(raw) {
		return ""
	}
	for _, key := range []string{
		"session_id", "sessionId",
		"payload.id", "data.session_id",
	} {
		if v := gjson.Get(raw, key).Str; v != "" {
			return v
		}
	}
	return ""
}
