package session

import "strings"

// Title heuristic tuning. The anchor list and structural thresholds
// are empirically tuned against real agent transcripts; revisit with
// care when a new agent's scaffolding slips through.
const (
	previewHeadWindow = 10  // events scanned by the preview heuristic
	previewTitleMax   = 120 // max preview title length, pre-collapse
	titleFallback     = "Untitled session"

	preambleMinLines       = 6
	preambleScanLines      = 20
	preambleMinStructLines = 4
)

// preambleAnchors match instruction blocks, system/assistant
// scaffolding, and CLI caveat boilerplate that must never become a
// session title.
var preambleAnchors = []string{
	"<system-reminder>",
	"<user-instructions>",
	"# instructions",
	"## instructions",
	"you are an ai",
	"you are a helpful",
	"caveat: the messages below",
	"as you answer the user's questions",
	"this session is being continued",
	"contents of the file",
	"# context",
}

// Title resolves a presentation title for the session, in priority
// order: lightweight title, preview-title heuristic, first
// non-preamble user text, first non-preamble assistant text, first
// tool-call name, literal fallback.
func (s *Session) Title() string {
	if t := s.lightweightTitle(); t != "" {
		return t
	}
	if previewTitleSources[s.Source] {
		if t := s.previewTitle(); t != "" {
			return t
		}
	}
	if t := s.firstText(KindUser); t != "" {
		return t
	}
	if t := s.firstText(KindAssistant); t != "" {
		return t
	}
	for i := range s.Events {
		if s.Events[i].Kind == KindToolCall && s.Events[i].ToolName != "" {
			return s.Events[i].ToolName
		}
	}
	return titleFallback
}

// lightweightTitle returns the extracted lightweight title when it
// is authoritative: always for lightweight-meta sources, otherwise
// only while the session has no events.
func (s *Session) lightweightTitle() string {
	if s.LightweightTitle == "" {
		return ""
	}
	if lightweightMetaSources[s.Source] || s.IsLightweight() {
		return collapseWhitespace(s.LightweightTitle)
	}
	return ""
}

// previewTitle scans the head window for the first user message
// that is not a preamble block and is under the length cap.
func (s *Session) previewTitle() string {
	limit := min(previewHeadWindow, len(s.Events))
	for i := 0; i < limit; i++ {
		ev := &s.Events[i]
		if ev.Kind != KindUser {
			continue
		}
		text := strings.TrimSpace(ev.Text)
		if text == "" || len(text) > previewTitleMax {
			continue
		}
		if IsPreamble(text) {
			continue
		}
		return collapseWhitespace(text)
	}
	return ""
}

func (s *Session) firstText(kind EventKind) string {
	for i := range s.Events {
		ev := &s.Events[i]
		if ev.Kind != kind {
			continue
		}
		text := strings.TrimSpace(ev.Text)
		if text == "" || IsPreamble(text) {
			continue
		}
		return collapseWhitespace(text)
	}
	return ""
}

// IsPreamble classifies a text block as instruction/scaffolding
// boilerplate. It matches a fixed anchor-phrase list, or a
// structural signal: at least preambleMinLines lines with at least
// preambleMinStructLines of the first preambleScanLines non-empty
// lines being markdown bullets or headings. Pure function of the
// text only.
func IsPreamble(text string) bool {
	lower := strings.ToLower(text)
	for _, anchor := range preambleAnchors {
		if strings.Contains(lower, anchor) {
			return true
		}
	}

	lines := strings.Split(text, "\n")
	if len(lines) < preambleMinLines {
		return false
	}
	seen, structural := 0, 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		seen++
		if seen > preambleScanLines {
			break
		}
		if strings.HasPrefix(trimmed, "- ") ||
			strings.HasPrefix(trimmed, "* ") ||
			strings.HasPrefix(trimmed, "#") {
			structural++
		}
	}
	return structural >= preambleMinStructLines
}
