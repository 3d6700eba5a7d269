package session

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTitle_Priority(t *testing.T) {
	t.Run("lightweight title wins for meta sources", func(t *testing.T) {
		s := Session{
			Source:           SourceAmp,
			LightweightTitle: "Refactor auth",
			Events:           []Event{{Kind: KindUser, Text: "other"}},
		}
		assert.Equal(t, "Refactor auth", s.Title())
	})

	t.Run("lightweight title ignored after full parse", func(t *testing.T) {
		s := Session{
			Source:           SourceClaude,
			LightweightTitle: "stale scan title",
			Events: []Event{
				{Kind: KindUser, Text: "fix the login bug"},
			},
		}
		assert.Equal(t, "fix the login bug", s.Title())
	})

	t.Run("preview skips preamble", func(t *testing.T) {
		s := Session{
			Source: SourceClaude,
			Events: []Event{
				{Kind: KindUser, Text: "<system-reminder>do not</system-reminder>"},
				{Kind: KindUser, Text: "add a dark mode toggle"},
			},
		}
		assert.Equal(t, "add a dark mode toggle", s.Title())
	})

	t.Run("preview skips overlong messages", func(t *testing.T) {
		long := strings.Repeat("x", 500)
		s := Session{
			Source: SourceCodex,
			Events: []Event{
				{Kind: KindUser, Text: long},
				{Kind: KindUser, Text: "short follow-up"},
			},
		}
		assert.Equal(t, "short follow-up", s.Title())
	})

	t.Run("assistant fallback", func(t *testing.T) {
		s := Session{
			Source: SourceGemini,
			Events: []Event{
				{Kind: KindAssistant, Text: "I analyzed the crash"},
			},
		}
		assert.Equal(t, "I analyzed the crash", s.Title())
	})

	t.Run("tool name fallback", func(t *testing.T) {
		s := Session{
			Source: SourceClaude,
			Events: []Event{
				{Kind: KindToolCall, ToolName: "run_tests"},
			},
		}
		assert.Equal(t, "run_tests", s.Title())
	})

	t.Run("literal fallback", func(t *testing.T) {
		s := Session{Source: SourceClaude}
		assert.Equal(t, "Untitled session", s.Title())
	})
}

func TestIsPreamble(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"anchor phrase", "Caveat: the messages below were generated", true},
		{"anchor is case-insensitive", "CAVEAT: THE MESSAGES BELOW", true},
		{"plain question", "why does the build fail?", false},
		{"short bullet list passes", "- a\n- b\n- c", false},
		{
			"structural instruction block",
			"# Setup\n- install deps\n- run make\n- check output\nline five\nline six",
			true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPreamble(tt.text))
		})
	}
}
