// Package parser owns per-agent session file discovery and the
// JSON(L) adapters that translate heterogeneous agent log formats
// into the canonical session model. Each supported agent is a
// registry entry; adding an agent means adding a variant here plus
// its adapter, never branching on strings in aggregation code.
package parser

import (
	"time"

	"github.com/agentlens/agentlens/internal/session"
)

// AgentDef describes one supported coding agent: its filesystem
// layout, configuration keys, and adapter functions.
type AgentDef struct {
	Source      session.Source
	DisplayName string
	EnvVar      string   // env var for dir override
	ConfigKey   string   // JSON key in config.json
	DefaultDirs []string // paths relative to $HOME

	// Discover finds session files under a root directory.
	Discover func(root string) []DiscoveredFile

	// ScanLight builds a lightweight session (metadata only, no
	// event list) from a session file.
	ScanLight func(path string) (*session.Session, error)

	// ParseFull builds a fully parsed session with its complete
	// ordered event list.
	ParseFull func(path string) (*session.Session, error)

	// FileStamp extracts a filename-embedded timestamp. Nil for
	// agents whose filenames encode none.
	FileStamp func(path string) (time.Time, bool)
}

// DiscoveredFile is one session source file found on disk.
type DiscoveredFile struct {
	Path   string
	Source session.Source
	Size   int64
	Mtime  time.Time
}

// Registry lists all supported agents. Order is stable and used for
// iteration in config, indexing, and backfill.
var Registry = []AgentDef{
	{
		Source:      session.SourceClaude,
		DisplayName: "Claude Code",
		EnvVar:      "CLAUDE_PROJECTS_DIR",
		ConfigKey:   "claude_project_dirs",
		DefaultDirs: []string{".claude/projects"},
		Discover:    DiscoverClaude,
		ScanLight:   ScanClaudeSession,
		ParseFull:   ParseClaudeSession,
	},
	{
		Source:      session.SourceCodex,
		DisplayName: "Codex",
		EnvVar:      "CODEX_SESSIONS_DIR",
		ConfigKey:   "codex_sessions_dirs",
		DefaultDirs: []string{".codex/sessions"},
		Discover:    DiscoverCodex,
		ScanLight:   ScanCodexSession,
		ParseFull:   ParseCodexSession,
		FileStamp:   CodexFileStamp,
	},
	{
		Source:      session.SourceGemini,
		DisplayName: "Gemini",
		EnvVar:      "GEMINI_DIR",
		ConfigKey:   "gemini_dirs",
		DefaultDirs: []string{".gemini/tmp"},
		Discover:    DiscoverGemini,
		ScanLight:   ScanGeminiSession,
		ParseFull:   ParseGeminiSession,
	},
	{
		Source:      session.SourceCopilot,
		DisplayName: "Copilot",
		EnvVar:      "COPILOT_DIR",
		ConfigKey:   "copilot_dirs",
		DefaultDirs: []string{".copilot/session-state"},
		Discover:    DiscoverCopilot,
		ScanLight:   ScanCopilotSession,
		ParseFull:   ParseCopilotSession,
	},
	{
		Source:      session.SourceAmp,
		DisplayName: "Amp",
		EnvVar:      "AMP_THREADS_DIR",
		ConfigKey:   "amp_threads_dirs",
		DefaultDirs: []string{".local/share/amp/threads"},
		Discover:    DiscoverAmp,
		ScanLight:   ScanAmpSession,
		ParseFull:   ParseAmpSession,
	},
}

// AgentBySource returns the registry entry for the given source.
func AgentBySource(s session.Source) (AgentDef, bool) {
	for _, def := range Registry {
		if def.Source == s {
			return def, true
		}
	}
	return AgentDef{}, false
}
