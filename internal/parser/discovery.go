package parser

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/agentlens/agentlens/internal/session"
)

// statFile fills in file metadata for a discovered path. Returns
// false for paths that vanished between listing and stat.
func statFile(path string, src session.Source) (DiscoveredFile, bool) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return DiscoveredFile{}, false
	}
	return DiscoveredFile{
		Path:   path,
		Source: src,
		Size:   info.Size(),
		Mtime:  info.ModTime(),
	}, true
}

// DiscoverClaude finds Claude Code session files:
// <root>/<encoded-project>/<session>.jsonl. Subagent transcripts
// (agent-*.jsonl) are owned by their parent session and skipped.
func DiscoverClaude(root string) []DiscoveredFile {
	var files []DiscoveredFile
	projects, err := os.ReadDir(root)
	if err != nil {
		return nil
	}
	for _, proj := range projects {
		if !proj.IsDir() {
			continue
		}
		dir := filepath.Join(root, proj.Name())
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || !strings.HasSuffix(name, ".jsonl") {
				continue
			}
			if strings.HasPrefix(name, "agent-") {
				continue
			}
			if df, ok := statFile(
				filepath.Join(dir, name), session.SourceClaude,
			); ok {
				files = append(files, df)
			}
		}
	}
	return files
}

// DiscoverCodex finds Codex rollout files laid out by date:
// <root>/<year>/<month>/<day>/rollout-*.jsonl.
func DiscoverCodex(root string) []DiscoveredFile {
	var files []DiscoveredFile
	var walk func(dir string, depth int)
	walk = func(dir string, depth int) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return
		}
		for _, e := range entries {
			path := filepath.Join(dir, e.Name())
			if e.IsDir() {
				if depth < 3 && isDigits(e.Name()) {
					walk(path, depth+1)
				}
				continue
			}
			if depth != 3 {
				continue
			}
			if !strings.HasPrefix(e.Name(), "rollout-") ||
				!strings.HasSuffix(e.Name(), ".jsonl") {
				continue
			}
			if df, ok := statFile(path, session.SourceCodex); ok {
				files = append(files, df)
			}
		}
	}
	walk(root, 0)
	return files
}

// DiscoverGemini finds Gemini CLI chat checkpoints:
// <root>/<project-hash>/chats/*.json.
func DiscoverGemini(root string) []DiscoveredFile {
	var files []DiscoveredFile
	hashes, err := os.ReadDir(root)
	if err != nil {
		return nil
	}
	for _, h := range hashes {
		if !h.IsDir() {
			continue
		}
		chats := filepath.Join(root, h.Name(), "chats")
		entries, err := os.ReadDir(chats)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
				continue
			}
			if df, ok := statFile(
				filepath.Join(chats, e.Name()), session.SourceGemini,
			); ok {
				files = append(files, df)
			}
		}
	}
	return files
}

// DiscoverCopilot finds Copilot CLI session state:
// <root>/<uuid>/events.jsonl, or the flat legacy form
// <root>/<uuid>.jsonl when no events directory exists.
func DiscoverCopilot(root string) []DiscoveredFile {
	var files []DiscoveredFile
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil
	}
	for _, e := range entries {
		if e.IsDir() {
			path := filepath.Join(root, e.Name(), "events.jsonl")
			if df, ok := statFile(path, session.SourceCopilot); ok {
				files = append(files, df)
			}
			continue
		}
		if !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		// Skip the flat file when the directory form exists.
		stem := strings.TrimSuffix(e.Name(), ".jsonl")
		dirForm := filepath.Join(root, stem, "events.jsonl")
		if _, err := os.Stat(dirForm); err == nil {
			continue
		}
		if df, ok := statFile(
			filepath.Join(root, e.Name()), session.SourceCopilot,
		); ok {
			files = append(files, df)
		}
	}
	return files
}

// DiscoverAmp finds Amp thread files: <root>/T-*.json.
func DiscoverAmp(root string) []DiscoveredFile {
	var files []DiscoveredFile
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "T-") ||
			!strings.HasSuffix(name, ".json") {
			continue
		}
		if df, ok := statFile(
			filepath.Join(root, name), session.SourceAmp,
		); ok {
			files = append(files, df)
		}
	}
	return files
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
