package session

import (
	"os"
	"path/filepath"
	"strings"
)

// maxRepoWalkDepth bounds the upward walk from cwd when looking for
// a version-control root.
const maxRepoWalkDepth = 6

// genericDirNames are leaf directory names too generic to serve as a
// repo name. When the cwd leaf is one of these, resolution retries
// one level up before giving up.
var genericDirNames = map[string]bool{
	"documents": true, "desktop": true, "downloads": true,
	"tmp": true, "temp": true, "src": true, "code": true,
}

// RepoName derives a repository name for the session from its
// working directory: the enclosing git root's base name when one is
// found within the walk bound, else the cwd leaf name unless it is a
// generic directory name, in which case its parent is tried once.
func (s *Session) RepoName() string {
	return RepoNameFromCwd(s.Cwd())
}

// RepoNameFromCwd resolves a repo name from a working directory.
func RepoNameFromCwd(cwd string) string {
	if cwd == "" {
		return ""
	}
	cleaned := filepath.Clean(cwd)
	if root := findRepoRoot(cleaned); root != "" {
		if name := filepath.Base(root); validBase(name) {
			return name
		}
		return ""
	}

	name := filepath.Base(cleaned)
	if !validBase(name) {
		return ""
	}
	if genericDirNames[strings.ToLower(name)] {
		parent := filepath.Base(filepath.Dir(cleaned))
		if validBase(parent) && !genericDirNames[strings.ToLower(parent)] {
			return parent
		}
		return ""
	}
	return name
}

func validBase(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, "/\\")
}

// findRepoRoot walks upward from cwd, at most maxRepoWalkDepth
// levels, to find the enclosing git repository root. Supports
// regular roots (.git directory) and linked worktrees/submodules
// (.git pointer file).
func findRepoRoot(cwd string) string {
	dir := cwd
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		dir = filepath.Dir(dir)
	} else if err != nil {
		// Avoid treating non-path strings as directories.
		if !strings.ContainsRune(dir, filepath.Separator) {
			return ""
		}
	}

	for depth := 0; depth <= maxRepoWalkDepth; depth++ {
		gitPath := filepath.Join(dir, ".git")
		if info, err := os.Stat(gitPath); err == nil {
			if info.IsDir() {
				return dir
			}
			if info.Mode().IsRegular() {
				if root := rootFromGitFile(dir, gitPath); root != "" {
					return root
				}
				// Unparseable gitfile metadata: the holding
				// directory is still the best answer.
				return dir
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
	return ""
}

// rootFromGitFile resolves the repository root behind a .git pointer
// file, distinguishing linked worktrees (commondir redirection) from
// submodules (gitdir under the superproject's .git/modules).
func rootFromGitFile(holdingDir, gitFilePath string) string {
	gitDir := readGitDirPointer(gitFilePath)
	if gitDir == "" {
		return ""
	}
	if !filepath.IsAbs(gitDir) {
		gitDir = filepath.Clean(
			filepath.Join(filepath.Dir(gitFilePath), gitDir),
		)
	}

	if commonDir := readCommonDir(gitDir); commonDir != "" {
		if filepath.Base(commonDir) == ".git" {
			return filepath.Dir(commonDir)
		}
	}

	// Linked worktree without a readable commondir: the path
	// itself encodes <root>/.git/worktrees/<name>.
	marker := string(filepath.Separator) + ".git" +
		string(filepath.Separator) + "worktrees" +
		string(filepath.Separator)
	if root, _, found := strings.Cut(gitDir, marker); found && root != "" {
		return filepath.Clean(root)
	}

	// Submodule: the checkout directory is its own root.
	return holdingDir
}

func readGitDirPointer(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	for line := range strings.SplitSeq(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		const prefix = "gitdir:"
		if strings.HasPrefix(strings.ToLower(line), prefix) {
			return strings.TrimSpace(line[len(prefix):])
		}
	}
	return ""
}

func readCommonDir(gitDir string) string {
	b, err := os.ReadFile(filepath.Join(gitDir, "commondir"))
	if err != nil {
		return ""
	}
	value := strings.TrimSpace(string(b))
	if value == "" {
		return ""
	}
	if filepath.IsAbs(value) {
		return filepath.Clean(value)
	}
	return filepath.Clean(filepath.Join(gitDir, value))
}
