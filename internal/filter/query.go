package filter

import (
	"strings"

	"github.com/google/shlex"
)

// Query is a parsed free-text query: explicit repo:/path: operator
// tokens plus the remaining free text. Operator tokens are removed
// from the free-text portion regardless of position.
type Query struct {
	Repo string
	Path string
	Text string
}

// ParseQuery splits q shell-style so quoted operator values
// (repo:"my repo") survive, then extracts repo: and path: tokens.
// Unbalanced quotes degrade to whitespace splitting rather than
// failing.
func ParseQuery(q string) Query {
	q = strings.TrimSpace(q)
	if q == "" {
		return Query{}
	}

	tokens, err := shlex.Split(q)
	if err != nil {
		tokens = strings.Fields(q)
	}

	var parsed Query
	var free []string
	for _, tok := range tokens {
		lower := strings.ToLower(tok)
		switch {
		case strings.HasPrefix(lower, "repo:"):
			parsed.Repo = trimQuotes(tok[len("repo:"):])
		case strings.HasPrefix(lower, "path:"):
			parsed.Path = trimQuotes(tok[len("path:"):])
		default:
			free = append(free, tok)
		}
	}
	parsed.Text = strings.Join(free, " ")
	return parsed
}

// trimQuotes strips one layer of surrounding single or double
// quotes, for operator values that arrive quoted past shlex.
func trimQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') ||
			(s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
