package ignore

import (
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// Matcher answers whether a project-relative path is ignored.
type Matcher interface {
	Match(rel string, isDir bool) bool
}

// None ignores nothing.
type None struct{}

func (None) Match(string, bool) bool { return false }

// Rules is an ordered pattern list with git's semantics: the last matching
// pattern wins and "!" re-includes a path.
type Rules struct {
	patterns []gitignore.Pattern
	matcher  gitignore.Matcher
}

// Compile parses gitignore-style patterns into Rules. Blank lines and
// comments are dropped.
func Compile(patterns []string) (*Rules, error) {
	out := &Rules{patterns: make([]gitignore.Pattern, 0, len(patterns))}
	for _, p := range patterns {
		if p = parseLine(p); p == "" || p == "!" {
			continue
		}
		out.patterns = append(out.patterns, gitignore.ParsePattern(p, nil))
	}
	out.matcher = gitignore.NewMatcher(out.patterns)
	return out, nil
}

// Match reports whether rel, a path relative to the project root, is
// ignored. Either separator style is accepted.
func (r *Rules) Match(rel string, isDir bool) bool {
	rel = strings.TrimPrefix(filepath.ToSlash(rel), "./")
	if rel == "" || rel == "." {
		return false
	}
	return r.matcher.Match(strings.Split(rel, "/"), isDir)
}

// Len returns the number of parsed patterns.
func (r *Rules) Len() int { return len(r.patterns) }

// Load compiles the configured patterns followed by the patterns from the
// ignore files found in projectRoot, so file patterns take precedence.
func Load(projectRoot string, configured []string) (*Rules, error) {
	fromFiles, err := NewParser().ParseProject(projectRoot)
	if err != nil {
		return nil, err
	}
	return Compile(append(append([]string(nil), configured...), fromFiles...))
}
