// Package urls builds source-hosting links for documented files and folders.
package urls

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// Builder turns project-relative paths into display links.
type Builder interface {
	File(rel string) string
	Folder(rel string) string
}

// None returns empty links.
type None struct{}

func (None) File(string) string   { return "" }
func (None) Folder(string) string { return "" }

// Hosted builds links in the GitHub layout, <repo>/blob/<branch>/<path> for
// files and <repo>/tree/<branch>/<path> for folders. GitLab hosts get the
// "/-/" infix. Without a branch, paths are appended to the repository URL.
type Hosted struct {
	Repo   string
	Branch string
	gitlab bool
}

// New returns a Builder for repo, or None when repo is empty.
func New(repo, branch string) Builder {
	repo = strings.TrimSuffix(strings.TrimSpace(repo), "/")
	if repo == "" {
		return None{}
	}
	h := &Hosted{Repo: repo, Branch: branch}
	if u, err := url.Parse(repo); err == nil && strings.Contains(u.Host, "gitlab") {
		h.gitlab = true
	}
	return h
}

func (h *Hosted) File(rel string) string   { return h.link("blob", rel) }
func (h *Hosted) Folder(rel string) string { return h.link("tree", rel) }

func (h *Hosted) link(kind, rel string) string {
	rel = strings.Trim(filepath.ToSlash(rel), "/")
	if rel == "." {
		rel = ""
	}
	if h.Branch == "" {
		if rel == "" {
			return h.Repo
		}
		return h.Repo + "/" + escapePath(rel)
	}
	prefix := h.Repo + "/"
	if h.gitlab {
		prefix += "-/"
	}
	return strings.TrimSuffix(prefix+path.Join(kind, h.Branch, escapePath(rel)), "/")
}

func escapePath(rel string) string {
	parts := strings.Split(rel, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
