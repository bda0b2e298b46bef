// Package gitinfo reads the hosting URL and branch of the repository that
// contains a project.
package gitinfo

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/go-git/go-git/v5"
)

// Info describes the enclosing repository. Fields are empty when unknown.
type Info struct {
	RemoteURL string // browsable https URL of "origin"
	Branch    string
}

// Detect opens the repository containing path, searching parent
// directories. A path outside any repository yields an empty Info and
// no error.
func Detect(path string) (Info, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return Info{}, nil
		}
		return Info{}, fmt.Errorf("open repository: %w", err)
	}

	var info Info
	if head, err := repo.Head(); err == nil && head.Name().IsBranch() {
		info.Branch = head.Name().Short()
	}

	if remote, err := repo.Remote("origin"); err == nil {
		if urls := remote.Config().URLs; len(urls) > 0 {
			info.RemoteURL = WebURL(urls[0])
		}
	}
	return info, nil
}

var scpLike = regexp.MustCompile(`^(?:[\w.-]+@)?([\w.-]+):(.+)$`)

// WebURL converts a clone URL into its browsable https form.
//
//	git@github.com:acme/demo.git    -> https://github.com/acme/demo
//	ssh://git@github.com/acme/demo  -> https://github.com/acme/demo
//	https://github.com/acme/demo.git -> https://github.com/acme/demo
func WebURL(remote string) string {
	u := strings.TrimSpace(remote)
	u = strings.TrimSuffix(u, "/")
	u = strings.TrimSuffix(u, ".git")

	switch {
	case strings.HasPrefix(u, "https://"), strings.HasPrefix(u, "http://"):
		if parsed, err := url.Parse(u); err == nil {
			parsed.User = nil
			return parsed.String()
		}
		return u
	case strings.HasPrefix(u, "ssh://"):
		rest := strings.TrimPrefix(u, "ssh://")
		if at := strings.Index(rest, "@"); at != -1 {
			rest = rest[at+1:]
		}
		if slash := strings.Index(rest, "/"); slash != -1 {
			host := rest[:slash]
			if colon := strings.Index(host, ":"); colon != -1 {
				host = host[:colon]
			}
			return "https://" + host + rest[slash:]
		}
		return "https://" + rest
	}

	if m := scpLike.FindStringSubmatch(u); m != nil && !strings.Contains(m[1], "/") {
		return "https://" + m[1] + "/" + strings.TrimPrefix(m[2], "/")
	}
	return u
}
