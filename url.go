package gitcache

import (
	"net/url"
	"os"
	"path"
	"strings"
)

// cacheKey maps a remote repository URL to its relative path inside the
// cache base directory.
//
// Two URL shapes are recognized: standard URLs (scheme://host/path) and
// scp-like shorthands (user@host:path). The key is host plus path with a
// normalized ".git" suffix, so entries stay human-inspectable and the same
// logical remote always maps to the same entry:
//
//   - https://github.com/my/repo.git → github.com/my/repo.git
//   - git@github.com:my/repo        → github.com/my/repo.git
//
// Local paths and file:// URLs are not cacheable and return an error.
func cacheKey(rawURL string) (string, error) {
	var host, repo string

	if u, err := url.Parse(rawURL); err == nil && u.Scheme != "" {
		if u.Scheme == "file" {
			return "", configErrorf("cannot derive cache key for local url %q", rawURL)
		}
		host = u.Hostname()
		repo = strings.TrimPrefix(u.Path, "/")
	} else if _, h, p, ok := splitSCPLike(rawURL); ok {
		host = h
		repo = p
	} else {
		return "", configErrorf("cannot derive cache key for %q: not a remote repository url", rawURL)
	}

	if host == "" {
		return "", configErrorf("cannot derive cache key for %q: missing host", rawURL)
	}

	repo = strings.TrimSuffix(repo, "/")
	repo = strings.TrimSuffix(repo, ".git")

	return path.Join(host, repo) + ".git", nil
}

// splitSCPLike splits an scp-like remote shorthand (user@host:path) into its
// parts. It reports ok=false if the string does not have that shape, which
// requires an "@" appearing before the first ":".
func splitSCPLike(rawURL string) (user, host, repoPath string, ok bool) {
	at := strings.Index(rawURL, "@")
	colon := strings.Index(rawURL, ":")

	if at < 0 || colon < 0 || at >= colon {
		return "", "", "", false
	}

	return rawURL[:at], rawURL[at+1 : colon], rawURL[colon+1:], true
}

// repoIsLocal reports whether a repository URL points to a local path.
//
// This mimics Git's own notion of a local repository: file:// URLs, paths
// starting with "./" or "/", anything that is not an scp-like remote
// shorthand, and strings that name an existing path on the local filesystem
// are all treated as local. Bundle files are not taken into account, and a
// malformed remote URL that fails every remote shape check classifies as
// local rather than erroring.
func repoIsLocal(rawURL string) bool {
	if u, err := url.Parse(rawURL); err == nil && u.Scheme != "" {
		return u.Scheme == "file"
	}

	if strings.HasPrefix(rawURL, "./") || strings.HasPrefix(rawURL, "/") {
		return true
	}
	if _, _, _, ok := splitSCPLike(rawURL); !ok {
		return true
	}

	_, err := os.Stat(rawURL)
	return err == nil
}

// targetName derives the default clone destination from the final path
// segment of the URL, keeping any ".git" suffix just as git itself receives
// it (the caller decides what to do with it).
func targetName(rawURL string) string {
	return path.Base(strings.TrimSuffix(rawURL, "/"))
}
