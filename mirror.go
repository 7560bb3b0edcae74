package gitcache

import (
	"context"
	"sort"

	"github.com/jmgilman/go/errors"
)

// cacheRepo is one cache entry: the mirror clone of a single remote URL,
// living at <baseDir>/<cacheKey>, with a sibling lock file. It owns the
// entry's full lifecycle (create, refresh, commit probe, clone-out) and
// pairs every mutation or read with the appropriate lock mode.
type cacheRepo struct {
	cache *Cache
	url   string
	path  string
	repo  *gitRepo
}

// repo resolves the cache entry for a remote URL. Deriving the entry path
// is pure computation; nothing is created on disk until the entry is
// populated.
func (c *Cache) repo(rawURL string) (*cacheRepo, error) {
	key, err := cacheKey(rawURL)
	if err != nil {
		return nil, err
	}

	entryPath := c.fs.Join(c.baseDir, key)

	return &cacheRepo{
		cache: c,
		url:   rawURL,
		path:  entryPath,
		repo:  newGitRepo(entryPath, c.fs, c.executor),
	}, nil
}

func (r *cacheRepo) lock() (*entryLock, error) {
	return newEntryLock(r.cache.fs, r.path)
}

// ensureMirror creates the mirror clone if the entry is not already a valid
// repository, returning true when it performed the clone. Callers must hold
// the exclusive lock.
func (r *cacheRepo) ensureMirror(ctx context.Context) (bool, error) {
	initialized, err := r.repo.isInitialized(ctx)
	if err != nil {
		return false, mirrorError(err, r.url)
	}
	if initialized {
		return false, nil
	}

	r.cache.logger.Info().Str("url", r.url).Msg("cloning into cache")

	if err := r.cache.fs.MkdirAll(r.path, 0o755); err != nil {
		return false, mirrorError(err, r.url)
	}
	if _, err := gitCommand(ctx, r.cache.executor).Run("clone", "--mirror", "--", r.url, r.path); err != nil {
		return false, mirrorError(err, r.url)
	}

	return true, nil
}

// update refreshes all remote-tracking refs of the mirror in place. Callers
// must hold the exclusive lock.
func (r *cacheRepo) update(ctx context.Context) error {
	if err := r.repo.remoteUpdate(ctx); err != nil {
		return updateError(err, r.url)
	}
	return nil
}

func (r *cacheRepo) hasCommit(ctx context.Context, commit string) (bool, error) {
	has, err := r.repo.hasCommit(ctx, commit)
	if err != nil {
		return false, gitOpError(err, "probing commit in", r.url)
	}
	return has, nil
}

// populate brings the entry to a state that can serve the request, under
// the exclusive lock: mirror if absent (a fresh mirror is fresh by
// definition), otherwise update when the caller forced it or when the
// pinned commit is missing. A pinned commit that is still missing after the
// single update attempt fails the request; the update is never repeated.
func (r *cacheRepo) populate(ctx context.Context, update bool, commit string) error {
	lk, err := r.lock()
	if err != nil {
		return err
	}
	release, err := lk.acquireExclusive()
	if err != nil {
		return err
	}
	defer release()

	created, err := r.ensureMirror(ctx)
	if err != nil || created {
		return err
	}

	tryUpdate := false
	if commit != "" {
		has, err := r.hasCommit(ctx, commit)
		if err != nil {
			return err
		}
		tryUpdate = !has
	}

	if update || tryUpdate {
		r.cache.logger.Info().Str("url", r.url).Msg("updating cache")
		if err := r.update(ctx); err != nil {
			return err
		}
	}

	if commit != "" && tryUpdate {
		has, err := r.hasCommit(ctx, commit)
		if err != nil {
			return err
		}
		if !has {
			return commitNotFoundError(r.url, commit)
		}
	}

	return nil
}

// refresh is the prefetch variant of populate: mirror if absent, update only
// when asked, no commit pinning involved.
func (r *cacheRepo) refresh(ctx context.Context, update bool) error {
	lk, err := r.lock()
	if err != nil {
		return err
	}
	release, err := lk.acquireExclusive()
	if err != nil {
		return err
	}
	defer release()

	created, err := r.ensureMirror(ctx)
	if err != nil || created {
		return err
	}

	if update {
		r.cache.logger.Info().Str("url", r.url).Msg("updating cache")
		return r.update(ctx)
	}

	return nil
}

// cloneOut clones a working copy from the mirror into target under the
// shared lock, then rewrites the clone's origin remote to the true upstream
// URL so the result is indistinguishable from a direct clone. Shared
// locking lets any number of clone-outs read one warmed mirror concurrently
// while excluding writers.
func (r *cacheRepo) cloneOut(ctx context.Context, target string, passthrough []string) error {
	lk, err := r.lock()
	if err != nil {
		return err
	}
	release, err := lk.acquireShared()
	if err != nil {
		return err
	}
	defer release()

	if err := directClone(ctx, r.cache.executor, r.path, target, passthrough); err != nil {
		return cloneError(err, r.url)
	}

	if err := newGitRepo(target, r.cache.fs, r.cache.executor).setRemoteURL(ctx, "origin", r.url); err != nil {
		return gitOpError(err, "rewriting origin for", r.url)
	}

	return nil
}

// discoverSubmodules lists the submodule URLs declared at the mirror's HEAD,
// for prefetch recursion. The mirror is bare, so the declarations are read
// with `git show HEAD:.gitmodules`; a repository without the file (or
// without a HEAD) simply has no submodules. Runs under the shared lock.
func (r *cacheRepo) discoverSubmodules(ctx context.Context) ([]string, error) {
	lk, err := r.lock()
	if err != nil {
		return nil, err
	}
	release, err := lk.acquireShared()
	if err != nil {
		return nil, err
	}
	defer release()

	data, err := r.repo.show(ctx, "HEAD:.gitmodules")
	if err != nil {
		if _, ok := asExitError(err); ok {
			return nil, nil
		}
		return nil, gitOpError(err, "reading submodules of", r.url)
	}

	modules, err := parseModules(data)
	if err != nil {
		wrapped := errors.Wrapf(err, errors.CodeInvalidInput,
			"parsing .gitmodules of %s", r.url)
		return nil, errors.WithContext(wrapped, "url", r.url)
	}

	urls := make([]string, 0, len(modules.Submodules))
	for _, m := range modules.Submodules {
		if m.URL != "" {
			urls = append(urls, m.URL)
		}
	}
	sort.Strings(urls)

	return urls, nil
}
