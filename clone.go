package gitcache

import (
	"context"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/jmgilman/go/errors"
)

// cloneJob is a CloneRequest after validation, with every derived default
// computed exactly once.
type cloneJob struct {
	url         string
	target      string
	cached      bool
	update      bool
	commit      string
	sparsePaths []string
	filter      []string
	recurse     bool
	shallow     bool
	jobs        int
	extraArgs   []string
}

// resolveClone validates a request and computes its derived defaults. It
// performs no I/O beyond the locality probe.
func (c *Cache) resolveClone(req CloneRequest) (cloneJob, error) {
	if req.URL == "" {
		return cloneJob{}, configErrorf("repository url is required")
	}

	var cached bool
	if req.Cached == nil {
		cached = !repoIsLocal(req.URL)
	} else {
		cached = *req.Cached
		if cached && repoIsLocal(req.URL) {
			return cloneJob{}, configErrorf(
				"can only cache remote repositories, %q is local", req.URL)
		}
	}

	jobs := req.Jobs
	if jobs <= 0 {
		jobs = 1
	}

	filter := req.RecurseSubmodules
	if req.RecurseAll {
		filter = nil
	}

	return cloneJob{
		url:         req.URL,
		target:      req.TargetPath,
		cached:      cached,
		update:      req.Update,
		commit:      req.Commit,
		sparsePaths: req.SparsePaths,
		filter:      filter,
		recurse:     req.RecurseAll || len(req.RecurseSubmodules) > 0,
		shallow:     req.ShallowSubmodules,
		jobs:        jobs,
		extraArgs:   req.ExtraCloneArgs,
	}, nil
}

// Clone performs one clone request end to end.
//
// Remote URLs go through the cache: the mirror entry is created or refreshed
// under the entry's exclusive lock, then the working copy is cloned out of
// it under the shared lock, with origin rewritten to the upstream URL. Local
// repositories are cloned directly. Either way, a pinned commit is checked
// out and sparse paths applied afterwards, and submodule recursion re-enters
// Clone per submodule.
func (c *Cache) Clone(ctx context.Context, req CloneRequest) error {
	job, err := c.resolveClone(req)
	if err != nil {
		return err
	}

	target, err := c.resolveTarget(job.url, job.target)
	if err != nil {
		return err
	}

	if job.cached {
		repo, err := c.repo(job.url)
		if err != nil {
			return err
		}
		if err := repo.populate(ctx, job.update, job.commit); err != nil {
			return err
		}
		if err := repo.cloneOut(ctx, target, job.extraArgs); err != nil {
			return err
		}
	} else {
		if err := directClone(ctx, c.executor, job.url, target, job.extraArgs); err != nil {
			return cloneError(err, job.url)
		}
	}

	workCopy := newGitRepo(target, c.fs, c.executor)

	if job.commit != "" {
		// Pinned checkouts always detach; silence the advice git prints.
		if err := workCopy.setConfig(ctx, "advice.detachedHead", "false"); err != nil {
			return gitOpError(err, "configuring", target)
		}
		if err := workCopy.checkout(ctx, job.commit); err != nil {
			return checkoutError(err, target, job.commit)
		}
	}

	if len(job.sparsePaths) > 0 {
		if err := workCopy.sparseCheckout(ctx, job.sparsePaths); err != nil {
			return sparseCheckoutError(err, target)
		}
	}

	if job.recurse {
		return c.cloneSubmodules(ctx, workCopy, job)
	}

	return nil
}

// resolveTarget picks the destination directory (explicit, or derived from
// the URL's final path segment) and enforces that it does not exist or is an
// empty directory. This runs before any mutation, cache or target side.
//
// The result is absolute for the same reason the cache base directory is:
// the filesystem layer and the git subprocesses must agree on where a
// relative destination lands.
func (c *Cache) resolveTarget(rawURL, explicit string) (string, error) {
	target := explicit
	if target == "" {
		target = targetName(rawURL)
	}

	target, err := filepath.Abs(target)
	if err != nil {
		return "", errors.Wrapf(err, errors.CodeInvalidConfig,
			"resolving clone destination %q", target)
	}

	ok, err := isCloneTarget(c.fs, target)
	if err != nil {
		return "", errors.Wrapf(err, errors.CodeInternal,
			"checking clone destination %q", target)
	}
	if !ok {
		return "", destinationExistsError(target)
	}

	return target, nil
}

// isCloneTarget reports whether path can receive a clone: it must not exist,
// or be an empty directory.
func isCloneTarget(fs billy.Filesystem, path string) (bool, error) {
	fi, err := fs.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, err
	}
	if !fi.IsDir() {
		return false, nil
	}

	entries, err := fs.ReadDir(path)
	if err != nil {
		return false, err
	}
	return len(entries) == 0, nil
}
