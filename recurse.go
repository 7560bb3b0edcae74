package gitcache

import (
	"context"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

// cloneSubmodules fans the parent's resolved submodule list out across a
// bounded worker pool. Each worker re-enters Clone for its submodule, pinned
// to the recorded commit and recursing further, then registers the submodule
// with the parent so later tooling recognizes it as attached.
//
// The first error wins and fails the aggregate operation; siblings already
// running are left to finish. Their results are complete clones on disk,
// inspectable by path, and re-running the request is always safe.
func (c *Cache) cloneSubmodules(ctx context.Context, parent *gitRepo, job cloneJob) error {
	submodules, err := c.resolveSubmodules(ctx, parent, job.filter)
	if err != nil {
		return err
	}
	if len(submodules) == 0 {
		return nil
	}

	// The pool belongs to this invocation. Nested levels get no job count
	// of their own and run sequentially inside their worker, keeping total
	// concurrency bounded by this level's limit.
	g := new(errgroup.Group)
	g.SetLimit(job.jobs)

	for _, sub := range submodules {
		g.Go(func() error {
			c.logger.Info().
				Str("url", sub.URL).
				Str("path", sub.Path).
				Msg("cloning submodule")

			err := c.Clone(ctx, CloneRequest{
				URL:               sub.URL,
				TargetPath:        filepath.Join(parent.path, sub.Path),
				Commit:            sub.Commit,
				Update:            job.update,
				RecurseAll:        true,
				ShallowSubmodules: job.shallow,
			})
			if err != nil {
				return err
			}

			if err := parent.initSubmodule(ctx, sub.Path); err != nil {
				return submoduleInitError(err, parent.path, sub.Path)
			}
			return nil
		})
	}

	return g.Wait()
}
