package gitcache

import (
	"context"
	"sync"
)

// Prefetch warms the cache for every seed URL without creating working
// copies: each repository is mirrored if absent, or updated when requested.
// With Recurse set, each mirrored repository's submodule URLs are discovered
// and fed back into the same queue, transitively, with no advance knowledge
// of how many repositories the graph contains.
//
// Failures are independent: a URL whose processing fails is logged and the
// batch continues. Each URL is processed at most once per call.
func (c *Cache) Prefetch(ctx context.Context, req PrefetchRequest) error {
	for _, u := range req.URLs {
		if repoIsLocal(u) {
			return configErrorf("can only cache remote repositories, %q is local", u)
		}
	}
	if len(req.URLs) == 0 {
		return nil
	}

	jobs := req.Jobs
	if jobs <= 0 {
		jobs = 1
	}

	work := make(chan string)
	ctrl := make(chan prefetchUnit)

	var wg sync.WaitGroup
	for range jobs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for url := range work {
				if err := c.prefetchURL(ctx, url, req.Update, req.Recurse, ctrl); err != nil {
					c.logger.Warn().Str("url", url).Err(err).Msg("prefetch failed")
				}
			}
		}()
	}

	// Termination by reference counting, owned by this goroutine alone:
	// outstanding counts units that are queued or in flight. Enqueues
	// increment it, Done tokens decrement it, processed strictly in
	// arrival order, and workers report discoveries before their own
	// Done. It therefore reads zero exactly when the transitive closure
	// of discovered URLs has been processed, never transiently while
	// work remains.
	seen := make(map[string]struct{})
	var pending []string
	outstanding := 0
	total := 0

	enqueue := func(url string) {
		if _, ok := seen[url]; ok {
			return
		}
		seen[url] = struct{}{}
		pending = append(pending, url)
		outstanding++
		total++
	}

	for _, u := range req.URLs {
		enqueue(u)
	}

	for outstanding > 0 {
		// Only offer work when there is some; a nil channel never sends.
		var dispatch chan<- string
		var next string
		if len(pending) > 0 {
			dispatch = work
			next = pending[0]
		}

		select {
		case dispatch <- next:
			pending = pending[1:]
		case unit := <-ctrl:
			if unit.done {
				outstanding--
			} else {
				enqueue(unit.url)
			}
		}
	}

	close(work)
	wg.Wait()

	c.logger.Info().Int("repositories", total).Msg("finished pre-fetching")

	return nil
}

// prefetchURL processes one unit: mirror or refresh the entry under the
// exclusive lock, then, when recursing, discover its submodule URLs under
// the shared lock and report each to the coordinator. The Done token goes
// out last, strictly after all discoveries, so the coordinator's counter
// cannot hit zero while discovered work is still unreported.
func (c *Cache) prefetchURL(ctx context.Context, rawURL string, update, recurse bool, ctrl chan<- prefetchUnit) error {
	defer func() {
		ctrl <- prefetchUnit{done: true}
	}()

	repo, err := c.repo(rawURL)
	if err != nil {
		return err
	}

	if err := repo.refresh(ctx, update); err != nil {
		return err
	}

	if !recurse {
		return nil
	}

	urls, err := repo.discoverSubmodules(ctx)
	if err != nil {
		return err
	}
	for _, u := range urls {
		c.logger.Info().Str("url", rawURL).Str("submodule", u).Msg("discovered submodule")
		ctrl <- prefetchUnit{url: u}
	}

	return nil
}
