// Package gitcache maintains a persistent local cache of Git mirror clones
// and serves working-copy clones from it via object sharing.
//
// # Overview
//
// Cloning the same remote repository repeatedly wastes network bandwidth and
// time. The cache keeps one full mirror clone per remote URL and creates
// working copies from the mirror with `git clone --shared`, so repeated
// clones of the same repository only pay the network cost once:
//
//  1. Mirror entries: one bare, all-refs mirror clone per remote URL
//  2. Advisory lock files: one per entry, shared for readers, exclusive for writers
//  3. Working copies: cloned out of the mirror, origin rewritten to the true upstream
//
// The cache layout is computed from the URL alone (host plus path), so there
// is no index file to maintain; the filesystem path is the index.
//
// # Architecture
//
// The cache directory holds one mirror per remote, addressed by host and path:
//
//	~/.gitcache/
//	├── github.com/
//	│   └── my/
//	│       ├── repo.git/        # mirror clone (bare, all refs)
//	│       └── repo.git.lock    # advisory lock file (empty)
//	└── gitlab.com/
//	    └── org/
//	        └── project.git/
//
// Mirror creation and refresh take the entry's lock exclusively; clone-outs
// take it shared, so many working copies can be created from one warmed
// mirror concurrently.
//
// # Usage
//
// Create a cache and clone through it:
//
//	cache, err := gitcache.New("~/.gitcache")
//	if err != nil {
//	    return err
//	}
//
//	err = cache.Clone(ctx, gitcache.CloneRequest{
//	    URL:    "https://github.com/my/repo.git",
//	    Commit: "f47ce7b5fbbb3aa43d33d2be1f6cd3746b13d5bf",
//	})
//
// Warm the cache ahead of demand, following submodules transitively:
//
//	err = cache.Prefetch(ctx, gitcache.PrefetchRequest{
//	    URLs:    []string{"https://github.com/my/repo.git"},
//	    Recurse: true,
//	    Jobs:    4,
//	})
//
// Local repositories (paths, file:// URLs) bypass the cache entirely and are
// cloned directly; see CloneRequest.Cached.
//
// All Git work is delegated to the git executable on PATH. The package only
// orchestrates invocations and interprets exit status and stdout; it never
// reimplements Git internals in-process.
package gitcache
