package gitcache

// CloneRequest describes one clone operation. The zero value of every
// optional field means "unset"; derived defaults are computed once when the
// request is resolved, before any I/O.
type CloneRequest struct {
	// URL is the repository to clone. Required.
	URL string

	// TargetPath is the destination directory. If empty, the final path
	// segment of URL is used, the same way git derives it. The resolved
	// path must not exist or must be an empty directory.
	TargetPath string

	// Cached selects whether the clone goes through the mirror cache.
	// When nil, the default is computed from the URL: remote URLs are
	// cached, local paths and file:// URLs are cloned directly. Explicitly
	// requesting a cached clone of a local repository is rejected.
	Cached *bool

	// Update forces a refresh of an already-cached mirror before cloning.
	Update bool

	// Commit pins the revision to check out after cloning. If the mirror
	// lacks the commit it is updated once; a commit that is still missing
	// afterwards fails the whole request.
	Commit string

	// SparsePaths restricts the working tree to the given paths via
	// sparse checkout.
	SparsePaths []string

	// RecurseSubmodules clones the submodules whose paths match the given
	// list. RecurseAll clones every submodule and ignores the filter.
	RecurseSubmodules []string
	RecurseAll        bool

	// ShallowSubmodules is propagated to recursive submodule clones.
	ShallowSubmodules bool

	// Jobs bounds how many submodules are cloned concurrently. Zero means 1.
	Jobs int

	// ExtraCloneArgs are passed through to `git clone` verbatim, between
	// the cache's own flags and the source/destination operands.
	ExtraCloneArgs []string
}

// PrefetchRequest describes a bulk cache warm-up. Prefetching mirrors (or
// updates) every URL without creating working copies.
type PrefetchRequest struct {
	// URLs seed the prefetch queue. Every URL must be remote.
	URLs []string

	// Update refreshes mirrors that already exist in the cache.
	Update bool

	// Recurse follows each mirrored repository's submodule URLs
	// transitively, feeding them back into the queue.
	Recurse bool

	// Jobs bounds how many repositories are fetched concurrently.
	// Zero means 1.
	Jobs int
}

// SubmoduleSpec is one resolved submodule of a checked-out repository:
// a declaration from .gitmodules joined with the commit pin recorded in the
// parent tree. Declarations without a usable pin are dropped during
// resolution and never reach this type.
type SubmoduleSpec struct {
	// Path is the submodule's mount path, relative to the parent
	// repository root and unique within it.
	Path string

	// URL is the submodule's remote.
	URL string

	// Commit is the 40-hex commit the parent tree pins the submodule to.
	Commit string

	// Branch is the declared tracking branch, if any. Informational only;
	// clones always check out Commit.
	Branch string
}

// prefetchUnit is a control message for the prefetch coordinator: either a
// newly discovered URL to enqueue, or one unit of dispatched work reporting
// completion.
type prefetchUnit struct {
	url  string
	done bool
}
