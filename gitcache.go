package gitcache

import (
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/jmgilman/go/errors"
	"github.com/jmgilman/go/exec"
	"github.com/rs/zerolog"
)

// Cache is a persistent mirror cache of Git repositories rooted at a base
// directory. A Cache is safe for concurrent use; all cross-process and
// cross-goroutine coordination happens through per-entry lock files.
type Cache struct {
	baseDir  string
	fs       billy.Filesystem
	executor exec.Executor
	logger   zerolog.Logger
}

// New creates a cache rooted at baseDir, creating the directory if needed.
// Relative paths are resolved against the working directory once, here, so
// the cache's view and the git subprocesses' view of the layout agree.
//
// By default New uses the local filesystem, a stock executor for git, and a
// no-op logger. See the Option functions for overriding each.
//
// Example:
//
//	cache, err := gitcache.New("~/.gitcache")
//
// Note that tilde expansion is the caller's concern.
func New(baseDir string, opts ...Option) (*Cache, error) {
	options := &cacheOptions{
		fs:       osfs.New("/"),
		executor: exec.New(),
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(options)
	}

	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeInvalidConfig,
			"resolving cache base directory %q", baseDir)
	}

	if err := options.fs.MkdirAll(abs, 0o755); err != nil {
		return nil, errors.Wrapf(err, errors.CodeInternal,
			"creating cache base directory %q", abs)
	}

	return &Cache{
		baseDir:  abs,
		fs:       options.fs,
		executor: options.executor,
		logger:   options.logger,
	}, nil
}

// BaseDir returns the absolute cache base directory.
func (c *Cache) BaseDir() string {
	return c.baseDir
}
