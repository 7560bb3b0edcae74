package gitcache

import (
	"github.com/go-git/go-billy/v5"
	"github.com/jmgilman/go/exec"
	"github.com/rs/zerolog"
)

// Option configures a Cache at construction time.
type Option func(*cacheOptions)

type cacheOptions struct {
	fs       billy.Filesystem
	executor exec.Executor
	logger   zerolog.Logger
}

// WithFilesystem sets the billy filesystem used for the cache's own
// filesystem work (directory creation, destination validation, .gitmodules
// reads). Defaults to the local filesystem.
//
// Lock files and git subprocesses always operate on the real filesystem, so
// a memory filesystem only suits tests that never reach those layers.
//
// Example:
//
//	cache, err := gitcache.New("/cache/path",
//	    gitcache.WithFilesystem(memfs.New()))
func WithFilesystem(fs billy.Filesystem) Option {
	return func(opts *cacheOptions) {
		opts.fs = fs
	}
}

// WithExecutor sets the executor used to run git. The executor is cloned
// per invocation and never run directly, so one prototype safely serves all
// concurrent workers. Primarily useful for injecting a scripted executor in
// tests.
//
// Example:
//
//	cache, err := gitcache.New("/cache/path",
//	    gitcache.WithExecutor(fake))
func WithExecutor(executor exec.Executor) Option {
	return func(opts *cacheOptions) {
		opts.executor = executor
	}
}

// WithLogger sets the logger for progress messages and skipped-submodule
// warnings. Defaults to a no-op logger.
//
// Example:
//
//	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
//	cache, err := gitcache.New("/cache/path",
//	    gitcache.WithLogger(logger))
func WithLogger(logger zerolog.Logger) Option {
	return func(opts *cacheOptions) {
		opts.logger = logger
	}
}
