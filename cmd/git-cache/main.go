// Command git-cache clones git repositories through a persistent local
// mirror cache.
//
// The first clone of a repository mirrors it into the cache directory;
// every later clone of the same URL is served from that mirror. It is a
// drop-in stand-in for `git clone` for the options it recognizes:
//
//	git-cache clone https://github.com/my/repo.git
//	git-cache clone --commit <hash> https://github.com/my/repo.git
//	git-cache prefetch -r -j 4 https://github.com/my/repo.git
//
// The cache directory comes from --cache-dir, the GIT_CACHE_DIR
// environment variable, or defaults to ~/.gitcache.
package main

import (
	"context"
	goerrors "errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"

	"github.com/jmgilman/go/gitcache"
)

// version is stamped at build time.
var version = "dev"

func main() {
	if err := run(os.Args, os.Environ()); err != nil {
		fmt.Fprintf(os.Stderr, "git-cache: %v\n", err)
		os.Exit(1)
	}
}

func run(args, env []string) error {
	environment := envMap(env)

	global := flag.NewFlagSet("git-cache", flag.ContinueOnError)
	global.SetInterspersed(false)
	global.Usage = usage
	cacheDir := global.StringP("cache-dir", "c",
		envOrDefault(environment, "GIT_CACHE_DIR", "~/.gitcache"),
		"git cache base directory")
	showVersion := global.BoolP("version", "V", false, "print the version and exit")

	if err := global.Parse(args[1:]); err != nil {
		if goerrors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	if *showVersion {
		fmt.Println("git-cache", version)
		return nil
	}

	rest := global.Args()
	if len(rest) == 0 {
		usage()
		return fmt.Errorf("a command is required")
	}

	baseDir, err := expandTilde(*cacheDir)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Logger()

	switch resolveCommand(rest[0]) {
	case "clone":
		return runClone(ctx, baseDir, logger, rest[1:])
	case "prefetch":
		return runPrefetch(ctx, baseDir, logger, rest[1:])
	case "init":
		// Kept for compatibility with the shell predecessor; the cache
		// needs no initialization step anymore.
		return nil
	default:
		usage()
		return fmt.Errorf("unknown command %q", rest[0])
	}
}

var commands = []string{"clone", "init", "prefetch"}

// resolveCommand accepts any unambiguous prefix of a command name.
func resolveCommand(name string) string {
	var match string
	for _, cmd := range commands {
		if cmd == name {
			return cmd
		}
		if !strings.HasPrefix(cmd, name) {
			continue
		}
		if match != "" {
			return ""
		}
		match = cmd
	}
	return match
}

// recurseAllValue marks a --recurse-submodules occurrence given without a
// pathspec, which means "all of them".
const recurseAllValue = "*"

func runClone(ctx context.Context, baseDir string, logger zerolog.Logger, args []string) error {
	fs := flag.NewFlagSet("clone", flag.ContinueOnError)
	fs.Usage = cloneUsage

	update := fs.BoolP("update", "U", false, "force update of a cached repository")
	commit := fs.String("commit", "", "check out a specific commit")
	sparseAdd := fs.StringArray("sparse-add", nil, "do a sparse checkout, keep PATH")
	recurse := fs.StringArray("recurse-submodules", nil, "recursively clone submodules")
	fs.Lookup("recurse-submodules").NoOptDefVal = recurseAllValue
	shallow := fs.Bool("shallow-submodules", false, "shallow-clone submodules")
	noShallow := fs.Bool("no-shallow-submodules", false, "don't shallow-clone submodules")
	jobs := fs.IntP("jobs", "j", 0, "the number of submodules cloned at the same time")

	registerPassThroughFlags(fs)

	if err := fs.Parse(args); err != nil {
		if goerrors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	positional := fs.Args()
	if len(positional) < 1 || len(positional) > 2 {
		fs.Usage()
		return fmt.Errorf("clone expects a repository and an optional target path")
	}

	branches, err := fs.GetStringArray("branch")
	if err != nil {
		return err
	}
	if len(branches) > 0 {
		if *commit != "" {
			return fmt.Errorf("--commit cannot be combined with --branch")
		}
		if len(*sparseAdd) > 0 {
			return fmt.Errorf("--sparse-add cannot be combined with --branch")
		}
	}

	extra, err := passThroughArgs(fs, *commit, *sparseAdd)
	if err != nil {
		return err
	}

	recurseAll, recursePaths := splitRecurseSpecs(*recurse)

	req := gitcache.CloneRequest{
		URL:               positional[0],
		Update:            *update,
		Commit:            *commit,
		SparsePaths:       *sparseAdd,
		RecurseSubmodules: recursePaths,
		RecurseAll:        recurseAll,
		ShallowSubmodules: *shallow && !*noShallow,
		Jobs:              *jobs,
		ExtraCloneArgs:    extra,
	}
	if len(positional) == 2 {
		req.TargetPath = positional[1]
	}

	cache, err := gitcache.New(baseDir, gitcache.WithLogger(logger))
	if err != nil {
		return err
	}

	return cache.Clone(ctx, req)
}

func runPrefetch(ctx context.Context, baseDir string, logger zerolog.Logger, args []string) error {
	fs := flag.NewFlagSet("prefetch", flag.ContinueOnError)
	fs.Usage = prefetchUsage

	update := fs.BoolP("update", "U", false, "force update of already cached repo(s)")
	recurse := fs.BoolP("recurse-submodules", "r", false, "recursively prefetch submodules")
	jobs := fs.IntP("jobs", "j", 0, "the number of repositories fetched at the same time")

	if err := fs.Parse(args); err != nil {
		if goerrors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	urls := fs.Args()
	if len(urls) == 0 {
		fs.Usage()
		return fmt.Errorf("prefetch expects at least one repository")
	}

	cache, err := gitcache.New(baseDir, gitcache.WithLogger(logger))
	if err != nil {
		return err
	}

	return cache.Prefetch(ctx, gitcache.PrefetchRequest{
		URLs:    urls,
		Update:  *update,
		Recurse: *recurse,
		Jobs:    *jobs,
	})
}

// splitRecurseSpecs separates --recurse-submodules occurrences into the
// "clone everything" marker and explicit submodule paths.
func splitRecurseSpecs(specs []string) (all bool, paths []string) {
	for _, spec := range specs {
		if spec == recurseAllValue {
			all = true
			continue
		}
		paths = append(paths, spec)
	}
	return all, paths
}

// The regular `git clone` options below are accepted and forwarded to the
// working copy clone. They are hidden from the flag listing; the clone usage
// text names them the way git's own synopsis does.
var passBoolFlags = []struct{ name, short string }{
	{name: "local", short: "l"},
	{name: "no-checkout", short: "n"},
	{name: "quiet", short: "q"},
	{name: "shared", short: "s"},
	{name: "verbose", short: "v"},
	{name: "also-filter-submodules"},
	{name: "bare"},
	{name: "dissociate"},
	{name: "mirror"},
	{name: "no-hardlinks"},
	{name: "no-reject-shallow"},
	{name: "no-remote-submodules"},
	{name: "no-single-branch"},
	{name: "no-tags"},
	{name: "reject-shallow"},
	{name: "remote-submodules"},
	{name: "single-branch"},
	{name: "sparse"},
}

var passValueFlags = []struct{ name, short string }{
	{name: "branch", short: "b"},
	{name: "bundle-uri"},
	{name: "config", short: "c"},
	{name: "depth"},
	{name: "filter"},
	{name: "origin", short: "o"},
	{name: "reference"},
	{name: "reference-if-able"},
	{name: "separate-git-dir"},
	{name: "shallow-exclude"},
	{name: "shallow-since"},
	{name: "template"},
	{name: "upload-pack", short: "u"},
}

func registerPassThroughFlags(fs *flag.FlagSet) {
	for _, f := range passBoolFlags {
		if f.short != "" {
			fs.BoolP(f.name, f.short, false, "")
		} else {
			fs.Bool(f.name, false, "")
		}
		_ = fs.MarkHidden(f.name)
	}
	for _, f := range passValueFlags {
		if f.short != "" {
			fs.StringArrayP(f.name, f.short, nil, "")
		} else {
			fs.StringArray(f.name, nil, "")
		}
		_ = fs.MarkHidden(f.name)
	}
}

// passThroughArgs rebuilds the `git clone` arguments to forward, in a fixed
// order. A pinned commit forces --no-checkout since the checkout happens
// separately at the pinned revision, and sparse paths force --sparse.
func passThroughArgs(fs *flag.FlagSet, commit string, sparsePaths []string) ([]string, error) {
	var out []string

	for _, f := range passBoolFlags {
		set, err := fs.GetBool(f.name)
		if err != nil {
			return nil, err
		}
		switch f.name {
		case "no-checkout":
			set = set || commit != ""
		case "sparse":
			set = set || len(sparsePaths) > 0
		}
		if set {
			out = append(out, "--"+f.name)
		}
	}

	for _, f := range passValueFlags {
		values, err := fs.GetStringArray(f.name)
		if err != nil {
			return nil, err
		}
		for _, v := range values {
			out = append(out, "--"+f.name, v)
		}
	}

	return out, nil
}

// expandTilde resolves a leading "~" against the user's home directory. The
// default cache dir is written with one, so the binary handles this single
// shell convenience itself.
func expandTilde(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expanding %q: %w", path, err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

func envMap(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		if key, value, ok := strings.Cut(kv, "="); ok {
			env[key] = value
		}
	}
	return env
}

func envOrDefault(env map[string]string, key, fallback string) string {
	if v, ok := env[key]; ok && v != "" {
		return v
	}
	return fallback
}

func usage() {
	fmt.Fprintf(os.Stderr, `git-cache - clone git repositories through a persistent local mirror cache

Usage:
  git-cache [options] <command> [args]

Commands:
  clone      clone a repository
  prefetch   pre-fetch repositories into the cache

Options:
  -c, --cache-dir <dir>   git cache base directory
                          (env GIT_CACHE_DIR, default ~/.gitcache)
      --version           print the version and exit
`)
}

func cloneUsage() {
	fmt.Fprintf(os.Stderr, `Usage:
  git-cache clone [options] <repository> [<target path>]

Options:
  -U, --update                      force update of a cached repository
      --commit <HASH>               check out a specific commit
      --sparse-add <PATH>           do a sparse checkout, keep PATH
      --recurse-submodules[=<pathspec>]
                                    recursively clone submodules
      --shallow-submodules          shallow-clone submodules
  -j, --jobs <n>                    the number of submodules cloned at
                                    the same time

These regular "git clone" options are passed through:

  [--template=<template-directory>]
  [-l] [-s] [--no-hardlinks] [-q] [-n] [--bare] [--mirror]
  [-o <name>] [-b <name>] [-u <upload-pack>] [--reference <repository>]
  [--dissociate] [--separate-git-dir <git-dir>]
  [--depth <depth>] [--[no-]single-branch] [--no-tags]
  [--recurse-submodules[=<pathspec>]] [--[no-]shallow-submodules]
  [--[no-]remote-submodules] [--jobs <n>] [--sparse] [--[no-]reject-shallow]
  [--filter=<filter> [--also-filter-submodules]]
`)
}

func prefetchUsage() {
	fmt.Fprintf(os.Stderr, `Usage:
  git-cache prefetch [options] <repository>...

Options:
  -U, --update                force update of already cached repo(s)
  -r, --recurse-submodules    recursively prefetch submodules
  -j, --jobs <n>              the number of repositories fetched at the
                              same time
`)
}
