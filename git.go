package gitcache

import (
	"bufio"
	"context"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/jmgilman/go/exec"
)

// gitRepo drives the git executable against one repository directory,
// working copy or bare. Every invocation is scoped to the repository path
// through the executor's working directory, the moral equivalent of
// `git -C <path>`.
type gitRepo struct {
	path     string
	fs       billy.Filesystem
	executor exec.Executor
}

func newGitRepo(path string, fs billy.Filesystem, executor exec.Executor) *gitRepo {
	return &gitRepo{path: path, fs: fs, executor: executor}
}

// git returns a fresh command wrapper scoped to the repository path. The
// prototype executor is cloned per invocation; parallel workers must never
// share mutable command state.
func (r *gitRepo) git(ctx context.Context) exec.Executor {
	return exec.NewWrapper(r.executor.Clone(), "git").WithDir(r.path).WithContext(ctx)
}

// isInitialized reports whether the repository path is the top level of a
// git repository. `rev-parse --git-dir` answers "." for a bare repository
// and ".git" for a working copy when run at the top; any other answer (a
// nested path, or a failing probe) means the directory is absent, empty, or
// foreign.
func (r *gitRepo) isInitialized(ctx context.Context) (bool, error) {
	fi, err := r.fs.Stat(r.path)
	if err != nil || !fi.IsDir() {
		return false, nil
	}

	res, err := r.git(ctx).Run("rev-parse", "--git-dir")
	if err != nil {
		if _, ok := asExitError(err); ok {
			return false, nil
		}
		return false, err
	}

	gitDir := strings.TrimSpace(res.Stdout)
	return gitDir == "." || gitDir == ".git", nil
}

// hasCommit reports whether rev resolves to an existing commit object. The
// ^{commit} peel makes tags pointing at commits count and anything else
// (blobs, trees, unknown revs) answer false. A nonzero exit is the graceful
// "no" answer, not an error.
func (r *gitRepo) hasCommit(ctx context.Context, rev string) (bool, error) {
	_, err := r.git(ctx).Run("cat-file", "-e", rev+"^{commit}")
	if err != nil {
		if _, ok := asExitError(err); ok {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *gitRepo) remoteUpdate(ctx context.Context) error {
	_, err := r.git(ctx).Run("remote", "update")
	return err
}

func (r *gitRepo) setRemoteURL(ctx context.Context, remote, url string) error {
	_, err := r.git(ctx).Run("remote", "set-url", remote, url)
	return err
}

func (r *gitRepo) setConfig(ctx context.Context, key, value string) error {
	_, err := r.git(ctx).Run("config", key, value)
	return err
}

func (r *gitRepo) checkout(ctx context.Context, rev string) error {
	_, err := r.git(ctx).Run("checkout", rev)
	return err
}

func (r *gitRepo) sparseCheckout(ctx context.Context, paths []string) error {
	args := append([]string{"sparse-checkout", "set"}, paths...)
	_, err := r.git(ctx).Run(args...)
	return err
}

func (r *gitRepo) initSubmodule(ctx context.Context, path string) error {
	_, err := r.git(ctx).Run("submodule", "init", "--", path)
	return err
}

// show returns the raw contents of a rev:path object, such as
// "HEAD:.gitmodules". Callers decide whether a nonzero exit (object absent)
// is an error.
func (r *gitRepo) show(ctx context.Context, spec string) ([]byte, error) {
	res, err := r.git(ctx).Run("show", spec)
	if err != nil {
		return nil, err
	}
	return []byte(res.Stdout), nil
}

// submoduleStatus returns the pinned commit per submodule path for the
// checked-out tree, from `git submodule status`. Each line is fixed-width:
// one status character, a 40-hex commit, a space, then the path:
//
//	-f47ce7b5fbbb3aa43d33d2be1f6cd3746b13d5bf some/path
//
// Lines that do not match the format are skipped.
func (r *gitRepo) submoduleStatus(ctx context.Context) (map[string]string, error) {
	res, err := r.git(ctx).Run("submodule", "status")
	if err != nil {
		return nil, err
	}

	return parseSubmoduleStatus(res.Stdout), nil
}

func parseSubmoduleStatus(out string) map[string]string {
	pins := make(map[string]string)

	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) < 43 || line[41] != ' ' {
			continue
		}
		commit := line[1:41]
		if !plumbing.IsHash(commit) {
			continue
		}
		pins[line[42:]] = commit
	}

	return pins
}

// gitCommand returns a git wrapper that is not scoped to any repository,
// for invocations that name their operands explicitly (clone).
func gitCommand(ctx context.Context, executor exec.Executor) exec.Executor {
	return exec.NewWrapper(executor.Clone(), "git").WithContext(ctx)
}

// directClone runs `git clone --shared` from src into target, threading any
// pass-through arguments between the flags and the terminating "--". The
// --shared flag makes clones from a local mirror share object storage; git
// ignores it for genuinely remote sources.
func directClone(ctx context.Context, executor exec.Executor, src, target string, passthrough []string) error {
	args := []string{"clone", "--shared"}
	args = append(args, passthrough...)
	args = append(args, "--", src, target)

	_, err := gitCommand(ctx, executor).Run(args...)
	return err
}
