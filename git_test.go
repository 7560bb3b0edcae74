package gitcache

import (
	"context"
	goerrors "errors"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/jmgilman/go/exec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmgilman/go/gitcache/testutil"
)

func TestParseSubmoduleStatus(t *testing.T) {
	out := "-" + testutil.CommitA + " vendor/lib\n" +
		"-" + testutil.CommitB + " docs/theme\n"

	pins := parseSubmoduleStatus(out)

	assert.Equal(t, map[string]string{
		"vendor/lib": testutil.CommitA,
		"docs/theme": testutil.CommitB,
	}, pins)
}

func TestParseSubmoduleStatusSkipsMalformed(t *testing.T) {
	out := strings.Join([]string{
		"",
		"short line",
		"-" + strings.Repeat("z", 40) + " not/hex",
		"-" + testutil.CommitA + "_missing/separator",
		" " + testutil.CommitB + " plain/path",
	}, "\n")

	pins := parseSubmoduleStatus(out)

	assert.Equal(t, map[string]string{"plain/path": testutil.CommitB}, pins)
}

func TestGitRepoIsInitialized(t *testing.T) {
	const repoPath = "/cache/github.com/my/repo.git"

	t.Run("missing directory skips the probe", func(t *testing.T) {
		ex := testutil.NewExecutor(nil)
		repo := newGitRepo(repoPath, memfs.New(), ex)

		initialized, err := repo.isInitialized(context.Background())

		require.NoError(t, err)
		assert.False(t, initialized)
		assert.Empty(t, ex.Calls())
	})

	t.Run("bare repository answers dot", func(t *testing.T) {
		fs := memfs.New()
		require.NoError(t, fs.MkdirAll(repoPath, 0o755))
		ex := testutil.NewExecutor(func(dir string, args []string) (*exec.Result, error) {
			return &exec.Result{Stdout: ".\n"}, nil
		})
		repo := newGitRepo(repoPath, fs, ex)

		initialized, err := repo.isInitialized(context.Background())

		require.NoError(t, err)
		assert.True(t, initialized)

		calls := ex.Calls()
		require.Len(t, calls, 1)
		assert.Equal(t, []string{"git", "rev-parse", "--git-dir"}, calls[0].Args)
		assert.Equal(t, repoPath, calls[0].Dir)
	})

	t.Run("working copy answers .git", func(t *testing.T) {
		fs := memfs.New()
		require.NoError(t, fs.MkdirAll(repoPath, 0o755))
		ex := testutil.NewExecutor(func(dir string, args []string) (*exec.Result, error) {
			return &exec.Result{Stdout: ".git\n"}, nil
		})
		repo := newGitRepo(repoPath, fs, ex)

		initialized, err := repo.isInitialized(context.Background())

		require.NoError(t, err)
		assert.True(t, initialized)
	})

	t.Run("nested directory answers a longer path", func(t *testing.T) {
		fs := memfs.New()
		require.NoError(t, fs.MkdirAll(repoPath, 0o755))
		ex := testutil.NewExecutor(func(dir string, args []string) (*exec.Result, error) {
			return &exec.Result{Stdout: "/some/parent/.git\n"}, nil
		})
		repo := newGitRepo(repoPath, fs, ex)

		initialized, err := repo.isInitialized(context.Background())

		require.NoError(t, err)
		assert.False(t, initialized)
	})

	t.Run("failing probe means uninitialized", func(t *testing.T) {
		fs := memfs.New()
		require.NoError(t, fs.MkdirAll(repoPath, 0o755))
		ex := testutil.NewExecutor(func(dir string, args []string) (*exec.Result, error) {
			return nil, testutil.ExitError(args, 128, "fatal: not a git repository")
		})
		repo := newGitRepo(repoPath, fs, ex)

		initialized, err := repo.isInitialized(context.Background())

		require.NoError(t, err)
		assert.False(t, initialized)
	})

	t.Run("spawn failure propagates", func(t *testing.T) {
		fs := memfs.New()
		require.NoError(t, fs.MkdirAll(repoPath, 0o755))
		spawnErr := goerrors.New(`exec: "git": executable file not found in $PATH`)
		ex := testutil.NewExecutor(func(dir string, args []string) (*exec.Result, error) {
			return nil, spawnErr
		})
		repo := newGitRepo(repoPath, fs, ex)

		_, err := repo.isInitialized(context.Background())

		assert.ErrorIs(t, err, spawnErr)
	})
}

func TestGitRepoHasCommit(t *testing.T) {
	const repoPath = "/cache/github.com/my/repo.git"

	t.Run("present commit", func(t *testing.T) {
		ex := testutil.NewExecutor(nil)
		repo := newGitRepo(repoPath, memfs.New(), ex)

		found, err := repo.hasCommit(context.Background(), testutil.CommitA)

		require.NoError(t, err)
		assert.True(t, found)

		calls := ex.Calls()
		require.Len(t, calls, 1)
		assert.Equal(t, []string{"git", "cat-file", "-e", testutil.CommitA + "^{commit}"}, calls[0].Args)
	})

	t.Run("absent commit", func(t *testing.T) {
		ex := testutil.NewExecutor(func(dir string, args []string) (*exec.Result, error) {
			return nil, testutil.ExitError(args, 1, "")
		})
		repo := newGitRepo(repoPath, memfs.New(), ex)

		found, err := repo.hasCommit(context.Background(), testutil.CommitA)

		require.NoError(t, err)
		assert.False(t, found)
	})
}

func TestGitRepoCommandShapes(t *testing.T) {
	const repoPath = "/work/repo"
	ctx := context.Background()

	t.Run("sparse checkout", func(t *testing.T) {
		ex := testutil.NewExecutor(nil)
		repo := newGitRepo(repoPath, memfs.New(), ex)

		require.NoError(t, repo.sparseCheckout(ctx, []string{"src", "docs/api"}))

		calls := ex.Calls()
		require.Len(t, calls, 1)
		assert.Equal(t, []string{"git", "sparse-checkout", "set", "src", "docs/api"}, calls[0].Args)
	})

	t.Run("submodule init separates the path", func(t *testing.T) {
		ex := testutil.NewExecutor(nil)
		repo := newGitRepo(repoPath, memfs.New(), ex)

		require.NoError(t, repo.initSubmodule(ctx, "vendor/lib"))

		calls := ex.Calls()
		require.Len(t, calls, 1)
		assert.Equal(t, []string{"git", "submodule", "init", "--", "vendor/lib"}, calls[0].Args)
	})

	t.Run("remote rewrite", func(t *testing.T) {
		ex := testutil.NewExecutor(nil)
		repo := newGitRepo(repoPath, memfs.New(), ex)

		require.NoError(t, repo.setRemoteURL(ctx, "origin", "https://github.com/my/repo.git"))

		calls := ex.Calls()
		require.Len(t, calls, 1)
		assert.Equal(t, []string{"git", "remote", "set-url", "origin", "https://github.com/my/repo.git"}, calls[0].Args)
	})
}

func TestDirectClone(t *testing.T) {
	ex := testutil.NewExecutor(nil)

	err := directClone(context.Background(), ex, "/cache/github.com/my/repo.git", "repo", []string{"--depth", "1"})

	require.NoError(t, err)
	calls := ex.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t,
		[]string{"git", "clone", "--shared", "--depth", "1", "--", "/cache/github.com/my/repo.git", "repo"},
		calls[0].Args)
	assert.Empty(t, calls[0].Dir)
}
