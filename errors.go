package gitcache

import (
	goerrors "errors"
	"strings"

	"github.com/jmgilman/go/errors"
	"github.com/jmgilman/go/exec"
)

// Error codes used by this package (aliases of the platform error codes,
// for readability at call sites).
const (
	// ErrCodeInvalidConfig indicates a request shape rejected before any I/O,
	// such as asking to cache a local repository.
	ErrCodeInvalidConfig = errors.CodeInvalidConfig

	// ErrCodeDestinationExists indicates the clone destination is occupied by
	// non-empty content.
	ErrCodeDestinationExists = errors.CodeAlreadyExists

	// ErrCodeCommitNotFound indicates a pinned commit is absent from the
	// mirror even after an update attempt.
	ErrCodeCommitNotFound = errors.CodeNotFound

	// ErrCodeGitFailed indicates the git subprocess reported failure.
	ErrCodeGitFailed = errors.CodeExecutionFailed

	// ErrCodeLock indicates the per-entry lock file could not be created or
	// acquired.
	ErrCodeLock = errors.CodeInternal
)

// configErrorf builds the invalid-configuration error used for request
// shapes that are rejected before any I/O happens.
func configErrorf(format string, args ...interface{}) error {
	return errors.Newf(errors.CodeInvalidConfig, format, args...)
}

// destinationExistsError mirrors git's own message for an occupied clone
// destination.
func destinationExistsError(target string) error {
	err := errors.Newf(errors.CodeAlreadyExists,
		"destination path %q already exists and is not an empty directory", target)
	return errors.WithContext(err, "path", target)
}

// commitNotFoundError reports a pinned commit that is still absent from the
// mirror after the single update attempt. It is distinct from a transport
// failure: the remote was reachable, its history just lacks the object.
func commitNotFoundError(url, commit string) error {
	err := errors.Newf(errors.CodeNotFound,
		"repository %s does not contain commit %s", url, commit)
	return errors.WithContextMap(err, map[string]interface{}{
		"url":    url,
		"commit": commit,
	})
}

// lockError wraps a failure to create or acquire a cache entry's lock file.
// No progress is possible without the lock, so callers treat this as fatal.
func lockError(err error, lockPath string) error {
	wrapped := errors.Wrapf(err, errors.CodeInternal, "cache entry lock %q", lockPath)
	return errors.WithContext(wrapped, "path", lockPath)
}

// gitOpError wraps a git subprocess failure, recording the operation and the
// repository (URL or path) it concerned. When the process ran and failed,
// its stderr refines the error code and the first stderr line is kept as
// context. The underlying exec error stays reachable through errors.As for
// callers that need the exit code or full output.
func gitOpError(err error, op, repository string) error {
	code := errors.CodeExecutionFailed
	ctx := map[string]interface{}{
		"op":         op,
		"repository": repository,
	}

	if execErr, ok := asExitError(err); ok {
		code = classifyGitStderr(execErr.Stderr)
		if line := firstLine(strings.TrimSpace(execErr.Stderr)); line != "" {
			ctx["stderr"] = line
		}
	}

	wrapped := errors.Wrapf(err, code, "%s %s", op, repository)
	return errors.WithContextMap(wrapped, ctx)
}

// classifyGitStderr maps well-known git failure messages to platform error
// codes. The subprocess boundary leaves stderr as the only classification
// signal; anything unrecognized stays a plain execution failure.
func classifyGitStderr(stderr string) errors.ErrorCode {
	msg := strings.ToLower(stderr)

	switch {
	case strings.Contains(msg, "could not resolve host"),
		strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "connection timed out"),
		strings.Contains(msg, "could not read from remote repository"),
		strings.Contains(msg, "early eof"):
		return errors.CodeNetwork

	case strings.Contains(msg, "repository not found"),
		strings.Contains(msg, "does not appear to be a git repository"):
		return errors.CodeNotFound

	case strings.Contains(msg, "authentication failed"),
		strings.Contains(msg, "could not read username"),
		strings.Contains(msg, "permission denied (publickey"):
		return errors.CodeUnauthorized
	}

	return errors.CodeExecutionFailed
}

func mirrorError(err error, url string) error {
	return gitOpError(err, "mirroring", url)
}

func updateError(err error, url string) error {
	return gitOpError(err, "updating", url)
}

func cloneError(err error, url string) error {
	return gitOpError(err, "cloning", url)
}

func checkoutError(err error, path, commit string) error {
	wrapped := errors.Wrapf(err, errors.CodeExecutionFailed,
		"checking out %s in %s", commit, path)
	return errors.WithContextMap(wrapped, map[string]interface{}{
		"op":     "checkout",
		"path":   path,
		"commit": commit,
	})
}

func sparseCheckoutError(err error, path string) error {
	wrapped := errors.Wrapf(err, errors.CodeExecutionFailed,
		"setting up sparse checkout in %s", path)
	return errors.WithContextMap(wrapped, map[string]interface{}{
		"op":   "sparse-checkout",
		"path": path,
	})
}

func submoduleInitError(err error, parentPath, subPath string) error {
	wrapped := errors.Wrapf(err, errors.CodeExecutionFailed,
		"initializing submodule %s in %s", subPath, parentPath)
	return errors.WithContextMap(wrapped, map[string]interface{}{
		"op":        "submodule-init",
		"path":      parentPath,
		"submodule": subPath,
	})
}

// asExitError reports whether err is a git invocation that ran to completion
// and exited nonzero, as opposed to a failure to run the binary at all.
// Probe commands (rev-parse, cat-file -e, show) use it to turn an expected
// nonzero exit into a graceful false/empty answer.
func asExitError(err error) (*exec.ExecError, bool) {
	var execErr *exec.ExecError
	if goerrors.As(err, &execErr) && execErr.ExitCode > 0 {
		return execErr, true
	}
	return nil, false
}

// firstLine trims a git message down to its first line for log fields.
func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}
