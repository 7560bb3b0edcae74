// Package testutil provides a scripted git executor and fixtures for testing
// the cache without a real git binary or network access.
package testutil

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/jmgilman/go/exec"
)

// Fixture commit ids. Any valid 40-hex string works; these just make test
// scripts readable.
const (
	CommitA = "f47ce7b5fbbb3aa43d33d2be1f6cd3746b13d5bf"
	CommitB = "9ec4b7a2f0c1d8e3a5b6c7d8e9f0a1b2c3d4e5f6"
)

// Call is one recorded git invocation: the working directory it was scoped
// to (empty for unscoped calls) and the full argv including the leading
// "git".
type Call struct {
	Dir  string
	Args []string
}

// Handler scripts the outcome of one invocation. Handlers run outside the
// recorder lock, so stateful handlers used from concurrent workers must do
// their own synchronization.
type Handler func(dir string, args []string) (*exec.Result, error)

// Executor is a scripted exec.Executor. Every Run is recorded and routed to
// the handler; a nil handler answers every call with a clean exit and empty
// output. Clones share one recorder, so calls made through cloned copies
// all land in the same Calls list. Safe for concurrent use.
type Executor struct {
	core *executorCore
	dir  string
}

type executorCore struct {
	mu      sync.Mutex
	handler Handler
	calls   []Call
}

// NewExecutor creates a scripted executor routing every invocation through
// handler.
func NewExecutor(handler Handler) *Executor {
	return &Executor{core: &executorCore{handler: handler}}
}

// Calls returns a snapshot of every recorded invocation, in dispatch order.
func (e *Executor) Calls() []Call {
	e.core.mu.Lock()
	defer e.core.mu.Unlock()
	out := make([]Call, len(e.core.calls))
	copy(out, e.core.calls)
	return out
}

// CallsMatching returns the recorded invocations whose argv starts with the
// given prefix ("git" included).
func (e *Executor) CallsMatching(prefix ...string) []Call {
	var out []Call
	for _, call := range e.Calls() {
		if hasPrefix(call.Args, prefix) {
			out = append(out, call)
		}
	}
	return out
}

func hasPrefix(args, prefix []string) bool {
	if len(args) < len(prefix) {
		return false
	}
	for i, p := range prefix {
		if args[i] != p {
			return false
		}
	}
	return true
}

// Run records the invocation and delegates to the handler.
func (e *Executor) Run(args ...string) (*exec.Result, error) {
	e.core.mu.Lock()
	recorded := make([]string, len(args))
	copy(recorded, args)
	e.core.calls = append(e.core.calls, Call{Dir: e.dir, Args: recorded})
	handler := e.core.handler
	e.core.mu.Unlock()

	if handler == nil {
		return &exec.Result{ExitCode: 0}, nil
	}
	res, err := handler(e.dir, args)
	if res == nil {
		res = &exec.Result{}
	}
	return res, err
}

// Clone returns a copy sharing the recorder and handler. Configuration
// applied to the copy never leaks back.
func (e *Executor) Clone() exec.Executor {
	clone := *e
	return &clone
}

// WithDir scopes subsequent runs to dir.
func (e *Executor) WithDir(dir string) exec.Executor {
	e.dir = dir
	return e
}

// The remaining Executor configuration methods are accepted and ignored;
// scripted outcomes do not depend on them.

func (e *Executor) WithEnv(map[string]string) exec.Executor { return e }

func (e *Executor) WithContext(context.Context) exec.Executor { return e }

func (e *Executor) WithDisableColors() exec.Executor { return e }

func (e *Executor) WithTimeout(string) exec.Executor { return e }

func (e *Executor) WithInheritEnv() exec.Executor { return e }

func (e *Executor) WithStdout(io.Writer) exec.Executor { return e }

func (e *Executor) WithStderr(io.Writer) exec.Executor { return e }

func (e *Executor) WithPassthrough() exec.Executor { return e }

// ExitError builds the error a git invocation produces when the process
// runs and exits nonzero. args is the full argv as passed to the handler.
func ExitError(args []string, code int, stderr string) error {
	argv := make([]string, len(args))
	copy(argv, args)
	return &exec.ExecError{
		Command:  argv,
		ExitCode: code,
		Stderr:   stderr,
		Err:      fmt.Errorf("exit status %d", code),
	}
}

// GitmodulesSection renders one .gitmodules submodule section.
func GitmodulesSection(name, path, url string) string {
	return fmt.Sprintf("[submodule %q]\n\tpath = %s\n\turl = %s\n", name, path, url)
}

// SubmoduleStatusLine renders one line of `git submodule status` output for
// a submodule that is recorded but not initialized, the state a fresh clone
// reports.
func SubmoduleStatusLine(commit, path string) string {
	return "-" + commit + " " + path
}
