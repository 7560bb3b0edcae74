package gitcache

import (
	"path/filepath"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/gofrs/flock"
)

// lockSuffix is appended to a cache entry path to form its sibling lock file.
const lockSuffix = ".lock"

// entryLock is the advisory lock guarding one cache entry. Writers (mirror
// create, update) take it exclusively; readers (clone-out, submodule
// discovery) take it shared, so many clone-outs can read one warmed mirror
// concurrently while mutation stays serialized.
//
// Each acquisition uses its own file descriptor, so locks exclude each other
// between goroutines of one process just like between processes. The lock
// file is created empty on first use and never read.
type entryLock struct {
	fl *flock.Flock
}

// newEntryLock prepares the lock for a cache entry, creating the entry's
// parent directory if needed. The lock file itself is created lazily on the
// first acquisition.
func newEntryLock(fs billy.Filesystem, entryPath string) (*entryLock, error) {
	lockPath := entryPath + lockSuffix

	if err := fs.MkdirAll(filepath.Dir(entryPath), 0o755); err != nil {
		return nil, lockError(err, lockPath)
	}

	return &entryLock{fl: flock.New(lockPath)}, nil
}

// acquireExclusive blocks until the write lock is held and returns a release
// function. The release function is safe to call more than once and must be
// called on every exit path.
func (l *entryLock) acquireExclusive() (func(), error) {
	if err := l.fl.Lock(); err != nil {
		return nil, lockError(err, l.fl.Path())
	}
	return l.releaseFunc(), nil
}

// acquireShared blocks until a read lock is held and returns a release
// function with the same contract as acquireExclusive.
func (l *entryLock) acquireShared() (func(), error) {
	if err := l.fl.RLock(); err != nil {
		return nil, lockError(err, l.fl.Path())
	}
	return l.releaseFunc(), nil
}

func (l *entryLock) releaseFunc() func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			_ = l.fl.Unlock()
		})
	}
}
