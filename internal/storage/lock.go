package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/pkg/errors"
)

// LockFileName is the write-lock marker inside the store's data directory.
const LockFileName = "oya.lock"

// AlreadyRunningError means another process holds the store's exclusive
// write lock. It names the lock location and suggests remediation instead of
// surfacing the raw flock failure.
type AlreadyRunningError struct {
	Path     string
	OwnerPID int
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf(
		"store already in use by pid %d (lock file %s); stop the other instance or remove the lock if its owner is gone",
		e.OwnerPID, e.Path)
}

// fileLock holds the exclusive write lock for a data directory. The marker
// file persists across restarts; staleness is detected by flock succeeding
// despite the marker being present, in which case the pid is rewritten.
type fileLock struct {
	path string
	f    *os.File
}

func acquireLock(dir string) (*fileLock, error) {
	path := filepath.Join(dir, LockFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "open lock file %s", path)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		owner := readOwnerPID(f)
		_ = f.Close()
		if err == syscall.EWOULDBLOCK {
			return nil, &AlreadyRunningError{Path: path, OwnerPID: owner}
		}
		return nil, errors.Wrapf(err, "flock %s", path)
	}
	// Lock acquired: any pre-existing marker was stale. Claim it.
	if err := f.Truncate(0); err != nil {
		_ = f.Close()
		return nil, errors.Wrapf(err, "truncate lock file %s", path)
	}
	if _, err := f.WriteAt([]byte(strconv.Itoa(os.Getpid())), 0); err != nil {
		_ = f.Close()
		return nil, errors.Wrapf(err, "write lock file %s", path)
	}
	return &fileLock{path: path, f: f}, nil
}

func readOwnerPID(f *os.File) int {
	buf := make([]byte, 32)
	n, err := f.ReadAt(buf, 0)
	if err != nil && n == 0 {
		return 0
	}
	pid, _ := strconv.Atoi(string(buf[:n]))
	return pid
}

func (l *fileLock) release() error {
	if l.f == nil {
		return nil
	}
	if err := syscall.Flock(int(l.f.Fd()), syscall.LOCK_UN); err != nil {
		_ = l.f.Close()
		return errors.Wrapf(err, "unlock %s", l.path)
	}
	err := l.f.Close()
	l.f = nil
	// The marker stays on disk; a future open proves staleness via flock.
	return err
}
