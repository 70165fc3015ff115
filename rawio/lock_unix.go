// FILE: lixenwraith/logpipe/rawio/lock_unix.go
//go:build unix

package rawio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
)

const lockSupported = true

func flock(f *os.File, how int) error {
	for {
		err := unix.Flock(int(f.Fd()), how)
		if err != unix.EINTR {
			return err
		}
	}
}

func lockExclusive(f *os.File) error {
	return flock(f, unix.LOCK_EX)
}

func unlockFile(f *os.File) error {
	return flock(f, unix.LOCK_UN)
}

// writeLocked appends data while holding an exclusive flock on f. flock locks
// belong to the open file description, so two handles in the same process
// exclude each other just like two processes do.
func writeLocked(f *os.File, data []byte) error {
	if err := lockExclusive(f); err != nil {
		return fmt.Errorf("rawio: failed to lock '%s': %w", f.Name(), err)
	}
	_, err := f.Seek(0, io.SeekEnd)
	if err == nil {
		_, err = f.Write(data)
	}
	return multierr.Append(err, unlockFile(f))
}

// ProcessLock is a whole-file fcntl record lock held through its own
// descriptor. Record locks do not interact with the flock locks taken around
// writes. On Linux they are open file description locks, elsewhere classic
// POSIX locks owned by the process.
type ProcessLock struct {
	f *os.File
}

func openLockTarget(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
}

func setLock(f *os.File, typ int16, wait bool) error {
	lk := unix.Flock_t{Type: typ, Whence: io.SeekStart}
	cmd := cmdSetLock
	if wait {
		cmd = cmdSetLockWait
	}
	for {
		err := unix.FcntlFlock(f.Fd(), cmd, &lk)
		if err != unix.EINTR {
			return err
		}
	}
}

func unsupported(err error) bool {
	return errors.Is(err, unix.ENOLCK) || errors.Is(err, unix.EINVAL) ||
		errors.Is(err, unix.EOPNOTSUPP) || errors.Is(err, unix.ENOSYS)
}

// TryExclusiveProcessLock takes a non-blocking exclusive lock on path. It
// reports false without error if another process holds any lock on the file.
func TryExclusiveProcessLock(path string) (*ProcessLock, bool, error) {
	f, err := openLockTarget(path)
	if err != nil {
		return nil, false, err
	}
	err = setLock(f, unix.F_WRLCK, false)
	switch {
	case err == nil:
		return &ProcessLock{f: f}, true, nil
	case errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EACCES):
		_ = f.Close()
		return nil, false, nil
	case unsupported(err):
		_ = f.Close()
		return nil, false, fmt.Errorf("%w: %v", ErrLockUnsupported, err)
	default:
		_ = f.Close()
		return nil, false, err
	}
}

// AcquireSharedProcessLock takes a shared lock on path, waiting for a peer's
// exclusive lock to be released or downgraded
func AcquireSharedProcessLock(path string) (*ProcessLock, error) {
	f, err := openLockTarget(path)
	if err != nil {
		return nil, err
	}
	if err := setLock(f, unix.F_RDLCK, true); err != nil {
		_ = f.Close()
		if unsupported(err) {
			return nil, fmt.Errorf("%w: %v", ErrLockUnsupported, err)
		}
		return nil, err
	}
	return &ProcessLock{f: f}, nil
}

// Downgrade atomically converts an exclusive lock into a shared one
func (l *ProcessLock) Downgrade() error {
	return setLock(l.f, unix.F_RDLCK, true)
}

// Release unlocks and closes the lock descriptor
func (l *ProcessLock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	err := setLock(l.f, unix.F_UNLCK, false)
	err = multierr.Append(err, l.f.Close())
	l.f = nil
	return err
}
