// FILE: lixenwraith/logpipe/rawio/lock_other.go
//go:build !unix

package rawio

import "os"

const lockSupported = false

func lockExclusive(*os.File) error { return ErrLockUnsupported }

func unlockFile(*os.File) error { return ErrLockUnsupported }

func writeLocked(*os.File, []byte) error { return ErrLockUnsupported }

// ProcessLock is unavailable on this platform
type ProcessLock struct{}

// TryExclusiveProcessLock always fails with ErrLockUnsupported
func TryExclusiveProcessLock(string) (*ProcessLock, bool, error) {
	return nil, false, ErrLockUnsupported
}

// AcquireSharedProcessLock always fails with ErrLockUnsupported
func AcquireSharedProcessLock(string) (*ProcessLock, error) {
	return nil, ErrLockUnsupported
}

// Downgrade always fails with ErrLockUnsupported
func (l *ProcessLock) Downgrade() error { return ErrLockUnsupported }

// Release is a no-op
func (l *ProcessLock) Release() error { return nil }
