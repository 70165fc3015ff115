// FILE: lixenwraith/logpipe/rawio/lockcmd_posix.go
//go:build unix && !linux

package rawio

import "golang.org/x/sys/unix"

const (
	cmdSetLock     = unix.F_SETLK
	cmdSetLockWait = unix.F_SETLKW
)
