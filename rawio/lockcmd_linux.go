// FILE: lixenwraith/logpipe/rawio/lockcmd_linux.go
//go:build linux

package rawio

import "golang.org/x/sys/unix"

const (
	cmdSetLock     = unix.F_OFD_SETLK
	cmdSetLockWait = unix.F_OFD_SETLKW
)
