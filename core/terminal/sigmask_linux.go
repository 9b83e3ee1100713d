package terminal

import (
	"runtime"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	sigBlock   = 0
	sigSetmask = 2
	sigsetSize = 8
)

// withSignalBlocked runs fn on a locked OS thread with sig blocked.
func withSignalBlocked(sig syscall.Signal, fn func() error) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	set := uint64(1) << (uint(sig) - 1)
	var old uint64
	_, _, errno := unix.RawSyscall6(unix.SYS_RT_SIGPROCMASK, sigBlock,
		uintptr(unsafe.Pointer(&set)), uintptr(unsafe.Pointer(&old)), sigsetSize, 0, 0)
	if errno != 0 {
		return errno
	}
	defer unix.RawSyscall6(unix.SYS_RT_SIGPROCMASK, sigSetmask,
		uintptr(unsafe.Pointer(&old)), 0, sigsetSize, 0, 0)

	return fn()
}
