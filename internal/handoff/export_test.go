package handoff

import "golang.org/x/sys/unix"

const fdCloexec = unix.FD_CLOEXEC

func fcntlFlags(fd int) (int, error) {
	return unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0)
}
