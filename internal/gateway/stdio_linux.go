//go:build linux

package gateway

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

const devNull = "/dev/null"

// PrepareStdio moves the inherited socket off stdin and points fds 0, 1 and 2
// at /dev/null so stray writes never reach the peer. It returns the new
// session descriptor.
func PrepareStdio(stdinFD int) (int, error) {
	fd, err := dupSession(stdinFD)
	if err != nil {
		return -1, err
	}
	if err := redirect(devNull, 0, 1, 2); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

// dupSession duplicates fd above the stdio range with close-on-exec set.
func dupSession(fd int) (int, error) {
	dup, err := unix.FcntlInt(uintptr(fd), unix.F_DUPFD_CLOEXEC, 3)
	if err != nil {
		return -1, fmt.Errorf("gateway: dup session fd %d: %w", fd, err)
	}
	return dup, nil
}

func redirect(path string, targets ...int) error {
	null, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("gateway: open %s: %w", path, err)
	}
	keep := false
	for _, target := range targets {
		if target == null {
			keep = true
			continue
		}
		if err := unix.Dup3(null, target, 0); err != nil {
			unix.Close(null)
			return fmt.Errorf("gateway: redirect fd %d: %w", target, err)
		}
	}
	if !keep {
		unix.Close(null)
	}
	return nil
}

// PeerAddress returns the IP of the remote end of fd, or "unknown".
func PeerAddress(fd int) string {
	sa, err := unix.Getpeername(fd)
	if err != nil {
		return "unknown"
	}
	switch addr := sa.(type) {
	case *unix.SockaddrInet4:
		return net.IP(addr.Addr[:]).String()
	case *unix.SockaddrInet6:
		return net.IP(addr.Addr[:]).String()
	default:
		return "unknown"
	}
}

// Transport is the session socket as a pollable file with deadline support.
// It wraps the descriptor itself, so the session socket is duplicated only
// once, by PrepareStdio.
type Transport struct {
	*os.File
}

// OpenTransport switches fd to non-blocking mode so the runtime poller can
// enforce deadlines. The handoff restores blocking mode before exec.
func OpenTransport(fd int) (*Transport, error) {
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, fmt.Errorf("gateway: session fd %d: %w", fd, err)
	}
	file := os.NewFile(uintptr(fd), "svcgate-session")
	if file == nil {
		return nil, fmt.Errorf("gateway: invalid session fd %d", fd)
	}
	return &Transport{File: file}, nil
}
