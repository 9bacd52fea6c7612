package handoff

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/danmuck/svcgate/internal/binhash"
	"github.com/danmuck/svcgate/internal/protocol/session"
)

// RemoteServiceFlag introduces the session descriptor and log tag in the
// downstream argv.
const RemoteServiceFlag = "-remoteService"

var (
	ErrExec      = errors.New("handoff: exec failed")
	ErrEmptyArgv = errors.New("handoff: empty argv")
)

// Descriptor encodes the inherited socket and peer identity as
// "<fd>:<uid>:<pid>:<viewer-port>".
func Descriptor(fd int, c session.Credentials) string {
	return strconv.Itoa(fd) + ":" +
		strconv.FormatInt(int64(c.UID), 10) + ":" +
		strconv.FormatInt(int64(c.PID), 10) + ":" +
		strconv.FormatUint(uint64(c.ViewerPort), 10)
}

// BuildArgv appends the remote service marker, descriptor and log tag to the
// arguments forwarded by the peer. The input slice is not modified.
func BuildArgv(args []string, fd int, c session.Credentials, logTag string) []string {
	argv := make([]string, 0, len(args)+3)
	argv = append(argv, args...)
	return append(argv, RemoteServiceFlag, Descriptor(fd, c), logTag)
}

// Handoff replaces the current process with the resolved binary. Every
// syscall is a field so tests can observe the sequence without exec'ing.
type Handoff struct {
	Exec         func(path string, argv []string, env []string) error
	Chdir        func(dir string) error
	ClearCloexec func(fd int) error
	Environ      func() []string
	Logger       zerolog.Logger
}

func New(logger zerolog.Logger) *Handoff {
	return &Handoff{
		Exec:         unix.Exec,
		Chdir:        os.Chdir,
		ClearCloexec: ClearCloexec,
		Environ:      os.Environ,
		Logger:       logger,
	}
}

// WithLogger returns a copy of h that logs through logger.
func (h *Handoff) WithLogger(logger zerolog.Logger) *Handoff {
	c := *h
	c.Logger = logger
	return &c
}

// Run does not return on success.
func (h *Handoff) Run(binaryPath string, argv []string, fd int) error {
	if len(argv) == 0 {
		return ErrEmptyArgv
	}
	log := h.Logger.With().Str("binary", binaryPath).Int("fd", fd).Logger()

	if digest, err := binhash.HashFile(binaryPath); err == nil {
		log = log.With().Str("blake3", binhash.FormatDigest(digest)).Logger()
	} else {
		log.Debug().Err(err).Msg("binary digest unavailable")
	}

	if h.Chdir != nil {
		if err := h.Chdir(filepath.Dir(binaryPath)); err != nil {
			log.Warn().Err(err).Msg("chdir to binary directory failed")
		}
	}
	if h.ClearCloexec != nil {
		if err := h.ClearCloexec(fd); err != nil {
			return fmt.Errorf("%w: prepare fd %d: %w", ErrExec, fd, err)
		}
	}

	var env []string
	if h.Environ != nil {
		env = h.Environ()
	}
	log.Info().Strs("argv", argv).Msg("handing off connection")

	exec := h.Exec
	if exec == nil {
		exec = unix.Exec
	}
	if err := exec(binaryPath, argv, env); err != nil {
		log.Error().Err(err).Msg("exec failed")
		return fmt.Errorf("%w: %s: %w", ErrExec, binaryPath, err)
	}
	return nil
}

// ClearCloexec makes fd survive exec and puts it back in blocking mode for
// the downstream binary.
func ClearCloexec(fd int) error {
	flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0)
	if err != nil {
		return err
	}
	if _, err := unix.FcntlInt(uintptr(fd), unix.F_SETFD, flags&^unix.FD_CLOEXEC); err != nil {
		return err
	}
	return unix.SetNonblock(fd, false)
}
