package gateway

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/svcgate/internal/auth"
	"github.com/danmuck/svcgate/internal/handoff"
	"github.com/danmuck/svcgate/internal/observability"
	"github.com/danmuck/svcgate/internal/protocol"
	"github.com/danmuck/svcgate/internal/protocol/frame"
	"github.com/danmuck/svcgate/internal/protocol/session"
	"github.com/danmuck/svcgate/internal/resolve"
)

// ExitCode is the process status reported back to inetd.
type ExitCode int

const (
	// ExitOK covers every failure the peer caused; inetd treats them as benign.
	ExitOK      ExitCode = 0
	ExitFailure ExitCode = 1
)

// Service runs one handshake on an inherited connection and hands it off.
type Service struct {
	BasePath        string
	Session         session.Config
	Verifier        auth.Verifier
	Lister          resolve.Lister
	Handoff         *handoff.Handoff
	Metrics         *observability.Metrics
	MetricsTextfile string
	Logger          zerolog.Logger
	Now             func() time.Time
	Nonce           func() string
}

// Serve drives the session over conn. fd is the descriptor number the
// downstream binary inherits. On a successful handoff Serve does not return.
func (s *Service) Serve(ctx context.Context, conn io.ReadWriter, fd int, peer string) ExitCode {
	now := s.Now
	if now == nil {
		now = time.Now
	}
	start := now()
	logger := s.Logger.With().Str("base", s.BasePath).Logger()

	sess := session.New(frame.NewConn(conn, s.Session.FrameLimits()), peer, session.Options{
		Config:   s.Session,
		Verifier: s.Verifier,
		Resolve:  s.resolver(),
		Metrics:  s.Metrics,
		Logger:   logger,
		Now:      now,
		Nonce:    s.Nonce,
	})

	out, err := sess.Run(ctx)
	logger = sess.Logger()
	if err != nil {
		s.finish(logger, observability.OutcomeTerminated, protocol.Kind(err), sess.FailedAt(), now().Sub(start))
		return exitCodeFor(err)
	}

	argv := handoff.BuildArgv(out.Args, fd, out.Credentials, out.LogTag)
	if s.Handoff == nil {
		s.finish(logger, observability.OutcomeTerminated, protocol.KindInternal, session.Handoff, now().Sub(start))
		logger.Error().Msg("no handoff configured")
		return ExitFailure
	}
	s.finish(logger, observability.OutcomeExecAttempt, protocol.KindNone, session.Handoff, now().Sub(start))
	if err := s.Handoff.WithLogger(logger).Run(out.Binary.Path, argv, fd); err != nil {
		logger.Error().Err(err).Str("binary", out.Binary.Path).Msg("handoff failed")
		s.finish(logger, observability.OutcomeExecFailed, protocol.Kind(err), session.Handoff, now().Sub(start))
		return ExitFailure
	}
	return ExitOK
}

func (s *Service) resolver() session.Resolver {
	return func(major int32) (resolve.Candidate, error) {
		return resolve.Resolve(s.Lister, s.BasePath, major)
	}
}

// finish logs and exports the handshake summary. The textfile is written
// before exec since nothing runs after a successful handoff.
func (s *Service) finish(logger zerolog.Logger, outcome, kind string, state session.State, elapsed time.Duration) {
	observability.LogHandshake(logger, outcome, kind, state.String(), elapsed)
	s.Metrics.RecordHandshake(outcome, kind, state.String(), elapsed)
	if err := s.Metrics.WriteTextfile(s.MetricsTextfile); err != nil {
		logger.Warn().Err(err).Str("path", s.MetricsTextfile).Msg("metrics textfile write failed")
	}
}

func exitCodeFor(err error) ExitCode {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, protocol.ErrProtocolViolation),
		errors.Is(err, protocol.ErrConnectionLost),
		errors.Is(err, protocol.ErrAuthenticationFailure):
		return ExitOK
	default:
		return ExitFailure
	}
}
