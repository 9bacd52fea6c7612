package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/danmuck/svcgate/internal/auth"
	"github.com/danmuck/svcgate/internal/observability"
	"github.com/danmuck/svcgate/internal/protocol"
	"github.com/danmuck/svcgate/internal/protocol/frame"
	"github.com/danmuck/svcgate/internal/resolve"
)

var (
	ErrUnsupportedVersion   = fmt.Errorf("%w: session: unsupported version", protocol.ErrProtocolViolation)
	ErrTooManyArguments     = fmt.Errorf("%w: session: too many arguments", protocol.ErrProtocolViolation)
	ErrAuthenticationFailed = fmt.Errorf("%w: session: authentication failed", protocol.ErrAuthenticationFailure)
	ErrNoResolver           = errors.New("session: no binary resolver configured")
	ErrNoVerifier           = errors.New("session: no verifier configured")
)

// Credentials is the peer identity sent after verification passes.
type Credentials struct {
	UID        int32
	PID        int32
	ViewerPort uint16
}

// Resolver maps a negotiated major version to an installed binary.
type Resolver func(major int32) (resolve.Candidate, error)

// Options carries the collaborators of one session.
type Options struct {
	Config   Config
	Verifier auth.Verifier
	Resolve  Resolver
	Metrics  *observability.Metrics
	Logger   zerolog.Logger
	// Now and Nonce feed the challenge token; both default to real sources.
	Now   func() time.Time
	Nonce func() string
}

// Outcome is everything the handoff needs once the handshake succeeded.
type Outcome struct {
	Version     int32
	Account     string
	Peer        string
	Credentials Credentials
	Args        []string
	Binary      resolve.Candidate
	LogTag      string
}

// Session is the mutable context of one connection. Fields are filled
// strictly in protocol order and a session is never reused.
type Session struct {
	conn   *frame.Conn
	peer   string
	opts   Options
	logger zerolog.Logger

	state    State
	failedAt State
	// reported is set once any LOG frame went to the peer.
	reported bool

	version     int32
	account     []byte
	issued      []byte
	returned    []byte
	verified    bool
	diagnostics []byte
	creds       Credentials
	args        [][]byte
	binary      resolve.Candidate
	logTag      string
}

func New(conn *frame.Conn, peer string, opts Options) *Session {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Nonce == nil {
		opts.Nonce = uuid.NewString
	}
	return &Session{
		conn:   conn,
		peer:   peer,
		opts:   opts,
		logger: opts.Logger.With().Str("peer", peer).Logger(),
		state:  AwaitVersion,
	}
}

func (s *Session) State() State {
	return s.state
}

// Logger returns the session logger. Once credentials arrived it carries
// account, peer, uid, pid and the log tag.
func (s *Session) Logger() zerolog.Logger {
	return s.logger
}

// FailedAt returns the state in which the session terminated.
func (s *Session) FailedAt() State {
	return s.failedAt
}

func (s *Session) Version() int32 {
	return s.version
}

func (s *Session) Verified() bool {
	return s.verified
}

// Args returns the argument list received so far.
func (s *Session) Args() [][]byte {
	return s.args
}

// Run drives the handshake from AwaitVersion to Handoff. It returns the
// outcome only when every state succeeded; any failure leaves the session
// Terminated and returns an error wrapping one protocol error kind.
func (s *Session) Run(ctx context.Context) (Outcome, error) {
	for s.state != Handoff {
		if err := s.step(ctx); err != nil {
			s.terminate(err)
			return Outcome{}, err
		}
	}
	return s.outcome(), nil
}

func (s *Session) step(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return &frame.ConnectionLostError{Op: s.state.String(), Err: err}
	}
	var err error
	switch s.state {
	case AwaitVersion:
		err = s.awaitVersion()
	case AwaitAccountName:
		err = s.awaitAccountName()
	case IssueChallenge:
		err = s.issueChallenge()
	case AwaitSignedToken:
		err = s.awaitSignedToken()
	case Verify:
		err = s.verify(ctx)
	case AwaitCredentials:
		err = s.awaitCredentials()
	case AwaitArguments:
		err = s.awaitArguments()
	case ResolveBinary:
		err = s.resolveBinary()
	default:
		return fmt.Errorf("session: no transition from %s", s.state)
	}
	if err != nil {
		return err
	}
	s.state = s.state.next()
	return nil
}

func (s *Session) terminate(err error) {
	s.failedAt = s.state
	s.state = Terminated
	event := s.logger.Warn()
	if errors.Is(err, protocol.ErrAuthenticationFailure) || errors.Is(err, protocol.ErrResolutionFailure) {
		event = s.logger.Error()
	}
	event.Err(err).
		Str("state", s.failedAt.String()).
		Str("kind", protocol.Kind(err)).
		Msg("session terminated")

	if protocol.Communicable(err) && !s.reported {
		msg := fmt.Sprintf("ERROR: Protocol violation during %s: %v\n", s.failedAt, err)
		if sendErr := s.sendLog(msg); sendErr != nil {
			s.logger.Debug().Err(sendErr).Msg("could not report protocol violation to peer")
		}
	}
}

func (s *Session) sendLog(msg string) error {
	s.reported = true
	return s.conn.SendMessage(protocol.MsgLog, []byte(msg))
}

func (s *Session) awaitVersion() error {
	v, err := s.conn.ReadInt32("version")
	if err != nil {
		return err
	}
	s.version = v
	supported := protocol.SupportedVersion(v)
	s.opts.Metrics.RecordVersion(v, supported)
	if !supported {
		msg := fmt.Sprintf("ERROR: Invalid local service version. Expected versions %v. Got %d\n",
			protocol.SupportedVersions(), v)
		if err := s.sendLog(msg); err != nil {
			return err
		}
		return fmt.Errorf("%w: got=%d", ErrUnsupportedVersion, v)
	}
	s.logger = s.logger.With().Int32("version", v).Logger()
	return nil
}

func (s *Session) awaitAccountName() error {
	account, err := s.conn.ReadBlob("account name", s.opts.Config.MaxAccountBytes)
	if err != nil {
		return err
	}
	s.account = account
	s.logger = s.logger.With().Bytes("account", account).Logger()
	s.logger.Info().Msg("connection accepted")
	return nil
}

func (s *Session) issueChallenge() error {
	s.issued = []byte(challengeToken(s.opts.Now(), s.opts.Nonce(), s.peer))
	return s.conn.SendMessage(protocol.MsgInit, s.issued)
}

// challengeToken concatenates a nanosecond timestamp, a random value and the
// peer address. It must not repeat across invocations; it need not be secret.
func challengeToken(now time.Time, nonce, peer string) string {
	return strconv.FormatInt(now.UnixNano(), 10) + ":" + nonce + ":" + peer
}

func (s *Session) awaitSignedToken() error {
	signed, err := s.conn.ReadBlob("signed token", s.opts.Config.MaxSignedTokenBytes)
	if err != nil {
		return err
	}
	s.returned = signed
	return nil
}

func (s *Session) verify(ctx context.Context) error {
	if s.opts.Verifier == nil {
		return ErrNoVerifier
	}
	res, err := s.opts.Verifier.Verify(ctx, s.returned)
	if err != nil {
		s.logger.Error().Err(err).Msg("verifier failed")
		res.OK = false
	}
	s.diagnostics = res.Diagnostics

	matched := auth.TokenMatches(s.issued, res.Plaintext)
	if !matched {
		s.logger.Warn().
			Str("event", "authentication_mismatch").
			Bool("verifier_ok", res.OK).
			Msg("recovered token does not match issued token")
	}

	s.verified = res.OK && matched
	if s.verified {
		return nil
	}

	for _, msg := range s.authFailureMessages() {
		if err := s.sendLog(msg); err != nil {
			s.logger.Warn().Err(err).Msg("could not report authentication failure to peer")
			break
		}
	}
	s.logger.Error().
		Str("event", "authentication_failed").
		Bool("verifier_ok", res.OK).
		Bool("token_match", matched).
		Msg("authentication failed")
	return fmt.Errorf("%w: account=%q", ErrAuthenticationFailed, s.account)
}

func (s *Session) authFailureMessages() []string {
	return []string{
		fmt.Sprintf("ERROR: Authentication failed for key '%s'.\n", s.account),
		"ERROR: Make sure the public key is registered with the service operator.\n",
		fmt.Sprintf("ERROR: To register a key, please contact %s\n", s.opts.Config.SupportContact),
	}
}

func (s *Session) awaitCredentials() error {
	uid, err := s.conn.ReadInt32("remote uid")
	if err != nil {
		return err
	}
	pid, err := s.conn.ReadInt32("remote pid")
	if err != nil {
		return err
	}
	port, err := s.conn.ReadUint16("remote viewer port")
	if err != nil {
		return err
	}
	s.creds = Credentials{UID: uid, PID: pid, ViewerPort: port}
	s.logTag = LogTag(s.opts.Config.TagPrefix, string(s.account), s.peer, s.creds)
	s.logger = s.logger.With().
		Int32("uid", uid).
		Int32("pid", pid).
		Str("tag", s.logTag).
		Logger()

	s.logger.Info().Uint16("viewer_port", port).Msg("started")
	for _, line := range bytes.Split(s.diagnostics, []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		s.logger.Info().Bytes("verifier", line).Msg("verifier diagnostics")
	}
	return nil
}

// LogTag is the audit prefix handed to the downstream binary.
func LogTag(prefix, account, peer string, c Credentials) string {
	return fmt.Sprintf("%s:%s:%s:%d:%d", prefix, account, peer, c.UID, c.PID)
}

func (s *Session) awaitArguments() error {
	for {
		n, err := s.conn.ReadLength("argument", s.opts.Config.MaxArgumentBytes)
		if err != nil {
			return err
		}
		if n == 0 {
			s.logger.Debug().Int("count", len(s.args)).Msg("arguments received")
			return nil
		}
		if len(s.args) >= s.opts.Config.MaxArguments {
			return fmt.Errorf("%w: max=%d", ErrTooManyArguments, s.opts.Config.MaxArguments)
		}
		arg, err := s.conn.ReadBytes("argument", n)
		if err != nil {
			return err
		}
		s.args = append(s.args, arg)
	}
}

func (s *Session) resolveBinary() error {
	if s.opts.Resolve == nil {
		return ErrNoResolver
	}
	candidate, err := s.opts.Resolve(s.version)
	if err != nil {
		return err
	}
	s.binary = candidate
	s.logger.Info().
		Str("binary", candidate.Path).
		Int("minor", candidate.Minor).
		Msg("binary chosen")
	return nil
}

func (s *Session) outcome() Outcome {
	args := make([]string, len(s.args))
	for i, a := range s.args {
		args[i] = string(a)
	}
	return Outcome{
		Version:     s.version,
		Account:     string(s.account),
		Peer:        s.peer,
		Credentials: s.creds,
		Args:        args,
		Binary:      s.binary,
		LogTag:      s.logTag,
	}
}
