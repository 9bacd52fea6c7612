package protocol

import "errors"

// Error kinds. Every failure surfaced by the gatekeeper wraps exactly one.
var (
	ErrProtocolViolation     = errors.New("protocol: protocol violation")
	ErrConnectionLost        = errors.New("protocol: connection lost")
	ErrAuthenticationFailure = errors.New("protocol: authentication failure")
	ErrResolutionFailure     = errors.New("protocol: resolution failure")
)

const (
	KindProtocolViolation     = "protocol_violation"
	KindConnectionLost        = "connection_lost"
	KindAuthenticationFailure = "authentication_failure"
	KindResolutionFailure     = "resolution_failure"
	KindInternal              = "internal"
	KindNone                  = "none"
)

// Kind maps err to its error-kind label for logs and metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrProtocolViolation):
		return KindProtocolViolation
	case errors.Is(err, ErrConnectionLost):
		return KindConnectionLost
	case errors.Is(err, ErrAuthenticationFailure):
		return KindAuthenticationFailure
	case errors.Is(err, ErrResolutionFailure):
		return KindResolutionFailure
	default:
		return KindInternal
	}
}

// Communicable reports whether a failure of this kind can still be explained
// to the peer over the session connection.
func Communicable(err error) bool {
	return errors.Is(err, ErrProtocolViolation) || errors.Is(err, ErrAuthenticationFailure)
}
