package observability

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/svcgate/internal/protocol"
)

const (
	// OutcomeExecAttempt is recorded just before exec; a successful exec
	// leaves it as the final record.
	OutcomeExecAttempt = "exec_attempt"
	OutcomeExecFailed  = "exec_failed"
	OutcomeTerminated  = "terminated"
)

// LogHandshake writes the one summary line per connection. Failures the peer
// caused are warnings; failures on this host are errors.
func LogHandshake(logger zerolog.Logger, outcome, kind, state string, elapsed time.Duration) {
	event := logger.Info()
	switch kind {
	case protocol.KindNone:
	case protocol.KindResolutionFailure, protocol.KindInternal:
		event = logger.Error()
	default:
		event = logger.Warn()
	}

	event.
		Str("outcome", outcome).
		Str("kind", kind).
		Str("state", state).
		Dur("duration", elapsed).
		Msg("handshake")
}
