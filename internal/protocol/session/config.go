package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/svcgate/internal/protocol/frame"
)

var ErrInvalidConfig = errors.New("session: invalid config")

// Config bounds one handshake. The wire protocol itself imposes no limits
// beyond 32-bit lengths, so every blob the peer declares is capped here.
type Config struct {
	IOTimeout           time.Duration
	MaxAccountBytes     uint32
	MaxSignedTokenBytes uint32
	MaxArgumentBytes    uint32
	MaxArguments        int
	MaxLogPayloadBytes  uint32
	// TagPrefix leads the log tag handed to the downstream binary.
	TagPrefix string
	// SupportContact is quoted to peers whose key is rejected.
	SupportContact string
}

func DefaultConfig() Config {
	return Config{
		IOTimeout:           30 * time.Second,
		MaxAccountBytes:     1024,
		MaxSignedTokenBytes: 64 * 1024,
		MaxArgumentBytes:    64 * 1024,
		MaxArguments:        1024,
		MaxLogPayloadBytes:  64 * 1024,
		TagPrefix:           "svcgate",
		SupportContact:      "your service administrator",
	}
}

func (c Config) Validate() error {
	if c.IOTimeout < 0 {
		return fmt.Errorf("%w: negative io timeout", ErrInvalidConfig)
	}
	if c.MaxAccountBytes == 0 || c.MaxSignedTokenBytes == 0 || c.MaxArgumentBytes == 0 {
		return fmt.Errorf("%w: blob limits must be positive", ErrInvalidConfig)
	}
	if c.MaxArguments <= 0 {
		return fmt.Errorf("%w: max arguments must be positive", ErrInvalidConfig)
	}
	if c.MaxLogPayloadBytes == 0 {
		return fmt.Errorf("%w: max log payload must be positive", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.TagPrefix) == "" {
		return fmt.Errorf("%w: missing tag prefix", ErrInvalidConfig)
	}
	if strings.ContainsRune(c.TagPrefix, ':') {
		return fmt.Errorf("%w: tag prefix must not contain ':'", ErrInvalidConfig)
	}
	return nil
}

// FrameLimits derives codec limits for the session transport.
func (c Config) FrameLimits() frame.Limits {
	return frame.Limits{
		MaxPayloadBytes: c.MaxLogPayloadBytes,
		IOTimeout:       c.IOTimeout,
	}
}
