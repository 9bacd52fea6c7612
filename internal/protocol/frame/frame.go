package frame

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/danmuck/svcgate/internal/protocol"
)

// HeaderLen is the outbound frame header size: 2-byte type, 4-byte length.
const HeaderLen = 6

var (
	ErrPayloadTooLarge = fmt.Errorf("%w: frame: payload too large", protocol.ErrProtocolViolation)
	ErrNegativeLength  = fmt.Errorf("%w: frame: negative length", protocol.ErrProtocolViolation)
	ErrBlobTooLarge    = fmt.Errorf("%w: frame: length exceeds limit", protocol.ErrProtocolViolation)
)

// Frame is one complete outbound wire message.
type Frame struct {
	Type    protocol.MessageType
	Payload []byte
}

// Limits constrains frame memory use and per-operation blocking time.
type Limits struct {
	MaxPayloadBytes uint32
	// IOTimeout bounds every single read or write. Zero disables deadlines.
	IOTimeout time.Duration
}

func DefaultLimits() Limits {
	return Limits{
		MaxPayloadBytes: 1 << 20,
		IOTimeout:       30 * time.Second,
	}
}

// ConnectionLostError reports that the transport closed, failed, or timed out
// before an operation completed.
type ConnectionLostError struct {
	Op  string
	Err error
}

func (e *ConnectionLostError) Error() string {
	return fmt.Sprintf("frame: connection lost during %s: %v", e.Op, e.Err)
}

func (e *ConnectionLostError) Unwrap() []error {
	return []error{protocol.ErrConnectionLost, e.Err}
}

func connectionLost(op string, err error) error {
	var lost *ConnectionLostError
	if errors.As(err, &lost) {
		return err
	}
	return &ConnectionLostError{Op: op, Err: err}
}

// EncodeFrame renders f into one contiguous buffer.
func EncodeFrame(f Frame, limits Limits) ([]byte, error) {
	if uint64(len(f.Payload)) > uint64(limits.MaxPayloadBytes) {
		return nil, ErrPayloadTooLarge
	}
	buf := make([]byte, HeaderLen+len(f.Payload))
	protocol.ByteOrder.PutUint16(buf[0:2], uint16(f.Type))
	protocol.ByteOrder.PutUint32(buf[2:6], uint32(len(f.Payload)))
	copy(buf[HeaderLen:], f.Payload)
	return buf, nil
}

// DecodeFrame reads exactly one frame from r. Short reads are reported as
// connection loss; nothing is returned unless the full declared payload arrived.
func DecodeFrame(r io.Reader, limits Limits) (Frame, error) {
	var head [HeaderLen]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return Frame{}, connectionLost("frame header", err)
	}
	typ := protocol.MessageType(protocol.ByteOrder.Uint16(head[0:2]))
	length := protocol.ByteOrder.Uint32(head[2:6])
	if length > limits.MaxPayloadBytes {
		return Frame{}, ErrPayloadTooLarge
	}
	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Frame{}, connectionLost("frame payload", err)
		}
	}
	return Frame{Type: typ, Payload: payload}, nil
}

// WriteAll writes buf to w, retrying partial writes until buf is exhausted.
func WriteAll(w io.Writer, buf []byte) error {
	for len(buf) > 0 {
		n, err := w.Write(buf)
		if err != nil {
			return err
		}
		if n <= 0 {
			return io.ErrShortWrite
		}
		buf = buf[n:]
	}
	return nil
}
