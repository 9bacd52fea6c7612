package frame

import (
	"fmt"
	"io"
	"time"

	"github.com/danmuck/svcgate/internal/protocol"
)

type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// Conn is the gatekeeper side of one session transport. Inbound data is a
// sequence of bare fixed-width integers and length-prefixed blobs; outbound
// data is always whole frames.
type Conn struct {
	rw     io.ReadWriter
	limits Limits
}

// NewConn wraps rw. When rw supports read/write deadlines and
// limits.IOTimeout is positive, every operation is bounded by it.
func NewConn(rw io.ReadWriter, limits Limits) *Conn {
	return &Conn{rw: rw, limits: limits}
}

func (c *Conn) Limits() Limits {
	return c.limits
}

func (c *Conn) armRead() {
	if c.limits.IOTimeout <= 0 {
		return
	}
	if d, ok := c.rw.(readDeadliner); ok {
		_ = d.SetReadDeadline(time.Now().Add(c.limits.IOTimeout))
	}
}

func (c *Conn) armWrite() {
	if c.limits.IOTimeout <= 0 {
		return
	}
	if d, ok := c.rw.(writeDeadliner); ok {
		_ = d.SetWriteDeadline(time.Now().Add(c.limits.IOTimeout))
	}
}

func (c *Conn) readFull(op string, buf []byte) error {
	c.armRead()
	if _, err := io.ReadFull(c.rw, buf); err != nil {
		return connectionLost(op, err)
	}
	return nil
}

// ReadInt32 reads one signed 32-bit integer.
func (c *Conn) ReadInt32(op string) (int32, error) {
	var buf [4]byte
	if err := c.readFull(op, buf[:]); err != nil {
		return 0, err
	}
	return int32(protocol.ByteOrder.Uint32(buf[:])), nil
}

// ReadUint16 reads one unsigned 16-bit integer.
func (c *Conn) ReadUint16(op string) (uint16, error) {
	var buf [2]byte
	if err := c.readFull(op, buf[:]); err != nil {
		return 0, err
	}
	return protocol.ByteOrder.Uint16(buf[:]), nil
}

// ReadLength reads a signed 32-bit length prefix and checks it against max.
func (c *Conn) ReadLength(op string, max uint32) (uint32, error) {
	n, err := c.ReadInt32(op + " length")
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: %s length=%d", ErrNegativeLength, op, n)
	}
	if uint32(n) > max {
		return 0, fmt.Errorf("%w: %s length=%d max=%d", ErrBlobTooLarge, op, n, max)
	}
	return uint32(n), nil
}

// ReadBytes reads exactly n bytes.
func (c *Conn) ReadBytes(op string, n uint32) ([]byte, error) {
	buf := make([]byte, n)
	if n == 0 {
		return buf, nil
	}
	if err := c.readFull(op, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadBlob reads a length prefix followed by exactly that many bytes.
func (c *Conn) ReadBlob(op string, max uint32) ([]byte, error) {
	n, err := c.ReadLength(op, max)
	if err != nil {
		return nil, err
	}
	return c.ReadBytes(op, n)
}

// ReadFrame reads one whole frame. The gatekeeper never receives frames;
// peers and tests use it to consume what SendMessage produced.
func (c *Conn) ReadFrame() (Frame, error) {
	c.armRead()
	return DecodeFrame(c.rw, c.limits)
}

// SendMessage writes a single frame atomically from the caller's view:
// header and payload leave in one buffer and partial writes are retried.
func (c *Conn) SendMessage(typ protocol.MessageType, payload []byte) error {
	buf, err := EncodeFrame(Frame{Type: typ, Payload: payload}, c.limits)
	if err != nil {
		return err
	}
	c.armWrite()
	if err := WriteAll(c.rw, buf); err != nil {
		return connectionLost("send "+typ.String(), err)
	}
	return nil
}
