package frame

import (
	"bytes"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/danmuck/svcgate/internal/protocol"
	"github.com/danmuck/svcgate/internal/testutil/testlog"
)

func TestEncodeDecodeFrameRoundTrip(t *testing.T) {
	testlog.Start(t)
	tests := []struct {
		name    string
		typ     protocol.MessageType
		payload []byte
	}{
		{name: "empty", typ: protocol.MsgLog, payload: []byte{}},
		{name: "single byte", typ: protocol.MsgInit, payload: []byte{0x7f}},
		{name: "multi kilobyte", typ: protocol.MsgLog, payload: bytes.Repeat([]byte("abcdefgh"), 1024)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			buf, err := EncodeFrame(Frame{Type: tc.typ, Payload: tc.payload}, DefaultLimits())
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			if len(buf) != HeaderLen+len(tc.payload) {
				t.Fatalf("unexpected encoded length: %d", len(buf))
			}
			got, err := DecodeFrame(bytes.NewReader(buf), DefaultLimits())
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got.Type != tc.typ {
				t.Fatalf("type mismatch: got=%v want=%v", got.Type, tc.typ)
			}
			if !bytes.Equal(got.Payload, tc.payload) {
				t.Fatalf("payload mismatch: got=%d bytes want=%d", len(got.Payload), len(tc.payload))
			}
		})
	}
}

func TestEncodeFrameIsLittleEndian(t *testing.T) {
	testlog.Start(t)
	buf, err := EncodeFrame(Frame{Type: protocol.MsgInit, Payload: []byte("abc")}, DefaultLimits())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := []byte{10, 0, 3, 0, 0, 0, 'a', 'b', 'c'}
	if !bytes.Equal(buf, want) {
		t.Fatalf("unexpected wire bytes: %v", buf)
	}
}

func TestDecodeFrameShortPayloadIsConnectionLost(t *testing.T) {
	testlog.Start(t)
	buf, _ := EncodeFrame(Frame{Type: protocol.MsgLog, Payload: []byte("hello")}, DefaultLimits())
	_, err := DecodeFrame(bytes.NewReader(buf[:len(buf)-2]), DefaultLimits())
	if !errors.Is(err, protocol.ErrConnectionLost) {
		t.Fatalf("expected ErrConnectionLost, got %v", err)
	}
	var lost *ConnectionLostError
	if !errors.As(err, &lost) || lost.Op != "frame payload" {
		t.Fatalf("expected typed connection lost error, got %#v", err)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected cause to be preserved, got %v", err)
	}
}

func TestDecodeFramePayloadLimit(t *testing.T) {
	testlog.Start(t)
	limits := Limits{MaxPayloadBytes: 4}
	buf := []byte{9, 0, 5, 0, 0, 0, 1, 2, 3, 4, 5}
	_, err := DecodeFrame(bytes.NewReader(buf), limits)
	if !errors.Is(err, ErrPayloadTooLarge) || !errors.Is(err, protocol.ErrProtocolViolation) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
	if _, err := EncodeFrame(Frame{Type: protocol.MsgLog, Payload: make([]byte, 5)}, limits); !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected encode limit error, got %v", err)
	}
}

// chunkReader returns at most one byte per Read.
type chunkReader struct{ r io.Reader }

func (c chunkReader) Read(p []byte) (int, error) {
	if len(p) > 1 {
		p = p[:1]
	}
	return c.r.Read(p)
}

// chunkWriter accepts at most two bytes per Write.
type chunkWriter struct {
	buf   bytes.Buffer
	calls int
}

func (c *chunkWriter) Write(p []byte) (int, error) {
	c.calls++
	if len(p) > 2 {
		p = p[:2]
	}
	return c.buf.Write(p)
}

type rw struct {
	io.Reader
	io.Writer
}

func TestConnReadsAcrossChunks(t *testing.T) {
	testlog.Start(t)
	wire := []byte{
		6, 0, 0, 0, // int32 6
		5, 0, 0, 0, 'a', 'l', 'i', 'c', 'e', // blob "alice"
		0x90, 0x1f, // uint16 8080
	}
	c := NewConn(rw{Reader: chunkReader{bytes.NewReader(wire)}, Writer: io.Discard}, DefaultLimits())
	v, err := c.ReadInt32("version")
	if err != nil || v != 6 {
		t.Fatalf("version got=%d err=%v", v, err)
	}
	account, err := c.ReadBlob("account name", 64)
	if err != nil || string(account) != "alice" {
		t.Fatalf("account got=%q err=%v", account, err)
	}
	port, err := c.ReadUint16("viewer port")
	if err != nil || port != 8080 {
		t.Fatalf("port got=%d err=%v", port, err)
	}
	if _, err := c.ReadInt32("trailing"); !errors.Is(err, protocol.ErrConnectionLost) {
		t.Fatalf("expected ErrConnectionLost at end of stream, got %v", err)
	}
}

func TestConnReadLengthValidation(t *testing.T) {
	testlog.Start(t)
	tests := []struct {
		name    string
		wire    []byte
		wantErr error
	}{
		{name: "negative", wire: []byte{0xff, 0xff, 0xff, 0xff}, wantErr: ErrNegativeLength},
		{name: "over limit", wire: []byte{0x00, 0x10, 0x00, 0x00}, wantErr: ErrBlobTooLarge},
		{name: "truncated prefix", wire: []byte{0x01, 0x00}, wantErr: protocol.ErrConnectionLost},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := NewConn(rw{Reader: bytes.NewReader(tc.wire), Writer: io.Discard}, DefaultLimits())
			_, err := c.ReadBlob("signed token", 1024)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestConnReadBlobShortBodyIsConnectionLost(t *testing.T) {
	testlog.Start(t)
	wire := []byte{8, 0, 0, 0, 'a', 'b', 'c'}
	c := NewConn(rw{Reader: bytes.NewReader(wire), Writer: io.Discard}, DefaultLimits())
	if _, err := c.ReadBlob("argument", 1024); !errors.Is(err, protocol.ErrConnectionLost) {
		t.Fatalf("expected ErrConnectionLost, got %v", err)
	}
}

func TestSendMessageRetriesPartialWrites(t *testing.T) {
	testlog.Start(t)
	w := &chunkWriter{}
	c := NewConn(rw{Reader: bytes.NewReader(nil), Writer: w}, DefaultLimits())
	if err := c.SendMessage(protocol.MsgLog, []byte("ERROR: nope\n")); err != nil {
		t.Fatalf("send: %v", err)
	}
	if w.calls < 2 {
		t.Fatalf("expected several partial writes, got %d", w.calls)
	}
	got, err := DecodeFrame(&w.buf, DefaultLimits())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Type != protocol.MsgLog || string(got.Payload) != "ERROR: nope\n" {
		t.Fatalf("unexpected frame: %+v", got)
	}
}

type zeroWriter struct{}

func (zeroWriter) Write([]byte) (int, error) { return 0, nil }

func TestSendMessageZeroProgressFails(t *testing.T) {
	testlog.Start(t)
	c := NewConn(rw{Reader: bytes.NewReader(nil), Writer: zeroWriter{}}, DefaultLimits())
	err := c.SendMessage(protocol.MsgInit, []byte("token"))
	if !errors.Is(err, io.ErrShortWrite) || !errors.Is(err, protocol.ErrConnectionLost) {
		t.Fatalf("expected short write reported as connection lost, got %v", err)
	}
}

func TestConnReadTimeoutIsConnectionLost(t *testing.T) {
	testlog.Start(t)
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	c := NewConn(server, Limits{MaxPayloadBytes: 1024, IOTimeout: 20 * time.Millisecond})
	_, err := c.ReadInt32("version")
	if !errors.Is(err, protocol.ErrConnectionLost) {
		t.Fatalf("expected timeout as ErrConnectionLost, got %v", err)
	}
}
