package protocol

import (
	"encoding/binary"
	"slices"
)

// MessageType identifies an outbound frame.
type MessageType uint16

const (
	// MsgLog carries human-readable error text for the peer.
	MsgLog MessageType = 9
	// MsgInit carries the challenge token.
	MsgInit MessageType = 10
)

func (t MessageType) String() string {
	switch t {
	case MsgLog:
		return "log"
	case MsgInit:
		return "init"
	default:
		return "unknown"
	}
}

// ByteOrder is the fixed wire byte order.
var ByteOrder = binary.LittleEndian

// Version 4: initial remote service protocol.
// Version 5: shared application data.
// Version 6: once-off reliability.
var supportedVersions = [...]int32{4, 5, 6}

// SupportedVersion reports whether v is an accepted protocol version.
func SupportedVersion(v int32) bool {
	return slices.Contains(supportedVersions[:], v)
}

// SupportedVersions returns a copy of the accepted version set in ascending order.
func SupportedVersions() []int32 {
	out := make([]int32, len(supportedVersions))
	copy(out, supportedVersions[:])
	return out
}
