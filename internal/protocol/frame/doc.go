// Package frame is the session byte codec.
//
// Inbound traffic is a fixed sequence of little-endian integers and
// 4-byte length-prefixed blobs. Outbound traffic is frames: a 2-byte message
// type, a 4-byte payload length, then the payload. Every read blocks until the
// declared byte count is satisfied; a transport that closes, fails, or times
// out first yields a *ConnectionLostError.
package frame
