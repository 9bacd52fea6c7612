// Package gateway wires one inetd-spawned connection through the handshake
// and into the downstream binary.
//
// The process owns exactly one connection. It inherits the socket on stdin,
// moves it to a fresh descriptor, authenticates the peer and then either
// execs the resolved binary or exits.
package gateway
