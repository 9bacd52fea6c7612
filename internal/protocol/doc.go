// Package protocol owns the gatekeeper wire contract.
//
// Ownership boundary:
// - message type identifiers and byte order
// - accepted protocol version set
// - error kinds shared by the codec, session and handoff layers
//
// All multi-byte integers on the wire are little-endian in both directions.
// Deployed peers write host-native layout and run on little-endian hosts, so
// the order is pinned here rather than left to the build.
package protocol
