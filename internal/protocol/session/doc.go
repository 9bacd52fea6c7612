// Package session owns the gatekeeper handshake state machine.
//
// Ownership boundary:
// - state order from version negotiation through binary resolution
// - challenge token issue and verification gating
// - per-blob and per-argument limits
// - peer-visible LOG messages on version and authentication failure
//
// A Session serves exactly one connection and is never reused. It stops at
// the Handoff state; replacing the process is the caller's job.
package session
