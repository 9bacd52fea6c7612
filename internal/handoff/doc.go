// Package handoff turns a completed handshake into the downstream process.
//
// The gatekeeper never proxies traffic. Once the peer is authenticated the
// session socket is made inheritable and the current process image is
// replaced by the resolved binary, which finds the socket through the
// "-remoteService <fd>:<uid>:<pid>:<port> <tag>" tail of its argv.
package handoff
