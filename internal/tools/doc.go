// Package tools provides host helpers shared by the gatekeeper modules.
//
// Ownership boundary:
// - external command execution with captured stdio
package tools
