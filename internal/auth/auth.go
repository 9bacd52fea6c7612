// Package auth adapts the external signature-verification utility.
//
// The gatekeeper never checks signatures itself. It hands the signed blob to a
// trust tool and acts on what comes back.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/danmuck/svcgate/internal/tools"
)

const DefaultVerifierPath = "/usr/bin/gpg"

var ErrVerifierUnavailable = errors.New("auth: verifier unavailable")

// Result is what the trust utility reported for one signed blob.
type Result struct {
	OK          bool
	Plaintext   []byte
	Diagnostics []byte
}

// Verifier checks a signed blob and recovers its plaintext.
type Verifier interface {
	Verify(ctx context.Context, signed []byte) (Result, error)
}

// FuncVerifier adapts a function into a Verifier.
type FuncVerifier func(ctx context.Context, signed []byte) (Result, error)

func (f FuncVerifier) Verify(ctx context.Context, signed []byte) (Result, error) {
	return f(ctx, signed)
}

// CommandVerifier pipes the signed blob into an external tool. Stdout is the
// recovered plaintext, stderr the diagnostics, and exit status zero means the
// signature was accepted.
type CommandVerifier struct {
	Path   string
	Args   []string
	Runner tools.CommandRunner
}

func NewCommandVerifier(path string, args []string) CommandVerifier {
	if strings.TrimSpace(path) == "" {
		path = DefaultVerifierPath
	}
	return CommandVerifier{Path: path, Args: args, Runner: tools.ExecRunner{}}
}

func (v CommandVerifier) Verify(ctx context.Context, signed []byte) (Result, error) {
	runner := v.Runner
	if runner == nil {
		runner = tools.ExecRunner{}
	}
	stdout, stderr, code, err := runner.Run(ctx, signed, v.Path, v.Args...)
	res := Result{OK: err == nil && code == 0, Plaintext: stdout, Diagnostics: stderr}
	if err == nil {
		return res, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return res, nil
	}
	return res, fmt.Errorf("%w: %s: %v", ErrVerifierUnavailable, v.Path, err)
}

// TokenMatches reports whether recovered is byte-for-byte the issued token.
func TokenMatches(issued, recovered []byte) bool {
	if len(issued) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare(issued, recovered) == 1
}
