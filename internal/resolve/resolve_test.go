package resolve

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/danmuck/svcgate/internal/protocol"
	"github.com/danmuck/svcgate/internal/testutil/testlog"
)

func TestResolvePicksHighestMinor(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	base := filepath.Join(dir, "cellappmgr")
	for _, name := range []string{"cellappmgr.4.1", "cellappmgr.4.3", "cellappmgr.4.2", "cellappmgr.5.9"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("#!/bin/true\n"), 0o755); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	got, err := Resolve(GlobLister{}, base, 4)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.Path != base+".4.3" || got.Minor != 3 {
		t.Fatalf("unexpected candidate: %+v", got)
	}
}

func TestResolveNoCandidates(t *testing.T) {
	testlog.Start(t)
	base := filepath.Join(t.TempDir(), "cellappmgr")
	_, err := Resolve(GlobLister{}, base, 6)
	if !errors.Is(err, ErrNotFound) || !errors.Is(err, protocol.ErrResolutionFailure) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if !IsNotFound(err) {
		t.Fatalf("IsNotFound should report true")
	}
}

func TestResolveNumericNotLexicalOrder(t *testing.T) {
	testlog.Start(t)
	lister := ListerFunc(func(string) ([]string, error) {
		return []string{"/opt/bin/svc.6.9", "/opt/bin/svc.6.10", "/opt/bin/svc.6.2"}, nil
	})
	got, err := Resolve(lister, "/opt/bin/svc", 6)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.Minor != 10 || got.Path != "/opt/bin/svc.6.10" {
		t.Fatalf("unexpected candidate: %+v", got)
	}
}

func TestResolveSkipsUnparseableSuffixes(t *testing.T) {
	testlog.Start(t)
	lister := ListerFunc(func(string) ([]string, error) {
		return []string{"/opt/bin/svc.6.1rc", "/opt/bin/svc.6.3.bak", "/opt/bin/svc.6.99999999999999999999"}, nil
	})
	_, err := Resolve(lister, "/opt/bin/svc", 6)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResolveKeepsFirstOnEqualMinor(t *testing.T) {
	testlog.Start(t)
	lister := ListerFunc(func(string) ([]string, error) {
		return []string{"/a/svc.6.4", "/a/svc.6.04"}, nil
	})
	got, err := Resolve(lister, "/a/svc", 6)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.Path != "/a/svc.6.4" {
		t.Fatalf("expected first equal candidate, got %+v", got)
	}
}

func TestResolveListerError(t *testing.T) {
	testlog.Start(t)
	lister := ListerFunc(func(string) ([]string, error) { return nil, filepath.ErrBadPattern })
	_, err := Resolve(lister, "/a/svc", 6)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPattern(t *testing.T) {
	testlog.Start(t)
	if got := Pattern("/opt/svc", 5); got != "/opt/svc.5.[0-9]*" {
		t.Fatalf("unexpected pattern: %q", got)
	}
}
