package binhash

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/zeebo/blake3"

	"github.com/danmuck/svcgate/internal/testutil/testlog"
)

func TestHashFileMatchesBlake3(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "svc.6.1")
	content := []byte("binary contents")
	if err := os.WriteFile(path, content, 0o755); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := HashFile(path)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	want := blake3.Sum256(content)
	if got != want {
		t.Fatalf("digest mismatch: %s vs %s", FormatDigest(got), FormatDigest(want))
	}
	if len(FormatDigest(got)) != 64 {
		t.Fatalf("unexpected hex length")
	}
}

func TestHashFileMissing(t *testing.T) {
	testlog.Start(t)
	if _, err := HashFile(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
