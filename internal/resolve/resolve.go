// Package resolve picks the installed downstream binary for a protocol
// major version.
//
// Binaries are installed side by side as <base>.<major>.<minor>; the highest
// minor for the requested major wins.
package resolve

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/danmuck/svcgate/internal/protocol"
)

var ErrNotFound = fmt.Errorf("%w: resolve: no matching binary", protocol.ErrResolutionFailure)

var minorSuffix = regexp.MustCompile(`\.([0-9]+)$`)

// Candidate is one installed binary and its minor version.
type Candidate struct {
	Path  string
	Minor int
}

// Lister enumerates filesystem entries matching a glob pattern.
type Lister interface {
	ListMatching(pattern string) ([]string, error)
}

// GlobLister lists with filepath.Glob.
type GlobLister struct{}

func (GlobLister) ListMatching(pattern string) ([]string, error) {
	return filepath.Glob(pattern)
}

// ListerFunc adapts a function into a Lister.
type ListerFunc func(pattern string) ([]string, error)

func (f ListerFunc) ListMatching(pattern string) ([]string, error) {
	return f(pattern)
}

// Pattern returns the glob used to discover binaries for major.
func Pattern(basePath string, major int32) string {
	return basePath + "." + strconv.FormatInt(int64(major), 10) + ".[0-9]*"
}

// Resolve returns the candidate with the strictly greatest minor version.
// When two entries share a minor the first one listed is kept.
func Resolve(lister Lister, basePath string, major int32) (Candidate, error) {
	if lister == nil {
		lister = GlobLister{}
	}
	pattern := Pattern(basePath, major)
	paths, err := lister.ListMatching(pattern)
	if err != nil {
		return Candidate{}, fmt.Errorf("%w: pattern=%q: %v", ErrNotFound, pattern, err)
	}

	best := Candidate{Minor: -1}
	for _, path := range paths {
		minor, ok := parseMinor(path)
		if !ok {
			continue
		}
		if minor > best.Minor {
			best = Candidate{Path: path, Minor: minor}
		}
	}
	if best.Minor < 0 {
		return Candidate{}, fmt.Errorf("%w: pattern=%q", ErrNotFound, pattern)
	}
	return best, nil
}

func parseMinor(path string) (int, bool) {
	m := minorSuffix.FindStringSubmatch(path)
	if m == nil {
		return 0, false
	}
	minor, err := strconv.Atoi(m[1])
	if err != nil || minor < 0 {
		return 0, false
	}
	return minor, true
}

// IsNotFound reports whether err is a resolution miss.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
