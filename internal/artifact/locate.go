// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package artifact finds the output file an external converter produced.
// Tools disagree about where they write, so callers pass an ordered list of
// candidate paths and the first usable one wins.
package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

// ErrNotFound reports that no candidate resolved to a readable file.
var ErrNotFound = errors.New("artifact not found")

// IsPattern reports whether candidate contains glob metacharacters.
func IsPattern(candidate string) bool {
	return strings.ContainsAny(candidate, "*?[")
}

// Candidate is one place an artifact may be. A Pattern candidate is a glob
// whose matches are tried in Rank order.
type Candidate struct {
	Path    string
	Pattern bool
}

func (c Candidate) String() string { return c.Path }

// EscapeGlob quotes glob metacharacters in s so it matches literally when
// embedded in a pattern. Windows patterns have no escape character, so s
// is returned unchanged there.
func EscapeGlob(s string) string {
	if runtime.GOOS == "windows" {
		return s
	}
	return globEscaper.Replace(s)
}

var globEscaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`)

// ValidatePattern checks that a glob candidate is well formed. Plain paths
// are always valid.
func ValidatePattern(candidate string) error {
	if !IsPattern(candidate) {
		return nil
	}
	if _, err := filepath.Match(candidate, ""); err != nil {
		return fmt.Errorf("invalid candidate pattern %q: %w", candidate, err)
	}
	return nil
}

// Locate evaluates candidates strictly in order and returns the first one
// that is a regular file open for reading. Pattern candidates expand to
// their matches, ordered by Rank. File contents are never read.
func Locate(basename string, candidates []Candidate) (string, error) {
	searched := make([]string, 0, len(candidates))
	for _, c := range candidates {
		searched = append(searched, c.Path)
		if !c.Pattern {
			if usable(c.Path) {
				return c.Path, nil
			}
			continue
		}

		matches, err := filepath.Glob(c.Path)
		if err != nil {
			continue
		}
		for _, m := range Rank(basename, matches) {
			if usable(m) {
				return m, nil
			}
		}
	}
	return "", fmt.Errorf("%w: searched %s", ErrNotFound, strings.Join(searched, ", "))
}

// Rank orders glob matches deterministically: names starting with basename
// first, then lexicographically by file name, then by full path. It
// returns a new slice.
func Rank(basename string, matches []string) []string {
	ranked := append([]string(nil), matches...)
	sort.SliceStable(ranked, func(i, j int) bool {
		ni, nj := filepath.Base(ranked[i]), filepath.Base(ranked[j])
		pi := basename != "" && strings.HasPrefix(ni, basename)
		pj := basename != "" && strings.HasPrefix(nj, basename)
		if pi != pj {
			return pi
		}
		if ni != nj {
			return ni < nj
		}
		return ranked[i] < ranked[j]
	})
	return ranked
}

// usable reports whether path is a regular file that can be opened.
func usable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}
