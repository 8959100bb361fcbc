//go:build mage

package main

import (
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Convert builds the binary and converts one local PDF next to itself,
// e.g. `mage convert testdata/paper.pdf` writes testdata/paper.md.
func Convert(pdf string) error {
	mg.Deps(Build)
	out := strings.TrimSuffix(pdf, ".pdf") + ".md"
	return sh.RunWithV(map[string]string{"MDCONVERT_LOG_FORMAT": "console"},
		binPath(), "convert", pdf, "-o", out)
}

// History prints the local audit log written by `mage serve`.
func History() error {
	mg.Deps(Build)
	return sh.RunWithV(map[string]string{"MDCONVERT_AUDIT_DB_PATH": "data/audit.db"},
		binPath(), "history")
}
