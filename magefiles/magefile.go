//go:build mage

// Package main contains Mage build targets for mdconvert developer tooling.
package main

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// localDirs lists the directories a local `mdconvert serve` writes to when
// run with the sample configuration.
var localDirs = []string{
	"data",
	"tmp/workspaces",
}

// Init creates the local data directories.
func Init() error {
	for _, dir := range localDirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
		fmt.Println("  ", dir)
	}
	fmt.Println("Local directories initialized.")
	return nil
}

const (
	binDir  = "bin"
	binName = "mdconvert"
	cmdPkg  = "./cmd/mdconvert"
	image   = "mdconvert:dev"
)

func binPath() string { return filepath.Join(binDir, binName) }

// version describes the checkout, or "dev" outside a git tree.
func version() string {
	out, err := sh.Output("git", "describe", "--tags", "--always", "--dirty")
	if err != nil || strings.TrimSpace(out) == "" {
		return "dev"
	}
	return strings.TrimSpace(out)
}

// Build compiles the CLI binary into bin/ with the version stamped in.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}
	ldflags := "-s -w -X main.version=" + version()
	if err := sh.RunV("go", "build", "-ldflags", ldflags, "-o", binPath(), cmdPkg); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	fmt.Printf("Built %s\n", binPath())
	return nil
}

// Vet runs go vet on every package.
func Vet() error {
	return sh.RunV("go", "vet", "./...")
}

// Test runs the test suite with the race detector.
func Test() error {
	mg.Deps(Vet)
	return sh.RunV("go", "test", "-race", "-count=1", "./...")
}

// Serve builds the binary and runs the HTTP service with console logs.
func Serve() error {
	mg.Deps(Build, Init)
	return sh.RunWithV(map[string]string{
		"MDCONVERT_LOG_FORMAT":           "console",
		"MDCONVERT_CONVERSION_WORK_DIR":  ".",
		"MDCONVERT_CONVERSION_TEMP_ROOT": "tmp/workspaces",
		"MDCONVERT_AUDIT_DB_PATH":        "data/audit.db",
	}, binPath(), "serve")
}

// Image builds the container image with the converter tools installed.
func Image() error {
	return sh.RunV("docker", "build", "--build-arg", "VERSION="+version(), "-t", image, ".")
}

// Stats prints, per package, non-blank Go lines in source and test files
// and the number of Test functions.
func Stats() error {
	stats := map[string]*pkgStats{}
	err := filepath.WalkDir(".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return skipHidden(path, d.Name())
		}
		if filepath.Ext(path) != ".go" {
			return nil
		}
		dir := filepath.Dir(path)
		if stats[dir] == nil {
			stats[dir] = &pkgStats{}
		}
		return stats[dir].add(path)
	})
	if err != nil {
		return err
	}

	dirs := make([]string, 0, len(stats))
	for dir := range stats {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)

	var total pkgStats
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "package\tsource\ttests\ttest funcs\t")
	for _, dir := range dirs {
		st := stats[dir]
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t\n", dir, st.source, st.test, st.funcs)
		total.source += st.source
		total.test += st.test
		total.funcs += st.funcs
	}
	fmt.Fprintf(tw, "total\t%d\t%d\t%d\t\n", total.source, total.test, total.funcs)
	return tw.Flush()
}

type pkgStats struct {
	source, test, funcs int
}

func (st *pkgStats) add(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	isTest := strings.HasSuffix(path, "_test.go")
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
		case isTest:
			st.test++
			if strings.HasPrefix(line, "func Test") {
				st.funcs++
			}
		default:
			st.source++
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return nil
}

// skipHidden skips directories the go tool ignores: names starting with
// "." or "_", and testdata.
func skipHidden(path, name string) error {
	if path != "." && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "testdata") {
		return filepath.SkipDir
	}
	return nil
}
