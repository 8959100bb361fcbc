// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package workspace manages the per-request temporary directory that holds
// an uploaded PDF and everything converters write next to it.
package workspace

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

const dirPattern = "mdconvert-*"

// ErrResource reports that the filesystem refused a workspace operation.
var ErrResource = errors.New("workspace resource error")

// Manager creates workspaces under a fixed root directory.
type Manager struct {
	root string
	log  zerolog.Logger
}

// NewManager returns a Manager creating workspaces under root, or under
// os.TempDir() when root is empty.
func NewManager(root string, log zerolog.Logger) *Manager {
	return &Manager{root: root, log: log}
}

// Acquire creates a fresh, uniquely named workspace directory. The caller
// must defer Release on the returned workspace.
func (m *Manager) Acquire() (*Workspace, error) {
	dir, err := os.MkdirTemp(m.root, dirPattern)
	if err != nil {
		return nil, fmt.Errorf("%w: creating workspace: %v", ErrResource, err)
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	m.log.Debug().Str("workspace", dir).Msg("workspace acquired")
	return &Workspace{dir: dir, log: m.log}, nil
}

// Workspace is a directory exclusively owned by one request. It also keeps
// track of output files that tools wrote outside of it.
type Workspace struct {
	dir string
	log zerolog.Logger

	mu       sync.Mutex
	external []string
	once     sync.Once
}

// Dir returns the absolute workspace path.
func (w *Workspace) Dir() string { return w.dir }

// Stage writes r into the workspace under the base name of filename and
// returns the staged path.
func (w *Workspace) Stage(filename string, r io.Reader) (string, error) {
	name := filepath.Base(filename)
	if name == "." || name == ".." || name == string(filepath.Separator) || strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("%w: unusable filename %q", ErrResource, filename)
	}

	path := filepath.Join(w.dir, name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("%w: creating %s: %v", ErrResource, name, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("%w: writing %s: %v", ErrResource, name, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("%w: syncing %s: %v", ErrResource, name, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("%w: closing %s: %v", ErrResource, name, err)
	}
	return path, nil
}

// Contains reports whether path lies inside the workspace directory.
func (w *Workspace) Contains(path string) bool {
	rel, err := filepath.Rel(w.dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Track registers an output file outside the workspace for removal on
// Release. Paths inside the workspace are ignored since they go with it.
func (w *Workspace) Track(path string) {
	if path == "" || w.Contains(path) {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, p := range w.external {
		if p == path {
			return
		}
	}
	w.external = append(w.external, path)
}

// Release removes tracked external files and then the workspace itself.
// It runs at most once; failures are logged and never returned.
func (w *Workspace) Release() {
	w.once.Do(func() {
		w.mu.Lock()
		external := append([]string(nil), w.external...)
		w.mu.Unlock()

		for _, p := range external {
			if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
				w.log.Error().Err(err).Str("path", p).Msg("removing external output file")
				continue
			}
			w.log.Debug().Str("path", p).Msg("removed external output file")
		}

		if err := os.RemoveAll(w.dir); err != nil {
			w.log.Error().Err(err).Str("workspace", w.dir).Msg("removing workspace")
			return
		}
		w.log.Debug().Str("workspace", w.dir).Msg("workspace released")
	})
}
