// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package workspace

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T) (*Manager, string) {
	t.Helper()
	root := t.TempDir()
	return NewManager(root, zerolog.Nop()), root
}

func TestAcquire_UniqueDirectories(t *testing.T) {
	m, root := newManager(t)

	a, err := m.Acquire()
	require.NoError(t, err)
	defer a.Release()
	b, err := m.Acquire()
	require.NoError(t, err)
	defer b.Release()

	assert.NotEqual(t, a.Dir(), b.Dir())
	assert.Equal(t, root, filepath.Dir(a.Dir()))
	assert.True(t, filepath.IsAbs(a.Dir()))
	assert.DirExists(t, a.Dir())
}

func TestAcquire_MissingRoot(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "missing", "deeper"), zerolog.Nop())
	_, err := m.Acquire()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrResource))
}

func TestStage(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		wantBase string
		wantErr  bool
	}{
		{name: "plain name", filename: "doc.pdf", wantBase: "doc.pdf"},
		{name: "upper-case extension kept", filename: "report.PDF", wantBase: "report.PDF"},
		{name: "directory components stripped", filename: "../../etc/evil.pdf", wantBase: "evil.pdf"},
		{name: "empty name rejected", filename: "", wantErr: true},
		{name: "dot-dot rejected", filename: "..", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newManager(t)
			ws, err := m.Acquire()
			require.NoError(t, err)
			defer ws.Release()

			path, err := ws.Stage(tt.filename, strings.NewReader("%PDF-1.4"))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrResource))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(ws.Dir(), tt.wantBase), path)

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, "%PDF-1.4", string(data))
		})
	}
}

func TestStage_ReadFailure(t *testing.T) {
	m, _ := newManager(t)
	ws, err := m.Acquire()
	require.NoError(t, err)
	defer ws.Release()

	_, err = ws.Stage("doc.pdf", iotest.ErrReader(errors.New("connection reset")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrResource))
	assert.Contains(t, err.Error(), "connection reset")
}

func TestRelease_RemovesWorkspaceAndExternalFiles(t *testing.T) {
	m, _ := newManager(t)
	ws, err := m.Acquire()
	require.NoError(t, err)

	_, err = ws.Stage("doc.pdf", bytes.NewReader([]byte("pdf")))
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(ws.Dir(), "out-marker"), 0o755))

	stray := filepath.Join(t.TempDir(), "doc.md")
	require.NoError(t, os.WriteFile(stray, []byte("# Doc"), 0o644))
	ws.Track(stray)

	ws.Release()

	assert.NoDirExists(t, ws.Dir())
	assert.NoFileExists(t, stray)
}

func TestRelease_ExternalFailureDoesNotAbortCleanup(t *testing.T) {
	m, _ := newManager(t)
	ws, err := m.Acquire()
	require.NoError(t, err)

	// A directory cannot be removed with os.Remove when non-empty.
	stubborn := filepath.Join(t.TempDir(), "stubborn")
	require.NoError(t, os.MkdirAll(filepath.Join(stubborn, "child"), 0o755))
	ws.Track(stubborn)

	ws.Release()

	assert.NoDirExists(t, ws.Dir())
	assert.DirExists(t, stubborn)
}

func TestRelease_Idempotent(t *testing.T) {
	m, _ := newManager(t)
	ws, err := m.Acquire()
	require.NoError(t, err)

	ws.Release()
	assert.NotPanics(t, ws.Release)
	assert.NoDirExists(t, ws.Dir())
}

func TestTrack_IgnoresInsidePathsAndDuplicates(t *testing.T) {
	m, _ := newManager(t)
	ws, err := m.Acquire()
	require.NoError(t, err)
	defer ws.Release()

	ws.Track(filepath.Join(ws.Dir(), "doc.md"))
	ws.Track(filepath.Join(ws.Dir(), "nested", "doc.md"))
	ws.Track("/app/doc.md")
	ws.Track("/app/doc.md")
	ws.Track("")

	assert.Equal(t, []string{"/app/doc.md"}, ws.external)
}

func TestContains(t *testing.T) {
	ws := &Workspace{dir: "/tmp/mdconvert-123"}
	assert.True(t, ws.Contains("/tmp/mdconvert-123/doc.md"))
	assert.True(t, ws.Contains("/tmp/mdconvert-123"))
	assert.False(t, ws.Contains("/tmp/mdconvert-1234/doc.md"))
	assert.False(t, ws.Contains("/app/doc.md"))
	assert.False(t, ws.Contains("/tmp/..doc.md"))
}
