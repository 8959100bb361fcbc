// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/mdconvert/internal/convert"
	"github.com/pdiddy/mdconvert/internal/process"
	"github.com/pdiddy/mdconvert/internal/workspace"
	"github.com/pdiddy/mdconvert/pkg/types"
)

// scriptedRunner maps commands to behaviors and counts invocations.
type scriptedRunner struct {
	mu    sync.Mutex
	calls int
	run   map[string]func(inv process.Invocation) process.Outcome
}

func (r *scriptedRunner) Run(_ context.Context, inv process.Invocation) process.Outcome {
	r.mu.Lock()
	r.calls++
	fn := r.run[inv.Command]
	r.mu.Unlock()
	if fn == nil {
		return process.Outcome{Status: process.StatusSpawnFailed, ExitCode: -1, Err: errors.New("not found")}
	}
	return fn(inv)
}

type fakeProber struct {
	pages int
	err   error
}

func (p fakeProber) PageCount(string) (int, error) { return p.pages, p.err }

type panickingProber struct{}

func (panickingProber) PageCount(string) (int, error) { panic("xref stream out of range") }

type memRecorder struct {
	mu      sync.Mutex
	records []types.ConversionRecord
	err     error
}

func (m *memRecorder) Record(_ context.Context, rec types.ConversionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return m.err
}

type harness struct {
	root     string
	workDir  string
	runner   *scriptedRunner
	recorder *memRecorder
	orch     *Orchestrator
}

func newHarness(t *testing.T, prober Prober) *harness {
	t.Helper()
	h := &harness{
		root:     t.TempDir(),
		workDir:  t.TempDir(),
		runner:   &scriptedRunner{run: map[string]func(process.Invocation) process.Outcome{}},
		recorder: &memRecorder{},
	}
	strategies, err := convert.BuildStrategies(types.ConversionConfig{
		TimeoutSeconds:    1,
		MarkerCommand:     "marker",
		PandocCommand:     "pandoc",
		PdftotextCommand:  "pdftotext",
		FallbackEnabled:   true,
		LastResortEnabled: true,
	})
	require.NoError(t, err)
	pipeline, err := convert.NewPipeline(convert.Config{Strategies: strategies, WorkDir: h.workDir}, h.runner, zerolog.Nop())
	require.NoError(t, err)

	opts := []Option{WithRecorder(h.recorder)}
	if prober != nil {
		opts = append(opts, WithProber(prober))
	}
	h.orch = New(workspace.NewManager(h.root, zerolog.Nop()), pipeline, zerolog.Nop(), opts...)
	return h
}

// assertNoWorkspaces checks that every workspace was released.
func (h *harness) assertNoWorkspaces(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(h.root)
	require.NoError(t, err)
	assert.Empty(t, entries, "workspace leaked")
}

func writeTo(path, content string) process.Outcome {
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return process.Outcome{Status: process.StatusFailed, ExitCode: 1, Stderr: err.Error()}
	}
	return process.Outcome{Status: process.StatusCompleted}
}

func pdfRequest(name string) Request {
	return Request{Filename: name, Body: strings.NewReader("%PDF-1.4 fake")}
}

func TestConvert_Success(t *testing.T) {
	h := newHarness(t, fakeProber{pages: 3})
	h.runner.run["marker"] = func(inv process.Invocation) process.Outcome {
		return writeTo(filepath.Join(inv.Args[0], "doc.md"), "# Doc")
	}

	res := h.orch.Convert(context.Background(), pdfRequest("doc.pdf"))

	require.True(t, res.OK, res.Details)
	assert.Equal(t, "# Doc", res.Markdown)
	assert.Equal(t, "marker", res.Strategy)
	assert.Equal(t, 3, res.Pages)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, 1, h.runner.calls)
	h.assertNoWorkspaces(t)

	require.Len(t, h.recorder.records, 1)
	rec := h.recorder.records[0]
	assert.Equal(t, res.ID, rec.ID)
	assert.Equal(t, types.ConversionDone, rec.Status)
	assert.Equal(t, int64(len("%PDF-1.4 fake")), rec.Bytes)
	assert.Equal(t, 3, rec.Pages)
}

func TestConvert_Rejected(t *testing.T) {
	tests := []struct {
		name     string
		filename string
	}{
		{"empty", ""},
		{"wrong extension", "notes.txt"},
		{"extension only", ".pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)

			res := h.orch.Convert(context.Background(), pdfRequest(tt.filename))

			assert.False(t, res.OK)
			assert.Equal(t, types.KindValidation, res.Kind)
			assert.Equal(t, InvalidMessage, res.Error)
			assert.Empty(t, res.Markdown)
			assert.Zero(t, h.runner.calls, "no process may run for a rejected upload")
			h.assertNoWorkspaces(t)
			require.Len(t, h.recorder.records, 1)
			assert.Equal(t, types.ConversionInvalid, h.recorder.records[0].Status)
		})
	}
}

func TestConvert_Exhausted(t *testing.T) {
	h := newHarness(t, nil)
	h.runner.run["marker"] = func(process.Invocation) process.Outcome {
		return process.Outcome{Status: process.StatusTimedOut, Err: errors.New("marker terminated: deadline of 1s exceeded")}
	}
	h.runner.run["pandoc"] = func(process.Invocation) process.Outcome {
		return process.Outcome{Status: process.StatusFailed, ExitCode: 1, Stderr: "unsupported"}
	}
	h.runner.run["pdftotext"] = func(process.Invocation) process.Outcome {
		return process.Outcome{Status: process.StatusCompleted}
	}

	res := h.orch.Convert(context.Background(), pdfRequest("doc.pdf"))

	assert.False(t, res.OK)
	assert.Empty(t, res.Markdown)
	assert.Equal(t, FailureMessage, res.Error)
	assert.Equal(t, types.KindArtifactNotFound, res.Kind)
	assert.Equal(t,
		"marker: ToolTimeout: marker terminated: deadline of 1s exceeded; "+
			"pandoc: ToolExecutionError: exit code 1: unsupported; "+
			"pdftotext: ArtifactNotFound: pdftotext exited cleanly but wrote no doc.txt",
		res.Details)
	assert.Len(t, res.Attempts, 3)
	h.assertNoWorkspaces(t)
	assert.Equal(t, types.ConversionFailed, h.recorder.records[0].Status)
}

func TestConvert_RemovesExternalArtifact(t *testing.T) {
	h := newHarness(t, nil)
	external := filepath.Join(h.workDir, "doc.md")
	h.runner.run["marker"] = func(process.Invocation) process.Outcome {
		return writeTo(external, "# Outside")
	}

	res := h.orch.Convert(context.Background(), pdfRequest("doc.pdf"))

	require.True(t, res.OK)
	assert.Equal(t, "# Outside", res.Markdown)
	assert.NoFileExists(t, external)
	h.assertNoWorkspaces(t)
}

func TestConvert_ResourceFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.orch.workspaces = workspace.NewManager(filepath.Join(h.root, "missing"), zerolog.Nop())

	res := h.orch.Convert(context.Background(), pdfRequest("doc.pdf"))

	assert.False(t, res.OK)
	assert.Equal(t, types.KindResource, res.Kind)
	assert.Equal(t, FailureMessage, res.Error)
	assert.True(t, strings.HasPrefix(res.Details, "ResourceError: "), res.Details)
	assert.Zero(t, h.runner.calls)
}

func TestConvert_PanicBecomesInternalError(t *testing.T) {
	h := newHarness(t, nil)
	h.runner.run["marker"] = func(process.Invocation) process.Outcome {
		panic("boom")
	}

	res := h.orch.Convert(context.Background(), pdfRequest("doc.pdf"))

	assert.False(t, res.OK)
	assert.Equal(t, types.KindInternal, res.Kind)
	assert.Contains(t, res.Details, "boom")
	h.assertNoWorkspaces(t)
	require.Len(t, h.recorder.records, 1)
}

func TestConvert_ProbeAndAuditFailuresAreIgnored(t *testing.T) {
	h := newHarness(t, fakeProber{err: errors.New("not a PDF file")})
	h.recorder.err = errors.New("database is locked")
	h.runner.run["marker"] = func(inv process.Invocation) process.Outcome {
		return writeTo(filepath.Join(inv.Args[0], "doc.md"), "ok")
	}

	res := h.orch.Convert(context.Background(), pdfRequest("doc.pdf"))

	require.True(t, res.OK)
	assert.Zero(t, res.Pages)
}

func TestConvert_PageCountPanicDoesNotAbortConversion(t *testing.T) {
	h := newHarness(t, panickingProber{})
	h.runner.run["marker"] = func(inv process.Invocation) process.Outcome {
		return writeTo(filepath.Join(inv.Args[0], "doc.md"), "ok")
	}

	res := h.orch.Convert(context.Background(), pdfRequest("doc.pdf"))

	require.True(t, res.OK, res.Details)
	assert.Equal(t, "ok", res.Markdown)
	assert.Zero(t, res.Pages)
	h.assertNoWorkspaces(t)
}

func TestConvert_Concurrent(t *testing.T) {
	h := newHarness(t, nil)
	h.runner.run["marker"] = func(inv process.Invocation) process.Outcome {
		time.Sleep(10 * time.Millisecond)
		entries, _ := os.ReadDir(inv.Args[0])
		for _, e := range entries {
			if strings.HasSuffix(e.Name(), ".pdf") {
				return writeTo(filepath.Join(inv.Args[0], strings.TrimSuffix(e.Name(), ".pdf")+".md"), e.Name())
			}
		}
		return process.Outcome{Status: process.StatusCompleted}
	}

	const n = 8
	var wg sync.WaitGroup
	results := make([]Result, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = h.orch.Convert(context.Background(), pdfRequest(string(rune('a'+i))+".pdf"))
		}(i)
	}
	wg.Wait()

	ids := map[string]bool{}
	for i, res := range results {
		require.True(t, res.OK, res.Details)
		assert.Equal(t, string(rune('a'+i))+".pdf", res.Markdown, "requests must not see each other's files")
		ids[res.ID] = true
	}
	assert.Len(t, ids, n)
	h.assertNoWorkspaces(t)
}

func TestAggregate(t *testing.T) {
	attempts := []types.Attempt{
		{Strategy: "marker", Kind: types.KindToolNotFound, Detail: "starting marker: not found"},
		{Strategy: "pandoc", Kind: types.KindArtifactReadError, Detail: "decoding doc.md: invalid UTF-8"},
	}
	tests := []struct {
		name string
		out  convert.Outcome
		want Result
	}{
		{
			name: "success keeps earlier attempts",
			out: convert.Outcome{
				Success:  &convert.Success{Markdown: "# x", Strategy: "pandoc"},
				Attempts: attempts[:1],
			},
			want: Result{OK: true, Markdown: "# x", Strategy: "pandoc", Attempts: attempts[:1]},
		},
		{
			name: "empty markdown is success",
			out:  convert.Outcome{Success: &convert.Success{Strategy: "marker"}},
			want: Result{OK: true, Strategy: "marker"},
		},
		{
			name: "failure",
			out:  convert.Outcome{Attempts: attempts},
			want: Result{
				Kind:  types.KindArtifactReadError,
				Error: FailureMessage,
				Details: "marker: ToolNotFound: starting marker: not found; " +
					"pandoc: ArtifactReadError: decoding doc.md: invalid UTF-8",
				Attempts: attempts,
			},
		},
		{
			name: "failure without attempts",
			out:  convert.Outcome{},
			want: Result{Kind: types.KindInternal, Error: FailureMessage, Details: "no strategy was attempted"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Aggregate(tt.out))
		})
	}
}

func TestValidateFilename(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"doc.pdf", false},
		{"REPORT.PDF", false},
		{"my file [v2].Pdf", false},
		{"dir/doc.pdf", false},
		{"", true},
		{"   ", true},
		{"doc", true},
		{"doc.pdf.txt", true},
		{".pdf", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFilename(tt.name)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
