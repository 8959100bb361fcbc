// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package orchestrator runs one conversion request end to end: it
// validates the upload, stages it in a private workspace, drives the
// strategy pipeline, and guarantees the workspace is released whatever
// the outcome.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pdiddy/mdconvert/internal/convert"
	"github.com/pdiddy/mdconvert/internal/workspace"
	"github.com/pdiddy/mdconvert/pkg/types"
)

// ErrValidation reports an upload rejected before any resource is used.
var ErrValidation = errors.New("invalid conversion request")

// Request is one accepted upload.
type Request struct {
	Filename string
	Body     io.Reader
}

// ValidateFilename checks that name is a usable PDF file name.
func ValidateFilename(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty filename", ErrValidation)
	}
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		return fmt.Errorf("%w: %q is not a .pdf file", ErrValidation, name)
	}
	if convert.Basename(filepath.Base(name)) == "" {
		return fmt.Errorf("%w: %q has no name before the extension", ErrValidation, name)
	}
	return nil
}

// Prober reports the page count of a staged PDF.
type Prober interface {
	PageCount(path string) (int, error)
}

// Recorder persists finished conversions.
type Recorder interface {
	Record(ctx context.Context, rec types.ConversionRecord) error
}

// Orchestrator converts requests. It holds only immutable collaborators and
// is safe for concurrent use.
type Orchestrator struct {
	workspaces *workspace.Manager
	pipeline   *convert.Pipeline
	prober     Prober
	recorder   Recorder
	log        zerolog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithProber enables the page-count probe.
func WithProber(p Prober) Option {
	return func(o *Orchestrator) { o.prober = p }
}

// WithRecorder enables the audit log.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// New returns an Orchestrator.
func New(workspaces *workspace.Manager, pipeline *convert.Pipeline, log zerolog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{workspaces: workspaces, pipeline: pipeline, log: log}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Convert runs req through the pipeline. It never returns an error: every
// failure is described by the Result.
func (o *Orchestrator) Convert(ctx context.Context, req Request) Result {
	id := uuid.NewString()
	start := time.Now()
	log := o.log.With().Str("conversion_id", id).Str("filename", req.Filename).Logger()
	log.Info().Msg("conversion started")

	body := &countingReader{r: req.Body}
	res := o.convert(ctx, log, req.Filename, body)
	res.ID = id
	elapsed := time.Since(start)

	if res.OK {
		log.Info().Str("strategy", res.Strategy).Int("bytes", len(res.Markdown)).
			Dur("elapsed", elapsed).Msg("conversion succeeded")
	} else {
		log.Warn().Str("kind", string(res.Kind)).Str("details", res.Details).
			Dur("elapsed", elapsed).Msg("conversion failed")
	}

	o.record(ctx, log, types.ConversionRecord{
		ID:        id,
		Filename:  req.Filename,
		Status:    res.Status(),
		Strategy:  res.Strategy,
		Pages:     res.Pages,
		Bytes:     body.n,
		StartedAt: start.UTC(),
		Duration:  elapsed,
		Attempts:  res.Attempts,
	})
	return res
}

func (o *Orchestrator) convert(ctx context.Context, log zerolog.Logger, filename string, body io.Reader) (res Result) {
	if err := ValidateFilename(filename); err != nil {
		return invalid(err)
	}

	ws, err := o.workspaces.Acquire()
	if err != nil {
		return fault(types.KindResource, err)
	}
	defer ws.Release()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("conversion panicked")
			res = fault(types.KindInternal, fmt.Errorf("unexpected fault: %v", r))
		}
	}()

	input, err := ws.Stage(filename, body)
	if err != nil {
		return fault(types.KindResource, err)
	}
	pages := o.probe(log, input)

	res = Aggregate(o.pipeline.Run(ctx, convert.Job{
		Workspace: ws.Dir(),
		Input:     input,
		Filename:  filepath.Base(filename),
		Track:     ws.Track,
	}))
	res.Pages = pages
	return res
}

// probe reports the page count of input, or 0 when it cannot be read. A
// panic in the PDF parser is contained here so the tools still run.
func (o *Orchestrator) probe(log zerolog.Logger, input string) (pages int) {
	if o.prober == nil {
		return 0
	}
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Interface("panic", r).Msg("page count panicked")
			pages = 0
		}
	}()
	pages, err := o.prober.PageCount(input)
	if err != nil {
		log.Warn().Err(err).Msg("page count probe failed")
		return 0
	}
	log.Debug().Int("pages", pages).Msg("input probed")
	return pages
}

func (o *Orchestrator) record(ctx context.Context, log zerolog.Logger, rec types.ConversionRecord) {
	if o.recorder == nil {
		return
	}
	// The request context may already be cancelled; the audit entry is
	// still wanted.
	if err := o.recorder.Record(context.WithoutCancel(ctx), rec); err != nil {
		log.Error().Err(err).Msg("recording conversion")
	}
}

// countingReader counts the bytes staged from the upload.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	if c.r == nil {
		return 0, io.EOF
	}
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
