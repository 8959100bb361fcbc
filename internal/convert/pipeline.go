// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/mdconvert/internal/artifact"
	"github.com/pdiddy/mdconvert/internal/container"
	"github.com/pdiddy/mdconvert/internal/process"
	"github.com/pdiddy/mdconvert/pkg/types"
)

// maxStderrDetail bounds how much tool stderr is copied into a failure detail.
const maxStderrDetail = 2048

// Runner executes one external process. *process.Supervisor implements it.
type Runner interface {
	Run(ctx context.Context, inv process.Invocation) process.Outcome
}

// Job is one staged input to convert.
type Job struct {
	// Workspace is the request's private directory.
	Workspace string
	// Input is the staged PDF path inside Workspace.
	Input string
	// Filename is the original upload name.
	Filename string
	// Track is called with every located artifact so files written outside
	// the workspace are removed with it. May be nil.
	Track func(path string)
}

// Success is the result of the strategy that converted the document.
type Success struct {
	Markdown string
	Strategy string
	Artifact string
}

// Outcome is the result of a pipeline run: Success is set when a strategy
// converted the document, and Attempts lists every failed try in order.
type Outcome struct {
	Success  *Success
	Attempts []types.Attempt
}

// Succeeded reports whether a strategy produced the document.
func (o Outcome) Succeeded() bool { return o.Success != nil }

// AttemptError is a strategy failure the pipeline recovers from by moving
// on to the next strategy.
type AttemptError struct {
	Kind   types.ErrorKind
	Detail string
}

func (e *AttemptError) Error() string { return string(e.Kind) + ": " + e.Detail }

func attemptErr(kind types.ErrorKind, format string, args ...any) error {
	return &AttemptError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Config holds what a Pipeline needs besides its runner.
type Config struct {
	Strategies []Strategy
	// WorkDir is the service's fixed working directory, exposed as {workdir}.
	WorkDir string
	// Runtime wraps strategies that set Image. Required only for those.
	Runtime container.Runtime
}

// Pipeline tries its strategies in order until one succeeds. It holds only
// immutable configuration and is safe for concurrent use.
type Pipeline struct {
	strategies []Strategy
	workDir    string
	runtime    container.Runtime
	runner     Runner
	log        zerolog.Logger
}

// NewPipeline validates cfg and returns a Pipeline.
func NewPipeline(cfg Config, runner Runner, log zerolog.Logger) (*Pipeline, error) {
	if len(cfg.Strategies) == 0 {
		return nil, ErrNoStrategies
	}
	seen := make(map[string]bool, len(cfg.Strategies))
	for _, s := range cfg.Strategies {
		if seen[s.outDirName()] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateStrategy, s.Name)
		}
		seen[s.outDirName()] = true
		if s.Image != "" && cfg.Runtime == nil {
			return nil, fmt.Errorf("%w %s: image %s requires a container runtime", ErrInvalidStrategy, s.Name, s.Image)
		}
	}
	return &Pipeline{
		strategies: append([]Strategy(nil), cfg.Strategies...),
		workDir:    cfg.WorkDir,
		runtime:    cfg.Runtime,
		runner:     runner,
		log:        log,
	}, nil
}

// Strategies returns the chain in priority order.
func (p *Pipeline) Strategies() []Strategy {
	return append([]Strategy(nil), p.strategies...)
}

// Run tries each strategy in order. It stops at the first success; a
// failed strategy is recorded and the next one is tried.
func (p *Pipeline) Run(ctx context.Context, job Job) Outcome {
	var out Outcome
	for i, s := range p.strategies {
		log := p.log.With().Str("strategy", s.Name).Int("position", i+1).Logger()
		log.Info().Msg("trying strategy")

		start := time.Now()
		success, err := p.try(ctx, log, s, job)
		elapsed := time.Since(start)

		if err == nil {
			log.Info().Dur("elapsed", elapsed).Int("bytes", len(success.Markdown)).
				Str("artifact", success.Artifact).Msg("strategy succeeded")
			out.Success = &success
			return out
		}

		var ae *AttemptError
		if !errors.As(err, &ae) {
			ae = &AttemptError{Kind: types.KindInternal, Detail: err.Error()}
		}
		log.Warn().Str("kind", string(ae.Kind)).Str("detail", ae.Detail).Dur("elapsed", elapsed).
			Msg("strategy failed")
		out.Attempts = append(out.Attempts, types.Attempt{
			Strategy: s.Name,
			Kind:     ae.Kind,
			Detail:   ae.Detail,
			Duration: elapsed,
		})
	}
	p.log.Error().Int("attempts", len(out.Attempts)).Msg("all strategies exhausted")
	return out
}

// try runs one strategy end to end: process, locate, read, decode.
func (p *Pipeline) try(ctx context.Context, log zerolog.Logger, s Strategy, job Job) (Success, error) {
	vars := Vars{
		Workspace: job.Workspace,
		Input:     job.Input,
		Filename:  job.Filename,
		Basename:  Basename(job.Filename),
		WorkDir:   p.workDir,
		OutDir:    filepath.Join(job.Workspace, s.outDirName()),
	}
	if err := os.MkdirAll(vars.OutDir, 0o755); err != nil {
		return Success{}, attemptErr(types.KindResource, "creating output directory: %v", err)
	}

	inv := process.Invocation{
		Command: s.Command,
		Args:    vars.expandAll(s.Args),
		Dir:     vars.Expand(s.Dir),
		Timeout: s.Timeout,
	}
	if inv.Dir == "" {
		inv.Dir = job.Workspace
	}
	if s.Image != "" {
		inv.Command, inv.Args = p.runtime.Wrap(s.Image, job.Workspace, s.Command, inv.Args)
		inv.Dir = job.Workspace
	}

	res := p.runner.Run(ctx, inv)
	if res.Stderr != "" {
		log.Debug().Str("stderr", truncate(res.Stderr, maxStderrDetail)).Msg("tool stderr")
	}
	switch res.Status {
	case process.StatusSpawnFailed:
		return Success{}, attemptErr(types.KindToolNotFound, "%v", res.Err)
	case process.StatusTimedOut:
		return Success{}, attemptErr(types.KindToolTimeout, "%v", res.Err)
	case process.StatusFailed:
		stderr := strings.TrimSpace(res.Stderr)
		if stderr == "" {
			stderr = "no stderr output"
		}
		return Success{}, attemptErr(types.KindToolExecution, "exit code %d: %s", res.ExitCode, truncate(stderr, maxStderrDetail))
	}

	candidates := vars.Candidates(s.Candidates)
	path, err := artifact.Locate(vars.Basename, candidates)
	if err != nil {
		log.Warn().Err(err).Msg("tool exited cleanly without output")
		return Success{}, attemptErr(types.KindArtifactNotFound, "%s exited cleanly but wrote no %s", s.Name, filepath.Base(candidates[0].Path))
	}
	if job.Track != nil {
		job.Track(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Success{}, attemptErr(types.KindArtifactReadError, "reading %s: %v", filepath.Base(path), err)
	}
	markdown, err := Decode(s.Decoder, data, vars.Basename)
	if err != nil {
		return Success{}, attemptErr(types.KindArtifactReadError, "decoding %s: %v", filepath.Base(path), err)
	}
	return Success{Markdown: markdown, Strategy: s.Name, Artifact: path}, nil
}

// truncate keeps the tail of s, where tools usually print the actual error.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
