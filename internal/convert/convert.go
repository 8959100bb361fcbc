// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert implements PDF-to-Markdown conversion as an ordered chain
// of external-tool strategies. The first strategy that produces a readable
// artifact wins; the others are fallbacks.
package convert

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/pdiddy/mdconvert/internal/artifact"
	"github.com/pdiddy/mdconvert/pkg/types"
)

// Sentinel errors for strategy configuration.
var (
	ErrNoStrategies      = errors.New("no conversion strategies configured")
	ErrInvalidStrategy   = errors.New("invalid strategy")
	ErrDuplicateStrategy = errors.New("duplicate strategy name")
)

// Vars are the per-request values substituted into strategy templates.
//
//	{workspace} {input} {filename} {basename} {workdir} {outdir} {output} {text}
type Vars struct {
	Workspace string
	Input     string
	Filename  string
	Basename  string
	WorkDir   string
	OutDir    string
}

// Output is the Markdown path a strategy is asked to write.
func (v Vars) Output() string { return filepath.Join(v.OutDir, v.Basename+".md") }

// Text is the plain-text path a text extractor is asked to write.
func (v Vars) Text() string { return filepath.Join(v.OutDir, v.Basename+".txt") }

// Expand substitutes the placeholders in tmpl.
func (v Vars) Expand(tmpl string) string {
	return v.replacer(func(s string) string { return s }).Replace(tmpl)
}

func (v Vars) expandAll(tmpls []string) []string {
	out := make([]string, len(tmpls))
	for i, t := range tmpls {
		out[i] = v.Expand(t)
	}
	return out
}

// Candidates expands artifact candidate templates. Templates containing
// glob metacharacters become patterns, with substituted values escaped so
// a filename like "report [v2].pdf" still matches literally.
func (v Vars) Candidates(tmpls []string) []artifact.Candidate {
	escaped := v.replacer(artifact.EscapeGlob)
	out := make([]artifact.Candidate, len(tmpls))
	for i, t := range tmpls {
		if artifact.IsPattern(t) {
			out[i] = artifact.Candidate{Path: escaped.Replace(t), Pattern: true}
			continue
		}
		out[i] = artifact.Candidate{Path: v.Expand(t)}
	}
	return out
}

func (v Vars) replacer(quote func(string) string) *strings.Replacer {
	return strings.NewReplacer(
		"{workspace}", quote(v.Workspace),
		"{input}", quote(v.Input),
		"{filename}", quote(v.Filename),
		"{basename}", quote(v.Basename),
		"{workdir}", quote(v.WorkDir),
		"{outdir}", quote(v.OutDir),
		"{output}", quote(v.Output()),
		"{text}", quote(v.Text()),
	)
}

// Basename strips the directory and a case-insensitive ".pdf" extension.
func Basename(filename string) string {
	name := filepath.Base(filename)
	if ext := filepath.Ext(name); strings.EqualFold(ext, ".pdf") {
		return strings.TrimSuffix(name, ext)
	}
	return name
}

// Strategy is one configured conversion attempt. Strategies are built once
// at startup and shared read-only between requests.
type Strategy struct {
	Name       string
	Command    string
	Args       []string
	Dir        string
	Timeout    time.Duration
	Candidates []string
	Decoder    types.DecoderKind
	Image      string
}

// NewStrategy validates cfg and resolves its timeout. A zero
// cfg.TimeoutSeconds inherits defaultTimeout.
func NewStrategy(cfg types.StrategyConfig, defaultTimeout time.Duration) (Strategy, error) {
	if strings.TrimSpace(cfg.Name) == "" {
		return Strategy{}, fmt.Errorf("%w: name is required", ErrInvalidStrategy)
	}
	if strings.TrimSpace(cfg.Command) == "" {
		return Strategy{}, fmt.Errorf("%w %s: command is required", ErrInvalidStrategy, cfg.Name)
	}
	if len(cfg.Candidates) == 0 {
		return Strategy{}, fmt.Errorf("%w %s: at least one artifact candidate is required", ErrInvalidStrategy, cfg.Name)
	}
	for _, c := range cfg.Candidates {
		if err := artifact.ValidatePattern(c); err != nil {
			return Strategy{}, fmt.Errorf("%w %s: %v", ErrInvalidStrategy, cfg.Name, err)
		}
	}

	decoder := cfg.Decoder
	if decoder == "" {
		decoder = types.DecoderMarkdown
	}
	if decoder != types.DecoderMarkdown && decoder != types.DecoderReflow {
		return Strategy{}, fmt.Errorf("%w %s: unknown decoder %q", ErrInvalidStrategy, cfg.Name, decoder)
	}

	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	if timeout <= 0 {
		return Strategy{}, fmt.Errorf("%w %s: timeout must be positive", ErrInvalidStrategy, cfg.Name)
	}

	return Strategy{
		Name:       cfg.Name,
		Command:    cfg.Command,
		Args:       append([]string(nil), cfg.Args...),
		Dir:        cfg.Dir,
		Timeout:    timeout,
		Candidates: append([]string(nil), cfg.Candidates...),
		Decoder:    decoder,
		Image:      cfg.Image,
	}, nil
}

// Config returns the strategy as a configuration value, for display.
func (s Strategy) Config() types.StrategyConfig {
	return types.StrategyConfig{
		Name:           s.Name,
		Command:        s.Command,
		Args:           append([]string(nil), s.Args...),
		Dir:            s.Dir,
		TimeoutSeconds: int(s.Timeout / time.Second),
		Candidates:     append([]string(nil), s.Candidates...),
		Decoder:        s.Decoder,
		Image:          s.Image,
	}
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// outDirName is the per-strategy output directory inside a workspace.
func (s Strategy) outDirName() string {
	return "out-" + unsafeNameChars.ReplaceAllString(s.Name, "_")
}
