// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/mdconvert/pkg/types"
)

func TestNewStrategy(t *testing.T) {
	valid := types.StrategyConfig{
		Name:       "pandoc",
		Command:    "pandoc",
		Args:       []string{"-o", "{output}", "{input}"},
		Candidates: []string{"{output}"},
	}
	tests := []struct {
		name        string
		mutate      func(c *types.StrategyConfig)
		wantTimeout time.Duration
		wantDecoder types.DecoderKind
		wantErr     string
	}{
		{
			name:        "defaults decoder and timeout",
			mutate:      func(c *types.StrategyConfig) {},
			wantTimeout: 300 * time.Second,
			wantDecoder: types.DecoderMarkdown,
		},
		{
			name:        "per-strategy timeout overrides default",
			mutate:      func(c *types.StrategyConfig) { c.TimeoutSeconds = 30 },
			wantTimeout: 30 * time.Second,
			wantDecoder: types.DecoderMarkdown,
		},
		{
			name:        "reflow decoder accepted",
			mutate:      func(c *types.StrategyConfig) { c.Decoder = types.DecoderReflow },
			wantTimeout: 300 * time.Second,
			wantDecoder: types.DecoderReflow,
		},
		{name: "missing name", mutate: func(c *types.StrategyConfig) { c.Name = " " }, wantErr: "name is required"},
		{name: "missing command", mutate: func(c *types.StrategyConfig) { c.Command = "" }, wantErr: "command is required"},
		{name: "no candidates", mutate: func(c *types.StrategyConfig) { c.Candidates = nil }, wantErr: "candidate"},
		{name: "bad glob", mutate: func(c *types.StrategyConfig) { c.Candidates = []string{"{workspace}/[.md"} }, wantErr: "invalid candidate pattern"},
		{name: "unknown decoder", mutate: func(c *types.StrategyConfig) { c.Decoder = "html" }, wantErr: "unknown decoder"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			cfg.Args = append([]string(nil), valid.Args...)
			tt.mutate(&cfg)

			s, err := NewStrategy(cfg, 300*time.Second)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidStrategy))
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTimeout, s.Timeout)
			assert.Equal(t, tt.wantDecoder, s.Decoder)
			assert.Equal(t, cfg.Name, s.Config().Name)
		})
	}
}

func TestNewStrategy_NonPositiveTimeout(t *testing.T) {
	_, err := NewStrategy(types.StrategyConfig{Name: "x", Command: "x", Candidates: []string{"{output}"}}, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout must be positive")
}

func TestBuildStrategies_DefaultChain(t *testing.T) {
	base := types.ConversionConfig{
		TimeoutSeconds:   120,
		MarkerCommand:    "/app/marker-wrapper.sh",
		PandocCommand:    "pandoc",
		PdftotextCommand: "pdftotext",
	}
	tests := []struct {
		name       string
		fallback   bool
		lastResort bool
		want       []string
	}{
		{name: "all enabled", fallback: true, lastResort: true, want: []string{"marker", "pandoc", "pdftotext"}},
		{name: "primary only", want: []string{"marker"}},
		{name: "no fallback converter", lastResort: true, want: []string{"marker", "pdftotext"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			cfg.FallbackEnabled = tt.fallback
			cfg.LastResortEnabled = tt.lastResort

			chain, err := BuildStrategies(cfg)
			require.NoError(t, err)
			var names []string
			for _, s := range chain {
				names = append(names, s.Name)
				assert.Equal(t, 120*time.Second, s.Timeout)
			}
			assert.Equal(t, tt.want, names)

			last := chain[len(chain)-1]
			if tt.lastResort {
				assert.Equal(t, types.DecoderReflow, last.Decoder)
			} else {
				assert.Equal(t, types.DecoderMarkdown, last.Decoder)
			}
		})
	}
}

func TestBuildStrategies_ExplicitListReplacesDefaults(t *testing.T) {
	cfg := types.ConversionConfig{
		TimeoutSeconds:    60,
		MarkerCommand:     "/app/marker-wrapper.sh",
		FallbackEnabled:   true,
		LastResortEnabled: true,
		Strategies: []types.StrategyConfig{
			{Name: "docling", Command: "docling", Args: []string{"{input}"}, Candidates: []string{"{workspace}/*.md"}},
		},
	}
	chain, err := BuildStrategies(cfg)
	require.NoError(t, err)
	require.Len(t, chain, 1)
	assert.Equal(t, "docling", chain[0].Name)
}

func TestBuildStrategies_InvalidEntry(t *testing.T) {
	cfg := types.ConversionConfig{
		TimeoutSeconds: 60,
		Strategies:     []types.StrategyConfig{{Name: "broken"}},
	}
	_, err := BuildStrategies(cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidStrategy))
}

func TestVars(t *testing.T) {
	v := Vars{
		Workspace: "/tmp/mdconvert-1",
		Input:     "/tmp/mdconvert-1/doc.pdf",
		Filename:  "doc.pdf",
		Basename:  "doc",
		WorkDir:   "/app",
		OutDir:    "/tmp/mdconvert-1/out-pandoc",
	}

	assert.Equal(t, "/tmp/mdconvert-1/out-pandoc/doc.md", v.Expand("{output}"))
	assert.Equal(t, "/tmp/mdconvert-1/out-pandoc/doc.txt", v.Expand("{text}"))
	assert.Equal(t, "/app/doc.md", v.Expand("{workdir}/{basename}.md"))
	assert.Equal(t, "--in=/tmp/mdconvert-1/doc.pdf", v.Expand("--in={input}"))
	assert.Equal(t, "{unknown}", v.Expand("{unknown}"))

	cands := v.Candidates([]string{"{workspace}/{basename}.md", "{workspace}/*.md"})
	require.Len(t, cands, 2)
	assert.False(t, cands[0].Pattern)
	assert.True(t, cands[1].Pattern)
	assert.Equal(t, "/tmp/mdconvert-1/*.md", cands[1].Path)
}

func TestStrategyOutDirName(t *testing.T) {
	assert.Equal(t, "out-marker", Strategy{Name: "marker"}.outDirName())
	assert.Equal(t, "out-my_tool_v2", Strategy{Name: "my tool/v2"}.outDirName())
}
