// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"fmt"

	"github.com/pdiddy/mdconvert/pkg/types"
)

// Names of the built-in strategies.
const (
	StrategyMarker    = "marker"
	StrategyPandoc    = "pandoc"
	StrategyPdftotext = "pdftotext"
)

// DefaultStrategies returns the built-in chain for cfg: the marker wrapper,
// then pandoc when the fallback is enabled, then pdftotext with paragraph
// synthesis when the last resort is enabled.
func DefaultStrategies(cfg types.ConversionConfig) []types.StrategyConfig {
	chain := []types.StrategyConfig{{
		Name:    StrategyMarker,
		Command: cfg.MarkerCommand,
		Args:    []string{"{workspace}"},
		Dir:     "{workdir}",
		// marker writes next to the input, into a per-document folder, or
		// into its own working directory depending on version.
		Candidates: []string{
			"{workspace}/{basename}.md",
			"{workspace}/{basename}/{basename}.md",
			"{workspace}/*.md",
			"{workdir}/{basename}.md",
		},
		Decoder: types.DecoderMarkdown,
	}}
	if cfg.FallbackEnabled {
		chain = append(chain, types.StrategyConfig{
			Name:       StrategyPandoc,
			Command:    cfg.PandocCommand,
			Args:       []string{"-f", "pdf", "-t", "markdown", "-o", "{output}", "{input}"},
			Dir:        "{workspace}",
			Candidates: []string{"{output}"},
			Decoder:    types.DecoderMarkdown,
		})
	}
	if cfg.LastResortEnabled {
		chain = append(chain, types.StrategyConfig{
			Name:       StrategyPdftotext,
			Command:    cfg.PdftotextCommand,
			Args:       []string{"{input}", "{text}"},
			Dir:        "{workspace}",
			Candidates: []string{"{text}"},
			Decoder:    types.DecoderReflow,
		})
	}
	return chain
}

// BuildStrategies resolves the strategy chain for cfg. An explicit
// cfg.Strategies list replaces the built-in chain.
func BuildStrategies(cfg types.ConversionConfig) ([]Strategy, error) {
	configs := cfg.Strategies
	if len(configs) == 0 {
		configs = DefaultStrategies(cfg)
	}
	strategies := make([]Strategy, 0, len(configs))
	for _, c := range configs {
		s, err := NewStrategy(c, cfg.Timeout())
		if err != nil {
			return nil, fmt.Errorf("building strategy chain: %w", err)
		}
		strategies = append(strategies, s)
	}
	return strategies, nil
}
